// Package emu provides functional RV32I emulation and the architectural
// state shared with the timing model.
package emu

// RegFile represents the RV32I integer register file: 32 registers of 32
// bits. Register x0 is hardwired to zero: reads always return 0 and
// writes are discarded.
type RegFile struct {
	// X holds the architectural registers x0-x31.
	X [32]uint32
}

// ReadReg reads a register value. Register 0 always returns 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a register value. Writes to register 0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// Reset clears every register.
func (r *RegFile) Reset() {
	r.X = [32]uint32{}
}
