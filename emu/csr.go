package emu

// Machine-mode CSR addresses.
const (
	CsrMstatus  uint16 = 0x300
	CsrMisa     uint16 = 0x301
	CsrMie      uint16 = 0x304
	CsrMtvec    uint16 = 0x305
	CsrMscratch uint16 = 0x340
	CsrMepc     uint16 = 0x341
	CsrMcause   uint16 = 0x342
	CsrMtval    uint16 = 0x343
	CsrMip      uint16 = 0x344
	CsrCycle    uint16 = 0xC00
	CsrCycleh   uint16 = 0xC80
)

// mstatus bit positions.
const (
	MstatusMIE  uint32 = 1 << 3  // global machine interrupt enable
	MstatusMPIE uint32 = 1 << 7  // previous interrupt enable
	MstatusMPP  uint32 = 3 << 11 // previous privilege (always machine)
)

// mip/mie bit positions for the three hardware interrupt sources.
const (
	IntSoftware uint32 = 1 << 3
	IntTimer    uint32 = 1 << 7
	IntExternal uint32 = 1 << 11
)

// mcause values. Interrupt causes carry the interrupt flag in bit 31.
const (
	CauseSoftwareInterrupt uint32 = 0x80000003
	CauseTimerInterrupt    uint32 = 0x80000007
	CauseExternalInterrupt uint32 = 0x8000000B
	CauseBreakpoint        uint32 = 3
	CauseEcallM            uint32 = 11
)

// Reset values.
const (
	// mstatus resets with MPP set to machine mode.
	mstatusReset uint32 = 0x1800
	// misa advertises RV32I: MXL=1, extension bit I.
	misaValue uint32 = 0x40000100
)

// mipHardwareMask covers the mip bits owned by the interrupt input lines;
// they are rewritten from the lines every cycle and never by software.
// mipSoftwareMask covers the bits software may set through CSR writes.
const (
	mipHardwareMask        = IntSoftware | IntTimer | IntExternal
	mipSoftwareMask uint32 = 0x222
)

// CsrUpdate describes everything that may want to change CSR state in one
// cycle. Apply commits exactly one of the trap-class events, in the fixed
// priority interrupt > MRET > ECALL > EBREAK > ordinary write.
type CsrUpdate struct {
	// InterruptTaken requests interrupt entry with the given cause.
	InterruptTaken bool
	InterruptCause uint32

	// Mret requests a return from trap.
	Mret bool

	// Ecall and Ebreak request synchronous trap entry.
	Ecall  bool
	Ebreak bool

	// TrapPC is the PC saved into mepc on any trap entry.
	TrapPC uint32

	// WriteEnable requests an ordinary CSR write.
	WriteEnable bool
	WriteAddr   uint16
	WriteValue  uint32
}

// CsrFile holds the machine-mode control and status registers plus the
// 64-bit cycle counter.
type CsrFile struct {
	mstatus  uint32
	mie      uint32
	mip      uint32
	mtvec    uint32
	mscratch uint32
	mepc     uint32
	mcause   uint32
	mtval    uint32
	cycle    uint64
}

// NewCsrFile creates a CSR file in its reset state.
func NewCsrFile() *CsrFile {
	c := &CsrFile{}
	c.Reset()
	return c
}

// Reset restores every CSR to its architectural reset value.
func (c *CsrFile) Reset() {
	*c = CsrFile{mstatus: mstatusReset}
}

// Read returns the value of the addressed CSR. Invalid or disabled
// addresses read as zero.
func (c *CsrFile) Read(addr uint16) uint32 {
	switch addr {
	case CsrMstatus:
		return c.mstatus
	case CsrMisa:
		return misaValue
	case CsrMie:
		return c.mie
	case CsrMtvec:
		return c.mtvec
	case CsrMscratch:
		return c.mscratch
	case CsrMepc:
		return c.mepc
	case CsrMcause:
		return c.mcause
	case CsrMtval:
		return c.mtval
	case CsrMip:
		return c.mip
	case CsrCycle:
		return uint32(c.cycle)
	case CsrCycleh:
		return uint32(c.cycle >> 32)
	default:
		return 0
	}
}

// SampleInterruptLines overwrites the hardware-owned mip bits from the
// three interrupt request lines. Called every cycle before interrupt
// arbitration.
func (c *CsrFile) SampleInterruptLines(software, timer, external bool) {
	c.mip &^= mipHardwareMask
	if software {
		c.mip |= IntSoftware
	}
	if timer {
		c.mip |= IntTimer
	}
	if external {
		c.mip |= IntExternal
	}
}

// Apply commits at most one trap-class event plus the cycle-counter
// increment for this cycle.
func (c *CsrFile) Apply(u CsrUpdate) {
	switch {
	case u.InterruptTaken:
		c.enterTrap(u.TrapPC, u.InterruptCause)
	case u.Mret:
		// Restore the global enable from MPIE, then set MPIE.
		c.mstatus &^= MstatusMIE
		if c.mstatus&MstatusMPIE != 0 {
			c.mstatus |= MstatusMIE
		}
		c.mstatus |= MstatusMPIE
	case u.Ecall:
		c.enterTrap(u.TrapPC, CauseEcallM)
	case u.Ebreak:
		c.enterTrap(u.TrapPC, CauseBreakpoint)
	case u.WriteEnable:
		c.write(u.WriteAddr, u.WriteValue)
	}
}

// enterTrap records the trap PC and cause and stacks the global
// interrupt enable: MPIE <- MIE, MIE <- 0.
func (c *CsrFile) enterTrap(pc, cause uint32) {
	c.mepc = pc
	c.mcause = cause
	c.mstatus &^= MstatusMPIE
	if c.mstatus&MstatusMIE != 0 {
		c.mstatus |= MstatusMPIE
	}
	c.mstatus &^= MstatusMIE
}

// write performs an ordinary whitelisted CSR write. mip writes only reach
// the software-writable bits; misa, cycle, and cycleh are read-only.
func (c *CsrFile) write(addr uint16, value uint32) {
	switch addr {
	case CsrMstatus:
		c.mstatus = value
	case CsrMie:
		c.mie = value
	case CsrMtvec:
		c.mtvec = value
	case CsrMscratch:
		c.mscratch = value
	case CsrMepc:
		c.mepc = value
	case CsrMcause:
		c.mcause = value
	case CsrMtval:
		c.mtval = value
	case CsrMip:
		c.mip = c.mip&^mipSoftwareMask | value&mipSoftwareMask
	}
}

// Tick advances the cycle counter. It increments unconditionally on every
// non-reset cycle.
func (c *CsrFile) Tick() {
	c.cycle++
}

// Cycle returns the 64-bit cycle counter.
func (c *CsrFile) Cycle() uint64 {
	return c.cycle
}

// GlobalInterruptEnable reports mstatus.MIE.
func (c *CsrFile) GlobalInterruptEnable() bool {
	return c.mstatus&MstatusMIE != 0
}

// PendingMask returns the enabled-and-pending interrupt bits (mie & mip).
func (c *CsrFile) PendingMask() uint32 {
	return c.mie & c.mip
}

// TrapTarget returns the trap-entry redirect target (mtvec, direct mode).
func (c *CsrFile) TrapTarget() uint32 {
	return c.mtvec &^ 0x3
}

// Mepc returns the saved trap PC, the MRET redirect target.
func (c *CsrFile) Mepc() uint32 {
	return c.mepc
}
