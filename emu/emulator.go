package emu

import (
	"fmt"

	"github.com/5iri/synapse32/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the emulator stopped (EBREAK with halt-on-ebreak,
	// or the instruction limit was reached).
	Halted bool

	// Err is set if execution could not proceed.
	Err error
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithHaltOnEbreak makes EBREAK stop the emulator instead of trapping.
// Useful for running bare-metal test programs to completion.
func WithHaltOnEbreak() EmulatorOption {
	return func(e *Emulator) {
		e.haltOnEbreak = true
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// Emulator executes RV32I instructions functionally, one per step. It
// shares the architectural components (RegFile, Memory, CsrFile) with the
// timing model and serves as its behavioral reference.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	alu     *ALU
	csr     *CsrFile
	intc    *InterruptController

	pc uint32

	// Interrupt request lines, sampled into mip every step.
	softwareIRQ bool
	timerIRQ    bool
	externalIRQ bool

	haltOnEbreak     bool
	halted           bool
	instructionCount uint64
	maxInstructions  uint64
}

// NewEmulator creates a new RV32I emulator in its reset state.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	csr := NewCsrFile()
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(),
		decoder: insts.NewDecoder(),
		alu:     NewALU(),
		csr:     csr,
		intc:    NewInterruptController(csr),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// Csr returns the emulator's CSR file.
func (e *Emulator) Csr() *CsrFile {
	return e.csr
}

// PC returns the current program counter.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint32) {
	e.pc = pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether the emulator has stopped.
func (e *Emulator) Halted() bool {
	return e.halted
}

// SetInterruptLines drives the three interrupt request lines. They are
// resampled into mip at the start of every step.
func (e *Emulator) SetInterruptLines(software, timer, external bool) {
	e.softwareIRQ = software
	e.timerIRQ = timer
	e.externalIRQ = external
}

// LoadProgram copies a byte image into memory and sets the entry point.
func (e *Emulator) LoadProgram(entry uint32, image []byte) {
	e.memory.LoadProgram(entry, image)
	e.pc = entry
}

// LoadWords copies instruction words into memory and sets the entry point.
func (e *Emulator) LoadWords(entry uint32, words []uint32) {
	e.memory.LoadWords(entry, words)
	e.pc = entry
}

// Reset restores the emulator to its power-on state. Memory is preserved.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.csr.Reset()
	e.pc = 0
	e.halted = false
	e.instructionCount = 0
}

// Step executes a single instruction (or takes a pending interrupt).
func (e *Emulator) Step() StepResult {
	if e.halted {
		return StepResult{Halted: true}
	}
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		e.halted = true
		return StepResult{Halted: true, Err: fmt.Errorf("max instructions reached at PC=0x%X", e.pc)}
	}

	e.csr.Tick()
	e.csr.SampleInterruptLines(e.softwareIRQ, e.timerIRQ, e.externalIRQ)

	if cause, ok := e.intc.Pending(); ok {
		e.csr.Apply(CsrUpdate{
			InterruptTaken: true,
			InterruptCause: cause,
			TrapPC:         e.pc,
		})
		e.pc = e.csr.TrapTarget()
		return StepResult{}
	}

	word := e.memory.Read32(e.pc)
	inst := e.decoder.Decode(word)
	e.execute(inst)
	e.instructionCount++

	return StepResult{Halted: e.halted}
}

// Run executes until the emulator halts or the instruction limit is hit.
func (e *Emulator) Run() StepResult {
	for {
		result := e.Step()
		if result.Halted || result.Err != nil {
			return result
		}
	}
}

// execute dispatches on the decoded operation. Unknown instructions are
// architectural no-ops.
func (e *Emulator) execute(inst *insts.Instruction) {
	rs1 := e.regFile.ReadReg(inst.Rs1)
	rs2 := e.regFile.ReadReg(inst.Rs2)
	nextPC := e.pc + 4

	switch {
	case inst.Format == insts.FormatR:
		e.regFile.WriteReg(inst.Rd, e.alu.Execute(inst.Op, rs1, rs2))

	case inst.Op >= insts.OpADDI && inst.Op <= insts.OpSRAI:
		e.regFile.WriteReg(inst.Rd, e.alu.Execute(inst.Op, rs1, inst.Imm))

	case inst.IsLoad():
		e.regFile.WriteReg(inst.Rd, e.load(inst.Op, rs1+inst.Imm))

	case inst.IsStore():
		e.store(inst.Op, rs1+inst.Imm, rs2)

	case inst.IsBranch():
		if e.alu.BranchTaken(inst.Op, rs1, rs2) {
			nextPC = e.pc + inst.Imm
		}

	case inst.Op == insts.OpJAL:
		e.regFile.WriteReg(inst.Rd, e.pc+4)
		nextPC = e.pc + inst.Imm

	case inst.Op == insts.OpJALR:
		e.regFile.WriteReg(inst.Rd, e.pc+4)
		nextPC = (rs1 + inst.Imm) &^ 1

	case inst.Op == insts.OpLUI:
		e.regFile.WriteReg(inst.Rd, inst.Imm)

	case inst.Op == insts.OpAUIPC:
		e.regFile.WriteReg(inst.Rd, e.pc+inst.Imm)

	case inst.IsCsr():
		e.executeCsr(inst, rs1)

	case inst.Op == insts.OpECALL:
		e.csr.Apply(CsrUpdate{Ecall: true, TrapPC: e.pc})
		nextPC = e.csr.TrapTarget()

	case inst.Op == insts.OpEBREAK:
		if e.haltOnEbreak {
			e.halted = true
			return
		}
		e.csr.Apply(CsrUpdate{Ebreak: true, TrapPC: e.pc})
		nextPC = e.csr.TrapTarget()

	case inst.Op == insts.OpMRET:
		e.csr.Apply(CsrUpdate{Mret: true})
		nextPC = e.csr.Mepc()
	}

	e.pc = nextPC
}

// executeCsr implements the six Zicsr forms: rd receives the old CSR
// value; CSRRS/CSRRC (and immediate forms) skip the write when the mask
// operand is x0/zero.
func (e *Emulator) executeCsr(inst *insts.Instruction, rs1 uint32) {
	old := e.csr.Read(inst.Csr)

	operand := rs1
	switch inst.Op {
	case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		operand = uint32(inst.Zimm)
	}

	write := false
	var value uint32
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		write = true
		value = operand
	case insts.OpCSRRS, insts.OpCSRRSI:
		write = inst.Op == insts.OpCSRRS && inst.Rs1 != 0 ||
			inst.Op == insts.OpCSRRSI && inst.Zimm != 0
		value = old | operand
	case insts.OpCSRRC, insts.OpCSRRCI:
		write = inst.Op == insts.OpCSRRC && inst.Rs1 != 0 ||
			inst.Op == insts.OpCSRRCI && inst.Zimm != 0
		value = old &^ operand
	}

	if write {
		e.csr.Apply(CsrUpdate{
			WriteEnable: true,
			WriteAddr:   inst.Csr,
			WriteValue:  value,
		})
	}

	e.regFile.WriteReg(inst.Rd, old)
}

// load performs a width- and sign-correct data memory read.
func (e *Emulator) load(op insts.Op, addr uint32) uint32 {
	switch op {
	case insts.OpLB:
		return uint32(int32(int8(e.memory.Read8(addr))))
	case insts.OpLH:
		return uint32(int32(int16(e.memory.Read16(addr))))
	case insts.OpLW:
		return e.memory.Read32(addr)
	case insts.OpLBU:
		return uint32(e.memory.Read8(addr))
	case insts.OpLHU:
		return uint32(e.memory.Read16(addr))
	default:
		return 0
	}
}

// store performs a width-correct data memory write.
func (e *Emulator) store(op insts.Op, addr, value uint32) {
	switch op {
	case insts.OpSB:
		e.memory.Write8(addr, uint8(value))
	case insts.OpSH:
		e.memory.Write16(addr, uint16(value))
	case insts.OpSW:
		e.memory.Write32(addr, value)
	}
}
