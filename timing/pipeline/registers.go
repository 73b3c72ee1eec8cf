// Package pipeline provides the 5-stage RV32I pipeline implementation for
// cycle-accurate timing simulation.
package pipeline

import "github.com/5iri/synapse32/insts"

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32

	// Injected indicates the word was forced to the canonical NOP by a
	// flush rather than fetched. Injected slots never retire.
	Injected bool
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	r.Valid = false
	r.PC = 0
	r.InstructionWord = 0
	r.Injected = false
}

// Flush replaces the latched word with the canonical NOP encoding so a
// wrongly-fetched instruction can never reach decode with architectural
// effect. The PC is preserved.
func (r *IFIDRegister) Flush() {
	r.Valid = true
	r.InstructionWord = insts.NOPWord
	r.Injected = true
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Register values read from the register file (post-bypass).
	Rs1Value uint32
	Rs2Value uint32

	// Register numbers for hazard detection.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Control signals.
	MemRead  bool // True for load instructions
	MemWrite bool // True for store instructions
	RegWrite bool // True if instruction writes to register
	MemToReg bool // True if result comes from memory (load)
	IsBranch bool // True for conditional branch instructions
}

// Clear resets the ID/EX register to empty state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// Bubble clears the register but keeps the incoming PC, preserving the
// fetch/PC relationship across a load-use stall.
func (r *IDEXRegister) Bubble(pc uint32) {
	*r = IDEXRegister{PC: pc}
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALU result (effective address for load/store, result otherwise).
	ALUResult uint32

	// Value to store for store instructions.
	StoreValue uint32

	// Destination register number.
	Rd uint8

	// Control signals (propagated from ID/EX).
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool

	// Halt marks an EBREAK retiring in halt-on-ebreak mode.
	Halt bool
}

// Clear resets the EX/MEM register to empty state.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALU result (for ALU instructions).
	ALUResult uint32

	// Data read from memory (for load instructions).
	MemData uint32

	// Destination register number.
	Rd uint8

	// Control signals.
	RegWrite bool
	MemToReg bool // True if result comes from memory

	// Store bookkeeping for store-to-load forwarding. A store sitting in
	// this latch is not yet visible to the external memory port.
	IsStore    bool
	StoreAddr  uint32
	StoreValue uint32

	// Halt marks an EBREAK retiring in halt-on-ebreak mode.
	Halt bool
}

// Clear resets the MEM/WB register to empty state.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}
