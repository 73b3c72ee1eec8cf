// Package insts provides RV32I instruction definitions and decoding.
package insts

// Op identifies the exact operation of a decoded instruction. Instructions
// that share a major opcode but differ in funct bits (ADD vs SUB, the six
// branch conditions, load widths) get distinct Op values so that later
// pipeline stages never re-inspect raw funct fields.
type Op uint16

// RV32I operations.
const (
	OpUnknown Op = iota

	// Upper-immediate and jumps
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	// Conditional branches
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Loads
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	// Stores
	OpSB
	OpSH
	OpSW

	// Register-immediate ALU
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Register-register ALU
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// System
	OpECALL
	OpEBREAK
	OpMRET
)

// Format represents an instruction encoding format.
type Format uint8

// RV32I instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register-register
	FormatI              // Register-immediate, loads, JALR
	FormatS              // Stores
	FormatB              // Conditional branches
	FormatU              // LUI, AUIPC
	FormatJ              // JAL
	FormatSystem         // CSR operations, ECALL, EBREAK, MRET
)

// RV32I major opcodes (bits [6:0]).
const (
	opcodeLUI    = 0x37
	opcodeAUIPC  = 0x17
	opcodeJAL    = 0x6F
	opcodeJALR   = 0x67
	opcodeBranch = 0x63
	opcodeLoad   = 0x03
	opcodeStore  = 0x23
	opcodeOpImm  = 0x13
	opcodeOp     = 0x33
	opcodeSystem = 0x73
)

// NOPWord is the canonical NOP encoding (ADDI x0, x0, 0). Flushed fetch
// slots are replaced with this word so they decode to a no-effect
// instruction.
const NOPWord uint32 = 0x00000013

// Instruction represents a decoded RV32I instruction.
//
// A register field is meaningful only when its validity flag is set; the
// flags encode which fields the instruction's format actually uses (stores
// have no Rd, U/J-type have no sources). Hazard detection keys off the
// validity flags rather than the format.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Opcode uint8  // Raw 7-bit major opcode

	// Register fields with per-field validity.
	Rd       uint8
	Rs1      uint8
	Rs2      uint8
	RdValid  bool
	Rs1Valid bool
	Rs2Valid bool

	// Imm is the sign- or zero-extended 32-bit immediate for the format.
	Imm uint32

	// Csr is the CSR address for Zicsr instructions.
	Csr uint16

	// Zimm is the 5-bit zero-extended immediate for CSRRWI/CSRRSI/CSRRCI.
	Zimm uint8
}

// IsLoad reports whether the instruction reads data memory.
func (i *Instruction) IsLoad() bool {
	return i.Op >= OpLB && i.Op <= OpLHU
}

// IsStore reports whether the instruction writes data memory.
func (i *Instruction) IsStore() bool {
	return i.Op >= OpSB && i.Op <= OpSW
}

// IsBranch reports whether the instruction is a conditional branch.
func (i *Instruction) IsBranch() bool {
	return i.Op >= OpBEQ && i.Op <= OpBGEU
}

// IsCsr reports whether the instruction is a Zicsr operation.
func (i *Instruction) IsCsr() bool {
	return i.Op >= OpCSRRW && i.Op <= OpCSRRCI
}

// Decoder decodes RV32I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RV32I instruction word. Unrecognized encodings
// return an instruction with Op == OpUnknown and every validity flag
// cleared; they are defined as no-effect, not an error.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpUnknown,
		Format: FormatUnknown,
		Opcode: uint8(word & 0x7F),
	}

	switch inst.Opcode {
	case opcodeLUI:
		inst.Format = FormatU
		inst.Op = OpLUI
		d.decodeU(word, inst)
	case opcodeAUIPC:
		inst.Format = FormatU
		inst.Op = OpAUIPC
		d.decodeU(word, inst)
	case opcodeJAL:
		inst.Format = FormatJ
		inst.Op = OpJAL
		d.decodeJ(word, inst)
	case opcodeJALR:
		// JALR requires funct3 == 0.
		if funct3(word) == 0 {
			inst.Format = FormatI
			inst.Op = OpJALR
			d.decodeI(word, inst)
		}
	case opcodeBranch:
		d.decodeBranch(word, inst)
	case opcodeLoad:
		d.decodeLoad(word, inst)
	case opcodeStore:
		d.decodeStore(word, inst)
	case opcodeOpImm:
		d.decodeOpImm(word, inst)
	case opcodeOp:
		d.decodeOp(word, inst)
	case opcodeSystem:
		d.decodeSystem(word, inst)
	}

	return inst
}

func funct3(word uint32) uint32  { return (word >> 12) & 0x7 }
func funct7(word uint32) uint32  { return (word >> 25) & 0x7F }
func rdField(word uint32) uint8  { return uint8((word >> 7) & 0x1F) }
func rs1Field(word uint32) uint8 { return uint8((word >> 15) & 0x1F) }
func rs2Field(word uint32) uint8 { return uint8((word >> 20) & 0x1F) }

// immI extracts the sign-extended I-type immediate (bits [31:20]).
func immI(word uint32) uint32 {
	return uint32(int32(word) >> 20)
}

// immS extracts the sign-extended S-type immediate (bits [31:25] | [11:7]).
func immS(word uint32) uint32 {
	return uint32(int32(word)>>25)<<5 | (word>>7)&0x1F
}

// immB extracts the sign-extended B-type immediate
// (imm[12|10:5] = bits [31:25], imm[4:1|11] = bits [11:7], imm[0] = 0).
func immB(word uint32) uint32 {
	imm := uint32(int32(word)>>31) << 12 // imm[12], sign-extended
	imm |= (word >> 7) & 0x1 << 11       // imm[11]
	imm |= (word >> 25) & 0x3F << 5      // imm[10:5]
	imm |= (word >> 8) & 0xF << 1        // imm[4:1]
	return imm
}

// immU extracts the U-type immediate (bits [31:12] << 12).
func immU(word uint32) uint32 {
	return word & 0xFFFFF000
}

// immJ extracts the sign-extended J-type immediate
// (imm[20|10:1|11|19:12] = bits [31:12], imm[0] = 0).
func immJ(word uint32) uint32 {
	imm := uint32(int32(word)>>31) << 20 // imm[20], sign-extended
	imm |= (word >> 12) & 0xFF << 12     // imm[19:12]
	imm |= (word >> 20) & 0x1 << 11      // imm[11]
	imm |= (word >> 21) & 0x3FF << 1     // imm[10:1]
	return imm
}

// decodeI fills the I-type fields: rd, rs1, sign-extended immediate.
func (d *Decoder) decodeI(word uint32, inst *Instruction) {
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.RdValid = true
	inst.Rs1Valid = true
	inst.Imm = immI(word)
}

// decodeU fills the U-type fields: rd only.
func (d *Decoder) decodeU(word uint32, inst *Instruction) {
	inst.Rd = rdField(word)
	inst.RdValid = true
	inst.Imm = immU(word)
}

// decodeJ fills the J-type fields: rd only.
func (d *Decoder) decodeJ(word uint32, inst *Instruction) {
	inst.Rd = rdField(word)
	inst.RdValid = true
	inst.Imm = immJ(word)
}

// decodeBranch decodes BEQ/BNE/BLT/BGE/BLTU/BGEU.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpBEQ
	case 0b001:
		op = OpBNE
	case 0b100:
		op = OpBLT
	case 0b101:
		op = OpBGE
	case 0b110:
		op = OpBLTU
	case 0b111:
		op = OpBGEU
	default:
		return
	}

	inst.Format = FormatB
	inst.Op = op
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
	inst.Rs1Valid = true
	inst.Rs2Valid = true
	inst.Imm = immB(word)
}

// decodeLoad decodes LB/LH/LW/LBU/LHU.
// Format: imm[11:0] | rs1 | funct3 | rd | 0000011
func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpLB
	case 0b001:
		op = OpLH
	case 0b010:
		op = OpLW
	case 0b100:
		op = OpLBU
	case 0b101:
		op = OpLHU
	default:
		return
	}

	inst.Format = FormatI
	inst.Op = op
	d.decodeI(word, inst)
}

// decodeStore decodes SB/SH/SW.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | 0100011
func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpSB
	case 0b001:
		op = OpSH
	case 0b010:
		op = OpSW
	default:
		return
	}

	inst.Format = FormatS
	inst.Op = op
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
	inst.Rs1Valid = true
	inst.Rs2Valid = true
	inst.Imm = immS(word)
}

// decodeOpImm decodes the register-immediate ALU group.
// Format: imm[11:0] | rs1 | funct3 | rd | 0010011
// Shifts use shamt in bits [24:20] and funct7 to split SRLI/SRAI.
func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpADDI
	case 0b010:
		op = OpSLTI
	case 0b011:
		op = OpSLTIU
	case 0b100:
		op = OpXORI
	case 0b110:
		op = OpORI
	case 0b111:
		op = OpANDI
	case 0b001:
		if funct7(word) != 0 {
			return
		}
		op = OpSLLI
	case 0b101:
		switch funct7(word) {
		case 0x00:
			op = OpSRLI
		case 0x20:
			op = OpSRAI
		default:
			return
		}
	}

	inst.Format = FormatI
	inst.Op = op
	d.decodeI(word, inst)

	// Shift-immediate instructions carry the shift amount in the low five
	// immediate bits; mask off the funct7 half so SRAI's 0x20 marker never
	// leaks into the operand.
	switch op {
	case OpSLLI, OpSRLI, OpSRAI:
		inst.Imm &= 0x1F
	}
}

// decodeOp decodes the register-register ALU group.
// Format: funct7 | rs2 | rs1 | funct3 | rd | 0110011
func (d *Decoder) decodeOp(word uint32, inst *Instruction) {
	f3 := funct3(word)
	f7 := funct7(word)

	var op Op
	switch {
	case f3 == 0b000 && f7 == 0x00:
		op = OpADD
	case f3 == 0b000 && f7 == 0x20:
		op = OpSUB
	case f3 == 0b001 && f7 == 0x00:
		op = OpSLL
	case f3 == 0b010 && f7 == 0x00:
		op = OpSLT
	case f3 == 0b011 && f7 == 0x00:
		op = OpSLTU
	case f3 == 0b100 && f7 == 0x00:
		op = OpXOR
	case f3 == 0b101 && f7 == 0x00:
		op = OpSRL
	case f3 == 0b101 && f7 == 0x20:
		op = OpSRA
	case f3 == 0b110 && f7 == 0x00:
		op = OpOR
	case f3 == 0b111 && f7 == 0x00:
		op = OpAND
	default:
		return
	}

	inst.Format = FormatR
	inst.Op = op
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
	inst.RdValid = true
	inst.Rs1Valid = true
	inst.Rs2Valid = true
}

// decodeSystem decodes Zicsr operations plus ECALL, EBREAK, and MRET.
// Format: csr | rs1/zimm | funct3 | rd | 1110011
func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	switch funct3(word) {
	case 0b000:
		// PRIV group: the distinguishing value lives in the imm field.
		if rdField(word) != 0 || rs1Field(word) != 0 {
			return
		}
		switch (word >> 20) & 0xFFF {
		case 0x000:
			inst.Format = FormatSystem
			inst.Op = OpECALL
		case 0x001:
			inst.Format = FormatSystem
			inst.Op = OpEBREAK
		case 0x302:
			inst.Format = FormatSystem
			inst.Op = OpMRET
		}
	case 0b001, 0b010, 0b011:
		// Register CSR forms read rs1.
		ops := [...]Op{0b001: OpCSRRW, 0b010: OpCSRRS, 0b011: OpCSRRC}
		inst.Format = FormatSystem
		inst.Op = ops[funct3(word)]
		inst.Rd = rdField(word)
		inst.Rs1 = rs1Field(word)
		inst.RdValid = true
		inst.Rs1Valid = true
		inst.Csr = uint16((word >> 20) & 0xFFF)
	case 0b101, 0b110, 0b111:
		// Immediate CSR forms carry a 5-bit zimm in place of rs1.
		ops := [...]Op{0b101: OpCSRRWI, 0b110: OpCSRRSI, 0b111: OpCSRRCI}
		inst.Format = FormatSystem
		inst.Op = ops[funct3(word)]
		inst.Rd = rdField(word)
		inst.RdValid = true
		inst.Zimm = rs1Field(word)
		inst.Csr = uint16((word >> 20) & 0xFFF)
	}
}
