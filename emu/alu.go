package emu

import "github.com/5iri/synapse32/insts"

// ALU implements the RV32I integer operations as a pure function of two
// operands, keyed by the decoded operation. Register-immediate operations
// share entries with their register-register counterparts; the caller
// supplies the immediate as the second operand.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Execute computes op(a, b). Shift amounts use only the low five bits of
// b. Unhandled operations return 0.
func (a *ALU) Execute(op insts.Op, x, y uint32) uint32 {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return x + y
	case insts.OpSUB:
		return x - y
	case insts.OpSLL, insts.OpSLLI:
		return x << (y & 0x1F)
	case insts.OpSLT, insts.OpSLTI:
		if int32(x) < int32(y) {
			return 1
		}
		return 0
	case insts.OpSLTU, insts.OpSLTIU:
		if x < y {
			return 1
		}
		return 0
	case insts.OpXOR, insts.OpXORI:
		return x ^ y
	case insts.OpSRL, insts.OpSRLI:
		return x >> (y & 0x1F)
	case insts.OpSRA, insts.OpSRAI:
		return uint32(int32(x) >> (y & 0x1F))
	case insts.OpOR, insts.OpORI:
		return x | y
	case insts.OpAND, insts.OpANDI:
		return x & y
	default:
		return 0
	}
}

// BranchTaken evaluates a conditional branch: signed compares for
// BLT/BGE, unsigned for BLTU/BGEU.
func (a *ALU) BranchTaken(op insts.Op, x, y uint32) bool {
	switch op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return int32(x) < int32(y)
	case insts.OpBGE:
		return int32(x) >= int32(y)
	case insts.OpBLTU:
		return x < y
	case insts.OpBGEU:
		return x >= y
	default:
		return false
	}
}
