// Package insts provides RV32I instruction definitions and decoding.
//
// This package implements decoding of RV32I machine code into structured
// instruction representations. It supports:
//   - Integer register-register and register-immediate operations
//   - Loads and stores of byte, halfword, and word width
//   - Conditional branches, JAL, JALR, LUI, AUIPC
//   - System instructions: CSRRW/CSRRS/CSRRC (and immediate forms),
//     ECALL, EBREAK, MRET
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00A00093) // ADDI x1, x0, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
