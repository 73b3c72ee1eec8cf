package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/insts"
)

var _ = Describe("ALU", func() {
	var alu *emu.ALU

	BeforeEach(func() {
		alu = emu.NewALU()
	})

	It("should add and subtract with wraparound", func() {
		Expect(alu.Execute(insts.OpADD, 5, 7)).To(Equal(uint32(12)))
		Expect(alu.Execute(insts.OpSUB, 5, 7)).To(Equal(uint32(0xFFFFFFFE)))
		Expect(alu.Execute(insts.OpADD, 0xFFFFFFFF, 1)).To(Equal(uint32(0)))
	})

	It("should distinguish logical from arithmetic right shift", func() {
		Expect(alu.Execute(insts.OpSRL, 0x80000000, 4)).To(Equal(uint32(0x08000000)))
		Expect(alu.Execute(insts.OpSRA, 0x80000000, 4)).To(Equal(uint32(0xF8000000)))
	})

	It("should use only the low five bits of the shift amount", func() {
		Expect(alu.Execute(insts.OpSLL, 1, 33)).To(Equal(uint32(2)))
		Expect(alu.Execute(insts.OpSRLI, 4, 33)).To(Equal(uint32(2)))
	})

	It("should compare signed for SLT and unsigned for SLTU", func() {
		Expect(alu.Execute(insts.OpSLT, 0xFFFFFFFF, 1)).To(Equal(uint32(1)))  // -1 < 1
		Expect(alu.Execute(insts.OpSLTU, 0xFFFFFFFF, 1)).To(Equal(uint32(0))) // big > 1
		Expect(alu.Execute(insts.OpSLTI, 3, 7)).To(Equal(uint32(1)))
	})

	It("should implement the logical operations", func() {
		Expect(alu.Execute(insts.OpAND, 0b1100, 0b1010)).To(Equal(uint32(0b1000)))
		Expect(alu.Execute(insts.OpOR, 0b1100, 0b1010)).To(Equal(uint32(0b1110)))
		Expect(alu.Execute(insts.OpXOR, 0b1100, 0b1010)).To(Equal(uint32(0b0110)))
	})

	It("should return zero for unhandled operations", func() {
		Expect(alu.Execute(insts.OpUnknown, 123, 456)).To(Equal(uint32(0)))
	})

	Describe("BranchTaken", func() {
		It("should compare signed for BLT/BGE", func() {
			Expect(alu.BranchTaken(insts.OpBLT, 0xFFFFFFFF, 0)).To(BeTrue()) // -1 < 0
			Expect(alu.BranchTaken(insts.OpBGE, 0, 0xFFFFFFFF)).To(BeTrue())
		})

		It("should compare unsigned for BLTU/BGEU", func() {
			Expect(alu.BranchTaken(insts.OpBLTU, 0xFFFFFFFF, 0)).To(BeFalse())
			Expect(alu.BranchTaken(insts.OpBGEU, 0xFFFFFFFF, 0)).To(BeTrue())
		})

		It("should evaluate equality", func() {
			Expect(alu.BranchTaken(insts.OpBEQ, 42, 42)).To(BeTrue())
			Expect(alu.BranchTaken(insts.OpBNE, 42, 42)).To(BeFalse())
		})
	})
})

var _ = Describe("RegFile", func() {
	It("should hardwire x0 to zero", func() {
		rf := &emu.RegFile{}
		rf.WriteReg(0, 0xDEADBEEF)
		Expect(rf.ReadReg(0)).To(Equal(uint32(0)))
	})

	It("should store and return other registers", func() {
		rf := &emu.RegFile{}
		rf.WriteReg(5, 1234)
		Expect(rf.ReadReg(5)).To(Equal(uint32(1234)))
	})
})

var _ = Describe("Memory", func() {
	var mem *emu.Memory

	BeforeEach(func() {
		mem = emu.NewMemory()
	})

	It("should read zero from unbacked addresses", func() {
		Expect(mem.Read32(0x1000)).To(Equal(uint32(0)))
	})

	It("should be little-endian", func() {
		mem.Write32(0x100, 0x11223344)
		Expect(mem.Read8(0x100)).To(Equal(uint8(0x44)))
		Expect(mem.Read8(0x103)).To(Equal(uint8(0x11)))
		Expect(mem.Read16(0x102)).To(Equal(uint16(0x1122)))
	})

	It("should handle accesses spanning page boundaries", func() {
		mem.Write32(0xFFE, 0xAABBCCDD)
		Expect(mem.Read32(0xFFE)).To(Equal(uint32(0xAABBCCDD)))
	})

	It("should load word images in program order", func() {
		mem.LoadWords(0, []uint32{0x00A00093, 0x00000013})
		Expect(mem.Read32(0)).To(Equal(uint32(0x00A00093)))
		Expect(mem.Read32(4)).To(Equal(uint32(0x00000013)))
	})
})
