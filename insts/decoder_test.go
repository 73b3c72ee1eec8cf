package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/5iri/synapse32/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Register-immediate ALU", func() {
		// ADDI x1, x0, 10 -> 0x00A00093
		// Encoding: imm12=10, rs1=0, funct3=000, rd=1
		It("should decode ADDI x1, x0, 10", func() {
			inst := decoder.Decode(0x00A00093)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Format).To(Equal(insts.FormatI))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.RdValid).To(BeTrue())
			Expect(inst.Rs1Valid).To(BeTrue())
			Expect(inst.Rs2Valid).To(BeFalse())
			Expect(inst.Imm).To(Equal(uint32(10)))
		})

		// ADDI x1, x0, -1 -> 0xFFF00093
		It("should sign-extend negative I-immediates", func() {
			inst := decoder.Decode(0xFFF00093)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Imm).To(Equal(uint32(0xFFFFFFFF)))
		})

		// The canonical NOP is ADDI x0, x0, 0.
		It("should decode the NOP word", func() {
			inst := decoder.Decode(insts.NOPWord)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(0)))
		})

		// SLLI x2, x3, 4 -> 0x00419113
		It("should decode SLLI with the shamt masked to five bits", func() {
			inst := decoder.Decode(0x00419113)

			Expect(inst.Op).To(Equal(insts.OpSLLI))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rs1).To(Equal(uint8(3)))
			Expect(inst.Imm).To(Equal(uint32(4)))
		})

		// SRAI x2, x3, 4 -> 0x4041D113 (funct7=0100000)
		It("should decode SRAI and not leak funct7 into the shamt", func() {
			inst := decoder.Decode(0x4041D113)

			Expect(inst.Op).To(Equal(insts.OpSRAI))
			Expect(inst.Imm).To(Equal(uint32(4)))
		})

		// SRLI x2, x3, 4 -> 0x0041D113
		It("should distinguish SRLI from SRAI", func() {
			inst := decoder.Decode(0x0041D113)

			Expect(inst.Op).To(Equal(insts.OpSRLI))
		})
	})

	Describe("Register-register ALU", func() {
		// ADD x3, x1, x2 -> 0x002081B3
		It("should decode ADD x3, x1, x2", func() {
			inst := decoder.Decode(0x002081B3)

			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Format).To(Equal(insts.FormatR))
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.RdValid).To(BeTrue())
			Expect(inst.Rs1Valid).To(BeTrue())
			Expect(inst.Rs2Valid).To(BeTrue())
		})

		// SUB x3, x1, x2 -> 0x402081B3 (funct7=0100000)
		It("should decode SUB x3, x1, x2", func() {
			inst := decoder.Decode(0x402081B3)

			Expect(inst.Op).To(Equal(insts.OpSUB))
		})

		// SLTU x5, x6, x7 -> 0x007332B3
		It("should decode SLTU x5, x6, x7", func() {
			inst := decoder.Decode(0x007332B3)

			Expect(inst.Op).To(Equal(insts.OpSLTU))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Rs1).To(Equal(uint8(6)))
			Expect(inst.Rs2).To(Equal(uint8(7)))
		})

		// SRA x1, x2, x3 -> 0x403150B3
		It("should decode SRA x1, x2, x3", func() {
			inst := decoder.Decode(0x403150B3)

			Expect(inst.Op).To(Equal(insts.OpSRA))
		})
	})

	Describe("Loads and stores", func() {
		// LW x1, 0(x0) -> 0x00002083
		It("should decode LW x1, 0(x0)", func() {
			inst := decoder.Decode(0x00002083)

			Expect(inst.Op).To(Equal(insts.OpLW))
			Expect(inst.Format).To(Equal(insts.FormatI))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(0)))
			Expect(inst.IsLoad()).To(BeTrue())
		})

		// LBU x4, 3(x2) -> 0x00314203
		It("should decode LBU x4, 3(x2)", func() {
			inst := decoder.Decode(0x00314203)

			Expect(inst.Op).To(Equal(insts.OpLBU))
			Expect(inst.Rd).To(Equal(uint8(4)))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(uint32(3)))
		})

		// SW x1, 0(x0) -> 0x00102023
		It("should decode SW x1, 0(x0) with no destination", func() {
			inst := decoder.Decode(0x00102023)

			Expect(inst.Op).To(Equal(insts.OpSW))
			Expect(inst.Format).To(Equal(insts.FormatS))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Rs2).To(Equal(uint8(1)))
			Expect(inst.RdValid).To(BeFalse())
			Expect(inst.IsStore()).To(BeTrue())
		})

		// SH x5, -4(x2) -> 0xFE511E23
		It("should sign-extend negative S-immediates", func() {
			inst := decoder.Decode(0xFE511E23)

			Expect(inst.Op).To(Equal(insts.OpSH))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Rs2).To(Equal(uint8(5)))
			Expect(inst.Imm).To(Equal(uint32(0xFFFFFFFC)))
		})
	})

	Describe("Branches and jumps", func() {
		// BEQ x1, x2, +8 -> 0x00208463
		It("should decode BEQ x1, x2, +8", func() {
			inst := decoder.Decode(0x00208463)

			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.Format).To(Equal(insts.FormatB))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.RdValid).To(BeFalse())
			Expect(inst.Imm).To(Equal(uint32(8)))
			Expect(inst.IsBranch()).To(BeTrue())
		})

		// BNE x1, x2, -4 -> 0xFE209EE3
		It("should sign-extend negative B-immediates", func() {
			inst := decoder.Decode(0xFE209EE3)

			Expect(inst.Op).To(Equal(insts.OpBNE))
			Expect(inst.Imm).To(Equal(uint32(0xFFFFFFFC)))
		})

		// BGEU x3, x4, +16 -> 0x0041F863
		It("should decode BGEU x3, x4, +16", func() {
			inst := decoder.Decode(0x0041F863)

			Expect(inst.Op).To(Equal(insts.OpBGEU))
			Expect(inst.Imm).To(Equal(uint32(16)))
		})

		// JAL x1, +8 -> 0x008000EF
		It("should decode JAL x1, +8", func() {
			inst := decoder.Decode(0x008000EF)

			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.Format).To(Equal(insts.FormatJ))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1Valid).To(BeFalse())
			Expect(inst.Rs2Valid).To(BeFalse())
			Expect(inst.Imm).To(Equal(uint32(8)))
		})

		// JAL x0, -8 -> 0xFF9FF06F
		It("should sign-extend negative J-immediates", func() {
			inst := decoder.Decode(0xFF9FF06F)

			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.Imm).To(Equal(uint32(0xFFFFFFF8)))
		})

		// JALR x1, 4(x2) -> 0x004100E7
		It("should decode JALR x1, 4(x2)", func() {
			inst := decoder.Decode(0x004100E7)

			Expect(inst.Op).To(Equal(insts.OpJALR))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(uint32(4)))
		})
	})

	Describe("Upper immediates", func() {
		// LUI x5, 0x12345 -> 0x123452B7
		It("should decode LUI x5, 0x12345", func() {
			inst := decoder.Decode(0x123452B7)

			Expect(inst.Op).To(Equal(insts.OpLUI))
			Expect(inst.Format).To(Equal(insts.FormatU))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Rs1Valid).To(BeFalse())
			Expect(inst.Imm).To(Equal(uint32(0x12345000)))
		})

		// AUIPC x6, 0x1 -> 0x00001317
		It("should decode AUIPC x6, 0x1", func() {
			inst := decoder.Decode(0x00001317)

			Expect(inst.Op).To(Equal(insts.OpAUIPC))
			Expect(inst.Rd).To(Equal(uint8(6)))
			Expect(inst.Imm).To(Equal(uint32(0x1000)))
		})
	})

	Describe("System instructions", func() {
		// CSRRW x2, mscratch, x1 -> 0x34009173
		It("should decode CSRRW x2, mscratch, x1", func() {
			inst := decoder.Decode(0x34009173)

			Expect(inst.Op).To(Equal(insts.OpCSRRW))
			Expect(inst.Format).To(Equal(insts.FormatSystem))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Csr).To(Equal(uint16(0x340)))
			Expect(inst.IsCsr()).To(BeTrue())
		})

		// CSRRS x6, mscratch, x1 -> 0x3400A373
		It("should decode CSRRS x6, mscratch, x1", func() {
			inst := decoder.Decode(0x3400A373)

			Expect(inst.Op).To(Equal(insts.OpCSRRS))
			Expect(inst.Rd).To(Equal(uint8(6)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
		})

		// CSRRC x10, mscratch, x3 -> 0x3401B573
		It("should decode CSRRC x10, mscratch, x3", func() {
			inst := decoder.Decode(0x3401B573)

			Expect(inst.Op).To(Equal(insts.OpCSRRC))
			Expect(inst.Rd).To(Equal(uint8(10)))
			Expect(inst.Rs1).To(Equal(uint8(3)))
		})

		// CSRRWI x12, mscratch, 5 -> 0x3402D673
		It("should decode CSRRWI with a zimm instead of rs1", func() {
			inst := decoder.Decode(0x3402D673)

			Expect(inst.Op).To(Equal(insts.OpCSRRWI))
			Expect(inst.Rd).To(Equal(uint8(12)))
			Expect(inst.Rs1Valid).To(BeFalse())
			Expect(inst.Zimm).To(Equal(uint8(5)))
			Expect(inst.Csr).To(Equal(uint16(0x340)))
		})

		// CSRRCI x16, mscratch, 1 -> 0x3400F873
		It("should decode CSRRCI x16, mscratch, 1", func() {
			inst := decoder.Decode(0x3400F873)

			Expect(inst.Op).To(Equal(insts.OpCSRRCI))
			Expect(inst.Zimm).To(Equal(uint8(1)))
		})

		// ECALL -> 0x00000073
		It("should decode ECALL with no register fields", func() {
			inst := decoder.Decode(0x00000073)

			Expect(inst.Op).To(Equal(insts.OpECALL))
			Expect(inst.RdValid).To(BeFalse())
			Expect(inst.Rs1Valid).To(BeFalse())
			Expect(inst.Rs2Valid).To(BeFalse())
		})

		// EBREAK -> 0x00100073
		It("should decode EBREAK", func() {
			inst := decoder.Decode(0x00100073)

			Expect(inst.Op).To(Equal(insts.OpEBREAK))
		})

		// MRET -> 0x30200073
		It("should decode MRET", func() {
			inst := decoder.Decode(0x30200073)

			Expect(inst.Op).To(Equal(insts.OpMRET))
		})
	})

	Describe("Unrecognized encodings", func() {
		It("should decode an unknown opcode to a fully-invalid instruction", func() {
			inst := decoder.Decode(0xFFFFFFFF)

			Expect(inst.Op).To(Equal(insts.OpUnknown))
			Expect(inst.Format).To(Equal(insts.FormatUnknown))
			Expect(inst.RdValid).To(BeFalse())
			Expect(inst.Rs1Valid).To(BeFalse())
			Expect(inst.Rs2Valid).To(BeFalse())
		})

		// FENCE (0x0000000F) is outside the implemented subset.
		It("should treat FENCE as unrecognized rather than an error", func() {
			inst := decoder.Decode(0x0000000F)

			Expect(inst.Op).To(Equal(insts.OpUnknown))
		})

		// Branch funct3 010 is reserved.
		It("should reject reserved branch funct3 values", func() {
			inst := decoder.Decode(0x0020A463)

			Expect(inst.Op).To(Equal(insts.OpUnknown))
			Expect(inst.Rs1Valid).To(BeFalse())
		})
	})
})
