package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/insts"
	"github.com/5iri/synapse32/timing/pipeline"
)

var _ = Describe("HazardUnit", func() {
	var (
		hazard  *pipeline.HazardUnit
		decoder *insts.Decoder
		idex    pipeline.IDEXRegister
		exmem   pipeline.EXMEMRegister
		memwb   pipeline.MEMWBRegister
	)

	BeforeEach(func() {
		hazard = pipeline.NewHazardUnit()
		decoder = insts.NewDecoder()
		idex = pipeline.IDEXRegister{}
		exmem = pipeline.EXMEMRegister{}
		memwb = pipeline.MEMWBRegister{}
	})

	// add x3, x1, x2 sitting in the EX stage.
	setupConsumer := func() {
		inst := decoder.Decode(0x002081B3) // ADD x3, x1, x2
		idex = pipeline.IDEXRegister{
			Valid: true,
			Inst:  inst,
			Rd:    3, Rs1: 1, Rs2: 2,
			RegWrite: true,
		}
	}

	Describe("forwarding detection", func() {
		It("should not forward for an empty pipeline", func() {
			setupConsumer()
			result := hazard.DetectForwarding(&idex, &exmem, &memwb)

			Expect(result.ForwardRs1).To(Equal(pipeline.ForwardNone))
			Expect(result.ForwardRs2).To(Equal(pipeline.ForwardNone))
		})

		It("should forward from EX/MEM for a matching destination", func() {
			setupConsumer()
			exmem = pipeline.EXMEMRegister{Valid: true, Rd: 1, RegWrite: true}

			result := hazard.DetectForwarding(&idex, &exmem, &memwb)

			Expect(result.ForwardRs1).To(Equal(pipeline.ForwardFromEXMEM))
			Expect(result.ForwardRs2).To(Equal(pipeline.ForwardNone))
		})

		It("should forward from MEM/WB when EX/MEM does not match", func() {
			setupConsumer()
			memwb = pipeline.MEMWBRegister{Valid: true, Rd: 2, RegWrite: true}

			result := hazard.DetectForwarding(&idex, &exmem, &memwb)

			Expect(result.ForwardRs2).To(Equal(pipeline.ForwardFromMEMWB))
		})

		It("should give the memory stage priority over writeback", func() {
			setupConsumer()
			exmem = pipeline.EXMEMRegister{Valid: true, Rd: 1, RegWrite: true}
			memwb = pipeline.MEMWBRegister{Valid: true, Rd: 1, RegWrite: true}

			result := hazard.DetectForwarding(&idex, &exmem, &memwb)

			Expect(result.ForwardRs1).To(Equal(pipeline.ForwardFromEXMEM))
		})

		It("should never forward into x0", func() {
			inst := decoder.Decode(0x00000013) // ADDI x0, x0, 0
			idex = pipeline.IDEXRegister{Valid: true, Inst: inst}
			exmem = pipeline.EXMEMRegister{Valid: true, Rd: 0, RegWrite: true}

			result := hazard.DetectForwarding(&idex, &exmem, &memwb)

			Expect(result.ForwardRs1).To(Equal(pipeline.ForwardNone))
		})

		It("should not forward from a load still in the memory stage", func() {
			setupConsumer()
			exmem = pipeline.EXMEMRegister{
				Valid: true, Rd: 1, RegWrite: true, MemRead: true, MemToReg: true,
			}

			result := hazard.DetectForwarding(&idex, &exmem, &memwb)

			Expect(result.ForwardRs1).To(Equal(pipeline.ForwardNone))
		})

		It("should use memory data when forwarding a load from MEM/WB", func() {
			memwb = pipeline.MEMWBRegister{
				Valid: true, Rd: 1, RegWrite: true, MemToReg: true,
				ALUResult: 0x100, MemData: 42,
			}

			value := hazard.GetForwardedValue(
				pipeline.ForwardFromMEMWB, 0, &exmem, &memwb)

			Expect(value).To(Equal(uint32(42)))
		})
	})

	Describe("load-use hazard detection", func() {
		BeforeEach(func() {
			inst := decoder.Decode(0x0000A083) // LW x1, 0(x1)
			idex = pipeline.IDEXRegister{
				Valid: true, Inst: inst,
				Rd: 1, MemRead: true, RegWrite: true, MemToReg: true,
			}
		})

		It("should stall a consumer of the load destination", func() {
			Expect(hazard.DetectLoadUseHazard(&idex, 1, true, 2, true)).To(BeTrue())
			Expect(hazard.DetectLoadUseHazard(&idex, 2, true, 1, true)).To(BeTrue())
		})

		It("should not stall an independent instruction", func() {
			Expect(hazard.DetectLoadUseHazard(&idex, 2, true, 3, true)).To(BeFalse())
		})

		It("should ignore source fields the format does not use", func() {
			Expect(hazard.DetectLoadUseHazard(&idex, 1, false, 1, false)).To(BeFalse())
		})

		It("should not stall on a load into x0", func() {
			idex.Rd = 0
			Expect(hazard.DetectLoadUseHazard(&idex, 0, true, 0, true)).To(BeFalse())
		})

		It("should not stall behind a non-load", func() {
			idex.MemRead = false
			Expect(hazard.DetectLoadUseHazard(&idex, 1, true, 2, true)).To(BeFalse())
		})
	})

	Describe("store-to-load forwarding detection", func() {
		load := func(word, addr uint32) {
			exmem = pipeline.EXMEMRegister{
				Valid: true, MemRead: true,
				Inst: decoder.Decode(word), ALUResult: addr,
			}
		}
		store := func(word, addr uint32) {
			memwb = pipeline.MEMWBRegister{
				Valid: true, IsStore: true,
				Inst: decoder.Decode(word), StoreAddr: addr,
			}
		}

		It("should fire for a load behind a store to the same address", func() {
			load(0x00002103, 0x100)  // lw x2, 0(x0)
			store(0x00102023, 0x100) // sw x1, 0(x0)

			Expect(hazard.DetectStoreLoadForward(&exmem, &memwb)).To(BeTrue())
		})

		It("should fire for a narrower load inside the stored word", func() {
			load(0x00005103, 0x102)  // lhu x2, 0(x0)
			store(0x00102023, 0x100) // sw x1, 0(x0)

			Expect(hazard.DetectStoreLoadForward(&exmem, &memwb)).To(BeTrue())
		})

		It("should fire for a wider load covering a narrow store", func() {
			load(0x00002103, 0x100)  // lw x2, 0(x0)
			store(0x00100023, 0x103) // sb x1, 0(x0)

			Expect(hazard.DetectStoreLoadForward(&exmem, &memwb)).To(BeTrue())
		})

		It("should not fire for disjoint byte ranges", func() {
			load(0x00002103, 0x104)  // lw x2, 0(x0)
			store(0x00102023, 0x100) // sw x1, 0(x0)
			Expect(hazard.DetectStoreLoadForward(&exmem, &memwb)).To(BeFalse())

			load(0x00004103, 0x102)  // lbu x2, 0(x0)
			store(0x00100023, 0x103) // sb x1, 0(x0)
			Expect(hazard.DetectStoreLoadForward(&exmem, &memwb)).To(BeFalse())
		})

		It("should not fire without a store in the writeback-bound latch", func() {
			load(0x00002103, 0x100) // lw x2, 0(x0)
			memwb = pipeline.MEMWBRegister{
				Valid: true,
				Inst:  decoder.Decode(0x00002103), StoreAddr: 0x100,
			}

			Expect(hazard.DetectStoreLoadForward(&exmem, &memwb)).To(BeFalse())
		})
	})

	Describe("stall computation", func() {
		It("should stall and bubble on a load-use hazard", func() {
			result := hazard.ComputeStalls(true, false)

			Expect(result.StallIF).To(BeTrue())
			Expect(result.StallID).To(BeTrue())
			Expect(result.InsertBubbleEX).To(BeTrue())
			Expect(result.FlushIF).To(BeFalse())
		})

		It("should flush on a redirect", func() {
			result := hazard.ComputeStalls(false, true)

			Expect(result.FlushIF).To(BeTrue())
			Expect(result.FlushID).To(BeTrue())
			Expect(result.StallIF).To(BeFalse())
		})

		It("should let a redirect override a concurrent stall", func() {
			result := hazard.ComputeStalls(true, true)

			Expect(result.FlushIF).To(BeTrue())
			Expect(result.StallIF).To(BeFalse())
			Expect(result.InsertBubbleEX).To(BeFalse())
		})
	})

	Describe("writeback bypass", func() {
		It("should pick up the value committing this cycle", func() {
			memwb = pipeline.MEMWBRegister{
				Valid: true, Rd: 5, RegWrite: true, ALUResult: 7,
			}

			Expect(hazard.WritebackBypass(5, 0, &memwb)).To(Equal(uint32(7)))
		})

		It("should keep the register file value otherwise", func() {
			memwb = pipeline.MEMWBRegister{
				Valid: true, Rd: 6, RegWrite: true, ALUResult: 7,
			}

			Expect(hazard.WritebackBypass(5, 3, &memwb)).To(Equal(uint32(3)))
		})

		It("should always read x0 as zero", func() {
			memwb = pipeline.MEMWBRegister{
				Valid: true, Rd: 0, RegWrite: true, ALUResult: 7,
			}

			Expect(hazard.WritebackBypass(0, 9, &memwb)).To(Equal(uint32(0)))
		})
	})
})

var _ = Describe("MemoryPort", func() {
	It("should apply a store one edge after it is accepted", func() {
		memory := emu.NewMemory()
		port := pipeline.NewMemoryPort(memory)

		_, busy := port.Access(pipeline.PortRequest{
			WriteAddr:   0x100,
			WriteData:   99,
			ByteEnable:  0b1111,
			WriteEnable: true,
		})
		Expect(busy).To(BeFalse())

		port.Tick()
		Expect(memory.Read32(0x100)).To(Equal(uint32(0)), "not visible yet")

		port.Tick()
		Expect(memory.Read32(0x100)).To(Equal(uint32(99)))
	})

	It("should honor the lane byte-enable mask", func() {
		memory := emu.NewMemory()
		memory.Write32(0x100, 0x11223344)
		port := pipeline.NewMemoryPort(memory)

		// SB of 0xAB into byte 1 of the word.
		port.Access(pipeline.PortRequest{
			WriteAddr:   0x100,
			WriteData:   0xAB << 8,
			ByteEnable:  0b0010,
			WriteEnable: true,
		})
		port.Tick()
		port.Tick()

		Expect(memory.Read32(0x100)).To(Equal(uint32(0x1122AB44)))
	})

	It("should sign- and zero-extend reads per load type", func() {
		memory := emu.NewMemory()
		memory.Write32(0x100, 0x0000_80FF)
		port := pipeline.NewMemoryPort(memory)

		read := func(loadType uint8, addr uint32) uint32 {
			resp, busy := port.Access(pipeline.PortRequest{
				ReadAddr:   addr,
				LoadType:   loadType,
				ReadEnable: true,
			})
			Expect(busy).To(BeFalse())
			return resp.ReadData
		}

		Expect(read(pipeline.LoadByte, 0x100)).To(Equal(uint32(0xFFFFFFFF)))
		Expect(read(pipeline.LoadByteU, 0x100)).To(Equal(uint32(0xFF)))
		Expect(read(pipeline.LoadHalf, 0x100)).To(Equal(uint32(0xFFFF80FF)))
		Expect(read(pipeline.LoadHalfU, 0x100)).To(Equal(uint32(0x80FF)))
		Expect(read(pipeline.LoadWord, 0x100)).To(Equal(uint32(0x80FF)))
	})

	It("should serve reads inside the store window from the accepted store", func() {
		memory := emu.NewMemory()
		memory.Write32(0x100, 0x11223344)
		port := pipeline.NewMemoryPort(memory)

		// SH of 0x04D2 into the low half of the word.
		port.Access(pipeline.PortRequest{
			WriteAddr:   0x100,
			WriteData:   0x04D2,
			ByteEnable:  0b0011,
			WriteEnable: true,
		})
		port.Tick()

		// Backing memory still holds the old word.
		Expect(memory.Read32(0x100)).To(Equal(uint32(0x11223344)))

		read := func(loadType uint8, addr uint32) uint32 {
			resp, busy := port.Access(pipeline.PortRequest{
				ReadAddr:   addr,
				LoadType:   loadType,
				ReadEnable: true,
			})
			Expect(busy).To(BeFalse())
			return resp.ReadData
		}

		// Stored bytes merge with untouched backing bytes.
		Expect(read(pipeline.LoadWord, 0x100)).To(Equal(uint32(0x112204D2)))
		Expect(read(pipeline.LoadHalfU, 0x100)).To(Equal(uint32(0x04D2)))
		Expect(read(pipeline.LoadHalfU, 0x102)).To(Equal(uint32(0x1122)))
		Expect(read(pipeline.LoadByteU, 0x101)).To(Equal(uint32(0x04)))

		port.Tick()
		Expect(memory.Read32(0x100)).To(Equal(uint32(0x112204D2)))
	})
})
