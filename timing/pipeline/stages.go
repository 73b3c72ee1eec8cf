package pipeline

import (
	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/insts"
)

// FetchStage reads instruction words from the instruction memory, which
// is externally combinational on the current PC.
type FetchStage struct {
	memory *emu.Memory
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory) *FetchStage {
	return &FetchStage{memory: memory}
}

// Fetch reads the instruction at the given PC.
func (s *FetchStage) Fetch(pc uint32) uint32 {
	return s.memory.Read32(pc)
}

// DecodeStage decodes instruction words and reads register operands.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
	hazard  *HazardUnit
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile, hazard *HazardUnit) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
		hazard:  hazard,
	}
}

// DecodeResult holds the result of the decode stage.
type DecodeResult struct {
	Inst     *insts.Instruction
	Rs1Value uint32
	Rs2Value uint32

	// Destination and source registers.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Control signals.
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool
	IsBranch bool
}

// Decode decodes the instruction word and reads register operands. The
// register file's same-cycle write-before-read ordering means a read
// conflicting with the write committing from memwb this cycle would see
// the stale value, so the writeback bypass is applied here.
func (s *DecodeStage) Decode(word uint32, memwb *MEMWBRegister) DecodeResult {
	inst := s.decoder.Decode(word)
	result := DecodeResult{
		Inst: inst,
		Rd:   inst.Rd,
		Rs1:  inst.Rs1,
		Rs2:  inst.Rs2,
	}

	if inst.Rs1Valid {
		result.Rs1Value = s.hazard.WritebackBypass(
			inst.Rs1, s.regFile.ReadReg(inst.Rs1), memwb)
	}
	if inst.Rs2Valid {
		result.Rs2Value = s.hazard.WritebackBypass(
			inst.Rs2, s.regFile.ReadReg(inst.Rs2), memwb)
	}

	result.MemRead = inst.IsLoad()
	result.MemWrite = inst.IsStore()
	result.MemToReg = inst.IsLoad()
	result.IsBranch = inst.IsBranch()
	result.RegWrite = inst.RdValid && inst.Rd != 0

	return result
}

// ExecuteStage performs ALU operations, branch evaluation, and the CSR
// and trap handshake.
type ExecuteStage struct {
	alu *emu.ALU
	csr *emu.CsrFile
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(csr *emu.CsrFile) *ExecuteStage {
	return &ExecuteStage{
		alu: emu.NewALU(),
		csr: csr,
	}
}

// ExecuteResult holds the result of the execute stage.
type ExecuteResult struct {
	ALUResult  uint32
	StoreValue uint32

	// Control-flow redirect (taken branch, jump, or trap).
	Redirect       bool
	RedirectTarget uint32

	// CSR commit request for this cycle, at most one event.
	CsrEvent  bool
	CsrUpdate emu.CsrUpdate

	// Halt marks an EBREAK in halt-on-ebreak mode.
	Halt bool
}

// Execute dispatches the instruction in ID/EX on its operation tag,
// using the forwarded operand values.
func (s *ExecuteStage) Execute(
	idex *IDEXRegister,
	rs1Value, rs2Value uint32,
	haltOnEbreak bool,
) ExecuteResult {
	result := ExecuteResult{StoreValue: rs2Value}
	inst := idex.Inst
	if inst == nil {
		return result
	}

	switch {
	case inst.Format == insts.FormatR:
		result.ALUResult = s.alu.Execute(inst.Op, rs1Value, rs2Value)

	case inst.Op >= insts.OpADDI && inst.Op <= insts.OpSRAI:
		result.ALUResult = s.alu.Execute(inst.Op, rs1Value, inst.Imm)

	case inst.IsLoad(), inst.IsStore():
		// Effective address.
		result.ALUResult = rs1Value + inst.Imm

	case inst.IsBranch():
		if s.alu.BranchTaken(inst.Op, rs1Value, rs2Value) {
			result.Redirect = true
			result.RedirectTarget = idex.PC + inst.Imm
		}

	case inst.Op == insts.OpJAL:
		result.ALUResult = idex.PC + 4
		result.Redirect = true
		result.RedirectTarget = idex.PC + inst.Imm

	case inst.Op == insts.OpJALR:
		result.ALUResult = idex.PC + 4
		result.Redirect = true
		result.RedirectTarget = (rs1Value + inst.Imm) &^ 1

	case inst.Op == insts.OpLUI:
		result.ALUResult = inst.Imm

	case inst.Op == insts.OpAUIPC:
		result.ALUResult = idex.PC + inst.Imm

	case inst.IsCsr():
		s.executeCsr(inst, rs1Value, &result)

	case inst.Op == insts.OpECALL:
		result.CsrEvent = true
		result.CsrUpdate = emu.CsrUpdate{Ecall: true, TrapPC: idex.PC}
		result.Redirect = true
		result.RedirectTarget = s.csr.TrapTarget()

	case inst.Op == insts.OpEBREAK:
		if haltOnEbreak {
			result.Halt = true
			break
		}
		result.CsrEvent = true
		result.CsrUpdate = emu.CsrUpdate{Ebreak: true, TrapPC: idex.PC}
		result.Redirect = true
		result.RedirectTarget = s.csr.TrapTarget()

	case inst.Op == insts.OpMRET:
		result.CsrEvent = true
		result.CsrUpdate = emu.CsrUpdate{Mret: true}
		result.Redirect = true
		result.RedirectTarget = s.csr.Mepc()
	}

	return result
}

// executeCsr performs the CSR read half of the handshake and prepares
// the write for commit. rd receives the old CSR value; the set/clear
// forms skip the write when the mask operand is x0/zero.
func (s *ExecuteStage) executeCsr(
	inst *insts.Instruction,
	rs1Value uint32,
	result *ExecuteResult,
) {
	old := s.csr.Read(inst.Csr)
	result.ALUResult = old

	operand := rs1Value
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
		result.CsrEvent = true
		result.CsrUpdate = emu.CsrUpdate{
			WriteEnable: true,
			WriteAddr:   inst.Csr,
			WriteValue:  value,
		}
	}
}

// MemoryStage drives the external data port, deriving enables, the
// byte-enable mask, and the load-type code from the operation tag. It
// issues exactly one access (read or write, never both) per cycle.
type MemoryStage struct {
	port DataPort
}

// NewMemoryStage creates a new memory stage over the given data port.
func NewMemoryStage(port DataPort) *MemoryStage {
	return &MemoryStage{port: port}
}

// MemoryResult holds the result of the memory stage.
type MemoryResult struct {
	MemData uint32
}

// Access issues the memory access for the instruction in EX/MEM. The
// second return value reports that the port is busy and the stage must
// stall.
func (s *MemoryStage) Access(exmem *EXMEMRegister) (MemoryResult, bool) {
	result := MemoryResult{}

	if !exmem.Valid || exmem.Inst == nil {
		return result, false
	}

	switch {
	case exmem.MemRead:
		resp, busy := s.port.Access(PortRequest{
			ReadAddr:   exmem.ALUResult,
			LoadType:   loadTypeFor(exmem.Inst.Op),
			ReadEnable: true,
		})
		if busy {
			return result, true
		}
		result.MemData = resp.ReadData

	case exmem.MemWrite:
		addr := exmem.ALUResult
		lane := addr & 3
		_, busy := s.port.Access(PortRequest{
			WriteAddr:   addr &^ 3,
			WriteData:   exmem.StoreValue << (8 * lane),
			ByteEnable:  byteEnableFor(exmem.Inst.Op) << lane,
			WriteEnable: true,
		})
		if busy {
			return result, true
		}
	}

	return result, false
}

// loadTypeFor maps a load operation to its port load-type code.
func loadTypeFor(op insts.Op) uint8 {
	switch op {
	case insts.OpLB:
		return LoadByte
	case insts.OpLH:
		return LoadHalf
	case insts.OpLW:
		return LoadWord
	case insts.OpLBU:
		return LoadByteU
	case insts.OpLHU:
		return LoadHalfU
	default:
		return LoadWord
	}
}

// storeSize returns a store operation's access width in bytes.
func storeSize(op insts.Op) int {
	switch op {
	case insts.OpSB:
		return 1
	case insts.OpSH:
		return 2
	default:
		return 4
	}
}

// byteEnableFor maps a store operation to its unshifted byte-enable mask.
func byteEnableFor(op insts.Op) uint8 {
	switch op {
	case insts.OpSB:
		return 0b0001
	case insts.OpSH:
		return 0b0011
	default:
		return 0b1111
	}
}

// WritebackStage commits results to the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback selects between the ALU result and memory data and writes
// the register file. x0 is never written.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) {
	if !memwb.Valid || !memwb.RegWrite || memwb.Rd == 0 {
		return
	}

	value := memwb.ALUResult
	if memwb.MemToReg {
		value = memwb.MemData
	}

	s.regFile.WriteReg(memwb.Rd, value)
}
