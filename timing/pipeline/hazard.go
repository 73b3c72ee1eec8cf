package pipeline

// ForwardSource indicates where a forwarded operand should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward from the EX/MEM pipeline register.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward from the MEM/WB pipeline register.
	ForwardFromMEMWB
)

// ForwardingResult contains forwarding decisions for both source operands.
type ForwardingResult struct {
	// ForwardRs1 specifies the forwarding source for the rs1 operand.
	ForwardRs1 ForwardSource
	// ForwardRs2 specifies the forwarding source for the rs2 operand.
	ForwardRs2 ForwardSource
}

// StallResult contains stall and flush control signals.
type StallResult struct {
	// StallIF indicates the IF stage should stall (hold current instruction).
	StallIF bool
	// StallID indicates the ID stage should stall.
	StallID bool
	// InsertBubbleEX indicates a bubble should be inserted in the EX stage.
	InsertBubbleEX bool
	// FlushIF indicates the fetch latch should be forced to a NOP.
	FlushIF bool
	// FlushID indicates the decode-to-execute latch should be flushed.
	FlushID bool
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding determines forwarding for the instruction in the EX
// stage. Each source register is compared against the memory-stage
// destination first (most recent value wins), then the writeback-stage
// destination. A load in the memory stage cannot supply a value there and
// never forwards from EX/MEM.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{
		ForwardRs1: ForwardNone,
		ForwardRs2: ForwardNone,
	}

	if !idex.Valid || idex.Inst == nil {
		return result
	}

	if idex.Inst.Rs1Valid {
		result.ForwardRs1 = h.detectForwardForReg(idex.Rs1, exmem, memwb)
	}
	if idex.Inst.Rs2Valid {
		result.ForwardRs2 = h.detectForwardForReg(idex.Rs2, exmem, memwb)
	}

	return result
}

// detectForwardForReg checks if a specific register needs forwarding.
func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	// x0 always reads as 0, no need to forward.
	if reg == 0 {
		return ForwardNone
	}

	if exmem.Valid && exmem.RegWrite && !exmem.MemRead && exmem.Rd == reg {
		return ForwardFromEXMEM
	}

	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// DetectLoadUseHazard reports a load-use hazard between the load in the
// EX stage and the consumer being decoded. The loaded value is not
// available until after the MEM stage, so the consumer must wait one
// cycle and pick it up on the MEM/WB forwarding path.
func (h *HazardUnit) DetectLoadUseHazard(
	idex *IDEXRegister,
	rs1 uint8, rs1Valid bool,
	rs2 uint8, rs2Valid bool,
) bool {
	if !idex.Valid || !idex.MemRead || idex.Rd == 0 {
		return false
	}

	if rs1Valid && idex.Rd == rs1 {
		return true
	}
	if rs2Valid && idex.Rd == rs2 {
		return true
	}

	return false
}

// DetectStoreLoadForward reports whether the load entering the memory
// stage overlaps the byte range of the store immediately ahead of it,
// still sitting in the writeback-bound latch and not yet visible in the
// backing memory. The covered bytes reach the load through the data
// port's store buffer.
func (h *HazardUnit) DetectStoreLoadForward(
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) bool {
	if !exmem.Valid || !exmem.MemRead || exmem.Inst == nil {
		return false
	}
	if !memwb.Valid || !memwb.IsStore || memwb.Inst == nil {
		return false
	}

	loadLo := exmem.ALUResult
	loadHi := loadLo + uint32(loadSize(loadTypeFor(exmem.Inst.Op)))
	storeLo := memwb.StoreAddr
	storeHi := storeLo + uint32(storeSize(memwb.Inst.Op))
	return loadLo < storeHi && storeLo < loadHi
}

// ComputeStalls computes stall and flush signals from hazard conditions.
func (h *HazardUnit) ComputeStalls(loadUseHazard bool, redirect bool) StallResult {
	result := StallResult{}

	// Load-use hazard: stall IF and ID, insert bubble in EX.
	if loadUseHazard {
		result.StallIF = true
		result.StallID = true
		result.InsertBubbleEX = true
	}

	// Taken branch or trap: flush IF and ID. The redirect wins over a
	// concurrent stall because the stalled instruction is on the wrong
	// path anyway.
	if redirect {
		result.StallIF = false
		result.StallID = false
		result.InsertBubbleEX = false
		result.FlushIF = true
		result.FlushID = true
	}

	return result
}

// GetForwardedValue returns the operand value to use for the EX stage
// based on the forwarding decision.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) uint32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		// For loads, use memory data; otherwise the ALU result.
		if memwb.MemToReg {
			return memwb.MemData
		}
		return memwb.ALUResult
	default:
		return originalValue
	}
}

// WritebackBypass resolves the register file's same-cycle
// write-before-read ordering: a decode-stage read that conflicts with
// the write committing from MEM/WB this cycle observes the committing
// value instead of the stale register file content.
func (h *HazardUnit) WritebackBypass(
	reg uint8,
	regValue uint32,
	memwb *MEMWBRegister,
) uint32 {
	if reg == 0 {
		return 0
	}
	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg {
		if memwb.MemToReg {
			return memwb.MemData
		}
		return memwb.ALUResult
	}
	return regValue
}
