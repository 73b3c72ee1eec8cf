package pipeline

import (
	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/timing/cache"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of load-use stall cycles.
	Stalls uint64
	// MemStalls is the number of stalls waiting on the data port.
	MemStalls uint64
	// Flushes is the number of pipeline flushes (taken branches, jumps,
	// traps).
	Flushes uint64
	// DataHazards is the number of RAW hazards resolved by forwarding.
	DataHazards uint64
	// StoreForwards is the number of store-to-load forwarding events.
	StoreForwards uint64
	// Traps is the number of synchronous trap entries and returns
	// (ECALL, EBREAK, MRET).
	Traps uint64
	// Interrupts is the number of interrupt entries.
	Interrupts uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithDataPort replaces the default data memory port.
func WithDataPort(port DataPort) PipelineOption {
	return func(p *Pipeline) {
		p.dataPort = port
	}
}

// WithMemoryLatency adds a fixed number of stall cycles to every data
// memory access, modeling a slower external memory. Zero keeps the
// single-cycle contract.
func WithMemoryLatency(cycles uint64) PipelineOption {
	return func(p *Pipeline) {
		p.memLatency = cycles
	}
}

// WithDCache puts an L1 data cache between the memory stage and the
// backing memory. Hits and misses stall the memory stage per the cache
// configuration.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		backing := cache.NewMemoryBacking(p.memory)
		p.dcache = cache.New(config, backing)
		p.dataPort = NewCachePort(p.dcache)
	}
}

// WithHaltOnEbreak makes EBREAK drain and halt the pipeline instead of
// trapping. Useful for running bare-metal test programs to completion.
func WithHaltOnEbreak() PipelineOption {
	return func(p *Pipeline) {
		p.haltOnEbreak = true
	}
}

// Pipeline implements a cycle-accurate 5-stage in-order RV32I pipeline.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) ->
// Writeback (WB), connected by one latch per boundary.
//
// Hazard handling:
//   - Operand forwarding from EX/MEM and MEM/WB into EX, memory stage
//     winning over writeback, plus a writeback bypass at decode.
//   - Load-use stalls of exactly one cycle.
//   - Store-to-load forwarding out of the writeback-bound latch.
//   - Taken branches and traps flush the fetch latch to a NOP and the
//     decode-to-execute latch to a bubble.
type Pipeline struct {
	// Pipeline registers.
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	// Pipeline stages.
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection.
	hazardUnit *HazardUnit

	// Shared architectural state.
	regFile *emu.RegFile
	memory  *emu.Memory
	csr     *emu.CsrFile
	intc    *emu.InterruptController

	// External data memory port and optional cache in front of it.
	dataPort DataPort
	dcache   *cache.Cache

	// Fixed extra data-memory latency (cycles per access).
	memLatency uint64
	memWait    uint64

	// Program counter.
	pc uint32

	// Interrupt request lines, sampled into mip every cycle.
	softwareIRQ bool
	timerIRQ    bool
	externalIRQ bool

	// Statistics.
	stats Statistics

	// Execution state.
	haltOnEbreak bool
	draining     bool
	halted       bool
}

// NewPipeline creates a new 5-stage pipeline over the given register
// file and memory.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	csr := emu.NewCsrFile()
	hazard := NewHazardUnit()
	p := &Pipeline{
		fetchStage:     NewFetchStage(memory),
		decodeStage:    NewDecodeStage(regFile, hazard),
		executeStage:   NewExecuteStage(csr),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     hazard,
		regFile:        regFile,
		memory:         memory,
		csr:            csr,
		intc:           emu.NewInterruptController(csr),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.dataPort == nil {
		p.dataPort = NewMemoryPort(memory)
	}
	p.memoryStage = NewMemoryStage(p.dataPort)

	return p
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the program counter.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
}

// Csr returns the pipeline's CSR file.
func (p *Pipeline) Csr() *emu.CsrFile {
	return p.csr
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() *EXMEMRegister {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() *MEMWBRegister {
	return &p.memwb
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// DCacheStats returns data cache statistics, if a cache is configured.
func (p *Pipeline) DCacheStats() cache.Statistics {
	if p.dcache == nil {
		return cache.Statistics{}
	}
	return p.dcache.Stats()
}

// Halted reports whether the pipeline has halted.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// SetInterruptLines drives the three interrupt request lines. They are
// resampled into mip at the start of every cycle.
func (p *Pipeline) SetInterruptLines(software, timer, external bool) {
	p.softwareIRQ = software
	p.timerIRQ = timer
	p.externalIRQ = external
}

// Run executes the pipeline until it halts.
func (p *Pipeline) Run() {
	for !p.halted {
		p.Tick()
	}
}

// RunCycles executes the pipeline for at most the given number of
// cycles. Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Reset forces PC to 0, clears all pipeline latches to bubbles, and
// restores every CSR to its reset value. Register file and memory
// content are architectural collaborators and are left untouched.
func (p *Pipeline) Reset() {
	p.pc = 0
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.csr.Reset()
	p.memWait = 0
	p.stats = Statistics{}
	p.draining = false
	p.halted = false
}

// Tick executes one pipeline cycle.
//
// Every next state is computed from the current latched state first;
// all commits (latch updates, the register file write, the single CSR
// event, the PC update, the port edge) happen together at the end, so
// no stage ever observes another stage's same-cycle update.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++
	p.csr.Tick()
	p.csr.SampleInterruptLines(p.softwareIRQ, p.timerIRQ, p.externalIRQ)

	forwarding := p.hazardUnit.DetectForwarding(&p.idex, &p.exmem, &p.memwb)

	// Memory stage: issue at most one port access. The optional fixed
	// latency and a busy port both stall this stage and everything
	// upstream, and feed a bubble downstream.
	var nextMEMWB MEMWBRegister
	memStall := false
	if p.exmem.Valid {
		isAccess := p.exmem.MemRead || p.exmem.MemWrite
		if isAccess && p.memWait < p.memLatency {
			p.memWait++
			memStall = true
			p.stats.MemStalls++
		} else {
			memResult, busy := p.memoryStage.Access(&p.exmem)
			if busy {
				memStall = true
				p.stats.MemStalls++
			} else {
				p.memWait = 0
				if p.hazardUnit.DetectStoreLoadForward(&p.exmem, &p.memwb) {
					// The port serves the overlapping bytes from its
					// store buffer; this only counts the event.
					p.stats.StoreForwards++
				}
				nextMEMWB = MEMWBRegister{
					Valid:      true,
					PC:         p.exmem.PC,
					Inst:       p.exmem.Inst,
					ALUResult:  p.exmem.ALUResult,
					MemData:    memResult.MemData,
					Rd:         p.exmem.Rd,
					RegWrite:   p.exmem.RegWrite,
					MemToReg:   p.exmem.MemToReg,
					IsStore:    p.exmem.MemWrite,
					StoreAddr:  p.exmem.ALUResult,
					StoreValue: p.exmem.StoreValue,
					Halt:       p.exmem.Halt,
				}
			}
		}
	}

	// Execute stage. Interrupt entry is arbitrated here: it needs a
	// valid instruction whose PC becomes mepc, squashes that
	// instruction's result, and outranks everything else this cycle.
	var nextEXMEM EXMEMRegister
	redirect := false
	var redirectTarget uint32
	csrEvent := false
	var csrUpdate emu.CsrUpdate
	execHalt := false
	if p.idex.Valid && !memStall {
		if cause, ok := p.intc.Pending(); ok {
			csrEvent = true
			csrUpdate = emu.CsrUpdate{
				InterruptTaken: true,
				InterruptCause: cause,
				TrapPC:         p.idex.PC,
			}
			redirect = true
			redirectTarget = p.csr.TrapTarget()
			p.stats.Interrupts++
		} else {
			rs1Value := p.hazardUnit.GetForwardedValue(
				forwarding.ForwardRs1, p.idex.Rs1Value, &p.exmem, &p.memwb)
			rs2Value := p.hazardUnit.GetForwardedValue(
				forwarding.ForwardRs2, p.idex.Rs2Value, &p.exmem, &p.memwb)
			if forwarding.ForwardRs1 != ForwardNone || forwarding.ForwardRs2 != ForwardNone {
				p.stats.DataHazards++
			}

			execResult := p.executeStage.Execute(&p.idex, rs1Value, rs2Value, p.haltOnEbreak)

			if execResult.Redirect {
				redirect = true
				redirectTarget = execResult.RedirectTarget
			}
			if execResult.CsrEvent {
				csrEvent = true
				csrUpdate = execResult.CsrUpdate
				if csrUpdate.Ecall || csrUpdate.Ebreak || csrUpdate.Mret {
					p.stats.Traps++
				}
			}
			execHalt = execResult.Halt

			nextEXMEM = EXMEMRegister{
				Valid:      true,
				PC:         p.idex.PC,
				Inst:       p.idex.Inst,
				ALUResult:  execResult.ALUResult,
				StoreValue: execResult.StoreValue,
				Rd:         p.idex.Rd,
				MemRead:    p.idex.MemRead,
				MemWrite:   p.idex.MemWrite,
				RegWrite:   p.idex.RegWrite,
				MemToReg:   p.idex.MemToReg,
				Halt:       execResult.Halt,
			}
		}
	}

	// Decode stage. Flush-injected NOP slots decode to bubbles.
	var decResult DecodeResult
	haveDecode := p.ifid.Valid && !p.ifid.Injected
	if haveDecode {
		decResult = p.decodeStage.Decode(p.ifid.InstructionWord, &p.memwb)
	}

	loadUse := false
	if haveDecode {
		loadUse = p.hazardUnit.DetectLoadUseHazard(
			&p.idex,
			decResult.Rs1, decResult.Inst.Rs1Valid,
			decResult.Rs2, decResult.Inst.Rs2Valid,
		)
	}

	stallResult := p.hazardUnit.ComputeStalls(loadUse, redirect || execHalt)

	// Fetch stage.
	var nextIFID IFIDRegister
	switch {
	case stallResult.FlushIF:
		nextIFID = IFIDRegister{PC: p.pc}
		nextIFID.Flush()
	case stallResult.StallIF:
		nextIFID = p.ifid
		p.stats.Stalls++
	case p.draining:
		// Nothing more to fetch; let the pipeline empty out.
	default:
		nextIFID = IFIDRegister{
			Valid:           true,
			PC:              p.pc,
			InstructionWord: p.fetchStage.Fetch(p.pc),
		}
	}

	var nextIDEX IDEXRegister
	switch {
	case stallResult.FlushID:
		nextIDEX.Clear()
	case stallResult.InsertBubbleEX:
		nextIDEX.Bubble(p.ifid.PC)
	case haveDecode:
		nextIDEX = IDEXRegister{
			Valid:    true,
			PC:       p.ifid.PC,
			Inst:     decResult.Inst,
			Rs1Value: decResult.Rs1Value,
			Rs2Value: decResult.Rs2Value,
			Rd:       decResult.Rd,
			Rs1:      decResult.Rs1,
			Rs2:      decResult.Rs2,
			MemRead:  decResult.MemRead,
			MemWrite: decResult.MemWrite,
			RegWrite: decResult.RegWrite,
			MemToReg: decResult.MemToReg,
			IsBranch: decResult.IsBranch,
		}
	}

	// Next PC, in priority order: redirect, stall, sequential.
	nextPC := p.pc
	switch {
	case memStall:
		// Hold.
	case redirect:
		nextPC = redirectTarget
	case stallResult.StallIF || p.draining:
		// Hold.
	default:
		nextPC = p.pc + 4
	}

	// Commit phase: the simulated clock edge.
	p.writebackStage.Writeback(&p.memwb)
	if p.memwb.Valid {
		p.stats.Instructions++
	}
	if p.memwb.Halt {
		p.halted = true
	}
	if csrEvent {
		p.csr.Apply(csrUpdate)
	}
	if redirect || execHalt {
		p.stats.Flushes++
	}

	if memStall {
		// The stalled access is retried; nothing moves past MEM and a
		// bubble goes down to WB. The instruction held in ID/EX
		// recaptures any operand forwarded from the latch retiring this
		// cycle, since that source is gone by the time it executes.
		if p.idex.Valid {
			captured := false
			if forwarding.ForwardRs1 == ForwardFromMEMWB {
				p.idex.Rs1Value = p.hazardUnit.GetForwardedValue(
					ForwardFromMEMWB, p.idex.Rs1Value, &p.exmem, &p.memwb)
				captured = true
			}
			if forwarding.ForwardRs2 == ForwardFromMEMWB {
				p.idex.Rs2Value = p.hazardUnit.GetForwardedValue(
					ForwardFromMEMWB, p.idex.Rs2Value, &p.exmem, &p.memwb)
				captured = true
			}
			if captured {
				p.stats.DataHazards++
			}
		}
		p.memwb.Clear()
	} else {
		p.memwb = nextMEMWB
		p.exmem = nextEXMEM
		p.idex = nextIDEX
		p.ifid = nextIFID
		p.pc = nextPC
	}
	if execHalt {
		p.draining = true
	}
	p.dataPort.Tick()
}

// RunProgram is a convenience for tests and benchmarks: it loads the
// word image at address 0, resets, and runs until halt or the cycle
// limit is reached. Returns false if the limit was hit.
func (p *Pipeline) RunProgram(words []uint32, maxCycles uint64) bool {
	p.memory.LoadWords(0, words)
	p.Reset()
	for i := uint64(0); i < maxCycles; i++ {
		p.Tick()
		if p.halted {
			return true
		}
	}
	return p.halted
}
