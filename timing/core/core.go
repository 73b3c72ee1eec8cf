// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/loader"
	"github.com/5iri/synapse32/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of hazard stall cycles.
	Stalls uint64
	// MemStalls is the number of memory stall cycles.
	MemStalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// Traps is the number of synchronous traps and mrets.
	Traps uint64
	// Interrupts is the number of interrupts taken.
	Interrupts uint64
}

// Core represents a cycle-accurate RV32I CPU core. It wraps a 5-stage
// pipeline and provides a simple interface for simulation.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core. Bare-metal programs end with EBREAK, so
// the pipeline halts on it.
func NewCore(opts ...pipeline.PipelineOption) *Core {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	opts = append([]pipeline.PipelineOption{pipeline.WithHaltOnEbreak()}, opts...)
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// RegFile exposes the architectural register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory exposes the core's memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// Csr exposes the CSR file.
func (c *Core) Csr() *emu.CsrFile {
	return c.Pipeline.Csr()
}

// LoadProgram copies a loaded image into memory and points the core at
// its entry.
func (c *Core) LoadProgram(prog *loader.Program) {
	prog.LoadInto(c.memory)
	c.Pipeline.SetPC(prog.Entry)
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// SetInterruptLines drives the external interrupt input lines.
func (c *Core) SetInterruptLines(software, timer, external bool) {
	c.Pipeline.SetInterruptLines(software, timer, external)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true if the core has halted on a retired EBREAK.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		MemStalls:    pipeStats.MemStalls,
		Flushes:      pipeStats.Flushes,
		Traps:        pipeStats.Traps,
		Interrupts:   pipeStats.Interrupts,
	}
}

// Run executes the core until it halts.
func (c *Core) Run() {
	c.Pipeline.Run()
}

// RunCycles executes the core for at most the given number of cycles.
// Returns true if the core halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears the pipeline and CSR state. Memory and registers keep
// their contents.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
