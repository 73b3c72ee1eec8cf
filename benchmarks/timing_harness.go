// Package benchmarks provides timing benchmark infrastructure for the
// five-stage pipeline, including pipeline-vs-emulator validation.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/timing/cache"
	"github.com/5iri/synapse32/timing/pipeline"
)

// EbreakWord halts a bare-metal benchmark program.
const EbreakWord uint32 = 0x00100073

// benchmarkCycleLimit bounds a single benchmark run.
const benchmarkCycleLimit = 1_000_000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Description explains what the benchmark measures.
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator.
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions.
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction.
	CPI float64 `json:"cpi"`

	// StallCycles counts hazard stalls.
	StallCycles uint64 `json:"stall_cycles"`

	// MemStalls counts memory stage stalls.
	MemStalls uint64 `json:"mem_stalls"`

	// DataHazards counts RAW hazards resolved via forwarding.
	DataHazards uint64 `json:"data_hazards"`

	// StoreForwards counts loads served from an in-flight store.
	StoreForwards uint64 `json:"store_forwards"`

	// PipelineFlushes counts redirect flushes.
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// DCacheHits/Misses are set when the data cache is enabled.
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Matched is true when the pipeline's architectural state agrees
	// with the reference emulator and the expected register values.
	Matched bool `json:"matched"`

	// Mismatch describes the first disagreement when Matched is false.
	Mismatch string `json:"mismatch,omitempty"`

	// WallTime is the actual time taken to run the simulation.
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark measures.
	Description string

	// Setup prepares initial state (register values, data memory).
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RV32I machine code, ending in EBREAK.
	Program []uint32

	// ExpectedRegs are register values to check after the run.
	ExpectedRegs map[uint8]uint32
}

// BuildProgram appends the halting EBREAK to a word sequence.
func BuildProgram(words ...uint32) []uint32 {
	return append(words, EbreakWord)
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableDCache puts the L1 data cache in front of the memory port.
	EnableDCache bool

	// MemoryLatency adds fixed stall cycles per data access when the
	// cache is disabled.
	MemoryLatency uint64

	// Output is where to write results (default: os.Stdout).
	Output io.Writer

	// Verbose enables detailed output.
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableDCache: false,
		Output:       os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))
	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}
	return results
}

// runBenchmark executes a single benchmark on the pipeline, then replays
// it on the functional emulator and compares architectural state.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	opts := []pipeline.PipelineOption{pipeline.WithHaltOnEbreak()}
	switch {
	case h.config.EnableDCache:
		opts = append(opts, pipeline.WithDCache(cache.DefaultL1DConfig()))
	case h.config.MemoryLatency > 0:
		opts = append(opts, pipeline.WithMemoryLatency(h.config.MemoryLatency))
	}
	pipe := pipeline.NewPipeline(regFile, memory, opts...)

	start := time.Now()
	halted := pipe.RunProgram(bench.Program, benchmarkCycleLimit)
	wallTime := time.Since(start)

	stats := pipe.Stats()
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Instructions,
		CPI:                 stats.CPI(),
		StallCycles:         stats.Stalls,
		MemStalls:           stats.MemStalls,
		DataHazards:         stats.DataHazards,
		StoreForwards:       stats.StoreForwards,
		PipelineFlushes:     stats.Flushes,
		WallTime:            wallTime,
	}
	if h.config.EnableDCache {
		dcStats := pipe.DCacheStats()
		result.DCacheHits = dcStats.Hits
		result.DCacheMisses = dcStats.Misses
	}

	if !halted {
		result.Mismatch = "cycle limit reached"
		return result
	}

	result.Matched = true
	if mismatch := h.validate(bench, regFile); mismatch != "" {
		result.Matched = false
		result.Mismatch = mismatch
	}
	return result
}

// validate replays the benchmark on the functional emulator and compares
// every register, then checks the benchmark's expected values.
func (h *Harness) validate(bench Benchmark, pipeRegs *emu.RegFile) string {
	ref := emu.NewEmulator(
		emu.WithHaltOnEbreak(),
		emu.WithMaxInstructions(benchmarkCycleLimit),
	)
	if bench.Setup != nil {
		bench.Setup(ref.RegFile(), ref.Memory())
	}
	ref.LoadWords(0, bench.Program)
	if result := ref.Run(); result.Err != nil {
		return fmt.Sprintf("reference emulator: %v", result.Err)
	}

	for reg := uint8(1); reg < 32; reg++ {
		if got, want := pipeRegs.ReadReg(reg), ref.RegFile().ReadReg(reg); got != want {
			return fmt.Sprintf("x%d: pipeline 0x%X, emulator 0x%X", reg, got, want)
		}
	}
	for reg, want := range bench.ExpectedRegs {
		if got := pipeRegs.ReadReg(reg); got != want {
			return fmt.Sprintf("x%d: got 0x%X, expected 0x%X", reg, got, want)
		}
	}
	return ""
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Pipeline Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Mem Stalls:           %d\n", r.MemStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Hazards:         %d\n", r.DataHazards)
		_, _ = fmt.Fprintf(h.config.Output, "  Store Forwards:       %d\n", r.StoreForwards)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  D-Cache Hits:         %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  D-Cache Misses:       %d\n", r.DCacheMisses)
		}

		if r.Matched {
			_, _ = fmt.Fprintln(h.config.Output, "  Validation: OK")
		} else {
			_, _ = fmt.Fprintf(h.config.Output, "  Validation: MISMATCH (%s)\n", r.Mismatch)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// WriteJSON outputs benchmark results as indented JSON.
func (h *Harness) WriteJSON(results []BenchmarkResult) error {
	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
