// Package main provides the entry point for synapse32, a cycle-accurate
// RV32I five-stage pipeline simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/5iri/synapse32/emu"
	"github.com/5iri/synapse32/loader"
	"github.com/5iri/synapse32/timing/latency"
	"github.com/5iri/synapse32/timing/pipeline"
)

var (
	timing     = flag.Bool("timing", false, "Enable cycle-accurate timing simulation")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	maxCycles  = flag.Uint64("cycles", 10_000_000, "Cycle limit (instruction limit in functional mode)")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: synapse32 [options] <program.bin|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%X\n", prog.Entry)
		fmt.Printf("Chunks: %d\n", len(prog.Chunks))
	}

	if *timing {
		os.Exit(runTiming(prog, programPath))
	}
	os.Exit(runEmulation(prog, programPath))
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(prog *loader.Program, programPath string) int {
	emulator := emu.NewEmulator(
		emu.WithHaltOnEbreak(),
		emu.WithMaxInstructions(*maxCycles),
	)
	prog.LoadInto(emulator.Memory())
	emulator.SetPC(prog.Entry)

	result := emulator.Run()
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		return 1
	}

	if *verbose {
		fmt.Printf("\nProgram: %s\n", programPath)
		fmt.Printf("Instructions executed: %d\n", emulator.InstructionCount())
	}

	return 0
}

// runTiming runs the program through the five-stage pipeline.
func runTiming(prog *loader.Program, programPath string) int {
	var timingConfig *latency.TimingConfig
	if *configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			return 1
		}
	} else {
		timingConfig = latency.DefaultTimingConfig()
	}
	if err := timingConfig.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timing config: %v\n", err)
		return 1
	}

	memory := emu.NewMemory()
	regFile := &emu.RegFile{}
	prog.LoadInto(memory)

	opts := []pipeline.PipelineOption{pipeline.WithHaltOnEbreak()}
	switch {
	case timingConfig.CacheEnabled:
		opts = append(opts, pipeline.WithDCache(timingConfig.CacheConfig()))
	case timingConfig.MemoryLatency > 0:
		opts = append(opts, pipeline.WithMemoryLatency(timingConfig.MemoryLatency))
	}

	pipe := pipeline.NewPipeline(regFile, memory, opts...)
	pipe.SetPC(prog.Entry)

	halted := pipe.RunCycles(*maxCycles)
	stats := pipe.Stats()

	if !halted {
		fmt.Fprintf(os.Stderr, "Cycle limit reached after %d cycles at PC=0x%X\n",
			stats.Cycles, pipe.PC())
		return 1
	}

	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1
	}

	fmt.Printf("\n")
	fmt.Printf("Program: %s\n", programPath)
	fmt.Printf("Total Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("CPI: %.2f\n", stats.CPI())
	fmt.Printf("\n")
	fmt.Printf("Pipeline Events:\n")
	fmt.Printf("  Hazard stalls:   %4d (%5.1f%% of cycles)\n",
		stats.Stalls, 100.0*float64(stats.Stalls)/float64(totalCycles))
	fmt.Printf("  Memory stalls:   %4d (%5.1f%% of cycles)\n",
		stats.MemStalls, 100.0*float64(stats.MemStalls)/float64(totalCycles))
	fmt.Printf("  Flushes:         %4d\n", stats.Flushes)
	fmt.Printf("  Forwarded pairs: %4d\n", stats.DataHazards)
	fmt.Printf("  Store forwards:  %4d\n", stats.StoreForwards)
	fmt.Printf("  Traps:           %4d\n", stats.Traps)
	fmt.Printf("  Interrupts:      %4d\n", stats.Interrupts)

	if timingConfig.CacheEnabled {
		cacheStats := pipe.DCacheStats()
		accesses := cacheStats.Hits + cacheStats.Misses
		if accesses == 0 {
			accesses = 1
		}
		fmt.Printf("\n")
		fmt.Printf("D-Cache:\n")
		fmt.Printf("  Hits:       %4d (%5.1f%%)\n",
			cacheStats.Hits, 100.0*float64(cacheStats.Hits)/float64(accesses))
		fmt.Printf("  Misses:     %4d\n", cacheStats.Misses)
		fmt.Printf("  Evictions:  %4d\n", cacheStats.Evictions)
		fmt.Printf("  Writebacks: %4d\n", cacheStats.Writebacks)
	}

	return 0
}
