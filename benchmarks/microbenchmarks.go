package benchmarks

import "github.com/5iri/synapse32/emu"

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each
// one targets a specific pipeline characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUseChain(),
		storeLoadPairs(),
		branchTaken(),
		fibonacciLoop(),
		functionCalls(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		loadUseChain(),
		branchTaken(),
	}
}

// arithmeticSequential measures best-case throughput with independent
// ALU operations. Ideal CPI approaches 1.
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDIs across five registers",
		Program: BuildProgram(
			0x00108093, // addi x1, x1, 1
			0x00110113, // addi x2, x2, 1
			0x00118193, // addi x3, x3, 1
			0x00120213, // addi x4, x4, 1
			0x00128293, // addi x5, x5, 1
			0x00108093, // addi x1, x1, 1
			0x00110113, // addi x2, x2, 1
			0x00118193, // addi x3, x3, 1
			0x00120213, // addi x4, x4, 1
			0x00128293, // addi x5, x5, 1
			0x00108093, // addi x1, x1, 1
			0x00110113, // addi x2, x2, 1
			0x00118193, // addi x3, x3, 1
			0x00120213, // addi x4, x4, 1
			0x00128293, // addi x5, x5, 1
			0x00108093, // addi x1, x1, 1
			0x00110113, // addi x2, x2, 1
			0x00118193, // addi x3, x3, 1
			0x00120213, // addi x4, x4, 1
			0x00128293, // addi x5, x5, 1
		),
		ExpectedRegs: map[uint8]uint32{1: 4, 2: 4, 3: 4, 4: 4, 5: 4},
	}
}

// dependencyChain measures forwarding: every instruction consumes the
// previous result, which still sustains CPI 1 with full forwarding.
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "8 serially dependent ADDIs on one register",
		Program: BuildProgram(
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
			0x00108093, // addi x1, x1, 1
		),
		ExpectedRegs: map[uint8]uint32{1: 8},
	}
}

// loadUseChain measures the load-use stall: each load feeds the very
// next instruction, costing one bubble per pair.
func loadUseChain() Benchmark {
	return Benchmark{
		Name:        "load_use_chain",
		Description: "loads immediately consumed by dependent adds",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			memory.Write32(0x200, 5)
		},
		Program: BuildProgram(
			0x20002083, // lw  x1, 0x200(x0)
			0x00108133, // add x2, x1, x1
			0x20002183, // lw  x3, 0x200(x0)
			0x00318233, // add x4, x3, x3
		),
		ExpectedRegs: map[uint8]uint32{1: 5, 2: 10, 3: 5, 4: 10},
	}
}

// storeLoadPairs measures store-to-load forwarding through the data
// port's synchronous-write window.
func storeLoadPairs() Benchmark {
	return Benchmark{
		Name:        "store_load_pairs",
		Description: "a store immediately read back by a load",
		Program: BuildProgram(
			0x00700093, // addi x1, x0, 7
			0x20102023, // sw x1, 0x200(x0)
			0x20002103, // lw x2, 0x200(x0)
		),
		ExpectedRegs: map[uint8]uint32{1: 7, 2: 7},
	}
}

// branchTaken measures the taken-branch flush penalty.
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "taken branches skipping one instruction each",
		Program: BuildProgram(
			0x00100093, // addi x1, x0, 1
			0x00000463, // beq x0, x0, +8
			0x00100113, // addi x2, x0, 1  (skipped)
			0x00100193, // addi x3, x0, 1
			0x00000463, // beq x0, x0, +8
			0x00100213, // addi x4, x0, 1  (skipped)
			0x00100293, // addi x5, x0, 1
		),
		ExpectedRegs: map[uint8]uint32{1: 1, 2: 0, 3: 1, 4: 0, 5: 1},
	}
}

// fibonacciLoop iterates a backward BNE loop, the control-flow shape
// of real kernels: a dependent add chain in the body and a taken
// branch back to the top on every pass but the last.
func fibonacciLoop() Benchmark {
	return Benchmark{
		Name:        "fibonacci_loop",
		Description: "10 Fibonacci steps in a backward-branch loop",
		Program: BuildProgram(
			0x00000093, // addi x1, x0, 0   ; a
			0x00100113, // addi x2, x0, 1   ; b
			0x00A00193, // addi x3, x0, 10  ; counter
			0x00208233, // loop: add x4, x1, x2
			0x000100B3, // add x1, x2, x0
			0x00020133, // add x2, x4, x0
			0xFFF18193, // addi x3, x3, -1
			0xFE0198E3, // bne x3, x0, loop (-16)
		),
		ExpectedRegs: map[uint8]uint32{1: 55, 2: 89, 3: 0, 4: 89},
	}
}

// functionCalls measures the jal/jalr redirect pair of a call and
// return.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "a jal call and jalr return",
		Program: []uint32{
			0x00C000EF, // jal x1, +12     (call)
			0x00200113, // addi x2, x0, 2  (after return)
			EbreakWord,
			0x00300193, // addi x3, x0, 3  (callee)
			0x00008067, // jalr x0, 0(x1)  (return)
		},
		ExpectedRegs: map[uint8]uint32{1: 4, 2: 2, 3: 3},
	}
}
