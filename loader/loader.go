// Package loader reads RV32 program images in the formats the core's
// test benches use: flat little-endian binaries and $readmemh-style
// hex text with one word per line.
package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/5iri/synapse32/emu"
)

// Chunk is a contiguous run of bytes placed at a fixed address.
type Chunk struct {
	Addr uint32
	Data []byte
}

// Program is a loaded image ready to be copied into memory.
type Program struct {
	// Entry is the address execution starts at.
	Entry uint32
	// Chunks are the image contents, in file order.
	Chunks []Chunk
}

// LoadInto copies every chunk into memory.
func (p *Program) LoadInto(memory *emu.Memory) {
	for _, chunk := range p.Chunks {
		memory.LoadProgram(chunk.Addr, chunk.Data)
	}
}

// LoadBinary reads a flat binary image and places it at base. The bytes
// are used as-is; RV32 images are little-endian by construction.
func LoadBinary(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("binary image %s is empty", path)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("binary image %s is %d bytes, not a whole number of words",
			path, len(data))
	}

	return &Program{
		Entry:  base,
		Chunks: []Chunk{{Addr: base, Data: data}},
	}, nil
}

// LoadHex reads a $readmemh-style text image: whitespace-separated hex
// words, // line comments, and @addr directives giving the word address
// of the tokens that follow. Addresses start at zero.
func LoadHex(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex image: %w", err)
	}
	defer func() { _ = f.Close() }()

	program := &Program{}
	var current *Chunk
	wordAddr := uint32(0)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}

		for _, token := range strings.Fields(line) {
			if strings.HasPrefix(token, "@") {
				addr, err := strconv.ParseUint(token[1:], 16, 32)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: bad address directive %q: %w",
						path, lineNo, token, err)
				}
				wordAddr = uint32(addr)
				current = nil
				continue
			}

			word, err := strconv.ParseUint(token, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad hex word %q: %w",
					path, lineNo, token, err)
			}

			byteAddr := wordAddr * 4
			if current == nil || current.Addr+uint32(len(current.Data)) != byteAddr {
				program.Chunks = append(program.Chunks, Chunk{Addr: byteAddr})
				current = &program.Chunks[len(program.Chunks)-1]
			}
			current.Data = append(current.Data,
				byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
			wordAddr++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex image: %w", err)
	}
	if len(program.Chunks) == 0 {
		return nil, fmt.Errorf("hex image %s contains no words", path)
	}

	return program, nil
}

// Load picks the format from the file extension: .hex and .txt are hex
// text, everything else is a flat binary placed at address zero.
func Load(path string) (*Program, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".txt", ".mem":
		return LoadHex(path)
	default:
		return LoadBinary(path, 0)
	}
}
