package pipeline

import "github.com/5iri/synapse32/emu"

// Load-type codes carried on the data port, matching the RV32I load
// funct3 encodings.
const (
	LoadByte  uint8 = 0b000
	LoadHalf  uint8 = 0b001
	LoadWord  uint8 = 0b010
	LoadByteU uint8 = 0b100
	LoadHalfU uint8 = 0b101
)

// PortRequest is the core's external data-memory port. Read and write
// are mutually exclusive per cycle. Stores carry a word-aligned address,
// a 4-bit lane byte-enable, and lane-shifted write data.
type PortRequest struct {
	ReadAddr    uint32
	WriteAddr   uint32
	WriteData   uint32
	ByteEnable  uint8
	LoadType    uint8
	ReadEnable  bool
	WriteEnable bool
}

// PortResponse carries the width- and sign-adjusted read data.
type PortResponse struct {
	ReadData uint32
}

// DataPort is the external data memory collaborator. Access issues at
// most one request per cycle; the second return value reports the port
// is busy and the memory stage must retry (and stall) next cycle. Tick
// advances the port by one clock edge.
type DataPort interface {
	Access(req PortRequest) (PortResponse, bool)
	Tick()
}

// pendingStore is a write accepted by the port but not yet applied to
// the backing memory.
type pendingStore struct {
	valid      bool
	addr       uint32
	data       uint32
	byteEnable uint8
}

// MemoryPort adapts emu.Memory to the data port contract. Writes are
// synchronous: a store accepted on one edge is applied to the backing
// memory on the following edge. Reads issued inside that window are
// served byte-by-byte from the accepted store where it covers the read
// range, so a load behind a store observes the stored bytes even though
// the backing memory has not been updated yet.
type MemoryPort struct {
	memory   *emu.Memory
	pending  pendingStore
	incoming pendingStore
}

// NewMemoryPort creates a data port over the given backing memory.
func NewMemoryPort(memory *emu.Memory) *MemoryPort {
	return &MemoryPort{memory: memory}
}

// Access performs a read immediately or accepts a write for the next
// edge. The port itself is single-cycle and never busy.
func (p *MemoryPort) Access(req PortRequest) (PortResponse, bool) {
	if req.WriteEnable {
		p.incoming = pendingStore{
			valid:      true,
			addr:       req.WriteAddr,
			data:       req.WriteData,
			byteEnable: req.ByteEnable,
		}
		return PortResponse{}, false
	}

	if req.ReadEnable {
		return PortResponse{ReadData: p.read(req.ReadAddr, req.LoadType)}, false
	}

	return PortResponse{}, false
}

// Tick applies the store accepted on the previous edge and promotes a
// newly accepted one.
func (p *MemoryPort) Tick() {
	if p.pending.valid {
		for i := uint32(0); i < 4; i++ {
			if p.pending.byteEnable&(1<<i) != 0 {
				p.memory.Write8(p.pending.addr+i, uint8(p.pending.data>>(8*i)))
			}
		}
	}
	p.pending = p.incoming
	p.incoming = pendingStore{}
}

func (p *MemoryPort) read(addr uint32, loadType uint8) uint32 {
	switch loadType {
	case LoadByte:
		return uint32(int32(int8(p.readByte(addr))))
	case LoadHalf:
		return uint32(int32(int16(p.read16(addr))))
	case LoadWord:
		return p.read32(addr)
	case LoadByteU:
		return uint32(p.readByte(addr))
	case LoadHalfU:
		return uint32(p.read16(addr))
	default:
		return 0
	}
}

// readByte reads one byte, serving it from an accepted-but-unapplied
// store when that store's byte-enable covers the address.
func (p *MemoryPort) readByte(addr uint32) uint8 {
	b := p.memory.Read8(addr)
	b = forwardStoreByte(&p.pending, addr, b)
	b = forwardStoreByte(&p.incoming, addr, b)
	return b
}

func (p *MemoryPort) read16(addr uint32) uint16 {
	return uint16(p.readByte(addr)) | uint16(p.readByte(addr+1))<<8
}

func (p *MemoryPort) read32(addr uint32) uint32 {
	return uint32(p.readByte(addr)) |
		uint32(p.readByte(addr+1))<<8 |
		uint32(p.readByte(addr+2))<<16 |
		uint32(p.readByte(addr+3))<<24
}

func forwardStoreByte(s *pendingStore, addr uint32, old uint8) uint8 {
	if !s.valid || addr < s.addr || addr >= s.addr+4 {
		return old
	}
	lane := addr - s.addr
	if s.byteEnable&(1<<lane) == 0 {
		return old
	}
	return uint8(s.data >> (8 * lane))
}

// ExtractLoad applies the load-type width and sign adjustment to a raw
// 32-bit value, as the external memory does for port reads. Used on the
// store-to-load forwarding path, where the value bypasses the port.
func ExtractLoad(loadType uint8, raw uint32) uint32 {
	switch loadType {
	case LoadByte:
		return uint32(int32(int8(raw)))
	case LoadHalf:
		return uint32(int32(int16(raw)))
	case LoadWord:
		return raw
	case LoadByteU:
		return raw & 0xFF
	case LoadHalfU:
		return raw & 0xFFFF
	default:
		return 0
	}
}
