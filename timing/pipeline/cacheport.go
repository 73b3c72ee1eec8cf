package pipeline

import (
	"math/bits"

	"github.com/5iri/synapse32/timing/cache"
)

// CachePort adapts an L1 data cache to the data port contract. An
// access that costs more than one cycle holds the port busy for the
// extra cycles; the memory stage retries (and stalls) until the
// response is ready.
type CachePort struct {
	cache *cache.Cache

	busy      bool
	remaining uint64
	response  PortResponse
}

// NewCachePort creates a data port in front of the given cache.
func NewCachePort(c *cache.Cache) *CachePort {
	return &CachePort{cache: c}
}

// Access starts a new cache access or reports on one in flight.
func (p *CachePort) Access(req PortRequest) (PortResponse, bool) {
	if p.busy {
		if p.remaining > 0 {
			return PortResponse{}, true
		}
		p.busy = false
		return p.response, false
	}

	var result cache.AccessResult
	var response PortResponse

	switch {
	case req.WriteEnable:
		// The byte-enable mask is contiguous within the word; collapse
		// it back into an address, size, and value.
		lane := uint32(bits.TrailingZeros8(req.ByteEnable))
		size := bits.OnesCount8(req.ByteEnable)
		result = p.cache.Write(
			req.WriteAddr+lane, size, req.WriteData>>(8*lane))

	case req.ReadEnable:
		result = p.cache.Read(req.ReadAddr, loadSize(req.LoadType))
		response.ReadData = ExtractLoad(req.LoadType, result.Data)

	default:
		return PortResponse{}, false
	}

	if result.Latency <= 1 {
		return response, false
	}

	p.busy = true
	p.remaining = result.Latency - 1
	p.response = response
	return PortResponse{}, true
}

// Tick advances the port by one clock edge.
func (p *CachePort) Tick() {
	if p.busy && p.remaining > 0 {
		p.remaining--
	}
}

// loadSize returns the access width in bytes for a load-type code.
func loadSize(loadType uint8) int {
	switch loadType {
	case LoadByte, LoadByteU:
		return 1
	case LoadHalf, LoadHalfU:
		return 2
	default:
		return 4
	}
}
