// Package latency provides JSON-loadable timing configuration for the
// memory side of the simulator. The core itself is single-cycle by
// contract; only the external memory and the optional data cache have
// configurable latencies.
package latency

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/5iri/synapse32/timing/cache"
)

// TimingConfig holds memory-side latency values.
type TimingConfig struct {
	// MemoryLatency is the number of extra stall cycles per data
	// memory access without a cache. Default: 0 (single-cycle port).
	MemoryLatency uint64 `json:"memory_latency"`

	// CacheEnabled puts an L1 data cache in front of the memory port.
	CacheEnabled bool `json:"cache_enabled"`

	// CacheSize is the data cache size in bytes.
	CacheSize int `json:"cache_size"`

	// CacheAssociativity is the number of ways.
	CacheAssociativity int `json:"cache_associativity"`

	// CacheBlockSize is the cache line size in bytes.
	CacheBlockSize int `json:"cache_block_size"`

	// CacheHitLatency is the data cache hit latency in cycles.
	CacheHitLatency uint64 `json:"cache_hit_latency"`

	// CacheMissLatency is the data cache miss latency in cycles.
	CacheMissLatency uint64 `json:"cache_miss_latency"`
}

// DefaultTimingConfig returns the single-cycle memory contract with the
// default cache geometry (disabled).
func DefaultTimingConfig() *TimingConfig {
	d := cache.DefaultL1DConfig()
	return &TimingConfig{
		MemoryLatency:      0,
		CacheEnabled:       false,
		CacheSize:          d.Size,
		CacheAssociativity: d.Associativity,
		CacheBlockSize:     d.BlockSize,
		CacheHitLatency:    d.HitLatency,
		CacheMissLatency:   d.MissLatency,
	}
}

// CacheConfig converts the cache-related fields into a cache.Config.
func (c *TimingConfig) CacheConfig() cache.Config {
	return cache.Config{
		Size:          c.CacheSize,
		Associativity: c.CacheAssociativity,
		BlockSize:     c.CacheBlockSize,
		HitLatency:    c.CacheHitLatency,
		MissLatency:   c.CacheMissLatency,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields absent from
// the file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for consistency.
func (c *TimingConfig) Validate() error {
	if !c.CacheEnabled {
		return nil
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be > 0")
	}
	if c.CacheAssociativity <= 0 {
		return fmt.Errorf("cache_associativity must be > 0")
	}
	if c.CacheBlockSize <= 0 {
		return fmt.Errorf("cache_block_size must be > 0")
	}
	if c.CacheSize%(c.CacheAssociativity*c.CacheBlockSize) != 0 {
		return fmt.Errorf("cache_size must be a multiple of associativity times block size")
	}
	if c.CacheHitLatency == 0 {
		return fmt.Errorf("cache_hit_latency must be > 0")
	}
	if c.CacheMissLatency < c.CacheHitLatency {
		return fmt.Errorf("cache_miss_latency must be >= cache_hit_latency")
	}
	return nil
}
