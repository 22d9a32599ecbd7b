package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the construction-time parameters of the cache
// controller. Associativity and line size are fixed by the design
// (4 ways, 32-byte lines); see the package constants.
type Config struct {
	// NumSets is the number of sets. Must be a power of two so the set
	// index and tag are clean bit fields of the address.
	NumSets int `json:"num_sets"`

	// NumMSHR is the number of miss-tracking slots, bounding how many
	// misses can be in flight at once. Default: 4.
	NumMSHR int `json:"num_mshr"`

	// LFSRSeed seeds the replacement shift register so victim
	// selection is reproducible. Zero selects DefaultLFSRSeed.
	LFSRSeed uint16 `json:"lfsr_seed"`

	// StoreLatency is the fixed backing-store latency in ticks used by
	// the behavioral memory model. Default: 20 cycles.
	StoreLatency int `json:"store_latency"`
}

// DefaultConfig returns a Config describing an 8KB cache: 64 sets,
// 4 ways, 32-byte lines, 4 MSHR slots.
func DefaultConfig() Config {
	return Config{
		NumSets:      64,
		NumMSHR:      4,
		LFSRSeed:     DefaultLFSRSeed,
		StoreLatency: 20,
	}
}

// LoadConfig loads a Config from a JSON file. Omitted fields keep their
// default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read cache config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse cache config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cache config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.NumSets <= 0 {
		return fmt.Errorf("num_sets must be > 0")
	}
	if c.NumSets&(c.NumSets-1) != 0 {
		return fmt.Errorf("num_sets must be a power of two")
	}
	if c.NumMSHR <= 0 {
		return fmt.Errorf("num_mshr must be > 0")
	}
	if c.StoreLatency <= 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	return nil
}
