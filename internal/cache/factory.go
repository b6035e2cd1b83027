package cache

import (
	"errors"
	"time"
)

// Config selects and tunes the BadgerDB query cache
type Config struct {
	Enabled bool

	Path     string
	InMemory bool // tests and one-shot CLI runs

	MaxMemoryMB    int // memtable size
	ValueLogMaxMB  int
	CompactOnClose bool
	NumGoroutines  int

	GCInterval     time.Duration // value log GC, disk only
	GCDiscardRatio float64
}

// DefaultConfig returns an on-disk cache under ./cache/badger
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Path:           "./cache/badger",
		MaxMemoryMB:    64,
		ValueLogMaxMB:  256,
		CompactOnClose: true,
		NumGoroutines:  4,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// New opens the cache described by config. A disabled cache is (nil, nil)
// and callers query storage directly.
func New(config *Config) (Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}
	if config.Path == "" && !config.InMemory {
		return nil, errors.New("cache path is required unless the cache is in memory")
	}

	bc, err := Open(config)
	if err != nil {
		return nil, err
	}
	return bc, nil
}

// NewInMemory opens a small memory-only cache
func NewInMemory() (*BadgerCache, error) {
	return Open(&Config{Enabled: true, InMemory: true, MaxMemoryMB: 16})
}
