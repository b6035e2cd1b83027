package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache defines the cache operations interface
type Cache interface {
	// Basic operations
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Pattern operations, "prefix*" only
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Metrics
	GetMetrics() *Metrics

	// Lifecycle
	Close() error
}

// Metrics tracks cache performance. Hits and misses are counted by the
// caller, which knows whether a stored value was usable.
type Metrics struct {
	Hits    atomic.Uint64
	Misses  atomic.Uint64
	Sets    atomic.Uint64
	Deletes atomic.Uint64
	Size    atomic.Uint64
	Keys    atomic.Uint64
}

// MetricsSnapshot is a plain copy of Metrics for reporting
type MetricsSnapshot struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Deletes uint64  `json:"deletes"`
	Size    uint64  `json:"size_bytes"`
	Keys    uint64  `json:"keys"`
	HitRate float64 `json:"hit_rate"`
}

// Snapshot copies the counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Hits:    m.Hits.Load(),
		Misses:  m.Misses.Load(),
		Sets:    m.Sets.Load(),
		Deletes: m.Deletes.Load(),
		Size:    m.Size.Load(),
		Keys:    m.Keys.Load(),
	}
	s.HitRate = m.HitRate()
	return s
}

// HitRate returns hits as a percentage of lookups, 0 before the first lookup
func (m *Metrics) HitRate() float64 {
	hits := m.Hits.Load()
	total := hits + m.Misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
