package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/h1bexplorer/internal/cache"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/metrics"
)

// CachedStorage wraps Operations with a TTL cache. Concurrent misses for the
// same key share one query.
type CachedStorage struct {
	Operations
	cache  cache.Cache
	keyGen *cache.KeyGenerator
	config *CacheStorageConfig
	group  singleflight.Group
}

// CacheStorageConfig configures the caching behavior
type CacheStorageConfig struct {
	Enabled    bool
	OptionsTTL time.Duration // facet option lists
	CascadeTTL time.Duration // dependent facet lists
	DataTTL    time.Duration // aggregated results
}

// DefaultCacheStorageConfig returns the TTLs the dashboard runs with
func DefaultCacheStorageConfig() *CacheStorageConfig {
	return &CacheStorageConfig{
		Enabled:    true,
		OptionsTTL: time.Hour,
		CascadeTTL: 30 * time.Minute,
		DataTTL:    15 * time.Minute,
	}
}

// NewCachedStorage creates a new CachedStorage instance. A nil cache
// disables caching.
func NewCachedStorage(ops Operations, cacheImpl cache.Cache, config *CacheStorageConfig) *CachedStorage {
	if config == nil {
		config = DefaultCacheStorageConfig()
	}
	cfg := *config
	if cacheImpl == nil {
		cfg.Enabled = false
	}

	return &CachedStorage{
		Operations: ops,
		cache:      cacheImpl,
		keyGen:     cache.NewKeyGenerator("h1b"),
		config:     &cfg,
	}
}

// cached is cache-aside with singleflight around load
func cached[T any](ctx context.Context, cs *CachedStorage, kind, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if !cs.config.Enabled {
		return load()
	}

	if data, err := cs.cache.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			cs.cache.GetMetrics().Hits.Add(1)
			metrics.RecordCacheLookup(kind, true)
			return v, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		logging.Warn("cache read failed", logging.CacheKey(key), logging.Err(err))
	}

	cs.cache.GetMetrics().Misses.Add(1)
	metrics.RecordCacheLookup(kind, false)

	v, err, _ := cs.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return v, err
		}
		if data, err := json.Marshal(v); err == nil {
			if err := cs.cache.Set(ctx, key, data, ttl); err != nil {
				logging.Warn("cache write failed", logging.CacheKey(key), logging.Err(err))
			}
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// ListDistinct with caching
func (cs *CachedStorage) ListDistinct(ctx context.Context, column string, filters FilterState) ([]string, error) {
	filters = filters.Normalize()
	key := cs.keyGen.OptionsKey(column, filters)
	return cached(ctx, cs, "options", key, cs.config.OptionsTTL, func() ([]string, error) {
		return cs.Operations.ListDistinct(ctx, column, filters)
	})
}

// ListYears with caching
func (cs *CachedStorage) ListYears(ctx context.Context, filters FilterState) ([]int, error) {
	filters = filters.Normalize()
	key := cs.keyGen.OptionsKey("years", filters)
	return cached(ctx, cs, "options", key, cs.config.OptionsTTL, func() ([]int, error) {
		return cs.Operations.ListYears(ctx, filters)
	})
}

// Fetch with caching
func (cs *CachedStorage) Fetch(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	filters = filters.Normalize()
	key := cs.keyGen.DataKey("fetch", filters, spec)
	return cached(ctx, cs, "data", key, cs.config.DataTTL, func() (*ResultTable, error) {
		return cs.Operations.Fetch(ctx, filters, spec)
	})
}

// FetchGeographic with caching. The key drops state and city so every
// geographic selection shares one entry.
func (cs *CachedStorage) FetchGeographic(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	filters = filters.Normalize().WithoutGeography()
	key := cs.keyGen.DataKey("geographic", filters, spec)
	return cached(ctx, cs, "data", key, cs.config.DataTTL, func() (*ResultTable, error) {
		return cs.Operations.FetchGeographic(ctx, filters, spec)
	})
}

// FetchYearly with caching, keyed without the year selection
func (cs *CachedStorage) FetchYearly(ctx context.Context, filters FilterState, spec AggregationSpec) (*ResultTable, error) {
	filters = filters.Normalize().WithoutYear()
	key := cs.keyGen.DataKey("yearly", filters, spec)
	return cached(ctx, cs, "data", key, cs.config.DataTTL, func() (*ResultTable, error) {
		return cs.Operations.FetchYearly(ctx, filters, spec)
	})
}

// Cities with caching, keyed by parent facets only
func (cs *CachedStorage) Cities(ctx context.Context, filters FilterState) ([]string, error) {
	parents := filters.Parents(FacetCity)
	key := cs.keyGen.CascadeKey(string(FacetCity), parents)
	return cached(ctx, cs, "cascade", key, cs.config.CascadeTTL, func() ([]string, error) {
		return cs.Operations.Cities(ctx, parents)
	})
}

// JobTitles with caching, keyed by parent facets only
func (cs *CachedStorage) JobTitles(ctx context.Context, filters FilterState) ([]string, error) {
	parents := filters.Parents(FacetJobTitle)
	key := cs.keyGen.CascadeKey(string(FacetJobTitle), parents)
	return cached(ctx, cs, "cascade", key, cs.config.CascadeTTL, func() ([]string, error) {
		return cs.Operations.JobTitles(ctx, parents)
	})
}

// SOCTitles with caching, keyed by parent facets only
func (cs *CachedStorage) SOCTitles(ctx context.Context, filters FilterState) ([]string, error) {
	parents := filters.Parents(FacetSOCTitle)
	key := cs.keyGen.CascadeKey(string(FacetSOCTitle), parents)
	return cached(ctx, cs, "cascade", key, cs.config.CascadeTTL, func() ([]string, error) {
		return cs.Operations.SOCTitles(ctx, parents)
	})
}

// Invalidate removes cached entries for a scope: all, options, cascade,
// data or snapshot. Returns the number of keys removed.
func (cs *CachedStorage) Invalidate(ctx context.Context, scope string) (int, error) {
	if cs.cache == nil {
		return 0, nil
	}
	pattern, err := cs.keyGen.PatternFor(scope)
	if err != nil {
		return 0, err
	}
	n, err := cs.cache.DeleteByPattern(ctx, pattern)
	if err != nil {
		return 0, err
	}
	metrics.RecordInvalidation(n)
	logging.Info("cache invalidated", slog.String("scope", scope), logging.Count("key", n))
	return n, nil
}

// GetCacheMetrics returns cache performance metrics, nil when disabled
func (cs *CachedStorage) GetCacheMetrics() *cache.Metrics {
	if cs.cache == nil {
		return nil
	}
	return cs.cache.GetMetrics()
}

// Cache returns the underlying cache, nil when disabled
func (cs *CachedStorage) Cache() cache.Cache {
	return cs.cache
}

// Close closes the wrapped operations and the cache
func (cs *CachedStorage) Close() error {
	err := cs.Operations.Close()
	if cs.cache != nil {
		err = errors.Join(err, cs.cache.Close())
	}
	return err
}
