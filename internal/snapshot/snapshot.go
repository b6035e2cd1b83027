// Package snapshot keeps a materialized AI/ML vs software developer
// comparison in the cache store, versioned by the dataset fingerprint.
//
// A stored snapshot is served while its version matches the live dataset
// and it is younger than the configured maximum age. Otherwise it is
// rebuilt, with concurrent requests sharing one build. When a rebuild fails
// the previous snapshot is served with a snapshot_stale warning; when there
// is none the comparison is empty and carries snapshot_unavailable.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/cache"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/metrics"
	"github.com/h1bexplorer/internal/storage"
)

// Name of the career comparison snapshot
const Name = "career_comparison"

// ErrNotFound is returned by Load when no snapshot is stored
var ErrNotFound = errors.New("snapshot not found")

// CareerSnapshot is a stored comparison with its provenance
type CareerSnapshot struct {
	Version    string                     `json:"version"`
	BuiltAt    time.Time                  `json:"built_at"`
	BuildID    string                     `json:"build_id"`
	Comparison analytics.CareerComparison `json:"comparison"`
}

// Age returns how long ago the snapshot was built
func (s *CareerSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.BuiltAt)
}

// Config controls snapshot freshness
type Config struct {
	MaxAge       time.Duration
	BuildTimeout time.Duration
	// VersionTTL is how long a dataset fingerprint is trusted before the
	// table is scanned again. 0 scans on every read.
	VersionTTL time.Duration
}

// DefaultConfig returns a one day maximum age
func DefaultConfig() *Config {
	return &Config{
		MaxAge:       24 * time.Hour,
		BuildTimeout: 2 * time.Minute,
		VersionTTL:   time.Minute,
	}
}

// Builder computes the comparison from the live dataset
type Builder interface {
	BuildCareerComparison(ctx context.Context, f storage.FilterState) (analytics.CareerComparison, error)
}

// Versioner reports the live dataset version
type Versioner interface {
	Fingerprint(ctx context.Context) (storage.Fingerprint, error)
}

// Store reads, validates and rebuilds the career snapshot
type Store struct {
	cache   cache.Cache
	dataset Versioner
	builder Builder
	key     string
	config  Config
	group   singleflight.Group

	mu        sync.Mutex
	version   storage.Fingerprint
	versionAt time.Time // zero when no fingerprint is held

	now func() time.Time
}

// NewStore creates a snapshot store over c
func NewStore(c cache.Cache, dataset Versioner, builder Builder, config *Config) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("snapshot store needs a cache")
	}
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultConfig().BuildTimeout
	}
	return &Store{
		cache:   c,
		dataset: dataset,
		builder: builder,
		key:     cache.NewKeyGenerator("h1b").SnapshotKey(Name),
		config:  cfg,
		now:     time.Now,
	}, nil
}

// Load returns the stored snapshot, ErrNotFound when there is none
func (s *Store) Load(ctx context.Context) (*CareerSnapshot, error) {
	data, err := s.cache.Get(ctx, s.key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap CareerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save stores snap without expiry. Freshness is judged on read.
func (s *Store) Save(ctx context.Context, snap *CareerSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Fresh reports whether snap can be served for dataset version
func (s *Store) Fresh(snap *CareerSnapshot, version string) bool {
	return snap != nil && snap.Version == version && snap.Age(s.now()) <= s.config.MaxAge
}

// Build recomputes and stores the snapshot. Concurrent calls share one
// build, which runs detached from the caller's cancellation.
func (s *Store) Build(ctx context.Context) (*CareerSnapshot, error) {
	v, err, shared := s.group.Do(Name, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.BuildTimeout)
		defer cancel()
		return s.build(buildCtx)
	})
	if shared {
		logging.Debug("Snapshot build shared", slog.String("snapshot", Name))
	}
	if err != nil {
		return nil, err
	}
	return v.(*CareerSnapshot), nil
}

func (s *Store) build(ctx context.Context) (snap *CareerSnapshot, err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotBuild(Name, err) }()

	fp, err := s.dataset.Fingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset version: %w", err)
	}
	s.remember(fp)
	comparison, err := s.builder.BuildCareerComparison(ctx, storage.AllFilters())
	if err != nil {
		return nil, fmt.Errorf("failed to build %s snapshot: %w", Name, err)
	}

	snap = &CareerSnapshot{
		Version:    fp.String(),
		BuiltAt:    s.now().UTC(),
		BuildID:    uuid.NewString(),
		Comparison: comparison,
	}
	if err := s.Save(ctx, snap); err != nil {
		return nil, err
	}

	logging.Info("Snapshot built",
		slog.String("snapshot", Name),
		slog.String("version", snap.Version),
		slog.String("build_id", snap.BuildID),
		logging.Duration("build", time.Since(start)))
	return snap, nil
}

// Current returns a snapshot valid for the live dataset, rebuilding when the
// stored one is missing, outdated or too old. On rebuild failure it returns
// the stored snapshot, if any, with stale set.
func (s *Store) Current(ctx context.Context) (snap *CareerSnapshot, stale bool, err error) {
	stored, loadErr := s.Load(ctx)
	if loadErr != nil && !errors.Is(loadErr, ErrNotFound) {
		logging.Warn("Snapshot unreadable, rebuilding", slog.String("snapshot", Name), logging.Err(loadErr))
	}

	fp, fpErr := s.fingerprint(ctx)
	if fpErr == nil && s.Fresh(stored, fp.String()) {
		metrics.RecordSnapshotAge(Name, stored.Age(s.now()))
		return stored, false, nil
	}

	built, buildErr := s.Build(ctx)
	if buildErr == nil {
		metrics.RecordSnapshotAge(Name, 0)
		return built, false, nil
	}

	if stored != nil {
		logging.Warn("Snapshot rebuild failed, serving stale snapshot",
			slog.String("snapshot", Name),
			slog.String("version", stored.Version),
			logging.Err(buildErr))
		metrics.RecordSnapshotAge(Name, stored.Age(s.now()))
		return stored, true, nil
	}
	return nil, false, buildErr
}

// fingerprint returns the dataset version, scanning the table at most once
// per VersionTTL
func (s *Store) fingerprint(ctx context.Context) (storage.Fingerprint, error) {
	if s.config.VersionTTL > 0 {
		s.mu.Lock()
		fp, at := s.version, s.versionAt
		s.mu.Unlock()
		if !at.IsZero() && s.now().Sub(at) < s.config.VersionTTL {
			return fp, nil
		}
	}
	fp, err := s.dataset.Fingerprint(ctx)
	if err != nil {
		return storage.Fingerprint{}, err
	}
	s.remember(fp)
	return fp, nil
}

func (s *Store) remember(fp storage.Fingerprint) {
	s.mu.Lock()
	s.version, s.versionAt = fp, s.now()
	s.mu.Unlock()
}

// Forget drops the remembered dataset version so the next read checks the
// table. Call it after the dataset has been replaced.
func (s *Store) Forget() {
	s.mu.Lock()
	s.version, s.versionAt = storage.Fingerprint{}, time.Time{}
	s.mu.Unlock()
}

// CareerComparison serves the snapshot to analytics. It never fails; a
// missing snapshot yields an empty comparison with a warning.
func (s *Store) CareerComparison(ctx context.Context) (analytics.CareerComparison, analytics.Warnings) {
	const view = "career_comparison"
	snap, stale, err := s.Current(ctx)
	if err != nil {
		logging.Warn("No snapshot available", slog.String("snapshot", Name), logging.Err(err))
		metrics.RecordViewWarning(view, analytics.CodeSnapshotUnavailable)
		return analytics.EmptyCareerComparison(), analytics.Warnings{
			analytics.NewWarning(view, analytics.CodeSnapshotUnavailable),
		}
	}
	if stale {
		metrics.RecordViewWarning(view, analytics.CodeSnapshotStale)
		return snap.Comparison, analytics.Warnings{analytics.NewWarning(view, analytics.CodeSnapshotStale)}
	}
	return snap.Comparison, nil
}

var _ analytics.SnapshotSource = (*Store)(nil)
