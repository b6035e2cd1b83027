// Package app wires the database pool, query layer, cache, views and
// snapshot store from a loaded configuration. The server and the CLI share
// it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/cache"
	"github.com/h1bexplorer/internal/config"
	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/snapshot"
	"github.com/h1bexplorer/internal/storage"
)

// App holds the assembled components. Cache, Cached and Snapshots are nil
// when disabled.
type App struct {
	Config    *config.Config
	Pool      *database.Pool
	Storage   *storage.Storage
	Cache     cache.Cache
	Cached    *storage.CachedStorage
	Ops       storage.Operations
	Views     *analytics.Service
	Snapshots *snapshot.Store
}

// New assembles the components. No database connection is opened; the
// first query opens its worker's handle.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	factory, err := cfg.DatabaseFactory()
	if err != nil {
		return nil, err
	}
	a.Pool, err = database.NewPool(cfg.Pool.Workers, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	a.Storage, err = storage.New(a.Pool, cfg.ToStorageConfig())
	if err != nil {
		a.Pool.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Ops = a.Storage

	a.Cache, err = cache.New(cfg.Cache.ToCacheConfig())
	if err != nil {
		a.Pool.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if a.Cache != nil {
		a.Cached = storage.NewCachedStorage(a.Storage, a.Cache, cfg.Cache.ToCacheStorageConfig())
		a.Ops = a.Cached
		logging.Info("BadgerCache initialized",
			slog.String("path", cfg.Cache.Path),
			slog.Bool("in_memory", cfg.Cache.InMemory),
			slog.Int("memory_mb", cfg.Cache.MaxMemoryMB),
			slog.Duration("options_ttl", cfg.Cache.OptionsTTL),
			slog.Duration("data_ttl", cfg.Cache.DataTTL))
	} else {
		logging.Info("Cache is disabled")
	}

	a.Views = analytics.New(a.Ops, cfg.Thresholds.ToThresholds())

	if cfg.Snapshot.Enabled && a.Cache != nil {
		a.Snapshots, err = snapshot.NewStore(a.Cache, a.Ops, a.Views, cfg.Snapshot.ToSnapshotConfig())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Views.SetSnapshotSource(a.Snapshots)
	}

	logging.Info("Components ready",
		logging.Backend(a.Pool.Backend()),
		slog.String("table", cfg.Database.Table),
		logging.Count("worker", cfg.Pool.Workers),
		slog.Bool("snapshots", a.Snapshots != nil))
	return a, nil
}

// Probe pings the database once so a missing file shows up in the startup
// log. A failure is not fatal; views degrade until the data is reachable.
func (a *App) Probe(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := a.Pool.Ping(ctx); err != nil {
		logging.Warn("Database not reachable, views will return empty results",
			logging.Backend(a.Pool.Backend()),
			a.target(),
			logging.Err(err))
		return err
	}
	logging.Info("Database reachable",
		logging.Backend(a.Pool.Backend()),
		a.target(),
		logging.Duration("ping", time.Since(start)))
	return nil
}

// ResetAll reopens every pooled handle and drops what was derived from the
// previous dataset: cached query results and the remembered snapshot
// version. The stored snapshot is kept as a stale fallback until it is
// rebuilt. Use it after the dataset file has been replaced.
func (a *App) ResetAll(ctx context.Context) error {
	if err := a.Pool.ResetAll(ctx); err != nil {
		return err
	}

	var errs []error
	if a.Cached != nil {
		for _, scope := range []string{cache.ScopeOptions, cache.ScopeCascade, cache.ScopeData} {
			if _, err := a.Cached.Invalidate(ctx, scope); err != nil {
				errs = append(errs, fmt.Errorf("failed to invalidate %s cache: %w", scope, err))
			}
		}
	}
	if a.Snapshots != nil {
		a.Snapshots.Forget()
	}
	return errors.Join(errs...)
}

// target names the dataset the pool reads from
func (a *App) target() slog.Attr {
	if a.Config.Database.Driver == config.DriverClickHouse {
		return slog.String("host", fmt.Sprintf("%s:%d", a.Config.ClickHouse.Host, a.Config.ClickHouse.Port))
	}
	return logging.File(a.Config.DuckDB.Path)
}

// Close releases the cache and every database handle
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Pool != nil {
		errs = append(errs, a.Pool.Close())
	}
	return errors.Join(errs...)
}
