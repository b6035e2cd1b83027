package main

import (
	"context"
	"time"

	"github.com/h1bexplorer/internal/api"
	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/version"
)

// healthPingTimeout bounds the database check of one health request
const healthPingTimeout = 5 * time.Second

// serverHealthChecker implements api.HealthChecker over the wired components.
type serverHealthChecker struct {
	app       *app.App
	startTime time.Time
}

func (h *serverHealthChecker) CheckHealth(ctx context.Context) *api.HealthStatus {
	now := time.Now().UTC()
	uptime := now.Sub(h.startTime)
	info := version.Get()

	status := &api.HealthStatus{
		Status:    "ok",
		Time:      now,
		Uptime:    uptime.Truncate(time.Second).String(),
		UptimeSec: uptime.Seconds(),
		Version: api.VersionInfo{
			Version:   version.GetVersionInfo(),
			GitCommit: info.GitCommit,
			BuildTime: info.BuildTime,
		},
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	pingStart := time.Now()
	err := h.app.Pool.Ping(pingCtx)
	status.Database = api.DatabaseHealth{
		Backend:    h.app.Pool.Backend(),
		Connected:  err == nil,
		ResponseMs: time.Since(pingStart).Milliseconds(),
	}
	if err != nil {
		status.Database.Error = err.Error()
		status.Status = "degraded"
	}

	stats := h.app.Pool.Stats()
	status.Pool = &api.PoolHealth{
		Size:    stats.Size,
		InUse:   stats.InUse,
		Open:    stats.Open,
		Breaker: h.app.Storage.BreakerState(),
	}

	if h.app.Cache != nil {
		metrics := h.app.Cache.GetMetrics()
		status.Cache = &api.CacheHealth{
			Enabled: true,
			Keys:    metrics.Keys.Load(),
			HitRate: metrics.HitRate(),
		}
	}

	// Reads the stored snapshot only; a health check never triggers a build
	if h.app.Snapshots != nil {
		if snap, err := h.app.Snapshots.Load(ctx); err == nil {
			status.Snapshot = &api.SnapshotHealth{
				Version: snap.Version,
				BuiltAt: snap.BuiltAt,
				AgeSec:  snap.Age(now).Seconds(),
			}
		}
	}

	return status
}
