package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker provides health check data to the API server.
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthStatus
}

// HealthStatus is the full health check response.
type HealthStatus struct {
	Status    string          `json:"status"` // "ok" or "degraded"
	Time      time.Time       `json:"time"`
	Uptime    string          `json:"uptime"`         // human-readable
	UptimeSec float64         `json:"uptime_seconds"` // machine-readable
	Version   VersionInfo     `json:"version"`
	Database  DatabaseHealth  `json:"database"`
	Pool      *PoolHealth     `json:"pool,omitempty"`
	Cache     *CacheHealth    `json:"cache,omitempty"`
	Snapshot  *SnapshotHealth `json:"snapshot,omitempty"`
}

// VersionInfo contains build version details.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// DatabaseHealth reports whether the petitions table can be reached.
type DatabaseHealth struct {
	Backend    string `json:"backend"`
	Connected  bool   `json:"connected"`
	ResponseMs int64  `json:"response_ms"`
	Error      string `json:"error,omitempty"`
}

// PoolHealth reports worker pool usage and the circuit breaker state.
type PoolHealth struct {
	Size    int    `json:"size"`
	InUse   int    `json:"in_use"`
	Open    int    `json:"open"`
	Breaker string `json:"breaker"`
}

// CacheHealth reports BadgerDB cache status.
type CacheHealth struct {
	Enabled bool    `json:"enabled"`
	Keys    uint64  `json:"keys"`
	HitRate float64 `json:"hit_rate"`
}

// SnapshotHealth reports the stored career comparison snapshot.
type SnapshotHealth struct {
	Version string    `json:"version"`
	BuiltAt time.Time `json:"built_at"`
	AgeSec  float64   `json:"age_seconds"`
}

// HealthHandler handles health check requests. A degraded database still
// answers 200; the status field carries the outcome.
// GET /api/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.healthChecker != nil {
		WriteJSONSuccess(w, s.healthChecker.CheckHealth(r.Context()))
		return
	}
	WriteJSONSuccess(w, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
