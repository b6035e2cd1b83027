package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/h1bexplorer/internal/cache"
	"github.com/h1bexplorer/internal/logging"
)

// ResetConnectionsHandler resets every pooled handle through the configured
// resetter. The server's resetter also drops cached results, so this is the
// route to call after the dataset file has been replaced.
// POST /api/admin/connections/reset
func (s *Server) ResetConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	if s.connections == nil {
		WriteJSONError(w, "connection reset is not available", http.StatusNotFound)
		return
	}
	if err := s.connections.ResetAll(r.Context()); err != nil {
		logging.Error("Connection reset failed", logging.Err(err))
		WriteJSONError(w, "connection reset failed: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	logging.Info("Connections reset", slog.String("ip", r.RemoteAddr))
	WriteJSONSuccess(w, map[string]any{"reset": true})
}

// InvalidateCacheHandler drops cached results for a scope.
// POST /api/admin/cache/invalidate?scope=data
func (s *Server) InvalidateCacheHandler(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		WriteJSONError(w, "cache is disabled", http.StatusNotFound)
		return
	}

	scope := r.URL.Query().Get(paramScope)
	if scope == "" {
		scope = cache.ScopeAll
	}
	n, err := s.cache.Invalidate(r.Context(), scope)
	if errors.Is(err, cache.ErrUnknownScope) {
		WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logging.Error("Cache invalidation failed", slog.String("scope", scope), logging.Err(err))
		WriteJSONError(w, "cache invalidation failed", http.StatusInternalServerError)
		return
	}
	WriteJSONSuccess(w, map[string]any{"scope": scope, "deleted": n})
}

// CacheStatsHandler reports cache counters.
// GET /api/cache/stats
func (s *Server) CacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		WriteJSONSuccess(w, map[string]any{"enabled": false})
		return
	}
	m := s.cache.GetCacheMetrics()
	if m == nil {
		WriteJSONSuccess(w, map[string]any{"enabled": false})
		return
	}
	snap := m.Snapshot()
	WriteJSONSuccess(w, map[string]any{
		"enabled": true,
		"stats":   snap,
	})
}
