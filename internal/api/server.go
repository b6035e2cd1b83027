// Package api is the JSON presentation boundary over the analytics views.
//
// Every view route answers 200 with an envelope carrying the data, the
// warnings raised while computing it, an empty flag and the normalized
// filters. Only malformed parameters are client errors.
package api

import (
	"context"
	"time"

	"github.com/h1bexplorer/internal/analytics"
	"github.com/h1bexplorer/internal/cache"
)

// ConnectionResetter resets every pooled database handle
type ConnectionResetter interface {
	ResetAll(ctx context.Context) error
}

// CacheController exposes the query cache to the admin routes
type CacheController interface {
	Invalidate(ctx context.Context, scope string) (int, error)
	GetCacheMetrics() *cache.Metrics
}

// Options configures the router middleware
type Options struct {
	CORSOrigins    []string
	RateLimit      int // requests per minute per client IP, 0 disables
	RequestTimeout time.Duration
	AdminToken     string // empty disables the admin routes
}

// Server represents the API server
type Server struct {
	views         *analytics.Service
	options       Options
	healthChecker HealthChecker
	connections   ConnectionResetter
	cache         CacheController
}

// New creates a new API server over the view service
func New(views *analytics.Service, options Options) *Server {
	return &Server{
		views:   views,
		options: options,
	}
}

// SetHealthChecker sets the health checker for the server
func (s *Server) SetHealthChecker(hc HealthChecker) {
	s.healthChecker = hc
}

// SetConnectionResetter enables POST /api/admin/connections/reset
func (s *Server) SetConnectionResetter(r ConnectionResetter) {
	s.connections = r
}

// SetCacheController enables the cache stats and invalidation routes
func (s *Server) SetCacheController(c CacheController) {
	s.cache = c
}
