package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/h1bexplorer/internal/analytics"
)

// SetupRouter creates and configures a Chi router with all API routes
func (s *Server) SetupRouter() http.Handler {
	r := chi.NewRouter()

	// Built-in Chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Custom middleware
	r.Use(s.LoggingMiddleware)
	r.Use(s.MetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.options.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.options.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.options.RateLimit, time.Minute))
		}
		if s.options.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.options.RequestTimeout))
		}

		r.Get("/health", s.HealthHandler)
		r.Get("/cache/stats", s.CacheStatsHandler)

		// Facet options
		r.Route("/facets", func(r chi.Router) {
			r.Get("/", viewHandler(s.views.FacetOptions, emptyFacets))
			r.Get("/cities", viewHandler(s.views.Cities, emptySlice[string]))
			r.Get("/job-titles", viewHandler(s.views.JobTitles, emptySlice[string]))
			r.Get("/soc-titles", viewHandler(s.views.SOCTitles, emptySlice[string]))
		})

		// Overview
		r.Get("/summary", viewHandler(s.views.Summary, emptySummary))
		r.Get("/wage-levels", viewHandler(s.views.WageLevels, emptyWageLevels))
		r.Get("/states", viewHandler(s.views.StateDistribution, emptySlice[analytics.StateStat]))
		r.Get("/occupations/top", viewHandler(s.views.TopOccupations, emptyOccupations))

		// Trends
		r.Route("/trends", func(r chi.Router) {
			r.Get("/yearly", viewHandler(s.views.YearlyTrends, emptyTrends))
			r.Get("/policy", viewHandler(s.views.PolicyImpact, emptyPolicy))
			r.Get("/occupations", viewHandler(s.views.YearlyTopOccupations, emptySlice[analytics.YearLevelOccupations]))
		})

		// Entry-level hiring
		r.Route("/employers", func(r chi.Router) {
			r.Get("/top", viewHandler(s.views.TopEmployers, emptyEmployers))
			r.Get("/types", viewHandler(s.views.EmployerTypes, emptySlice[analytics.EmployerType]))
			r.Get("/students", viewHandler(s.views.StudentEmployers, emptySlice[analytics.EmployerStat]))
		})
		r.Get("/locations", viewHandler(s.views.Locations, emptyLocations))

		// Careers
		r.Route("/careers", func(r chi.Router) {
			r.Get("/growth", viewHandler(s.views.CareerGrowth, emptyCareers))
			r.Get("/ai-vs-software", viewHandler(s.views.CareerComparison, emptyComparison))
		})

		// Admin routes exist only with a token configured
		if s.options.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.AdminAuth)
				r.Post("/connections/reset", s.ResetConnectionsHandler)
				r.Post("/cache/invalidate", s.InvalidateCacheHandler)
			})
		}
	})

	return r
}
