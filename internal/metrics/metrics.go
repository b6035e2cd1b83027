package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the query layer, the cache, the worker
// pool and the HTTP API. Metrics register on the default registry and are
// served by promhttp on /metrics.

var (
	// Query layer
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "h1b_query_duration_seconds",
			Help:    "Duration of analytical queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_query_errors_total",
			Help: "Total number of failed analytical queries",
		},
		[]string{"operation", "error_type"},
	)

	QueryEmptyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_query_empty_results_total",
			Help: "Queries that matched no rows",
		},
		[]string{"operation"},
	)

	ViewWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_view_warnings_total",
			Help: "Views that degraded to a neutral result",
		},
		[]string{"view", "code"},
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_cache_hits_total",
			Help: "Query cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_cache_misses_total",
			Help: "Query cache misses",
		},
		[]string{"kind"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "h1b_cache_invalidated_keys_total",
			Help: "Cache keys removed by invalidation",
		},
	)

	// Worker pool
	PoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "h1b_pool_workers",
			Help: "Number of per-worker database handles",
		},
	)

	PoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "h1b_pool_workers_in_use",
			Help: "Handles currently held by a query",
		},
	)

	PoolResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_pool_resets_total",
			Help: "Operator triggered connection resets",
		},
		[]string{"result"},
	)

	// Circuit breaker: 0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "h1b_circuit_breaker_state",
			Help: "Database circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_circuit_breaker_transitions_total",
			Help: "Circuit breaker state changes",
		},
		[]string{"name", "from", "to"},
	)

	// Snapshot
	SnapshotBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_snapshot_builds_total",
			Help: "Snapshot rebuilds",
		},
		[]string{"name", "result"},
	)

	SnapshotAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "h1b_snapshot_age_seconds",
			Help: "Age of the snapshot last served",
		},
		[]string{"name"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h1b_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "h1b_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "h1b_api_active_requests",
			Help: "Requests currently being served",
		},
	)
)

// RecordQuery records one executed query. errType is empty on success.
func RecordQuery(operation, backend string, duration time.Duration, errType string, empty bool) {
	QueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
	if errType != "" {
		QueryErrors.WithLabelValues(operation, errType).Inc()
		return
	}
	if empty {
		QueryEmptyResults.WithLabelValues(operation).Inc()
	}
}

// RecordViewWarning counts a view that fell back to a neutral result
func RecordViewWarning(view, code string) {
	ViewWarnings.WithLabelValues(view, code).Inc()
}

// RecordCacheLookup counts a hit or miss for a cache kind
func RecordCacheLookup(kind string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(kind).Inc()
		return
	}
	CacheMisses.WithLabelValues(kind).Inc()
}

// RecordInvalidation counts removed cache keys
func RecordInvalidation(keys int) {
	CacheInvalidations.Add(float64(keys))
}

// UpdatePool publishes pool usage
func UpdatePool(size, inUse int) {
	PoolSize.Set(float64(size))
	PoolInUse.Set(float64(inUse))
}

// RecordPoolReset counts a reset of all handles
func RecordPoolReset(err error) {
	if err != nil {
		PoolResets.WithLabelValues("error").Inc()
		return
	}
	PoolResets.WithLabelValues("ok").Inc()
}

// RecordBreakerState publishes a breaker transition. State names follow
// gobreaker: "closed", "half-open", "open".
func RecordBreakerState(name, from, to string) {
	BreakerTransitions.WithLabelValues(name, from, to).Inc()
	BreakerState.WithLabelValues(name).Set(breakerValue(to))
}

func breakerValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	}
	return 0
}

// RecordSnapshotBuild counts a snapshot rebuild
func RecordSnapshotBuild(name string, err error) {
	if err != nil {
		SnapshotBuilds.WithLabelValues(name, "error").Inc()
		return
	}
	SnapshotBuilds.WithLabelValues(name, "ok").Inc()
}

// RecordSnapshotAge publishes the age of a served snapshot
func RecordSnapshotAge(name string, age time.Duration) {
	SnapshotAge.WithLabelValues(name).Set(age.Seconds())
}

// RecordAPIRequest records one finished API request
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
