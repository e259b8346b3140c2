package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_sync_runs_total",
			Help: "Library sync runs by result",
		},
		[]string{"platform", "result"}, // success, error, empty
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "library_sync_duration_seconds",
			Help:    "Duration of a full library sync",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"platform"},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_sync_records_total",
			Help: "Library records written by sync",
		},
		[]string{"platform", "op"}, // added, updated
	)

	CatalogEntriesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_entries_created_total",
			Help: "Catalog entries created during sync or manual add",
		},
	)

	// Metadata provider
	MetadataRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_requests_total",
			Help: "Requests sent to the metadata provider",
		},
		[]string{"endpoint", "status"},
	)

	MetadataSearchStage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_search_matches_total",
			Help: "Which search stage produced a match",
		},
		[]string{"stage"}, // exact, clean, base, none
	)

	MetadataGateWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metadata_gate_wait_seconds",
			Help:    "Time spent waiting on the metadata request gate",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.275, 0.5, 1, 2.5, 5},
		},
	)

	MetadataCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_total",
			Help: "Metadata search cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// Owned-games provider
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owned_games_requests_total",
			Help: "Requests sent to the owned-games provider",
		},
		[]string{"endpoint", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Database pool
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "PostgreSQL pool connections by state",
		},
		[]string{"state"}, // acquired, idle, total
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
