package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Resolution
	Resolutions     *prometheus.CounterVec // outcome: resolved|not_found|unavailable|configuration
	ConfigCacheHits prometheus.Counter
	ConfigCacheMiss prometheus.Counter

	// Schema builds
	SchemaBuilds       prometheus.Counter
	SchemaBuildErrors  prometheus.Counter
	SchemaBuildSeconds prometheus.Histogram
	CachedSchemas      prometheus.Gauge

	// Invalidation
	InvalidationsProcessed prometheus.Counter
	EntriesEvicted         prometheus.Counter
	BusReconnects          prometheus.Counter

	// Admission
	AuthFailures prometheus.Counter
	CORSDenied   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "schemagate_resolutions_total",
			Help: "Total tenant resolutions by outcome",
		}, []string{"outcome"}),
		ConfigCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_config_cache_hits_total",
			Help: "Tier-1 tenant config cache hits",
		}),
		ConfigCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_config_cache_misses_total",
			Help: "Tier-1 tenant config cache misses",
		}),
		SchemaBuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_schema_builds_total",
			Help: "Total schema builds started",
		}),
		SchemaBuildErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_schema_build_errors_total",
			Help: "Total schema builds that failed",
		}),
		SchemaBuildSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "schemagate_schema_build_seconds",
			Help:    "Schema build duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CachedSchemas: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "schemagate_cached_schemas",
			Help: "Number of compiled schemas currently cached",
		}),
		InvalidationsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_invalidations_total",
			Help: "Tenant-changed notifications processed",
		}),
		EntriesEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_cache_evictions_total",
			Help: "Cache entries evicted across both tiers",
		}),
		BusReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_bus_reconnects_total",
			Help: "Invalidation bus reconnect attempts",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_auth_failures_total",
			Help: "Requests rejected as unauthenticated",
		}),
		CORSDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "schemagate_cors_denied_total",
			Help: "Requests whose Origin matched no rung of the CORS ladder",
		}),
	}
}
