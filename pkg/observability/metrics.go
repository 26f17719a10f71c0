package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the permission core.
type Metrics struct {
	// Permission check metrics
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	CheckErrorsTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheErrorsTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheKeysDeletedTotal   prometheus.Counter

	// Mutation metrics
	MutationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registry. A nil
// registry uses the default registerer.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"result", "source"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_permission_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		CheckErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_check_errors_total",
				Help: "Total number of failed permission checks",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_cache_hits_total",
				Help: "Total number of permission cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_cache_misses_total",
				Help: "Total number of permission cache misses",
			},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_cache_errors_total",
				Help: "Total number of swallowed cache backend errors",
			},
			[]string{"operation"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_cache_invalidations_total",
				Help: "Total number of cache invalidation requests",
			},
			[]string{"scope"},
		),
		CacheKeysDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_cache_keys_deleted_total",
				Help: "Total number of cache keys removed by invalidation",
			},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_mutations_total",
				Help: "Total number of permission matrix mutations",
			},
			[]string{"operation"},
		),
	}

	collectors := []prometheus.Collector{
		m.ChecksTotal,
		m.CheckDuration,
		m.CheckErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.CacheInvalidationsTotal,
		m.CacheKeysDeletedTotal,
		m.MutationsTotal,
	}

	if registry != nil {
		registry.MustRegister(collectors...)
	} else {
		prometheus.MustRegister(collectors...)
	}

	return m
}

// NopMetrics returns unregistered metrics for tests and callers that do not
// scrape.
func NopMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetrics(reg)
}
