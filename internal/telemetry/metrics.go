// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// index builds and interactive queries. Both are safe to use when disabled:
// every recording method is a no-op on a disabled or nil collector.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures metrics collection
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Buckets   []float64
}

// Metrics provides Prometheus metrics for index builds and queries
type Metrics struct {
	config MetricsConfig

	// Build metrics
	rebuildsStarted   *prometheus.CounterVec
	rebuildsCompleted *prometheus.CounterVec
	rebuildDuration   *prometheus.HistogramVec
	descriptorsParsed *prometheus.CounterVec
	indexEntries      *prometheus.GaugeVec

	// Catalog cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// Query metrics
	queryDuration *prometheus.HistogramVec
	diagnostics   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. A disabled config yields a no-op
// collector.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "spring_assistant"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		rebuildsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_rebuilds_started_total",
				Help:      "Total number of index rebuilds started",
			},
			[]string{"module"},
		),
		rebuildsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_rebuilds_completed_total",
				Help:      "Total number of index rebuilds finished, by outcome",
			},
			[]string{"module", "outcome"},
		),
		rebuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_rebuild_duration_seconds",
				Help:      "Duration of index rebuilds in seconds",
				Buckets:   buckets,
			},
			[]string{"module"},
		),
		descriptorsParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "descriptors_parsed_total",
				Help:      "Total number of metadata descriptors parsed, by result",
			},
			[]string{"result"},
		),
		indexEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_entries",
				Help:      "Number of property entries in the published index",
			},
			[]string{"module"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_hits_total",
			Help:      "Parsed catalog cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_misses_total",
			Help:      "Parsed catalog cache misses",
		}),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of interactive queries in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnostics_reported_total",
				Help:      "Diagnostics produced by validation, by code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.rebuildsStarted,
		m.rebuildsCompleted,
		m.rebuildDuration,
		m.descriptorsParsed,
		m.indexEntries,
		m.cacheHits,
		m.cacheMisses,
		m.queryDuration,
		m.diagnostics,
	)
	return m
}

// Enabled reports whether metrics are being collected
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RecordRebuildStarted records the start of an index rebuild
func (m *Metrics) RecordRebuildStarted(module string) {
	if !m.Enabled() {
		return
	}
	m.rebuildsStarted.WithLabelValues(module).Inc()
}

// RecordRebuildCompleted records a finished rebuild. outcome is one of
// "published", "unchanged", "superseded" or "failed".
func (m *Metrics) RecordRebuildCompleted(module, outcome string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.rebuildsCompleted.WithLabelValues(module, outcome).Inc()
	m.rebuildDuration.WithLabelValues(module).Observe(duration.Seconds())
}

// RecordDescriptorParsed counts one descriptor parse, ok or failed
func (m *Metrics) RecordDescriptorParsed(ok bool) {
	if !m.Enabled() {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.descriptorsParsed.WithLabelValues(result).Inc()
}

// SetIndexEntries records the size of a module's published index
func (m *Metrics) SetIndexEntries(module string, n int) {
	if !m.Enabled() {
		return
	}
	m.indexEntries.WithLabelValues(module).Set(float64(n))
}

// DeleteModule drops per-module series after the module is closed
func (m *Metrics) DeleteModule(module string) {
	if !m.Enabled() {
		return
	}
	m.indexEntries.DeleteLabelValues(module)
}

// RecordCacheHit counts a parsed-catalog cache hit
func (m *Metrics) RecordCacheHit() {
	if !m.Enabled() {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a parsed-catalog cache miss
func (m *Metrics) RecordCacheMiss() {
	if !m.Enabled() {
		return
	}
	m.cacheMisses.Inc()
}

// ObserveQuery records the duration of an interactive query such as
// "completion" or "validation".
func (m *Metrics) ObserveQuery(operation string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDiagnostic counts a reported diagnostic
func (m *Metrics) RecordDiagnostic(code string) {
	if !m.Enabled() {
		return
	}
	m.diagnostics.WithLabelValues(code).Inc()
}

// Registry returns the underlying registry, nil when disabled
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Timer measures elapsed time for an operation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
