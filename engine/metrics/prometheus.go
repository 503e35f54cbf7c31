// Package metrics provides Prometheus metrics export for the context
// core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports core metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	// Request metrics
	augmentRequests *prometheus.CounterVec
	augmentLatency  *prometheus.HistogramVec

	// Resolution bus metrics
	fastPathLatency  prometheus.Histogram
	slowPathOutcomes *prometheus.CounterVec

	// Memory metrics
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	decayedTotal prometheus.Counter
	expiredTotal prometheus.Counter

	// Drift metrics
	driftSignals *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry
	// Buckets for latency histograms, in seconds.
	LatencyBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}
}

// NewExporter creates a metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.augmentRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "core",
			Name:      "augment_requests_total",
			Help:      "Augment requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)
	e.augmentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ral",
			Subsystem: "core",
			Name:      "augment_latency_seconds",
			Help:      "Augment request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"endpoint"},
	)
	e.fastPathLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ral",
			Subsystem: "bus",
			Name:      "fast_path_latency_seconds",
			Help:      "Atomic context resolution latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)
	e.slowPathOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "bus",
			Name:      "slow_path_outcomes_total",
			Help:      "Slow path outcomes: completed, timeout, skipped",
		},
		[]string{"outcome"},
	)
	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "memory",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name",
		},
		[]string{"cache"},
	)
	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "memory",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name",
		},
		[]string{"cache"},
	)
	e.decayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "memory",
			Name:      "decayed_records_total",
			Help:      "Records whose confidence was decayed",
		},
	)
	e.expiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "memory",
			Name:      "expired_records_total",
			Help:      "Ephemeral records removed after expiry",
		},
	)
	e.driftSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ral",
			Subsystem: "drift",
			Name:      "signals_total",
			Help:      "Drift signals by type",
		},
		[]string{"type"},
	)

	registry.MustRegister(
		e.augmentRequests, e.augmentLatency,
		e.fastPathLatency, e.slowPathOutcomes,
		e.cacheHits, e.cacheMisses, e.decayedTotal, e.expiredTotal,
		e.driftSignals,
	)

	return e
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// RecordAugment counts one request and observes its latency.
func (e *Exporter) RecordAugment(endpoint, status string, seconds float64) {
	e.augmentRequests.WithLabelValues(endpoint, status).Inc()
	e.augmentLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordFastPath observes one atomic resolution.
func (e *Exporter) RecordFastPath(seconds float64) {
	e.fastPathLatency.Observe(seconds)
}

// RecordSlowPath counts one slow-path outcome.
func (e *Exporter) RecordSlowPath(outcome string) {
	e.slowPathOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCache counts a cache hit or miss.
func (e *Exporter) RecordCache(cache string, hit bool) {
	if hit {
		e.cacheHits.WithLabelValues(cache).Inc()
		return
	}
	e.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordDecayed counts decayed records.
func (e *Exporter) RecordDecayed(count int) {
	e.decayedTotal.Add(float64(count))
}

// RecordExpired counts removed ephemeral records.
func (e *Exporter) RecordExpired(count int) {
	e.expiredTotal.Add(float64(count))
}

// RecordDriftSignal counts one drift signal.
func (e *Exporter) RecordDriftSignal(signalType string) {
	e.driftSignals.WithLabelValues(signalType).Inc()
}
