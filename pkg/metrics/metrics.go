// Package metrics provides Prometheus metrics for the edge intelligence
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics collects and exposes engine-level Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Source adapter metrics
	SourceRequests *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec

	// Matcher metrics
	MatchesTotal *prometheus.CounterVec
	MatchQuality prometheus.Histogram

	// Result metrics
	ResultsTotal *prometheus.CounterVec
	EdgeQuality  prometheus.Histogram
	Divergence   prometheus.Histogram

	// Orchestrator metrics
	BatchesTotal     *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	MarketsAnalyzed  prometheus.Counter
	RateLimitedTotal prometheus.Counter
	ActiveMarkets    prometheus.Gauge
}

// New creates an engine metrics collector with its own registry.
func New() *EngineMetrics {
	registry := prometheus.NewRegistry()

	m := &EngineMetrics{
		registry: registry,

		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeintel",
			Name:      "source_requests_total",
			Help:      "Source adapter fetches by source and status.",
		}, []string{"source", "status"}),

		SourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgeintel",
			Name:      "source_latency_seconds",
			Help:      "Source adapter fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeintel",
			Name:      "matches_total",
			Help:      "Question matches by source and validation outcome.",
		}, []string{"source", "validated"}),

		MatchQuality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgeintel",
			Name:      "match_quality",
			Help:      "Match quality score distribution.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeintel",
			Name:      "results_total",
			Help:      "Edge results by grade and signal.",
		}, []string{"grade", "signal"}),

		EdgeQuality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgeintel",
			Name:      "edge_quality",
			Help:      "Edge quality score distribution.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		Divergence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgeintel",
			Name:      "divergence_abs",
			Help:      "Absolute consensus-vs-market divergence.",
			Buckets:   prometheus.LinearBuckets(0, 0.05, 11),
		}),

		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeintel",
			Name:      "batches_total",
			Help:      "Batch analyses by outcome.",
		}, []string{"outcome"}),

		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgeintel",
			Name:      "batch_duration_seconds",
			Help:      "Batch analysis wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		MarketsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgeintel",
			Name:      "markets_analyzed_total",
			Help:      "Markets run through the full pipeline.",
		}),

		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgeintel",
			Name:      "rate_limited_total",
			Help:      "Analyses refused because the call budget was exhausted.",
		}),

		ActiveMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgeintel",
			Name:      "active_markets",
			Help:      "Market pipelines currently in flight.",
		}),
	}

	registry.MustRegister(
		m.SourceRequests, m.SourceLatency,
		m.MatchesTotal, m.MatchQuality,
		m.ResultsTotal, m.EdgeQuality, m.Divergence,
		m.BatchesTotal, m.BatchDuration, m.MarketsAnalyzed,
		m.RateLimitedTotal, m.ActiveMarkets,
	)

	return m
}

// Handler returns an HTTP handler serving the registry.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
