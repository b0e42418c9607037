// Package metrics provides Prometheus instrumentation for the
// Kestrel analysis pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VerdictsTotal counts verdicts by classification.
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "verdicts_total",
			Help:      "Total verdicts produced by classification.",
		},
		[]string{"classification"},
	)

	// DetectorMissesTotal counts detector misses by detector and reason.
	DetectorMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "detector_misses_total",
			Help:      "Total detector misses by detector and reason.",
		},
		[]string{"detector", "reason"},
	)

	// AnalysisDuration observes end-to-end analysis latency.
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end transaction analysis duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// DegradedVerdictsTotal counts verdicts produced in degraded mode.
	DegradedVerdictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "degraded_verdicts_total",
		Help:      "Total verdicts produced with misses above tolerance.",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ProfileCacheHits counts history profile cache hits and misses.
	ProfileCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "profile_cache_requests_total",
			Help:      "Profile cache lookups by outcome (hit, miss).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		VerdictsTotal,
		DetectorMissesTotal,
		AnalysisDuration,
		DegradedVerdictsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProfileCacheHits,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
