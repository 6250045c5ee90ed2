// Package metrics exposes Prometheus instrumentation for the HTTP API, the
// model backends, region detection and the compatibility engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fashion_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fashion_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// model calls are slow on CPU backends, hence the wide buckets
	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fashion_model_call_duration_seconds",
			Help:    "Duration of vision and embedding model calls in seconds",
			Buckets: []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend", "operation"},
	)

	ModelCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fashion_model_call_errors_total",
			Help: "Total number of failed model calls",
		},
		[]string{"backend", "operation"},
	)

	RegionsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fashion_regions_detected_total",
			Help: "Body regions derived from pose landmarks",
		},
		[]string{"region"},
	)

	NoDetections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fashion_no_detection_total",
			Help: "Images in which no pose was found",
		},
	)

	CompatQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fashion_compat_queries_total",
			Help: "Compatibility engine queries by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fashion_embedding_cache_hits_total",
			Help: "Embedding lookups served from the persistent cache",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fashion_embedding_cache_misses_total",
			Help: "Embedding lookups that reached the model",
		},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordModelCall records a model backend call started at start.
func RecordModelCall(backend, operation string, start time.Time, err error) {
	ModelCallDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		ModelCallErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCompatQuery records an engine query outcome, "ok" or an error code.
func RecordCompatQuery(operation, outcome string) {
	CompatQueries.WithLabelValues(operation, outcome).Inc()
}

// RecordRegions counts the regions found in one detection.
func RecordRegions(regions []string) {
	if len(regions) == 0 {
		NoDetections.Inc()
		return
	}
	for _, r := range regions {
		RegionsDetected.WithLabelValues(r).Inc()
	}
}
