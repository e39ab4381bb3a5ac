// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreMutationLatency records store mutation latency by operation.
	StoreMutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polished_store_mutation_latency_seconds",
		Help:    "Store mutation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// StoreMutationErrors counts failed store mutations by operation.
	StoreMutationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polished_store_mutation_errors_total",
		Help: "Total number of failed store mutations by operation",
	}, []string{"operation"})

	// GenerationRequests counts image generation calls by outcome.
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polished_generation_requests_total",
		Help: "Total number of image generation requests by outcome",
	}, []string{"outcome"})

	// UploadedImageBytes counts bytes of accepted image uploads.
	UploadedImageBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polished_uploaded_image_bytes_total",
		Help: "Total bytes of accepted image uploads",
	})
)

// TrackMutation returns a function that records mutation latency when
// called (e.g. defer).
func TrackMutation(operation string) func() {
	start := time.Now()
	return func() {
		StoreMutationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
