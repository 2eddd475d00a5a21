// Package metrics provides Prometheus metrics for client and store operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesSubmittedTotal tracks analysis submissions by outcome
	AnalysesSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_analyses_submitted_total",
			Help: "Total number of analysis submissions",
		},
		[]string{"status"}, // success, failure
	)

	// ClientErrorsTotal tracks transport client errors by taxonomy kind
	ClientErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_client_errors_total",
			Help: "Total number of transport client errors",
		},
		[]string{"endpoint", "kind"},
	)

	// RequestLatency tracks backend request latency by endpoint
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apex_request_latency_seconds",
			Help:    "Analysis backend request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// NormalizerFallbacksTotal tracks alternate-key repairs during normalization
	NormalizerFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_normalizer_fallbacks_total",
			Help: "Total number of alternate-key fallbacks applied by the normalizer",
		},
		[]string{"field"},
	)

	// StoredAnalysesEvictedTotal tracks retention evictions
	StoredAnalysesEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apex_stored_analyses_evicted_total",
			Help: "Total number of stored analyses evicted by retention",
		},
	)

	// StorageErrorsTotal tracks local store failures by operation
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_storage_errors_total",
			Help: "Total number of local result store errors",
		},
		[]string{"operation"},
	)
)
