// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks model streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "Model streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total model tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total model tokens processed",
		},
		[]string{"model", "direction"},
	)

	// StreamConnectionsActive tracks in-flight chat streams.
	StreamConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of in-flight chat response streams",
		},
	)

	// PersistQueueDepth tracks pending background persistence jobs.
	PersistQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "persist_queue_depth",
			Help: "Pending jobs in the background persistence queue",
		},
	)

	// PersistFailuresTotal tracks swallowed persistence failures.
	PersistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_failures_total",
			Help: "Background persistence failures (never surfaced to callers)",
		},
		[]string{"operation"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks messages persisted by role.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records metrics for a model streaming response.
func RecordLLMStream(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementStreamConnections increments the in-flight stream count.
func IncrementStreamConnections() {
	StreamConnectionsActive.Inc()
}

// DecrementStreamConnections decrements the in-flight stream count.
func DecrementStreamConnections() {
	StreamConnectionsActive.Dec()
}
