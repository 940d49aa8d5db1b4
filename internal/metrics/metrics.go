// Package metrics exposes the Prometheus collectors of the gateway.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets covers model inference latencies from 100ms to 120s.
var LatencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts public requests by endpoint, model and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_gateway_requests_total",
			Help: "Public requests",
		},
		[]string{"endpoint", "model", "status"},
	)

	// BackendRequestsTotal counts backend calls by operation, backend model and outcome.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_gateway_backend_requests_total",
			Help: "Backend calls",
		},
		[]string{"operation", "model", "status"},
	)

	// BackendLatency records backend call latency in seconds.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bedrock_gateway_backend_latency_seconds",
			Help:    "Backend latency",
			Buckets: LatencyBuckets,
		},
		[]string{"operation", "model"},
	)

	// TokensTotal counts tokens by direction (prompt/completion).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedrock_gateway_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// StreamsActive tracks open SSE streams.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bedrock_gateway_streams_active",
			Help: "Active streaming responses",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		BackendRequestsTotal,
		BackendLatency,
		TokensTotal,
		StreamsActive,
	)
}

// Outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Status returns the outcome label for err.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
