// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chatrelay server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM round trips,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// RelayAttemptsTotal counts individual upstream attempts by outcome
	// (ok, retry, terminal, cancelled).
	RelayAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_relay_attempts_total",
			Help: "Upstream attempts",
		},
		[]string{"outcome"},
	)

	// RelayCallsTotal counts finished relay calls by result ("ok" or the error kind).
	RelayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_relay_calls_total",
			Help: "Relay calls",
		},
		[]string{"result"},
	)

	// RelayLatency records the wall time of a whole relay call, retries included.
	RelayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatrelay_relay_latency_seconds",
			Help:    "Relay call latency",
			Buckets: LLMBuckets,
		},
	)

	// RelayBackoffSeconds records each backoff delay taken between attempts.
	RelayBackoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatrelay_relay_backoff_seconds",
			Help:    "Backoff delay between upstream attempts",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30, 60},
		},
	)

	// AuthFailuresTotal counts rejected authentication attempts by source.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_auth_failures_total",
			Help: "Authentication failures",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RelayAttemptsTotal,
		RelayCallsTotal,
		RelayLatency,
		RelayBackoffSeconds,
		AuthFailuresTotal,
	)
}
