// Package observability provides Prometheus metrics, OpenTelemetry tracing
// and HTTP middleware for monitoring the anreicher gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 5m.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anreicher_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anreicher_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "anreicher_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// PipelineRunsTotal counts pipeline runs by template and outcome.
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anreicher_pipeline_runs_total",
			Help: "Pipeline runs",
		},
		[]string{"template", "status"},
	)

	// PipelineDuration records the duration of a whole pipeline run,
	// final generation included.
	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anreicher_pipeline_duration_seconds",
			Help:    "Pipeline duration",
			Buckets: LLMBuckets,
		},
		[]string{"template"},
	)

	// EnricherExecutionsTotal counts enricher executions by name and outcome.
	EnricherExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anreicher_enricher_executions_total",
			Help: "Enricher executions",
		},
		[]string{"enricher", "status"},
	)

	// EnricherDuration records enricher latency in seconds.
	EnricherDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anreicher_enricher_duration_seconds",
			Help:    "Enricher duration",
			Buckets: LLMBuckets,
		},
		[]string{"enricher"},
	)

	// GatewayRequestsTotal counts requests sent to model backends.
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anreicher_gateway_requests_total",
			Help: "Gateway requests",
		},
		[]string{"engine", "operation", "status"},
	)

	// GatewayLatency records backend latency in seconds.
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anreicher_gateway_latency_seconds",
			Help:    "Gateway latency",
			Buckets: LLMBuckets,
		},
		[]string{"engine", "operation"},
	)

	// ActionExecutionsTotal counts post-generation actions by name and outcome.
	ActionExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anreicher_action_executions_total",
			Help: "Action executions",
		},
		[]string{"action", "status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anreicher_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		PipelineRunsTotal,
		PipelineDuration,
		EnricherExecutionsTotal,
		EnricherDuration,
		GatewayRequestsTotal,
		GatewayLatency,
		ActionExecutionsTotal,
		RateLimitRejectedTotal,
	)
}

// Status returns the outcome label used by the counters above.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
