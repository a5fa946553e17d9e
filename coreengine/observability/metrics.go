// Package observability provides Prometheus metrics instrumentation for the coreengine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// ROUTING METRICS
// =============================================================================

var (
	routeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_route_decisions_total",
			Help: "Total number of router decisions",
		},
		[]string{"stage", "reason"}, // reason: override, keyword, confirmation, classified, default, advance, initial
	)
)

// =============================================================================
// AGENT METRICS
// =============================================================================

var (
	agentInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_agent_invocations_total",
			Help: "Total number of stage agent invocations",
		},
		[]string{"stage", "status"}, // status: success, error, unavailable
	)

	agentDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synapse_agent_duration_seconds",
			Help:    "Stage agent invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// LLM METRICS
// =============================================================================

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_llm_calls_total",
			Help: "Total number of model API calls",
		},
		[]string{"provider", "model", "status"}, // status: success, error
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synapse_llm_duration_seconds",
			Help:    "Model call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)
)

// =============================================================================
// DECODER / TURN METRICS
// =============================================================================

var (
	decodeOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_decode_outcomes_total",
			Help: "Response decoder outcomes by winning strategy",
		},
		[]string{"strategy"}, // strategy: strict, repaired, degraded
	)

	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_turns_total",
			Help: "Total number of completed conversation turns",
		},
		[]string{"stage", "status"}, // status: success, degraded, failed, unavailable
	)

	turnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synapse_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// GRPC METRICS
// =============================================================================

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_grpc_requests_total",
			Help: "Total gRPC requests",
		},
		[]string{"method", "status"}, // status: OK, InvalidArgument, Internal, etc.
	)

	grpcRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synapse_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"method"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordRouteDecision records one router decision.
func RecordRouteDecision(stage string, reason string) {
	routeDecisionsTotal.WithLabelValues(stage, reason).Inc()
}

// RecordAgentInvocation records agent invocation metrics.
func RecordAgentInvocation(stage string, status string, durationMS int) {
	agentInvocationsTotal.WithLabelValues(stage, status).Inc()
	agentDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordLLMCall records LLM call metrics.
func RecordLLMCall(provider string, model string, status string, durationMS int) {
	llmCallsTotal.WithLabelValues(provider, model, status).Inc()
	llmDurationSeconds.WithLabelValues(provider, model).Observe(float64(durationMS) / 1000.0)
}

// RecordDecodeOutcome records which decoder strategy produced a record.
func RecordDecodeOutcome(strategy string) {
	decodeOutcomesTotal.WithLabelValues(strategy).Inc()
}

// RecordTurn records a completed conversation turn.
func RecordTurn(stage string, status string, durationMS int) {
	turnsTotal.WithLabelValues(stage, status).Inc()
	turnDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordGRPCRequest records gRPC request metrics.
// This should be called from gRPC interceptors.
func RecordGRPCRequest(method string, status string, durationMS int) {
	grpcRequestsTotal.WithLabelValues(method, status).Inc()
	grpcRequestDurationSeconds.WithLabelValues(method).Observe(float64(durationMS) / 1000.0)
}
