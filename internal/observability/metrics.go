// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the agent runtime.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects runtime measurements for the agent.
//
// Tracked series:
//   - LLM request counts, latency, and token consumption per model
//   - Skill execution counts and latency per skill
//   - Errors by category and severity
//   - Circuit breaker state transitions per service
//   - Active conversation sessions
//   - Archive job runs
type Metrics struct {
	// LLMRequests counts backend calls.
	// Labels: model, operation (chat|chat_stream|embed), status (success|error)
	LLMRequests *prometheus.CounterVec

	// LLMDuration measures backend call latency in seconds.
	// Labels: model, operation
	LLMDuration *prometheus.HistogramVec

	// LLMTokens counts tokens reported by the backend.
	// Labels: model
	LLMTokens *prometheus.CounterVec

	// SkillExecutions counts skill runs.
	// Labels: skill, status (success|error)
	SkillExecutions *prometheus.CounterVec

	// SkillDuration measures skill execution time in seconds.
	// Labels: skill
	SkillDuration *prometheus.HistogramVec

	// Errors counts handled errors.
	// Labels: category, severity
	Errors *prometheus.CounterVec

	// BreakerTransitions counts circuit breaker state changes.
	// Labels: service, to (closed|open|half_open)
	BreakerTransitions *prometheus.CounterVec

	// ActiveSessions tracks live conversation sessions.
	ActiveSessions prometheus.Gauge

	// ArchiveRuns counts archive job executions.
	// Labels: status (success|error)
	ArchiveRuns *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registerer.
// Pass prometheus.DefaultRegisterer for normal operation or a fresh
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LLMRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coda_llm_requests_total",
				Help: "Total LLM backend calls by model, operation, and status",
			},
			[]string{"model", "operation", "status"},
		),
		LLMDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coda_llm_request_duration_seconds",
				Help:    "LLM backend call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model", "operation"},
		),
		LLMTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coda_llm_tokens_total",
				Help: "Total tokens reported by the LLM backend",
			},
			[]string{"model"},
		),
		SkillExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coda_skill_executions_total",
				Help: "Total skill runs by skill and status",
			},
			[]string{"skill", "status"},
		),
		SkillDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coda_skill_duration_seconds",
				Help:    "Skill execution time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"skill"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coda_errors_total",
				Help: "Handled errors by category and severity",
			},
			[]string{"category", "severity"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coda_breaker_transitions_total",
				Help: "Circuit breaker state changes by service and target state",
			},
			[]string{"service", "to"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coda_active_sessions",
				Help: "Current number of live conversation sessions",
			},
		),
		ArchiveRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coda_archive_runs_total",
				Help: "Archive job executions by status",
			},
			[]string{"status"},
		),
	}
}

// RecordLLMRequest records one backend call. Satisfies the gateway's
// metrics sink.
func (m *Metrics) RecordLLMRequest(model, operation string, tokens int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LLMRequests.WithLabelValues(model, operation, status).Inc()
	m.LLMDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
	if tokens > 0 {
		m.LLMTokens.WithLabelValues(model).Add(float64(tokens))
	}
}

// RecordSkill records one skill execution.
func (m *Metrics) RecordSkill(skill string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.SkillExecutions.WithLabelValues(skill, status).Inc()
	m.SkillDuration.WithLabelValues(skill).Observe(duration.Seconds())
}

// RecordError records one handled error.
func (m *Metrics) RecordError(category, severity string) {
	m.Errors.WithLabelValues(category, severity).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(service, to string) {
	m.BreakerTransitions.WithLabelValues(service, to).Inc()
}

// RecordArchiveRun records one archive job execution.
func (m *Metrics) RecordArchiveRun(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ArchiveRuns.WithLabelValues(status).Inc()
}
