// Package observability carries the ambient instrumentation every
// request path in this module emits: Prometheus counters/histograms
// grounded on the teacher's internal/observability/metrics.go, trimmed
// from that file's channel/webhook/database label set down to the
// handful of surfaces this kernel actually has (HTTP, tool execution,
// retries, credit deductions, LLM calls).
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every Prometheus collector this binary registers.
// A single instance is built at startup and threaded through the
// collaborators that need it, mirroring the teacher's NewMetrics()
// singleton pattern.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestCounter  *prometheus.CounterVec

	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec
	ToolRetryCounter      *prometheus.CounterVec

	CreditDeductionCounter *prometheus.CounterVec
	CreditDeductionAmount  *prometheus.CounterVec

	LLMRequestCounter  *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	KernelIterations *prometheus.HistogramVec
}

// NewMetrics registers every collector against the default Prometheus
// registry. Calling it more than once in a process panics (promauto's
// behavior), matching the teacher's single-instance-at-startup usage.
func NewMetrics() *Metrics {
	return NewMetricsOn(prometheus.DefaultRegisterer)
}

// NewMetricsOn registers every collector against reg instead of the
// default registry, so tests can use an isolated *prometheus.Registry
// and run repeatedly in the same process without the
// "duplicate metrics collector registration" panic NewMetrics would
// trigger against the shared default registry.
func NewMetricsOn(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentkernel_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"method", "route", "status_code"}),

		HTTPRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_http_requests_total",
			Help: "Total HTTP requests served.",
		}, []string{"method", "route", "status_code"}),

		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_tool_executions_total",
			Help: "Total tool invocations by outcome.",
		}, []string{"tool_name", "status"}),

		ToolExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentkernel_tool_execution_duration_seconds",
			Help:    "Tool execution latency in seconds, including retries.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),

		ToolRetryCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_tool_retries_total",
			Help: "Total retry attempts made while executing a tool.",
		}, []string{"tool_name"}),

		CreditDeductionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_credit_deductions_total",
			Help: "Total successful credit deductions by operation type.",
		}, []string{"operation_type"}),

		CreditDeductionAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_credit_deducted_total",
			Help: "Total credits deducted by operation type.",
		}, []string{"operation_type"}),

		LLMRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_llm_requests_total",
			Help: "Total LLM completion calls by provider and outcome.",
		}, []string{"provider", "status"}),

		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentkernel_llm_request_duration_seconds",
			Help:    "LLM completion call latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),

		KernelIterations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentkernel_kernel_iterations",
			Help:    "Number of PLAN/EVALUATE/EXECUTE iterations per run.",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, d time.Duration) {
	m.HTTPRequestCounter.WithLabelValues(method, route, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route, statusCode).Observe(d.Seconds())
}

func (m *Metrics) RecordToolExecution(toolName, status string, d time.Duration) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

func (m *Metrics) RecordToolRetries(toolName string, count int) {
	if count <= 0 {
		return
	}
	m.ToolRetryCounter.WithLabelValues(toolName).Add(float64(count))
}

func (m *Metrics) RecordCreditDeduction(operationType string, amount float64) {
	m.CreditDeductionCounter.WithLabelValues(operationType).Inc()
	m.CreditDeductionAmount.WithLabelValues(operationType).Add(amount)
}

func (m *Metrics) RecordLLMRequest(provider, status string, d time.Duration) {
	m.LLMRequestCounter.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) RecordKernelRun(outcome string, iterations int) {
	m.KernelIterations.WithLabelValues(outcome).Observe(float64(iterations))
}
