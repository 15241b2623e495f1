// Package metrics exposes Prometheus instrumentation for the pipelines,
// the oracle, and the invoice server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tachyon. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Full purchase probability evaluations by verdict
	AssessmentOutcome *prometheus.CounterVec
	AssessmentLatency prometheus.Histogram

	// Task graph steps by name and outcome
	StepLatency *prometheus.HistogramVec

	// Tool invocations by tool and outcome
	ToolCalls *prometheus.CounterVec

	// Oracle calls by provider and outcome
	OracleCalls   *prometheus.CounterVec
	OracleLatency prometheus.Histogram

	// Query pipeline runs by mode and outcome
	QueryRuns *prometheus.CounterVec

	InvoicesCreated prometheus.Counter
	PassesIssued    *prometheus.CounterVec
}

// New registers every metric with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AssessmentOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tachyon_assessments_total",
			Help: "Purchase probability assessments by verdict",
		}, []string{"verdict"}), // verdict: "yes", "no", "error"

		AssessmentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tachyon_assessment_duration_seconds",
			Help:    "Duration of a full purchase probability assessment",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),

		StepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tachyon_step_duration_seconds",
			Help:    "Duration of task graph steps",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step", "status"}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tachyon_tool_calls_total",
			Help: "Tool invocations by tool and outcome",
		}, []string{"tool", "status"}),

		OracleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tachyon_oracle_calls_total",
			Help: "Oracle generation calls by outcome",
		}, []string{"status"}),

		OracleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tachyon_oracle_duration_seconds",
			Help:    "Duration of oracle generation calls including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),

		QueryRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tachyon_query_runs_total",
			Help: "Query pipeline runs by mode and outcome",
		}, []string{"mode", "status"}),

		InvoicesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tachyon_invoices_created_total",
			Help: "Total number of invoices written",
		}),

		PassesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tachyon_wallet_passes_total",
			Help: "Wallet pass issuance attempts by outcome",
		}, []string{"status"}),
	}
}

// Status maps an error to the status label used across metrics.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAssessment records a finished assessment.
func (m *Metrics) ObserveAssessment(verdict string, d time.Duration) {
	if m != nil {
		m.AssessmentOutcome.WithLabelValues(verdict).Inc()
		m.AssessmentLatency.Observe(d.Seconds())
	}
}

// ObserveStep records the duration of a task graph step.
func (m *Metrics) ObserveStep(step string, err error, d time.Duration) {
	if m != nil {
		m.StepLatency.WithLabelValues(step, Status(err)).Observe(d.Seconds())
	}
}

// IncrementToolCall records a tool invocation.
func (m *Metrics) IncrementToolCall(tool string, err error) {
	if m != nil {
		m.ToolCalls.WithLabelValues(tool, Status(err)).Inc()
	}
}

// ObserveOracleCall records an oracle call.
func (m *Metrics) ObserveOracleCall(err error, d time.Duration) {
	if m != nil {
		m.OracleCalls.WithLabelValues(Status(err)).Inc()
		m.OracleLatency.Observe(d.Seconds())
	}
}

// IncrementQueryRun records a query pipeline run.
func (m *Metrics) IncrementQueryRun(mode string, err error) {
	if m != nil {
		m.QueryRuns.WithLabelValues(mode, Status(err)).Inc()
	}
}

// IncrementInvoiceCreated records a written invoice.
func (m *Metrics) IncrementInvoiceCreated() {
	if m != nil {
		m.InvoicesCreated.Inc()
	}
}

// IncrementPassIssued records a wallet pass issuance attempt.
func (m *Metrics) IncrementPassIssued(err error) {
	if m != nil {
		m.PassesIssued.WithLabelValues(Status(err)).Inc()
	}
}
