package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes and latency for settlement workflows.
type SettlementMetrics struct {
	duration   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	unbalanced prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settlement workflows in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlement workflow executions by outcome.",
	}, []string{"workflow", "outcome"})
	unbalanced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_unbalanced_total",
		Help: "Transactions rejected because their entries did not balance.",
	})
	reg.MustRegister(duration, outcomes, unbalanced)
	return &SettlementMetrics{
		duration:   duration,
		outcomes:   outcomes,
		unbalanced: unbalanced,
	}
}

// ObserveDuration records the duration of a workflow run.
func (m *SettlementMetrics) ObserveDuration(workflow string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(workflow)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named workflow.
func (m *SettlementMetrics) IncSuccess(workflow string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(workflow), "success").Inc()
}

// IncFailure increments the failure counter for the named workflow.
func (m *SettlementMetrics) IncFailure(workflow string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(workflow), "failure").Inc()
}

// IncUnbalanced counts a rejected unbalanced transaction.
func (m *SettlementMetrics) IncUnbalanced() {
	if m == nil || m.unbalanced == nil {
		return
	}
	m.unbalanced.Inc()
}

func normalizeLabel(workflow string) string {
	if workflow == "" {
		return "unknown"
	}
	return workflow
}
