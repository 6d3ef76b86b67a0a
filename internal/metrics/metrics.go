// Package metrics holds the Prometheus collectors for the workflow engine.
// All recording methods are safe on a nil *Metrics so callers and tests can omit them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics
type Metrics struct {
	reconciliationRuns     *prometheus.CounterVec
	reconciliationInvoices *prometheus.CounterVec
	rateLimitDenied        *prometheus.CounterVec
	transitions            *prometheus.CounterVec
	jobDuration            *prometheus.HistogramVec
	jobErrors              *prometheus.CounterVec
}

// New creates the collectors and registers them. A nil registerer uses the default registry.
func New(registerer prometheus.Registerer, environment string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"env": environment}

	m := &Metrics{
		reconciliationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agency_reconciliation_runs_total",
			Help:        "Reconciliation runs by trigger.",
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		reconciliationInvoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agency_reconciliation_invoices_total",
			Help:        "Invoices checked during reconciliation by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agency_rate_limit_denied_total",
			Help:        "Mutating calls rejected by the per-actor limiter.",
			ConstLabels: constLabels,
		}, []string{"class"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agency_status_transitions_total",
			Help:        "Applied status transitions by entity.",
			ConstLabels: constLabels,
		}, []string{"entity", "from", "to"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "agency_job_duration_seconds",
			Help:        "Scheduled job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agency_job_errors_total",
			Help:        "Scheduled job failures.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.reconciliationRuns,
		m.reconciliationInvoices,
		m.rateLimitDenied,
		m.transitions,
		m.jobDuration,
		m.jobErrors,
	)
	return m
}

func (m *Metrics) ReconciliationRun(trigger string) {
	if m == nil {
		return
	}
	m.reconciliationRuns.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ReconciliationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.reconciliationInvoices.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimitDenied(class string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(class).Inc()
}

func (m *Metrics) Transition(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Inc()
}

func (m *Metrics) JobFinished(job string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if err != nil {
		m.jobErrors.WithLabelValues(job).Inc()
	}
}
