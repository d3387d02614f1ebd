// Package metrics holds the Prometheus collectors for the leave engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the application.
// All helper methods are safe on a nil receiver so components can run
// without instrumentation in tests.
type Metrics struct {
	RequestsSubmitted   *prometheus.CounterVec   // leave_type
	ValidationConflicts *prometheus.CounterVec   // rule
	StatusTransitions   *prometheus.CounterVec   // from, to
	QuotaConsumedDays   prometheus.Counter       // annual days charged on approval
	AssistantDuration   *prometheus.HistogramVec // operation
	AssistantFallbacks  *prometheus.CounterVec   // operation, reason
	ReportGeneration    prometheus.Histogram
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "leave_requests_submitted_total",
			Help: "Total number of leave requests accepted as pending",
		}, []string{"leave_type"}),
		ValidationConflicts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "leave_validation_conflicts_total",
			Help: "Validation failures by rule",
		}, []string{"rule"}), // rule: duration_cap, annual_quota, store_clash, ...
		StatusTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "leave_status_transitions_total",
			Help: "Leave request status changes",
		}, []string{"from", "to"}),
		QuotaConsumedDays: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "leave_annual_quota_consumed_days_total",
			Help: "Annual leave days charged against employee quotas",
		}),
		AssistantDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leave_assistant_duration_seconds",
			Help:    "Duration of text generation calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}), // operation: analysis, rejection
		AssistantFallbacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "leave_assistant_fallbacks_total",
			Help: "Text generation calls answered with fallback text",
		}, []string{"operation", "reason"}), // reason: no_key, error, empty
		ReportGeneration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "leave_report_generation_duration_seconds",
			Help: "Duration of leave report excel generation.",
		}),
	}
}

func (m *Metrics) Submitted(leaveType string) {
	if m == nil {
		return
	}
	m.RequestsSubmitted.WithLabelValues(leaveType).Inc()
}

func (m *Metrics) Conflict(rule string) {
	if m == nil {
		return
	}
	m.ValidationConflicts.WithLabelValues(rule).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) QuotaConsumed(days int) {
	if m == nil {
		return
	}
	m.QuotaConsumedDays.Add(float64(days))
}

func (m *Metrics) AssistantCall(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.AssistantDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) AssistantFallback(operation, reason string) {
	if m == nil {
		return
	}
	m.AssistantFallbacks.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ReportGenerated(d time.Duration) {
	if m == nil {
		return
	}
	m.ReportGeneration.Observe(d.Seconds())
}
