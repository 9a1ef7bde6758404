package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the authorization core.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	auditFailures    prometheus.Counter
}

// NewMetrics initialises the registry and core metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "praetor_decisions_total",
		Help: "Authorization decisions by outcome and reason code.",
	}, []string{"outcome", "code"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "praetor_decision_duration_seconds",
		Help:    "Duration of permission checks.",
		Buckets: prometheus.DefBuckets,
	})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "praetor_audit_failures_total",
		Help: "Audit events that could not be recorded.",
	})
	registry.MustRegister(decisions, duration, auditFailures)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		decisionsTotal:   decisions,
		decisionDuration: duration,
		auditFailures:    auditFailures,
	}
}

// ObserveDecision records one decision outcome.
func (m *Metrics) ObserveDecision(granted bool, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.decisionsTotal.WithLabelValues(outcome, code).Inc()
	m.decisionDuration.Observe(elapsed.Seconds())
}

// IncAuditFailure counts a failed audit emission.
func (m *Metrics) IncAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}
