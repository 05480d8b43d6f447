// Package metrics exposes Prometheus counters for audit events, alerts and
// token verification outcomes.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustcore/internal/audit/domain"
)

const namespace = "trustcore"

// Metrics owns a private registry so each App (and each test) has its own counters.
type Metrics struct {
	registry *prometheus.Registry

	// EventsTotal counts audit events by type and severity.
	EventsTotal *prometheus.CounterVec
	// AlertsTotal counts raised alerts by type and severity.
	AlertsTotal *prometheus.CounterVec
	// TokenVerifications counts token checks by outcome (ok, expired, revoked, invalid).
	TokenVerifications *prometheus.CounterVec
	// SweepRemoved counts rows removed by periodic sweeps, by sweep name.
	SweepRemoved *prometheus.CounterVec
}

// New registers the trustcore collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Total number of audit events by type and severity.",
		}, []string{"type", "severity"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_alerts_total",
			Help:      "Total number of security alerts by type and severity.",
		}, []string{"type", "severity"}),
		TokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Total number of token verifications by outcome.",
		}, []string{"outcome"}),
		SweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Total number of expired records removed by periodic sweeps.",
		}, []string{"sweep"}),
	}
	reg.MustRegister(
		m.EventsTotal, m.AlertsTotal, m.TokenVerifications, m.SweepRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WriteEvent counts e.
func (m *Metrics) WriteEvent(_ context.Context, e *domain.Event) error {
	m.EventsTotal.WithLabelValues(string(e.Type), string(e.Severity)).Inc()
	return nil
}

// Notify counts a.
func (m *Metrics) Notify(_ context.Context, a *domain.Alert) error {
	m.AlertsTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	return nil
}

// ObserveVerification counts one token verification outcome.
func (m *Metrics) ObserveVerification(outcome string) {
	m.TokenVerifications.WithLabelValues(outcome).Inc()
}

// ObserveSweep adds n removed records for sweep.
func (m *Metrics) ObserveSweep(sweep string, n int) {
	if n > 0 {
		m.SweepRemoved.WithLabelValues(sweep).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
