package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"trustcore/internal/audit/domain"
)

func TestMetrics_CountsEventsAndAlerts(t *testing.T) {
	m := New()
	ctx := context.Background()
	_ = m.WriteEvent(ctx, &domain.Event{Type: domain.EventFailedLogin, Severity: domain.SeverityHigh})
	_ = m.WriteEvent(ctx, &domain.Event{Type: domain.EventFailedLogin, Severity: domain.SeverityHigh})
	_ = m.Notify(ctx, &domain.Alert{Type: domain.AlertBruteForce, Severity: domain.SeverityCritical})
	m.ObserveVerification("revoked")
	m.ObserveSweep("sessions", 0)
	m.ObserveSweep("sessions", 3)

	if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("FAILED_LOGIN", "high")); got != 2 {
		t.Errorf("events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues("BRUTE_FORCE_ATTEMPT", "critical")); got != 1 {
		t.Errorf("alerts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TokenVerifications.WithLabelValues("revoked")); got != 1 {
		t.Errorf("verifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SweepRemoved.WithLabelValues("sessions")); got != 3 {
		t.Errorf("sweep = %v, want 3", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	_ = m.WriteEvent(context.Background(), &domain.Event{Type: domain.EventAPICall, Severity: domain.SeverityLow})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `trustcore_audit_events_total{severity="low",type="API_CALL"} 1`) {
		t.Errorf("metrics output missing event counter:\n%s", body)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveVerification("ok")
	if got := testutil.ToFloat64(b.TokenVerifications.WithLabelValues("ok")); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
