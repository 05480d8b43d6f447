package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"trustcore/internal/audit/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attrs(rec otellog.Record) map[string]string {
	out := map[string]string{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestNewSink_NilProvider_DropsEverything(t *testing.T) {
	s := NewSink(nil)
	if err := s.WriteEvent(context.Background(), &domain.Event{ID: "e1"}); err != nil {
		t.Errorf("WriteEvent: %v", err)
	}
	if err := s.Notify(context.Background(), &domain.Alert{ID: "a1"}); err != nil {
		t.Errorf("Notify: %v", err)
	}
}

func TestNewSink_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	s := NewSink(provider)
	if err := s.WriteEvent(context.Background(), nil); err != nil {
		t.Errorf("WriteEvent(nil): %v", err)
	}
	if err := s.WriteEvent(context.Background(), &domain.Event{ID: "e1", Type: domain.EventAPICall}); err != nil {
		t.Errorf("WriteEvent: %v", err)
	}
}

func TestWriteEvent_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	s := NewSinkWithLogger(capture)
	ts := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	ev := &domain.Event{
		ID:        "e1",
		Timestamp: ts,
		Type:      domain.EventFailedLogin,
		Severity:  domain.SeverityHigh,
		Subject:   "user1",
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8",
		Details:   map[string]any{"reason": "bad password"},
	}
	if err := s.WriteEvent(context.Background(), ev); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	rec := capture.rec
	if !rec.Timestamp().Equal(ts) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), ts)
	}
	if rec.Severity() != otellog.SeverityError {
		t.Errorf("severity = %v, want error", rec.Severity())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body().AsBytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["reason"] != "bad password" {
		t.Errorf("body = %v", body)
	}
	a := attrs(rec)
	want := map[string]string{
		"audit.kind":          "event",
		"audit.id":            "e1",
		"event.type":          "FAILED_LOGIN",
		"user.id":             "user1",
		"client.address":      "10.0.0.1",
		"user_agent.original": "curl/8",
	}
	for k, v := range want {
		if a[k] != v {
			t.Errorf("attr %s = %q, want %q", k, a[k], v)
		}
	}
}

func TestWriteEvent_ZeroTimestampUsesNow(t *testing.T) {
	capture := &recordCapture{}
	s := NewSinkWithLogger(capture)
	before := time.Now().Add(-time.Second)
	if err := s.WriteEvent(context.Background(), &domain.Event{ID: "e"}); err != nil {
		t.Fatal(err)
	}
	if capture.rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v not set to now", capture.rec.Timestamp())
	}
}

func TestNotify_AlertMapping(t *testing.T) {
	capture := &recordCapture{}
	s := NewSinkWithLogger(capture)
	a := &domain.Alert{
		ID:        "a1",
		Timestamp: time.Now().UTC(),
		Type:      domain.AlertBruteForce,
		Severity:  domain.SeverityCritical,
		Subject:   "bob",
		IPAddress: "1.2.3.4",
		Details:   map[string]any{"attempts": 5},
	}
	if err := s.Notify(context.Background(), a); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if capture.rec.Severity() != otellog.SeverityFatal {
		t.Errorf("severity = %v, want fatal", capture.rec.Severity())
	}
	got := attrs(capture.rec)
	if got["audit.kind"] != "alert" || got["alert.type"] != "BRUTE_FORCE_ATTEMPT" || got["user.id"] != "bob" {
		t.Errorf("attributes = %v", got)
	}
}

func TestSeverityMapping(t *testing.T) {
	cases := map[domain.Severity]otellog.Severity{
		domain.SeverityCritical: otellog.SeverityFatal,
		domain.SeverityHigh:     otellog.SeverityError,
		domain.SeverityMedium:   otellog.SeverityWarn,
		domain.SeverityLow:      otellog.SeverityInfo,
		"":                      otellog.SeverityInfo,
	}
	for in, want := range cases {
		if got := severity(in); got != want {
			t.Errorf("severity(%q) = %v, want %v", in, got, want)
		}
	}
}
