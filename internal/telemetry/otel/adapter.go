package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"trustcore/internal/audit/domain"
)

// instrumentationScope names the OTel logger used for audit records.
const instrumentationScope = "trustcore.audit"

// Emitter is the subset of otellog.Logger used by Sink.
type Emitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// Sink sends audit events and alerts as OTel log records.
type Sink struct {
	logger Emitter
}

// NewSink returns a Sink emitting through provider. A nil provider yields a
// Sink that drops everything.
func NewSink(provider *sdklog.LoggerProvider) *Sink {
	if provider == nil {
		return &Sink{}
	}
	return &Sink{logger: provider.Logger(instrumentationScope)}
}

// NewSinkWithLogger returns a Sink emitting through l.
func NewSinkWithLogger(l Emitter) *Sink {
	return &Sink{logger: l}
}

// WriteEvent converts e to a log record. The body is the masked detail map as JSON.
func (s *Sink) WriteEvent(ctx context.Context, e *domain.Event) error {
	if s.logger == nil || e == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(timestampOrNow(e.Timestamp))
	rec.SetSeverity(severity(e.Severity))
	rec.SetSeverityText(string(e.Severity))
	if len(e.Details) > 0 {
		body, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.BytesValue(body))
	}
	rec.AddAttributes(
		otellog.String("audit.kind", "event"),
		otellog.String("audit.id", e.ID),
		otellog.String("event.type", string(e.Type)),
		otellog.String("user.id", e.Subject),
		otellog.String("client.address", e.IPAddress),
	)
	if e.UserAgent != "" {
		rec.AddAttributes(otellog.String("user_agent.original", e.UserAgent))
	}
	s.logger.Emit(ctx, rec)
	return nil
}

// Notify converts a to a log record.
func (s *Sink) Notify(ctx context.Context, a *domain.Alert) error {
	if s.logger == nil || a == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(timestampOrNow(a.Timestamp))
	rec.SetSeverity(severity(a.Severity))
	rec.SetSeverityText(string(a.Severity))
	body, err := json.Marshal(a.Details)
	if err != nil {
		return err
	}
	rec.SetBody(otellog.BytesValue(body))
	rec.AddAttributes(
		otellog.String("audit.kind", "alert"),
		otellog.String("audit.id", a.ID),
		otellog.String("alert.type", string(a.Type)),
	)
	if a.Subject != "" {
		rec.AddAttributes(otellog.String("user.id", a.Subject))
	}
	if a.IPAddress != "" {
		rec.AddAttributes(otellog.String("client.address", a.IPAddress))
	}
	s.logger.Emit(ctx, rec)
	return nil
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func severity(s domain.Severity) otellog.Severity {
	switch s {
	case domain.SeverityCritical:
		return otellog.SeverityFatal
	case domain.SeverityHigh:
		return otellog.SeverityError
	case domain.SeverityMedium:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
