// Package audit records security events, runs pattern detection on every event
// and raises alerts.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trustcore/internal/audit/domain"
	"trustcore/internal/audit/repository"
	"trustcore/internal/security"
)

// ErrAlertNotFound is returned when acknowledging an unknown alert.
var ErrAlertNotFound = security.NewKindError(security.ErrNotFound, "alert not found")

// DefaultAcknowledger is recorded when an alert is acknowledged without a name.
const DefaultAcknowledger = "system"

// Sink receives every stored event. Sinks are best-effort: errors are logged.
type Sink interface {
	WriteEvent(ctx context.Context, e *domain.Event) error
}

// Notifier is told about every new alert. Notifiers are best-effort.
type Notifier interface {
	Notify(ctx context.Context, a *domain.Alert) error
}

// Recorder is the fire-and-forget audit hook used by other components.
type Recorder interface {
	Record(ctx context.Context, typ domain.EventType, ectx domain.EventContext)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowF = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithThresholds replaces the detector thresholds.
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) { e.detector = NewDetector(th) }
}

// WithSensitiveFields replaces the list of detail keys that are masked.
func WithSensitiveFields(fields ...string) Option {
	return func(e *Engine) { e.sensitive = fields }
}

// WithSinks adds event sinks.
func WithSinks(s ...Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, s...) }
}

// WithNotifiers adds alert notifiers.
func WithNotifiers(n ...Notifier) Option {
	return func(e *Engine) { e.notifiers = append(e.notifiers, n...) }
}

// Engine is the audit and anomaly engine.
type Engine struct {
	events    repository.EventStore
	alerts    repository.AlertStore
	detector  *Detector
	sinks     []Sink
	notifiers []Notifier
	sensitive []string
	nowF      func() time.Time
	log       zerolog.Logger
}

// NewEngine returns an Engine that persists to events and alerts.
func NewEngine(events repository.EventStore, alerts repository.AlertStore, opts ...Option) *Engine {
	e := &Engine{
		events:    events,
		alerts:    alerts,
		detector:  NewDetector(DefaultThresholds()),
		sensitive: security.DefaultSensitiveFields,
		nowF:      time.Now,
		log:       log.With().Str("component", "audit").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) now() time.Time { return e.nowF().UTC() }

func orUnknown(s string) string {
	if s == "" {
		return domain.Unknown
	}
	return s
}

// LogEvent masks, stores and runs detection on one event and returns its id.
// Sink, detector and notifier failures are logged and never fail the call.
func (e *Engine) LogEvent(ctx context.Context, typ domain.EventType, ectx domain.EventContext) (string, error) {
	actor := domain.ActorOf(ectx)
	ev := &domain.Event{
		ID:        uuid.New().String(),
		Timestamp: e.now(),
		Type:      typ,
		Severity:  typ.Severity(),
		Subject:   orUnknown(actor.Subject),
		IPAddress: orUnknown(actor.IPAddress),
		UserAgent: orUnknown(actor.UserAgent),
		Details:   security.MaskSensitiveData(domain.Fields(ectx), e.sensitive),
	}
	if err := e.events.Append(ctx, ev); err != nil {
		return "", err
	}
	for _, s := range e.sinks {
		if err := s.WriteEvent(ctx, ev); err != nil {
			e.log.Warn().Err(err).Str("event_id", ev.ID).Msg("audit sink write failed")
		}
	}
	e.detect(ctx, ev, ectx)
	return ev.ID, nil
}

// Record is LogEvent for callers that cannot act on a failure.
func (e *Engine) Record(ctx context.Context, typ domain.EventType, ectx domain.EventContext) {
	if _, err := e.LogEvent(ctx, typ, ectx); err != nil {
		e.log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to log event")
	}
}

func (e *Engine) detect(ctx context.Context, ev *domain.Event, ectx domain.EventContext) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("event_id", ev.ID).Msg("pattern detection failed")
		}
	}()
	for _, f := range e.detector.Check(ev, ectx) {
		if _, err := e.createAlert(ctx, f); err != nil {
			e.log.Error().Err(err).Str("alert_type", string(f.Type)).Msg("failed to create alert")
		}
	}
}

func (e *Engine) createAlert(ctx context.Context, f Finding) (string, error) {
	a := &domain.Alert{
		ID:        uuid.New().String(),
		Timestamp: e.now(),
		Type:      f.Type,
		Severity:  f.Type.Severity(),
		Subject:   f.Subject,
		IPAddress: f.IPAddress,
		Details:   f.Details,
		Status:    domain.AlertActive,
	}
	if err := e.alerts.Create(ctx, a); err != nil {
		return "", err
	}
	e.log.Warn().Str("alert_id", a.ID).Str("alert_type", string(a.Type)).
		Str("severity", string(a.Severity)).Msg("security alert")
	for _, n := range e.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			e.log.Warn().Err(err).Str("alert_id", a.ID).Msg("alert notification failed")
		}
	}
	return a.ID, nil
}

// AcknowledgeAlert marks an alert acknowledged by by (DefaultAcknowledger when
// empty). Acknowledging twice keeps the first acknowledger.
func (e *Engine) AcknowledgeAlert(ctx context.Context, id, by string) (*domain.Alert, error) {
	if by == "" {
		by = DefaultAcknowledger
	}
	a, err := e.alerts.Acknowledge(ctx, id, by, e.now())
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAlertNotFound
	}
	return a, nil
}

// GetEvents returns events matching f, newest first.
func (e *Engine) GetEvents(ctx context.Context, f domain.EventFilter) ([]*domain.Event, error) {
	return e.events.List(ctx, f)
}

// GetAlerts returns alerts matching f, newest first.
func (e *Engine) GetAlerts(ctx context.Context, f domain.AlertFilter) ([]*domain.Alert, error) {
	return e.alerts.List(ctx, f)
}

// PruneWindows drops detector window entries that have aged out and returns
// the number of window keys removed.
func (e *Engine) PruneWindows(ctx context.Context) (int, error) {
	n := e.detector.Prune(e.now())
	if n > 0 {
		e.log.Debug().Int("keys", n).Msg("pruned detector windows")
	}
	return n, nil
}
