// Package telemetry forwards audit events and alerts to external sinks.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"trustcore/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async write.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown waits for in-flight async writes.
// Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EventWriter receives audit events.
type EventWriter interface {
	WriteEvent(ctx context.Context, e *domain.Event) error
}

// AlertNotifier receives alerts.
type AlertNotifier interface {
	Notify(ctx context.Context, a *domain.Alert) error
}

// AsyncSink runs writes to a slow sink (Kafka, OTLP) in the background so the
// audit path is never blocked on network I/O. Errors are logged.
type AsyncSink struct {
	name     string
	events   EventWriter
	notifier AlertNotifier
	wg       sync.WaitGroup
}

// Async wraps target. target may implement EventWriter, AlertNotifier or both;
// nil returns nil.
func Async(name string, target any) *AsyncSink {
	if target == nil {
		return nil
	}
	s := &AsyncSink{name: name}
	s.events, _ = target.(EventWriter)
	s.notifier, _ = target.(AlertNotifier)
	return s
}

// WriteEvent schedules e for delivery and returns immediately.
func (s *AsyncSink) WriteEvent(_ context.Context, e *domain.Event) error {
	if s == nil || s.events == nil || e == nil {
		return nil
	}
	s.run(func(ctx context.Context) error { return s.events.WriteEvent(ctx, e) })
	return nil
}

// Notify schedules a for delivery and returns immediately.
func (s *AsyncSink) Notify(_ context.Context, a *domain.Alert) error {
	if s == nil || s.notifier == nil || a == nil {
		return nil
	}
	s.run(func(ctx context.Context) error { return s.notifier.Notify(ctx, a) })
	return nil
}

// The goroutine uses context.Background() so request cancellation does not
// abort an in-flight write.
func (s *AsyncSink) run(fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("sink", s.name).Msg("telemetry: async write failed")
		}
	}()
}

// Drain waits for in-flight writes or until ctx is done.
func (s *AsyncSink) Drain(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
