package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trustcore/internal/audit/domain"
)

// mockSink implements EventWriter and AlertNotifier for tests.
type mockSink struct {
	mu     sync.Mutex
	events []*domain.Event
	alerts []*domain.Alert
	err    error
	delay  time.Duration
}

func (m *mockSink) WriteEvent(ctx context.Context, e *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockSink) Notify(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return m.err
}

func (m *mockSink) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), len(m.alerts)
}

type eventsOnly struct{ n int }

func (e *eventsOnly) WriteEvent(context.Context, *domain.Event) error { e.n++; return nil }

func TestAsync_NilTarget(t *testing.T) {
	s := Async("nil", nil)
	if s != nil {
		t.Fatal("Async(nil) should return nil")
	}
	// Should not panic
	if err := s.WriteEvent(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("WriteEvent on nil sink: %v", err)
	}
	if err := s.Drain(context.Background()); err != nil {
		t.Errorf("Drain on nil sink: %v", err)
	}
}

func TestAsync_DeliversEventsAndAlerts(t *testing.T) {
	m := &mockSink{}
	s := Async("mock", m)
	for i := 0; i < 5; i++ {
		if err := s.WriteEvent(context.Background(), &domain.Event{ID: "e"}); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	if err := s.Notify(context.Background(), &domain.Alert{ID: "a"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := s.WriteEvent(context.Background(), nil); err != nil {
		t.Fatalf("WriteEvent(nil): %v", err)
	}
	if err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	events, alerts := m.counts()
	if events != 5 || alerts != 1 {
		t.Errorf("got %d events, %d alerts; want 5, 1", events, alerts)
	}
}

func TestAsync_ErrorsAreSwallowed(t *testing.T) {
	m := &mockSink{err: errors.New("broker down")}
	s := Async("mock", m)
	if err := s.WriteEvent(context.Background(), &domain.Event{}); err != nil {
		t.Fatalf("WriteEvent returned %v, want nil", err)
	}
	if err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestAsync_CallerCancellationDoesNotAbortWrite(t *testing.T) {
	m := &mockSink{delay: 20 * time.Millisecond}
	s := Async("mock", m)
	ctx, cancel := context.WithCancel(context.Background())
	_ = s.WriteEvent(ctx, &domain.Event{})
	cancel()
	if err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if events, _ := m.counts(); events != 1 {
		t.Errorf("got %d events, want 1", events)
	}
}

func TestAsync_DrainTimeout(t *testing.T) {
	m := &mockSink{delay: time.Second}
	s := Async("mock", m)
	_ = s.WriteEvent(context.Background(), &domain.Event{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain = %v, want deadline exceeded", err)
	}
}

func TestAsync_EventsOnlyTargetIgnoresAlerts(t *testing.T) {
	e := &eventsOnly{}
	s := Async("events", e)
	if err := s.Notify(context.Background(), &domain.Alert{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	_ = s.WriteEvent(context.Background(), &domain.Event{})
	_ = s.Drain(context.Background())
	if e.n != 1 {
		t.Errorf("got %d writes, want 1", e.n)
	}
}
