package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"trustcore/internal/audit/domain"
)

// MemoryEventStore is an append-only slice guarded by a mutex.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewMemoryEventStore returns an empty in-memory event log.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) Append(ctx context.Context, e *domain.Event) error {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	s.mu.Lock()
	s.events = append(s.events, cp)
	s.mu.Unlock()
	return nil
}

func (s *MemoryEventStore) List(ctx context.Context, f domain.EventFilter) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if f.Matches(&e) {
			e.Details = maps.Clone(e.Details)
			out = append(out, &e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// MemoryAlertStore keeps alerts in insertion order guarded by a mutex.
type MemoryAlertStore struct {
	mu     sync.Mutex
	alerts []domain.Alert
	byID   map[string]int
}

// NewMemoryAlertStore returns an empty in-memory alert store.
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{byID: make(map[string]int)}
}

func (s *MemoryAlertStore) Create(ctx context.Context, a *domain.Alert) error {
	cp := *a
	cp.Details = maps.Clone(a.Details)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = len(s.alerts)
	s.alerts = append(s.alerts, cp)
	return nil
}

func (s *MemoryAlertStore) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return s.copyAt(i), nil
}

func (s *MemoryAlertStore) Acknowledge(ctx context.Context, id, by string, at time.Time) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	a := &s.alerts[i]
	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedBy = by
		a.AcknowledgedAt = &at
	}
	return s.copyAt(i), nil
}

func (s *MemoryAlertStore) List(ctx context.Context, f domain.AlertFilter) ([]*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if f.Matches(&s.alerts[i]) {
			out = append(out, s.copyAt(i))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryAlertStore) copyAt(i int) *domain.Alert {
	a := s.alerts[i]
	a.Details = maps.Clone(a.Details)
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		a.AcknowledgedAt = &t
	}
	return &a
}
