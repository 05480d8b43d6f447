package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"trustcore/internal/vault/domain"
)

// MemorySecretStore keeps secrets in a map guarded by a mutex.
type MemorySecretStore struct {
	mu sync.Mutex
	m  map[string]domain.Secret
}

// NewMemorySecretStore returns an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{m: make(map[string]domain.Secret)}
}

func (s *MemorySecretStore) Put(ctx context.Context, sec *domain.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sec.Key] = *sec
	return nil
}

func (s *MemorySecretStore) Get(ctx context.Context, key string) (*domain.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	return &sec, nil
}

func (s *MemorySecretStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	delete(s.m, key)
	return ok, nil
}

func (s *MemorySecretStore) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.m[key]
	if !ok || !sec.Expired(now) {
		return false, nil
	}
	delete(s.m, key)
	return true, nil
}

func (s *MemorySecretStore) List(ctx context.Context) ([]*domain.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Secret, 0, len(s.m))
	for _, sec := range s.m {
		sec := sec
		out = append(out, &sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// MemoryAuditStore is an append-only slice guarded by a mutex.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewMemoryAuditStore returns an empty in-memory audit trail.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *MemoryAuditStore) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.AuditEntry
	for i := range s.entries {
		e := s.entries[i]
		if f.Matches(&e) {
			out = append(out, &e)
		}
	}
	return out, nil
}
