package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"trustcore/internal/session/domain"
)

// MemoryRepository keeps sessions in a map guarded by a single mutex.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) ListBySubject(ctx context.Context, subject string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.Subject == subject {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	s.RevokedAt = &at
	r.sessions[id] = s
	return true, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// MemoryRevocationStore keeps revoked token hashes in a map guarded by a mutex.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryRevocationStore returns an empty in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time)}
}

// Add records a revocation. Re-adding a hash keeps the later expiry.
func (s *MemoryRevocationStore) Add(ctx context.Context, r domain.Revocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[r.TokenHash]; !ok || r.ExpiresAt.After(cur) {
		s.entries[r.TokenHash] = r.ExpiresAt
	}
	return nil
}

func (s *MemoryRevocationStore) Contains(ctx context.Context, tokenHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[tokenHash]
	return ok, nil
}

func (s *MemoryRevocationStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for h, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, h)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries held.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
