package repository

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/mfa/domain"
)

// MemoryRepository is an in-memory Repository. Expired challenges are dropped
// lazily on read and by DeleteExpired.
type MemoryRepository struct {
	mu   sync.RWMutex
	m    map[string]domain.Challenge
	nowF func() time.Time
}

// NewMemoryRepository returns an empty in-memory challenge repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		m:    make(map[string]domain.Challenge),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for lazy expiry. Intended for tests.
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.nowF = now
	return r
}

func (r *MemoryRepository) Create(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[c.ID] = *c
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	r.mu.RLock()
	c, ok := r.m[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.Expired(r.nowF()) {
		r.mu.Lock()
		delete(r.m, id)
		r.mu.Unlock()
		return nil, nil
	}
	return &c, nil
}

func (r *MemoryRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	r.m[id] = c
	return c.Attempts, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return false, nil
	}
	delete(r.m, id)
	return true, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.m {
		if c.Expired(now) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}
