package repository

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/identity/domain"
)

// MemoryRepository keeps identities in maps guarded by a single mutex.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]domain.Identity
	byEmail map[string]string
}

// NewMemoryRepository returns an empty in-memory identity repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]domain.Identity),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	i := r.byID[id]
	return &i, nil
}

func (r *MemoryRepository) Create(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[i.Email]; ok {
		return ErrEmailTaken
	}
	r.byID[i.ID] = *i
	r.byEmail[i.Email] = i.ID
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.update(id, func(i *domain.Identity) {
		i.PasswordHash = passwordHash
		i.UpdatedAt = at
	})
}

func (r *MemoryRepository) SetTOTPEnabled(ctx context.Context, id string, enabled bool, at time.Time) error {
	return r.update(id, func(i *domain.Identity) {
		i.TOTPEnabled = enabled
		i.UpdatedAt = at
	})
}

func (r *MemoryRepository) update(id string, fn func(*domain.Identity)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return nil
	}
	fn(&i)
	r.byID[id] = i
	return nil
}
