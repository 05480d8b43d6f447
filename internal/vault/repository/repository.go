package repository

import (
	"context"
	"time"

	"trustcore/internal/vault/domain"
)

// SecretStore persists encrypted vault entries keyed by name.
type SecretStore interface {
	// Put inserts or replaces the entry for s.Key.
	Put(ctx context.Context, s *domain.Secret) error
	// Get returns the entry for key, or nil if not found.
	Get(ctx context.Context, key string) (*domain.Secret, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// DeleteIfExpired removes key only if it is still past expiry at now, so a
	// concurrent Put of a fresh value is never evicted.
	DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error)
	List(ctx context.Context) ([]*domain.Secret, error)
}

// AuditStore is the append-only vault audit trail.
type AuditStore interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	// List returns matching entries in the order they were appended.
	List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, error)
}
