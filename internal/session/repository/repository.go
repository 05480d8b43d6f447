package repository

import (
	"context"
	"time"

	"trustcore/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations must make
// Deactivate and DeleteExpired atomic with respect to concurrent callers.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListBySubject(ctx context.Context, subject string) ([]*domain.Session, error)
	// Deactivate flips an active session to inactive and reports whether it changed.
	Deactivate(ctx context.Context, id string, at time.Time) (bool, error)
	// DeleteExpired removes sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RevocationStore holds revoked token hashes.
type RevocationStore interface {
	Add(ctx context.Context, r domain.Revocation) error
	Contains(ctx context.Context, tokenHash string) (bool, error)
	// DeleteExpired removes entries whose token expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
