package repository

import (
	"context"
	"time"

	"trustcore/internal/mfa/domain"
)

// Repository defines persistence for MFA challenges.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// GetByID returns the challenge for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Challenge, error)
	// IncrementAttempts records a failed answer and returns the new attempt count.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// Delete removes the challenge and reports whether this call removed it.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteExpired removes challenges that expired before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// DefaultChallengeTTL is the default MFA challenge expiry.
const DefaultChallengeTTL = 5 * time.Minute
