package repository

import (
	"context"
	"time"

	"trustcore/internal/identity/domain"
)

// Repository defines persistence for identities.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	// GetByEmail looks up by the normalized (lowercased, trimmed) email.
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// Create fails with ErrEmailTaken when another identity holds the email.
	Create(ctx context.Context, i *domain.Identity) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error
	SetTOTPEnabled(ctx context.Context, id string, enabled bool, at time.Time) error
}
