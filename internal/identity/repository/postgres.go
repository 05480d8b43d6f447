package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trustcore/internal/identity/domain"
)

const identityColumns = `id, email, role, password_hash, totp_enabled, created_at, updated_at`

// PostgresRepository stores identities in the identities table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.get(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
}

// GetByEmail returns the identity for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.get(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg string) (*domain.Identity, error) {
	var i domain.Identity
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&i.ID, &i.Email, &i.Role, &i.PasswordHash, &i.TOTPEnabled, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	return &i, nil
}

// Create persists the identity. A duplicate email leaves the table unchanged and
// returns ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (email) DO NOTHING`,
		i.ID, i.Email, i.Role, i.PasswordHash, i.TOTPEnabled, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEmailTaken
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, at)
	return err
}

// SetTOTPEnabled flips the second-factor flag.
func (r *PostgresRepository) SetTOTPEnabled(ctx context.Context, id string, enabled bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET totp_enabled = $2, updated_at = $3 WHERE id = $1`, id, enabled, at)
	return err
}
