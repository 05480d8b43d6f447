package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trustcore/internal/mfa/domain"
)

// PostgresRepository stores challenges in the mfa_challenges table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an MFA challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the MFA challenge. The challenge must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mfa_challenges (id, subject, code_hash, attempts, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Subject, c.CodeHash, c.Attempts, c.ExpiresAt, c.CreatedAt)
	return err
}

// GetByID returns the MFA challenge for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	var c domain.Challenge
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject, code_hash, attempts, expires_at, created_at FROM mfa_challenges WHERE id = $1`, id,
	).Scan(&c.ID, &c.Subject, &c.CodeHash, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts bumps the attempt counter atomically in the database.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Delete removes the MFA challenge by id. Only one concurrent caller sees true.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	var got string
	err := r.db.QueryRowContext(ctx, `DELETE FROM mfa_challenges WHERE id = $1 RETURNING id`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteExpired removes challenges with expires_at <= now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
