package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trustcore/internal/session/domain"
)

const sessionColumns = `id, subject, access_token_hash, refresh_token_hash, access_expires_at,
	refresh_expires_at, ip_address, user_agent, active, revoked_at, created_at, expires_at`

// PostgresRepository stores sessions in the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.Subject, s.AccessTokenHash, s.RefreshTokenHash, s.AccessExpiresAt, s.RefreshExpiresAt,
		nullString(s.Metadata.IPAddress), nullString(s.Metadata.UserAgent), s.Active,
		timeToNullTime(s.RevokedAt), s.CreatedAt, s.ExpiresAt)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListBySubject returns every stored session for subject, oldest first.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subject string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE subject = $1 ORDER BY created_at`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Deactivate flips active to false only if it is currently true, in one statement.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE, revoked_at = $2 WHERE id = $1 AND active`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteExpired removes sessions with expires_at <= now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PostgresRevocationStore stores revoked token hashes in the revoked_tokens table.
type PostgresRevocationStore struct {
	db *sql.DB
}

// NewPostgresRevocationStore returns a revocation store backed by db.
func NewPostgresRevocationStore(db *sql.DB) *PostgresRevocationStore {
	return &PostgresRevocationStore{db: db}
}

// Add inserts the revocation, keeping the later expiry when the hash already exists.
func (s *PostgresRevocationStore) Add(ctx context.Context, rv domain.Revocation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at) VALUES ($1, $2, $3)
		 ON CONFLICT (token_hash) DO UPDATE SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)`,
		rv.TokenHash, rv.ExpiresAt, rv.RevokedAt)
	return err
}

func (s *PostgresRevocationStore) Contains(ctx context.Context, tokenHash string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`, tokenHash).Scan(&ok)
	return ok, err
}

func (s *PostgresRevocationStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		ip, ua    sql.NullString
		revokedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Subject, &s.AccessTokenHash, &s.RefreshTokenHash, &s.AccessExpiresAt,
		&s.RefreshExpiresAt, &ip, &ua, &s.Active, &revokedAt, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	s.Metadata = domain.Metadata{IPAddress: ip.String, UserAgent: ua.String}
	s.RevokedAt = nullTimeToPtr(revokedAt)
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
