package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"trustcore/internal/security"
	"trustcore/internal/vault/domain"
)

const secretColumns = `key, iv, ciphertext, auth_tag, owner, created_at, expires_at, rotated`

// PostgresSecretStore stores vault entries in the vault_secrets table.
type PostgresSecretStore struct {
	db *sql.DB
}

// NewPostgresSecretStore returns a secret store backed by db.
func NewPostgresSecretStore(db *sql.DB) *PostgresSecretStore {
	return &PostgresSecretStore{db: db}
}

func (s *PostgresSecretStore) Put(ctx context.Context, sec *domain.Secret) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_secrets (`+secretColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key) DO UPDATE SET iv = EXCLUDED.iv, ciphertext = EXCLUDED.ciphertext,
		   auth_tag = EXCLUDED.auth_tag, owner = EXCLUDED.owner, created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at, rotated = EXCLUDED.rotated`,
		sec.Key, sec.Value.IV, sec.Value.Ciphertext, sec.Value.AuthTag,
		sec.Metadata.Owner, sec.Metadata.CreatedAt, sec.Metadata.ExpiresAt, sec.Metadata.Rotated)
	return err
}

// Get returns the entry for key, or nil if not found.
func (s *PostgresSecretStore) Get(ctx context.Context, key string) (*domain.Secret, error) {
	sec, err := scanSecret(s.db.QueryRowContext(ctx, `SELECT `+secretColumns+` FROM vault_secrets WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sec, nil
}

func (s *PostgresSecretStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vault_secrets WHERE key = $1`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PostgresSecretStore) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vault_secrets WHERE key = $1 AND expires_at < $2`, key, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PostgresSecretStore) List(ctx context.Context) ([]*domain.Secret, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+secretColumns+` FROM vault_secrets ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Secret
	for rows.Next() {
		sec, err := scanSecret(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecret(row rowScanner) (*domain.Secret, error) {
	var sec domain.Secret
	var f security.EncryptedField
	if err := row.Scan(&sec.Key, &f.IV, &f.Ciphertext, &f.AuthTag, &sec.Metadata.Owner,
		&sec.Metadata.CreatedAt, &sec.Metadata.ExpiresAt, &sec.Metadata.Rotated); err != nil {
		return nil, err
	}
	sec.Value = f
	return &sec, nil
}

// PostgresAuditStore stores the vault audit trail in the vault_audit table.
// Rows are never updated or deleted.
type PostgresAuditStore struct {
	db *sql.DB
}

// NewPostgresAuditStore returns an audit store backed by db.
func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

func (s *PostgresAuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_audit (id, action, key, owner, ts, old_hash) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.Action), e.Key, e.Owner, e.Timestamp, sql.NullString{String: e.OldHash, Valid: e.OldHash != ""})
	return err
}

func (s *PostgresAuditStore) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.Action != "" {
		add("action = ?", string(f.Action))
	}
	if f.Key != "" {
		add("key = ?", f.Key)
	}
	if f.Owner != "" {
		add("owner = ?", f.Owner)
	}
	if !f.Since.IsZero() {
		add("ts >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		add("ts <= ?", f.Until)
	}
	q := `SELECT id, action, key, owner, ts, old_hash FROM vault_audit`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			action  string
			oldHash sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.Key, &e.Owner, &e.Timestamp, &oldHash); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		e.OldHash = oldHash.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
