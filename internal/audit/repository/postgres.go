package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"trustcore/internal/audit/domain"
)

// PostgresEventStore stores events in the audit_events table. Details are JSONB.
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore returns an event store backed by db.
func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (r *PostgresEventStore) Append(ctx context.Context, e *domain.Event) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, ts, type, severity, subject, ip_address, user_agent, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Timestamp, string(e.Type), string(e.Severity), e.Subject, e.IPAddress, e.UserAgent, details)
	return err
}

func (r *PostgresEventStore) List(ctx context.Context, f domain.EventFilter) ([]*domain.Event, error) {
	var w where
	w.eq("type", string(f.Type))
	w.eq("severity", string(f.Severity))
	w.eq("subject", f.Subject)
	w.eq("ip_address", f.IPAddress)
	w.between("ts", f.Since, f.Until)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ts, type, severity, subject, ip_address, user_agent, details FROM audit_events`+
			w.String()+` ORDER BY ts DESC, seq DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		var (
			e        domain.Event
			typ, sev string
			details  []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &sev, &e.Subject, &e.IPAddress, &e.UserAgent, &details); err != nil {
			return nil, err
		}
		e.Type, e.Severity = domain.EventType(typ), domain.Severity(sev)
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// PostgresAlertStore stores alerts in the alerts table.
type PostgresAlertStore struct {
	db *sql.DB
}

// NewPostgresAlertStore returns an alert store backed by db.
func NewPostgresAlertStore(db *sql.DB) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

const alertColumns = `id, ts, type, severity, subject, ip_address, details, status, acknowledged, acknowledged_by, acknowledged_at`

func (r *PostgresAlertStore) Create(ctx context.Context, a *domain.Alert) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, type, severity, subject, ip_address, details, status, acknowledged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Timestamp, string(a.Type), string(a.Severity), a.Subject, a.IPAddress, details,
		string(a.Status), a.Acknowledged)
	return err
}

// GetByID returns the alert for id, or nil if not found.
func (r *PostgresAlertStore) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *PostgresAlertStore) Acknowledge(ctx context.Context, id, by string, at time.Time) (*domain.Alert, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		 WHERE id = $1 AND NOT acknowledged`, id, by, at); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresAlertStore) List(ctx context.Context, f domain.AlertFilter) ([]*domain.Alert, error) {
	var w where
	w.eq("type", string(f.Type))
	w.eq("severity", string(f.Severity))
	w.eq("status", string(f.Status))
	w.eq("subject", f.Subject)
	w.eq("ip_address", f.IPAddress)
	w.between("ts", f.Since, f.Until)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts`+w.String()+` ORDER BY ts DESC, seq DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var (
		a                domain.Alert
		typ, sev, status string
		details          []byte
		ackBy            sql.NullString
		ackAt            sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Timestamp, &typ, &sev, &a.Subject, &a.IPAddress, &details,
		&status, &a.Acknowledged, &ackBy, &ackAt); err != nil {
		return nil, err
	}
	a.Type, a.Severity, a.Status = domain.AlertType(typ), domain.Severity(sev), domain.AlertStatus(status)
	if err := json.Unmarshal(details, &a.Details); err != nil {
		return nil, err
	}
	a.AcknowledgedBy = ackBy.String
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}
	return &a, nil
}

// where builds a parameterised AND clause from the set filter fields.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, cond+" $"+strconv.Itoa(len(w.args)))
}

func (w *where) eq(col, v string) {
	if v != "" {
		w.add(col+" =", v)
	}
}

func (w *where) between(col string, since, until time.Time) {
	if !since.IsZero() {
		w.add(col+" >=", since)
	}
	if !until.IsZero() {
		w.add(col+" <=", until)
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
