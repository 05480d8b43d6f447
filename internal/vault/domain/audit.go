package domain

import "time"

// Action names a vault operation recorded in the audit trail.
type Action string

const (
	ActionStored          Action = "SECRET_STORED"
	ActionAccessed        Action = "SECRET_ACCESSED"
	ActionRotated         Action = "SECRET_ROTATED"
	ActionDeleted         Action = "SECRET_DELETED"
	ActionAutoRotated     Action = "SECRET_AUTO_ROTATED"
	ActionAutoRotateError Action = "SECRET_AUTO_ROTATE_FAILED"
)

// AuditEntry is one row of the vault audit trail. OldHash is set only on
// rotation and holds the SHA-256 of the superseded plaintext.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Key       string    `json:"key"`
	Owner     string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	OldHash   string    `json:"oldHash,omitempty"`
}

// AuditFilter selects audit entries. Zero fields match everything; set fields
// are combined with AND. Since and Until are inclusive.
type AuditFilter struct {
	Action Action
	Key    string
	Owner  string
	Since  time.Time
	Until  time.Time
}

// Matches reports whether e satisfies every set field of f.
func (f AuditFilter) Matches(e *AuditEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Key != "" && e.Key != f.Key {
		return false
	}
	if f.Owner != "" && e.Owner != f.Owner {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
