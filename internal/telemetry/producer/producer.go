// Package producer publishes audit events and alerts to a message broker.
package producer

import (
	"context"

	"trustcore/internal/audit/domain"
)

// Producer publishes audit records. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// WriteEvent publishes a single audit event.
	WriteEvent(ctx context.Context, e *domain.Event) error
	// Notify publishes a single alert.
	Notify(ctx context.Context, a *domain.Alert) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}

// HeaderKind is the Kafka header naming the record kind.
const HeaderKind = "kind"

// Record kinds, carried in the HeaderKind header.
const (
	KindEvent = "event"
	KindAlert = "alert"
)
