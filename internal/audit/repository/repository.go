package repository

import (
	"context"
	"time"

	"trustcore/internal/audit/domain"
)

// EventStore is the append-only security event log.
type EventStore interface {
	Append(ctx context.Context, e *domain.Event) error
	// List returns matching events newest first. Events with equal timestamps
	// are returned in reverse append order.
	List(ctx context.Context, f domain.EventFilter) ([]*domain.Event, error)
}

// AlertStore persists alerts raised by the detector.
type AlertStore interface {
	Create(ctx context.Context, a *domain.Alert) error
	// GetByID returns the alert for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	// Acknowledge marks the alert acknowledged if it is not already and returns
	// its current state, or nil if not found. A second call leaves the first
	// acknowledger and time in place.
	Acknowledge(ctx context.Context, id, by string, at time.Time) (*domain.Alert, error)
	// List returns matching alerts newest first.
	List(ctx context.Context, f domain.AlertFilter) ([]*domain.Alert, error)
}
