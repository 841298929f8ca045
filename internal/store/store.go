// Package store persists the lifecycle event history of supervised
// services.
package store

import (
	"context"
	"time"
)

// Event is one recorded lifecycle transition.
type Event struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"` // one of the controller event names
	PID        int       `json:"pid"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Store is the event history sink. SQLite is the only backend today;
// the interface keeps the daemon wiring independent of the driver.
type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordEvent(ctx context.Context, ev Event) error
	// Recent returns the newest events for name, newest first. A
	// non-positive limit uses a backend default.
	Recent(ctx context.Context, name string, limit int) ([]Event, error)
	Close() error
}
