// Package events defines the notification sink the cart emits to.
// Observers (UI refresh, analytics) consume these outside the core.
package events

import (
	"context"
	"time"
)

// Event names emitted by the cart.
const (
	ItemAdded   = "item-added"
	ItemRemoved = "item-removed"
	CartUpdated = "cart-updated"
	CartCleared = "cart-cleared"
)

// Event is one cart notification. Payload carries the affected item or
// a totals snapshot depending on the event name.
type Event struct {
	Name        string    `json:"name"`
	SessionID   string    `json:"session_id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Payload     any       `json:"payload,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Sink receives cart events. Implementations must be safe for
// concurrent use; emission failures are logged by callers, never
// allowed to fail the cart operation that produced the event.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Discard is a Sink that drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
