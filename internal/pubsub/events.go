// Package pubsub provides a generic publish/subscribe event system used to
// fan review-pane notifications (file in view, catalog rebuilds, log entries)
// out to any number of listeners.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent announces a new payload (log entries use this).
	CreatedEvent EventType = "created"
	// UpdatedEvent announces a changed payload, e.g. a new file in view.
	UpdatedEvent EventType = "updated"
	// DeletedEvent announces a payload that no longer exists.
	DeletedEvent EventType = "deleted"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
