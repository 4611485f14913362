// Package pubsub provides a generic publish/subscribe event system.
//
// It carries log entries from internal/log and reload notifications from
// internal/watcher to whichever command is streaming them.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

// Log entries are published as CreatedEvent. Watcher batches are
// UpdatedEvent, or DeletedEvent when the batch only removes files.
const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
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

// Publisher allows publishing events with a typed payload. Publish reports
// how many subscribers received the event.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}
