package events

import (
	"context"
	"time"
)

const (
	UserSignedUp   = "user.signed_up"
	ProductCreated = "product.created"
	ProductUpdated = "product.updated"
	OrderPlaced    = "order.placed"
)

// Event describes a committed change. Events are emitted only after the
// corresponding transaction has committed.
type Event struct {
	Type       string                 `json:"type"`
	EntityID   string                 `json:"entity_id"`
	UserID     string                 `json:"user_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(eventType, entityID, userID string, data map[string]interface{}) Event {
	return Event{
		Type:       eventType,
		EntityID:   entityID,
		UserID:     userID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher forwards events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
