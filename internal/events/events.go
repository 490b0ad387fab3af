// Package events publishes subscriber lifecycle changes to a message broker
// so other services can react to them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"subscribers-go/internal/models"
)

type Type string

const (
	SubscriberCreated Type = "subscriber.created"
	SubscriberUpdated Type = "subscriber.updated"
)

type Event struct {
	ID         uuid.UUID          `json:"id"`
	Type       Type               `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Subscriber *models.Subscriber `json:"subscriber"`
}

func New(t Type, subscriber *models.Subscriber, now time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: now.UTC(),
		Subscriber: subscriber,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
