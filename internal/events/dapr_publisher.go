package events

import (
	"context"
	"encoding/json"
	"fmt"

	dapr "github.com/dapr/go-sdk/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// daprClient is the slice of dapr.Client the publisher needs.
type daprClient interface {
	PublishEvent(ctx context.Context, pubsubName, topicName string, data interface{}, opts ...dapr.PublishEventOption) error
	Close()
}

type DaprPublisher struct {
	client     daprClient
	tracer     trace.Tracer
	pubsubName string
	topic      string
}

// NewDaprPublisher connects to the local Dapr sidecar (DAPR_GRPC_PORT).
func NewDaprPublisher(pubsubName, topic string) (*DaprPublisher, error) {
	client, err := dapr.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create dapr client: %w", err)
	}
	return newDaprPublisher(client, pubsubName, topic), nil
}

func newDaprPublisher(client daprClient, pubsubName, topic string) *DaprPublisher {
	return &DaprPublisher{
		client:     client,
		tracer:     otel.Tracer("dapr.publisher"),
		pubsubName: pubsubName,
		topic:      topic,
	}
}

func (p *DaprPublisher) Publish(ctx context.Context, event Event) error {
	ctx, span := p.tracer.Start(ctx, "events.dapr.publish",
		trace.WithAttributes(
			attribute.String("event.type", string(event.Type)),
			attribute.String("event.id", event.ID.String()),
			attribute.String("operation", "events.publish"),
			attribute.String("dapr.pubsub", p.pubsubName),
			attribute.String("dapr.topic", p.topic),
		))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.client.PublishEvent(ctx, p.pubsubName, p.topic, data,
		dapr.PublishEventWithContentType("application/json"))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish event to dapr pubsub: %w", err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (p *DaprPublisher) Close() error {
	p.client.Close()
	return nil
}
