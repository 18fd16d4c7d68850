package kafka

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-course-commerce/internal/events"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// Sender is the part of Producer the publisher needs.
type Sender interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// EventPublisher wraps domain payloads in an events.Envelope and sends them.
type EventPublisher struct {
	Sender   Sender
	Producer string // service name stamped on envelopes
}

func (p *EventPublisher) Publish(ctx context.Context, topic, key, eventType string, payload any) error {
	env, err := events.New(eventType, p.Producer, key, payload)
	if err != nil {
		return err
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Sender.Publish(ctx, topic, events.PartitionKey(key), value, EnvelopeHeaders(env)...)
}
