package kafka

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-course-commerce/internal/events"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type captured struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafka.Header
}

type fakeSender struct{ sent []captured }

func (f *fakeSender) Publish(_ context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	f.sent = append(f.sent, captured{topic, key, value, headers})
	return nil
}

func TestEventPublisherWrapsEnvelope(t *testing.T) {
	s := &fakeSender{}
	p := &EventPublisher{Sender: s, Producer: "commerce-api"}

	err := p.Publish(context.Background(), events.TopicPayoutUpdated, "po-1", events.EventPayoutUpdated,
		events.PayoutUpdatedPayload{PayoutID: "po-1", Amount: 75000, Status: "APPROVED"})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent %d messages", len(s.sent))
	}
	m := s.sent[0]
	if m.topic != events.TopicPayoutUpdated || string(m.key) != "po-1" {
		t.Errorf("topic=%s key=%s", m.topic, m.key)
	}

	env, err := UnmarshalEnvelope(m.value)
	if err != nil {
		t.Fatal(err)
	}
	if env.EventType != events.EventPayoutUpdated || env.Producer != "commerce-api" || env.CorrelationID != "po-1" {
		t.Errorf("envelope: %+v", env)
	}
	body, err := events.Decode[events.PayoutUpdatedPayload](env)
	if err != nil {
		t.Fatal(err)
	}
	if body.Amount != 75000 {
		t.Errorf("amount %d", body.Amount)
	}

	msg := kafka.Message{Headers: m.headers}
	if v, ok := Header(msg, HeaderEventType); !ok || v != events.EventPayoutUpdated {
		t.Errorf("event type header %q %v", v, ok)
	}
	if v, _ := Header(msg, HeaderEventVersion); v != "1" {
		t.Errorf("version header %q", v)
	}
}

func TestProducerRejectsAfterClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1, zerolog.Nop())
	p.Close()
	if err := p.Publish(context.Background(), "t", nil, nil); err != ErrProducerClosed {
		t.Errorf("got %v", err)
	}
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalEnvelope([]byte("{")); err == nil {
		t.Error("expected error")
	}
}
