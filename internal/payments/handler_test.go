package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/events"
	kafkax "github.com/ariefcatur/go-course-commerce/internal/kafka"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type call struct{ op, orderID, ref, reason string }

type fakeOrders struct {
	calls []call
	err   error
}

func (f *fakeOrders) ConfirmPayment(_ context.Context, orderID, ref string) (orders.Order, error) {
	f.calls = append(f.calls, call{"confirm", orderID, ref, ""})
	return orders.Order{ID: orderID}, f.err
}

func (f *fakeOrders) FailPayment(_ context.Context, orderID, ref, reason string) (orders.Order, error) {
	f.calls = append(f.calls, call{"fail", orderID, ref, reason})
	return orders.Order{ID: orderID}, f.err
}

type memDedup struct {
	seen    map[string]bool
	seenErr error
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) { return d.seen[id], d.seenErr }

func (d *memDedup) Mark(_ context.Context, id string) error {
	d.seen[id] = true
	return nil
}

func message(t *testing.T, eventType string, p events.PaymentVerifiedPayload) (kafkago.Message, string) {
	t.Helper()
	env, err := events.New(eventType, "gateway", p.OrderID, p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return kafkago.Message{Value: b, Headers: kafkax.EnvelopeHeaders(env)}, env.EventID
}

func newHandler(o *fakeOrders) (*Handler, *memDedup) {
	d := &memDedup{seen: map[string]bool{}}
	return &Handler{Orders: o, Dedup: d, Log: zerolog.Nop()}, d
}

func TestHandlePaymentVerified(t *testing.T) {
	retryable := fmt.Errorf("lock wait: %w", errs.ErrConcurrencyConflict)
	cases := []struct {
		name     string
		payload  events.PaymentVerifiedPayload
		err      error
		wantOp   string
		wantErr  bool
		wantMark bool
	}{
		{"success confirms", events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw-1", Success: true}, nil, "confirm", false, true},
		{"decline fails", events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw-1", Reason: "expired"}, nil, "fail", false, true},
		{"business error is final", events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw-1", Success: true}, errs.ErrInvalidStateTransition, "confirm", false, true},
		{"frozen wallet is held for replay", events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw-1", Success: true}, fmt.Errorf("sale: %w", errs.ErrWalletFrozen), "confirm", false, false},
		{"conflict is redelivered", events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw-1", Success: true}, retryable, "confirm", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := &fakeOrders{err: tc.err}
			h, d := newHandler(o)
			m, id := message(t, events.EventPaymentVerified, tc.payload)

			err := h.HandlePaymentVerified(context.Background(), m)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr && !errors.Is(err, errs.ErrConcurrencyConflict) {
				t.Errorf("error lost its cause: %v", err)
			}
			if len(o.calls) != 1 || o.calls[0].op != tc.wantOp || o.calls[0].ref != "gw-1" {
				t.Errorf("calls: %+v", o.calls)
			}
			if d.seen[id] != tc.wantMark {
				t.Errorf("marked = %v, want %v", d.seen[id], tc.wantMark)
			}
		})
	}
}

func TestDuplicateEventIsSkipped(t *testing.T) {
	o := &fakeOrders{}
	h, _ := newHandler(o)
	m, _ := message(t, events.EventPaymentVerified, events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw", Success: true})

	for i := 0; i < 3; i++ {
		if err := h.HandlePaymentVerified(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}
	if len(o.calls) != 1 {
		t.Errorf("confirmed %d times", len(o.calls))
	}
}

func TestDedupOutageStillProcesses(t *testing.T) {
	o := &fakeOrders{}
	h, d := newHandler(o)
	d.seenErr = errors.New("redis down")
	m, _ := message(t, events.EventPaymentVerified, events.PaymentVerifiedPayload{OrderID: "o1", GatewayReference: "gw", Success: true})

	if err := h.HandlePaymentVerified(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(o.calls) != 1 {
		t.Errorf("calls: %+v", o.calls)
	}
}

func TestIgnoresOtherEventsAndGarbage(t *testing.T) {
	o := &fakeOrders{}
	h, _ := newHandler(o)
	other, _ := message(t, events.EventOrderPaid, events.PaymentVerifiedPayload{OrderID: "o1"})

	for _, m := range []kafkago.Message{other, {Value: []byte("not json")}} {
		if err := h.HandlePaymentVerified(context.Background(), m); err != nil {
			t.Errorf("err = %v", err)
		}
	}
	if len(o.calls) != 0 {
		t.Errorf("calls: %+v", o.calls)
	}
}
