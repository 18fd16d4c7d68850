// Package payments consumes verified payment signals and drives order
// confirmation. The gateway has already checked signatures and amounts.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/events"
	kafkax "github.com/ariefcatur/go-course-commerce/internal/kafka"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Orders is the part of commerce.Service the handler drives.
type Orders interface {
	ConfirmPayment(ctx context.Context, orderID, gatewayRef string) (orders.Order, error)
	FailPayment(ctx context.Context, orderID, gatewayRef, reason string) (orders.Order, error)
}

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Handler struct {
	Orders Orders
	Dedup  Deduper
	Log    zerolog.Logger
}

// HandlePaymentVerified is installed as the consumer handler. It returns an
// error only for failures worth redelivering; business rejections are final
// and the offset is committed.
func (h *Handler) HandlePaymentVerified(ctx context.Context, m kafkago.Message) error {
	if t, ok := kafkax.Header(m, kafkax.HeaderEventType); ok && t != events.EventPaymentVerified {
		metrics.PaymentEvents.WithLabelValues("ignored").Inc()
		return nil
	}
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// a poison message would block the partition forever
		h.Log.Error().Err(err).Int64("offset", m.Offset).Msg("drop undecodable message")
		metrics.PaymentEvents.WithLabelValues("malformed").Inc()
		return nil
	}
	if env.EventType != events.EventPaymentVerified {
		metrics.PaymentEvents.WithLabelValues("ignored").Inc()
		return nil
	}
	log := h.Log.With().Str("event_id", env.EventID).Str("trace_id", env.TraceID).Logger()

	// Redis is a shortcut only; ConfirmPayment is idempotent on its own.
	if seen, err := h.Dedup.Seen(ctx, env.EventID); err != nil {
		log.Warn().Err(err).Msg("dedup lookup failed")
	} else if seen {
		metrics.PaymentEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	p, err := events.Decode[events.PaymentVerifiedPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("drop undecodable payload")
		metrics.PaymentEvents.WithLabelValues("malformed").Inc()
		return nil
	}
	log = log.With().Str("order_id", p.OrderID).Str("gateway_reference", p.GatewayReference).Logger()
	ctx = log.WithContext(ctx)

	outcome := "confirmed"
	if p.Success {
		_, err = h.Orders.ConfirmPayment(ctx, p.OrderID, p.GatewayReference)
	} else {
		outcome = "failed"
		_, err = h.Orders.FailPayment(ctx, p.OrderID, p.GatewayReference, p.Reason)
	}
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrWalletFrozen):
		// Paid but unpostable until the wallet is reconciled. The event is not
		// marked, so replaying it afterwards confirms the order.
		log.Error().Err(err).Bool("success", p.Success).Msg("payment held for reconciliation")
		metrics.PaymentEvents.WithLabelValues("held").Inc()
		return nil
	case errs.IsBusiness(err):
		log.Warn().Err(err).Str("code", errs.Code(err)).Msg("payment event rejected")
		outcome = "rejected"
	default:
		metrics.PaymentEvents.WithLabelValues("retry").Inc()
		return fmt.Errorf("payment event %s: %w", env.EventID, err)
	}

	metrics.PaymentEvents.WithLabelValues(outcome).Inc()
	if err := h.Dedup.Mark(ctx, env.EventID); err != nil {
		log.Warn().Err(err).Msg("dedup mark failed")
	}
	return nil
}
