package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/events"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

type RefundRequest struct {
	OrderID string       `json:"order_id"`
	Amount  money.Amount `json:"amount"` // zero refunds the whole order
	Reason  string       `json:"reason"`
}

type RefundResult struct {
	Order              orders.Order `json:"order"`
	InstructorReversed money.Amount `json:"instructor_reversed"`
	PlatformReversed   money.Amount `json:"platform_reversed"`
	// Outstanding is what could not be taken back because it was already paid
	// out; it is recorded as pending adjustments for reconciliation.
	Outstanding money.Amount `json:"outstanding"`
}

// RefundOrder reverses a PAID order in proportion to the refunded amount.
//
// Each instructor gives back floor(earnings * amount / total) of every line,
// from hold while the sale is unsettled and from available afterwards. The
// platform takes the remainder. An order is refunded at most once.
func (s *Service) RefundOrder(ctx context.Context, req RefundRequest) (res RefundResult, err error) {
	ctx, done := s.begin(ctx, "refund_order", attribute.String("order.id", req.OrderID))
	defer func() { done(err) }()

	var posted []ledger.EntryType
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		res, posted = RefundResult{}, nil
		o, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if o.Status != orders.StatusPaid {
			return fmt.Errorf("order %s is %s: %w", o.ID, o.Status, errs.ErrInvalidStateTransition)
		}
		total := o.TotalAmount
		if total <= 0 {
			return errs.Invalid("amount", "order has nothing to refund")
		}
		amount := req.Amount
		if amount == 0 {
			amount = total
		}
		if amount < 0 || amount > total {
			return errs.Invalid("amount", fmt.Sprintf("must be between 1 and %d", total))
		}

		now := s.now().UTC()
		ws, err := s.openWallets(ctx, tx, append(o.InstructorIDs(), s.policy.PlatformOwnerID), now)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			x := it.InstructorEarnings.Prorate(amount, total)
			if x <= 0 {
				continue
			}
			types, owed, err := reverseLine(ctx, tx, ws[it.InstructorID], it, x, o.Number, now)
			if err != nil {
				return fmt.Errorf("reverse %s: %w", it.ID, err)
			}
			posted = append(posted, types...)
			res.InstructorReversed += x
			res.Outstanding += owed
		}

		// Negative when a platform coupon paid for more than the buyer did: the
		// platform then gets its coupon cost back.
		res.PlatformReversed = amount - res.InstructorReversed
		platform := ws[s.policy.PlatformOwnerID]
		p := ledger.Posting{
			Type:          ledger.TypeRefund,
			Bucket:        ledger.BucketAvailable,
			Amount:        -res.PlatformReversed,
			Reference:     o.ID,
			ReferenceType: ledger.RefRefund,
			Description:   "refund of " + o.Number,
		}
		switch {
		case res.PlatformReversed > 0:
			took, owed, err := ledger.DebitOrOwe(ctx, tx, platform, p, now)
			if err != nil {
				return fmt.Errorf("platform refund: %w", err)
			}
			posted = append(posted, postedTypes(took, owed, ledger.TypeRefund)...)
			res.Outstanding += owed
		case res.PlatformReversed < 0:
			if _, err := ledger.Post(ctx, tx, platform, p, now); err != nil {
				return fmt.Errorf("platform refund: %w", err)
			}
			posted = append(posted, ledger.TypeRefund)
		}

		t := orders.Refund
		if amount < total {
			t = orders.PartialRefund
		}
		if err := o.Apply(t, now); err != nil {
			return err
		}
		o.RefundedAmount = amount
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		res.Order = o
		return nil
	})
	l := s.logger(ctx)
	if err != nil {
		s.freezeOnIntegrity(ctx, err)
		l.Warn().Err(err).Str("order_id", req.OrderID).Msg("refund rejected")
		return RefundResult{}, err
	}

	o := res.Order
	countPostings(posted)
	metrics.OrderTransitions.WithLabelValues(string(o.Status)).Inc()
	ev := l.Info()
	if res.Outstanding > 0 {
		ev = l.Warn()
	}
	ev.Str("order_id", o.ID).
		Int64("refunded", int64(o.RefundedAmount)).
		Int64("outstanding", int64(res.Outstanding)).
		Msg("order refunded")
	s.publish(ctx, events.TopicOrderRefunded, o.ID, events.EventOrderRefunded, events.OrderRefundedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		RefundedAmount: int64(o.RefundedAmount),
		Status:         string(o.Status),
		Reason:         req.Reason,
	})
	return res, nil
}

// reverseLine takes x back from the instructor for one order line.
func reverseLine(ctx context.Context, tx store.Tx, w *ledger.Wallet, it orders.Item, x money.Amount, number string, now time.Time) ([]ledger.EntryType, money.Amount, error) {
	sale, ok, err := tx.FindEntry(ctx, ledger.NaturalKey{
		WalletID:      w.ID,
		Reference:     it.ID,
		ReferenceType: ledger.RefOrderItem,
		Type:          ledger.TypeSale,
		Bucket:        ledger.BucketHold,
	})
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, &ledger.IntegrityError{WalletID: w.ID, OwnerID: w.OwnerID, Detail: "no sale entry for " + it.ID}
	}

	var posted []ledger.EntryType
	rest := x
	if sale.SettledAt == nil {
		fromHold := money.Min(x, sale.Unsettled())
		if fromHold > 0 {
			if err := ledger.ReverseHold(ctx, tx, w, sale.ID, fromHold, "refund of "+number, now); err != nil {
				return nil, 0, err
			}
			posted = append(posted, ledger.TypeRefund)
			rest -= fromHold
		}
	}
	if rest == 0 {
		return posted, 0, nil
	}
	took, owed, err := ledger.DebitOrOwe(ctx, tx, w, ledger.Posting{
		Type:          ledger.TypeRefund,
		Bucket:        ledger.BucketAvailable,
		Amount:        -rest,
		Reference:     it.ID,
		ReferenceType: ledger.RefRefund,
		Description:   "refund of " + number,
	}, now)
	if err != nil {
		return nil, 0, err
	}
	return append(posted, postedTypes(took, owed, ledger.TypeRefund)...), owed, nil
}

func postedTypes(took, owed money.Amount, t ledger.EntryType) []ledger.EntryType {
	var out []ledger.EntryType
	if took > 0 {
		out = append(out, t)
	}
	if owed > 0 {
		out = append(out, ledger.TypeAdjustment)
	}
	return out
}
