package commerce

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/events"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ConfirmPayment marks a PENDING order PAID for a verified gateway payment.
//
// Coupons are re-validated and their usage recorded, instructor earnings are
// credited to hold, platform fees to the platform wallet, and a platform
// coupon is charged back to the platform, all in one transaction. Calling it
// again with the same gateway reference returns the paid order unchanged.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, gatewayRef string) (o orders.Order, err error) {
	ctx, done := s.begin(ctx, "confirm_payment",
		attribute.String("order.id", orderID), attribute.String("payment.reference", gatewayRef))
	defer func() { done(err) }()

	if strings.TrimSpace(orderID) == "" {
		return orders.Order{}, errs.Invalid("order_id", "required")
	}
	if strings.TrimSpace(gatewayRef) == "" {
		return orders.Order{}, errs.Invalid("gateway_reference", "required")
	}

	var (
		replay bool
		posted []ledger.EntryType
	)
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		replay, posted = false, nil
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status == orders.StatusPaid && cur.PaymentReference == gatewayRef {
			o, replay = cur, true
			return nil
		}
		if !orders.CanTransition(cur.Status, orders.StatusPaid) {
			return fmt.Errorf("order %s is %s: %w", cur.ID, cur.Status, errs.ErrInvalidStateTransition)
		}

		now := s.now().UTC()
		if err := s.consumeCoupons(ctx, tx, cur, now); err != nil {
			return err
		}
		if posted, err = s.postSale(ctx, tx, cur, now); err != nil {
			return err
		}
		if err := cur.Apply(orders.Pay, now); err != nil {
			return err
		}
		cur.PaymentReference = gatewayRef
		if err := tx.SaveOrder(ctx, cur); err != nil {
			return err
		}
		o = cur
		return nil
	})
	l := s.logger(ctx)
	if err != nil {
		s.freezeOnIntegrity(ctx, err)
		l.Warn().Err(err).Str("order_id", orderID).Str("code", errs.Code(err)).Msg("confirm payment rejected")
		return orders.Order{}, err
	}
	if replay {
		l.Debug().Str("order_id", o.ID).Msg("payment already confirmed")
		return o, nil
	}

	countPostings(posted)
	metrics.OrderTransitions.WithLabelValues(string(orders.StatusPaid)).Inc()
	l.Info().
		Str("order_id", o.ID).
		Str("order_number", o.Number).
		Int64("total", int64(o.TotalAmount)).
		Int("postings", len(posted)).
		Msg("order paid")
	s.publish(ctx, events.TopicOrderPaid, o.ID, events.EventOrderPaid, orderPaidPayload(o))
	return o, nil
}

// consumeCoupons re-checks every coupon on the order under its row lock and
// records one usage per coupon.
func (s *Service) consumeCoupons(ctx context.Context, tx store.Tx, o orders.Order, now time.Time) error {
	applied := slices.Clone(o.Coupons)
	slices.SortFunc(applied, func(a, b orders.AppliedCoupon) int { return strings.Compare(a.Code, b.Code) })

	for _, ac := range applied {
		c, err := tx.LockCoupon(ctx, ac.Code)
		if errors.Is(err, errs.ErrNotFound) {
			return s.couponGone(ac.Code, coupon.ReasonNotFound)
		}
		if err != nil {
			return err
		}
		used, err := tx.CountCouponUsage(ctx, c.ID, o.UserID)
		if err != nil {
			return err
		}
		cctx := coupon.Context{
			UserID:         o.UserID,
			UserUsageCount: used,
			CourseIDs:      o.CourseIDs(),
			InstructorIDs:  o.InstructorIDs(),
			Scoped:         true,
			Now:            now,
		}
		if c.Issuer == coupon.IssuerPlatform {
			cctx.OrderSubtotal = o.Subtotal - o.InstructorDiscount
			for _, it := range o.Items {
				if c.Matches(it.CourseID, it.InstructorID) {
					cctx.ScopedSubtotal += it.UnitPrice
				}
			}
		} else {
			cctx.OrderSubtotal = o.Subtotal
			for _, it := range o.Items {
				if it.InstructorCoupon == c.Code {
					cctx.ScopedSubtotal += it.OriginalPrice
				}
			}
		}
		if res := coupon.Validate(c, cctx); !res.IsValid {
			return s.couponGone(c.Code, res.ApplicabilityErrors...)
		}

		if err := tx.InsertCouponUsage(ctx, coupon.Usage{
			ID:         uuid.NewString(),
			CouponID:   c.ID,
			CouponCode: c.Code,
			UserID:     o.UserID,
			OrderID:    o.ID,
			Discount:   ac.Discount,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		c.UsedCount++
		c.UpdatedAt = now
		if err := tx.SaveCoupon(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) couponGone(code string, reasons ...string) error {
	for _, r := range reasons {
		metrics.CouponRejections.WithLabelValues(r).Inc()
	}
	return &errs.CouponError{Code: code, Reasons: reasons, Err: errs.ErrCouponNoLongerApplicable}
}

// postSale writes the revenue split of a paid order to the ledger.
func (s *Service) postSale(ctx context.Context, tx store.Tx, o orders.Order, now time.Time) ([]ledger.EntryType, error) {
	ws, err := s.openWallets(ctx, tx, append(o.InstructorIDs(), s.policy.PlatformOwnerID), now)
	if err != nil {
		return nil, err
	}
	platform := ws[s.policy.PlatformOwnerID]
	eligible := now.Add(s.policy.HoldingPeriod)

	var posted []ledger.EntryType
	for _, it := range o.Items {
		if it.InstructorEarnings > 0 {
			if _, err := ledger.Post(ctx, tx, ws[it.InstructorID], ledger.Posting{
				Type:          ledger.TypeSale,
				Bucket:        ledger.BucketHold,
				Amount:        it.InstructorEarnings,
				Reference:     it.ID,
				ReferenceType: ledger.RefOrderItem,
				Description:   fmt.Sprintf("sale of %s on %s", it.CourseID, o.Number),
				EligibleAt:    &eligible,
			}, now); err != nil {
				return nil, fmt.Errorf("sale %s: %w", it.ID, err)
			}
			posted = append(posted, ledger.TypeSale)
		}
		if it.PlatformFee > 0 {
			if _, err := ledger.Post(ctx, tx, platform, ledger.Posting{
				Type:          ledger.TypePlatformFee,
				Bucket:        ledger.BucketAvailable,
				Amount:        it.PlatformFee,
				Reference:     it.ID,
				ReferenceType: ledger.RefOrderItem,
				Description:   fmt.Sprintf("fee on %s for %s", o.Number, it.CourseID),
			}, now); err != nil {
				return nil, fmt.Errorf("platform fee %s: %w", it.ID, err)
			}
			posted = append(posted, ledger.TypePlatformFee)
		}
	}

	// The charge is what the platform coupon actually took off, after clamping.
	if cost := o.Subtotal - o.InstructorDiscount - o.TotalAmount; cost > 0 {
		took, owed, err := ledger.DebitOrOwe(ctx, tx, platform, ledger.Posting{
			Type:          ledger.TypeCouponCost,
			Bucket:        ledger.BucketAvailable,
			Amount:        -cost,
			Reference:     o.ID,
			ReferenceType: ledger.RefOrder,
			Description:   "platform coupon on " + o.Number,
		}, now)
		if err != nil {
			return nil, fmt.Errorf("coupon cost: %w", err)
		}
		posted = append(posted, postedTypes(took, owed, ledger.TypeCouponCost)...)
		if owed > 0 {
			s.logger(ctx).Warn().Str("order_id", o.ID).Int64("owed", int64(owed)).Msg("platform coupon cost exceeds platform balance")
		}
	}
	return posted, nil
}

// FailPayment marks a PENDING order FAILED after a declined or expired payment.
// Coupons are not consumed and nothing is posted.
func (s *Service) FailPayment(ctx context.Context, orderID, gatewayRef, reason string) (o orders.Order, err error) {
	ctx, done := s.begin(ctx, "fail_payment", attribute.String("order.id", orderID))
	defer func() { done(err) }()

	var replay bool
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status == orders.StatusFailed {
			o, replay = cur, true
			return nil
		}
		if err := cur.Apply(orders.Fail, s.now().UTC()); err != nil {
			return err
		}
		cur.FailureReason = reason
		if gatewayRef != "" {
			cur.PaymentReference = gatewayRef
		}
		o = cur
		return tx.SaveOrder(ctx, cur)
	})
	if err != nil {
		return orders.Order{}, err
	}
	if !replay {
		metrics.OrderTransitions.WithLabelValues(string(orders.StatusFailed)).Inc()
		s.logger(ctx).Info().Str("order_id", o.ID).Str("reason", reason).Msg("payment failed")
	}
	return o, nil
}

// CancelOrder lets the buyer abandon a PENDING order.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (o orders.Order, err error) {
	ctx, done := s.begin(ctx, "cancel_order", attribute.String("order.id", orderID))
	defer func() { done(err) }()

	var replay bool
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.UserID != userID {
			return fmt.Errorf("order %s: %w", orderID, errs.ErrNotFound)
		}
		if cur.Status == orders.StatusCancelled {
			o, replay = cur, true
			return nil
		}
		if err := cur.Apply(orders.Cancel, s.now().UTC()); err != nil {
			return err
		}
		o = cur
		return tx.SaveOrder(ctx, cur)
	})
	if err != nil {
		return orders.Order{}, err
	}
	if !replay {
		metrics.OrderTransitions.WithLabelValues(string(orders.StatusCancelled)).Inc()
		s.logger(ctx).Info().Str("order_id", o.ID).Msg("order cancelled")
	}
	return o, nil
}

// countPostings records committed entries. Adjustments here are always
// pending shortfalls awaiting reconciliation.
func countPostings(types []ledger.EntryType) {
	for _, t := range types {
		if t == ledger.TypeAdjustment {
			metrics.ReconciliationEntries.Inc()
			continue
		}
		metrics.Postings.WithLabelValues(string(t)).Inc()
	}
}

func orderPaidPayload(o orders.Order) events.OrderPaidPayload {
	p := events.OrderPaidPayload{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		TotalAmount: int64(o.TotalAmount),
		Currency:    o.Currency,
	}
	if o.PaidAt != nil {
		p.PaidAt = *o.PaidAt
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, events.PaidItem{
			CourseID:           it.CourseID,
			InstructorID:       it.InstructorID,
			UnitPrice:          int64(it.UnitPrice),
			InstructorEarnings: int64(it.InstructorEarnings),
		})
	}
	return p
}
