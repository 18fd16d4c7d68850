package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/pricing"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type CheckoutRequest struct {
	UserID      string   `json:"user_id"`
	CourseIDs   []string `json:"course_ids"`
	CouponCodes []string `json:"coupon_codes"`
}

// PreviewOrder prices a cart without persisting anything or consuming coupons.
func (s *Service) PreviewOrder(ctx context.Context, req CheckoutRequest) (p pricing.Priced, err error) {
	ctx, done := s.begin(ctx, "preview_order", attribute.String("user.id", req.UserID))
	defer func() { done(err) }()
	return s.price(ctx, req)
}

// PlaceOrder prices the cart and stores it as a PENDING order awaiting payment.
func (s *Service) PlaceOrder(ctx context.Context, req CheckoutRequest) (o orders.Order, err error) {
	ctx, done := s.begin(ctx, "place_order", attribute.String("user.id", req.UserID))
	defer func() { done(err) }()

	priced, err := s.price(ctx, req)
	if err != nil {
		return orders.Order{}, err
	}
	now := s.now().UTC()
	o = orders.Order{
		ID:                 uuid.NewString(),
		Number:             orders.NewNumber(now),
		UserID:             req.UserID,
		Status:             orders.StatusPending,
		Subtotal:           priced.Subtotal,
		InstructorDiscount: priced.InstructorDiscount,
		PlatformDiscount:   priced.PlatformDiscount,
		TotalDiscount:      priced.TotalDiscount,
		TotalAmount:        priced.Total,
		DiscountClamped:    priced.Clamped,
		Currency:           s.policy.Currency,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, l := range priced.Lines {
		o.Items = append(o.Items, orders.Item{
			ID:                 uuid.NewString(),
			OrderID:            o.ID,
			CourseID:           l.CourseID,
			InstructorID:       l.InstructorID,
			OriginalPrice:      l.OriginalPrice,
			InstructorDiscount: l.InstructorDiscount,
			UnitPrice:          l.UnitPrice,
			FeeBps:             l.FeeBps,
			PlatformFee:        l.PlatformFee,
			InstructorEarnings: l.InstructorEarnings,
			InstructorCoupon:   l.InstructorCoupon,
		})
	}
	for _, c := range priced.Coupons {
		o.Coupons = append(o.Coupons, orders.AppliedCoupon{
			CouponID: c.CouponID, Code: c.Code, Issuer: c.Issuer, Discount: c.Discount,
		})
	}

	if err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertOrder(ctx, o)
	}); err != nil {
		return orders.Order{}, err
	}
	metrics.OrderTransitions.WithLabelValues(string(orders.StatusPending)).Inc()
	s.logger(ctx).Info().
		Str("order_id", o.ID).
		Str("order_number", o.Number).
		Int64("total", int64(o.TotalAmount)).
		Int("items", len(o.Items)).
		Msg("order placed")
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// price resolves courses and coupons and runs the pricing calculator.
func (s *Service) price(ctx context.Context, req CheckoutRequest) (pricing.Priced, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return pricing.Priced{}, errs.Invalid("user_id", "required")
	}
	if len(req.CourseIDs) == 0 {
		return pricing.Priced{}, errs.Invalid("course_ids", "at least one course is required")
	}
	seen := make(map[string]bool, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		if seen[id] {
			return pricing.Priced{}, errs.Invalid("course_ids", "course "+id+" listed twice")
		}
		seen[id] = true
	}

	courses, err := s.catalog.Courses(ctx, req.CourseIDs)
	if err != nil {
		return pricing.Priced{}, fmt.Errorf("load courses: %w", err)
	}
	items := make([]pricing.Item, 0, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		c, ok := courses[id]
		if !ok || !c.Published {
			return pricing.Priced{}, fmt.Errorf("course %s: %w", id, errs.ErrNotFound)
		}
		items = append(items, pricing.Item{CourseID: c.ID, InstructorID: c.InstructorID, Price: c.Price})
	}

	var (
		instructor []coupon.Coupon
		platform   *coupon.Coupon
		usage      = map[string]int{}
		codes      = map[string]bool{}
	)
	for _, raw := range req.CouponCodes {
		code := coupon.NormalizeCode(raw)
		if code == "" {
			continue
		}
		if codes[code] {
			return pricing.Priced{}, s.rejectCoupon(code, coupon.ReasonDuplicate)
		}
		codes[code] = true

		c, err := s.store.GetCoupon(ctx, code)
		if errors.Is(err, errs.ErrNotFound) {
			return pricing.Priced{}, s.rejectCoupon(code, coupon.ReasonNotFound)
		}
		if err != nil {
			return pricing.Priced{}, err
		}
		n, err := s.store.CountCouponUsage(ctx, c.ID, req.UserID)
		if err != nil {
			return pricing.Priced{}, err
		}
		usage[c.ID] = n

		switch c.Issuer {
		case coupon.IssuerPlatform:
			if platform != nil {
				return pricing.Priced{}, s.rejectCoupon(code, coupon.ReasonMultiplePlatform)
			}
			platform = &c
		default:
			instructor = append(instructor, c)
		}
	}

	priced, err := s.calc.ComputeOrder(items, instructor, platform, pricing.Env{
		UserID:      req.UserID,
		UsageCounts: usage,
		Now:         s.now(),
	})
	var ce *errs.CouponError
	if errors.As(err, &ce) {
		for _, r := range ce.Reasons {
			metrics.CouponRejections.WithLabelValues(r).Inc()
		}
	}
	return priced, err
}

func (s *Service) rejectCoupon(code, reason string) error {
	metrics.CouponRejections.WithLabelValues(reason).Inc()
	return &errs.CouponError{Code: code, Reasons: []string{reason}, Err: errs.ErrCouponInvalid}
}
