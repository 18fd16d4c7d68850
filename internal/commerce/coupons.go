package commerce

import (
	"context"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// CreateCoupon validates and stores a new coupon. Codes are stored uppercase
// and usage starts at zero.
func (s *Service) CreateCoupon(ctx context.Context, c coupon.Coupon) (_ coupon.Coupon, err error) {
	c.Code = coupon.NormalizeCode(c.Code)
	ctx, done := s.begin(ctx, "create_coupon", attribute.String("coupon.code", c.Code))
	defer func() { done(err) }()

	if err := c.Check(); err != nil {
		return coupon.Coupon{}, err
	}
	now := s.now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UsedCount = 0
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		return coupon.Coupon{}, err
	}
	s.logger(ctx).Info().
		Str("coupon_id", c.ID).
		Str("code", c.Code).
		Str("issuer", string(c.Issuer)).
		Msg("coupon created")
	return c, nil
}

func (s *Service) GetCoupon(ctx context.Context, code string) (coupon.Coupon, error) {
	return s.store.GetCoupon(ctx, coupon.NormalizeCode(code))
}
