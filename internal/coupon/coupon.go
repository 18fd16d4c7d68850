package coupon

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/money"
)

type Type string

const (
	Percentage  Type = "percentage"
	FixedAmount Type = "fixed_amount"
)

// Issuer decides who funds the discount.
type Issuer string

const (
	IssuerPlatform   Issuer = "platform"
	IssuerInstructor Issuer = "instructor"
)

type Coupon struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Type Type   `json:"type"`
	// Value is a whole percent for Percentage and minor units for FixedAmount.
	Value                  int64        `json:"value"`
	MinOrderAmount         money.Amount `json:"min_order_amount"`    // 0 = no minimum
	MaxDiscountAmount      money.Amount `json:"max_discount_amount"` // 0 = uncapped
	UsageLimit             int          `json:"usage_limit"`         // 0 = unlimited
	UsagePerUser           int          `json:"usage_per_user"`      // 0 = unlimited
	ApplicableCourseID     string       `json:"applicable_course_id,omitempty"`
	ApplicableInstructorID string       `json:"applicable_instructor_id,omitempty"`
	Issuer                 Issuer       `json:"issuer"`
	ValidFrom              time.Time    `json:"valid_from"`
	ValidTo                time.Time    `json:"valid_to"`
	IsActive               bool         `json:"is_active"`
	UsedCount              int          `json:"used_count"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// Usage is written once per (coupon, order) when the order is paid.
type Usage struct {
	ID         string       `json:"id"`
	CouponID   string       `json:"coupon_id"`
	CouponCode string       `json:"coupon_code"`
	UserID     string       `json:"user_id"`
	OrderID    string       `json:"order_id"`
	Discount   money.Amount `json:"discount"`
	CreatedAt  time.Time    `json:"created_at"`
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check validates the shape of a coupon definition before it is stored.
func (c Coupon) Check() error {
	if c.Code == "" {
		return errs.Invalid("code", "required")
	}
	if c.Code != NormalizeCode(c.Code) {
		return errs.Invalid("code", "must be uppercase without surrounding spaces")
	}
	switch c.Type {
	case Percentage:
		if c.Value <= 0 || c.Value > 100 {
			return errs.Invalid("value", "percentage must be within 1..100")
		}
	case FixedAmount:
		if c.Value <= 0 {
			return errs.Invalid("value", "must be positive")
		}
	default:
		return errs.Invalid("type", "unknown coupon type")
	}
	if c.MinOrderAmount < 0 || c.MaxDiscountAmount < 0 {
		return errs.Invalid("amount", "must not be negative")
	}
	if c.UsageLimit < 0 || c.UsagePerUser < 0 {
		return errs.Invalid("usage_limit", "must not be negative")
	}
	switch c.Issuer {
	case IssuerPlatform:
	case IssuerInstructor:
		if c.ApplicableInstructorID == "" {
			return errs.Invalid("applicable_instructor_id", "required for instructor coupons")
		}
	default:
		return errs.Invalid("issuer", "unknown issuer")
	}
	if !c.ValidFrom.IsZero() && !c.ValidTo.IsZero() && c.ValidTo.Before(c.ValidFrom) {
		return errs.Invalid("valid_to", "before valid_from")
	}
	return nil
}
