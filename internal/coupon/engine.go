// Package coupon validates coupons against an order and computes discounts.
// Nothing here touches storage; usage is persisted only when an order is paid.
package coupon

import (
	"slices"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/money"
)

// Applicability reasons, reported in check order.
const (
	ReasonInactive         = "COUPON_INACTIVE"
	ReasonNotYetValid      = "COUPON_NOT_YET_VALID"
	ReasonExpired          = "COUPON_EXPIRED"
	ReasonUsageLimit       = "USAGE_LIMIT_REACHED"
	ReasonUserLimit        = "USER_USAGE_LIMIT_REACHED"
	ReasonMinOrder         = "MIN_ORDER_NOT_MET"
	ReasonCourseScope      = "COURSE_NOT_IN_ORDER"
	ReasonInstructorScope  = "INSTRUCTOR_NOT_IN_ORDER"
	ReasonNotFound         = "COUPON_NOT_FOUND"
	ReasonWrongIssuer      = "COUPON_ISSUER_MISMATCH"
	ReasonDuplicate        = "COUPON_DUPLICATED"
	ReasonMultiplePlatform = "MULTIPLE_PLATFORM_COUPONS"
)

type Context struct {
	OrderSubtotal  money.Amount
	UserID         string
	UserUsageCount int
	CourseIDs      []string
	InstructorIDs  []string
	// ScopedSubtotal is the base the discount applies to when Scoped is set,
	// even if it is zero. Otherwise the base is OrderSubtotal.
	ScopedSubtotal money.Amount
	Scoped         bool
	Now            time.Time
}

type Result struct {
	IsValid             bool
	ApplicabilityErrors []string
	Discount            money.Amount
}

// Validate runs the applicability checks in order and stops at the first failure.
func Validate(c Coupon, ctx Context) Result {
	if reason := firstFailure(c, ctx); reason != "" {
		return Result{IsValid: false, ApplicabilityErrors: []string{reason}}
	}
	base := ctx.OrderSubtotal
	if ctx.Scoped {
		base = ctx.ScopedSubtotal
	}
	return Result{IsValid: true, Discount: Discount(c, base)}
}

func firstFailure(c Coupon, ctx Context) string {
	if !c.IsActive {
		return ReasonInactive
	}
	if !c.ValidFrom.IsZero() && ctx.Now.Before(c.ValidFrom) {
		return ReasonNotYetValid
	}
	if !c.ValidTo.IsZero() && ctx.Now.After(c.ValidTo) {
		return ReasonExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return ReasonUsageLimit
	}
	if c.UsagePerUser > 0 && ctx.UserUsageCount >= c.UsagePerUser {
		return ReasonUserLimit
	}
	if c.MinOrderAmount > 0 && ctx.OrderSubtotal < c.MinOrderAmount {
		return ReasonMinOrder
	}
	if c.ApplicableCourseID != "" && !slices.Contains(ctx.CourseIDs, c.ApplicableCourseID) {
		return ReasonCourseScope
	}
	if c.ApplicableInstructorID != "" && !slices.Contains(ctx.InstructorIDs, c.ApplicableInstructorID) {
		return ReasonInstructorScope
	}
	return ""
}

// Discount computes the discount on base. The result is never above base.
func Discount(c Coupon, base money.Amount) money.Amount {
	if base <= 0 {
		return 0
	}
	var d money.Amount
	switch c.Type {
	case Percentage:
		d = base.Percent(c.Value)
		if c.MaxDiscountAmount > 0 {
			d = money.Min(d, c.MaxDiscountAmount)
		}
	case FixedAmount:
		d = money.Amount(c.Value)
	}
	return money.Min(d, base)
}

// Matches reports whether a line falls under the coupon's course/instructor scope.
func (c Coupon) Matches(courseID, instructorID string) bool {
	if c.ApplicableCourseID != "" && c.ApplicableCourseID != courseID {
		return false
	}
	if c.ApplicableInstructorID != "" && c.ApplicableInstructorID != instructorID {
		return false
	}
	return true
}
