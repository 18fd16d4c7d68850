// Package pricing turns a cart and its coupons into per-line revenue splits.
//
// Instructor coupons reduce the lines they scope before the platform fee is
// taken, so instructors fund their own promotions. A platform coupon is then
// taken off the cart total and is absorbed entirely by the platform.
package pricing

import (
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/money"
)

// DefaultFeeBps is the platform commission, 30%.
const DefaultFeeBps int64 = 3000

type Item struct {
	CourseID     string
	InstructorID string
	Price        money.Amount
}

type Line struct {
	CourseID           string       `json:"course_id"`
	InstructorID       string       `json:"instructor_id"`
	OriginalPrice      money.Amount `json:"original_price"`
	InstructorDiscount money.Amount `json:"instructor_discount"`
	UnitPrice          money.Amount `json:"unit_price"`
	FeeBps             int64        `json:"fee_bps"`
	PlatformFee        money.Amount `json:"platform_fee"`
	InstructorEarnings money.Amount `json:"instructor_earnings"`
	InstructorCoupon   string       `json:"instructor_coupon,omitempty"`
}

type AppliedCoupon struct {
	CouponID string        `json:"coupon_id"`
	Code     string        `json:"code"`
	Issuer   coupon.Issuer `json:"issuer"`
	Discount money.Amount  `json:"discount"`
}

type Priced struct {
	Lines              []Line       `json:"lines"`
	Subtotal           money.Amount `json:"subtotal"`
	InstructorDiscount money.Amount `json:"instructor_discount"`
	PlatformDiscount   money.Amount `json:"platform_discount"`
	TotalDiscount      money.Amount `json:"total_discount"`
	Total              money.Amount `json:"total"`
	// Clamped is set when the discounts exceeded the subtotal and Total was floored at zero.
	Clamped bool            `json:"discount_clamped"`
	Coupons []AppliedCoupon `json:"coupons"`
}

// Env carries the per-request inputs coupon validation needs.
type Env struct {
	UserID string
	// UsageCounts maps coupon id to how many times UserID has already used it.
	UsageCounts map[string]int
	Now         time.Time
}

type Calculator struct {
	FeeBps int64
}

func NewCalculator(feeBps int64) Calculator {
	if feeBps <= 0 || feeBps > money.BpsDenominator {
		feeBps = DefaultFeeBps
	}
	return Calculator{FeeBps: feeBps}
}

// Split divides a unit price. Earnings are floored so the remainder lands on the fee,
// which makes the fee a ceiling rather than a half-up rounding: a unit of 1 at
// 30% is all fee.
func (c Calculator) Split(unit money.Amount) (fee, earnings money.Amount) {
	earnings = unit.MulBps(money.BpsDenominator - c.FeeBps)
	return unit - earnings, earnings
}

// ComputeOrder prices items with at most one instructor coupon per line and
// an optional platform coupon. Any coupon that does not apply fails the whole
// computation with a *errs.CouponError wrapping errs.ErrCouponInvalid.
func (c Calculator) ComputeOrder(items []Item, instructorCoupons []coupon.Coupon, platform *coupon.Coupon, env Env) (Priced, error) {
	if len(items) == 0 {
		return Priced{}, errs.Invalid("items", "at least one item is required")
	}
	out := Priced{Lines: make([]Line, len(items))}
	courseIDs := make([]string, 0, len(items))
	instructorIDs := make([]string, 0, len(items))
	for i, it := range items {
		if it.Price < 0 {
			return Priced{}, errs.Invalid("items.price", "must not be negative")
		}
		out.Lines[i] = Line{
			CourseID:      it.CourseID,
			InstructorID:  it.InstructorID,
			OriginalPrice: it.Price,
			UnitPrice:     it.Price,
			FeeBps:        c.FeeBps,
		}
		out.Subtotal += it.Price
		courseIDs = append(courseIDs, it.CourseID)
		instructorIDs = append(instructorIDs, it.InstructorID)
	}

	for _, cp := range instructorCoupons {
		if cp.Issuer != coupon.IssuerInstructor {
			return Priced{}, rejected(cp.Code, coupon.ReasonWrongIssuer)
		}
		var scoped money.Amount
		var idx []int
		for i, l := range out.Lines {
			if cp.Matches(l.CourseID, l.InstructorID) {
				if l.InstructorCoupon != "" {
					return Priced{}, errs.Invalid("coupons", "more than one instructor coupon applies to course "+l.CourseID)
				}
				scoped += l.OriginalPrice
				idx = append(idx, i)
			}
		}
		res := coupon.Validate(cp, coupon.Context{
			OrderSubtotal:  out.Subtotal,
			UserID:         env.UserID,
			UserUsageCount: env.UsageCounts[cp.ID],
			CourseIDs:      courseIDs,
			InstructorIDs:  instructorIDs,
			ScopedSubtotal: scoped,
			Scoped:         true,
			Now:            env.Now,
		})
		if !res.IsValid {
			return Priced{}, rejected(cp.Code, res.ApplicabilityErrors...)
		}
		given := allocate(out.Lines, idx, res.Discount, cp.Code)
		out.InstructorDiscount += given
		out.Coupons = append(out.Coupons, AppliedCoupon{
			CouponID: cp.ID, Code: cp.Code, Issuer: cp.Issuer, Discount: given,
		})
	}

	var net money.Amount
	for i := range out.Lines {
		l := &out.Lines[i]
		l.UnitPrice = l.OriginalPrice - l.InstructorDiscount
		l.PlatformFee, l.InstructorEarnings = c.Split(l.UnitPrice)
		net += l.UnitPrice
	}

	if platform != nil {
		if platform.Issuer != coupon.IssuerPlatform {
			return Priced{}, rejected(platform.Code, coupon.ReasonWrongIssuer)
		}
		var scoped money.Amount
		for _, l := range out.Lines {
			if platform.Matches(l.CourseID, l.InstructorID) {
				scoped += l.UnitPrice
			}
		}
		res := coupon.Validate(*platform, coupon.Context{
			OrderSubtotal:  net,
			UserID:         env.UserID,
			UserUsageCount: env.UsageCounts[platform.ID],
			CourseIDs:      courseIDs,
			InstructorIDs:  instructorIDs,
			ScopedSubtotal: scoped,
			Scoped:         true,
			Now:            env.Now,
		})
		if !res.IsValid {
			return Priced{}, rejected(platform.Code, res.ApplicabilityErrors...)
		}
		out.PlatformDiscount = res.Discount
		out.Coupons = append(out.Coupons, AppliedCoupon{
			CouponID: platform.ID, Code: platform.Code, Issuer: platform.Issuer, Discount: res.Discount,
		})
	}

	out.TotalDiscount = out.InstructorDiscount + out.PlatformDiscount
	out.Total = net - out.PlatformDiscount
	if out.Total < 0 {
		out.Total = 0
		out.Clamped = true
	}
	return out, nil
}

// allocate spreads discount over the lines at idx in proportion to their
// original price and returns how much was actually placed. Leftover units go
// one at a time to lines that still have room.
func allocate(lines []Line, idx []int, discount money.Amount, code string) money.Amount {
	var scoped money.Amount
	for _, i := range idx {
		scoped += lines[i].OriginalPrice
		lines[i].InstructorCoupon = code
	}
	if scoped <= 0 || discount <= 0 {
		return 0
	}
	var given money.Amount
	for _, i := range idx {
		share := discount.Prorate(lines[i].OriginalPrice, scoped)
		lines[i].InstructorDiscount = share
		given += share
	}
	for rest := discount - given; rest > 0; {
		progressed := false
		for _, i := range idx {
			if rest == 0 {
				break
			}
			if lines[i].InstructorDiscount < lines[i].OriginalPrice {
				lines[i].InstructorDiscount++
				rest--
				given++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return given
}

func rejected(code string, reasons ...string) error {
	return &errs.CouponError{Code: code, Reasons: reasons, Err: errs.ErrCouponInvalid}
}
