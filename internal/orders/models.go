package orders

import (
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/money"
)

type Order struct {
	ID                 string          `json:"id"`
	Number             string          `json:"number"`
	UserID             string          `json:"user_id"`
	Status             Status          `json:"status"` // see status.go
	Items              []Item          `json:"items"`
	Coupons            []AppliedCoupon `json:"coupons"`
	Subtotal           money.Amount    `json:"subtotal"`
	InstructorDiscount money.Amount    `json:"instructor_discount"`
	PlatformDiscount   money.Amount    `json:"platform_discount"`
	TotalDiscount      money.Amount    `json:"total_discount"`
	TotalAmount        money.Amount    `json:"total_amount"`
	DiscountClamped    bool            `json:"discount_clamped"`
	RefundedAmount     money.Amount    `json:"refunded_amount"`
	Currency           string          `json:"currency"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	FailureReason      string          `json:"failure_reason,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Item is one purchased course and its revenue split, fixed at checkout.
type Item struct {
	ID                 string       `json:"id"`
	OrderID            string       `json:"order_id"`
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

// InstructorIDs lists the distinct instructors on the order.
func (o Order) InstructorIDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range o.Items {
		if !seen[it.InstructorID] {
			seen[it.InstructorID] = true
			out = append(out, it.InstructorID)
		}
	}
	return out
}

func (o Order) CourseIDs() []string {
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, it.CourseID)
	}
	return out
}

// Clone returns a copy that shares no slices with o.
func (o Order) Clone() Order {
	o.Items = append([]Item(nil), o.Items...)
	o.Coupons = append([]AppliedCoupon(nil), o.Coupons...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	return o
}
