package events

import "time"

// Money fields are integer minor units.

// PaymentVerifiedPayload is published by the gateway callback verifier.
// Success=false reports a declined or expired payment.
type PaymentVerifiedPayload struct {
	OrderID          string `json:"order_id"`
	GatewayReference string `json:"gateway_reference"`
	Success          bool   `json:"success"`
	Reason           string `json:"reason,omitempty"`
}

type PaidItem struct {
	CourseID           string `json:"course_id"`
	InstructorID       string `json:"instructor_id"`
	UnitPrice          int64  `json:"unit_price"`
	InstructorEarnings int64  `json:"instructor_earnings"`
}

// OrderPaidPayload lets enrollment grant access to the purchased courses.
type OrderPaidPayload struct {
	OrderID     string     `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	UserID      string     `json:"user_id"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
	PaidAt      time.Time  `json:"paid_at"`
	Items       []PaidItem `json:"items"`
}

type OrderRefundedPayload struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	RefundedAmount int64  `json:"refunded_amount"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
}

type PayoutUpdatedPayload struct {
	PayoutID      string `json:"payout_id"`
	RequestNumber string `json:"request_number"`
	InstructorID  string `json:"instructor_id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}
