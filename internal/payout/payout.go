// Package payout models instructor withdrawal requests and their lifecycle.
package payout

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusApproved   Status = "APPROVED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusFailed     Status = "FAILED"
)

var validNext = map[Status]map[Status]bool{
	StatusRequested:  {StatusApproved: true, StatusRejected: true},
	StatusApproved:   {StatusProcessing: true, StatusRejected: true, StatusFailed: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusRejected:   {},
	StatusFailed:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// Transition is one edge of the payout lifecycle. Only the values below exist.
type Transition struct{ to Status }

var (
	Approve  = Transition{StatusApproved}
	Process  = Transition{StatusProcessing}
	Complete = Transition{StatusCompleted}
	Reject   = Transition{StatusRejected}
	Fail     = Transition{StatusFailed}
)

func (t Transition) Target() Status { return t.to }

// BankDetails is a snapshot taken when the request is made.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

func (b BankDetails) Check() error {
	switch {
	case strings.TrimSpace(b.BankName) == "":
		return errs.Invalid("bank_details.bank_name", "required")
	case strings.TrimSpace(b.AccountNumber) == "":
		return errs.Invalid("bank_details.account_number", "required")
	case strings.TrimSpace(b.AccountHolder) == "":
		return errs.Invalid("bank_details.account_holder", "required")
	}
	return nil
}

type Request struct {
	ID           string       `json:"id"`
	Number       string       `json:"number"`
	InstructorID string       `json:"instructor_id"`
	WalletID     string       `json:"wallet_id"`
	Amount       money.Amount `json:"amount"`
	Status       Status       `json:"status"`
	Bank         BankDetails  `json:"bank_details"`
	EntryID      string       `json:"entry_id"`         // pending ledger entry holding the reservation
	Reason       string       `json:"reason,omitempty"` // rejection or failure reason
	RequestedAt  time.Time    `json:"requested_at"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty"`
	ProcessingAt *time.Time   `json:"processing_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	RejectedAt   *time.Time   `json:"rejected_at,omitempty"`
	FailedAt     *time.Time   `json:"failed_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func NewRequest(instructorID, walletID string, amount money.Amount, bank BankDetails, now time.Time) Request {
	return Request{
		ID:           uuid.NewString(),
		Number:       "PO-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8]),
		InstructorID: instructorID,
		WalletID:     walletID,
		Amount:       amount,
		Status:       StatusRequested,
		Bank:         bank,
		RequestedAt:  now,
		UpdatedAt:    now,
	}
}

// Apply moves the request along t, stamping the matching timestamp.
func (r *Request) Apply(t Transition, reason string, now time.Time) error {
	if !CanTransition(r.Status, t.to) {
		return fmt.Errorf("payout %s %s -> %s: %w", r.ID, r.Status, t.to, errs.ErrInvalidStateTransition)
	}
	r.Status = t.to
	r.UpdatedAt = now
	switch t.to {
	case StatusApproved:
		r.ApprovedAt = &now
	case StatusProcessing:
		r.ProcessingAt = &now
	case StatusCompleted:
		r.CompletedAt = &now
	case StatusRejected:
		r.RejectedAt = &now
		r.Reason = reason
	case StatusFailed:
		r.FailedAt = &now
		r.Reason = reason
	}
	return nil
}
