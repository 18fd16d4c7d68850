package payout

import (
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
)

func TestLifecycle(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		steps []Transition
		want  Status
		fails bool
	}{
		{"happy path", []Transition{Approve, Process, Complete}, StatusCompleted, false},
		{"reject on request", []Transition{Reject}, StatusRejected, false},
		{"reject after approval", []Transition{Approve, Reject}, StatusRejected, false},
		{"rail failure", []Transition{Approve, Fail}, StatusFailed, false},
		{"failure while processing", []Transition{Approve, Process, Fail}, StatusFailed, false},
		{"skip approval", []Transition{Process}, StatusRequested, true},
		{"complete unapproved", []Transition{Complete}, StatusRequested, true},
		{"fail from requested", []Transition{Fail}, StatusRequested, true},
		{"reject while processing", []Transition{Approve, Process, Reject}, StatusProcessing, true},
		{"reopen completed", []Transition{Approve, Process, Complete, Approve}, StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRequest("i1", "w1", 50000, BankDetails{"BCA", "123", "Alice"}, now)
			var err error
			for _, s := range tt.steps {
				if err = r.Apply(s, "reason", now); err != nil {
					break
				}
			}
			if tt.fails != (err != nil) {
				t.Fatalf("err = %v, fails = %v", err, tt.fails)
			}
			if err != nil && !errors.Is(err, errs.ErrInvalidStateTransition) {
				t.Fatalf("got %v", err)
			}
			if r.Status != tt.want {
				t.Errorf("status: got %s, want %s", r.Status, tt.want)
			}
		})
	}
}

func TestApplyStampsTimes(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := NewRequest("i1", "w1", 50000, BankDetails{"BCA", "123", "Alice"}, now)
	_ = r.Apply(Approve, "", now.Add(time.Hour))
	_ = r.Apply(Reject, "account closed", now.Add(2*time.Hour))
	if r.ApprovedAt == nil || r.RejectedAt == nil || r.Reason != "account closed" {
		t.Errorf("request: %+v", r)
	}
	if !r.Status.Terminal() {
		t.Error("rejected should be terminal")
	}
}

func TestBankDetailsCheck(t *testing.T) {
	if err := (BankDetails{BankName: "BCA", AccountNumber: "1"}).Check(); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("got %v", err)
	}
	if err := (BankDetails{"BCA", "1", "Alice"}).Check(); err != nil {
		t.Errorf("got %v", err)
	}
}
