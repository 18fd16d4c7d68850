package orders

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from Status
		t    Transition
		ok   bool
	}{
		{StatusPending, Pay, true},
		{StatusPending, Fail, true},
		{StatusPending, Cancel, true},
		{StatusPending, Refund, false},
		{StatusPaid, Refund, true},
		{StatusPaid, PartialRefund, true},
		{StatusPaid, Pay, false},
		{StatusPaid, Cancel, false},
		{StatusFailed, Pay, false},
		{StatusCancelled, Pay, false},
		{StatusRefunded, PartialRefund, false},
		{StatusPartiallyRefunded, Refund, false},
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.t.Target()), func(t *testing.T) {
			o := Order{ID: "o1", Status: tt.from}
			err := o.Apply(tt.t, now)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if o.Status != tt.t.Target() {
					t.Errorf("status: got %s", o.Status)
				}
				return
			}
			if !errors.Is(err, errs.ErrInvalidStateTransition) {
				t.Fatalf("got %v, want invalid transition", err)
			}
			if o.Status != tt.from {
				t.Errorf("status changed on rejected transition: %s", o.Status)
			}
		})
	}
}

func TestPayStampsPaidAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := Order{Status: StatusPending}
	if err := o.Apply(Pay, now); err != nil {
		t.Fatal(err)
	}
	if o.PaidAt == nil || !o.PaidAt.Equal(now) {
		t.Errorf("PaidAt: %v", o.PaidAt)
	}
}

func TestNewNumber(t *testing.T) {
	n := NewNumber(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if !strings.HasPrefix(n, "ORD-20260301-") || len(n) != len("ORD-20260301-")+8 {
		t.Errorf("number: %s", n)
	}
}

func TestCloneDetachesSlices(t *testing.T) {
	o := Order{Items: []Item{{ID: "a"}}}
	c := o.Clone()
	c.Items[0].ID = "b"
	if o.Items[0].ID != "a" {
		t.Error("clone shares items")
	}
}
