package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusPaid              Status = "PAID"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:           {StatusPaid: true, StatusFailed: true, StatusCancelled: true},
	StatusPaid:              {StatusRefunded: true, StatusPartiallyRefunded: true},
	StatusFailed:            {},
	StatusCancelled:         {},
	StatusRefunded:          {},
	StatusPartiallyRefunded: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Transition is one edge of the order lifecycle. Only the values below exist.
type Transition struct{ to Status }

var (
	Pay           = Transition{StatusPaid}
	Fail          = Transition{StatusFailed}
	Cancel        = Transition{StatusCancelled}
	Refund        = Transition{StatusRefunded}
	PartialRefund = Transition{StatusPartiallyRefunded}
)

func (t Transition) Target() Status { return t.to }

// Apply moves the order along t or fails with errs.ErrInvalidStateTransition.
func (o *Order) Apply(t Transition, now time.Time) error {
	if !CanTransition(o.Status, t.to) {
		return fmt.Errorf("order %s %s -> %s: %w", o.ID, o.Status, t.to, errs.ErrInvalidStateTransition)
	}
	o.Status = t.to
	o.UpdatedAt = now
	if t.to == StatusPaid {
		o.PaidAt = &now
	}
	return nil
}
