package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/events"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

type PayoutRequest struct {
	InstructorID string             `json:"instructor_id"`
	Amount       money.Amount       `json:"amount"`
	Bank         payout.BankDetails `json:"bank_details"`
}

// RequestPayout reserves amount of the instructor's spendable balance for a
// withdrawal. The reservation stays until the payout completes or is released.
func (s *Service) RequestPayout(ctx context.Context, req PayoutRequest) (p payout.Request, err error) {
	ctx, done := s.begin(ctx, "request_payout",
		attribute.String("instructor.id", req.InstructorID), attribute.Int64("amount", int64(req.Amount)))
	defer func() { done(err) }()

	switch {
	case strings.TrimSpace(req.InstructorID) == "":
		return payout.Request{}, errs.Invalid("instructor_id", "required")
	case req.InstructorID == s.policy.PlatformOwnerID:
		return payout.Request{}, errs.Invalid("instructor_id", "platform wallet cannot request payouts")
	case req.Amount <= 0:
		return payout.Request{}, errs.Invalid("amount", "must be positive")
	case req.Amount < s.policy.MinimumPayout:
		return payout.Request{}, errs.Invalid("amount", "below minimum payout of "+money.Format(s.policy.MinimumPayout, s.policy.Currency))
	}
	if err := req.Bank.Check(); err != nil {
		return payout.Request{}, err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		w, err := tx.LockWallet(ctx, req.InstructorID)
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("instructor %s has no earnings: %w", req.InstructorID, errs.ErrInsufficientFunds)
		}
		if err != nil {
			return err
		}
		if w.Kind != ledger.KindInstructor {
			return errs.Invalid("instructor_id", "not an instructor wallet")
		}
		now := s.now().UTC()
		p = payout.NewRequest(req.InstructorID, w.ID, req.Amount, req.Bank, now)
		e, err := ledger.Reserve(ctx, tx, &w, req.Amount, p.ID, "payout "+p.Number, now)
		if err != nil {
			return err
		}
		p.EntryID = e.ID
		return tx.InsertPayout(ctx, p)
	})
	if err != nil {
		s.logger(ctx).Warn().Err(err).Str("instructor_id", req.InstructorID).Msg("payout request rejected")
		return payout.Request{}, err
	}
	s.payoutChanged(ctx, p)
	return p, nil
}

func (s *Service) ApprovePayout(ctx context.Context, id string) (payout.Request, error) {
	return s.movePayout(ctx, "approve_payout", id, payout.Approve, "")
}

func (s *Service) ProcessPayout(ctx context.Context, id string) (payout.Request, error) {
	return s.movePayout(ctx, "process_payout", id, payout.Process, "")
}

// CompletePayout books the withdrawal: the reserved entry completes and the
// available balance drops by the payout amount.
func (s *Service) CompletePayout(ctx context.Context, id string) (payout.Request, error) {
	return s.movePayout(ctx, "complete_payout", id, payout.Complete, "")
}

// RejectPayout cancels the reservation, returning the funds to spendable.
func (s *Service) RejectPayout(ctx context.Context, id, reason string) (payout.Request, error) {
	if strings.TrimSpace(reason) == "" {
		return payout.Request{}, errs.Invalid("reason", "required")
	}
	return s.movePayout(ctx, "reject_payout", id, payout.Reject, reason)
}

// FailPayout records a payment-rail failure and releases the reservation.
func (s *Service) FailPayout(ctx context.Context, id, reason string) (payout.Request, error) {
	if strings.TrimSpace(reason) == "" {
		return payout.Request{}, errs.Invalid("reason", "required")
	}
	return s.movePayout(ctx, "fail_payout", id, payout.Fail, reason)
}

func (s *Service) movePayout(ctx context.Context, op, id string, t payout.Transition, reason string) (p payout.Request, err error) {
	ctx, done := s.begin(ctx, op, attribute.String("payout.id", id))
	defer func() { done(err) }()

	var replay bool
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		cur, err := tx.LockPayout(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == t.Target() {
			p, replay = cur, true
			return nil
		}
		now := s.now().UTC()
		if err := cur.Apply(t, reason, now); err != nil {
			return err
		}

		var settle func(*ledger.Wallet) error
		switch t.Target() {
		case payout.StatusCompleted:
			settle = func(w *ledger.Wallet) error {
				_, err := ledger.Complete(ctx, tx, w, cur.EntryID, now)
				return err
			}
		case payout.StatusRejected:
			settle = func(w *ledger.Wallet) error {
				_, err := ledger.Release(ctx, tx, w, cur.EntryID, ledger.StatusCancelled, now)
				return err
			}
		case payout.StatusFailed:
			settle = func(w *ledger.Wallet) error {
				_, err := ledger.Release(ctx, tx, w, cur.EntryID, ledger.StatusFailed, now)
				return err
			}
		}
		if settle != nil {
			w, err := tx.LockWallet(ctx, cur.InstructorID)
			if err != nil {
				return err
			}
			if err := settle(&w); err != nil {
				return fmt.Errorf("payout %s: %w", cur.ID, err)
			}
		}
		p = cur
		return tx.SavePayout(ctx, cur)
	})
	if err != nil {
		s.freezeOnIntegrity(ctx, err)
		s.logger(ctx).Warn().Err(err).Str("payout_id", id).Str("op", op).Msg("payout transition rejected")
		return payout.Request{}, err
	}
	if !replay {
		if p.Status == payout.StatusCompleted {
			metrics.Postings.WithLabelValues(string(ledger.TypePayout)).Inc()
		}
		s.payoutChanged(ctx, p)
	}
	return p, nil
}

func (s *Service) payoutChanged(ctx context.Context, p payout.Request) {
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	s.logger(ctx).Info().
		Str("payout_id", p.ID).
		Str("request_number", p.Number).
		Str("instructor_id", p.InstructorID).
		Int64("amount", int64(p.Amount)).
		Str("status", string(p.Status)).
		Msg("payout updated")
	s.publish(ctx, events.TopicPayoutUpdated, p.InstructorID, events.EventPayoutUpdated, events.PayoutUpdatedPayload{
		PayoutID:      p.ID,
		RequestNumber: p.Number,
		InstructorID:  p.InstructorID,
		Amount:        int64(p.Amount),
		Status:        string(p.Status),
		Reason:        p.Reason,
	})
}

func (s *Service) GetPayout(ctx context.Context, id string) (payout.Request, error) {
	return s.store.GetPayout(ctx, id)
}

func (s *Service) ListPayouts(ctx context.Context, instructorID string) ([]payout.Request, error) {
	return s.store.ListPayouts(ctx, instructorID)
}
