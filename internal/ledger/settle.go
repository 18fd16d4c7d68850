package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/money"
)

// Settle moves what is left of a held sale into available and marks the sale
// settled. ok is false when the sale had already been settled.
func Settle(ctx context.Context, tx Tx, w *Wallet, saleID string, now time.Time) (moved money.Amount, ok bool, err error) {
	sale, err := ownEntry(ctx, tx, w, saleID)
	if err != nil {
		return 0, false, err
	}
	if sale.Type != TypeSale || sale.Bucket != BucketHold || sale.Status != StatusCompleted {
		return 0, false, errs.Invalid("entry", fmt.Sprintf("%s is not a held sale", sale.ID))
	}
	if sale.SettledAt != nil {
		return 0, false, nil
	}
	x := sale.Unsettled()
	if x > 0 {
		for _, p := range []Posting{
			{Type: TypeSettlement, Bucket: BucketHold, Amount: -x},
			{Type: TypeSettlement, Bucket: BucketAvailable, Amount: x},
		} {
			p.Reference, p.ReferenceType = sale.ID, RefSale
			p.Description = "settlement of " + sale.Reference
			if _, err := Post(ctx, tx, w, p, now); err != nil {
				return 0, false, fmt.Errorf("settle %s: %w", sale.ID, err)
			}
		}
	}
	sale.SettledAt = &now
	sale.UpdatedAt = now
	if err := tx.SaveEntry(ctx, sale); err != nil {
		return 0, false, err
	}
	return x, true, nil
}

// ReverseHold takes amount back out of a sale that has not settled yet.
func ReverseHold(ctx context.Context, tx Tx, w *Wallet, saleID string, amount money.Amount, description string, now time.Time) error {
	sale, err := ownEntry(ctx, tx, w, saleID)
	if err != nil {
		return err
	}
	if sale.SettledAt != nil {
		return fmt.Errorf("sale %s already settled: %w", sale.ID, errs.ErrInvalidStateTransition)
	}
	if amount <= 0 || amount > sale.Unsettled() {
		return errs.Invalid("amount", fmt.Sprintf("reversal %d outside held %d", amount, sale.Unsettled()))
	}
	if _, err := Post(ctx, tx, w, Posting{
		Type:          TypeRefund,
		Bucket:        BucketHold,
		Amount:        -amount,
		Reference:     sale.Reference,
		ReferenceType: sale.ReferenceType,
		Description:   description,
	}, now); err != nil {
		return err
	}
	sale.HoldReversed += amount
	sale.UpdatedAt = now
	return tx.SaveEntry(ctx, sale)
}
