package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"github.com/jackc/pgx/v5"
)

var _ store.Tx = (*pgTx)(nil)

type pgTx struct {
	tx pgx.Tx
}

// mustAffect turns an UPDATE that matched nothing into ErrNotFound.
func mustAffect(n int64, what, id string) error {
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, errs.ErrNotFound)
	}
	return nil
}

func (t *pgTx) LockWallet(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+cols(walletColumns, "")+` FROM wallets WHERE owner_id=$1 FOR UPDATE`, ownerID))
	if err != nil {
		return ledger.Wallet{}, notFound(err, "wallet", ownerID)
	}
	return w, nil
}

func (t *pgTx) CreateWallet(ctx context.Context, w ledger.Wallet) error {
	_, err := t.tx.Exec(ctx,
		insertSQL("wallets", walletColumns)+` ON CONFLICT (owner_id) DO NOTHING`, walletArgs(w)...)
	return mapErr(err)
}

func (t *pgTx) SaveWallet(ctx context.Context, w ledger.Wallet) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallets SET
			available=$2, hold=$3, reserved=$4, total_earnings=$5, total_withdrawn=$6,
			is_active=$7, frozen=$8, version=$9, updated_at=$10
		WHERE id=$1`,
		w.ID, w.Available, w.Hold, w.Reserved, w.TotalEarnings, w.TotalWithdrawn,
		w.IsActive, w.Frozen, w.Version, w.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(tag.RowsAffected(), "wallet", w.ID)
}

func (t *pgTx) InsertEntry(ctx context.Context, e ledger.Entry) error {
	_, err := t.tx.Exec(ctx, insertSQL("ledger_entries", entryColumns), entryArgs(e)...)
	return mapErr(err)
}

func (t *pgTx) SaveEntry(ctx context.Context, e ledger.Entry) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE ledger_entries SET
			seq=$2, status=$3, balance_before=$4, balance_after=$5, settled_at=$6,
			hold_reversed=$7, needs_reconciliation=$8, description=$9, updated_at=$10
		WHERE id=$1`,
		e.ID, e.Seq, e.Status, e.BalanceBefore, e.BalanceAfter, e.SettledAt,
		e.HoldReversed, e.NeedsReconciliation, e.Description, e.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(tag.RowsAffected(), "entry", e.ID)
}

func (t *pgTx) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx,
		`SELECT `+cols(entryColumns, "")+` FROM ledger_entries WHERE id=$1`, id))
	if err != nil {
		return ledger.Entry{}, notFound(err, "entry", id)
	}
	return e, nil
}

func (t *pgTx) FindEntry(ctx context.Context, k ledger.NaturalKey) (ledger.Entry, bool, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx,
		`SELECT `+cols(entryColumns, "")+` FROM ledger_entries
		 WHERE wallet_id=$1 AND reference=$2 AND reference_type=$3 AND type=$4 AND bucket=$5`,
		k.WalletID, k.Reference, k.ReferenceType, k.Type, k.Bucket))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, mapErr(err)
	}
	return e, true, nil
}

func (t *pgTx) LastEntry(ctx context.Context, walletID string, b ledger.Bucket) (ledger.Entry, bool, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx,
		`SELECT `+cols(entryColumns, "")+` FROM ledger_entries
		 WHERE wallet_id=$1 AND bucket=$2 AND status='completed' AND seq > 0
		 ORDER BY seq DESC LIMIT 1`, walletID, b))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, mapErr(err)
	}
	return e, true, nil
}

func (t *pgTx) LockCoupon(ctx context.Context, code string) (coupon.Coupon, error) {
	c, err := scanCoupon(t.tx.QueryRow(ctx,
		`SELECT `+cols(couponColumns, "")+` FROM coupons WHERE code=$1 FOR UPDATE`, code))
	if err != nil {
		return coupon.Coupon{}, notFound(err, "coupon", code)
	}
	return c, nil
}

func (t *pgTx) SaveCoupon(ctx context.Context, c coupon.Coupon) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE coupons SET used_count=$2, is_active=$3, updated_at=$4 WHERE id=$1`,
		c.ID, c.UsedCount, c.IsActive, c.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(tag.RowsAffected(), "coupon", c.Code)
}

func (t *pgTx) CountCouponUsage(ctx context.Context, couponID, userID string) (int, error) {
	return countUsage(ctx, t.tx, couponID, userID)
}

func (t *pgTx) InsertCouponUsage(ctx context.Context, u coupon.Usage) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO coupon_usages (id, coupon_id, coupon_code, user_id, order_id, discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.CouponID, u.CouponCode, u.UserID, u.OrderID, u.Discount, u.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) InsertOrder(ctx context.Context, o orders.Order) error {
	if _, err := t.tx.Exec(ctx, insertSQL("orders", orderColumns), orderArgs(o)...); err != nil {
		return mapErr(err)
	}
	itemSQL := insertSQL("order_items", append(append([]string(nil), itemColumns...), "position"))
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(itemSQL, append(itemArgs(it), i)...)
	}
	return mapErr(t.tx.SendBatch(ctx, batch).Close())
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return loadOrder(ctx, t.tx, id, true)
}

func (t *pgTx) SaveOrder(ctx context.Context, o orders.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET
			status=$2, refunded_amount=$3, payment_reference=$4, failure_reason=$5,
			paid_at=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, o.Status, o.RefundedAmount, o.PaymentReference, o.FailureReason, o.PaidAt, o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(tag.RowsAffected(), "order", o.ID)
}

func (t *pgTx) InsertPayout(ctx context.Context, p payout.Request) error {
	_, err := t.tx.Exec(ctx, insertSQL("payouts", payoutColumns), payoutArgs(p)...)
	return mapErr(err)
}

func (t *pgTx) LockPayout(ctx context.Context, id string) (payout.Request, error) {
	p, err := scanPayout(t.tx.QueryRow(ctx,
		`SELECT `+cols(payoutColumns, "")+` FROM payouts WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return payout.Request{}, notFound(err, "payout", id)
	}
	return p, nil
}

func (t *pgTx) SavePayout(ctx context.Context, p payout.Request) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payouts SET
			status=$2, reason=$3, approved_at=$4, processing_at=$5, completed_at=$6,
			rejected_at=$7, failed_at=$8, updated_at=$9
		WHERE id=$1`,
		p.ID, p.Status, p.Reason, p.ApprovedAt, p.ProcessingAt, p.CompletedAt,
		p.RejectedAt, p.FailedAt, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(tag.RowsAffected(), "payout", p.ID)
}
