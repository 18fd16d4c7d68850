package postgres

import (
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
)

var (
	walletColumns = []string{
		"id", "owner_id", "kind", "available", "hold", "reserved", "total_earnings",
		"total_withdrawn", "currency", "is_active", "frozen", "version", "created_at", "updated_at",
	}
	entryColumns = []string{
		"id", "wallet_id", "seq", "type", "status", "bucket", "amount", "balance_before",
		"balance_after", "reference", "reference_type", "description", "settlement_eligible_at",
		"settled_at", "hold_reversed", "needs_reconciliation", "created_at", "updated_at",
	}
	couponColumns = []string{
		"id", "code", "type", "value", "min_order_amount", "max_discount_amount", "usage_limit",
		"usage_per_user", "applicable_course_id", "applicable_instructor_id", "issuer",
		"valid_from", "valid_to", "is_active", "used_count", "created_at", "updated_at",
	}
	orderColumns = []string{
		"id", "number", "user_id", "status", "subtotal", "instructor_discount", "platform_discount",
		"total_discount", "total_amount", "discount_clamped", "refunded_amount", "currency",
		"payment_reference", "failure_reason", "coupons", "paid_at", "created_at", "updated_at",
	}
	itemColumns = []string{
		"id", "order_id", "course_id", "instructor_id", "original_price", "instructor_discount",
		"unit_price", "fee_bps", "platform_fee", "instructor_earnings", "instructor_coupon",
	}
	payoutColumns = []string{
		"id", "number", "instructor_id", "wallet_id", "amount", "status", "bank_name",
		"account_number", "account_holder", "entry_id", "reason", "requested_at", "approved_at",
		"processing_at", "completed_at", "rejected_at", "failed_at", "updated_at",
	}
)

// cols renders a column list, optionally qualified by a table alias.
func cols(columns []string, alias string) string {
	if alias == "" {
		return strings.Join(columns, ", ")
	}
	q := make([]string, len(columns))
	for i, c := range columns {
		q[i] = alias + "." + c
	}
	return strings.Join(q, ", ")
}

// placeholders renders "$from, ..., $from+n-1".
func placeholders(from, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(from + i))
	}
	return b.String()
}

func insertSQL(table string, columns []string) string {
	return "INSERT INTO " + table + " (" + cols(columns, "") + ") VALUES (" + placeholders(1, len(columns)) + ")"
}

func scanWallet(row scanner) (ledger.Wallet, error) {
	var w ledger.Wallet
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Kind, &w.Available, &w.Hold, &w.Reserved, &w.TotalEarnings,
		&w.TotalWithdrawn, &w.Currency, &w.IsActive, &w.Frozen, &w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

func walletArgs(w ledger.Wallet) []any {
	return []any{
		w.ID, w.OwnerID, w.Kind, w.Available, w.Hold, w.Reserved, w.TotalEarnings,
		w.TotalWithdrawn, w.Currency, w.IsActive, w.Frozen, w.Version, w.CreatedAt, w.UpdatedAt,
	}
}

func scanEntry(row scanner, extra ...any) (ledger.Entry, error) {
	var e ledger.Entry
	dest := []any{
		&e.ID, &e.WalletID, &e.Seq, &e.Type, &e.Status, &e.Bucket, &e.Amount, &e.BalanceBefore,
		&e.BalanceAfter, &e.Reference, &e.ReferenceType, &e.Description, &e.SettlementEligibleAt,
		&e.SettledAt, &e.HoldReversed, &e.NeedsReconciliation, &e.CreatedAt, &e.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return e, err
}

func entryArgs(e ledger.Entry) []any {
	return []any{
		e.ID, e.WalletID, e.Seq, e.Type, e.Status, e.Bucket, e.Amount, e.BalanceBefore,
		e.BalanceAfter, e.Reference, e.ReferenceType, e.Description, e.SettlementEligibleAt,
		e.SettledAt, e.HoldReversed, e.NeedsReconciliation, e.CreatedAt, e.UpdatedAt,
	}
}

func scanCoupon(row scanner) (coupon.Coupon, error) {
	var (
		c        coupon.Coupon
		from, to *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.MinOrderAmount, &c.MaxDiscountAmount, &c.UsageLimit,
		&c.UsagePerUser, &c.ApplicableCourseID, &c.ApplicableInstructorID, &c.Issuer,
		&from, &to, &c.IsActive, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	c.ValidFrom, c.ValidTo = derefTime(from), derefTime(to)
	return c, err
}

func couponArgs(c coupon.Coupon) []any {
	return []any{
		c.ID, c.Code, c.Type, c.Value, c.MinOrderAmount, c.MaxDiscountAmount, c.UsageLimit,
		c.UsagePerUser, c.ApplicableCourseID, c.ApplicableInstructorID, c.Issuer,
		nullTime(c.ValidFrom), nullTime(c.ValidTo), c.IsActive, c.UsedCount, c.CreatedAt, c.UpdatedAt,
	}
}

func scanOrder(row scanner) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.Status, &o.Subtotal, &o.InstructorDiscount, &o.PlatformDiscount,
		&o.TotalDiscount, &o.TotalAmount, &o.DiscountClamped, &o.RefundedAmount, &o.Currency,
		&o.PaymentReference, &o.FailureReason, &o.Coupons, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func orderArgs(o orders.Order) []any {
	applied := o.Coupons
	if applied == nil {
		applied = []orders.AppliedCoupon{}
	}
	return []any{
		o.ID, o.Number, o.UserID, o.Status, o.Subtotal, o.InstructorDiscount, o.PlatformDiscount,
		o.TotalDiscount, o.TotalAmount, o.DiscountClamped, o.RefundedAmount, o.Currency,
		o.PaymentReference, o.FailureReason, applied, o.PaidAt, o.CreatedAt, o.UpdatedAt,
	}
}

func scanItem(row scanner) (orders.Item, error) {
	var it orders.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.CourseID, &it.InstructorID, &it.OriginalPrice, &it.InstructorDiscount,
		&it.UnitPrice, &it.FeeBps, &it.PlatformFee, &it.InstructorEarnings, &it.InstructorCoupon,
	)
	return it, err
}

func itemArgs(it orders.Item) []any {
	return []any{
		it.ID, it.OrderID, it.CourseID, it.InstructorID, it.OriginalPrice, it.InstructorDiscount,
		it.UnitPrice, it.FeeBps, it.PlatformFee, it.InstructorEarnings, it.InstructorCoupon,
	}
}

func scanPayout(row scanner) (payout.Request, error) {
	var p payout.Request
	err := row.Scan(
		&p.ID, &p.Number, &p.InstructorID, &p.WalletID, &p.Amount, &p.Status, &p.Bank.BankName,
		&p.Bank.AccountNumber, &p.Bank.AccountHolder, &p.EntryID, &p.Reason, &p.RequestedAt, &p.ApprovedAt,
		&p.ProcessingAt, &p.CompletedAt, &p.RejectedAt, &p.FailedAt, &p.UpdatedAt,
	)
	return p, err
}

func payoutArgs(p payout.Request) []any {
	return []any{
		p.ID, p.Number, p.InstructorID, p.WalletID, p.Amount, p.Status, p.Bank.BankName,
		p.Bank.AccountNumber, p.Bank.AccountHolder, p.EntryID, p.Reason, p.RequestedAt, p.ApprovedAt,
		p.ProcessingAt, p.CompletedAt, p.RejectedAt, p.FailedAt, p.UpdatedAt,
	}
}
