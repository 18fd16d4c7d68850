// Package store declares the persistence contract of the commerce core.
// postgres.Store is the production implementation and memory.Store backs tests.
package store

import (
	"context"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
)

// Tx is one atomic unit of work. Lock* methods hold the row until commit or
// rollback; callers take locks in the order order/payout, coupons by code,
// wallets by owner id.
type Tx interface {
	ledger.Tx

	LockCoupon(ctx context.Context, code string) (coupon.Coupon, error)
	SaveCoupon(ctx context.Context, c coupon.Coupon) error
	CountCouponUsage(ctx context.Context, couponID, userID string) (int, error)
	// InsertCouponUsage fails with errs.ErrAlreadyExists for a repeated (coupon, order).
	InsertCouponUsage(ctx context.Context, u coupon.Usage) error

	InsertOrder(ctx context.Context, o orders.Order) error
	LockOrder(ctx context.Context, id string) (orders.Order, error)
	SaveOrder(ctx context.Context, o orders.Order) error

	InsertPayout(ctx context.Context, p payout.Request) error
	LockPayout(ctx context.Context, id string) (payout.Request, error)
	SavePayout(ctx context.Context, p payout.Request) error
}

// DueSale is a held sale whose holding period has passed.
type DueSale struct {
	Entry   ledger.Entry
	OwnerID string
}

type Store interface {
	// InTx runs fn in a transaction, committing if it returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateCoupon(ctx context.Context, c coupon.Coupon) error
	GetCoupon(ctx context.Context, code string) (coupon.Coupon, error)
	CountCouponUsage(ctx context.Context, couponID, userID string) (int, error)

	GetOrder(ctx context.Context, id string) (orders.Order, error)
	GetPayout(ctx context.Context, id string) (payout.Request, error)
	ListPayouts(ctx context.Context, instructorID string) ([]payout.Request, error)

	GetWallet(ctx context.Context, ownerID string) (ledger.Wallet, error)
	// ListEntries returns completed entries by Seq followed by the rest by creation time.
	ListEntries(ctx context.Context, walletID string) ([]ledger.Entry, error)
	// ListDueSales returns unsettled held sales eligible at or before asOf,
	// oldest first, skipping frozen wallets.
	ListDueSales(ctx context.Context, asOf time.Time, limit int) ([]DueSale, error)

	// FreezeWallet marks the wallet frozen in its own transaction.
	FreezeWallet(ctx context.Context, ownerID string) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
