package ledger

import (
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/money"
)

type Kind string

const (
	KindInstructor Kind = "instructor"
	KindPlatform   Kind = "platform"
)

type Bucket string

const (
	BucketAvailable Bucket = "available"
	BucketHold      Bucket = "hold"
)

type EntryType string

const (
	TypeSale        EntryType = "sale"
	TypeRefund      EntryType = "refund"
	TypePayout      EntryType = "payout"
	TypeSettlement  EntryType = "settlement"
	TypePlatformFee EntryType = "platform_fee"
	TypeAdjustment  EntryType = "adjustment"
	TypeCouponCost  EntryType = "coupon_cost"
)

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
	StatusCancelled EntryStatus = "cancelled"
)

// Reference types used in natural keys.
const (
	RefOrder     = "order"
	RefOrderItem = "order_item"
	RefPayout    = "payout"
	RefSale      = "sale_entry"
	RefRefund    = "refund"
)

// Wallet balances are caches of the entry log. They change only through this package.
type Wallet struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	Kind      Kind         `json:"kind"`
	Available money.Amount `json:"available"`
	Hold      money.Amount `json:"hold"`
	// Reserved is the sum of pending payout reservations. It is part of Available.
	Reserved       money.Amount `json:"reserved"`
	TotalEarnings  money.Amount `json:"total_earnings"`
	TotalWithdrawn money.Amount `json:"total_withdrawn"`
	Currency       string       `json:"currency"`
	IsActive       bool         `json:"is_active"`
	Frozen         bool         `json:"frozen"`
	// Version counts completed entries and doubles as their sequence number.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Spendable is what a new debit or payout may draw on.
func (w Wallet) Spendable() money.Amount { return w.Available - w.Reserved }

func (w Wallet) Balance(b Bucket) money.Amount {
	if b == BucketHold {
		return w.Hold
	}
	return w.Available
}

func (w *Wallet) setBalance(b Bucket, v money.Amount) {
	if b == BucketHold {
		w.Hold = v
		return
	}
	w.Available = v
}

type Entry struct {
	ID       string `json:"id"`
	WalletID string `json:"wallet_id"`
	// Seq orders completed entries of a wallet. Zero while pending.
	Seq           int64        `json:"seq"`
	Type          EntryType    `json:"type"`
	Status        EntryStatus  `json:"status"`
	Bucket        Bucket       `json:"bucket"`
	Amount        money.Amount `json:"amount"`
	BalanceBefore money.Amount `json:"balance_before"`
	BalanceAfter  money.Amount `json:"balance_after"`
	Reference     string       `json:"reference"`
	ReferenceType string       `json:"reference_type"`
	Description   string       `json:"description,omitempty"`

	// sale entries only
	SettlementEligibleAt *time.Time   `json:"settlement_eligible_at,omitempty"`
	SettledAt            *time.Time   `json:"settled_at,omitempty"`
	HoldReversed         money.Amount `json:"hold_reversed"`

	NeedsReconciliation bool      `json:"needs_reconciliation"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NaturalKey identifies one logical posting. Re-posting the same key is a no-op.
type NaturalKey struct {
	WalletID      string
	Reference     string
	ReferenceType string
	Type          EntryType
	Bucket        Bucket
}

func (e Entry) Key() NaturalKey {
	return NaturalKey{
		WalletID:      e.WalletID,
		Reference:     e.Reference,
		ReferenceType: e.ReferenceType,
		Type:          e.Type,
		Bucket:        e.Bucket,
	}
}

// Unsettled is the part of a sale still sitting in hold.
func (e Entry) Unsettled() money.Amount {
	if e.Type != TypeSale || e.SettledAt != nil {
		return 0
	}
	return e.Amount - e.HoldReversed
}
