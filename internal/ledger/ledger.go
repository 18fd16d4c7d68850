// Package ledger is the append-only entry log behind every wallet balance.
//
// All functions here run inside a caller-owned transaction and expect the
// wallet to be row-locked through Tx.LockWallet (or Open) first. The wallet
// value passed in is mutated and persisted together with the entry it
// produces, so the cached balance and the log never disagree on commit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/google/uuid"
)

// Tx is the storage a posting needs. Implementations hold row locks until commit.
type Tx interface {
	// LockWallet loads the owner's wallet and locks its row. errs.ErrNotFound if absent.
	LockWallet(ctx context.Context, ownerID string) (Wallet, error)
	// CreateWallet inserts w unless the owner already has one.
	CreateWallet(ctx context.Context, w Wallet) error
	SaveWallet(ctx context.Context, w Wallet) error

	InsertEntry(ctx context.Context, e Entry) error
	SaveEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	FindEntry(ctx context.Context, k NaturalKey) (Entry, bool, error)
	// LastEntry returns the completed entry with the highest Seq in the bucket.
	LastEntry(ctx context.Context, walletID string, b Bucket) (Entry, bool, error)
}

// IntegrityError means a wallet's cached balance no longer matches its log.
type IntegrityError struct {
	WalletID string
	OwnerID  string
	Detail   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: wallet %s (owner %s): %s", errs.ErrLedgerIntegrity, e.WalletID, e.OwnerID, e.Detail)
}

func (e *IntegrityError) Unwrap() error { return errs.ErrLedgerIntegrity }

// Posting describes one balance change.
type Posting struct {
	Type          EntryType
	Bucket        Bucket
	Amount        money.Amount
	Reference     string
	ReferenceType string
	Description   string
	EligibleAt    *time.Time
}

// Open locks the owner's wallet, creating it on first use.
func Open(ctx context.Context, tx Tx, ownerID string, kind Kind, currency string, now time.Time) (Wallet, error) {
	w, err := tx.LockWallet(ctx, ownerID)
	if errors.Is(err, errs.ErrNotFound) {
		if err := tx.CreateWallet(ctx, Wallet{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Kind:      kind,
			Currency:  currency,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return Wallet{}, fmt.Errorf("create wallet: %w", err)
		}
		w, err = tx.LockWallet(ctx, ownerID)
	}
	if err != nil {
		return Wallet{}, err
	}
	if w.Kind != kind {
		return Wallet{}, errs.Invalid("wallet", fmt.Sprintf("owner %s has a %s wallet, not %s", ownerID, w.Kind, kind))
	}
	return w, nil
}

// SortOwners returns the owners deduplicated in lock order.
func SortOwners(owners []string) []string {
	out := slices.Clone(owners)
	slices.Sort(out)
	return slices.Compact(out)
}

// Post appends one completed entry and updates the wallet balance.
// An entry already recorded under the same natural key is returned unchanged.
func Post(ctx context.Context, tx Tx, w *Wallet, p Posting, now time.Time) (Entry, error) {
	if p.Amount == 0 {
		return Entry{}, errs.Invalid("amount", "must not be zero")
	}
	if p.Bucket == BucketHold && w.Kind == KindPlatform {
		return Entry{}, errs.Invalid("bucket", "platform wallet has no hold balance")
	}
	if p.Reference == "" || p.ReferenceType == "" {
		return Entry{}, errs.Invalid("reference", "required")
	}
	if w.Frozen {
		return Entry{}, fmt.Errorf("wallet %s: %w", w.OwnerID, errs.ErrWalletFrozen)
	}
	key := NaturalKey{WalletID: w.ID, Reference: p.Reference, ReferenceType: p.ReferenceType, Type: p.Type, Bucket: p.Bucket}
	if existing, ok, err := tx.FindEntry(ctx, key); err != nil {
		return Entry{}, err
	} else if ok {
		return existing, nil
	}

	e := Entry{
		ID:                   uuid.NewString(),
		WalletID:             w.ID,
		Type:                 p.Type,
		Status:               StatusPending,
		Bucket:               p.Bucket,
		Amount:               p.Amount,
		Reference:            p.Reference,
		ReferenceType:        p.ReferenceType,
		Description:          p.Description,
		SettlementEligibleAt: p.EligibleAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := apply(ctx, tx, w, &e, now); err != nil {
		return Entry{}, err
	}
	if err := tx.InsertEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	if err := tx.SaveWallet(ctx, *w); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// apply completes e against w: checks the bucket tail, stamps before/after and Seq.
func apply(ctx context.Context, tx Tx, w *Wallet, e *Entry, now time.Time) error {
	before := w.Balance(e.Bucket)
	last, ok, err := tx.LastEntry(ctx, w.ID, e.Bucket)
	if err != nil {
		return err
	}
	switch {
	case ok && last.BalanceAfter != before:
		return &IntegrityError{WalletID: w.ID, OwnerID: w.OwnerID,
			Detail: fmt.Sprintf("%s tail %d != cached %d", e.Bucket, last.BalanceAfter, before)}
	case !ok && before != 0:
		return &IntegrityError{WalletID: w.ID, OwnerID: w.OwnerID,
			Detail: fmt.Sprintf("%s has no entries but cached %d", e.Bucket, before)}
	}

	after := before + e.Amount
	floor := money.Amount(0)
	if e.Bucket == BucketAvailable {
		floor = w.Reserved
	}
	if e.Amount < 0 && after < floor {
		return fmt.Errorf("wallet %s %s: need %d, have %d: %w",
			w.OwnerID, e.Bucket, -e.Amount, before-floor, errs.ErrInsufficientFunds)
	}

	w.Version++
	w.setBalance(e.Bucket, after)
	switch e.Type {
	case TypeSale, TypePlatformFee, TypeCouponCost, TypeRefund:
		w.TotalEarnings += e.Amount
	case TypePayout:
		w.TotalWithdrawn -= e.Amount
	}
	w.UpdatedAt = now

	e.Seq = w.Version
	e.BalanceBefore = before
	e.BalanceAfter = after
	e.Status = StatusCompleted
	e.UpdatedAt = now
	return nil
}

// DebitOrOwe debits what the wallet can spend and records the rest as a pending
// adjustment flagged for reconciliation. p.Amount must be negative.
func DebitOrOwe(ctx context.Context, tx Tx, w *Wallet, p Posting, now time.Time) (posted, owed money.Amount, err error) {
	if p.Amount >= 0 {
		return 0, 0, errs.Invalid("amount", "debit must be negative")
	}
	want := -p.Amount
	room := w.Balance(p.Bucket)
	if p.Bucket == BucketAvailable {
		room = w.Spendable()
	}
	take := money.Max(0, money.Min(want, room))
	if take > 0 {
		dp := p
		dp.Amount = -take
		if _, err := Post(ctx, tx, w, dp, now); err != nil {
			return 0, 0, err
		}
	}
	if short := want - take; short > 0 {
		if _, err := Owe(ctx, tx, w, Posting{
			Type:          TypeAdjustment,
			Bucket:        p.Bucket,
			Amount:        -short,
			Reference:     p.Reference,
			ReferenceType: p.ReferenceType,
			Description:   "shortfall: " + p.Description,
		}, now); err != nil {
			return 0, 0, err
		}
		return take, short, nil
	}
	return take, 0, nil
}

// Owe records a pending, balance-neutral liability for manual reconciliation.
func Owe(ctx context.Context, tx Tx, w *Wallet, p Posting, now time.Time) (Entry, error) {
	if p.Amount == 0 {
		return Entry{}, errs.Invalid("amount", "must not be zero")
	}
	key := NaturalKey{WalletID: w.ID, Reference: p.Reference, ReferenceType: p.ReferenceType, Type: p.Type, Bucket: p.Bucket}
	if existing, ok, err := tx.FindEntry(ctx, key); err != nil {
		return Entry{}, err
	} else if ok {
		return existing, nil
	}
	e := Entry{
		ID:                  uuid.NewString(),
		WalletID:            w.ID,
		Type:                p.Type,
		Status:              StatusPending,
		Bucket:              p.Bucket,
		Amount:              p.Amount,
		Reference:           p.Reference,
		ReferenceType:       p.ReferenceType,
		Description:         p.Description,
		NeedsReconciliation: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return e, tx.InsertEntry(ctx, e)
}

// Reserve earmarks amount of the available balance for a payout as a pending
// entry. The balance itself moves only when the entry completes.
func Reserve(ctx context.Context, tx Tx, w *Wallet, amount money.Amount, payoutID, description string, now time.Time) (Entry, error) {
	if amount <= 0 {
		return Entry{}, errs.Invalid("amount", "must be positive")
	}
	if w.Frozen {
		return Entry{}, fmt.Errorf("wallet %s: %w", w.OwnerID, errs.ErrWalletFrozen)
	}
	key := NaturalKey{WalletID: w.ID, Reference: payoutID, ReferenceType: RefPayout, Type: TypePayout, Bucket: BucketAvailable}
	if existing, ok, err := tx.FindEntry(ctx, key); err != nil {
		return Entry{}, err
	} else if ok {
		return existing, nil
	}
	if w.Spendable() < amount {
		return Entry{}, fmt.Errorf("wallet %s: requested %d, spendable %d: %w",
			w.OwnerID, amount, w.Spendable(), errs.ErrInsufficientFunds)
	}
	e := Entry{
		ID:            uuid.NewString(),
		WalletID:      w.ID,
		Type:          TypePayout,
		Status:        StatusPending,
		Bucket:        BucketAvailable,
		Amount:        -amount,
		Reference:     payoutID,
		ReferenceType: RefPayout,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	w.Reserved += amount
	w.UpdatedAt = now
	if err := tx.InsertEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	if err := tx.SaveWallet(ctx, *w); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Complete turns a pending entry into a completed posting.
func Complete(ctx context.Context, tx Tx, w *Wallet, entryID string, now time.Time) (Entry, error) {
	e, err := ownEntry(ctx, tx, w, entryID)
	if err != nil {
		return Entry{}, err
	}
	switch e.Status {
	case StatusCompleted:
		return e, nil
	case StatusPending:
	default:
		return Entry{}, fmt.Errorf("entry %s is %s: %w", e.ID, e.Status, errs.ErrInvalidStateTransition)
	}
	if w.Frozen {
		return Entry{}, fmt.Errorf("wallet %s: %w", w.OwnerID, errs.ErrWalletFrozen)
	}
	if e.Type == TypePayout {
		w.Reserved += e.Amount // amount is negative
	}
	if err := apply(ctx, tx, w, &e, now); err != nil {
		return Entry{}, err
	}
	e.NeedsReconciliation = false
	if err := tx.SaveEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	if err := tx.SaveWallet(ctx, *w); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Release closes a pending entry without moving money. status is
// StatusCancelled or StatusFailed.
func Release(ctx context.Context, tx Tx, w *Wallet, entryID string, status EntryStatus, now time.Time) (Entry, error) {
	if status != StatusCancelled && status != StatusFailed {
		return Entry{}, errs.Invalid("status", "release must cancel or fail")
	}
	e, err := ownEntry(ctx, tx, w, entryID)
	if err != nil {
		return Entry{}, err
	}
	if e.Status == status {
		return e, nil
	}
	if e.Status != StatusPending {
		return Entry{}, fmt.Errorf("entry %s is %s: %w", e.ID, e.Status, errs.ErrInvalidStateTransition)
	}
	if e.Type == TypePayout {
		w.Reserved += e.Amount
		w.UpdatedAt = now
	}
	e.Status = status
	e.UpdatedAt = now
	if err := tx.SaveEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	if err := tx.SaveWallet(ctx, *w); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func ownEntry(ctx context.Context, tx Tx, w *Wallet, entryID string) (Entry, error) {
	e, err := tx.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if e.WalletID != w.ID {
		return Entry{}, errs.Invalid("entry", "does not belong to wallet")
	}
	return e, nil
}
