package commerce

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"go.opentelemetry.io/otel/attribute"
)

// Balance is a wallet as the owner sees it. Available already excludes
// amounts reserved by pending payouts.
type Balance struct {
	OwnerID        string       `json:"owner_id"`
	Available      money.Amount `json:"available"`
	Hold           money.Amount `json:"hold"`
	Reserved       money.Amount `json:"reserved"`
	TotalEarnings  money.Amount `json:"total_earnings"`
	TotalWithdrawn money.Amount `json:"total_withdrawn"`
	Currency       string       `json:"currency"`
	Frozen         bool         `json:"frozen"`
}

// GetWalletBalance reports an owner's balances. An owner with no wallet yet
// has zero balances.
func (s *Service) GetWalletBalance(ctx context.Context, ownerID string) (Balance, error) {
	if ownerID == "" {
		return Balance{}, errs.Invalid("owner_id", "required")
	}
	w, err := s.store.GetWallet(ctx, ownerID)
	if errors.Is(err, errs.ErrNotFound) {
		return Balance{OwnerID: ownerID, Currency: s.policy.Currency}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		OwnerID:        w.OwnerID,
		Available:      w.Spendable(),
		Hold:           w.Hold,
		Reserved:       w.Reserved,
		TotalEarnings:  w.TotalEarnings,
		TotalWithdrawn: w.TotalWithdrawn,
		Currency:       w.Currency,
		Frozen:         w.Frozen,
	}, nil
}

func (s *Service) ListWalletEntries(ctx context.Context, ownerID string) ([]ledger.Entry, error) {
	w, err := s.store.GetWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, w.ID)
}

// VerifyWallet replays the owner's ledger against the cached balances and
// freezes the wallet on a mismatch.
func (s *Service) VerifyWallet(ctx context.Context, ownerID string) (err error) {
	ctx, done := s.begin(ctx, "verify_wallet", attribute.String("owner.id", ownerID))
	defer func() { done(err) }()

	w, err := s.store.GetWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	entries, err := s.store.ListEntries(ctx, w.ID)
	if err != nil {
		return err
	}
	if err := ledger.Verify(w, entries); err != nil {
		s.freezeOnIntegrity(ctx, err)
		return err
	}
	return nil
}
