// Package memory is an in-process store.Store.
//
// Row locks are per-key channels held until the transaction ends, so the
// locking discipline matches the PostgreSQL store. Writes are staged on the
// transaction and applied on commit; a failed transaction leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
	"github.com/ariefcatur/go-course-commerce/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu          sync.RWMutex
	wallets     map[string]ledger.Wallet // by owner id
	walletOwner map[string]string        // wallet id -> owner id
	entries     map[string]ledger.Entry
	entryKeys   map[ledger.NaturalKey]string
	walletLog   map[string][]string // wallet id -> entry ids in insertion order
	coupons     map[string]coupon.Coupon
	usages      []coupon.Usage
	orders      map[string]orders.Order
	payouts     map[string]payout.Request

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func New() *Store {
	return &Store{
		wallets:     map[string]ledger.Wallet{},
		walletOwner: map[string]string{},
		entries:     map[string]ledger.Entry{},
		entryKeys:   map[ledger.NaturalKey]string{},
		walletLog:   map[string][]string{},
		coupons:     map[string]coupon.Coupon{},
		orders:      map[string]orders.Order{},
		payouts:     map[string]payout.Request{},
		locks:       map[string]chan struct{}{},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	t := newTx(s)
	defer t.release()
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) rowLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) CreateCoupon(_ context.Context, c coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[c.Code]; ok {
		return fmt.Errorf("coupon %s: %w", c.Code, errs.ErrAlreadyExists)
	}
	s.coupons[c.Code] = c
	return nil
}

func (s *Store) GetCoupon(_ context.Context, code string) (coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[code]
	if !ok {
		return coupon.Coupon{}, fmt.Errorf("coupon %s: %w", code, errs.ErrNotFound)
	}
	return c, nil
}

func (s *Store) CountCouponUsage(_ context.Context, couponID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countUsage(s.usages, couponID, userID), nil
}

func countUsage(us []coupon.Usage, couponID, userID string) int {
	n := 0
	for _, u := range us {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, errs.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *Store) GetPayout(_ context.Context, id string) (payout.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[id]
	if !ok {
		return payout.Request{}, fmt.Errorf("payout %s: %w", id, errs.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPayouts(_ context.Context, instructorID string) ([]payout.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payout.Request
	for _, p := range s.payouts {
		if p.InstructorID == instructorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) GetWallet(_ context.Context, ownerID string) (ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[ownerID]
	if !ok {
		return ledger.Wallet{}, fmt.Errorf("wallet %s: %w", ownerID, errs.ErrNotFound)
	}
	return w, nil
}

func (s *Store) ListEntries(_ context.Context, walletID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Entry, 0, len(s.walletLog[walletID]))
	for _, id := range s.walletLog[walletID] {
		out = append(out, s.entries[id])
	}
	sortEntries(out)
	return out, nil
}

// sortEntries puts completed entries first by Seq, then the rest by creation.
func sortEntries(es []ledger.Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if (a.Seq == 0) != (b.Seq == 0) {
			return a.Seq != 0
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (s *Store) ListDueSales(_ context.Context, asOf time.Time, limit int) ([]store.DueSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.DueSale
	for _, e := range s.entries {
		if e.Type != ledger.TypeSale || e.Bucket != ledger.BucketHold || e.Status != ledger.StatusCompleted {
			continue
		}
		if e.SettledAt != nil || e.SettlementEligibleAt == nil || e.SettlementEligibleAt.After(asOf) {
			continue
		}
		owner := s.walletOwner[e.WalletID]
		if s.wallets[owner].Frozen {
			continue
		}
		out = append(out, store.DueSale{Entry: e, OwnerID: owner})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entry.SettlementEligibleAt.Before(*out[j].Entry.SettlementEligibleAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FreezeWallet(ctx context.Context, ownerID string) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		w, err := tx.LockWallet(ctx, ownerID)
		if err != nil {
			return err
		}
		w.Frozen = true
		return tx.SaveWallet(ctx, w)
	})
}

func (s *Store) Migrate(context.Context) error { return nil }
func (s *Store) Ping(context.Context) error    { return nil }
func (s *Store) Close() error                  { return nil }
