package memory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
)

type tx struct {
	s    *Store
	held []chan struct{}
	keys map[string]bool

	wallets map[string]ledger.Wallet
	entries map[string]ledger.Entry
	newIDs  []string
	coupons map[string]coupon.Coupon
	usages  []coupon.Usage
	orders  map[string]orders.Order
	payouts map[string]payout.Request
}

func newTx(s *Store) *tx {
	return &tx{
		s:       s,
		keys:    map[string]bool{},
		wallets: map[string]ledger.Wallet{},
		entries: map[string]ledger.Entry{},
		coupons: map[string]coupon.Coupon{},
		orders:  map[string]orders.Order{},
		payouts: map[string]payout.Request{},
	}
}

// lock takes the row lock for key, once per transaction.
func (t *tx) lock(ctx context.Context, key string) error {
	if t.keys[key] {
		return nil
	}
	ch := t.s.rowLock(key)
	select {
	case ch <- struct{}{}:
		t.keys[key] = true
		t.held = append(t.held, ch)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock %s: %v: %w", key, ctx.Err(), errs.ErrConcurrencyConflict)
	}
}

func (t *tx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.held[i]
	}
	t.held = nil
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, w := range t.wallets {
		s.wallets[owner] = w
		s.walletOwner[w.ID] = owner
	}
	for _, id := range t.newIDs {
		e := t.entries[id]
		s.walletLog[e.WalletID] = append(s.walletLog[e.WalletID], id)
		s.entryKeys[e.Key()] = id
	}
	for id, e := range t.entries {
		s.entries[id] = e
	}
	for code, c := range t.coupons {
		s.coupons[code] = c
	}
	s.usages = append(s.usages, t.usages...)
	for id, o := range t.orders {
		s.orders[id] = o
	}
	for id, p := range t.payouts {
		s.payouts[id] = p
	}
}

func (t *tx) LockWallet(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	if err := t.lock(ctx, "wallet:"+ownerID); err != nil {
		return ledger.Wallet{}, err
	}
	if w, ok := t.wallets[ownerID]; ok {
		return w, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	w, ok := t.s.wallets[ownerID]
	if !ok {
		return ledger.Wallet{}, fmt.Errorf("wallet %s: %w", ownerID, errs.ErrNotFound)
	}
	return w, nil
}

func (t *tx) CreateWallet(ctx context.Context, w ledger.Wallet) error {
	if err := t.lock(ctx, "wallet:"+w.OwnerID); err != nil {
		return err
	}
	if _, err := t.LockWallet(ctx, w.OwnerID); err == nil {
		return nil
	}
	t.wallets[w.OwnerID] = w
	return nil
}

func (t *tx) SaveWallet(_ context.Context, w ledger.Wallet) error {
	t.wallets[w.OwnerID] = w
	return nil
}

func (t *tx) InsertEntry(_ context.Context, e ledger.Entry) error {
	if _, ok, _ := t.FindEntry(context.Background(), e.Key()); ok {
		return fmt.Errorf("entry %v: %w", e.Key(), errs.ErrAlreadyExists)
	}
	t.entries[e.ID] = e
	t.newIDs = append(t.newIDs, e.ID)
	return nil
}

func (t *tx) SaveEntry(_ context.Context, e ledger.Entry) error {
	t.entries[e.ID] = e
	return nil
}

func (t *tx) GetEntry(_ context.Context, id string) (ledger.Entry, error) {
	if e, ok := t.entries[id]; ok {
		return e, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	e, ok := t.s.entries[id]
	if !ok {
		return ledger.Entry{}, fmt.Errorf("entry %s: %w", id, errs.ErrNotFound)
	}
	return e, nil
}

func (t *tx) FindEntry(_ context.Context, k ledger.NaturalKey) (ledger.Entry, bool, error) {
	for _, id := range t.newIDs {
		if e := t.entries[id]; e.Key() == k {
			return e, true, nil
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	id, ok := t.s.entryKeys[k]
	if !ok {
		return ledger.Entry{}, false, nil
	}
	if e, ok := t.entries[id]; ok {
		return e, true, nil
	}
	return t.s.entries[id], true, nil
}

func (t *tx) LastEntry(_ context.Context, walletID string, b ledger.Bucket) (ledger.Entry, bool, error) {
	var last ledger.Entry
	found := false
	consider := func(e ledger.Entry) {
		if e.WalletID == walletID && e.Bucket == b && e.Status == ledger.StatusCompleted && e.Seq > last.Seq {
			last, found = e, true
		}
	}
	t.s.mu.RLock()
	for _, id := range t.s.walletLog[walletID] {
		if e, ok := t.entries[id]; ok {
			consider(e)
			continue
		}
		consider(t.s.entries[id])
	}
	t.s.mu.RUnlock()
	for _, id := range t.newIDs {
		consider(t.entries[id])
	}
	return last, found, nil
}

func (t *tx) LockCoupon(ctx context.Context, code string) (coupon.Coupon, error) {
	if err := t.lock(ctx, "coupon:"+code); err != nil {
		return coupon.Coupon{}, err
	}
	if c, ok := t.coupons[code]; ok {
		return c, nil
	}
	return t.s.GetCoupon(ctx, code)
}

func (t *tx) SaveCoupon(_ context.Context, c coupon.Coupon) error {
	t.coupons[c.Code] = c
	return nil
}

func (t *tx) CountCouponUsage(ctx context.Context, couponID, userID string) (int, error) {
	n, err := t.s.CountCouponUsage(ctx, couponID, userID)
	return n + countUsage(t.usages, couponID, userID), err
}

func (t *tx) InsertCouponUsage(_ context.Context, u coupon.Usage) error {
	dup := func(x coupon.Usage) bool { return x.CouponID == u.CouponID && x.OrderID == u.OrderID }
	for _, x := range t.usages {
		if dup(x) {
			return fmt.Errorf("usage %s/%s: %w", u.CouponCode, u.OrderID, errs.ErrAlreadyExists)
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, x := range t.s.usages {
		if dup(x) {
			return fmt.Errorf("usage %s/%s: %w", u.CouponCode, u.OrderID, errs.ErrAlreadyExists)
		}
	}
	t.usages = append(t.usages, u)
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	t.s.mu.RLock()
	_, exists := t.s.orders[o.ID]
	t.s.mu.RUnlock()
	if _, staged := t.orders[o.ID]; exists || staged {
		return fmt.Errorf("order %s: %w", o.ID, errs.ErrAlreadyExists)
	}
	t.orders[o.ID] = o.Clone()
	return nil
}

func (t *tx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	if err := t.lock(ctx, "order:"+id); err != nil {
		return orders.Order{}, err
	}
	if o, ok := t.orders[id]; ok {
		return o.Clone(), nil
	}
	return t.s.GetOrder(ctx, id)
}

func (t *tx) SaveOrder(_ context.Context, o orders.Order) error {
	t.orders[o.ID] = o.Clone()
	return nil
}

func (t *tx) InsertPayout(_ context.Context, p payout.Request) error {
	t.s.mu.RLock()
	_, exists := t.s.payouts[p.ID]
	t.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("payout %s: %w", p.ID, errs.ErrAlreadyExists)
	}
	t.payouts[p.ID] = p
	return nil
}

func (t *tx) LockPayout(ctx context.Context, id string) (payout.Request, error) {
	if err := t.lock(ctx, "payout:"+id); err != nil {
		return payout.Request{}, err
	}
	if p, ok := t.payouts[id]; ok {
		return p, nil
	}
	return t.s.GetPayout(ctx, id)
}

func (t *tx) SavePayout(_ context.Context, p payout.Request) error {
	t.payouts[p.ID] = p
	return nil
}
