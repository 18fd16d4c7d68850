package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/ariefcatur/go-course-commerce/internal/store"
)

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func credit(ref string, amount money.Amount) ledger.Posting {
	return ledger.Posting{Type: ledger.TypeAdjustment, Bucket: ledger.BucketAvailable, Amount: amount, Reference: ref, ReferenceType: "test"}
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		w, err := ledger.Open(ctx, tx, "alice", ledger.KindInstructor, "idr", t0)
		if err != nil {
			return err
		}
		if _, err := ledger.Post(ctx, tx, &w, credit("r1", 500), t0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if _, err := s.GetWallet(ctx, "alice"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("wallet survived rollback: %v", err)
	}
	if len(s.entries) != 0 {
		t.Errorf("%d entries survived rollback", len(s.entries))
	}
}

func TestRowLockSerializesWriters(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := ledger.Open(ctx, tx, "alice", ledger.KindInstructor, "idr", t0)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx store.Tx) error {
				w, err := tx.LockWallet(ctx, "alice")
				if err != nil {
					return err
				}
				_, err = ledger.Post(ctx, tx, &w, credit(fmt.Sprintf("r%d", i), 10), t0)
				return err
			})
			if err != nil {
				t.Errorf("post %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	w, _ := s.GetWallet(ctx, "alice")
	entries, _ := s.ListEntries(ctx, w.ID)
	if w.Available != n*10 || len(entries) != n {
		t.Fatalf("available=%d entries=%d", w.Available, len(entries))
	}
	if err := ledger.Verify(w, entries); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestLockWaitHonoursContext(t *testing.T) {
	s := New()
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.InTx(context.Background(), func(tx store.Tx) error {
			_, _ = tx.LockCoupon(context.Background(), "X")
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.LockCoupon(ctx, "X")
		return err
	})
	if !errors.Is(err, errs.ErrConcurrencyConflict) {
		t.Errorf("got %v, want concurrency conflict", err)
	}
}

func TestCouponUsageIsUniquePerOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := coupon.Usage{ID: "u1", CouponID: "c1", CouponCode: "C", UserID: "bob", OrderID: "o1", CreatedAt: t0}
	if err := s.InTx(ctx, func(tx store.Tx) error { return tx.InsertCouponUsage(ctx, u) }); err != nil {
		t.Fatal(err)
	}
	u.ID = "u2"
	err := s.InTx(ctx, func(tx store.Tx) error { return tx.InsertCouponUsage(ctx, u) })
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Errorf("duplicate usage: %v", err)
	}
	if n, _ := s.CountCouponUsage(ctx, "c1", "bob"); n != 1 {
		t.Errorf("usage count %d", n)
	}
}

func TestListEntriesPutsPendingLast(t *testing.T) {
	s := New()
	ctx := context.Background()
	var walletID string
	err := s.InTx(ctx, func(tx store.Tx) error {
		w, err := ledger.Open(ctx, tx, "alice", ledger.KindInstructor, "idr", t0)
		if err != nil {
			return err
		}
		walletID = w.ID
		if _, err := ledger.Post(ctx, tx, &w, credit("a", 100000), t0); err != nil {
			return err
		}
		if _, err := ledger.Reserve(ctx, tx, &w, 60000, "po-1", "payout", t0.Add(time.Minute)); err != nil {
			return err
		}
		_, err = ledger.Post(ctx, tx, &w, credit("b", 5), t0.Add(2*time.Minute))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	es, _ := s.ListEntries(ctx, walletID)
	if len(es) != 3 || es[0].Seq != 1 || es[1].Seq != 2 || es[2].Status != ledger.StatusPending {
		t.Errorf("order: %+v", es)
	}
}
