package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"unique", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "coupons_code_key"}, errs.ErrAlreadyExists},
		{"serialization", &pgconn.PgError{Code: codeSerializationFailure}, errs.ErrConcurrencyConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, errs.ErrConcurrencyConflict},
		{"lock timeout", fmt.Errorf("lock: %w", &pgconn.PgError{Code: codeLockNotAvailable}), errs.ErrConcurrencyConflict},
		{"deadline", context.DeadlineExceeded, errs.ErrConcurrencyConflict},
		{"domain error passes through", errs.ErrInsufficientFunds, errs.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErr(tc.in); !errors.Is(got, tc.want) {
				t.Errorf("mapErr(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
	if mapErr(nil) != nil {
		t.Error("mapErr(nil) != nil")
	}
	if err := notFound(pgx.ErrNoRows, "order", "o1"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("notFound = %v", err)
	}
}

func TestSQLBuilders(t *testing.T) {
	if got := placeholders(3, 3); got != "$3, $4, $5" {
		t.Errorf("placeholders = %q", got)
	}
	if got := cols([]string{"id", "seq"}, "e"); got != "e.id, e.seq" {
		t.Errorf("cols = %q", got)
	}
	want := "INSERT INTO t (a, b) VALUES ($1, $2)"
	if got := insertSQL("t", []string{"a", "b"}); got != want {
		t.Errorf("insertSQL = %q", got)
	}
	if len(walletArgs(ledger.Wallet{})) != len(walletColumns) ||
		len(entryArgs(ledger.Entry{})) != len(entryColumns) {
		t.Error("column lists and argument lists disagree")
	}
}

// openTestStore connects to TEST_DATABASE_URL and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s := New(pool, zerolog.Nop())
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostingRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	post := func(ref string) error {
		return s.InTx(ctx, func(tx store.Tx) error {
			w, err := ledger.Open(ctx, tx, owner, ledger.KindInstructor, "idr", now)
			if err != nil {
				return err
			}
			_, err = ledger.Post(ctx, tx, &w, ledger.Posting{
				Type: ledger.TypeAdjustment, Bucket: ledger.BucketAvailable,
				Amount: 2500, Reference: ref, ReferenceType: "test",
			}, now)
			return err
		})
	}
	if err := post("r1"); err != nil {
		t.Fatal(err)
	}
	// Same natural key again is absorbed by the ledger.
	if err := post("r1"); err != nil {
		t.Fatal(err)
	}
	if err := post("r2"); err != nil {
		t.Fatal(err)
	}

	w, err := s.GetWallet(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := s.ListEntries(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if w.Available != 5000 || len(entries) != 2 {
		t.Fatalf("available=%d entries=%d", w.Available, len(entries))
	}
	if err := ledger.Verify(w, entries); err != nil {
		t.Errorf("Verify: %v", err)
	}

	if err := s.FreezeWallet(ctx, owner); err != nil {
		t.Fatal(err)
	}
	if w, _ = s.GetWallet(ctx, owner); !w.Frozen {
		t.Error("wallet not frozen")
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		if _, err := ledger.Open(ctx, tx, owner, ledger.KindInstructor, "idr", time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if _, err := s.GetWallet(ctx, owner); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("wallet survived rollback: %v", err)
	}
}
