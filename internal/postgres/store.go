package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	DB  *pgxpool.Pool
	log zerolog.Logger
}

func New(db *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{DB: db, log: log.With().Str("component", "postgres").Logger()}
}

// InTx runs fn in a READ COMMITTED transaction. Row locks taken through the
// Tx are SELECT ... FOR UPDATE and last until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

func (s *Store) CreateCoupon(ctx context.Context, c coupon.Coupon) error {
	_, err := s.DB.Exec(ctx, insertSQL("coupons", couponColumns), couponArgs(c)...)
	return mapErr(err)
}

func (s *Store) GetCoupon(ctx context.Context, code string) (coupon.Coupon, error) {
	c, err := scanCoupon(s.DB.QueryRow(ctx,
		`SELECT `+cols(couponColumns, "")+` FROM coupons WHERE code=$1`, code))
	if err != nil {
		return coupon.Coupon{}, notFound(err, "coupon", code)
	}
	return c, nil
}

func (s *Store) CountCouponUsage(ctx context.Context, couponID, userID string) (int, error) {
	return countUsage(ctx, s.DB, couponID, userID)
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return loadOrder(ctx, s.DB, id, false)
}

func (s *Store) GetPayout(ctx context.Context, id string) (payout.Request, error) {
	p, err := scanPayout(s.DB.QueryRow(ctx,
		`SELECT `+cols(payoutColumns, "")+` FROM payouts WHERE id=$1`, id))
	if err != nil {
		return payout.Request{}, notFound(err, "payout", id)
	}
	return p, nil
}

func (s *Store) ListPayouts(ctx context.Context, instructorID string) ([]payout.Request, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+cols(payoutColumns, "")+` FROM payouts WHERE instructor_id=$1 ORDER BY requested_at, id`,
		instructorID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []payout.Request
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetWallet(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	w, err := scanWallet(s.DB.QueryRow(ctx,
		`SELECT `+cols(walletColumns, "")+` FROM wallets WHERE owner_id=$1`, ownerID))
	if err != nil {
		return ledger.Wallet{}, notFound(err, "wallet", ownerID)
	}
	return w, nil
}

func (s *Store) ListEntries(ctx context.Context, walletID string) ([]ledger.Entry, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+cols(entryColumns, "")+` FROM ledger_entries
		 WHERE wallet_id=$1
		 ORDER BY (seq = 0), seq, created_at, id`, walletID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListDueSales(ctx context.Context, asOf time.Time, limit int) ([]store.DueSale, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+cols(entryColumns, "e")+`, w.owner_id
		 FROM ledger_entries e JOIN wallets w ON w.id = e.wallet_id
		 WHERE e.type = 'sale' AND e.bucket = 'hold' AND e.status = 'completed'
		   AND e.settled_at IS NULL AND e.settlement_eligible_at <= $1
		   AND NOT w.frozen
		 ORDER BY e.settlement_eligible_at, e.id
		 LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []store.DueSale
	for rows.Next() {
		var owner string
		e, err := scanEntry(rows, &owner)
		if err != nil {
			return nil, err
		}
		out = append(out, store.DueSale{Entry: e, OwnerID: owner})
	}
	return out, rows.Err()
}

func (s *Store) FreezeWallet(ctx context.Context, ownerID string) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE wallets SET frozen = TRUE, updated_at = NOW() WHERE owner_id=$1`, ownerID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s: %w", ownerID, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Store) Close() error {
	s.DB.Close()
	return nil
}

func countUsage(ctx context.Context, q querier, couponID, userID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id=$1 AND user_id=$2`,
		couponID, userID).Scan(&n)
	return n, mapErr(err)
}

func loadOrder(ctx context.Context, q querier, id string, forUpdate bool) (orders.Order, error) {
	sql := `SELECT ` + cols(orderColumns, "") + ` FROM orders WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}

	rows, err := q.Query(ctx,
		`SELECT `+cols(itemColumns, "")+` FROM order_items WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return orders.Order{}, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return orders.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return orders.Order{}, err
	}
	if len(o.Items) == 0 {
		return orders.Order{}, errors.New("order " + id + " has no items")
	}
	return o, nil
}
