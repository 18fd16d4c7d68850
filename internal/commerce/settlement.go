package commerce

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RunSettlementSweep moves every held sale eligible at or before asOf into
// available and returns how many sales it settled. Wallets are swept in
// parallel, each sale in its own transaction; a sale settled by a concurrent
// sweep is skipped. Frozen wallets are not listed, so they cannot use up the
// batch; one frozen mid-sweep is skipped and left for reconciliation.
func (s *Service) RunSettlementSweep(ctx context.Context, asOf time.Time) (n int, err error) {
	ctx, done := s.begin(ctx, "settlement_sweep", attribute.String("as_of", asOf.UTC().Format(time.RFC3339)))
	defer func() { done(err) }()

	due, err := s.store.ListDueSales(ctx, asOf, s.policy.SweepBatch)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	byOwner := map[string][]store.DueSale{}
	for _, d := range due {
		byOwner[d.OwnerID] = append(byOwner[d.OwnerID], d)
	}

	var settled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.policy.SweepConcurrency)
	for owner, sales := range byOwner {
		owner, sales := owner, sales
		g.Go(func() error {
			k, err := s.settleWallet(gctx, owner, sales)
			settled.Add(int64(k))
			return err
		})
	}
	err = g.Wait()
	n = int(settled.Load())
	s.logger(ctx).Info().
		Time("as_of", asOf).
		Int("due", len(due)).
		Int("settled", n).
		Int("wallets", len(byOwner)).
		Msg("settlement sweep")
	return n, err
}

func (s *Service) settleWallet(ctx context.Context, owner string, sales []store.DueSale) (int, error) {
	l := s.logger(ctx)
	n := 0
	for _, d := range sales {
		var (
			moved int64
			ok    bool
		)
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			w, err := tx.LockWallet(ctx, owner)
			if err != nil {
				return err
			}
			amt, fresh, err := ledger.Settle(ctx, tx, &w, d.Entry.ID, s.now().UTC())
			moved, ok = int64(amt), fresh
			return err
		})
		switch {
		case errors.Is(err, errs.ErrWalletFrozen):
			l.Warn().Str("owner_id", owner).Int("pending", len(sales)-n).Msg("wallet frozen; settlement skipped")
			return n, nil
		case errors.Is(err, errs.ErrLedgerIntegrity):
			s.freezeOnIntegrity(ctx, err)
			return n, nil
		case err != nil:
			return n, err
		}
		if !ok {
			continue
		}
		n++
		metrics.SettledSales.Inc()
		metrics.SettledAmount.Add(float64(moved))
		if moved > 0 {
			metrics.Postings.WithLabelValues(string(ledger.TypeSettlement)).Add(2)
		}
		l.Debug().Str("owner_id", owner).Str("sale_id", d.Entry.ID).Int64("amount", moved).Msg("sale settled")
	}
	return n, nil
}

// RunSettlementLoop sweeps immediately and then on every tick until ctx ends.
// A sweep that fills a whole batch is repeated at once to drain the backlog.
// Sweep errors are logged; the next tick retries.
func (s *Service) RunSettlementLoop(ctx context.Context, interval time.Duration) {
	l := s.logger(ctx)
	l.Info().Dur("interval", interval).Msg("settlement scheduler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for {
			n, err := s.RunSettlementSweep(ctx, s.now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					l.Error().Err(err).Msg("settlement sweep failed")
				}
				break
			}
			if n < s.policy.SweepBatch {
				break
			}
		}
		select {
		case <-ctx.Done():
			l.Info().Msg("settlement scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
