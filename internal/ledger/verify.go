package ledger

import (
	"fmt"
	"sort"

	"github.com/ariefcatur/go-course-commerce/internal/money"
)

// Verify replays a wallet's entries and checks them against the cached balances.
// entries may be in any order and may include non-completed entries.
func Verify(w Wallet, entries []Entry) error {
	done := make([]Entry, 0, len(entries))
	var reserved money.Amount
	for _, e := range entries {
		if e.WalletID != w.ID {
			return violation(w, "entry %s belongs to wallet %s", e.ID, e.WalletID)
		}
		switch e.Status {
		case StatusCompleted:
			done = append(done, e)
		case StatusPending:
			if e.Type == TypePayout {
				reserved -= e.Amount
			}
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].Seq < done[j].Seq })

	running := map[Bucket]money.Amount{}
	for i, e := range done {
		if e.Seq != int64(i+1) {
			return violation(w, "entry %s has seq %d, want %d", e.ID, e.Seq, i+1)
		}
		if e.BalanceBefore != running[e.Bucket] {
			return violation(w, "seq %d %s before %d, replay %d", e.Seq, e.Bucket, e.BalanceBefore, running[e.Bucket])
		}
		if e.BalanceAfter != e.BalanceBefore+e.Amount {
			return violation(w, "seq %d after %d != %d%+d", e.Seq, e.BalanceAfter, e.BalanceBefore, e.Amount)
		}
		if e.BalanceAfter < 0 {
			return violation(w, "seq %d drives %s negative", e.Seq, e.Bucket)
		}
		running[e.Bucket] = e.BalanceAfter
	}
	if int64(len(done)) != w.Version {
		return violation(w, "version %d but %d completed entries", w.Version, len(done))
	}
	if running[BucketAvailable] != w.Available {
		return violation(w, "available %d, replay %d", w.Available, running[BucketAvailable])
	}
	if running[BucketHold] != w.Hold {
		return violation(w, "hold %d, replay %d", w.Hold, running[BucketHold])
	}
	if reserved != w.Reserved {
		return violation(w, "reserved %d, pending payouts %d", w.Reserved, reserved)
	}
	return nil
}

func violation(w Wallet, format string, args ...any) error {
	return &IntegrityError{WalletID: w.ID, OwnerID: w.OwnerID, Detail: fmt.Sprintf(format, args...)}
}
