package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type migration struct {
	version string
	name    string
	up      string
}

// migrations run in order, each once, inside one transaction.
var migrations = []migration{
	{"20260301000001", "create_wallets", `
CREATE TABLE IF NOT EXISTS wallets (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL UNIQUE,
    kind            TEXT NOT NULL,
    available       BIGINT NOT NULL DEFAULT 0 CHECK (available >= 0),
    hold            BIGINT NOT NULL DEFAULT 0 CHECK (hold >= 0),
    reserved        BIGINT NOT NULL DEFAULT 0 CHECK (reserved >= 0),
    total_earnings  BIGINT NOT NULL DEFAULT 0,
    total_withdrawn BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL,
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    frozen          BOOLEAN NOT NULL DEFAULT FALSE,
    version         BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`},
	{"20260301000002", "create_ledger_entries", `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id                     TEXT PRIMARY KEY,
    wallet_id              TEXT NOT NULL REFERENCES wallets (id),
    seq                    BIGINT NOT NULL DEFAULT 0,
    type                   TEXT NOT NULL,
    status                 TEXT NOT NULL,
    bucket                 TEXT NOT NULL,
    amount                 BIGINT NOT NULL,
    balance_before         BIGINT NOT NULL DEFAULT 0,
    balance_after          BIGINT NOT NULL DEFAULT 0,
    reference              TEXT NOT NULL,
    reference_type         TEXT NOT NULL,
    description            TEXT NOT NULL DEFAULT '',
    settlement_eligible_at TIMESTAMPTZ,
    settled_at             TIMESTAMPTZ,
    hold_reversed          BIGINT NOT NULL DEFAULT 0,
    needs_reconciliation   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_natural_key
    ON ledger_entries (wallet_id, reference, reference_type, type, bucket);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_seq
    ON ledger_entries (wallet_id, seq) WHERE seq > 0;
CREATE INDEX IF NOT EXISTS idx_ledger_entries_tail
    ON ledger_entries (wallet_id, bucket, seq DESC) WHERE status = 'completed';
CREATE INDEX IF NOT EXISTS idx_ledger_entries_due
    ON ledger_entries (settlement_eligible_at)
    WHERE type = 'sale' AND bucket = 'hold' AND status = 'completed' AND settled_at IS NULL;
`},
	{"20260301000003", "create_coupons", `
CREATE TABLE IF NOT EXISTS coupons (
    id                       TEXT PRIMARY KEY,
    code                     TEXT NOT NULL UNIQUE,
    type                     TEXT NOT NULL,
    value                    BIGINT NOT NULL,
    min_order_amount         BIGINT NOT NULL DEFAULT 0,
    max_discount_amount      BIGINT NOT NULL DEFAULT 0,
    usage_limit              INT NOT NULL DEFAULT 0,
    usage_per_user           INT NOT NULL DEFAULT 0,
    applicable_course_id     TEXT NOT NULL DEFAULT '',
    applicable_instructor_id TEXT NOT NULL DEFAULT '',
    issuer                   TEXT NOT NULL,
    valid_from               TIMESTAMPTZ,
    valid_to                 TIMESTAMPTZ,
    is_active                BOOLEAN NOT NULL DEFAULT TRUE,
    used_count               INT NOT NULL DEFAULT 0,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS coupon_usages (
    id          TEXT PRIMARY KEY,
    coupon_id   TEXT NOT NULL REFERENCES coupons (id),
    coupon_code TEXT NOT NULL,
    user_id     TEXT NOT NULL,
    order_id    TEXT NOT NULL,
    discount    BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (coupon_id, order_id)
);

CREATE INDEX IF NOT EXISTS idx_coupon_usages_user ON coupon_usages (coupon_id, user_id);
`},
	{"20260301000004", "create_orders", `
CREATE TABLE IF NOT EXISTS orders (
    id                  TEXT PRIMARY KEY,
    number              TEXT NOT NULL UNIQUE,
    user_id             TEXT NOT NULL,
    status              TEXT NOT NULL,
    subtotal            BIGINT NOT NULL,
    instructor_discount BIGINT NOT NULL DEFAULT 0,
    platform_discount   BIGINT NOT NULL DEFAULT 0,
    total_discount      BIGINT NOT NULL DEFAULT 0,
    total_amount        BIGINT NOT NULL CHECK (total_amount >= 0),
    discount_clamped    BOOLEAN NOT NULL DEFAULT FALSE,
    refunded_amount     BIGINT NOT NULL DEFAULT 0,
    currency            TEXT NOT NULL,
    payment_reference   TEXT NOT NULL DEFAULT '',
    failure_reason      TEXT NOT NULL DEFAULT '',
    coupons             JSONB NOT NULL DEFAULT '[]',
    paid_at             TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
    id                  TEXT PRIMARY KEY,
    order_id            TEXT NOT NULL REFERENCES orders (id),
    position            INT NOT NULL,
    course_id           TEXT NOT NULL,
    instructor_id       TEXT NOT NULL,
    original_price      BIGINT NOT NULL,
    instructor_discount BIGINT NOT NULL DEFAULT 0,
    unit_price          BIGINT NOT NULL,
    fee_bps             BIGINT NOT NULL,
    platform_fee        BIGINT NOT NULL,
    instructor_earnings BIGINT NOT NULL,
    instructor_coupon   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id, position);
`},
	{"20260301000005", "create_payouts", `
CREATE TABLE IF NOT EXISTS payouts (
    id             TEXT PRIMARY KEY,
    number         TEXT NOT NULL UNIQUE,
    instructor_id  TEXT NOT NULL,
    wallet_id      TEXT NOT NULL REFERENCES wallets (id),
    amount         BIGINT NOT NULL CHECK (amount > 0),
    status         TEXT NOT NULL,
    bank_name      TEXT NOT NULL,
    account_number TEXT NOT NULL,
    account_holder TEXT NOT NULL,
    entry_id       TEXT NOT NULL,
    reason         TEXT NOT NULL DEFAULT '',
    requested_at   TIMESTAMPTZ NOT NULL,
    approved_at    TIMESTAMPTZ,
    processing_at  TIMESTAMPTZ,
    completed_at   TIMESTAMPTZ,
    rejected_at    TIMESTAMPTZ,
    failed_at      TIMESTAMPTZ,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_payouts_instructor ON payouts (instructor_id, requested_at);
`},
	{"20260301000006", "create_courses", `
CREATE TABLE IF NOT EXISTS courses (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    instructor_id TEXT NOT NULL,
    price         BIGINT NOT NULL CHECK (price >= 0),
    published     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`},
}

// migrateLockKey serialises concurrent Migrate calls across processes.
const migrateLockKey = 7_340_021

func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockKey); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}
	for _, m := range migrations {
		var done bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, m.version,
		).Scan(&done); err != nil {
			return err
		}
		if done {
			continue
		}
		if _, err := tx.Exec(ctx, m.up); err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, m.version, m.name,
		); err != nil {
			return err
		}
		s.log.Info().Str("version", m.version).Str("name", m.name).Msg("migration applied")
	}
	return tx.Commit(ctx)
}
