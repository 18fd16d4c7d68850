// Package commerce runs the order, ledger and payout workflows over a store.Store.
//
// Every operation is one database transaction. Rows are locked in a fixed
// order (the order or payout first, then coupons by code, then wallets by
// owner id) and held until commit, so concurrent operations cannot deadlock.
// Events are published only after the transaction commits.
package commerce

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/ledger"
	"github.com/ariefcatur/go-course-commerce/internal/metrics"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/ariefcatur/go-course-commerce/internal/pricing"
	"github.com/ariefcatur/go-course-commerce/internal/store"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Policy holds the tunable business parameters.
type Policy struct {
	FeeBps           int64
	HoldingPeriod    time.Duration
	MinimumPayout    money.Amount
	Currency         string
	PlatformOwnerID  string
	SweepConcurrency int
	SweepBatch       int
}

func DefaultPolicy() Policy {
	return Policy{
		FeeBps:           pricing.DefaultFeeBps,
		HoldingPeriod:    7 * 24 * time.Hour,
		MinimumPayout:    50000,
		Currency:         money.DefaultCurrency,
		PlatformOwnerID:  "platform",
		SweepConcurrency: 4,
		SweepBatch:       500,
	}
}

// Publisher delivers domain events. Failures are logged, never returned to
// the caller, since the state change has already committed.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventType string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, string, any) error { return nil }

type Service struct {
	store   store.Store
	catalog Catalog
	policy  Policy
	calc    pricing.Calculator

	log    zerolog.Logger
	pub    Publisher
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(st store.Store, cat Catalog, policy Policy, opts ...Option) *Service {
	def := DefaultPolicy()
	if policy.HoldingPeriod <= 0 {
		policy.HoldingPeriod = def.HoldingPeriod
	}
	if policy.Currency == "" {
		policy.Currency = def.Currency
	}
	if policy.PlatformOwnerID == "" {
		policy.PlatformOwnerID = def.PlatformOwnerID
	}
	if policy.SweepConcurrency <= 0 {
		policy.SweepConcurrency = def.SweepConcurrency
	}
	if policy.SweepBatch <= 0 {
		policy.SweepBatch = def.SweepBatch
	}
	if policy.MinimumPayout < 0 {
		policy.MinimumPayout = 0
	}
	calc := pricing.NewCalculator(policy.FeeBps)
	policy.FeeBps = calc.FeeBps

	s := &Service{
		store:   st,
		catalog: cat,
		policy:  policy,
		calc:    calc,
		log:     zerolog.Nop(),
		pub:     nopPublisher{},
		tracer:  otel.Tracer("github.com/ariefcatur/go-course-commerce/internal/commerce"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Policy() Policy { return s.policy }

// begin opens a span for op and returns the function that closes it.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "commerce."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		metrics.ObserveOperation(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errs.Code(err))
		}
		span.End()
	}
}

// logger returns the request logger when one is attached to ctx.
func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

func (s *Service) publish(ctx context.Context, topic, key, eventType string, payload any) {
	if err := s.pub.Publish(ctx, topic, key, eventType, payload); err != nil {
		s.logger(ctx).Warn().Err(err).Str("topic", topic).Str("key", key).Msg("publish failed")
	}
}

// freezeOnIntegrity freezes the wallet named in an integrity error, in its own
// transaction, so no further postings land on a ledger that does not replay.
func (s *Service) freezeOnIntegrity(ctx context.Context, err error) {
	var ie *ledger.IntegrityError
	if !errors.As(err, &ie) || ie.OwnerID == "" {
		return
	}
	metrics.IntegrityViolations.Inc()
	l := s.logger(ctx)
	l.Error().Err(err).Str("owner_id", ie.OwnerID).Msg("ledger integrity violation; freezing wallet")
	if ferr := s.store.FreezeWallet(context.WithoutCancel(ctx), ie.OwnerID); ferr != nil {
		l.Error().Err(ferr).Str("owner_id", ie.OwnerID).Msg("freeze wallet")
	}
}

// kindOf tells the platform wallet from instructor wallets.
func (s *Service) kindOf(ownerID string) ledger.Kind {
	if ownerID == s.policy.PlatformOwnerID {
		return ledger.KindPlatform
	}
	return ledger.KindInstructor
}

// openWallets locks (creating if needed) the wallets of owners in sorted order.
func (s *Service) openWallets(ctx context.Context, tx store.Tx, owners []string, now time.Time) (map[string]*ledger.Wallet, error) {
	out := make(map[string]*ledger.Wallet, len(owners))
	for _, id := range ledger.SortOwners(owners) {
		w, err := ledger.Open(ctx, tx, id, s.kindOf(id), s.policy.Currency, now)
		if err != nil {
			return nil, err
		}
		out[id] = &w
	}
	return out, nil
}
