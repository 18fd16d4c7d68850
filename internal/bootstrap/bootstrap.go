// Package bootstrap wires the shared process dependencies of every binary.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/commerce"
	"github.com/ariefcatur/go-course-commerce/internal/config"
	kafkax "github.com/ariefcatur/go-course-commerce/internal/kafka"
	"github.com/ariefcatur/go-course-commerce/internal/logx"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/ariefcatur/go-course-commerce/internal/postgres"
	"github.com/ariefcatur/go-course-commerce/internal/tracing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Policy maps configuration onto the business policy.
func Policy(cfg config.Config) commerce.Policy {
	return commerce.Policy{
		FeeBps:           cfg.PlatformFeeBps,
		HoldingPeriod:    cfg.HoldingPeriod,
		MinimumPayout:    money.Amount(cfg.MinimumPayout),
		Currency:         cfg.Currency,
		PlatformOwnerID:  cfg.PlatformOwnerID,
		SweepConcurrency: cfg.SweepConcurrency,
		SweepBatch:       cfg.SweepBatch,
	}
}

type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Store    *postgres.Store
	Catalog  postgres.Catalog
	Producer *kafkax.Producer
	Service  *commerce.Service

	tp *sdktrace.TracerProvider
}

// Init loads .env and configuration, then brings up logging, tracing,
// PostgreSQL (migrated), the Kafka producer and the commerce service.
func Init(ctx context.Context, component string) (*App, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName
	if component != "" {
		name += "-" + component
	}
	log := logx.Setup(name, cfg.LogLevel)

	tp, err := tracing.InitTracerProvider(name, cfg.JaegerEndpoint, log)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	st := postgres.New(pool, log)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	catalog := postgres.Catalog{DB: pool}
	svc := commerce.New(st, catalog, Policy(cfg),
		commerce.WithLogger(log),
		commerce.WithPublisher(&kafkax.EventPublisher{Sender: prod, Producer: name}),
	)
	return &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Catalog:  catalog,
		Producer: prod,
		Service:  svc,
		tp:       tp,
	}, nil
}

// Close flushes the producer and tracer, then closes the database.
func (a *App) Close() {
	a.Producer.Close()
	a.Producer.WaitClosed()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tp.Shutdown(ctx); err != nil {
		a.Log.Warn().Err(err).Msg("tracer shutdown")
	}
	_ = a.Store.Close()
}
