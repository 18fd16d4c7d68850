package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-course-commerce/internal/bootstrap"
	"github.com/ariefcatur/go-course-commerce/internal/events"
	kafkax "github.com/ariefcatur/go-course-commerce/internal/kafka"
	"github.com/ariefcatur/go-course-commerce/internal/payments"
	"github.com/ariefcatur/go-course-commerce/internal/redisx"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Init(ctx, "payments")
	if err != nil {
		zlog.Fatal().Err(err).Msg("startup")
	}
	defer app.Close()
	log := app.Log
	cfg := app.Config

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	h := &payments.Handler{
		Orders: app.Service,
		Dedup:  redisx.NewDeduper(rdb, "payments"),
		Log:    log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, events.TopicPaymentVerified, cfg.PaymentsWorkers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().
			Str("group", cfg.PaymentsGroup).
			Str("topic", events.TopicPaymentVerified).
			Int("workers", cfg.PaymentsWorkers).
			Msg("payments consumer started")
		if err := cons.Start(ctx, h.HandlePaymentVerified); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down consumer")
	cancel()
	<-done
}
