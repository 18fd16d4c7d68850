package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-course-commerce/internal/bootstrap"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Init(ctx, "settlement")
	if err != nil {
		zlog.Fatal().Err(err).Msg("startup")
	}
	defer app.Close()

	app.Service.RunSettlementLoop(ctx, app.Config.SweepInterval)
}
