package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/bootstrap"
	"github.com/ariefcatur/go-course-commerce/internal/httpx"
	"github.com/ariefcatur/go-course-commerce/internal/redisx"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Init(ctx, "")
	if err != nil {
		zlog.Fatal().Err(err).Msg("startup")
	}
	defer app.Close()
	log := app.Log

	// Redis
	rdb := redisx.New(app.Config.RedisAddr)
	defer rdb.Close()

	router := httpx.NewRouter(log, app.Store.Ping)
	h := &httpx.Handler{
		Svc:    app.Service,
		Status: redisx.NewStatusCache(rdb),
		Idem:   redisx.NewIdempotency(rdb),
	}
	h.Register(router)

	srv := &http.Server{
		Addr:              app.Config.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", app.Config.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
}
