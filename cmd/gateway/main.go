package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kisanbazar/gateway/internal/config"
	"github.com/kisanbazar/gateway/internal/httpapi"
	applog "github.com/kisanbazar/gateway/internal/log"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)

	rly := relay.New(cfg.APIBaseURL)
	router := httpapi.NewRouter(cfg, rly)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.APIBaseURL).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("gateway stopped")
}
