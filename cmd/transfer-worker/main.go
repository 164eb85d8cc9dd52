package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/app"
	"github.com/cczslater/sellbuydeal-sub000/internal/config"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "transfer-worker",
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	if cfg.UsesMemoryStore() {
		log.Fatal().Msg("transfer-worker needs a shared store, set STORE_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if a.Redis == nil {
		log.Warn().Msg("Redis unavailable, run a single worker replica")
	}

	w, err := a.Worker()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker")
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Worker stopped")
	}
	log.Info().Msg("transfer-worker exited")
}
