package main

import (
	"context"
	"os/signal"
	"syscall"

	"mapscraper/internal/app"
	"mapscraper/internal/config"
	"mapscraper/internal/logging"
	"mapscraper/internal/store"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		logger.Fatal().Err(err).Msg("Store open failed")
	}
	defer st.Close()

	// Blocks until a signal arrives and the current job is recorded.
	app.RunnerFactory(cfg, st, logger)(0).Run(ctx)
}
