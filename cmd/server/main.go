package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/arbor"

	httpadapter "mapscraper/internal/adapters/http"
	"mapscraper/internal/app"
	"mapscraper/internal/config"
	"mapscraper/internal/logging"
	jobsvc "mapscraper/internal/services/jobs"
	"mapscraper/internal/store"
	"mapscraper/internal/workers/scrapeworker"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server exited")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger arbor.ILogger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs := jobsvc.New(st, st, logger)
	r := chi.NewRouter()
	r.Mount("/", httpadapter.New(jobs, logger).Routes())

	// Optional in-process workers
	var workers sync.WaitGroup
	if cfg.Workers > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			scrapeworker.RunPool(ctx, cfg.Workers, app.RunnerFactory(cfg, st, logger))
		}()
		logger.Info().Int("workers", cfg.Workers).Msg("In-process workers started")
	}
	defer workers.Wait()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info().Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("Listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-errCh:
		cancel()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}
