package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adbridge/internal/http/handlers"
	httpapi "adbridge/internal/http/httpapi"
	"adbridge/internal/infra"
	"adbridge/internal/infra/geoip"
	"adbridge/internal/poller"
	"adbridge/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewJobStore(cfg.JobRootPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid job root")
	}
	if err := store.EnsureDirectories(); err != nil {
		logger.Fatal().Err(err).Str("job_root", store.Root()).Msg("failed to create job directories")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resultPoller := poller.New(store, logger)
	resultPoller.Settle = cfg.ResultSettle
	if cfg.WatchResults {
		go func() {
			if err := resultPoller.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("results watch unavailable, falling back to interval polling")
			}
		}()
	} else {
		logger.Info().Dur("poll_interval", cfg.PollInterval).Msg("results watch disabled")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	}
	defer resolver.Close()

	app := handlers.NewApp(cfg, logger, store, resultPoller)
	router := httpapi.NewRouter(app, resolver.Lookup())
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("requests_dir", store.RequestsDir()).
			Str("results_dir", store.ResultsDir()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// In-flight waits end through their request contexts; give them a moment
	// to write their 503 before the listener goes away.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
