// Package main is the entry point for the awaves forecast API server.
//
// Startup wires the DynamoDB adapters, the distributed cache client,
// the in-process snapshot, and the query engine, then serves the chi
// router until SIGINT/SIGTERM. The snapshot is warmed in the background
// so the first request does not pay the full-scan cost.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"awaves/internal/api"
	"awaves/internal/cache"
	"awaves/internal/config"
	"awaves/internal/spots"
	"awaves/internal/store"
	"awaves/internal/types"
)

// warmTimeout bounds the startup cache warm; a slow scan must not block
// serving.
const warmTimeout = 60 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("awaves API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"cache_enabled", cfg.Cache.URL != "",
	)

	ctx := context.Background()
	ddb, err := store.NewClient(ctx, cfg.AWS.Region, cfg.AWS.EndpointURL)
	if err != nil {
		return fmt.Errorf("creating dynamodb client: %w", err)
	}

	grades := cfg.Grades.Table()
	forecasts := store.NewForecastStore(ddb, cfg.AWS.SurfTable, grades, logger)
	saved := store.NewSavedStore(ddb, cfg.AWS.SavedTable, logger)
	locations := store.NewLocationStore(ddb, cfg.AWS.LocationsTable, logger)

	cacheClient := cache.NewClient(cfg.Cache.URL, logger)
	spotsCache := cache.NewSpotsCache(cacheClient, cfg.Cache.TTLAllSpots, cfg.Cache.TTLLatestSpot, cfg.Cache.TTLAllSpots)
	savedCache := cache.NewSavedCache(cacheClient, cfg.Cache.TTLSavedItems)
	snapshot := cache.NewSnapshot(forecasts, cfg.Cache.SnapshotTTL, types.RealClock{}, logger)

	engine := spots.NewService(forecasts, locations, snapshot, spotsCache, logger)

	// Background warm: first requests fall through to the store until the
	// snapshot lands.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
		defer cancel()
		if err := engine.WarmCaches(warmCtx); err != nil {
			logger.Warn("startup cache warm failed", "error", err)
		}
	}()

	router := api.NewRouter(
		api.NewSpotsHandler(engine),
		api.NewSavedHandler(saved, savedCache, types.RealClock{}),
		logger,
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info("awaves API stopped")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level string.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
