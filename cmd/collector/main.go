// Package main wires together the analytics collector service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dataforge-analytics/collector/internal/api"
	"github.com/dataforge-analytics/collector/internal/config"
	"github.com/dataforge-analytics/collector/internal/logging"
	"github.com/dataforge-analytics/collector/internal/metrics"
	"github.com/dataforge-analytics/collector/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewWithFile(cfg.Logging.Development, logging.FileConfig{
		Path:       cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("collector exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := postgres.New(ctx, postgres.Config{
		DSN:               cfg.DB.DSN,
		MinConns:          cfg.DB.MinConns,
		MaxConns:          cfg.DB.MaxConns,
		IdleTimeout:       time.Duration(cfg.DB.IdleTimeoutSeconds) * time.Second,
		ConnectTimeout:    time.Duration(cfg.DB.ConnTimeoutSeconds) * time.Second,
		BootstrapAttempts: cfg.DB.BootstrapAttempts,
		BootstrapBackoff:  cfg.BootstrapBackoff(),
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer store.Close()

	server := api.NewServer(store, cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bootstrap runs in the background so the health endpoint is reachable
	// during the retry window; the readiness gate holds ingestion until it
	// completes. Exhausted retries are fatal.
	bootstrapErr := make(chan error, 1)
	go func() {
		bootstrapErr <- store.Bootstrap(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("collector listening", zap.Int("port", cfg.Server.Port))
		serveErr <- httpServer.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-bootstrapErr:
		switch ferr := bootstrapFailure(err); {
		case ferr != nil:
			runErr = ferr
		case ctx.Err() != nil:
			// Bootstrap was cut short by a shutdown signal; exit cleanly.
			logger.Info("shutdown signal received")
		default:
			// Bootstrap done; keep serving until a signal or server error.
			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			case err := <-serveErr:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					runErr = fmt.Errorf("http server: %w", err)
				}
			}
		}
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	logger.Info("collector stopped")
	return runErr
}

// bootstrapFailure classifies a Bootstrap result. A nil error and a
// cancellation caused by process shutdown are both non-fatal; only genuine
// retry exhaustion must abort the process.
func bootstrapFailure(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("schema bootstrap failed, refusing to serve: %w", err)
}
