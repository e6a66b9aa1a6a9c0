package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"appsales/internal/amqp"
	"appsales/internal/config"
	"appsales/internal/currency"
	"appsales/internal/fetch"
	filefetch "appsales/internal/fetch/file"
	memfetch "appsales/internal/fetch/memory"
	applog "appsales/internal/log"
	"appsales/internal/provider"
	"appsales/internal/storage"
	"appsales/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting appsales-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	converter := currency.New()

	var fetcher fetch.Fetcher
	switch fetch.Backend(cfg.FetchBackend) {
	case fetch.BackendFile:
		fetcher = filefetch.New(cfg.ReportDir, converter)
		logger.Info("Initialized file report backend", "dir", cfg.ReportDir)
	default:
		fetcher = memfetch.New(converter)
		logger.Info("Initialized memory backend")
	}

	var notifier *amqp.Client
	if cfg.AMQPURL != "" {
		notifier, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()
		logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	p := provider.New(fetcher, repo, notifier, cfg.Currency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.SelectKey(ctx, cfg.Key()); err != nil {
		logger.Error("No usable credential configured", "error", err)
		os.Exit(1)
	}

	refreshWorker := worker.NewRefreshWorker(p, cfg.RefreshInterval)

	done := make(chan error, 1)
	go func() {
		done <- refreshWorker.Run(ctx)
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
		select {
		case <-done:
			logger.Info("Worker shutdown complete")
		case <-time.After(30 * time.Second):
			logger.Warn("Shutdown timeout reached")
		}
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Refresh worker failed", "error", err)
			os.Exit(1)
		}
	}
}
