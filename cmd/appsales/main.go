package main

import (
	"context"
	"log/slog"
	"net/http"
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
	apphttp "appsales/internal/http"
	applog "appsales/internal/log"
	"appsales/internal/provider"
	"appsales/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

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

	// AMQP is optional; without a URL events are simply not published.
	var notifier *amqp.Client
	if cfg.AMQPURL != "" {
		notifier, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()
	}

	p := provider.New(fetcher, repo, notifier, cfg.Currency)

	// Serve whatever snapshot exists right away; the fresh fetch runs in
	// the background.
	key := cfg.Key()
	if err := p.SelectKey(context.Background(), key); err != nil {
		logger.Warn("No usable credential configured", "error", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, p, cfg.Goals, cfg.QueryOptions())

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting appsales server",
		"port", cfg.Port,
		"backend", cfg.FetchBackend,
		"currency", cfg.Currency)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
