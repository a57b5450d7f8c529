package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmoretti/fibermirror/internal/alert"
	"github.com/lmoretti/fibermirror/internal/archive"
	"github.com/lmoretti/fibermirror/internal/config"
	"github.com/lmoretti/fibermirror/internal/dataset"
	"github.com/lmoretti/fibermirror/internal/fetch"
	"github.com/lmoretti/fibermirror/internal/logging"
	"github.com/lmoretti/fibermirror/internal/metrics"
	"github.com/lmoretti/fibermirror/internal/refresh"
	"github.com/lmoretti/fibermirror/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"archive_url", cfg.Upstream.ArchiveURL,
		"fetch_time", cfg.Refresh.FetchTime,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"alerts_enabled", cfg.Alert.BotToken != "" && cfg.Alert.ChatID != "",
	)

	fetchHour, fetchMinute, err := config.ParseFetchTime(cfg.Refresh.FetchTime)
	if err != nil {
		slog.Error("invalid fetch time", "error", err)
		os.Exit(1)
	}

	// Open the on-disk dataset archive
	disk, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		slog.Error("failed to open dataset archive", "error", err, "path", cfg.Archive.Path)
		os.Exit(1)
	}
	defer disk.Close()
	slog.Info("dataset archive open", "path", cfg.Archive.Path)

	// Build the refresh pipeline around an empty snapshot store
	reg := metrics.NewRegistry()
	store := dataset.NewStore()
	source := fetch.NewClient(cfg.Upstream.ArchiveURL, cfg.Upstream.FetchTimeout)
	notifier := alert.NewTelegram(cfg.Alert.BotToken, cfg.Alert.ChatID)
	runner := refresh.New(source, store, disk, notifier, reg)

	// Create server with config
	server := web.NewServer(store, runner, reg, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Populate the store before the first scheduled run; the server starts
	// serving the empty snapshot immediately either way.
	if cfg.Refresh.RunAtStartup {
		go func() {
			if err := runner.Run(jobCtx); err != nil {
				slog.Error("startup refresh failed", "error", err)
			}
		}()
	}

	// Start the daily refresh scheduler
	go runner.Start(jobCtx, fetchHour, fetchMinute)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
