package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finboard/internal/app"
	"finboard/internal/config"
	"finboard/internal/log"
	"finboard/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).WithComponent(log.ComponentWorker)
	logger.Info("Starting finboard-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	// The server writes to the same database; cached aggregates would go stale here.
	cfg.CacheTTL = 0

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	defer a.Close()

	// Imports published while no worker was running are picked up here.
	if err := a.Sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start upload sweeper", log.FieldError, err)
	}

	var exporter worker.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		exporter = a.Exports
	}
	jobs := worker.NewJobWorker(a.Imports, exporter, logger)

	if err := a.Broker.Run(ctx, jobs.HandleJob); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
