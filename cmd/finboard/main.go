package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finboard/internal/app"
	"finboard/internal/config"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
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
	logger := app.NewLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	defer a.Close()

	// Without a broker there is no worker process to sweep uploads.
	if a.Broker == nil {
		if err := a.Sweeper.Start(ctx); err != nil {
			logger.Error("Failed to start upload sweeper", log.FieldError, err)
		}
	}

	srv := apphttp.NewServer(apphttp.Services{
		Dashboard: a.Dashboard,
		Finance:   a.Finance,
		Imports:   a.Imports,
		Exports:   a.Exports,
	}, apphttp.Options{
		Addr:           ":" + cfg.Port,
		DefaultRole:    cfg.Role(),
		Currency:       a.Currency,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ping:           a.Repo.Ping,
	}, logger)

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting finboard server", "port", cfg.Port, "default_role", cfg.Role())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
