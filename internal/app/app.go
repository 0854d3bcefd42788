// Package app wires configuration, storage, services and optional
// integrations shared by the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/chartdata"
	"finboard/internal/config"
	"finboard/internal/importer"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/sheets"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/storage"
)

// App holds the wired dependencies of one process.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Repo      *storage.SQLiteRepository
	Broker    *amqp.Client // nil without AMQP_URL
	Currency  chartdata.CurrencyFormat
	Dashboard *services.DashboardService
	Finance   *services.FinanceService
	Imports   *services.ImportService
	Exports   *services.ExportService
	Sweeper   *services.UploadSweeper

	caches *cache.Manager
}

// NewLogger builds the process logger from the configured level.
func NewLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = cfg.Level()
	return log.New(lc)
}

// New opens the database, connects to the broker when configured and
// builds the services. Close releases everything New acquired.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	currency, err := chartdata.NewCurrencyFormat(cfg.CurrencySymbol, cfg.CurrencyLocale)
	if err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.SQLiteDBPath, err)
	}
	a := &App{Config: cfg, Logger: logger, Repo: repo, Currency: currency}

	var publisher services.JobPublisher
	if cfg.AMQPURL != "" {
		a.Broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		publisher = a.Broker
		logger.Info("AMQP broker connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, imports and exports run inline")
	}

	var writer sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheet,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		writer = exporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleReportSheet)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	a.Dashboard = services.NewDashboardService(repo, services.DashboardOptions{
		DashboardMonths: cfg.DashboardMonths,
		ReportMonths:    cfg.ReportMonths,
		CacheTTL:        cfg.CacheTTL,
	}, logger)
	a.Finance = services.NewFinanceService(repo, a.Dashboard.Invalidate, logger)
	a.Imports = services.NewImportService(repo, importer.New(repo, logger), publisher, cfg.UploadDir, a.Dashboard.Invalidate, logger)
	a.Exports = services.NewExportService(a.Dashboard, writer, publisher, logger)
	a.Sweeper = services.NewUploadSweeper(repo, a.Imports, services.DefaultSweeperConfig(), logger)

	a.caches = cache.NewManager(logger)
	for _, c := range a.Dashboard.Caches() {
		a.caches.Register(c)
	}
	if cfg.CacheTTL > 0 {
		a.caches.StartCleanup(cfg.CacheTTL)
	}
	return a, nil
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if a.Sweeper != nil {
		errs = append(errs, a.Sweeper.Stop(shutdownCtx))
	}
	if a.caches != nil {
		a.caches.Stop()
	}
	if a.Broker != nil {
		errs = append(errs, a.Broker.Close())
	}
	errs = append(errs, a.Repo.Close())
	return errors.Join(errs...)
}
