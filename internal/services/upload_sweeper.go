package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
)

// SweeperStore lists uploads that need attention.
type SweeperStore interface {
	ListPendingUploads(ctx context.Context, createdBefore time.Time, limit int) ([]core.Upload, error)
	ListFinishedUploads(ctx context.Context, createdBefore time.Time, limit int) ([]core.Upload, error)
	ClearUploadPath(ctx context.Context, id string) error
}

// UploadProcessor imports one pending upload.
type UploadProcessor interface {
	Process(ctx context.Context, uploadID string) error
}

type SweeperConfig struct {
	// PollInterval is how often pending uploads are checked (default: 30s)
	PollInterval time.Duration

	// StaleAfter is how long an upload may stay pending before the sweeper
	// imports it itself, covering lost or never published jobs (default: 2m)
	StaleAfter time.Duration

	// BatchSize is the max number of uploads handled per cycle (default: 10)
	BatchSize int

	// CleanupInterval is how often stored files of finished uploads are removed (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old a finished upload must be before its file goes (default: 24h)
	CleanupAge time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		PollInterval:    30 * time.Second,
		StaleAfter:      2 * time.Minute,
		BatchSize:       10,
		CleanupInterval: time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// UploadSweeper picks up uploads whose import job never ran and deletes
// stored files once an upload is done.
type UploadSweeper struct {
	store     SweeperStore
	processor UploadProcessor
	config    SweeperConfig
	logger    *log.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewUploadSweeper(store SweeperStore, processor UploadProcessor, config SweeperConfig, logger *log.Logger) *UploadSweeper {
	if logger == nil {
		logger = log.Discard()
	}
	return &UploadSweeper{
		store:     store,
		processor: processor,
		config:    config,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *UploadSweeper) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("upload sweeper is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Upload sweeper started",
		"poll_interval", p.config.PollInterval,
		"stale_after", p.config.StaleAfter)
	return nil
}

// Stop gracefully stops the sweeper and waits for the current cycle.
func (p *UploadSweeper) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Upload sweeper stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *UploadSweeper) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *UploadSweeper) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.Sweep(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.Sweep(ctx)
		case <-cleanupTicker.C:
			p.Cleanup(ctx)
		}
	}
}

// Sweep imports stale pending uploads and returns how many were handled.
func (p *UploadSweeper) Sweep(ctx context.Context) int {
	uploads, err := p.store.ListPendingUploads(ctx, p.now().Add(-p.config.StaleAfter), p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list pending uploads", log.FieldError, err)
		return 0
	}

	handled := 0
	for _, u := range uploads {
		if ctx.Err() != nil {
			break
		}
		p.logger.WarnContext(ctx, "Importing stale upload", log.FieldUploadID, u.ID, "created_at", u.CreatedAt)
		if err := p.processor.Process(ctx, u.ID); err != nil {
			p.logger.ErrorContext(ctx, "Stale upload import failed", log.FieldUploadID, u.ID, log.FieldError, err)
			continue
		}
		handled++
	}
	return handled
}

// Cleanup removes stored files of old finished uploads and returns how many went.
func (p *UploadSweeper) Cleanup(ctx context.Context) int {
	uploads, err := p.store.ListFinishedUploads(ctx, p.now().Add(-p.config.CleanupAge), p.config.BatchSize*10)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list finished uploads", log.FieldError, err)
		return 0
	}
	removed := 0
	for _, u := range uploads {
		if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.WarnContext(ctx, "Failed to remove upload file", log.FieldUploadID, u.ID, log.FieldError, err)
			continue
		}
		if err := p.store.ClearUploadPath(ctx, u.ID); err != nil {
			p.logger.WarnContext(ctx, "Failed to clear upload path", log.FieldUploadID, u.ID, log.FieldError, err)
			continue
		}
		removed++
	}
	return removed
}
