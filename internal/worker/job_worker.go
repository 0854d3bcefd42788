package worker

import (
	"context"
	"fmt"

	"finboard/internal/amqp"
	"finboard/internal/log"
)

// Importer imports one recorded upload.
type Importer interface {
	Process(ctx context.Context, uploadID string) error
}

// Exporter writes the report over a number of months.
type Exporter interface {
	Export(ctx context.Context, months int) error
}

// JobWorker executes the background jobs published by the web app.
type JobWorker struct {
	importer Importer
	exporter Exporter
	logger   *log.Logger
}

// NewJobWorker creates a worker. A nil exporter makes export jobs fail so
// the broker can route them elsewhere.
func NewJobWorker(importer Importer, exporter Exporter, logger *log.Logger) *JobWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &JobWorker{importer: importer, exporter: exporter, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleJob matches amqp.Handler.
func (w *JobWorker) HandleJob(ctx context.Context, job *amqp.Job) error {
	logger := w.logger.With(log.FieldRequestID, job.RequestID, "job_type", job.Type)
	logger.InfoContext(ctx, "Processing job", "queued_at", job.Timestamp)

	var err error
	switch job.Type {
	case amqp.JobImport:
		err = w.handleImport(ctx, logger, job)
	case amqp.JobExportReport:
		err = w.handleExport(ctx, logger, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Job failed", log.FieldError, err)
		return err
	}
	logger.InfoContext(ctx, "Job completed")
	return nil
}

func (w *JobWorker) handleImport(ctx context.Context, logger *log.Logger, job *amqp.Job) error {
	if w.importer == nil {
		return fmt.Errorf("no importer configured")
	}
	logger.DebugContext(ctx, "Importing upload", log.FieldUploadID, job.UploadID)
	if err := w.importer.Process(ctx, job.UploadID); err != nil {
		return fmt.Errorf("import upload %s: %w", job.UploadID, err)
	}
	return nil
}

func (w *JobWorker) handleExport(ctx context.Context, logger *log.Logger, job *amqp.Job) error {
	if w.exporter == nil {
		return fmt.Errorf("no report exporter configured")
	}
	logger.DebugContext(ctx, "Exporting report", "months", job.Months)
	if err := w.exporter.Export(ctx, job.Months); err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	return nil
}
