package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"finboard/internal/core"
	"finboard/internal/importer"
	"finboard/internal/log"
	"finboard/internal/storage"
)

// ErrInvalidUpload marks uploads rejected before import starts.
var ErrInvalidUpload = errors.New("invalid upload")

// errUploadClaimed aborts a transaction whose upload another worker took.
var errUploadClaimed = errors.New("upload already claimed")

type UploadStore interface {
	CreateUpload(ctx context.Context, u core.Upload) error
	GetUpload(ctx context.Context, id string) (core.Upload, error)
	ListUploads(ctx context.Context, limit int) ([]core.Upload, error)
	MarkUploadFailed(ctx context.Context, id string, reason string) error
	InTx(ctx context.Context, fn func(tx *storage.SQLiteRepository) error) error
}

// JobPublisher queues background work. Nil means run inline.
type JobPublisher interface {
	PublishImport(ctx context.Context, uploadID, requestID string) error
	PublishReportExport(ctx context.Context, months int, requestID string) error
}

type ImportService struct {
	store      UploadStore
	importer   *importer.Importer
	publisher  JobPublisher
	uploadDir  string
	invalidate func()
	logger     *log.Logger
}

func NewImportService(store UploadStore, imp *importer.Importer, publisher JobPublisher, uploadDir string, invalidate func(), logger *log.Logger) *ImportService {
	if invalidate == nil {
		invalidate = func() {}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ImportService{
		store:      store,
		importer:   imp,
		publisher:  publisher,
		uploadDir:  uploadDir,
		invalidate: invalidate,
		logger:     logger.WithComponent(log.ComponentImport),
	}
}

// Submit saves the file, records the upload and either queues it or
// imports it right away. The returned upload reflects the final status
// when processed inline.
func (s *ImportService) Submit(ctx context.Context, role core.Role, kind core.UploadKind, fileName string, r io.Reader, requestID string) (core.Upload, error) {
	if !kind.AllowedFor(role) {
		return core.Upload{}, forbidden(role, "upload "+strings.ToLower(string(kind))+" files")
	}
	if _, err := core.DetectFormat(fileName); err != nil {
		return core.Upload{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	id := uuid.NewString()
	u := core.Upload{
		ID:       id,
		Kind:     kind,
		FileName: filepath.Base(fileName),
		Path:     filepath.Join(s.uploadDir, id+strings.ToLower(filepath.Ext(fileName))),
		Status:   core.UploadPending,
	}
	if err := saveFile(u.Path, r); err != nil {
		return u, err
	}
	if err := s.store.CreateUpload(ctx, u); err != nil {
		os.Remove(u.Path)
		return u, err
	}

	if s.publisher != nil {
		err := s.publisher.PublishImport(ctx, id, requestID)
		if err == nil {
			return u, nil
		}
		s.logger.WarnContext(ctx, "Queueing import failed, processing inline", log.FieldUploadID, id, log.FieldError, err)
	}

	if err := s.Process(ctx, id); err != nil {
		return u, err
	}
	return s.store.GetUpload(ctx, id)
}

func saveFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}
	return f.Close()
}

// Process imports a pending upload. The imported rows commit in the same
// transaction that claims the upload and records its outcome, so a
// redelivered job or a crash midway never imports a row twice. File level
// problems mark the upload failed; only bookkeeping errors are returned.
func (s *ImportService) Process(ctx context.Context, uploadID string) error {
	u, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if u.Status != core.UploadPending {
		s.logger.InfoContext(ctx, "Upload already processed", log.FieldUploadID, u.ID, "status", u.Status)
		return nil
	}

	var (
		res       importer.Result
		importErr error
	)
	err = s.store.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		claimed, err := tx.ClaimUpload(ctx, u.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return errUploadClaimed
		}
		if res, importErr = s.importFile(ctx, s.importer.With(tx), u); importErr != nil {
			return importErr
		}
		return tx.MarkUploadProcessed(ctx, u.ID, res.Imported, res.Skipped)
	})
	switch {
	case errors.Is(err, errUploadClaimed):
		s.logger.InfoContext(ctx, "Upload claimed by another worker", log.FieldUploadID, u.ID)
		return nil
	case importErr != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.ErrorContext(ctx, "Import failed", log.FieldUploadID, u.ID, log.FieldUploadKind, u.Kind, log.FieldError, importErr)
		return s.store.MarkUploadFailed(ctx, u.ID, importErr.Error())
	case err != nil:
		return err
	}

	if res.Imported > 0 {
		s.invalidate()
	}
	s.logger.InfoContext(ctx, "Upload processed", log.FieldUploadID, u.ID, "imported", res.Imported, "skipped", res.Skipped)
	return nil
}

// Uploads lists the most recent uploads the role is allowed to submit,
// newest first.
func (s *ImportService) Uploads(ctx context.Context, role core.Role, limit int) ([]core.Upload, error) {
	if limit <= 0 || limit > maxUploadList {
		limit = maxUploadList
	}
	all, err := s.store.ListUploads(ctx, maxUploadList)
	if err != nil {
		return nil, err
	}
	out := make([]core.Upload, 0, min(limit, len(all)))
	for _, u := range all {
		if len(out) == limit {
			break
		}
		if u.Kind.AllowedFor(role) {
			out = append(out, u)
		}
	}
	return out, nil
}

const maxUploadList = 100

func (s *ImportService) importFile(ctx context.Context, im *importer.Importer, u core.Upload) (importer.Result, error) {
	format, err := core.DetectFormat(u.FileName)
	if err != nil {
		return importer.Result{}, err
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return importer.Result{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, u.Kind, format, f)
}

func (s *ImportService) Upload(ctx context.Context, id string) (core.Upload, error) {
	return s.store.GetUpload(ctx, id)
}
