package services

import (
	"context"
	"errors"
	"fmt"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sheets"
)

// ErrExportDisabled is returned when no report destination is configured.
var ErrExportDisabled = errors.New("report export is not configured")

type ExportService struct {
	dashboard *DashboardService
	writer    sheets.ReportWriter
	publisher JobPublisher
	logger    *log.Logger
}

func NewExportService(dashboard *DashboardService, writer sheets.ReportWriter, publisher JobPublisher, logger *log.Logger) *ExportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportService{dashboard: dashboard, writer: writer, publisher: publisher, logger: logger.WithComponent(log.ComponentSheets)}
}

// RequestExport queues an export of the report window, or runs it inline
// without a broker. queued reports which of the two happened.
func (s *ExportService) RequestExport(ctx context.Context, role core.Role, requestID string) (queued bool, err error) {
	if role != core.RoleAdmin {
		return false, forbidden(role, "export reports")
	}
	if s.writer == nil {
		return false, ErrExportDisabled
	}
	months := s.dashboard.ReportMonths()
	if s.publisher != nil {
		err := s.publisher.PublishReportExport(ctx, months, requestID)
		if err == nil {
			return true, nil
		}
		s.logger.WarnContext(ctx, "Queueing export failed, exporting inline", log.FieldError, err)
	}
	return false, s.Export(ctx, months)
}

// Export writes the admin report over months to the configured destination.
func (s *ExportService) Export(ctx context.Context, months int) error {
	if s.writer == nil {
		return ErrExportDisabled
	}
	r, err := s.dashboard.Report(ctx, core.RoleAdmin, months)
	if err != nil {
		return err
	}
	if err := s.writer.WriteReport(ctx, r.Report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	s.logger.InfoContext(ctx, "Report exported", log.FieldOperation, log.OpExport, "months", len(r.Months), "departments", len(r.Departments))
	return nil
}
