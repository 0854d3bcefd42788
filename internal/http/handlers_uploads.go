package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
)

type uploadJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	FileName  string    `json:"file_name"`
	Status    string    `json:"status"`
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUploadJSON(u core.Upload) uploadJSON {
	return uploadJSON{
		ID:        u.ID,
		Kind:      string(u.Kind),
		FileName:  u.FileName,
		Status:    string(u.Status),
		Imported:  u.Imported,
		Skipped:   u.Skipped,
		Error:     u.Error,
		CreatedAt: u.CreatedAt,
	}
}

// handleUpload accepts a multipart form with a "kind" field and a "file"
// part. A pending upload answers 202, an inline import 201.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes)).Write(w)
			return
		}
		BadRequestError("expected a multipart form").Write(w)
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind, err := core.ParseUploadKind(r.FormValue("kind"))
	if err != nil {
		s.fail(w, r, "upload", fmt.Errorf("%w: %v", services.ErrInvalidUpload, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file").Write(w)
		return
	}
	defer file.Close()

	u, err := s.svc.Imports.Submit(ctx, s.role(r), kind, header.Filename, file, trace.GetRequestID(ctx))
	if err != nil {
		s.fail(w, r, "upload", err)
		return
	}

	status := http.StatusCreated
	if u.Status == core.UploadPending {
		status = http.StatusAccepted
	}
	s.logger.InfoContext(ctx, "Upload accepted",
		log.FieldUploadID, u.ID, log.FieldUploadKind, u.Kind, "status", u.Status, log.FieldRole, s.role(r))
	NewResponse().Status(status).Header("Location", "/uploads/"+u.ID).JSON(toUploadJSON(u)).Write(w)
}

// handleListUploads lists recent uploads of the kinds the role may submit, newest first.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.svc.Imports.Uploads(r.Context(), s.role(r), parseLimit(r.URL.Query()))
	if err != nil {
		s.fail(w, r, "list_uploads", err)
		return
	}
	out := make([]uploadJSON, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, toUploadJSON(u))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Imports.Upload(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "upload_status", err)
		return
	}
	NewResponse().JSON(toUploadJSON(u)).Write(w)
}

// handleExportReport writes the report to the spreadsheet, or queues it
// when a broker is configured.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	queued, err := s.svc.Exports.RequestExport(ctx, s.role(r), trace.GetRequestID(ctx))
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	if queued {
		NewResponse().Status(http.StatusAccepted).JSON(map[string]string{"status": "queued"}).Write(w)
		return
	}
	NewResponse().JSON(map[string]string{"status": "exported"}).Write(w)
}

// handleExportWorkbook streams the caller's report as an xlsx workbook.
func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, err := s.svc.Dashboard.Report(ctx, s.role(r), parseMonths(r.URL.Query()))
	if err != nil {
		s.fail(w, r, "export_workbook", err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteReportWorkbook(&buf, rep.Report); err != nil {
		s.fail(w, r, "export_workbook", err)
		return
	}
	name := fmt.Sprintf("finboard-report-%s.xlsx", rep.GeneratedAt.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
