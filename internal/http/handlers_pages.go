package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"finboard/internal/chartdata"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/trace"
)

type chartKind string

const (
	chartMonthly     chartKind = "monthly"
	chartDepartments chartKind = "departments"
)

// pageData is shared by the dashboard and report templates.
type pageData struct {
	Title      string
	Role       core.Role
	Scope      scope
	ChartQuery string
	RequestID  string
	Payloads   chartPayloads
	IDs        chartIDs
	Content    any
}

type chartPayloads struct {
	Months      template.JS
	Departments template.JS
}

type chartIDs struct {
	MonthsData      string
	DeptData        string
	MonthlyChart    string
	DepartmentChart string
}

var pageChartIDs = chartIDs{
	MonthsData:      chartdata.MonthsDataID,
	DeptData:        chartdata.DeptDataID,
	MonthlyChart:    chartdata.MonthlyChartID,
	DepartmentChart: chartdata.DepartmentChartID,
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string {
			return s.opts.Currency.Format(m.Units())
		},
		"amount": func(v chartdata.Amount) string {
			return s.opts.Currency.Format(float64(v))
		},
		"date": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.String()
		},
		"negative": func(m core.Money) bool { return m.Cents < 0 },
		"lower":    strings.ToLower,
	}
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role := s.role(r)

	d, err := s.svc.Dashboard.Dashboard(ctx, role)
	if err != nil {
		s.fail(w, r, "dashboard", err)
		return
	}
	payloads, err := marshalPayloads(d.Months, d.Departments)
	if err != nil {
		s.fail(w, r, "dashboard", err)
		return
	}

	s.render(w, r, "dashboard.html", pageData{
		Title:     "Dashboard",
		Role:      role,
		Scope:     scopeDashboard,
		RequestID: trace.GetRequestID(ctx),
		Payloads:  payloads,
		IDs:       pageChartIDs,
		Content:   d,
	})
}

func (s *Server) handleReportsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role := s.role(r)
	months := parseMonths(r.URL.Query())

	rep, err := s.svc.Dashboard.Report(ctx, role, months)
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}
	payloads, err := marshalPayloads(rep.MonthRows, rep.DeptRows)
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}

	query := "?scope=reports"
	if months > 0 {
		query += fmt.Sprintf("&months=%d", months)
	}
	s.render(w, r, "reports.html", pageData{
		Title:      "Reports",
		Role:       role,
		Scope:      scopeReports,
		ChartQuery: query,
		RequestID:  trace.GetRequestID(ctx),
		Payloads:   payloads,
		IDs:        pageChartIDs,
		Content:    rep,
	})
}

// handleChart renders one chart surface from the same records the pages
// embed. The HTML variant is framed by the pages; the PNG variant is for
// printing and mail.
func (s *Server) handleChart(kind chartKind, png bool) http.HandlerFunc {
	adapter, contentType := s.htmlCharts, "text/html; charset=utf-8"
	if png {
		adapter, contentType = s.pngCharts, "image/png"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		role := s.role(r)
		q := r.URL.Query()
		sc := parseScope(q)

		raw, err := s.chartPayloads(ctx, role, sc, parseMonths(q))
		if err != nil {
			s.fail(w, r, "chart", err)
			return
		}

		var buf bytes.Buffer
		var surfaces chartdata.Surfaces
		if kind == chartMonthly {
			surfaces.Monthly = &buf
		} else {
			surfaces.Department = &buf
		}

		if err := adapter.Init(raw, surfaces); err != nil {
			if errors.Is(err, chartdata.ErrNoData) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			s.logger.ErrorContext(ctx, "Chart rendering failed",
				log.FieldChart, kind, log.FieldScope, sc, log.FieldRole, role, log.FieldError, err)
			ErrorResponse(http.StatusInternalServerError, "chart rendering failed").Write(w)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) chartPayloads(ctx context.Context, role core.Role, sc scope, months int) (chartdata.Payloads, error) {
	var (
		monthly []chartdata.MonthlyRecord
		depts   []chartdata.DepartmentRecord
	)
	if sc == scopeReports {
		rep, err := s.svc.Dashboard.Report(ctx, role, months)
		if err != nil {
			return chartdata.Payloads{}, err
		}
		monthly, depts = rep.MonthRows, rep.DeptRows
	} else {
		d, err := s.svc.Dashboard.Dashboard(ctx, role)
		if err != nil {
			return chartdata.Payloads{}, err
		}
		monthly, depts = d.Months, d.Departments
	}
	return encodeRecords(monthly, depts)
}

// encodeRecords marshals the chart records into adapter payloads.
// encoding/json escapes <, > and &, so the output is safe inside <script>.
func encodeRecords(months []chartdata.MonthlyRecord, depts []chartdata.DepartmentRecord) (chartdata.Payloads, error) {
	m, err := json.Marshal(months)
	if err != nil {
		return chartdata.Payloads{}, fmt.Errorf("encode months: %w", err)
	}
	d, err := json.Marshal(depts)
	if err != nil {
		return chartdata.Payloads{}, fmt.Errorf("encode departments: %w", err)
	}
	return chartdata.Payloads{Months: m, Departments: d}, nil
}

// marshalPayloads encodes the records for the page's JSON script blocks.
func marshalPayloads(months []chartdata.MonthlyRecord, depts []chartdata.DepartmentRecord) (chartPayloads, error) {
	p, err := encodeRecords(months, depts)
	if err != nil {
		return chartPayloads{}, err
	}
	return chartPayloads{Months: template.JS(p.Months), Departments: template.JS(p.Departments)}, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldPath, r.URL.Path, "template", name, log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "page rendering failed").Write(w)
		return
	}
	NewResponse().BodyHTML(buf.String()).Write(w)
}

// fail logs a service error and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	attrs := []any{log.FieldOperation, op, log.FieldRole, s.role(r), log.FieldStatusCode, status, log.FieldError, err}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed", attrs...)
	} else {
		s.logger.WarnContext(r.Context(), "Request rejected", attrs...)
	}
	ErrorFor(err).Write(w)
}
