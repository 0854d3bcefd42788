package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"finboard/internal/chartdata"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
	appweb "finboard/web"
)

// Services are the application services behind the handlers.
type Services struct {
	Dashboard *services.DashboardService
	Finance   *services.FinanceService
	Imports   *services.ImportService
	Exports   *services.ExportService
}

type Options struct {
	Addr           string
	DefaultRole    core.Role
	Currency       chartdata.CurrencyFormat
	MaxUploadBytes int64
	// Ping checks the database for /readyz. Nil skips the check.
	Ping func(ctx context.Context) error
}

type Server struct {
	http.Server
	templates *template.Template
	svc       Services
	opts      Options

	htmlCharts *chartdata.Adapter
	pngCharts  *chartdata.Adapter

	tracer      *trace.Middleware
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	logger      *log.Logger
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates.
func NewServer(svc Services, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.DefaultRole == "" {
		opts.DefaultRole = core.RoleAdmin
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		svc:         svc,
		opts:        opts,
		htmlCharts:  chartdata.NewAdapter(chartdata.EChartsRenderer{}, opts.Currency),
		pngCharts:   chartdata.NewAdapter(chartdata.PNGRenderer{}, opts.Currency),
		tracer:      trace.NewMiddleware(),
		detector:    security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		logger:      logger.WithComponent(log.ComponentHTTP),
		started:     time.Now(),
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, logger, http.MethodPost)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(logger)(handler)
	handler = log.Middleware(logger, trace.RequestID, s.detector.ExtractClientIP)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleDashboardPage)
	mux.HandleFunc("GET /reports", s.handleReportsPage)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /charts/monthly", s.handleChart(chartMonthly, false))
	mux.HandleFunc("GET /charts/departments", s.handleChart(chartDepartments, false))
	mux.HandleFunc("GET /charts/monthly.png", s.handleChart(chartMonthly, true))
	mux.HandleFunc("GET /charts/departments.png", s.handleChart(chartDepartments, true))

	mux.HandleFunc("GET /api/dashboard", s.handleAPIDashboard)
	mux.HandleFunc("GET /api/reports", s.handleAPIReports)

	mux.HandleFunc("GET /finance", s.handleLedger)
	mux.HandleFunc("GET /departments", s.handleListDepartments)
	mux.HandleFunc("POST /departments", s.handleCreateDepartment)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("POST /incomes", s.handleCreateIncome)
	mux.HandleFunc("GET /loans", s.handleListLoans)
	mux.HandleFunc("POST /loans", s.handleCreateLoan)
	mux.HandleFunc("GET /loans/{id}/breakdown", s.handleLoanBreakdown)

	mux.HandleFunc("GET /uploads", s.handleListUploads)
	mux.HandleFunc("POST /uploads", s.handleUpload)
	mux.HandleFunc("GET /uploads/{id}", s.handleUploadStatus)
	mux.HandleFunc("POST /reports/export", s.handleExportReport)
	mux.HandleFunc("GET /reports/export.xlsx", s.handleExportWorkbook)
}

// role resolves the caller role from the header set by the auth proxy.
// An unknown value yields a role that sees nothing.
func (s *Server) role(r *http.Request) core.Role {
	raw := r.Header.Get(HeaderUserRole)
	if raw == "" {
		return s.opts.DefaultRole
	}
	if role, ok := core.ParseRole(raw); ok {
		return role
	}
	return core.Role(strings.ToUpper(strings.TrimSpace(raw)))
}

// HeaderUserRole carries the authenticated role from the fronting proxy.
const HeaderUserRole = "X-User-Role"

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
