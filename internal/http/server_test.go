package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finboard/internal/chartdata"
	"finboard/internal/core"
	"finboard/internal/importer"
	"finboard/internal/services"
	"finboard/internal/sheets/memory"
	"finboard/internal/storage"
)

type testEnv struct {
	srv    *Server
	repo   *storage.SQLiteRepository
	sheets *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	dash := services.NewDashboardService(repo, services.DashboardOptions{CacheTTL: time.Minute}, nil)
	mem := memory.New()
	svc := Services{
		Dashboard: dash,
		Finance:   services.NewFinanceService(repo, dash.Invalidate, nil),
		Imports:   services.NewImportService(repo, importer.New(repo, nil), nil, t.TempDir(), dash.Invalidate, nil),
		Exports:   services.NewExportService(dash, mem, nil, nil),
	}
	currency, err := chartdata.NewCurrencyFormat("₹", "en-IN")
	if err != nil {
		t.Fatalf("NewCurrencyFormat: %v", err)
	}
	srv := NewServer(svc, Options{Currency: currency, Ping: repo.Ping}, nil)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, repo: repo, sheets: mem}
}

func (e *testEnv) do(t *testing.T, method, target string, role core.Role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if role != "" {
		req.Header.Set(HeaderUserRole, string(role))
	}
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) department(t *testing.T, name string) int64 {
	t.Helper()
	d, err := e.repo.CreateDepartment(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	return d.ID
}

func today() string {
	return time.Now().Format(core.DateLayout)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestDashboardPage(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Sales")

	body := fmt.Sprintf(`{"department_id": %d, "expense_type": "rent", "amount": "1200.50", "date": %q}`, dept, today())
	if rec := env.do(t, http.MethodPost, "/expenses", core.RoleAdmin, body); rec.Code != http.StatusCreated {
		t.Fatalf("POST /expenses = %d %s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d %s", rec.Code, rec.Body.String())
	}
	page := rec.Body.String()
	for _, want := range []string{
		`<script type="application/json" id="months-data">[`,
		`<script type="application/json" id="dept-data">[`,
		`id="monthlyChart"`,
		`id="departmentChart"`,
		`"name":"Sales"`,
		`"total_expense":1200.5`,
		"₹1,200.5",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("dashboard page lacks %q", want)
		}
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}
}

func TestReportsPage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/reports?months=3", core.RoleAdmin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /reports = %d %s", rec.Code, rec.Body.String())
	}
	page := rec.Body.String()
	if !strings.Contains(page, "/charts/monthly?scope=reports&amp;months=3") {
		t.Errorf("report charts are not scoped to the report window")
	}
	if n := strings.Count(page, "<tr><td>"); n < 3 {
		t.Errorf("report rows = %d, want at least 3 months", n)
	}
}

func TestAPIDashboard_RoleFiltering(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Sales")
	env.do(t, http.MethodPost, "/expenses", core.RoleAdmin,
		fmt.Sprintf(`{"department_id": %d, "expense_type": "rent", "amount": 300, "date": %q}`, dept, today()))
	env.do(t, http.MethodPost, "/incomes", core.RoleAdmin,
		fmt.Sprintf(`{"department_id": %d, "service_type": "consulting", "amount": 1000, "date": %q}`, dept, today()))

	tests := []struct {
		role        core.Role
		wantIncome  float64
		wantExpense float64
		wantRecentE int
		wantRecentI int
	}{
		{core.RoleAdmin, 1000, 300, 1, 1},
		{core.RoleExpenseUser, 0, 300, 1, 0},
		{core.RoleIncomeUser, 1000, 0, 0, 1},
		{"GUEST", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/dashboard", tt.role, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("GET /api/dashboard = %d", rec.Code)
			}
			d := decode[dashboardJSON](t, rec)
			if d.Totals.Income != tt.wantIncome || d.Totals.Expense != tt.wantExpense {
				t.Errorf("totals = %+v", d.Totals)
			}
			if len(d.RecentExpenses) != tt.wantRecentE || len(d.RecentIncomes) != tt.wantRecentI {
				t.Errorf("recent = %d expenses, %d incomes", len(d.RecentExpenses), len(d.RecentIncomes))
			}
			if len(d.Months) != 6 {
				t.Errorf("months = %d, want 6", len(d.Months))
			}
		})
	}
}

func TestAPIReports(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/reports", core.RoleAdmin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/reports = %d", rec.Code)
	}
	rep := decode[reportJSON](t, rec)
	if len(rep.Months) != 12 {
		t.Errorf("months = %d, want 12", len(rep.Months))
	}
	want := time.Now().Format(core.ReportMonthLayout)
	if got := rep.Months[len(rep.Months)-1].Month; got != want {
		t.Errorf("last month = %q, want %q", got, want)
	}
}

func TestCreateEndpoints(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Ops")

	tests := []struct {
		name   string
		target string
		role   core.Role
		body   string
		want   int
	}{
		{"department form", "/departments", core.RoleAdmin, "name=Marketing", http.StatusCreated},
		{"duplicate department", "/departments", core.RoleAdmin, "name=Ops", http.StatusConflict},
		{"department by expense user", "/departments", core.RoleExpenseUser, "name=Legal", http.StatusForbidden},
		{"empty department name", "/departments", core.RoleAdmin, "name=+", http.StatusUnprocessableEntity},
		{"expense", "/expenses", core.RoleExpenseUser, fmt.Sprintf("department_id=%d&expense_type=rent&amount=10&date=%s", dept, today()), http.StatusCreated},
		{"expense by income user", "/expenses", core.RoleIncomeUser, fmt.Sprintf("department_id=%d&expense_type=rent&amount=10&date=%s", dept, today()), http.StatusForbidden},
		{"expense negative amount", "/expenses", core.RoleAdmin, fmt.Sprintf("department_id=%d&expense_type=rent&amount=-1&date=%s", dept, today()), http.StatusUnprocessableEntity},
		{"expense bad date", "/expenses", core.RoleAdmin, fmt.Sprintf("department_id=%d&expense_type=rent&amount=1&date=yesterday", dept), http.StatusUnprocessableEntity},
		{"expense unknown department", "/expenses", core.RoleAdmin, fmt.Sprintf("department_id=999&expense_type=rent&amount=1&date=%s", today()), http.StatusUnprocessableEntity},
		{"income", "/incomes", core.RoleIncomeUser, fmt.Sprintf(`{"department_id": %d, "service_type": "audit", "amount": 50.25, "date": %q}`, dept, today()), http.StatusCreated},
		{"income missing department", "/incomes", core.RoleAdmin, `{"service_type": "audit", "amount": 5, "date": "2024-01-01"}`, http.StatusUnprocessableEntity},
		{"malformed json", "/incomes", core.RoleAdmin, `{"service_type"`, http.StatusBadRequest},
		{"loan", "/loans", core.RoleAdmin, "name=Van&principal=12000&interest_rate=0&tenure_months=12", http.StatusCreated},
		{"loan bad tenure", "/loans", core.RoleAdmin, "name=Van&principal=12000&interest_rate=5&tenure_months=x", http.StatusUnprocessableEntity},
		{"loan by income user", "/loans", core.RoleIncomeUser, "name=Van&principal=12000&interest_rate=5&tenure_months=12", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.target, tt.role, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("POST %s = %d %s, want %d", tt.target, rec.Code, rec.Body.String(), tt.want)
			}
			if rec.Code >= 400 {
				e := decode[errorBody](t, rec)
				if e.Error == "" {
					t.Errorf("error body is empty")
				}
			}
		})
	}
}

func TestLoanBreakdown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/loans", core.RoleAdmin, `{"name": "Van", "principal": 12000, "interest_rate": 0, "tenure_months": 12}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /loans = %d %s", rec.Code, rec.Body.String())
	}
	loan := decode[loanJSON](t, rec)
	if loan.EMI != 1000 {
		t.Errorf("EMI = %v, want 1000", loan.EMI)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/loans/%d/breakdown", loan.ID), core.RoleAdmin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET breakdown = %d", rec.Code)
	}
	b := decode[breakdownJSON](t, rec)
	if len(b.Installments) != 12 || b.Installments[11].Remaining != 0 || b.TotalInterest != 0 {
		t.Errorf("breakdown = %+v", b)
	}

	list := decode[[]loanJSON](t, env.do(t, http.MethodGet, "/loans", core.RoleAdmin, ""))
	if len(list) != 1 {
		t.Errorf("loans = %d, want 1", len(list))
	}

	for target, want := range map[string]int{
		"/loans/abc/breakdown": http.StatusBadRequest,
		"/loans/99/breakdown":  http.StatusNotFound,
	} {
		if rec := env.do(t, http.MethodGet, target, core.RoleAdmin, ""); rec.Code != want {
			t.Errorf("GET %s = %d, want %d", target, rec.Code, want)
		}
	}
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/loans/%d/breakdown", loan.ID), core.RoleExpenseUser, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expense user breakdown = %d, want 403", rec.Code)
	}
}

func TestCharts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/charts/monthly", core.RoleAdmin, "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("GET /charts/monthly = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), chartdata.MonthlyChartID) {
		t.Errorf("chart page lacks the %s container", chartdata.MonthlyChartID)
	}

	rec = env.do(t, http.MethodGet, "/charts/monthly.png?scope=reports", core.RoleAdmin, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("GET /charts/monthly.png = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("monthly.png is not a PNG")
	}

	// no departments: nothing to draw
	if rec := env.do(t, http.MethodGet, "/charts/departments.png", core.RoleAdmin, ""); rec.Code != http.StatusNoContent {
		t.Errorf("GET /charts/departments.png = %d, want 204", rec.Code)
	}
}

func multipartUpload(t *testing.T, kind, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("kind", kind); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Sales")

	csv := fmt.Sprintf("department_id,expense_type,amount,date\n%d,rent,100.00,%s\n%d,,1,%s\n", dept, today(), dept, today())
	body, contentType := multipartUpload(t, "expense", "march.csv", csv)
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderUserRole, string(core.RoleExpenseUser))
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /uploads = %d %s", rec.Code, rec.Body.String())
	}
	u := decode[uploadJSON](t, rec)
	if u.Status != string(core.UploadProcessed) || u.Imported != 1 || u.Skipped != 1 {
		t.Errorf("upload = %+v", u)
	}
	if loc := rec.Header().Get("Location"); loc != "/uploads/"+u.ID {
		t.Errorf("Location = %q", loc)
	}

	status := decode[uploadJSON](t, env.do(t, http.MethodGet, "/uploads/"+u.ID, core.RoleAdmin, ""))
	if status.ID != u.ID || status.Imported != 1 {
		t.Errorf("status = %+v", status)
	}
	if rec := env.do(t, http.MethodGet, "/uploads/unknown", core.RoleAdmin, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown upload = %d, want 404", rec.Code)
	}

	d := decode[dashboardJSON](t, env.do(t, http.MethodGet, "/api/dashboard", core.RoleAdmin, ""))
	if d.Totals.Expense != 100 {
		t.Errorf("dashboard expense after import = %v, want 100", d.Totals.Expense)
	}
}

func TestUpload_Rejected(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		kind     string
		fileName string
		role     core.Role
		want     int
	}{
		{"unknown kind", "payroll", "a.csv", core.RoleAdmin, http.StatusUnprocessableEntity},
		{"legacy excel", "expense", "a.xls", core.RoleAdmin, http.StatusUnprocessableEntity},
		{"income file by expense user", "income", "a.csv", core.RoleExpenseUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.kind, tt.fileName, "name\nx\n")
			req := httptest.NewRequest(http.MethodPost, "/uploads", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set(HeaderUserRole, string(tt.role))
			rec := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("POST /uploads = %d %s, want %d", rec.Code, rec.Body.String(), tt.want)
			}
		})
	}

	if rec := env.do(t, http.MethodPost, "/uploads", core.RoleAdmin, "kind=expense"); rec.Code != http.StatusBadRequest {
		t.Errorf("non multipart upload = %d, want 400", rec.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/reports/export", core.RoleIncomeUser, ""); rec.Code != http.StatusForbidden {
		t.Errorf("export by income user = %d, want 403", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/reports/export", core.RoleAdmin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d %s", rec.Code, rec.Body.String())
	}
	if n := len(env.sheets.Reports()); n != 1 {
		t.Errorf("reports written = %d, want 1", n)
	}

	rec = env.do(t, http.MethodGet, "/reports/export.xlsx", core.RoleAdmin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /reports/export.xlsx = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("workbook is not a zip archive")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /readyz = %d %s", rec.Code, rec.Body.String())
	}
	ready := decode[map[string]any](t, rec)
	checks, _ := ready["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["templates"] != "ok" {
		t.Errorf("checks = %v", checks)
	}

	env.do(t, http.MethodGet, "/api/dashboard", core.RoleAdmin, "")
	rec = env.do(t, http.MethodGet, "/metrics", "", "")
	metrics := rec.Body.String()
	for _, want := range []string{"http_requests_total ", `cache_entries{type="dashboard"} 1`, "uptime_seconds "} {
		if !strings.Contains(metrics, want) {
			t.Errorf("metrics lack %q", want)
		}
	}
}

func TestReady_DatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	env.srv.opts.Ping = func(context.Context) error { return fmt.Errorf("database is closed") }
	if rec := env.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz = %d, want 503", rec.Code)
	}
}

func TestRole(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		header string
		want   core.Role
	}{
		{"", core.RoleAdmin},
		{"expense_user", core.RoleExpenseUser},
		{" guest ", "GUEST"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set(HeaderUserRole, tt.header)
		}
		if got := env.srv.role(req); got != tt.want {
			t.Errorf("role(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRateLimit_Posts(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{"name": {"x"}}.Encode()
	var limited bool
	for i := 0; i < 70; i++ {
		if rec := env.do(t, http.MethodPost, "/departments", core.RoleExpenseUser, form); rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Errorf("POST requests were never rate limited")
	}
	if rec := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("GET after POST limit = %d, want 200", rec.Code)
	}
}

func TestLedger(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Sales")
	for _, req := range []struct{ target, body string }{
		{"/expenses", fmt.Sprintf(`{"department_id": %d, "expense_type": "rent", "amount": "300", "date": %q}`, dept, today())},
		{"/incomes", fmt.Sprintf(`{"department_id": %d, "service_type": "audit", "amount": "900", "date": %q}`, dept, today())},
		{"/loans", "name=Van&principal=1000&interest_rate=12&tenure_months=12"},
	} {
		if rec := env.do(t, http.MethodPost, req.target, core.RoleAdmin, req.body); rec.Code != http.StatusCreated {
			t.Fatalf("POST %s = %d %s", req.target, rec.Code, rec.Body.String())
		}
	}

	tests := []struct {
		role                      core.Role
		expenses, incomes, loans  int
		wantIncome, wantExpense   float64
		hideExpenses, hideIncomes bool
	}{
		{role: core.RoleAdmin, expenses: 1, incomes: 1, loans: 1, wantIncome: 900, wantExpense: 300},
		{role: core.RoleExpenseUser, expenses: 1, wantExpense: 300, hideIncomes: true},
		{role: core.RoleIncomeUser, incomes: 1, wantIncome: 900, hideExpenses: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/finance", tt.role, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("GET /finance = %d %s", rec.Code, rec.Body.String())
			}
			l := decode[ledgerJSON](t, rec)
			if len(l.Expenses) != tt.expenses || len(l.Incomes) != tt.incomes || len(l.Loans) != tt.loans {
				t.Fatalf("ledger = %+v", l)
			}
			if l.Totals.Income != tt.wantIncome || l.Totals.Expense != tt.wantExpense {
				t.Errorf("totals = %+v", l.Totals)
			}
			body := rec.Body.String()
			if tt.hideExpenses && strings.Contains(body, `"expenses"`) {
				t.Errorf("expenses visible to %s", tt.role)
			}
			if tt.hideIncomes && strings.Contains(body, `"incomes"`) {
				t.Errorf("incomes visible to %s", tt.role)
			}
			if tt.role != core.RoleAdmin && strings.Contains(body, `"loans"`) {
				t.Errorf("loans visible to %s", tt.role)
			}
		})
	}
}

func TestListUploads(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Sales")

	var ids []string
	for _, up := range []struct {
		kind, content string
		role          core.Role
	}{
		{"expense", fmt.Sprintf("department_id,expense_type,amount,date\n%d,rent,1,%s\n", dept, today()), core.RoleExpenseUser},
		{"income", fmt.Sprintf("department_id,service_type,amount,date\n%d,audit,1,%s\n", dept, today()), core.RoleIncomeUser},
	} {
		body, contentType := multipartUpload(t, up.kind, up.kind+".csv", up.content)
		req := httptest.NewRequest(http.MethodPost, "/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(HeaderUserRole, string(up.role))
		rec := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("POST /uploads = %d %s", rec.Code, rec.Body.String())
		}
		ids = append(ids, decode[uploadJSON](t, rec).ID)
	}

	all := decode[[]uploadJSON](t, env.do(t, http.MethodGet, "/uploads", core.RoleAdmin, ""))
	if len(all) != 2 || all[0].ID != ids[1] || all[1].ID != ids[0] {
		t.Fatalf("admin uploads = %+v, want newest first", all)
	}
	own := decode[[]uploadJSON](t, env.do(t, http.MethodGet, "/uploads?limit=10", core.RoleExpenseUser, ""))
	if len(own) != 1 || own[0].Kind != string(core.UploadExpense) {
		t.Fatalf("expense user uploads = %+v", own)
	}
	limited := decode[[]uploadJSON](t, env.do(t, http.MethodGet, "/uploads?limit=1", core.RoleAdmin, ""))
	if len(limited) != 1 || limited[0].ID != ids[1] {
		t.Fatalf("limited uploads = %+v", limited)
	}
}

func TestChartPNG_SingleMonth(t *testing.T) {
	env := newTestEnv(t)
	dept := env.department(t, "Sales")
	body := fmt.Sprintf(`{"department_id": %d, "expense_type": "rent", "amount": "50", "date": %q}`, dept, today())
	if rec := env.do(t, http.MethodPost, "/expenses", core.RoleAdmin, body); rec.Code != http.StatusCreated {
		t.Fatalf("POST /expenses = %d %s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/charts/monthly.png?scope=reports&months=1", core.RoleAdmin, "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("GET /charts/monthly.png = %d %q", rec.Code, rec.Body.String())
	}
}

func TestEncodeRecordsEscapesMarkup(t *testing.T) {
	p, err := encodeRecords(nil, []chartdata.DepartmentRecord{{Name: "</script><b>"}})
	if err != nil {
		t.Fatalf("encodeRecords: %v", err)
	}
	if string(p.Months) != "null" {
		t.Errorf("months = %s", p.Months)
	}
	if strings.Contains(string(p.Departments), "<") {
		t.Errorf("departments not escaped: %s", p.Departments)
	}
	page, err := marshalPayloads(nil, []chartdata.DepartmentRecord{{Name: "Ops"}})
	if err != nil {
		t.Fatalf("marshalPayloads: %v", err)
	}
	if !strings.Contains(string(page.Departments), `"name":"Ops"`) {
		t.Errorf("page departments = %s", page.Departments)
	}
}
