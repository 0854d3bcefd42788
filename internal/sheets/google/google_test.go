package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finboard/internal/core"
)

type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	calls    []string
	written  [][]any
	failGets bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		if f.failGets {
			http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
			return
		}
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.titles = append(f.titles, req.Requests[0].AddSheet.Properties.Title)
		io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.written = vr.Values
		io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestExporter(t *testing.T, fake *fakeSheets) *Exporter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-1", "Report", nil)
}

func sampleReport() core.Report {
	return core.Report{
		GeneratedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Months: []core.MonthTotals{
			{Start: core.NewDate(2024, 3, 1), Income: core.Money{Cents: 150000}, Expense: core.Money{Cents: 50000}},
		},
		Departments: []core.DepartmentTotals{{Name: "Sales", Income: core.Money{Cents: 150000}}},
		Totals:      core.Totals{Income: core.Money{Cents: 150000}, Expense: core.Money{Cents: 50000}},
	}
}

func TestExporter_CreatesSheetAndWritesRows(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	e := newTestExporter(t, fake)

	if err := e.WriteReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	if len(fake.titles) != 2 || fake.titles[1] != "Report" {
		t.Fatalf("sheet not created: %v", fake.titles)
	}
	if len(fake.written) < 4 {
		t.Fatalf("written rows = %v", fake.written)
	}
	month := fake.written[3]
	if month[0] != "March 2024" || month[3] != float64(1000) {
		t.Errorf("month row = %v", month)
	}

	// second export reuses the sheet
	fake.calls = nil
	if err := e.WriteReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("WriteReport again: %v", err)
	}
	for _, c := range fake.calls {
		if strings.HasSuffix(c, ":batchUpdate") {
			t.Fatalf("sheet created twice: %v", fake.calls)
		}
	}
}

func TestExporter_PropagatesAPIErrors(t *testing.T) {
	e := newTestExporter(t, &fakeSheets{failGets: true})
	err := e.WriteReport(context.Background(), sampleReport())
	if err == nil || !strings.Contains(err.Error(), "get spreadsheet") {
		t.Fatalf("WriteReport error = %v", err)
	}
}

func TestNew_MissingConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Config{}, nil); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("New() error = %v", err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's Report"); got != "'Bob''s Report'" {
		t.Fatalf("quoteSheet = %q", got)
	}
}
