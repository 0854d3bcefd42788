package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"finboard/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"department_id": 3, "type": " rent ", "amount": 42.5, "date": "2024-03-01"}`
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("type"); got != "rent" {
		t.Errorf("Get('type') = %q, want 'rent'", got)
	}
	if id, err := parser.DepartmentID("department_id"); err != nil || id != 3 {
		t.Errorf("DepartmentID() = %d, %v", id, err)
	}
	if m, err := parser.Money("amount"); err != nil || m.Cents != 4250 {
		t.Errorf("Money() = %d, %v", m.Cents, err)
	}
	if d, err := parser.Date("date"); err != nil || d.String() != "2024-03-01" {
		t.Errorf("Date() = %v, %v", d, err)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "name=Sales+%26+Marketing&rate=8.5&tenure=24&bell=%07x"
	req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.Get("name"); got != "Sales & Marketing" {
		t.Errorf("Get('name') = %q", got)
	}
	if got := parser.Get("bell"); got != "x" {
		t.Errorf("control characters kept: %q", got)
	}
	if f, err := parser.Float("rate", core.ErrInvalidRate); err != nil || f != 8.5 {
		t.Errorf("Float() = %v, %v", f, err)
	}
	if n, err := parser.Int("tenure", core.ErrInvalidTenure); err != nil || n != 24 {
		t.Errorf("Int() = %v, %v", n, err)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("amount=-5&date=03/01/2024&department_id=abc&rate=high"))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := parser.Money("amount"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Money() error = %v", err)
	}
	if _, err := parser.Date("date"); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("Date() error = %v", err)
	}
	if _, err := parser.DepartmentID("department_id"); !errors.Is(err, core.ErrNoDepartment) {
		t.Errorf("DepartmentID() error = %v", err)
	}
	if _, err := parser.Float("rate", core.ErrInvalidRate); !errors.Is(err, core.ErrInvalidRate) {
		t.Errorf("Float() error = %v", err)
	}

	bad := NewRequestBodyParser(httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"broken"`)))
	if err := bad.Parse(); err == nil {
		t.Errorf("Parse() accepted malformed JSON")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	parser := NewRequestBodyParser(httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("")))
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestParseScopeAndMonths(t *testing.T) {
	tests := []struct {
		query      string
		wantScope  scope
		wantMonths int
	}{
		{"", scopeDashboard, 0},
		{"scope=reports", scopeReports, 0},
		{"scope=REPORTS&months=3", scopeReports, 3},
		{"scope=other&months=0", scopeDashboard, 0},
		{"months=500", scopeDashboard, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			if got := parseScope(q); got != tt.wantScope {
				t.Errorf("parseScope() = %q, want %q", got, tt.wantScope)
			}
			if got := parseMonths(q); got != tt.wantMonths {
				t.Errorf("parseMonths() = %d, want %d", got, tt.wantMonths)
			}
		})
	}
}
