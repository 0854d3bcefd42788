// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Create endpoints accept either JSON bodies or form-encoded data.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finboard/internal/core"
)

// maxFormBytes caps JSON and form bodies; file uploads have their own limit.
const maxFormBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Money parses an amount such as "1200.50" into cents.
func (p *RequestBodyParser) Money(key string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(p.Get(key))
	if err != nil {
		return core.Money{}, fmt.Errorf("%s: %w", key, err)
	}
	return core.Money{Cents: cents}, nil
}

// Date parses a YYYY-MM-DD value.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	d, err := core.ParseDate(p.Get(key))
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: %w", key, core.ErrInvalidDate)
	}
	return d, nil
}

// DepartmentID parses a positive department id.
func (p *RequestBodyParser) DepartmentID(key string) (int64, error) {
	id, err := strconv.ParseInt(p.Get(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrNoDepartment
	}
	return id, nil
}

// Float parses a decimal number; wrap is returned on failure.
func (p *RequestBodyParser) Float(key string, wrap error) (float64, error) {
	f, err := strconv.ParseFloat(p.Get(key), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, wrap)
	}
	return f, nil
}

// Int parses an integer; wrap is returned on failure.
func (p *RequestBodyParser) Int(key string, wrap error) (int, error) {
	n, err := strconv.Atoi(p.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, wrap)
	}
	return n, nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type scope string

const (
	scopeDashboard scope = "dashboard"
	scopeReports   scope = "reports"
)

// parseScope reads ?scope=reports; anything else is the dashboard window.
func parseScope(q url.Values) scope {
	if strings.EqualFold(strings.TrimSpace(q.Get("scope")), string(scopeReports)) {
		return scopeReports
	}
	return scopeDashboard
}

// parseMonths reads an optional ?months=N override; 0 means the default window.
func parseMonths(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("months")))
	if err != nil || n < 1 || n > 120 {
		return 0
	}
	return n
}

// parseLimit reads an optional ?limit=N; 0 lets the service pick its default.
func parseLimit(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}
