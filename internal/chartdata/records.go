// Package chartdata turns the monthly and department aggregates embedded in
// the dashboard page into the series a charting library draws, and hands
// them to a Renderer.
package chartdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Identifiers shared with the dashboard template.
const (
	MonthsDataID      = "months-data"
	DeptDataID        = "dept-data"
	MonthlyChartID    = "monthlyChart"
	DepartmentChartID = "departmentChart"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a numeric record field. It decodes JSON numbers, numeric strings
// (decimal columns are often serialized as strings) and null, which counts as 0.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
	}
	*a = Amount(f)
	return nil
}

// MonthlyRecord is one month of the income/expense trend, in chronological order.
type MonthlyRecord struct {
	Month   string `json:"month"`
	Income  Amount `json:"income"`
	Expense Amount `json:"expense"`
	Profit  Amount `json:"profit"`
}

// DepartmentRecord holds the booked totals of one department. Missing totals are 0.
type DepartmentRecord struct {
	Name         string `json:"name"`
	TotalIncome  Amount `json:"total_income"`
	TotalExpense Amount `json:"total_expense"`
}

// Net returns income minus expense.
func (d DepartmentRecord) Net() float64 {
	return float64(d.TotalIncome) - float64(d.TotalExpense)
}

// ParseRecords decodes a JSON array of records. Absent, empty or malformed
// input yields an empty slice; the error is never surfaced because the page
// data is optional.
func ParseRecords[T any](raw []byte) []T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

// ParseMonthly decodes the months-data payload.
func ParseMonthly(raw []byte) []MonthlyRecord {
	return ParseRecords[MonthlyRecord](raw)
}

// ParseDepartments decodes the dept-data payload.
func ParseDepartments(raw []byte) []DepartmentRecord {
	return ParseRecords[DepartmentRecord](raw)
}
