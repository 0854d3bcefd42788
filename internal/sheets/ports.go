package sheets

import (
	"context"

	"finboard/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter publishes a finished report to a spreadsheet.
	ReportWriter interface {
		WriteReport(ctx context.Context, r core.Report) error
	}
)

// ReportRows lays a report out as spreadsheet rows: a monthly block, a blank
// row, then a department block. Amounts are in currency units.
func ReportRows(r core.Report) [][]any {
	rows := [][]any{
		{"Financial report", r.GeneratedAt.Format("2006-01-02 15:04")},
		{},
		{"Month", "Income", "Expense", "Profit"},
	}
	for _, m := range r.Months {
		rows = append(rows, []any{m.Start.Format(core.ReportMonthLayout), m.Income.Units(), m.Expense.Units(), m.Profit().Units()})
	}
	rows = append(rows,
		[]any{"Total", r.Totals.Income.Units(), r.Totals.Expense.Units(), r.Totals.Income.Sub(r.Totals.Expense).Units()},
		[]any{},
		[]any{"Department", "Income", "Expense", "Net Profit"},
	)
	for _, d := range r.Departments {
		rows = append(rows, []any{d.Name, d.Income.Units(), d.Expense.Units(), d.Net().Units()})
	}
	return rows
}
