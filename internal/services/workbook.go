package services

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"finboard/internal/core"
)

const (
	monthlySheet     = "Monthly"
	departmentsSheet = "Departments"
)

// WriteReportWorkbook renders the report as an xlsx workbook with a monthly
// sheet and a department sheet.
func WriteReportWorkbook(w io.Writer, r core.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), monthlySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(departmentsSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#007BFF"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("number style: %w", err)
	}

	monthly := [][]any{{"Month", "Income", "Expense", "Profit"}}
	for _, m := range r.Months {
		monthly = append(monthly, []any{
			m.Start.Format(core.ReportMonthLayout), m.Income.Units(), m.Expense.Units(), m.Profit().Units(),
		})
	}
	monthly = append(monthly, []any{"Total", r.Totals.Income.Units(), r.Totals.Expense.Units(), r.Totals.Income.Sub(r.Totals.Expense).Units()})

	depts := [][]any{{"Department", "Income", "Expense", "Net", "Incomes", "Expenses"}}
	for _, d := range r.Departments {
		depts = append(depts, []any{d.Name, d.Income.Units(), d.Expense.Units(), d.Net().Units(), d.IncomeCount, d.ExpenseCount})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{monthlySheet, monthly},
		{departmentsSheet, depts},
	} {
		for i, row := range sheet.rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(sheet.name, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet.name, i+1, err)
			}
		}
		last := len(sheet.rows[0])
		lastCol, _ := excelize.ColumnNumberToName(last)
		f.SetCellStyle(sheet.name, "A1", lastCol+"1", headerStyle)
		if len(sheet.rows) > 1 {
			f.SetCellStyle(sheet.name, "B2", fmt.Sprintf("D%d", len(sheet.rows)), numberStyle)
		}
		f.SetColWidth(sheet.name, "A", "A", 22)
		f.SetColWidth(sheet.name, "B", lastCol, 14)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
