package core

import "time"

// MonthTotals is the income and expense sum of one calendar month.
type MonthTotals struct {
	Start   Date // first day of the month
	Income  Money
	Expense Money
}

// Profit returns income minus expense.
func (m MonthTotals) Profit() Money {
	return m.Income.Sub(m.Expense)
}

// DepartmentTotals aggregates incomes and expenses booked on one department.
type DepartmentTotals struct {
	Name         string
	Income       Money
	Expense      Money
	IncomeCount  int
	ExpenseCount int
}

// Net returns income minus expense.
func (d DepartmentTotals) Net() Money {
	return d.Income.Sub(d.Expense)
}

// Totals are the grand totals shown on top of the dashboard.
type Totals struct {
	Income        Money
	Expense       Money
	LoanPrincipal Money
	ActiveLoans   int
}

// MonthSpan is a closed date range covering one calendar month.
type MonthSpan struct {
	Start Date
	End   Date
}

// LastMonths returns the n calendar months ending with the month of now,
// oldest first.
func LastMonths(now time.Time, n int) []MonthSpan {
	if n < 1 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	spans := make([]MonthSpan, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := first.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, -1)
		spans = append(spans, MonthSpan{Start: Date{Time: start}, End: Date{Time: end}})
	}
	return spans
}
