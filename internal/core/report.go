package core

import "time"

// Month label layouts: the dashboard uses the short form, reports the long one.
const (
	DashboardMonthLayout = "Jan 2006"
	ReportMonthLayout    = "January 2006"
)

// Report is the monthly and per department financial report.
type Report struct {
	GeneratedAt time.Time
	Months      []MonthTotals
	Departments []DepartmentTotals
	Totals      Totals
}

// Profit sums profit over the months of the report.
func (r Report) Profit() Money {
	var p Money
	for _, m := range r.Months {
		p.Cents += m.Profit().Cents
	}
	return p
}
