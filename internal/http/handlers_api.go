package http

import (
	"net/http"
	"time"

	"finboard/internal/chartdata"
	"finboard/internal/core"
	"finboard/internal/services"
)

type totalsJSON struct {
	Income        float64 `json:"income"`
	Expense       float64 `json:"expense"`
	NetProfit     float64 `json:"net_profit"`
	LoanPrincipal float64 `json:"loan_principal"`
	ActiveLoans   int     `json:"active_loans"`
}

type entryJSON struct {
	ID           int64   `json:"id"`
	DepartmentID int64   `json:"department_id"`
	Department   string  `json:"department"`
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
}

type dashboardJSON struct {
	Role           core.Role                    `json:"role"`
	ShowIncome     bool                         `json:"show_income"`
	ShowExpenses   bool                         `json:"show_expenses"`
	ShowLoans      bool                         `json:"show_loans"`
	Totals         totalsJSON                   `json:"totals"`
	Months         []chartdata.MonthlyRecord    `json:"months"`
	Departments    []chartdata.DepartmentRecord `json:"departments"`
	RecentExpenses []entryJSON                  `json:"recent_expenses"`
	RecentIncomes  []entryJSON                  `json:"recent_incomes"`
	GeneratedAt    time.Time                    `json:"generated_at"`
}

type reportJSON struct {
	Role        core.Role                    `json:"role"`
	Totals      totalsJSON                   `json:"totals"`
	Profit      float64                      `json:"profit"`
	Months      []chartdata.MonthlyRecord    `json:"months"`
	Departments []chartdata.DepartmentRecord `json:"departments"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

func toTotalsJSON(t core.Totals) totalsJSON {
	return totalsJSON{
		Income:        t.Income.Units(),
		Expense:       t.Expense.Units(),
		NetProfit:     t.Income.Sub(t.Expense).Units(),
		LoanPrincipal: t.LoanPrincipal.Units(),
		ActiveLoans:   t.ActiveLoans,
	}
}

func toDashboardJSON(d *services.Dashboard) dashboardJSON {
	out := dashboardJSON{
		Role:           d.Role,
		ShowIncome:     d.ShowIncome,
		ShowExpenses:   d.ShowExpenses,
		ShowLoans:      d.ShowLoans,
		Totals:         toTotalsJSON(d.Totals),
		Months:         d.Months,
		Departments:    d.Departments,
		RecentExpenses: make([]entryJSON, 0, len(d.RecentExpenses)),
		RecentIncomes:  make([]entryJSON, 0, len(d.RecentIncomes)),
		GeneratedAt:    d.GeneratedAt,
	}
	for _, e := range d.RecentExpenses {
		out.RecentExpenses = append(out.RecentExpenses, expenseJSON(e))
	}
	for _, in := range d.RecentIncomes {
		out.RecentIncomes = append(out.RecentIncomes, incomeJSON(in))
	}
	return out
}

func expenseJSON(e core.Expense) entryJSON {
	return entryJSON{
		ID:           e.ID,
		DepartmentID: e.DepartmentID,
		Department:   e.Department,
		Type:         e.Type,
		Amount:       e.Amount.Units(),
		Date:         e.Date.String(),
	}
}

func incomeJSON(in core.Income) entryJSON {
	return entryJSON{
		ID:           in.ID,
		DepartmentID: in.DepartmentID,
		Department:   in.Department,
		Type:         in.ServiceType,
		Amount:       in.Amount.Units(),
		Date:         in.Date.String(),
	}
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard.Dashboard(r.Context(), s.role(r))
	if err != nil {
		s.fail(w, r, "dashboard", err)
		return
	}
	NewResponse().Header("Cache-Control", "no-store").JSON(toDashboardJSON(d)).Write(w)
}

func (s *Server) handleAPIReports(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Dashboard.Report(r.Context(), s.role(r), parseMonths(r.URL.Query()))
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}
	NewResponse().Header("Cache-Control", "no-store").JSON(reportJSON{
		Role:        rep.Role,
		Totals:      toTotalsJSON(rep.Totals),
		Profit:      rep.Profit().Units(),
		Months:      rep.MonthRows,
		Departments: rep.DeptRows,
		GeneratedAt: rep.GeneratedAt,
	}).Write(w)
}
