package http

import (
	"net/http"

	"finboard/internal/core"
)

type departmentJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type loanJSON struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Principal    float64 `json:"principal"`
	InterestRate float64 `json:"interest_rate"`
	TenureMonths int     `json:"tenure_months"`
	EMI          float64 `json:"emi"`
}

type installmentJSON struct {
	Month     int     `json:"month"`
	EMI       float64 `json:"emi"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Remaining float64 `json:"remaining"`
}

type breakdownJSON struct {
	Loan           loanJSON          `json:"loan"`
	Installments   []installmentJSON `json:"installments"`
	TotalPrincipal float64           `json:"total_principal"`
	TotalInterest  float64           `json:"total_interest"`
	TotalAmount    float64           `json:"total_amount"`
}

// ledgerJSON omits the sections the caller's role cannot see.
type ledgerJSON struct {
	Role     core.Role   `json:"role"`
	Totals   totalsJSON  `json:"totals"`
	Expenses []entryJSON `json:"expenses,omitempty"`
	Incomes  []entryJSON `json:"incomes,omitempty"`
	Loans    []loanJSON  `json:"loans,omitempty"`
}

func toLoanJSON(l core.Loan) loanJSON {
	return loanJSON{
		ID:           l.ID,
		Name:         l.Name,
		Principal:    l.Principal.Units(),
		InterestRate: l.InterestRate,
		TenureMonths: l.TenureMonths,
		EMI:          l.EMI.Units(),
	}
}

// parseBody parses a JSON or form body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return nil, false
	}
	return p, true
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := s.svc.Finance.ListDepartments(r.Context())
	if err != nil {
		s.fail(w, r, "list_departments", err)
		return
	}
	out := make([]departmentJSON, 0, len(depts))
	for _, d := range depts {
		out = append(out, departmentJSON{ID: d.ID, Name: d.Name})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Finance.CreateDepartment(r.Context(), s.role(r), p.Get("name"))
	if err != nil {
		s.fail(w, r, "create_department", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(departmentJSON{ID: d.ID, Name: d.Name}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	e := core.Expense{Type: p.Get("expense_type")}
	var err error
	if e.DepartmentID, err = p.DepartmentID("department_id"); err != nil {
		s.fail(w, r, "create_expense", err)
		return
	}
	if e.Amount, err = p.Money("amount"); err != nil {
		s.fail(w, r, "create_expense", err)
		return
	}
	if e.Date, err = p.Date("date"); err != nil {
		s.fail(w, r, "create_expense", err)
		return
	}

	e, err = s.svc.Finance.CreateExpense(r.Context(), s.role(r), e)
	if err != nil {
		s.fail(w, r, "create_expense", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(expenseJSON(e)).Write(w)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in := core.Income{ServiceType: p.Get("service_type")}
	var err error
	if in.DepartmentID, err = p.DepartmentID("department_id"); err != nil {
		s.fail(w, r, "create_income", err)
		return
	}
	if in.Amount, err = p.Money("amount"); err != nil {
		s.fail(w, r, "create_income", err)
		return
	}
	if in.Date, err = p.Date("date"); err != nil {
		s.fail(w, r, "create_income", err)
		return
	}

	in, err = s.svc.Finance.CreateIncome(r.Context(), s.role(r), in)
	if err != nil {
		s.fail(w, r, "create_income", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(incomeJSON(in)).Write(w)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.svc.Finance.ListLoans(r.Context(), s.role(r))
	if err != nil {
		s.fail(w, r, "list_loans", err)
		return
	}
	out := make([]loanJSON, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanJSON(l))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	l := core.Loan{Name: p.Get("name")}
	var err error
	if l.Principal, err = p.Money("principal"); err != nil {
		s.fail(w, r, "create_loan", err)
		return
	}
	if l.InterestRate, err = p.Float("interest_rate", core.ErrInvalidRate); err != nil {
		s.fail(w, r, "create_loan", err)
		return
	}
	if l.TenureMonths, err = p.Int("tenure_months", core.ErrInvalidTenure); err != nil {
		s.fail(w, r, "create_loan", err)
		return
	}

	l, err = s.svc.Finance.CreateLoan(r.Context(), s.role(r), l)
	if err != nil {
		s.fail(w, r, "create_loan", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(toLoanJSON(l)).Write(w)
}

func (s *Server) handleLoanBreakdown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		BadRequestError("invalid loan id").Write(w)
		return
	}
	l, schedule, err := s.svc.Finance.LoanBreakdown(r.Context(), s.role(r), id)
	if err != nil {
		s.fail(w, r, "loan_breakdown", err)
		return
	}

	out := breakdownJSON{
		Loan:           toLoanJSON(l),
		Installments:   make([]installmentJSON, 0, len(schedule.Installments)),
		TotalPrincipal: schedule.TotalPrincipal.Units(),
		TotalInterest:  schedule.TotalInterest.Units(),
		TotalAmount:    schedule.TotalAmount.Units(),
	}
	for _, in := range schedule.Installments {
		out.Installments = append(out.Installments, installmentJSON{
			Month:     in.Month,
			EMI:       in.EMI.Units(),
			Principal: in.Principal.Units(),
			Interest:  in.Interest.Units(),
			Remaining: in.Remaining.Units(),
		})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	role := s.role(r)
	l, err := s.svc.Finance.Ledger(r.Context(), role, parseLimit(r.URL.Query()))
	if err != nil {
		s.fail(w, r, "ledger", err)
		return
	}

	out := ledgerJSON{Role: role, Totals: toTotalsJSON(l.Totals)}
	if role.SeesExpenses() {
		out.Expenses = make([]entryJSON, 0, len(l.Expenses))
		for _, e := range l.Expenses {
			out.Expenses = append(out.Expenses, expenseJSON(e))
		}
	}
	if role.SeesIncome() {
		out.Incomes = make([]entryJSON, 0, len(l.Incomes))
		for _, in := range l.Incomes {
			out.Incomes = append(out.Incomes, incomeJSON(in))
		}
	}
	if role.SeesLoans() {
		out.Loans = make([]loanJSON, 0, len(l.Loans))
		for _, ln := range l.Loans {
			out.Loans = append(out.Loans, toLoanJSON(ln))
		}
	}
	NewResponse().JSON(out).Write(w)
}
