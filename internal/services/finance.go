package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"finboard/internal/core"
	"finboard/internal/log"
)

// FinanceStore is the write side of the repository.
type FinanceStore interface {
	CreateDepartment(ctx context.Context, name string) (core.Department, error)
	ListDepartments(ctx context.Context) ([]core.Department, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
	CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error)
	GetLoan(ctx context.Context, id int64) (core.Loan, error)
	ListLoans(ctx context.Context) ([]core.Loan, error)
	Totals(ctx context.Context) (core.Totals, error)
	RecentExpenses(ctx context.Context, limit int) ([]core.Expense, error)
	RecentIncomes(ctx context.Context, limit int) ([]core.Income, error)
}

// Ledger lists the recorded entries a role may see, newest first, with the
// matching totals. Hidden sections are empty and their totals zero.
type Ledger struct {
	Role     core.Role
	Expenses []core.Expense
	Incomes  []core.Income
	Loans    []core.Loan
	Totals   core.Totals
}

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// FinanceService records departments, expenses, incomes and loans with
// role checks, and drops cached aggregates after every write.
type FinanceService struct {
	store      FinanceStore
	invalidate func()
	logger     *log.Logger
}

func NewFinanceService(store FinanceStore, invalidate func(), logger *log.Logger) *FinanceService {
	if invalidate == nil {
		invalidate = func() {}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &FinanceService{store: store, invalidate: invalidate, logger: logger.WithComponent(log.ComponentFinance)}
}

func forbidden(role core.Role, action string) error {
	return fmt.Errorf("role %q cannot %s: %w", role, action, core.ErrForbidden)
}

func (s *FinanceService) CreateDepartment(ctx context.Context, role core.Role, name string) (core.Department, error) {
	if !role.CanManageDepartments() {
		return core.Department{}, forbidden(role, "create departments")
	}
	d := core.Department{Name: name}
	if err := d.Validate(); err != nil {
		return d, err
	}
	d, err := s.store.CreateDepartment(ctx, name)
	if err != nil {
		return d, err
	}
	s.invalidate()
	return d, nil
}

func (s *FinanceService) ListDepartments(ctx context.Context) ([]core.Department, error) {
	return s.store.ListDepartments(ctx)
}

func (s *FinanceService) CreateExpense(ctx context.Context, role core.Role, e core.Expense) (core.Expense, error) {
	if !role.CanRecordExpenses() {
		return e, forbidden(role, "record expenses")
	}
	if err := e.Validate(); err != nil {
		return e, err
	}
	e, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return e, err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Expense recorded", log.FieldRole, role, log.FieldDepartment, e.Department, log.FieldAmount, e.Amount.Cents)
	return e, nil
}

func (s *FinanceService) CreateIncome(ctx context.Context, role core.Role, in core.Income) (core.Income, error) {
	if !role.CanRecordIncome() {
		return in, forbidden(role, "record income")
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	in, err := s.store.CreateIncome(ctx, in)
	if err != nil {
		return in, err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Income recorded", log.FieldRole, role, log.FieldDepartment, in.Department, log.FieldAmount, in.Amount.Cents)
	return in, nil
}

// CreateLoan computes the EMI before storing the loan.
func (s *FinanceService) CreateLoan(ctx context.Context, role core.Role, l core.Loan) (core.Loan, error) {
	if !role.CanManageLoans() {
		return l, forbidden(role, "manage loans")
	}
	if err := l.Validate(); err != nil {
		return l, err
	}
	l.EMI = core.CalculateEMI(l.Principal, l.InterestRate, l.TenureMonths)
	l, err := s.store.CreateLoan(ctx, l)
	if err != nil {
		return l, err
	}
	s.invalidate()
	return l, nil
}

func (s *FinanceService) ListLoans(ctx context.Context, role core.Role) ([]core.Loan, error) {
	if !role.SeesLoans() {
		return nil, forbidden(role, "view loans")
	}
	return s.store.ListLoans(ctx)
}

// LoanBreakdown returns the loan and its amortization schedule.
func (s *FinanceService) LoanBreakdown(ctx context.Context, role core.Role, id int64) (core.Loan, core.Schedule, error) {
	if !role.SeesLoans() {
		return core.Loan{}, core.Schedule{}, forbidden(role, "view loans")
	}
	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return l, core.Schedule{}, err
	}
	return l, core.EMIBreakdown(l.Principal, l.InterestRate, l.TenureMonths), nil
}

// Ledger loads the finance listing for role. limit caps each entry list.
func (s *FinanceService) Ledger(ctx context.Context, role core.Role, limit int) (*Ledger, error) {
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	limit = min(limit, maxLedgerLimit)

	l := &Ledger{Role: role}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		l.Totals, err = s.store.Totals(gctx)
		return err
	})
	if role.SeesExpenses() {
		g.Go(func() (err error) {
			l.Expenses, err = s.store.RecentExpenses(gctx, limit)
			return err
		})
	}
	if role.SeesIncome() {
		g.Go(func() (err error) {
			l.Incomes, err = s.store.RecentIncomes(gctx, limit)
			return err
		})
	}
	if role.SeesLoans() {
		g.Go(func() (err error) {
			l.Loans, err = s.store.ListLoans(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	l.Totals = filterTotals(role, l.Totals)
	l.Expenses = nonNil(l.Expenses)
	l.Incomes = nonNil(l.Incomes)
	l.Loans = nonNil(l.Loans)
	return l, nil
}
