package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/cache"
	"finboard/internal/chartdata"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/storage"
)

const recentLimit = 10

// DashboardStore is the read side of the repository used for aggregates.
type DashboardStore interface {
	MonthlySums(ctx context.Context, from, to core.Date) ([]storage.MonthSum, error)
	DepartmentTotals(ctx context.Context) ([]core.DepartmentTotals, error)
	Totals(ctx context.Context) (core.Totals, error)
	RecentExpenses(ctx context.Context, limit int) ([]core.Expense, error)
	RecentIncomes(ctx context.Context, limit int) ([]core.Income, error)
}

// Dashboard is everything the dashboard page shows for one role.
type Dashboard struct {
	Role           core.Role
	ShowIncome     bool
	ShowExpenses   bool
	ShowLoans      bool
	Totals         core.Totals
	NetProfit      core.Money
	Months         []chartdata.MonthlyRecord
	Departments    []chartdata.DepartmentRecord
	RecentExpenses []core.Expense
	RecentIncomes  []core.Income
	GeneratedAt    time.Time
}

// Report is the report page content: the raw aggregates plus the same
// chart records the dashboard embeds.
type Report struct {
	core.Report
	Role      core.Role
	MonthRows []chartdata.MonthlyRecord
	DeptRows  []chartdata.DepartmentRecord
}

type DashboardService struct {
	store           DashboardStore
	dashboards      *cache.LRUCache[*Dashboard]
	reports         *cache.LRUCache[*Report]
	dashboardMonths int
	reportMonths    int
	now             func() time.Time
	logger          *log.Logger
}

type DashboardOptions struct {
	DashboardMonths int
	ReportMonths    int
	CacheTTL        time.Duration
}

func NewDashboardService(store DashboardStore, opts DashboardOptions, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.DashboardMonths < 1 {
		opts.DashboardMonths = 6
	}
	if opts.ReportMonths < 1 {
		opts.ReportMonths = 12
	}
	return &DashboardService{
		store:           store,
		dashboards:      cache.NewLRUCache[*Dashboard](16, opts.CacheTTL),
		reports:         cache.NewLRUCache[*Report](32, opts.CacheTTL),
		dashboardMonths: opts.DashboardMonths,
		reportMonths:    opts.ReportMonths,
		now:             time.Now,
		logger:          logger.WithComponent(log.ComponentDashboard),
	}
}

// Caches exposes the caches so a cache.Manager can purge them.
func (s *DashboardService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.dashboards, s.reports}
}

// Invalidate drops every cached aggregate. Called after each write.
func (s *DashboardService) Invalidate() {
	s.dashboards.Clear()
	s.reports.Clear()
}

// CacheEntries reports how many dashboards and reports are cached.
func (s *DashboardService) CacheEntries() (dashboards, reports int) {
	return s.dashboards.Size(), s.reports.Size()
}

func (s *DashboardService) DashboardMonths() int { return s.dashboardMonths }
func (s *DashboardService) ReportMonths() int    { return s.reportMonths }

// Dashboard returns the dashboard for role, from cache when fresh.
func (s *DashboardService) Dashboard(ctx context.Context, role core.Role) (*Dashboard, error) {
	if d, ok := s.dashboards.Get(string(role)); ok {
		return d, nil
	}

	now := s.now()
	spans := core.LastMonths(now, s.dashboardMonths)

	var (
		totals   core.Totals
		sums     []storage.MonthSum
		depts    []core.DepartmentTotals
		expenses []core.Expense
		incomes  []core.Income
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.store.Totals(gctx)
		return err
	})
	g.Go(func() (err error) {
		sums, err = s.store.MonthlySums(gctx, spans[0].Start, spans[len(spans)-1].End)
		return err
	})
	g.Go(func() (err error) {
		depts, err = s.store.DepartmentTotals(gctx)
		return err
	})
	if role.SeesExpenses() {
		g.Go(func() (err error) {
			expenses, err = s.store.RecentExpenses(gctx, recentLimit)
			return err
		})
	}
	if role.SeesIncome() {
		g.Go(func() (err error) {
			incomes, err = s.store.RecentIncomes(gctx, recentLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	totals = filterTotals(role, totals)
	months := fillMonths(role, spans, sums)

	d := &Dashboard{
		Role:           role,
		ShowIncome:     role.SeesIncome(),
		ShowExpenses:   role.SeesExpenses(),
		ShowLoans:      role.SeesLoans(),
		Totals:         totals,
		NetProfit:      totals.Income.Sub(totals.Expense),
		Months:         MonthlyRecords(months, core.DashboardMonthLayout),
		Departments:    DepartmentRecords(filterDepartments(role, depts)),
		RecentExpenses: nonNil(expenses),
		RecentIncomes:  nonNil(incomes),
		GeneratedAt:    now,
	}
	s.dashboards.Set(string(role), d)
	s.logger.DebugContext(ctx, "Dashboard computed", log.FieldRole, role, "months", len(d.Months), "departments", len(d.Departments))
	return d, nil
}

// Report returns the monthly and department report over the last months
// calendar months. A months value below 1 uses the configured window.
func (s *DashboardService) Report(ctx context.Context, role core.Role, months int) (*Report, error) {
	if months < 1 {
		months = s.reportMonths
	}
	key := string(role) + ":" + strconv.Itoa(months)
	if r, ok := s.reports.Get(key); ok {
		return r, nil
	}

	now := s.now()
	spans := core.LastMonths(now, months)

	var (
		totals core.Totals
		sums   []storage.MonthSum
		depts  []core.DepartmentTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.store.Totals(gctx)
		return err
	})
	g.Go(func() (err error) {
		sums, err = s.store.MonthlySums(gctx, spans[0].Start, spans[len(spans)-1].End)
		return err
	})
	g.Go(func() (err error) {
		depts, err = s.store.DepartmentTotals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}

	monthTotals := fillMonths(role, spans, sums)
	deptTotals := filterDepartments(role, depts)
	r := &Report{
		Report: core.Report{
			GeneratedAt: now,
			Months:      monthTotals,
			Departments: deptTotals,
			Totals:      filterTotals(role, totals),
		},
		Role:      role,
		MonthRows: MonthlyRecords(monthTotals, core.ReportMonthLayout),
		DeptRows:  DepartmentRecords(deptTotals),
	}
	s.reports.Set(key, r)
	return r, nil
}

// fillMonths lays the sparse sums onto every span so months without
// records show as zero. Sides the role cannot see are zeroed.
func fillMonths(role core.Role, spans []core.MonthSpan, sums []storage.MonthSum) []core.MonthTotals {
	byMonth := make(map[string]storage.MonthSum, len(sums))
	for _, s := range sums {
		byMonth[s.Month] = s
	}
	out := make([]core.MonthTotals, 0, len(spans))
	for _, span := range spans {
		sum := byMonth[span.Start.Format("2006-01")]
		m := core.MonthTotals{Start: span.Start}
		if role.SeesIncome() {
			m.Income = sum.Income
		}
		if role.SeesExpenses() {
			m.Expense = sum.Expense
		}
		out = append(out, m)
	}
	return out
}

// filterDepartments keeps what role may see. Expense users only get
// departments with expenses, income users only those with income.
func filterDepartments(role core.Role, depts []core.DepartmentTotals) []core.DepartmentTotals {
	out := make([]core.DepartmentTotals, 0, len(depts))
	for _, d := range depts {
		switch {
		case role.SeesIncome() && role.SeesExpenses():
		case role.SeesExpenses():
			if d.ExpenseCount == 0 {
				continue
			}
			d.Income, d.IncomeCount = core.Money{}, 0
		case role.SeesIncome():
			if d.IncomeCount == 0 {
				continue
			}
			d.Expense, d.ExpenseCount = core.Money{}, 0
		default:
			continue
		}
		out = append(out, d)
	}
	return out
}

func filterTotals(role core.Role, t core.Totals) core.Totals {
	if !role.SeesIncome() {
		t.Income = core.Money{}
	}
	if !role.SeesExpenses() {
		t.Expense = core.Money{}
	}
	if !role.SeesLoans() {
		t.LoanPrincipal, t.ActiveLoans = core.Money{}, 0
	}
	return t
}

// MonthlyRecords converts month totals into the chart payload shape.
func MonthlyRecords(months []core.MonthTotals, layout string) []chartdata.MonthlyRecord {
	out := make([]chartdata.MonthlyRecord, 0, len(months))
	for _, m := range months {
		out = append(out, chartdata.MonthlyRecord{
			Month:   m.Start.Format(layout),
			Income:  chartdata.Amount(m.Income.Units()),
			Expense: chartdata.Amount(m.Expense.Units()),
			Profit:  chartdata.Amount(m.Profit().Units()),
		})
	}
	return out
}

// DepartmentRecords converts department totals into the chart payload shape.
func DepartmentRecords(depts []core.DepartmentTotals) []chartdata.DepartmentRecord {
	out := make([]chartdata.DepartmentRecord, 0, len(depts))
	for _, d := range depts {
		out = append(out, chartdata.DepartmentRecord{
			Name:         d.Name,
			TotalIncome:  chartdata.Amount(d.Income.Units()),
			TotalExpense: chartdata.Amount(d.Expense.Units()),
		})
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
