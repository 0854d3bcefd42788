package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/core"
	"finboard/internal/importer"
	"finboard/internal/storage"
)

type fakePublisher struct {
	imports []string
	exports []int
	err     error
}

func (f *fakePublisher) PublishImport(_ context.Context, uploadID, _ string) error {
	f.imports = append(f.imports, uploadID)
	return f.err
}

func (f *fakePublisher) PublishReportExport(_ context.Context, months int, _ string) error {
	f.exports = append(f.exports, months)
	return f.err
}

func newImportService(t *testing.T, repo *storage.SQLiteRepository, pub JobPublisher, invalidate func()) *ImportService {
	t.Helper()
	return NewImportService(repo, importer.New(repo, nil), pub, t.TempDir(), invalidate, nil)
}

func expenseCSV(deptID int64) string {
	return fmt.Sprintf("department_id,expense_type,amount,date\n%d,rent,1200.50,2024-03-01\n%d,,10,2024-03-02\n999,rent,10,2024-03-02\n", deptID, deptID)
}

func TestImport_Inline(t *testing.T) {
	repo := newTestRepo(t)
	dept := mustDepartment(t, repo, "Sales")
	var c counter
	s := newImportService(t, repo, nil, c.inc)

	u, err := s.Submit(context.Background(), core.RoleExpenseUser, core.UploadExpense, "march.CSV", strings.NewReader(expenseCSV(dept.ID)), "req-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if u.Status != core.UploadProcessed || u.Imported != 1 || u.Skipped != 2 {
		t.Fatalf("upload = %+v", u)
	}
	if u.FileName != "march.CSV" || !strings.HasSuffix(u.Path, u.ID+".csv") {
		t.Errorf("stored file = %q as %q", u.FileName, u.Path)
	}
	if c.n != 1 {
		t.Errorf("invalidations = %d, want 1", c.n)
	}

	recent, err := repo.RecentExpenses(context.Background(), 10)
	if err != nil || len(recent) != 1 || recent[0].Amount.Cents != 120050 {
		t.Fatalf("recent expenses = %+v, %v", recent, err)
	}

	// a redelivered job must not import twice
	if err := s.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process again: %v", err)
	}
	if recent, _ := repo.RecentExpenses(context.Background(), 10); len(recent) != 1 {
		t.Fatalf("rows imported twice: %d", len(recent))
	}
}

func TestImport_MissingColumnsFailsUpload(t *testing.T) {
	repo := newTestRepo(t)
	var c counter
	s := newImportService(t, repo, nil, c.inc)

	u, err := s.Submit(context.Background(), core.RoleAdmin, core.UploadIncome, "in.csv", strings.NewReader("department_id,amount\n1,10\n"), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if u.Status != core.UploadFailed || !strings.Contains(u.Error, "service_type") {
		t.Fatalf("upload = %+v", u)
	}
	if c.n != 0 {
		t.Errorf("failed upload invalidated the cache")
	}
}

func TestImport_Queued(t *testing.T) {
	repo := newTestRepo(t)
	dept := mustDepartment(t, repo, "Sales")
	pub := &fakePublisher{}
	s := newImportService(t, repo, pub, nil)

	u, err := s.Submit(context.Background(), core.RoleAdmin, core.UploadExpense, "x.csv", strings.NewReader(expenseCSV(dept.ID)), "req")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if u.Status != core.UploadPending || len(pub.imports) != 1 || pub.imports[0] != u.ID {
		t.Fatalf("upload = %+v, published = %v", u, pub.imports)
	}
	if _, err := os.Stat(u.Path); err != nil {
		t.Fatalf("upload file missing: %v", err)
	}

	// the worker side
	if err := s.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, _ := s.Upload(context.Background(), u.ID)
	if got.Status != core.UploadProcessed || got.Imported != 1 {
		t.Fatalf("processed upload = %+v", got)
	}
}

func TestImport_PublishFailureFallsBackInline(t *testing.T) {
	repo := newTestRepo(t)
	dept := mustDepartment(t, repo, "Sales")
	pub := &fakePublisher{err: errors.New("broker down")}
	s := newImportService(t, repo, pub, nil)

	u, err := s.Submit(context.Background(), core.RoleAdmin, core.UploadExpense, "x.csv", strings.NewReader(expenseCSV(dept.ID)), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if u.Status != core.UploadProcessed || u.Imported != 1 {
		t.Fatalf("upload = %+v", u)
	}
}

func TestImport_Rejections(t *testing.T) {
	repo := newTestRepo(t)
	s := newImportService(t, repo, nil, nil)
	ctx := context.Background()

	if _, err := s.Submit(ctx, core.RoleIncomeUser, core.UploadExpense, "x.csv", strings.NewReader(""), ""); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("income user expense upload error = %v", err)
	}
	if _, err := s.Submit(ctx, core.RoleExpenseUser, core.UploadDepartment, "x.csv", strings.NewReader(""), ""); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("expense user department upload error = %v", err)
	}
	if _, err := s.Submit(ctx, core.RoleAdmin, core.UploadExpense, "x.xls", strings.NewReader(""), ""); !errors.Is(err, ErrInvalidUpload) {
		t.Errorf("xls upload error = %v", err)
	}
	if _, err := s.Upload(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing upload error = %v", err)
	}
}

func TestImport_Departments(t *testing.T) {
	repo := newTestRepo(t)
	mustDepartment(t, repo, "Sales")
	s := newImportService(t, repo, nil, nil)

	u, err := s.Submit(context.Background(), core.RoleAdmin, core.UploadDepartment, "d.csv", strings.NewReader("Name\nSales\nOps\n\nHR\n"), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if u.Status != core.UploadProcessed || u.Imported != 3 {
		t.Fatalf("upload = %+v", u)
	}
	depts, _ := repo.ListDepartments(context.Background())
	if len(depts) != 3 {
		t.Fatalf("departments = %+v", depts)
	}
}

func bulkExpenseCSV(deptID int64, rows int) string {
	var b strings.Builder
	b.WriteString("department_id,expense_type,amount,date\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,supplies,%d.25,2024-01-%02d\n", deptID, i+1, i%28+1)
	}
	return b.String()
}

func TestImport_DashboardReadableDuringImport(t *testing.T) {
	repo := newTestRepo(t)
	dept := mustDepartment(t, repo, "Ops")
	dash := NewDashboardService(repo, DashboardOptions{DashboardMonths: 6, ReportMonths: 12}, nil)
	s := newImportService(t, repo, &fakePublisher{}, dash.Invalidate)
	ctx := context.Background()

	u, err := s.Submit(ctx, core.RoleAdmin, core.UploadExpense, "bulk.csv", strings.NewReader(bulkExpenseCSV(dept.ID, 3000)), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return s.Process(gctx, u.ID)
	})
	g.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			if _, err := dash.Dashboard(gctx, core.RoleAdmin); err != nil {
				return fmt.Errorf("dashboard during import: %w", err)
			}
		}
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	got, err := s.Upload(ctx, u.ID)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got.Status != core.UploadProcessed || got.Imported != 3000 || got.Skipped != 0 {
		t.Fatalf("upload = %+v", got)
	}
	totals, err := repo.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	// sum of (i + 0.25) for i in 1..3000
	if want := int64(3000*3001/2*100 + 3000*25); totals.Expense.Cents != want {
		t.Errorf("expense total = %d, want %d", totals.Expense.Cents, want)
	}
}

func TestImport_ConcurrentProcessImportsOnce(t *testing.T) {
	repo := newTestRepo(t)
	dept := mustDepartment(t, repo, "Ops")
	s := newImportService(t, repo, &fakePublisher{}, nil)
	ctx := context.Background()

	u, err := s.Submit(ctx, core.RoleAdmin, core.UploadExpense, "bulk.csv", strings.NewReader(bulkExpenseCSV(dept.ID, 200)), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error { return s.Process(ctx, u.ID) })
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Process: %v", err)
	}

	totals, _ := repo.Totals(ctx)
	if want := int64(200*201/2*100 + 200*25); totals.Expense.Cents != want {
		t.Fatalf("expense total = %d, want %d", totals.Expense.Cents, want)
	}
	got, _ := s.Upload(ctx, u.ID)
	if got.Status != core.UploadProcessed || got.Imported != 200 {
		t.Fatalf("upload = %+v", got)
	}
}

func TestImport_ClaimedUploadIsSkipped(t *testing.T) {
	repo := newTestRepo(t)
	dept := mustDepartment(t, repo, "Ops")
	s := newImportService(t, repo, &fakePublisher{}, nil)
	ctx := context.Background()

	u, err := s.Submit(ctx, core.RoleAdmin, core.UploadExpense, "x.csv", strings.NewReader(expenseCSV(dept.ID)), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ok, err := repo.ClaimUpload(ctx, u.ID); err != nil || !ok {
		t.Fatalf("ClaimUpload = %v, %v", ok, err)
	}
	if ok, _ := repo.ClaimUpload(ctx, u.ID); ok {
		t.Fatal("upload claimed twice")
	}

	if err := s.Process(ctx, u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if recent, _ := repo.RecentExpenses(ctx, 10); len(recent) != 0 {
		t.Fatalf("claimed upload imported %d rows", len(recent))
	}
}

func TestImport_UploadsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	s := newImportService(t, repo, &fakePublisher{}, nil)
	ctx := context.Background()

	for i, kind := range []core.UploadKind{core.UploadExpense, core.UploadIncome, core.UploadExpense} {
		u := core.Upload{
			ID:        fmt.Sprintf("u%d", i),
			Kind:      kind,
			FileName:  "f.csv",
			CreatedAt: time.Date(2024, 5, 1+i, 0, 0, 0, 0, time.UTC),
		}
		if err := repo.CreateUpload(ctx, u); err != nil {
			t.Fatalf("CreateUpload: %v", err)
		}
	}

	tests := []struct {
		role core.Role
		want []string
	}{
		{core.RoleAdmin, []string{"u2", "u1", "u0"}},
		{core.RoleExpenseUser, []string{"u2", "u0"}},
		{core.RoleIncomeUser, []string{"u1"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := s.Uploads(ctx, tt.role, 0)
			if err != nil {
				t.Fatalf("Uploads: %v", err)
			}
			var ids []string
			for _, u := range got {
				ids = append(ids, u.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("uploads = %v, want %v", ids, tt.want)
			}
		})
	}
}
