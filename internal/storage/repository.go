package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	q      querier
	logger *log.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dsn adds the pragmas shared by every connection. Readers wait on a busy
// writer for up to five seconds; transactions take the write lock at BEGIN.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// MonthSum is the raw per month aggregate keyed by "YYYY-MM".
type MonthSum struct {
	Month   string
	Income  core.Money
	Expense core.Money
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{db: db, q: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection, used by the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx *SQLiteRepository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&SQLiteRepository{db: r.db, q: tx, logger: r.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.ErrorContext(ctx, "Rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateDepartment inserts a department. Names are unique.
func (r *SQLiteRepository) CreateDepartment(ctx context.Context, name string) (core.Department, error) {
	name = strings.TrimSpace(name)
	res, err := r.q.ExecContext(ctx, `INSERT INTO departments (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Department{}, fmt.Errorf("department %q: %w", name, core.ErrDuplicate)
		}
		return core.Department{}, fmt.Errorf("create department: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Department{}, fmt.Errorf("department id: %w", err)
	}
	r.logger.InfoContext(ctx, "Department created", "id", id, log.FieldDepartment, name)
	return core.Department{ID: id, Name: name}, nil
}

// GetOrCreateDepartment returns the department with the given name, creating it when missing.
func (r *SQLiteRepository) GetOrCreateDepartment(ctx context.Context, name string) (core.Department, bool, error) {
	name = strings.TrimSpace(name)
	var d core.Department
	err := r.q.QueryRowContext(ctx, `SELECT id, name FROM departments WHERE name = ?`, name).Scan(&d.ID, &d.Name)
	switch {
	case err == nil:
		return d, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return d, false, fmt.Errorf("get department by name: %w", err)
	}
	d, err = r.CreateDepartment(ctx, name)
	if err != nil {
		return d, false, err
	}
	return d, true, nil
}

func (r *SQLiteRepository) GetDepartment(ctx context.Context, id int64) (core.Department, error) {
	var d core.Department
	err := r.q.QueryRowContext(ctx, `SELECT id, name FROM departments WHERE id = ?`, id).Scan(&d.ID, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("department %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return d, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListDepartments(ctx context.Context) ([]core.Department, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []core.Department
	for rows.Next() {
		var d core.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateExpense stores an expense. The department must exist.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	d, err := r.departmentFor(ctx, e.DepartmentID)
	if err != nil {
		return e, err
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO expenses (department_id, expense_type, amount_cents, date) VALUES (?, ?, ?, ?)`,
		e.DepartmentID, strings.TrimSpace(e.Type), e.Amount.Cents, e.Date.String())
	if err != nil {
		return e, fmt.Errorf("create expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return e, fmt.Errorf("expense id: %w", err)
	}
	e.Department = d.Name
	r.logger.DebugContext(ctx, "Expense saved", "id", e.ID, log.FieldDepartment, d.Name, log.FieldAmount, e.Amount.Cents)
	return e, nil
}

// CreateIncome stores an income. The department must exist.
func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	d, err := r.departmentFor(ctx, in.DepartmentID)
	if err != nil {
		return in, err
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO incomes (department_id, service_type, amount_cents, date) VALUES (?, ?, ?, ?)`,
		in.DepartmentID, strings.TrimSpace(in.ServiceType), in.Amount.Cents, in.Date.String())
	if err != nil {
		return in, fmt.Errorf("create income: %w", err)
	}
	if in.ID, err = res.LastInsertId(); err != nil {
		return in, fmt.Errorf("income id: %w", err)
	}
	in.Department = d.Name
	r.logger.DebugContext(ctx, "Income saved", "id", in.ID, log.FieldDepartment, d.Name, log.FieldAmount, in.Amount.Cents)
	return in, nil
}

func (r *SQLiteRepository) departmentFor(ctx context.Context, id int64) (core.Department, error) {
	d, err := r.GetDepartment(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return d, fmt.Errorf("department %d: %w", id, core.ErrNoDepartment)
	}
	return d, err
}

func (r *SQLiteRepository) CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO loans (name, principal_cents, interest_rate, tenure_months, emi_cents) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(l.Name), l.Principal.Cents, l.InterestRate, l.TenureMonths, l.EMI.Cents)
	if err != nil {
		return l, fmt.Errorf("create loan: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return l, fmt.Errorf("loan id: %w", err)
	}
	r.logger.InfoContext(ctx, "Loan created", log.FieldLoanID, l.ID, "emi_cents", l.EMI.Cents)
	return l, nil
}

const loanColumns = `id, name, principal_cents, interest_rate, tenure_months, emi_cents`

func scanLoan(s interface{ Scan(...any) error }) (core.Loan, error) {
	var l core.Loan
	err := s.Scan(&l.ID, &l.Name, &l.Principal.Cents, &l.InterestRate, &l.TenureMonths, &l.EMI.Cents)
	return l, err
}

func (r *SQLiteRepository) GetLoan(ctx context.Context, id int64) (core.Loan, error) {
	l, err := scanLoan(r.q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return l, fmt.Errorf("loan %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return l, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) ListLoans(ctx context.Context) ([]core.Loan, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MonthlySums returns income and expense sums per month for dates in
// [from, to], ordered by month. Months without any record are absent.
func (r *SQLiteRepository) MonthlySums(ctx context.Context, from, to core.Date) ([]MonthSum, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT month, SUM(income), SUM(expense) FROM (
			SELECT substr(date, 1, 7) AS month, amount_cents AS income, 0 AS expense
			FROM incomes WHERE date BETWEEN ? AND ?
			UNION ALL
			SELECT substr(date, 1, 7), 0, amount_cents
			FROM expenses WHERE date BETWEEN ? AND ?
		)
		GROUP BY month
		ORDER BY month`,
		from.String(), to.String(), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("monthly sums: %w", err)
	}
	defer rows.Close()

	var out []MonthSum
	for rows.Next() {
		var m MonthSum
		if err := rows.Scan(&m.Month, &m.Income.Cents, &m.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan month sum: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DepartmentTotals sums incomes and expenses per department. Subqueries keep
// the two sides from multiplying each other as a double join would.
func (r *SQLiteRepository) DepartmentTotals(ctx context.Context) ([]core.DepartmentTotals, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT d.name,
			COALESCE((SELECT SUM(i.amount_cents) FROM incomes i WHERE i.department_id = d.id), 0),
			COALESCE((SELECT SUM(e.amount_cents) FROM expenses e WHERE e.department_id = d.id), 0),
			(SELECT COUNT(*) FROM incomes i WHERE i.department_id = d.id),
			(SELECT COUNT(*) FROM expenses e WHERE e.department_id = d.id)
		FROM departments d
		ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("department totals: %w", err)
	}
	defer rows.Close()

	var out []core.DepartmentTotals
	for rows.Next() {
		var t core.DepartmentTotals
		if err := rows.Scan(&t.Name, &t.Income.Cents, &t.Expense.Cents, &t.IncomeCount, &t.ExpenseCount); err != nil {
			return nil, fmt.Errorf("scan department totals: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Totals returns the grand totals over the whole ledger.
func (r *SQLiteRepository) Totals(ctx context.Context) (core.Totals, error) {
	var t core.Totals
	err := r.q.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount_cents) FROM incomes), 0),
			COALESCE((SELECT SUM(amount_cents) FROM expenses), 0),
			COALESCE((SELECT SUM(principal_cents) FROM loans), 0),
			(SELECT COUNT(*) FROM loans)`).
		Scan(&t.Income.Cents, &t.Expense.Cents, &t.LoanPrincipal.Cents, &t.ActiveLoans)
	if err != nil {
		return t, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) RecentExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT e.id, e.department_id, d.name, e.expense_type, e.amount_cents, e.date
		FROM expenses e JOIN departments d ON d.id = e.department_id
		ORDER BY e.date DESC, e.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.DepartmentID, &e.Department, &e.Type, &e.Amount.Cents, &date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %d date: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) RecentIncomes(ctx context.Context, limit int) ([]core.Income, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT i.id, i.department_id, d.name, i.service_type, i.amount_cents, i.date
		FROM incomes i JOIN departments d ON d.id = i.department_id
		ORDER BY i.date DESC, i.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			in   core.Income
			date string
		)
		if err := rows.Scan(&in.ID, &in.DepartmentID, &in.Department, &in.ServiceType, &in.Amount.Cents, &date); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		if in.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("income %d date: %w", in.ID, err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateUpload(ctx context.Context, u core.Upload) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Status == "" {
		u.Status = core.UploadPending
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO uploads (id, kind, file_name, path, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, string(u.Kind), u.FileName, u.Path, string(u.Status), u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

// ClaimUpload moves a pending upload to PROCESSING. It reports false when the
// upload was already claimed or finished by someone else.
func (r *SQLiteRepository) ClaimUpload(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE uploads SET status = ? WHERE id = ? AND status = ?`,
		string(core.UploadProcessing), id, string(core.UploadPending))
	if err != nil {
		return false, fmt.Errorf("claim upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim upload: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkUploadProcessed(ctx context.Context, id string, imported, skipped int) error {
	return r.finishUpload(ctx, id, core.UploadProcessed, imported, skipped, "")
}

func (r *SQLiteRepository) MarkUploadFailed(ctx context.Context, id string, reason string) error {
	r.logger.WarnContext(ctx, "Upload marked as failed", log.FieldUploadID, id, "reason", reason)
	return r.finishUpload(ctx, id, core.UploadFailed, 0, 0, reason)
}

func (r *SQLiteRepository) finishUpload(ctx context.Context, id string, status core.UploadStatus, imported, skipped int, reason string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE uploads SET status = ?, imported = ?, skipped = ?, error = ? WHERE id = ?`,
		string(status), imported, skipped, reason, id)
	if err != nil {
		return fmt.Errorf("update upload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("upload %s: %w", id, core.ErrNotFound)
	}
	return nil
}

const uploadColumns = `id, kind, file_name, path, status, imported, skipped, error, created_at`

func scanUpload(s interface{ Scan(...any) error }) (core.Upload, error) {
	var (
		u                   core.Upload
		kind, status, stamp string
	)
	if err := s.Scan(&u.ID, &kind, &u.FileName, &u.Path, &status, &u.Imported, &u.Skipped, &u.Error, &stamp); err != nil {
		return u, err
	}
	u.Kind = core.UploadKind(kind)
	u.Status = core.UploadStatus(status)
	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339, stamp); err != nil {
		return u, fmt.Errorf("upload %s created_at: %w", u.ID, err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUpload(ctx context.Context, id string) (core.Upload, error) {
	u, err := scanUpload(r.q.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("upload %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return u, fmt.Errorf("get upload: %w", err)
	}
	return u, nil
}

// ListPendingUploads returns pending uploads created before the cutoff, oldest first.
func (r *SQLiteRepository) ListPendingUploads(ctx context.Context, createdBefore time.Time, limit int) ([]core.Upload, error) {
	return r.listUploads(ctx, `status = 'PENDING' AND created_at < ?`, createdBefore, limit)
}

// ListFinishedUploads returns processed or failed uploads that still have a stored file.
func (r *SQLiteRepository) ListFinishedUploads(ctx context.Context, createdBefore time.Time, limit int) ([]core.Upload, error) {
	return r.listUploads(ctx, `status IN ('PROCESSED', 'FAILED') AND path <> '' AND created_at < ?`, createdBefore, limit)
}

// ListUploads returns the most recent uploads, newest first.
func (r *SQLiteRepository) ListUploads(ctx context.Context, limit int) ([]core.Upload, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return collectUploads(rows)
}

func (r *SQLiteRepository) listUploads(ctx context.Context, where string, createdBefore time.Time, limit int) ([]core.Upload, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE `+where+` ORDER BY created_at LIMIT ?`,
		createdBefore.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return collectUploads(rows)
}

func collectUploads(rows *sql.Rows) ([]core.Upload, error) {
	defer rows.Close()

	var out []core.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ClearUploadPath forgets the stored file of an upload once it was deleted.
func (r *SQLiteRepository) ClearUploadPath(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE uploads SET path = '' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clear upload path: %w", err)
	}
	return nil
}
