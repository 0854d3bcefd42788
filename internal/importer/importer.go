// Package importer loads departments, expenses and incomes from uploaded
// spreadsheets. Bad rows are skipped and reported; only a missing column
// fails the whole file.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
)

// Store is the subset of the repository the importer writes through.
type Store interface {
	GetOrCreateDepartment(ctx context.Context, name string) (core.Department, bool, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
}

// RowError describes why a data row was skipped. Row is 1-based and counts
// the header, so it matches what a spreadsheet shows.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

type Result struct {
	Imported int
	Skipped  int
	Errors   []RowError
}

type Importer struct {
	store  Store
	logger *log.Logger
}

func New(store Store, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Importer{store: store, logger: logger.WithComponent(log.ComponentImport)}
}

// With returns an importer that writes through store, typically a transaction.
func (im *Importer) With(store Store) *Importer {
	return &Importer{store: store, logger: im.logger}
}

// Import reads r in the given format and stores every valid row of kind.
func (im *Importer) Import(ctx context.Context, kind core.UploadKind, format core.FileFormat, r io.Reader) (Result, error) {
	var res Result
	table, err := ReadTable(r, format)
	if err != nil {
		return res, err
	}
	if err := table.Require(kind.RequiredColumns()); err != nil {
		return res, err
	}

	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if blank(row) {
			continue
		}
		line := i + 2
		if err := im.importRow(ctx, kind, table, row); err != nil {
			if !isRowError(err) {
				return res, fmt.Errorf("row %d: %w", line, err)
			}
			res.Skipped++
			res.Errors = append(res.Errors, RowError{Row: line, Err: err})
			im.logger.WarnContext(ctx, "Skipping row", log.FieldUploadKind, kind, log.FieldRow, line, log.FieldError, err)
			continue
		}
		res.Imported++
	}

	im.logger.InfoContext(ctx, "Import finished", log.FieldUploadKind, kind, "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, kind core.UploadKind, t Table, row []string) error {
	switch kind {
	case core.UploadDepartment:
		d := core.Department{Name: t.Value(row, "name")}
		if err := d.Validate(); err != nil {
			return err
		}
		_, _, err := im.store.GetOrCreateDepartment(ctx, d.Name)
		return err

	case core.UploadExpense:
		deptID, amount, date, err := parseCommon(t, row)
		if err != nil {
			return err
		}
		e := core.Expense{DepartmentID: deptID, Type: t.Value(row, "expense_type"), Amount: amount, Date: date}
		if err := e.Validate(); err != nil {
			return err
		}
		_, err = im.store.CreateExpense(ctx, e)
		return err

	case core.UploadIncome:
		deptID, amount, date, err := parseCommon(t, row)
		if err != nil {
			return err
		}
		in := core.Income{DepartmentID: deptID, ServiceType: t.Value(row, "service_type"), Amount: amount, Date: date}
		if err := in.Validate(); err != nil {
			return err
		}
		_, err = im.store.CreateIncome(ctx, in)
		return err
	}
	return fmt.Errorf("unknown upload kind %q", kind)
}

func parseCommon(t Table, row []string) (int64, core.Money, core.Date, error) {
	raw := t.Value(row, "department_id")
	// spreadsheets often turn ids into "3.0"
	raw = strings.TrimSuffix(raw, ".0")
	deptID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || deptID <= 0 {
		return 0, core.Money{}, core.Date{}, fmt.Errorf("%w: %q", core.ErrNoDepartment, t.Value(row, "department_id"))
	}
	cents, err := parseAmount(t.Value(row, "amount"))
	if err != nil {
		return 0, core.Money{}, core.Date{}, fmt.Errorf("amount %q: %w", t.Value(row, "amount"), err)
	}
	date, err := ParseFlexibleDate(t.Value(row, "date"))
	if err != nil {
		return 0, core.Money{}, core.Date{}, err
	}
	return deptID, core.Money{Cents: cents}, date, nil
}

// parseAmount reads a spreadsheet amount. Commas are accepted only as
// thousands separators, either western ("12,500.00") or Indian
// ("1,23,456.50"). Any other comma is ambiguous and rejected.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ",") {
		return core.ParseDecimalToCents(s)
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	groups := strings.Split(intPart, ",")
	if !westernGrouping(groups) && !indianGrouping(groups) {
		return 0, core.ErrInvalidAmount
	}
	s = strings.Join(groups, "")
	if hasFrac {
		s += "." + frac
	}
	return core.ParseDecimalToCents(s)
}

// westernGrouping matches 1-3 leading digits followed by groups of three.
func westernGrouping(groups []string) bool {
	if len(groups) < 2 || !digitGroup(groups[0], 1, 3) {
		return false
	}
	for _, g := range groups[1:] {
		if !digitGroup(g, 3, 3) {
			return false
		}
	}
	return true
}

// indianGrouping matches 1-2 leading digits, groups of two, then a final group of three.
func indianGrouping(groups []string) bool {
	n := len(groups)
	if n < 2 || !digitGroup(groups[0], 1, 2) || !digitGroup(groups[n-1], 3, 3) {
		return false
	}
	for _, g := range groups[1 : n-1] {
		if !digitGroup(g, 2, 2) {
			return false
		}
	}
	return true
}

func digitGroup(g string, minLen, maxLen int) bool {
	if len(g) < minLen || len(g) > maxLen {
		return false
	}
	for _, r := range g {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"01-02-06",
}

// ParseFlexibleDate accepts ISO dates, day first dates and the short
// month-first form spreadsheets use for date cells.
func ParseFlexibleDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w %q", core.ErrInvalidDate, s)
}

// isRowError separates data problems, which skip the row, from storage
// failures, which abort the import.
func isRowError(err error) bool {
	for _, target := range []error{
		core.ErrNoDepartment, core.ErrInvalidAmount, core.ErrEmptyName, core.ErrEmptyType,
		core.ErrInvalidDay, core.ErrInvalidMonth, core.ErrInvalidDate, core.ErrTooLong, core.ErrDuplicate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
