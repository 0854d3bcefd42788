package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Department struct {
		ID   int64
		Name string
	}

	Expense struct {
		ID           int64
		DepartmentID int64
		Department   string // Department name, filled on reads
		Type         string // Expense type (rent, salaries...)
		Amount       Money
		Date         Date
	}

	Income struct {
		ID           int64
		DepartmentID int64
		Department   string // Department name, filled on reads
		ServiceType  string
		Amount       Money
		Date         Date
	}

	Loan struct {
		ID           int64
		Name         string
		Principal    Money
		InterestRate float64 // Annual rate in percent
		TenureMonths int
		EMI          Money
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidRate   = errors.New("invalid interest rate")
	ErrInvalidTenure = errors.New("invalid tenure")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyType     = errors.New("empty type")
	ErrNoDepartment  = errors.New("missing department")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrDuplicate     = errors.New("already exists")
	ErrTooLong       = errors.New("too long")
	ErrInvalidDate   = errors.New("invalid date")
)

const maxNameLength = 100

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateLayout is the storage and form format for dates.
const DateLayout = "2006-01-02"

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (d Department) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name %w (max 100 characters)", ErrTooLong)
	}
	return nil
}

func (e Expense) Validate() error {
	if e.DepartmentID <= 0 {
		return ErrNoDepartment
	}
	if strings.TrimSpace(e.Type) == "" {
		return ErrEmptyType
	}
	if len(e.Type) > maxNameLength {
		return fmt.Errorf("expense type %w (max 100 characters)", ErrTooLong)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}

func (i Income) Validate() error {
	if i.DepartmentID <= 0 {
		return ErrNoDepartment
	}
	if strings.TrimSpace(i.ServiceType) == "" {
		return ErrEmptyType
	}
	if len(i.ServiceType) > maxNameLength {
		return fmt.Errorf("service type %w (max 100 characters)", ErrTooLong)
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	return i.Date.Validate()
}

func (l Loan) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if len(l.Name) > maxNameLength {
		return fmt.Errorf("loan name %w (max 100 characters)", ErrTooLong)
	}
	if err := l.Principal.Validate(); err != nil {
		return err
	}
	if l.InterestRate < 0 || l.InterestRate > 100 {
		return ErrInvalidRate
	}
	if l.TenureMonths < 1 || l.TenureMonths > 600 {
		return ErrInvalidTenure
	}
	return nil
}
