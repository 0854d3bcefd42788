package core

import "strings"

// Role controls which parts of the ledger a caller can see and change.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleExpenseUser Role = "EXPENSE_USER"
	RoleIncomeUser  Role = "INCOME_USER"
)

// ParseRole normalizes a role name. The second result is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleExpenseUser, RoleIncomeUser:
		return r, true
	}
	return r, false
}

// SeesIncome reports whether income data is visible to the role.
func (r Role) SeesIncome() bool {
	return r == RoleAdmin || r == RoleIncomeUser
}

// SeesExpenses reports whether expense data is visible to the role.
func (r Role) SeesExpenses() bool {
	return r == RoleAdmin || r == RoleExpenseUser
}

// SeesLoans reports whether loan data is visible to the role.
func (r Role) SeesLoans() bool {
	return r == RoleAdmin
}

func (r Role) CanManageDepartments() bool { return r == RoleAdmin }
func (r Role) CanManageLoans() bool       { return r == RoleAdmin }
func (r Role) CanRecordExpenses() bool    { return r.SeesExpenses() }
func (r Role) CanRecordIncome() bool      { return r.SeesIncome() }
