package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// UploadKind selects which records a spreadsheet upload contains.
type UploadKind string

const (
	UploadExpense    UploadKind = "EXPENSE"
	UploadIncome     UploadKind = "INCOME"
	UploadDepartment UploadKind = "DEPARTMENT"
)

// ParseUploadKind accepts the kind names case insensitively.
func ParseUploadKind(s string) (UploadKind, error) {
	k := UploadKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case UploadExpense, UploadIncome, UploadDepartment:
		return k, nil
	}
	return "", fmt.Errorf("unknown upload type %q", s)
}

// RequiredColumns lists the header names a file of this kind must carry.
func (k UploadKind) RequiredColumns() []string {
	switch k {
	case UploadExpense:
		return []string{"department_id", "expense_type", "amount", "date"}
	case UploadIncome:
		return []string{"department_id", "service_type", "amount", "date"}
	case UploadDepartment:
		return []string{"name"}
	}
	return nil
}

// AllowedFor reports whether role may upload files of this kind.
func (k UploadKind) AllowedFor(role Role) bool {
	switch k {
	case UploadExpense:
		return role.CanRecordExpenses()
	case UploadIncome:
		return role.CanRecordIncome()
	case UploadDepartment:
		return role.CanManageDepartments()
	}
	return false
}

type UploadStatus string

const (
	UploadPending    UploadStatus = "PENDING"
	UploadProcessing UploadStatus = "PROCESSING"
	UploadProcessed  UploadStatus = "PROCESSED"
	UploadFailed     UploadStatus = "FAILED"
)

// FileFormat is derived from the uploaded file name.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
)

// DetectFormat maps a file name to a supported format.
func DetectFormat(name string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file type %q: only .csv and .xlsx are accepted", filepath.Ext(name))
}

// Upload tracks one uploaded file through import.
type Upload struct {
	ID        string
	Kind      UploadKind
	FileName  string
	Path      string
	Status    UploadStatus
	Imported  int
	Skipped   int
	Error     string
	CreatedAt time.Time
}
