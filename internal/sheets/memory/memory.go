package memory

import (
	"context"
	"sync"

	"finboard/internal/core"
	"finboard/internal/sheets"
)

var _ sheets.ReportWriter = (*Store)(nil)

// Store keeps written reports in memory.
type Store struct {
	mu      sync.Mutex
	reports []core.Report
	rows    [][]any
}

func New() *Store {
	return &Store{}
}

func (s *Store) WriteReport(_ context.Context, r core.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	s.rows = sheets.ReportRows(r)
	return nil
}

// Reports returns every report written so far.
func (s *Store) Reports() []core.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Report(nil), s.reports...)
}

// Rows returns the sheet rows of the last written report.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}
