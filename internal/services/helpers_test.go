package services

import (
	"context"
	"path/filepath"
	"testing"

	"finboard/internal/core"
	"finboard/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustDepartment(t *testing.T, repo *storage.SQLiteRepository, name string) core.Department {
	t.Helper()
	d, err := repo.CreateDepartment(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateDepartment(%q): %v", name, err)
	}
	return d
}

type counter struct{ n int }

func (c *counter) inc() { c.n++ }
