package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/pinbase/internal/ir"
)

// createTestStore creates a new temp-dir store for testing with a fixed
// wall clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSource(t *testing.T, s *Store, id string, priority int) ir.Source {
	t.Helper()
	src := ir.Source{ID: id, Name: id, Category: ir.CategoryDatabase, Priority: priority}
	if err := s.UpsertSource(context.Background(), src); err != nil {
		t.Fatalf("UpsertSource(%s) failed: %v", id, err)
	}
	return src
}

func seedModel(t *testing.T, s *Store, id string) ir.EntityRef {
	t.Helper()
	ref := ir.Ref(ir.KindModel, id)
	if err := s.UpsertEntities(context.Background(), []ir.Entity{{Ref: ref}}); err != nil {
		t.Fatalf("UpsertEntities(%s) failed: %v", ref, err)
	}
	return ref
}
