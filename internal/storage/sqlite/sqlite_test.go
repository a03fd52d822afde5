package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/scout/internal/storage"
	"github.com/FranksOps/scout/internal/storage/storagetest"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	storagetest.Exercise(t, b)
}

func TestSQLiteBackend_OffsetWithoutLimit(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	for _, r := range storagetest.Records(time.Now()) {
		if err := b.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := b.Query(ctx, storage.Filter{Offset: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("expected the oldest run, got %d runs", len(runs))
	}
}

func TestSQLiteBackend_DuplicateID(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	run := &storage.RunRecord{ID: "same"}
	if err := b.Save(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := b.Save(ctx, run); err == nil {
		t.Errorf("expected primary key violation")
	}
}
