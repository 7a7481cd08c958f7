package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docqa-platform/models"
)

func TestSweepRemovesOnlyOldOrphans(t *testing.T) {
	root := t.TempDir()
	docs := newFakeDocStore()
	ctx := context.Background()

	keptPath := filepath.Join(root, "kept.pdf")
	orphanOld := filepath.Join(root, "orphan-old.pdf")
	orphanNew := filepath.Join(root, "orphan-new.pdf")
	for _, p := range []string{keptPath, orphanOld, orphanNew} {
		if err := os.WriteFile(p, []byte("content"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	// Age the old orphan past the sweep floor.
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(orphanOld, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := docs.Insert(ctx, models.Document{
		ID: "doc-1", OwnerEmail: "alice@example.com", FilePath: keptPath,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Referenced files survive even when old.
	if err := os.Chtimes(keptPath, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	sweeper := NewStorageSweeper(root, time.Hour, docs)
	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if _, err := os.Stat(keptPath); err != nil {
		t.Errorf("referenced file was removed: %v", err)
	}
	if _, err := os.Stat(orphanNew); err != nil {
		t.Errorf("recent orphan was removed: %v", err)
	}
	if _, err := os.Stat(orphanOld); !os.IsNotExist(err) {
		t.Errorf("old orphan still present")
	}
}

func TestSweepMissingRootIsNoop(t *testing.T) {
	sweeper := NewStorageSweeper(filepath.Join(t.TempDir(), "missing"), time.Hour, newFakeDocStore())
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep on missing root: %v", err)
	}
}
