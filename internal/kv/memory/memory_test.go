package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"registro/internal/kv"
)

func TestMemoryStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := s.Get(ctx, "a"); err != nil || v != "2" {
		t.Fatalf("unexpected get: v=%q err=%v", v, err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	_ = s.Set(ctx, "x", "1")
	_ = s.Set(ctx, "y", "2")
	if err := s.Clear(ctx); err != nil || s.Len() != 0 {
		t.Fatalf("clear left %d keys (err=%v)", s.Len(), err)
	}
}

func TestNewFromFileSeeds(t *testing.T) {
	dir := t.TempDir()
	// No file -> empty store
	if s := NewFromFile(filepath.Join(dir, "missing.txt")); s.Len() != 0 {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.txt")
	content := "# header\nbudget_monthly=500\n\nregistry_in=[]\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewFromFile(path)
	if s.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", s.Len())
	}
	if v, _ := s.Get(context.Background(), "budget_monthly"); v != "500" {
		t.Fatalf("unexpected seed value %q", v)
	}
}
