package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewBlobStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, found, err := store.Get(ctx, "questions.json"); err != nil || found {
		t.Fatalf("expected absent blob, found=%v err=%v", found, err)
	}

	if err := store.Set(ctx, "questions.json", []byte(`[{"question":"Größe?"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, found, err := store.Get(ctx, "questions.json")
	if err != nil || !found {
		t.Fatalf("expected blob, found=%v err=%v", found, err)
	}
	if string(data) != `[{"question":"Größe?"}]` {
		t.Fatalf("unexpected data %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}

	if err := store.Delete(ctx, "questions.json"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "questions.json"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "questions.json")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func TestBlobStoreKeysCannotEscapeDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewBlobStore(filepath.Join(dir, "data"))

	if err := store.Set(ctx, "../escape.json", []byte("x")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.json")); !os.IsNotExist(err) {
		t.Fatalf("expected key confined to data dir")
	}
	if _, found, _ := store.Get(ctx, "escape.json"); !found {
		t.Fatalf("expected blob stored under its base name")
	}
}
