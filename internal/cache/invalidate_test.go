package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPurgeHTTPCacheByAge(t *testing.T) {
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	if err := c.Save(context.Background(), "https://old.example/", "text/plain", "", "", []byte("old")); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := c.Save(context.Background(), "https://new.example/", "text/plain", "", "", []byte("new")); err != nil {
		t.Fatalf("save new: %v", err)
	}
	// Backdate the first entry's SavedAt.
	key := c.key("https://old.example/")
	meta := HTTPEntry{URL: "https://old.example/", SavedAt: time.Now().Add(-48 * time.Hour).UTC()}
	b, _ := json.Marshal(meta)
	if err := os.WriteFile(filepath.Join(dir, key+".meta.json"), b, 0o644); err != nil {
		t.Fatalf("rewrite meta: %v", err)
	}

	removed, err := PurgeHTTPCacheByAge(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := c.LoadBody(context.Background(), "https://old.example/"); err == nil {
		t.Fatalf("expected old body removed")
	}
	if _, err := c.LoadBody(context.Background(), "https://new.example/"); err != nil {
		t.Fatalf("expected new body kept: %v", err)
	}
}

func TestPurgeLLMCacheByAge(t *testing.T) {
	dir := t.TempDir()
	c := &LLMCache{Dir: dir}
	key := KeyFrom("m", "p")
	if err := c.Save(context.Background(), key, []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, key+".json"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := PurgeLLMCacheByAge(dir, time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("purge removed=%d err=%v", removed, err)
	}
}

func TestClearDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "c")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries err=%v", len(entries), err)
	}
	if err := ClearDir("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestPurge_MissingDirIsNoop(t *testing.T) {
	removed, err := PurgeHTTPCacheByAge(filepath.Join(t.TempDir(), "missing"), time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
}
