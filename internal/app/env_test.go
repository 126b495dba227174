package app

import (
	"os"
	"path/filepath"
	"testing"
)

// LoadEnvFiles reads KEY=VALUE pairs and populates the process environment.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=beta\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestLoadEnvFiles_MissingFileIgnored(t *testing.T) {
	if err := LoadEnvFiles(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing dotenv should be ignored, got %v", err)
	}
}

// CACHE_DIR is honored and GOEXTRACT_CACHE_DIR takes precedence over it.
func TestApplyEnvOverrides_CacheDir(t *testing.T) {
	t.Setenv("CACHE_DIR", "/tmp/goextract-cache")
	t.Setenv("GOEXTRACT_CACHE_DIR", "")
	var cfg Config
	ApplyEnvOverrides(&cfg)
	if cfg.CacheDir != "/tmp/goextract-cache" {
		t.Fatalf("CacheDir=%q, want /tmp/goextract-cache", cfg.CacheDir)
	}

	t.Setenv("GOEXTRACT_CACHE_DIR", "/tmp/other")
	ApplyEnvOverrides(&cfg)
	if cfg.CacheDir != "/tmp/other" {
		t.Fatalf("CacheDir=%q, want /tmp/other", cfg.CacheDir)
	}
}
