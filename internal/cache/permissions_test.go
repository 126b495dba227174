package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStrictPerms(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		save  func(dir string) error
		files func(dir string) []string
	}{
		{
			name: "http",
			save: func(dir string) error {
				return (&HTTPCache{Dir: dir, StrictPerms: true}).Save(ctx, "https://example.com/x", "text/plain", "", "", []byte("hello"))
			},
			files: func(dir string) []string {
				c := &HTTPCache{Dir: dir}
				key := c.key("https://example.com/x")
				return []string{c.bodyPath(key), c.metaPath(key)}
			},
		},
		{
			name: "llm",
			save: func(dir string) error {
				return (&LLMCache{Dir: dir, StrictPerms: true}).Save(ctx, KeyFrom("m", "p"), []byte("ok"))
			},
			files: func(dir string) []string {
				return []string{(&LLMCache{Dir: dir}).pathFor(KeyFrom("m", "p"))}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tc.name)
			if err := tc.save(dir); err != nil {
				t.Fatalf("save: %v", err)
			}
			assertMode(t, dir, 0o700)
			for _, f := range tc.files(dir) {
				assertMode(t, f, 0o600)
			}
		})
	}
}

func TestEnsureDir_TightensExistingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "loose")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := ensureDir(dir, true); err != nil {
		t.Fatalf("ensureDir: %v", err)
	}
	assertMode(t, dir, 0o700)
}

func assertMode(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if got := info.Mode() & 0o777; got != want {
		t.Fatalf("%s mode = %o, want %o", filepath.Base(path), got, want)
	}
}
