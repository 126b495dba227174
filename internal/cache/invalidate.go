package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes dir and everything in it, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeHTTPCacheByAge removes HTTP entries whose SavedAt is older than maxAge.
// Unreadable or malformed metadata is left alone.
func PurgeHTTPCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := walkFiles(dir, func(path string, _ fs.DirEntry) {
		if !strings.HasSuffix(path, ".meta.json") {
			return
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var e HTTPEntry
		if json.Unmarshal(b, &e) != nil || now.Sub(e.SavedAt) <= maxAge {
			return
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
	})
	return removed, err
}

// PurgeLLMCacheByAge removes LLM entries whose mtime is older than maxAge.
func PurgeLLMCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now()
	removed := 0
	err := walkFiles(dir, func(path string, d fs.DirEntry) {
		if !isLLMEntry(path) {
			return
		}
		info, err := d.Info()
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			return
		}
		removed++
		_ = os.Remove(path)
	})
	return removed, err
}

type lruEntry struct {
	files []string
	size  int64
	used  time.Time
}

// EnforceHTTPCacheLimits evicts least recently used HTTP entries until the
// cache holds at most maxCount entries and maxBytes bytes. Zero disables a
// limit. Recency is the body file's mtime, which LoadBody refreshes.
func EnforceHTTPCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	var entries []lruEntry
	err := walkFiles(dir, func(path string, d fs.DirEntry) {
		if !strings.HasSuffix(path, ".body") {
			return
		}
		info, err := d.Info()
		if err != nil {
			return
		}
		e := lruEntry{files: []string{path}, size: info.Size(), used: info.ModTime()}
		meta := strings.TrimSuffix(path, ".body") + ".meta.json"
		if mi, err := os.Stat(meta); err == nil {
			e.files = append(e.files, meta)
			e.size += mi.Size()
		}
		entries = append(entries, e)
	})
	if err != nil {
		return 0, err
	}
	return evict(entries, maxBytes, maxCount), nil
}

// EnforceLLMCacheLimits is EnforceHTTPCacheLimits for LLM entries.
func EnforceLLMCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	var entries []lruEntry
	err := walkFiles(dir, func(path string, d fs.DirEntry) {
		if !isLLMEntry(path) {
			return
		}
		if info, err := d.Info(); err == nil {
			entries = append(entries, lruEntry{files: []string{path}, size: info.Size(), used: info.ModTime()})
		}
	})
	if err != nil {
		return 0, err
	}
	return evict(entries, maxBytes, maxCount), nil
}

func evict(entries []lruEntry, maxBytes int64, maxCount int) int {
	sort.Slice(entries, func(i, j int) bool { return entries[i].used.Before(entries[j].used) })
	var total int64
	for _, e := range entries {
		total += e.size
	}
	count := len(entries)
	removed := 0
	for _, e := range entries {
		overCount := maxCount > 0 && count > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		for _, f := range e.files {
			_ = os.Remove(f)
		}
		total -= e.size
		count--
		removed++
	}
	return removed
}

func isLLMEntry(path string) bool {
	return strings.HasSuffix(path, ".json") && !strings.HasSuffix(path, ".meta.json")
}

func walkFiles(dir string, fn func(path string, d fs.DirEntry)) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			fn(path, d)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
