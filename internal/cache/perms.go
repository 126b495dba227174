package cache

import "os"

// perms returns the directory and file modes for a cache.
func perms(strict bool) (dir, file os.FileMode) {
	if strict {
		return 0o700, 0o600
	}
	return 0o755, 0o644
}

// ensureDir creates dir and, in strict mode, tightens an existing directory.
func ensureDir(dir string, strict bool) error {
	if dir == "" {
		return errNoDir
	}
	mode, _ := perms(strict)
	if err := os.MkdirAll(dir, mode); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != mode {
			return os.Chmod(dir, mode)
		}
	}
	return nil
}
