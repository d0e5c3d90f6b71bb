package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDirPerm os.FileMode = 0o750

// ErrOutsideBase is returned when a path resolves outside the permitted base directory.
var ErrOutsideBase = errors.New("path outside allowed base")

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned output dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// ResolveWithin returns the absolute path of name under base. Absolute names are
// taken as-is, relative names are joined to base. The result must be base itself
// or one of its descendants, otherwise ErrOutsideBase is returned.
// The filesystem is never consulted.
func ResolveWithin(base, name string) (string, error) {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs base: %w", err)
	}
	candidate := name
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(baseAbs, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !IsWithin(baseAbs, candidate) {
		return "", ErrOutsideBase
	}
	return candidate, nil
}

// IsWithin reports whether target equals base or lies below it.
// Both paths are expected to be absolute and clean.
func IsWithin(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
