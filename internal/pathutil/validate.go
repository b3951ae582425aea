// Package pathutil confines file operations requested over MCP or the HTTP
// API to the gonogo data directory.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned when a path escapes every allowed directory.
var ErrOutsideAllowed = errors.New("outside allowed directories")

// Subdirectories of the data dir that accept user-named files.
const (
	BackupsDir = "backups"
	ExportsDir = "exports"
)

// RedactPath shortens a path to .../<parent>/<basename> for error messages.
// For example, "/home/user/.gonogo/gonogo.db" becomes ".../.gonogo/gonogo.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath checks that path resolves inside one of allowedDirs.
// Symlinks on the existing part of the path are resolved first, so a link
// inside an allowed directory cannot point outside it.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	resolved, err := Resolve(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	for _, dir := range allowedDirs {
		root, err := Resolve(dir)
		if err != nil {
			continue
		}
		if within(resolved, root) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is %w", RedactPath(resolved), ErrOutsideAllowed)
}

// Resolve returns the absolute, symlink-free form of path. Trailing
// components that do not exist yet are kept as given.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	var missing []string
	cur := abs
	for {
		res, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				res = filepath.Join(res, missing[i])
			}
			return res, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("cannot resolve path: %s", RedactPath(abs))
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

// within reports whether path equals root or lies below it.
func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// AllowedDirs returns the directories under dataDir where user-named files
// may be written or read: backups/ and exports/.
func AllowedDirs(dataDir string) []string {
	return []string{
		filepath.Join(dataDir, BackupsDir),
		filepath.Join(dataDir, ExportsDir),
	}
}

// InDir joins name onto dir and validates the result stays inside dir.
// Bare file names are the common case; names with separators are allowed as
// long as they do not escape.
func InDir(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		if err := ValidatePath(name, []string{dir}); err != nil {
			return "", err
		}
		return name, nil
	}
	p := filepath.Join(dir, name)
	if err := ValidatePath(p, []string{dir}); err != nil {
		return "", err
	}
	return p, nil
}
