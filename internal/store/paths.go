package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFileName is the SQLite file inside the data directory.
const DBFileName = "gonogo.db"

// DefaultDataDir returns the global data directory.
// On Unix: ~/.gonogo
// On Windows: %USERPROFILE%\.gonogo
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gonogo"), nil
}

// ResolveDataDir returns dir when set, otherwise DefaultDataDir.
func ResolveDataDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return DefaultDataDir()
}
