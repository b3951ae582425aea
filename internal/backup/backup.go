// Package backup snapshots the trial store to gzip-compressed files with a
// checksummed header, and restores them.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/gonogo/internal/pathutil"
	"github.com/nvandessel/gonogo/internal/store"
)

// FilePrefix and FileSuffix bracket generated backup file names.
const (
	FilePrefix = "gonogo-backup-"
	FileSuffix = ".json.gz"
)

// Payload is the decompressed body of a backup file.
type Payload struct {
	CreatedAt time.Time           `json:"created_at"`
	Sessions  []store.Session     `json:"sessions"`
	Trials    []store.TrialRecord `json:"trials"`
}

// DefaultBackupDir returns the default backup directory (~/.gonogo/backups/).
func DefaultBackupDir() (string, error) {
	dataDir, err := store.DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, pathutil.BackupsDir), nil
}

// Backup writes every session and trial in ts to outputPath. When
// allowedDirs is non-empty, outputPath must resolve inside one of them.
func Backup(ctx context.Context, ts store.TrialStore, outputPath string, allowedDirs ...string) (*Header, error) {
	if len(allowedDirs) > 0 {
		if err := pathutil.ValidatePath(outputPath, allowedDirs); err != nil {
			return nil, fmt.Errorf("backup path rejected: %w", err)
		}
	}

	sessions, err := ts.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	trials, err := ts.ListTrials(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("listing trials: %w", err)
	}

	p := &Payload{
		CreatedAt: time.Now().UTC(),
		Sessions:  sessions,
		Trials:    trials,
	}
	if p.Sessions == nil {
		p.Sessions = []store.Session{}
	}
	if p.Trials == nil {
		p.Trials = []store.TrialRecord{}
	}
	return WriteFile(outputPath, p, map[string]string{"source": "gonogo"})
}

// RestoreMode controls how restore handles existing data.
type RestoreMode string

const (
	// RestoreMerge skips trials that already exist (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes every trial before restoring.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode validates a mode name; empty means merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(strings.ToLower(s)) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (want merge or replace)", s)
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	SessionsRestored int `json:"sessions_restored"`
	SessionsSkipped  int `json:"sessions_skipped"`
	TrialsRestored   int `json:"trials_restored"`
	TrialsSkipped    int `json:"trials_skipped"`
	TrialsDeleted    int `json:"trials_deleted,omitempty"`
}

// trialKey identifies a trial independent of its store-assigned id.
type trialKey struct {
	user, session, source string
	number                int
	ts                    int64
}

func keyOf(t store.TrialRecord) trialKey {
	return trialKey{
		user:    t.UserID,
		session: t.SessionID,
		source:  string(t.Source),
		number:  t.TrialNumber,
		ts:      t.Timestamp.UnixMicro(),
	}
}

// Restore loads the backup at inputPath into ts. Sessions that already
// exist are skipped in both modes. In merge mode a trial is skipped when
// one with the same user, session, source, number and timestamp exists.
func Restore(ctx context.Context, ts store.TrialStore, inputPath string, mode RestoreMode, allowedDirs ...string) (*RestoreResult, error) {
	if len(allowedDirs) > 0 {
		if err := pathutil.ValidatePath(inputPath, allowedDirs); err != nil {
			return nil, fmt.Errorf("restore path rejected: %w", err)
		}
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup file: %w", err)
	}
	if info.Size() > MaxDecompressedSize {
		return nil, fmt.Errorf("backup file too large (%d bytes, max %d)", info.Size(), MaxDecompressedSize)
	}

	_, p, err := ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	result := &RestoreResult{}
	if mode == RestoreReplace {
		n, err := ts.DeleteTrials(ctx, store.Filter{})
		if err != nil {
			return nil, fmt.Errorf("clearing trials: %w", err)
		}
		result.TrialsDeleted = n
	}

	for _, s := range p.Sessions {
		if _, err := ts.GetSession(ctx, s.ID); err == nil {
			result.SessionsSkipped++
			continue
		}
		if err := ts.CreateSession(ctx, s); err != nil {
			return nil, fmt.Errorf("restoring session %s: %w", s.ID, err)
		}
		result.SessionsRestored++
	}

	existing := make(map[trialKey]bool)
	if mode == RestoreMerge {
		current, err := ts.ListTrials(ctx, store.Filter{})
		if err != nil {
			return nil, fmt.Errorf("listing existing trials: %w", err)
		}
		for _, t := range current {
			existing[keyOf(t)] = true
		}
	}

	batch := make([]store.TrialRecord, 0, len(p.Trials))
	for _, t := range p.Trials {
		k := keyOf(t)
		if existing[k] {
			result.TrialsSkipped++
			continue
		}
		existing[k] = true
		t.ID = 0
		batch = append(batch, t)
	}
	if err := ts.AddTrials(ctx, batch); err != nil {
		return nil, fmt.Errorf("restoring trials: %w", err)
	}
	result.TrialsRestored = len(batch)

	return result, nil
}

// GenerateBackupPath creates a timestamped backup filename in the given
// directory. Names sort chronologically.
func GenerateBackupPath(dir string) string {
	ts := time.Now().UTC().Format("20060102-150405.000000")
	return filepath.Join(dir, FilePrefix+ts+FileSuffix)
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, FilePrefix) && strings.HasSuffix(name, FileSuffix)
}
