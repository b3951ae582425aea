package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteTrialStore {
	t.Helper()
	s, err := store.NewSQLiteTrialStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteTrialStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestData(t *testing.T, s store.TrialStore) {
	t.Helper()
	ctx := context.Background()
	ts := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	if err := s.CreateSession(ctx, store.Session{ID: "sess-1", UserID: "agent-0", Source: constants.SourceAgent, Seed: 3, CreatedAt: ts}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	trials := []store.TrialRecord{
		{UserID: "u1", TrialNumber: 1, Stimulus: "go1", ReactionTime: 350, Correct: true, ScoreChange: 50, NewScore: 50, Timestamp: ts},
		{UserID: "u1", TrialNumber: 2, Stimulus: "nogo1", Correct: true, ScoreChange: 50, NewScore: 100, Timestamp: ts.Add(time.Second)},
		{UserID: "agent-0", SessionID: "sess-1", Source: constants.SourceAgent, TrialNumber: 1, Block: "MC", Stimulus: "go2", ReactionTime: 500, Correct: true, ScoreChange: 50, NewScore: 50, Action: "go", Timestamp: ts},
	}
	if err := s.AddTrials(ctx, trials); err != nil {
		t.Fatalf("AddTrials() error = %v", err)
	}
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := createTestStore(t)
	addTestData(t, src)

	path := filepath.Join(t.TempDir(), "b.json.gz")
	h, err := Backup(ctx, src, path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if h.TrialCount != 3 || h.SessionCount != 1 {
		t.Errorf("header counts = %d/%d, want 3/1", h.TrialCount, h.SessionCount)
	}

	dst := createTestStore(t)
	res, err := Restore(ctx, dst, path, RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if res.TrialsRestored != 3 || res.SessionsRestored != 1 {
		t.Errorf("result = %+v", res)
	}

	got, err := dst.ListTrials(ctx, store.Filter{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("ListTrials() error = %v", err)
	}
	if len(got) != 1 || got[0].Action != "go" || got[0].Block != "MC" {
		t.Errorf("restored agent trials = %+v", got)
	}
}

func TestRestore_MergeSkipsExisting(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	addTestData(t, s)

	path := filepath.Join(t.TempDir(), "b.json.gz")
	if _, err := Backup(ctx, s, path); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	res, err := Restore(ctx, s, path, RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if res.TrialsRestored != 0 || res.TrialsSkipped != 3 || res.SessionsSkipped != 1 {
		t.Errorf("result = %+v, want everything skipped", res)
	}
	if n, _ := s.CountTrials(ctx, store.Filter{}); n != 3 {
		t.Errorf("CountTrials() = %d, want 3", n)
	}
}

func TestRestore_Replace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	addTestData(t, s)

	path := filepath.Join(t.TempDir(), "b.json.gz")
	if _, err := Backup(ctx, s, path); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := s.AddTrial(ctx, store.TrialRecord{UserID: "late", Stimulus: "go1"}); err != nil {
		t.Fatal(err)
	}

	res, err := Restore(ctx, s, path, RestoreReplace)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if res.TrialsDeleted != 4 || res.TrialsRestored != 3 {
		t.Errorf("result = %+v", res)
	}
	if n, _ := s.CountTrials(ctx, store.Filter{UserID: "late"}); n != 0 {
		t.Errorf("trial added after the backup survived replace")
	}
}

func TestBackup_PathValidation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	allowedDir := t.TempDir()
	outsideDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"inside allowed dir", filepath.Join(allowedDir, "b.json.gz"), false},
		{"outside allowed dir", filepath.Join(outsideDir, "b.json.gz"), true},
		{"traversal", filepath.Join(allowedDir, "..", "escape.json.gz"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Backup(ctx, s, tt.path, allowedDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("Backup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && !strings.Contains(err.Error(), "path rejected") {
				t.Errorf("Backup() error = %v, want 'path rejected'", err)
			}
		})
	}

	if _, err := Restore(ctx, s, filepath.Join(outsideDir, "b.json.gz"), RestoreMerge, allowedDir); err == nil {
		t.Error("Restore() outside allowed dir should fail")
	}
}

func TestBackup_FilePermissions(t *testing.T) {
	s := createTestStore(t)
	path := filepath.Join(t.TempDir(), "b.json.gz")
	if _, err := Backup(context.Background(), s, path); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestParseRestoreMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RestoreMode
		wantErr bool
	}{
		{"", RestoreMerge, false},
		{"merge", RestoreMerge, false},
		{"REPLACE", RestoreReplace, false},
		{"wipe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRestoreMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRestoreMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestGenerateBackupPath(t *testing.T) {
	dir := t.TempDir()
	p := GenerateBackupPath(dir)
	if filepath.Dir(p) != dir {
		t.Errorf("dir = %s, want %s", filepath.Dir(p), dir)
	}
	if !isBackupFile(filepath.Base(p)) {
		t.Errorf("%s is not recognised as a backup file", p)
	}
}
