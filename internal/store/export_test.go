package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/gonogo/internal/constants"
)

func TestReadJSONL_ClientBody(t *testing.T) {
	in := `{"userId":"abc","trialNumber":3,"stimulus":"nogo2","reactionTime":0,"correct":true,"scoreChange":50,"newScore":150}

{"userId":"abc","trialNumber":4,"stimulus":"go1","reactionTime":812,"correct":false,"scoreChange":-50,"newScore":100}
`
	trials, err := ReadJSONL(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("ReadJSONL() returned %d trials, want 2", len(trials))
	}
	if trials[1].ReactionTime != 812 || trials[1].ScoreChange != -50 {
		t.Errorf("trial 2 = %+v", trials[1])
	}
}

func TestReadJSONL_BadLine(t *testing.T) {
	_, err := ReadJSONL(strings.NewReader("{\"userId\":\"a\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ReadJSONL() error = %v, want line 2 error", err)
	}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, []TrialRecord{sampleTrial("u1", 1), sampleTrial("u1", 2)}); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"userId":"u1"`) {
		t.Errorf("line 1 = %s, want camelCase userId", lines[0])
	}
}

func TestExportImportJSONL(t *testing.T) {
	ctx := context.Background()
	src := newTestSQLiteStore(t)

	src.CreateSession(ctx, Session{ID: "s1", UserID: "agent-0", Source: constants.SourceAgent})
	agentTrial := sampleTrial("agent-0", 1)
	agentTrial.SessionID = "s1"
	agentTrial.Source = constants.SourceAgent
	src.AddTrial(ctx, agentTrial)
	src.AddTrial(ctx, sampleTrial("u1", 1))

	path := filepath.Join(t.TempDir(), "trials.jsonl")
	n, err := ExportJSONL(ctx, src, Filter{}, path)
	if err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ExportJSONL() = %d, want 2", n)
	}

	dst := newTestSQLiteStore(t)
	n, err = ImportJSONL(ctx, dst, path)
	if err != nil {
		t.Fatalf("ImportJSONL() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ImportJSONL() = %d, want 2", n)
	}
	if _, err := dst.GetSession(ctx, "s1"); err != nil {
		t.Errorf("placeholder session not created: %v", err)
	}
	count, _ := dst.CountTrials(ctx, Filter{Source: constants.SourceAgent})
	if count != 1 {
		t.Errorf("imported agent trials = %d, want 1", count)
	}
}

func TestImportJSONL_MissingFile(t *testing.T) {
	n, err := ImportJSONL(context.Background(), NewInMemoryTrialStore(), filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil || n != 0 {
		t.Errorf("ImportJSONL(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestImportTrials_PlaceholderSessions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryTrialStore()

	a := sampleTrial("agent-0", 1)
	a.SessionID = "sess-1"
	a.ID = 99
	b := sampleTrial("agent-0", 2)
	b.SessionID = "sess-1"
	c := sampleTrial("human-1", 1)

	n, err := ImportTrials(ctx, s, []TrialRecord{a, b, c})
	if err != nil {
		t.Fatalf("ImportTrials() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ImportTrials() = %d, want 3", n)
	}

	sess, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("placeholder session missing: %v", err)
	}
	if sess.UserID != "agent-0" {
		t.Errorf("placeholder user = %q, want agent-0", sess.UserID)
	}
	sessions, _ := s.ListSessions(ctx)
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions))
	}
	if _, err := s.GetTrial(ctx, 99); err == nil {
		t.Error("imported trial kept its original id")
	}
}
