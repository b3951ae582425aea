package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// WriteJSONL writes trials to w, one JSON object per line.
func WriteJSONL(w io.Writer, trials []TrialRecord) error {
	enc := json.NewEncoder(w)
	for _, t := range trials {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to encode trial %d: %w", t.ID, err)
		}
	}
	return nil
}

// ReadJSONL parses trials from r. Blank lines are skipped; malformed lines
// are returned as an error naming the line.
func ReadJSONL(r io.Reader) ([]TrialRecord, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024) // 1MB max line length

	var trials []TrialRecord
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t TrialRecord
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		trials = append(trials, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return trials, nil
}

// ExportJSONL writes every trial matching filter to path.
func ExportJSONL(ctx context.Context, s TrialStore, filter Filter, path string) (int, error) {
	trials, err := s.ListTrials(ctx, filter)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteJSONL(w, trials); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return len(trials), f.Sync()
}

// ImportJSONL loads trials from path into s. Imported rows get fresh ids.
// A missing file imports nothing.
func ImportJSONL(ctx context.Context, s TrialStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	trials, err := ReadJSONL(f)
	if err != nil {
		return 0, err
	}
	return ImportTrials(ctx, s, trials)
}

// ImportTrials adds trials read from an export to s. Ids are reset and
// unknown sessions get placeholder rows.
func ImportTrials(ctx context.Context, s TrialStore, trials []TrialRecord) (int, error) {
	seen := make(map[string]bool)
	for i := range trials {
		trials[i].ID = 0
		if err := ensureSession(ctx, s, trials[i], seen); err != nil {
			return 0, err
		}
	}
	if err := s.AddTrials(ctx, trials); err != nil {
		return 0, err
	}
	return len(trials), nil
}

// ensureSession creates a placeholder session for a trial whose session is
// not yet known to s, so the trial's foreign key resolves.
func ensureSession(ctx context.Context, s TrialStore, t TrialRecord, seen map[string]bool) error {
	if t.SessionID == "" || seen[t.SessionID] {
		return nil
	}
	seen[t.SessionID] = true

	_, err := s.GetSession(ctx, t.SessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.CreateSession(ctx, Session{
		ID:        t.SessionID,
		UserID:    t.UserID,
		Source:    t.Source,
		CreatedAt: t.Timestamp,
	})
}
