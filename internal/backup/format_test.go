package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/gonogo/internal/store"
)

func samplePayload() *Payload {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Payload{
		CreatedAt: ts,
		Sessions: []store.Session{
			{ID: "s1", UserID: "agent-0", Source: "agent", Seed: 7, CreatedAt: ts},
		},
		Trials: []store.TrialRecord{
			{ID: 1, UserID: "u1", Source: "human", TrialNumber: 1, Stimulus: "go1", ReactionTime: 420, Correct: true, ScoreChange: 50, NewScore: 50, Timestamp: ts},
			{ID: 2, UserID: "agent-0", SessionID: "s1", Source: "agent", TrialNumber: 1, Stimulus: "nogo2", ScoreChange: 50, NewScore: 50, Action: "no-go", Timestamp: ts},
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h, err := Encode(&buf, samplePayload(), map[string]string{"host": "lab"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if h.TrialCount != 2 || h.SessionCount != 1 {
		t.Errorf("header counts = %d/%d, want 2/1", h.TrialCount, h.SessionCount)
	}
	if !strings.HasPrefix(h.Checksum, "sha256:") {
		t.Errorf("Checksum = %q, want sha256: prefix", h.Checksum)
	}

	gotH, p, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if gotH.Checksum != h.Checksum || gotH.Metadata["host"] != "lab" {
		t.Errorf("decoded header = %+v", gotH)
	}
	if len(p.Trials) != 2 || p.Trials[1].Stimulus != "nogo2" || p.Trials[0].ReactionTime != 420 {
		t.Errorf("decoded trials = %+v", p.Trials)
	}
	if p.Sessions[0].Seed != 7 {
		t.Errorf("session seed = %d, want 7", p.Sessions[0].Seed)
	}
}

func TestDecode_Corrupted(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Encode(&buf, samplePayload(), nil); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	_, _, err := Decode(bytes.NewReader(data))
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("Decode() error = %v, want ErrChecksum", err)
	}
}

func TestDecode_BadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not json", "hello\n"},
		{"wrong magic", `{"magic":"other-backup","version":2}` + "\n"},
		{"wrong version", `{"magic":"gonogo-backup","version":1}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(strings.NewReader(tt.input)); err == nil {
				t.Error("Decode() expected error")
			}
		})
	}
}

func TestWriteFile_VerifyAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "b.json.gz")
	if _, err := WriteFile(path, samplePayload(), nil); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	h, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if h.TrialCount != 2 {
		t.Errorf("TrialCount = %d, want 2", h.TrialCount)
	}

	rh, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if rh.Checksum != h.Checksum {
		t.Errorf("ReadHeader checksum = %s, want %s", rh.Checksum, h.Checksum)
	}

	// Tamper with the payload.
	data, _ := os.ReadFile(path)
	data[len(data)-3] ^= 0x01
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(path); !errors.Is(err, ErrChecksum) {
		t.Errorf("Verify() after tamper error = %v, want ErrChecksum", err)
	}
}
