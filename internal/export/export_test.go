package export

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/ddm"
	"github.com/nvandessel/gonogo/internal/store"
)

// tempFile returns a seekable scratch file; the arrow IPC file writer needs
// an io.WriteSeeker.
func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.arrow")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func sampleTrials() []store.TrialRecord {
	pGo := 0.8125
	ts := time.Date(2026, 5, 4, 3, 2, 1, 123456000, time.UTC)
	return []store.TrialRecord{
		{ID: 1, UserID: "human-1", Source: constants.SourceHuman, TrialNumber: 1, Stimulus: "nogo1",
			ReactionTime: 0, Correct: true, ScoreChange: 50, NewScore: 50, Timestamp: ts},
		{ID: 2, UserID: "agent-0", SessionID: "s-1", Source: constants.SourceAgent, TrialNumber: 1, Block: "MC",
			Stimulus: "go2", ReactionTime: 431, Correct: true, ScoreChange: 50, NewScore: 50,
			Action: "go", PGo: &pGo, Timestamp: ts},
	}
}

func TestTrialsRoundTrip(t *testing.T) {
	buf := tempFile(t)
	in := sampleTrials()
	if err := WriteTrials(buf, in); err != nil {
		t.Fatalf("WriteTrials() error = %v", err)
	}

	out, err := ReadTrials(buf)
	if err != nil {
		t.Fatalf("ReadTrials() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("read %d trials, want %d", len(out), len(in))
	}

	human, agentRow := out[0], out[1]
	if human.SessionID != "" || human.Block != "" || human.Action != "" || human.PGo != nil {
		t.Errorf("human row optional fields = %+v, want empty/null", human)
	}
	if agentRow.PGo == nil || *agentRow.PGo != 0.8125 {
		t.Errorf("agent pGo = %v, want 0.8125", agentRow.PGo)
	}
	if agentRow.SessionID != "s-1" || agentRow.Block != "MC" || agentRow.ReactionTime != 431 {
		t.Errorf("agent row = %+v", agentRow)
	}
	if !agentRow.Timestamp.Equal(in[1].Timestamp) {
		t.Errorf("timestamp = %v, want %v", agentRow.Timestamp, in[1].Timestamp)
	}
}

func TestTrialRecordBatch_Nulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := TrialRecordBatch(mem, sampleTrials())
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != int64(len(TrialSchema.Fields())) {
		t.Fatalf("record shape = %dx%d", rec.NumRows(), rec.NumCols())
	}
	if n := rec.Column(12).NullN(); n != 1 {
		t.Errorf("p_go nulls = %d, want 1", n)
	}
	if n := rec.Column(2).NullN(); n != 1 {
		t.Errorf("session_id nulls = %d, want 1", n)
	}
}

func TestDDMRoundTrip_NaNAsNull(t *testing.T) {
	in := []ddm.Trial{
		{SubjIdx: 0, Condition: 1, Response: 1, Correct: true, RT: 0.512, Stimulus: 1},
		{SubjIdx: 0, Condition: 1, Response: 0, Correct: false, RT: math.NaN(), Stimulus: 1},
	}

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	rec := DDMRecordBatch(mem, in)
	if rec.Column(4).NullN() != 1 {
		t.Errorf("rt nulls = %d, want 1", rec.Column(4).NullN())
	}
	rec.Release()

	path := filepath.Join(t.TempDir(), "ddm.arrow")
	if err := WriteDDMFile(path, in); err != nil {
		t.Fatalf("WriteDDMFile() error = %v", err)
	}
	out, err := ReadDDMFile(path)
	if err != nil {
		t.Fatalf("ReadDDMFile() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("read %d rows, want 2", len(out))
	}
	if out[0] != in[0] {
		t.Errorf("row 0 = %+v, want %+v", out[0], in[0])
	}
	if !math.IsNaN(out[1].RT) || out[1].Response != 0 {
		t.Errorf("row 1 = %+v, want NaN RT", out[1])
	}
}

func TestReadWrongTable(t *testing.T) {
	buf := tempFile(t)
	if err := WriteDDM(buf, []ddm.Trial{{RT: 1}}); err != nil {
		t.Fatalf("WriteDDM() error = %v", err)
	}
	_, err := ReadTrials(buf)
	if !errors.Is(err, ErrWrongTable) {
		t.Errorf("ReadTrials(ddm file) error = %v, want ErrWrongTable", err)
	}
}

func TestTrialsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.arrow")
	if err := WriteTrialsFile(path, sampleTrials()); err != nil {
		t.Fatalf("WriteTrialsFile() error = %v", err)
	}
	out, err := ReadTrialsFile(path)
	if err != nil {
		t.Fatalf("ReadTrialsFile() error = %v", err)
	}
	if len(out) != 2 {
		t.Errorf("read %d trials, want 2", len(out))
	}
	if _, err := ReadTrialsFile(filepath.Join(t.TempDir(), "missing.arrow")); err == nil {
		t.Error("ReadTrialsFile(missing) should fail")
	}
}
