package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "run", "--seed", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header + 10 trials + blank + final values
	if len(lines) != 13 {
		t.Errorf("run printed %d lines, want 13:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "Final values:") {
		t.Errorf("missing final values:\n%s", out)
	}
}

func TestRunCmd_JSON(t *testing.T) {
	env := newTestEnv(t)
	var res struct {
		Steps []struct {
			Trial  int     `json:"trial"`
			Reward float64 `json:"reward"`
		} `json:"steps"`
		FinalValues []float64 `json:"final_values"`
	}
	env.runJSON(t, &res, "run", "--rewards", "1, 1, 1,-1")
	if len(res.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(res.Steps))
	}
	if res.Steps[3].Reward != -1 {
		t.Errorf("step 4 reward = %v, want -1", res.Steps[3].Reward)
	}
	if len(res.FinalValues) != 2 {
		t.Errorf("final values = %v", res.FinalValues)
	}
}

func TestRunCmd_TraceWritesChoices(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, "run", "--log-level", "trace"); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(env.dataDir, "choices.jsonl"))
	if err != nil {
		t.Fatalf("reading choice log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 10 {
		t.Errorf("choice log has %d lines, want 10", n)
	}
}

func TestParseRewards(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1,-1,0", 3, false},
		{" 1 , 0.5 ,", 2, false},
		{"", 0, true},
		{",,", 0, true},
		{"1,x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRewards(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRewards(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("parseRewards(%q) = %v, want %d values", tt.in, got, tt.want)
		}
	}
}
