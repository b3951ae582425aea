package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestTrialsList_Empty(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "trials", "list")
	if err != nil {
		t.Fatalf("trials list: %v", err)
	}
	if !strings.Contains(out, "No trials found.") {
		t.Errorf("output = %q", out)
	}
}

func TestTrialsList_InvalidSource(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, "trials", "list", "--source", "robot"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestTrialsExportImport(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		format string
	}{
		{"arrow", "trials.arrow", "arrow"},
		{"jsonl", "trials.jsonl", "jsonl"},
		{"explicit format", "trials.dat", "jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestEnv(t)
			if _, err := src.run(t, "task", "--persist"); err != nil {
				t.Fatalf("task: %v", err)
			}

			path := filepath.Join(src.dir, tt.file)
			args := []string{"trials", "export", path}
			if tt.file == "trials.dat" {
				args = append(args, "--format", tt.format)
			}
			var exp struct {
				Format string `json:"format"`
				Count  int    `json:"count"`
			}
			src.runJSON(t, &exp, args...)
			if exp.Format != tt.format || exp.Count != 400 {
				t.Errorf("export = %+v, want %s with 400 trials", exp, tt.format)
			}

			dst := newTestEnv(t)
			args[1] = "import"
			var imp struct {
				Count int `json:"count"`
			}
			dst.runJSON(t, &imp, args...)
			if imp.Count != 400 {
				t.Errorf("imported %d trials, want 400", imp.Count)
			}

			var list struct {
				Count int `json:"count"`
			}
			dst.runJSON(t, &list, "trials", "list", "--limit", "0")
			if list.Count != 400 {
				t.Errorf("stored after import = %d, want 400", list.Count)
			}
		})
	}
}

func TestTrialFormat(t *testing.T) {
	tests := []struct {
		path    string
		flag    string
		want    string
		wantErr bool
	}{
		{"out.arrow", "", "arrow", false},
		{"out.JSONL", "", "jsonl", false},
		{"out.ndjson", "", "jsonl", false},
		{"out", "", "arrow", false},
		{"out.arrow", "JSONL", "jsonl", false},
		{"out.arrow", "csv", "", true},
	}
	for _, tt := range tests {
		cmd := &cobra.Command{}
		cmd.Flags().String("format", "", "")
		if tt.flag != "" {
			cmd.Flags().Set("format", tt.flag)
		}
		got, err := trialFormat(cmd, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("trialFormat(%q, %q) error = %v, wantErr %v", tt.path, tt.flag, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("trialFormat(%q, %q) = %q, want %q", tt.path, tt.flag, got, tt.want)
		}
	}
}

func TestValueOrDash(t *testing.T) {
	if got := valueOrDash(""); got != "-" {
		t.Errorf("valueOrDash(\"\") = %q", got)
	}
	if got := valueOrDash("MC"); got != "MC" {
		t.Errorf("valueOrDash(\"MC\") = %q", got)
	}
}
