// Package logging provides leveled logging and choice tracing for gonogo.
// It offers two outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A ChoiceLogger for per-trial JSONL traces (choices.jsonl in the data dir)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every agent
// step is logged to stderr as well as to the choice trace.
const LevelTrace = slog.LevelDebug - 4

// ChoiceFile is the trace file name inside the data directory.
const ChoiceFile = "choices.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Choice is one agent step as written to the trace.
type Choice struct {
	Session         string     `json:"session,omitempty"`
	Subject         int        `json:"subject"`
	Trial           int        `json:"trial"`
	Stimulus        string     `json:"stimulus,omitempty"`
	Action          string     `json:"action"`
	PGo             float64    `json:"p_go"`
	PNoGo           float64    `json:"p_nogo"`
	Reward          float64    `json:"reward"`
	PredictionError float64    `json:"prediction_error"`
	Values          [2]float64 `json:"values"`
}

// ChoiceLogger writes agent choices to a JSONL file.
// It is safe for concurrent use. A nil ChoiceLogger is safe to use;
// all methods are no-ops on nil receiver.
type ChoiceLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewChoiceLogger creates a choice logger writing to dir/choices.jsonl.
// At "info" level (the default) it returns nil and no file is created.
// Returns nil if the file cannot be opened.
func NewChoiceLogger(dir string, level string) *ChoiceLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, ChoiceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &ChoiceLogger{file: f}
}

// LogChoice appends one choice record.
func (cl *ChoiceLogger) LogChoice(c Choice) {
	cl.write(struct {
		Time string `json:"time"`
		Choice
	}{time.Now().UTC().Format(time.RFC3339Nano), c})
}

// Log writes an arbitrary event as a single JSONL line with a "time" field
// added. The caller's map is not mutated.
func (cl *ChoiceLogger) Log(event map[string]any) {
	if cl == nil {
		return
	}
	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	cl.write(entry)
}

func (cl *ChoiceLogger) write(v any) {
	if cl == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return
	}
	_, _ = cl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (cl *ChoiceLogger) Close() {
	if cl == nil {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.file != nil {
		cl.file.Close()
		cl.file = nil
	}
}
