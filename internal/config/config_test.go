package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/gonogo/internal/task"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Agent.LearningRate != 0.1 || config.Agent.InverseTemperature != 5.0 {
		t.Errorf("agent defaults = %+v", config.Agent)
	}
	if config.Task.ResponseWindow != 3*time.Second {
		t.Errorf("ResponseWindow = %v, want 3s", config.Task.ResponseWindow)
	}
	if got := strings.Join(config.Task.BlockOrder, ","); got != "MC,HC1,HC2,LC" {
		t.Errorf("BlockOrder = %s", got)
	}
	if config.DDM.Subjects != 4 || config.DDM.TrialsPerLevel != 10000 {
		t.Errorf("ddm defaults = %+v", config.DDM)
	}
	if len(config.DDM.Quantiles) != 5 || len(config.DDM.Conditions) != 2 {
		t.Errorf("ddm quantiles/conditions = %v / %d", config.DDM.Quantiles, len(config.DDM.Conditions))
	}
	if config.Backup.MaxCount != 10 {
		t.Errorf("Backup.MaxCount = %d, want 10", config.Backup.MaxCount)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
agent:
  learning_rate: 0.3
  pavlovian_bias: 0.5
task:
  response_window: 1500ms
  block_order: [MC, LC]
  blocks:
    LC: {go1: 40, go2: 10, nogo1: 40, nogo2: 10}
simulation:
  subjects: 8
  per_stimulus: true
ddm:
  quantiles: [0.25, 0.5, 0.75]
  conditions:
    - cond: 7
      params: {a: 1.5, v: 0.4, t: 0.25, z: 0.5}
backup:
  max_age: 30d
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Agent.LearningRate != 0.3 || config.Agent.PavlovianBias != 0.5 {
		t.Errorf("agent = %+v", config.Agent)
	}
	// Unset fields keep defaults.
	if config.Agent.InverseTemperature != 5.0 {
		t.Errorf("InverseTemperature = %v, want default 5", config.Agent.InverseTemperature)
	}
	if config.Task.ResponseWindow != 1500*time.Millisecond {
		t.Errorf("ResponseWindow = %v", config.Task.ResponseWindow)
	}
	d := config.Task.Design()
	if len(d.Order) != 2 || d.Proportions["LC"][task.Go1] != 40 || d.Proportions["MC"][task.Go1] != 25 {
		t.Errorf("Design() = %+v", d)
	}
	if config.Simulation.Subjects != 8 || !config.Simulation.PerStimulus {
		t.Errorf("simulation = %+v", config.Simulation)
	}
	if len(config.DDM.Quantiles) != 3 {
		t.Errorf("Quantiles = %v", config.DDM.Quantiles)
	}
	if len(config.DDM.Conditions) != 1 || config.DDM.Conditions[0].ID != 7 || config.DDM.Conditions[0].Params.A != 1.5 {
		t.Errorf("Conditions = %+v", config.DDM.Conditions)
	}
	r, err := config.Backup.Retention()
	if err != nil || r.MaxAge != 30*24*time.Hour || r.MaxCount != 10 {
		t.Errorf("Retention() = %+v, %v", r, err)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("agent: [not, a, map"), 0600)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadPath_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(configPath, []byte("simulation:\n  seed: 5\n"), 0600)

	t.Setenv("GONOGO_SIMULATION_SEED", "99")
	t.Setenv("GONOGO_LOGGING_LEVEL", "debug")
	t.Setenv("GONOGO_AGENT_LEARNING_RATE", "not-a-number")
	t.Setenv("PORT", "8080")

	config, err := LoadPath(configPath)
	if err != nil {
		t.Fatalf("LoadPath() error = %v", err)
	}
	if config.Simulation.Seed != 99 {
		t.Errorf("Seed = %d, want env override 99", config.Simulation.Seed)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", config.Logging.Level)
	}
	if config.Agent.LearningRate != 0.1 {
		t.Errorf("unparseable override changed LearningRate to %v", config.Agent.LearningRate)
	}
	if config.Server.Addr != ":8080" {
		t.Errorf("Addr = %s, want :8080 from PORT", config.Server.Addr)
	}
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir := filepath.Join(home, ".gonogo")
	os.MkdirAll(dir, 0700)
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("ddm:\n  subjects: 2\n"), 0600)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.DDM.Subjects != 2 {
		t.Errorf("DDM.Subjects = %d, want 2", config.DDM.Subjects)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GonogoConfig)
		wantErr string
	}{
		{"bad agent", func(c *GonogoConfig) { c.Agent.LearningRate = 0 }, "agent"},
		{"unknown block", func(c *GonogoConfig) { c.Task.BlockOrder = []string{"XX"} }, "task"},
		{"zero window", func(c *GonogoConfig) { c.Task.ResponseWindow = 0 }, "task"},
		{"no subjects", func(c *GonogoConfig) { c.Simulation.Subjects = 0 }, "simulation.subjects"},
		{"negative workers", func(c *GonogoConfig) { c.Simulation.Workers = -1 }, "simulation.workers"},
		{"negative rate", func(c *GonogoConfig) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"zero burst", func(c *GonogoConfig) { c.Server.Burst = 0 }, "server.burst"},
		{"ddm trials", func(c *GonogoConfig) { c.DDM.TrialsPerLevel = 0 }, "ddm.trials_per_level"},
		{"ddm quantiles", func(c *GonogoConfig) { c.DDM.Quantiles = []float64{0.5, 0.1} }, "ddm.quantiles"},
		{"ddm params", func(c *GonogoConfig) { c.DDM.Conditions[0].Params.A = 0 }, "ddm.conditions"},
		{"ddm duplicate", func(c *GonogoConfig) { c.DDM.Conditions[1].ID = c.DDM.Conditions[0].ID }, "duplicate"},
		{"backup age", func(c *GonogoConfig) { c.Backup.MaxAge = "forever" }, "backup.max_age"},
		{"log level", func(c *GonogoConfig) { c.Logging.Level = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	c := Default()
	c.Agent.ActionBias = 0.25
	c.Task.ResponseWindow = 2 * time.Second
	if err := c.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 600", info.Mode().Perm())
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Agent.ActionBias != 0.25 || loaded.Task.ResponseWindow != 2*time.Second {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.DDM.Conditions) != 2 {
		t.Errorf("conditions lost in round trip: %+v", loaded.DDM.Conditions)
	}
}
