// Package config provides unified configuration loading for gonogo.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/backup"
	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/ddm"
	"github.com/nvandessel/gonogo/internal/task"
	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the data directory.
const FileName = "config.yaml"

// EnvPrefix prefixes environment overrides: simulation.seed becomes
// GONOGO_SIMULATION_SEED.
const EnvPrefix = "GONOGO_"

// GonogoConfig contains all gonogo configuration settings.
type GonogoConfig struct {
	// DataDir holds the database, choice traces, backups and exports.
	// Empty means ~/.gonogo.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`

	// Agent holds the RL agent parameters used by run, task and batch.
	Agent agent.Config `json:"agent" yaml:"agent"`

	Task       TaskConfig       `json:"task" yaml:"task"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	DDM        DDMConfig        `json:"ddm" yaml:"ddm"`
	Backup     BackupConfig     `json:"backup" yaml:"backup"`

	// Logging contains settings for operational and choice logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// TaskConfig describes the knock experiment played by simulated agents.
type TaskConfig struct {
	// BlockOrder is the sequence of blocks. Default: MC, HC1, HC2, LC.
	BlockOrder []string `json:"block_order" yaml:"block_order"`

	// Blocks overrides per-block stimulus counts. Blocks not listed keep
	// their default proportions.
	Blocks map[string]task.Proportions `json:"blocks,omitempty" yaml:"blocks,omitempty"`

	// ResponseWindow is the stimulus countdown. Default: 3s.
	ResponseWindow time.Duration `json:"response_window" yaml:"response_window"`
}

// Design builds the task design, merging Blocks over the defaults.
func (t TaskConfig) Design() task.Design {
	props := task.DefaultBlockProportions()
	for name, p := range t.Blocks {
		props[name] = p
	}
	order := t.BlockOrder
	if len(order) == 0 {
		order = task.DefaultBlockOrder()
	}
	return task.Design{
		Order:          append([]string(nil), order...),
		Proportions:    props,
		ResponseWindow: t.ResponseWindow,
	}
}

// SimulationConfig configures agent sessions.
type SimulationConfig struct {
	Subjects int   `json:"subjects" yaml:"subjects"`
	Seed     int64 `json:"seed" yaml:"seed"`

	// Workers bounds concurrent subjects. 0 means one goroutine per subject.
	Workers int `json:"workers" yaml:"workers"`

	// PerStimulus gives every stimulus its own action values. Off by default,
	// which reproduces the single shared value pair.
	PerStimulus bool `json:"per_stimulus" yaml:"per_stimulus"`

	// Persist stores agent trials in the trial database.
	Persist bool `json:"persist" yaml:"persist"`
}

// ServerConfig configures the trial-data HTTP API.
type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	StaticDir string `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// DDMConfig configures the drift-diffusion workflow.
type DDMConfig struct {
	Subjects       int             `json:"subjects" yaml:"subjects"`
	TrialsPerLevel int             `json:"trials_per_level" yaml:"trials_per_level"`
	Seed           int64           `json:"seed" yaml:"seed"`
	GoNoGo         bool            `json:"go_nogo" yaml:"go_nogo"`
	Workers        int             `json:"workers" yaml:"workers"`
	Quantiles      []float64       `json:"quantiles" yaml:"quantiles"`
	Conditions     []ddm.Condition `json:"conditions" yaml:"conditions"`
}

// SimulateConfig converts to the ddm workflow settings.
func (d DDMConfig) SimulateConfig() ddm.SimulateConfig {
	return ddm.SimulateConfig{
		Subjects:       d.Subjects,
		TrialsPerLevel: d.TrialsPerLevel,
		Conditions:     d.Conditions,
		GoNoGo:         d.GoNoGo,
		Workers:        d.Workers,
	}
}

// BackupConfig controls backup location and rotation.
type BackupConfig struct {
	// Dir overrides <data_dir>/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// MaxCount keeps the newest N backups. 0 disables the rule.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps backups younger than this ("30d", "2w", "720h").
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxTotalSize keeps the newest backups while they fit ("500MB").
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// Retention parses the rotation rules.
func (b BackupConfig) Retention() (backup.Retention, error) {
	age, err := backup.ParseDuration(b.MaxAge)
	if err != nil {
		return backup.Retention{}, fmt.Errorf("backup.max_age: %w", err)
	}
	size, err := backup.ParseSize(b.MaxTotalSize)
	if err != nil {
		return backup.Retention{}, fmt.Errorf("backup.max_total_size: %w", err)
	}
	return backup.Retention{MaxCount: b.MaxCount, MaxAge: age, MaxTotalBytes: size}, nil
}

// LoggingConfig configures gonogo's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the choice trace in <data_dir>/choices.jsonl.
	// "trace" additionally logs every agent step to stderr.
	Level string `json:"level" yaml:"level"`
}

// Default returns a GonogoConfig with sensible defaults.
func Default() *GonogoConfig {
	return &GonogoConfig{
		Agent: agent.DefaultConfig(),
		Task: TaskConfig{
			BlockOrder:     task.DefaultBlockOrder(),
			ResponseWindow: constants.ResponseWindow,
		},
		Simulation: SimulationConfig{
			Subjects: 1,
			Seed:     1,
		},
		Server: ServerConfig{
			Addr:      "localhost:3001",
			RateLimit: 10,
			Burst:     20,
		},
		DDM: DDMConfig{
			Subjects:       constants.DefaultSubjects,
			TrialsPerLevel: constants.DefaultTrialsPerLevel,
			Seed:           1,
			Quantiles:      append([]float64(nil), constants.DefaultQuantiles...),
			Conditions:     ddm.DefaultConditions(),
		},
		Backup: BackupConfig{
			MaxCount: constants.MaxBackupRotation,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.gonogo/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gonogo", FileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.gonogo/config.yaml -> environment variables
func Load() (*GonogoConfig, error) {
	path, err := DefaultPath()
	if err != nil {
		path = ""
	}
	return LoadPath(path)
}

// LoadPath is Load with an explicit config file. A missing file is not an
// error; defaults and environment overrides still apply.
func LoadPath(path string) (*GonogoConfig, error) {
	config := Default()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields absent
// from the file keep their defaults.
func LoadFromFile(path string) (*GonogoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.DataDir = expandEnvVars(config.DataDir)
	config.Server.StaticDir = expandEnvVars(config.Server.StaticDir)
	config.Backup.Dir = expandEnvVars(config.Backup.Dir)

	return config, nil
}

// Save writes the configuration as YAML to path with 0600 permissions.
func (c *GonogoConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *GonogoConfig) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Task.Design().Validate(); err != nil {
		return fmt.Errorf("task: %w", err)
	}

	if c.Simulation.Subjects < 1 {
		return fmt.Errorf("simulation.subjects must be at least 1, got %d", c.Simulation.Subjects)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("simulation.workers must be non-negative, got %d", c.Simulation.Workers)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("server.burst must be at least 1 when rate limiting, got %d", c.Server.Burst)
	}

	if c.DDM.Subjects < 1 {
		return fmt.Errorf("ddm.subjects must be at least 1, got %d", c.DDM.Subjects)
	}
	if c.DDM.TrialsPerLevel < 1 {
		return fmt.Errorf("ddm.trials_per_level must be at least 1, got %d", c.DDM.TrialsPerLevel)
	}
	if c.DDM.Workers < 0 {
		return fmt.Errorf("ddm.workers must be non-negative, got %d", c.DDM.Workers)
	}
	if err := ddm.ValidateQuantiles(c.DDM.Quantiles); err != nil {
		return fmt.Errorf("ddm.quantiles: %w", err)
	}
	if len(c.DDM.Conditions) == 0 {
		return fmt.Errorf("ddm.conditions must not be empty")
	}
	seen := make(map[int]bool)
	for _, cond := range c.DDM.Conditions {
		if seen[cond.ID] {
			return fmt.Errorf("ddm.conditions: duplicate condition %d", cond.ID)
		}
		seen[cond.ID] = true
		if err := cond.Params.Validate(); err != nil {
			return fmt.Errorf("ddm.conditions[%d]: %w", cond.ID, err)
		}
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup.max_count must be non-negative, got %d", c.Backup.MaxCount)
	}
	if _, err := c.Backup.Retention(); err != nil {
		return err
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies GONOGO_* overrides for every settable key.
// PORT is honoured for the server address as the experiment client expects.
// Unparseable values are ignored.
func applyEnvOverrides(config *GonogoConfig) {
	for _, f := range fields {
		if v := os.Getenv(EnvName(f.key)); v != "" {
			_ = f.set(config, v)
		}
	}
	if v := os.Getenv("PORT"); v != "" && os.Getenv(EnvName("server.addr")) == "" {
		config.Server.Addr = ":" + v
	}
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
