package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/gonogo/internal/ddm"
)

// field is one dotted configuration key with typed accessors.
type field struct {
	key string
	get func(c *GonogoConfig) any
	set func(c *GonogoConfig, v string) error
}

func stringField(key string, p func(*GonogoConfig) *string) field {
	return field{
		key: key,
		get: func(c *GonogoConfig) any { return *p(c) },
		set: func(c *GonogoConfig, v string) error { *p(c) = v; return nil },
	}
}

func intField(key string, p func(*GonogoConfig) *int) field {
	return field{
		key: key,
		get: func(c *GonogoConfig) any { return *p(c) },
		set: func(c *GonogoConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer for %s: %q", key, v)
			}
			*p(c) = n
			return nil
		},
	}
}

func int64Field(key string, p func(*GonogoConfig) *int64) field {
	return field{
		key: key,
		get: func(c *GonogoConfig) any { return *p(c) },
		set: func(c *GonogoConfig, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer for %s: %q", key, v)
			}
			*p(c) = n
			return nil
		},
	}
}

func floatField(key string, p func(*GonogoConfig) *float64) field {
	return field{
		key: key,
		get: func(c *GonogoConfig) any { return *p(c) },
		set: func(c *GonogoConfig, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid number for %s: %q", key, v)
			}
			*p(c) = f
			return nil
		},
	}
}

func boolField(key string, p func(*GonogoConfig) *bool) field {
	return field{
		key: key,
		get: func(c *GonogoConfig) any { return *p(c) },
		set: func(c *GonogoConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for %s: %q", key, v)
			}
			*p(c) = b
			return nil
		},
	}
}

func durationField(key string, p func(*GonogoConfig) *time.Duration) field {
	return field{
		key: key,
		get: func(c *GonogoConfig) any { return p(c).String() },
		set: func(c *GonogoConfig, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %q", key, v)
			}
			*p(c) = d
			return nil
		},
	}
}

// fields lists every key reachable by Get, Set and GONOGO_* overrides.
// Structured values (block proportions, DDM conditions) are edited in YAML.
var fields = []field{
	stringField("data_dir", func(c *GonogoConfig) *string { return &c.DataDir }),

	floatField("agent.learning_rate", func(c *GonogoConfig) *float64 { return &c.Agent.LearningRate }),
	floatField("agent.inverse_temperature", func(c *GonogoConfig) *float64 { return &c.Agent.InverseTemperature }),
	floatField("agent.action_bias", func(c *GonogoConfig) *float64 { return &c.Agent.ActionBias }),
	floatField("agent.pavlovian_bias", func(c *GonogoConfig) *float64 { return &c.Agent.PavlovianBias }),
	floatField("agent.reward_sensitivity", func(c *GonogoConfig) *float64 { return &c.Agent.RewardSensitivity }),
	floatField("agent.punishment_sensitivity", func(c *GonogoConfig) *float64 { return &c.Agent.PunishmentSensitivity }),

	{
		key: "task.block_order",
		get: func(c *GonogoConfig) any { return strings.Join(c.Task.BlockOrder, ",") },
		set: func(c *GonogoConfig, v string) error {
			var order []string
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					order = append(order, name)
				}
			}
			if len(order) == 0 {
				return fmt.Errorf("task.block_order needs at least one block")
			}
			c.Task.BlockOrder = order
			return nil
		},
	},
	durationField("task.response_window", func(c *GonogoConfig) *time.Duration { return &c.Task.ResponseWindow }),

	intField("simulation.subjects", func(c *GonogoConfig) *int { return &c.Simulation.Subjects }),
	int64Field("simulation.seed", func(c *GonogoConfig) *int64 { return &c.Simulation.Seed }),
	intField("simulation.workers", func(c *GonogoConfig) *int { return &c.Simulation.Workers }),
	boolField("simulation.per_stimulus", func(c *GonogoConfig) *bool { return &c.Simulation.PerStimulus }),
	boolField("simulation.persist", func(c *GonogoConfig) *bool { return &c.Simulation.Persist }),

	stringField("server.addr", func(c *GonogoConfig) *string { return &c.Server.Addr }),
	stringField("server.static_dir", func(c *GonogoConfig) *string { return &c.Server.StaticDir }),
	floatField("server.rate_limit", func(c *GonogoConfig) *float64 { return &c.Server.RateLimit }),
	intField("server.burst", func(c *GonogoConfig) *int { return &c.Server.Burst }),

	intField("ddm.subjects", func(c *GonogoConfig) *int { return &c.DDM.Subjects }),
	intField("ddm.trials_per_level", func(c *GonogoConfig) *int { return &c.DDM.TrialsPerLevel }),
	int64Field("ddm.seed", func(c *GonogoConfig) *int64 { return &c.DDM.Seed }),
	boolField("ddm.go_nogo", func(c *GonogoConfig) *bool { return &c.DDM.GoNoGo }),
	intField("ddm.workers", func(c *GonogoConfig) *int { return &c.DDM.Workers }),
	{
		key: "ddm.quantiles",
		get: func(c *GonogoConfig) any { return formatFloats(c.DDM.Quantiles) },
		set: func(c *GonogoConfig, v string) error {
			q, err := parseFloats(v)
			if err != nil {
				return fmt.Errorf("invalid ddm.quantiles: %w", err)
			}
			if err := ddm.ValidateQuantiles(q); err != nil {
				return fmt.Errorf("invalid ddm.quantiles: %w", err)
			}
			c.DDM.Quantiles = q
			return nil
		},
	},

	stringField("backup.dir", func(c *GonogoConfig) *string { return &c.Backup.Dir }),
	intField("backup.max_count", func(c *GonogoConfig) *int { return &c.Backup.MaxCount }),
	stringField("backup.max_age", func(c *GonogoConfig) *string { return &c.Backup.MaxAge }),
	stringField("backup.max_total_size", func(c *GonogoConfig) *string { return &c.Backup.MaxTotalSize }),

	{
		key: "logging.level",
		get: func(c *GonogoConfig) any { return c.Logging.Level },
		set: func(c *GonogoConfig, v string) error {
			v = strings.ToLower(v)
			switch v {
			case "info", "debug", "trace":
				c.Logging.Level = v
				return nil
			}
			return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", v)
		},
	},
}

func lookup(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// Keys returns every settable key in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the value stored under a dotted key.
func (c *GonogoConfig) Get(key string) (any, bool) {
	f, ok := lookup(key)
	if !ok {
		return nil, false
	}
	return f.get(c), true
}

// Set parses value and stores it under a dotted key. The config is not
// revalidated as a whole; callers run Validate before saving.
func (c *GonogoConfig) Set(key, value string) error {
	f, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return f.set(c, strings.TrimSpace(value))
}

func formatFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out = append(out, f)
	}
	return out, nil
}
