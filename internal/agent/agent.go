// Package agent implements a reinforcement-learning agent for the two-action
// go/no-go task. Action values are learned with a Rescorla-Wagner rule and
// actions are drawn from a softmax policy with a general "go" bias and an
// inhibition-only Pavlovian bias.
package agent

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds the agent's learning and choice parameters. It is fixed for
// the lifetime of an Agent.
type Config struct {
	// LearningRate (alpha) is the fraction of the prediction error applied
	// per update. Range: (0, 1]. Default: 0.1.
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`

	// InverseTemperature (beta) scales weights before the softmax.
	// Higher values make choices more deterministic; negative values invert
	// the preference. Any finite value is accepted. Default: 5.0.
	InverseTemperature float64 `json:"inverse_temperature" yaml:"inverse_temperature"`

	// ActionBias is added to the go weight before action selection.
	ActionBias float64 `json:"action_bias" yaml:"action_bias"`

	// PavlovianBias scales |Q(no-go)| into the no-go weight, but only while
	// Q(no-go) is negative (anticipated punishment).
	PavlovianBias float64 `json:"pavlovian_bias" yaml:"pavlovian_bias"`

	// RewardSensitivity scales non-negative outcomes. Default: 1.0.
	RewardSensitivity float64 `json:"reward_sensitivity" yaml:"reward_sensitivity"`

	// PunishmentSensitivity scales negative outcomes. Default: 1.0.
	PunishmentSensitivity float64 `json:"punishment_sensitivity" yaml:"punishment_sensitivity"`
}

// DefaultConfig returns the standard agent parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:          0.1,
		InverseTemperature:    5.0,
		ActionBias:            0.0,
		PavlovianBias:         0.0,
		RewardSensitivity:     1.0,
		PunishmentSensitivity: 1.0,
	}
}

// Validate checks that every parameter is finite and within range.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"learning_rate", c.LearningRate},
		{"inverse_temperature", c.InverseTemperature},
		{"action_bias", c.ActionBias},
		{"pavlovian_bias", c.PavlovianBias},
		{"reward_sensitivity", c.RewardSensitivity},
		{"punishment_sensitivity", c.PunishmentSensitivity},
	}
	for _, f := range fields {
		if !isFinite(f.value) {
			return fmt.Errorf("%s: %w", f.name, ErrNonFinite)
		}
	}

	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %g", c.LearningRate)
	}
	if c.PavlovianBias < 0 {
		return fmt.Errorf("pavlovian_bias must be non-negative, got %g", c.PavlovianBias)
	}
	if c.RewardSensitivity < 0 {
		return fmt.Errorf("reward_sensitivity must be non-negative, got %g", c.RewardSensitivity)
	}
	if c.PunishmentSensitivity < 0 {
		return fmt.Errorf("punishment_sensitivity must be non-negative, got %g", c.PunishmentSensitivity)
	}
	return nil
}

// Agent is a single-state, two-action value learner. An Agent is not safe for
// concurrent use; run independent agents for parallel trial sequences.
type Agent struct {
	cfg    Config
	values [NumActions]float64
	rng    *rand.Rand
}

// Option configures an Agent at construction.
type Option func(*Agent)

// WithRand injects the random source used by SelectAction.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) {
		if rng != nil {
			a.rng = rng
		}
	}
}

// WithSeed gives the agent a private source seeded with seed.
func WithSeed(seed int64) Option {
	return func(a *Agent) {
		a.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates an agent with zeroed action values.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	a := &Agent{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return a, nil
}

// Config returns the agent's parameters.
func (a *Agent) Config() Config {
	return a.cfg
}

// Values returns a copy of the current action values, indexed by Action.
func (a *Agent) Values() [NumActions]float64 {
	return a.values
}

// Weights returns the biased choice weights derived from the current values.
//
//	w[go]   = Q[go] + ActionBias
//	w[nogo] = Q[nogo] + PavlovianBias*|Q[nogo]|   if Q[nogo] < 0
//	w[nogo] = Q[nogo]                              otherwise
func (a *Agent) Weights() [NumActions]float64 {
	w := a.values
	w[Go] += a.cfg.ActionBias
	if a.values[NoGo] < 0 {
		w[NoGo] += a.cfg.PavlovianBias * math.Abs(a.values[NoGo])
	}
	return w
}

// Distribution returns the softmax choice probabilities without sampling.
func (a *Agent) Distribution() (Distribution, error) {
	return Softmax(a.Weights(), a.cfg.InverseTemperature)
}

// SelectAction samples an action from the current choice distribution.
// It does not change the action values.
func (a *Agent) SelectAction() (Action, Distribution, error) {
	dist, err := a.Distribution()
	if err != nil {
		return Go, Distribution{}, err
	}
	return dist.Sample(a.rng.Float64()), dist, nil
}

// UpdateResult records what a single Update did.
type UpdateResult struct {
	Action          Action  `json:"action"`
	Reward          float64 `json:"reward"`
	EffectiveReward float64 `json:"effective_reward"`
	PredictionError float64 `json:"prediction_error"`
	OldValue        float64 `json:"old_value"`
	NewValue        float64 `json:"new_value"`
}

// Update applies the Rescorla-Wagner rule to the chosen action:
//
//	Q[a] += alpha * (r_eff - Q[a])
//
// where r_eff is the reward scaled by RewardSensitivity (r >= 0) or
// PunishmentSensitivity (r < 0). The other action's value is untouched.
// Invalid actions and non-finite rewards are rejected without changing state.
func (a *Agent) Update(action Action, reward float64) (UpdateResult, error) {
	if !action.Valid() {
		return UpdateResult{}, fmt.Errorf("update %d: %w", int(action), ErrInvalidAction)
	}
	if !isFinite(reward) {
		return UpdateResult{}, fmt.Errorf("update reward %v: %w", reward, ErrNonFinite)
	}

	effective := a.EffectiveReward(reward)
	old := a.values[action]
	delta := effective - old
	a.values[action] = old + a.cfg.LearningRate*delta

	return UpdateResult{
		Action:          action,
		Reward:          reward,
		EffectiveReward: effective,
		PredictionError: delta,
		OldValue:        old,
		NewValue:        a.values[action],
	}, nil
}

// EffectiveReward scales a raw outcome by the matching sensitivity.
func (a *Agent) EffectiveReward(reward float64) float64 {
	if reward >= 0 {
		return reward * a.cfg.RewardSensitivity
	}
	return reward * a.cfg.PunishmentSensitivity
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
