// Package ddm holds the drift-diffusion side of the go/no-go workflow:
// parameter and trial-table types, stimulus coding, a seeded Euler-Maruyama
// data generator, the Fitter contract with parallel per-subject fitting, and
// the RT-quantile summaries used to compare data with model output.
//
// Likelihood evaluation and chi-square optimisation are left to a Fitter
// implementation supplied by the caller.
package ddm

import (
	"errors"
	"fmt"
	"math"
)

// Params are the stimulus-coded DDM parameters for one condition.
type Params struct {
	A  float64 `json:"a" yaml:"a"`   // boundary separation
	V  float64 `json:"v" yaml:"v"`   // drift rate
	T  float64 `json:"t" yaml:"t"`   // non-decision time, seconds
	Z  float64 `json:"z" yaml:"z"`   // relative starting point, (0, 1)
	DC float64 `json:"dc" yaml:"dc"` // drift criterion
	SV float64 `json:"sv" yaml:"sv"` // inter-trial drift variability
	SZ float64 `json:"sz" yaml:"sz"` // inter-trial starting-point range
	ST float64 `json:"st" yaml:"st"` // inter-trial non-decision range
}

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid DDM parameters")

// Validate checks ranges, including that the starting-point and
// non-decision ranges stay inside their supports.
func (p Params) Validate() error {
	for name, v := range map[string]float64{"a": p.A, "v": p.V, "t": p.T, "z": p.Z, "dc": p.DC, "sv": p.SV, "sz": p.SZ, "st": p.ST} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite: %w", name, ErrInvalidParams)
		}
	}
	switch {
	case p.A <= 0:
		return fmt.Errorf("a must be positive, got %g: %w", p.A, ErrInvalidParams)
	case p.Z <= 0 || p.Z >= 1:
		return fmt.Errorf("z must be in (0, 1), got %g: %w", p.Z, ErrInvalidParams)
	case p.SV < 0 || p.SZ < 0 || p.ST < 0:
		return fmt.Errorf("variability terms must be non-negative: %w", ErrInvalidParams)
	case p.Z-p.SZ/2 <= 0 || p.Z+p.SZ/2 >= 1:
		return fmt.Errorf("z +/- sz/2 must stay in (0, 1): %w", ErrInvalidParams)
	case p.T-p.ST/2 < 0:
		return fmt.Errorf("t - st/2 must be non-negative: %w", ErrInvalidParams)
	}
	return nil
}

// Present returns the parameters used for stimulus-present trials: drift
// v+dc from starting point z.
func (p Params) Present() Params {
	q := p
	q.V = p.V + p.DC
	q.DC = 0
	return q
}

// Absent returns the parameters used for stimulus-absent trials: drift
// v-dc from the mirrored starting point 1-z.
func (p Params) Absent() Params {
	q := p
	q.V = p.V - p.DC
	q.Z = 1 - p.Z
	q.DC = 0
	return q
}

// Condition pairs a condition label with its generating parameters.
type Condition struct {
	ID     int    `json:"cond" yaml:"cond"`
	Params Params `json:"params" yaml:"params"`
}

// DefaultConditions are the two conditions of the reference workflow: a
// shared v=0.5, a=2, t=0.3, z=0.5 with drift criterion -0.2 and +0.2.
func DefaultConditions() []Condition {
	base := Params{A: 2.0, V: 0.5, T: 0.3, Z: 0.5}
	c0, c1 := base, base
	c0.DC = -0.2
	c1.DC = 0.2
	return []Condition{{ID: 0, Params: c0}, {ID: 1, Params: c1}}
}
