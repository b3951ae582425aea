package ddm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/nvandessel/gonogo/internal/constants"
)

// Generator produces a stimulus-coded trial table for one condition:
// nPresent trials driven by p.Present() and nAbsent by p.Absent().
type Generator interface {
	Generate(ctx context.Context, p Params, condition, nPresent, nAbsent int) ([]Trial, error)
}

// EulerGenerator simulates diffusion paths with the Euler-Maruyama scheme
// (unit noise). Trial-to-trial variability draws v ~ N(v, sv),
// z ~ U(z-sz/2, z+sz/2) and t ~ U(t-st/2, t+st/2). An EulerGenerator owns
// its random source and is not safe for concurrent use.
type EulerGenerator struct {
	rng     *rand.Rand
	dt      float64
	maxTime float64
}

// EulerOption configures an EulerGenerator.
type EulerOption func(*EulerGenerator)

// WithStep sets the integration step.
func WithStep(d time.Duration) EulerOption {
	return func(g *EulerGenerator) {
		if d > 0 {
			g.dt = d.Seconds()
		}
	}
}

// WithMaxDecisionTime caps each diffusion path. Paths that reach the cap
// without hitting a boundary end on the lower boundary at the cap.
func WithMaxDecisionTime(d time.Duration) EulerOption {
	return func(g *EulerGenerator) {
		if d > 0 {
			g.maxTime = d.Seconds()
		}
	}
}

// NewEulerGenerator creates a generator seeded with seed.
func NewEulerGenerator(seed int64, opts ...EulerOption) *EulerGenerator {
	g := &EulerGenerator{
		rng:     rand.New(rand.NewSource(seed)),
		dt:      constants.DefaultEulerStep.Seconds(),
		maxTime: constants.MaxDecisionTime.Seconds(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Generator. Present rows come first, then absent rows.
func (g *EulerGenerator) Generate(ctx context.Context, p Params, condition, nPresent, nAbsent int) ([]Trial, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if nPresent < 0 || nAbsent < 0 {
		return nil, fmt.Errorf("trial counts must be non-negative, got %d/%d", nPresent, nAbsent)
	}

	trials := make([]Trial, 0, nPresent+nAbsent)
	for _, block := range []struct {
		present bool
		n       int
		params  Params
	}{
		{true, nPresent, p.Present()},
		{false, nAbsent, p.Absent()},
	} {
		for i := 0; i < block.n; i++ {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			upper, rt := g.path(block.params)
			resp, correct, stim := StimCode(block.present, upper)
			trials = append(trials, Trial{
				Condition: condition,
				Response:  resp,
				Correct:   correct,
				RT:        rt,
				Stimulus:  stim,
			})
		}
	}
	return trials, nil
}

// path runs one diffusion trial and reports whether it hit the upper
// boundary and its RT in seconds (decision time plus non-decision time).
func (g *EulerGenerator) path(p Params) (upper bool, rt float64) {
	v := p.V
	if p.SV > 0 {
		v += g.rng.NormFloat64() * p.SV
	}
	z := p.Z
	if p.SZ > 0 {
		z += (g.rng.Float64() - 0.5) * p.SZ
	}
	t := p.T
	if p.ST > 0 {
		t += (g.rng.Float64() - 0.5) * p.ST
	}

	x := z * p.A
	sqrtDt := math.Sqrt(g.dt)
	elapsed := 0.0
	for elapsed < g.maxTime {
		x += v*g.dt + sqrtDt*g.rng.NormFloat64()
		elapsed += g.dt
		if x >= p.A {
			return true, elapsed + t
		}
		if x <= 0 {
			return false, elapsed + t
		}
	}
	return false, g.maxTime + t
}
