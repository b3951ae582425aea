package agent

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Action is one of the two responses in the go/no-go task.
type Action int

const (
	// Go is the "respond" action (index 0).
	Go Action = 0
	// NoGo is the "withhold" action (index 1).
	NoGo Action = 1
)

// NumActions is the size of the fixed action set.
const NumActions = 2

// Valid reports whether a is Go or NoGo.
func (a Action) Valid() bool {
	return a == Go || a == NoGo
}

func (a Action) String() string {
	switch a {
	case Go:
		return "go"
	case NoGo:
		return "no-go"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction maps "go", "no-go"/"nogo", "0" or "1" to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "0":
		return Go, nil
	case "no-go", "nogo", "1":
		return NoGo, nil
	default:
		return Go, fmt.Errorf("parse action %q: %w", s, ErrInvalidAction)
	}
}

// MarshalText encodes the action by name, so JSON carries "go"/"no-go".
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("marshal %d: %w", int(a), ErrInvalidAction)
	}
	return []byte(a.String()), nil
}

// UnmarshalText accepts anything ParseAction does.
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Sentinel errors.
var (
	ErrInvalidAction       = errors.New("invalid action")
	ErrNonFinite           = errors.New("non-finite value")
	ErrInvalidDistribution = errors.New("invalid choice distribution")
)

// Distribution is a probability pair over (go, no-go).
type Distribution [NumActions]float64

// Go returns P(go).
func (d Distribution) Go() float64 { return d[Go] }

// NoGo returns P(no-go).
func (d Distribution) NoGo() float64 { return d[NoGo] }

// Sample picks an action for a uniform draw u in [0, 1).
func (d Distribution) Sample(u float64) Action {
	if u < d[Go] {
		return Go
	}
	return NoGo
}

// Softmax converts weights into choice probabilities at inverse temperature
// beta. Weights are shifted by the one that maximises beta*w before scaling,
// so every exponent is at most zero and can only underflow. Only non-finite
// weights or beta are rejected.
func Softmax(weights [NumActions]float64, beta float64) (Distribution, error) {
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return Distribution{}, fmt.Errorf("beta = %v: %w", beta, ErrInvalidDistribution)
	}
	ref := weights[0]
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Distribution{}, fmt.Errorf("weight %d = %v: %w", i, w, ErrInvalidDistribution)
		}
		if (beta >= 0 && w > ref) || (beta < 0 && w < ref) {
			ref = w
		}
	}

	var d Distribution
	var sum float64
	for i, w := range weights {
		if beta == 0 {
			d[i] = 1
		} else {
			// w-ref may overflow to -Inf/+Inf; beta*(w-ref) is then -Inf.
			d[i] = math.Exp(beta * (w - ref))
		}
		sum += d[i]
	}
	// sum >= 1 because the reference term is exp(0).
	for i := range d {
		d[i] /= sum
	}
	return d, nil
}
