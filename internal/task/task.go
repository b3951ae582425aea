// Package task models the "knock" go/no-go experiment: four stimulus images,
// blocks with different go/no-go proportions, shuffled trial schedules, and
// the +50/-50 scoring used to give feedback.
package task

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/constants"
)

// Stimulus identifies one of the four trial images.
type Stimulus string

const (
	Go1   Stimulus = "go1"
	Go2   Stimulus = "go2"
	NoGo1 Stimulus = "nogo1"
	NoGo2 Stimulus = "nogo2"
)

// Stimuli lists every stimulus in canonical order.
var Stimuli = []Stimulus{Go1, Go2, NoGo1, NoGo2}

// IsGo reports whether pressing is the correct response to s.
func (s Stimulus) IsGo() bool {
	return s == Go1 || s == Go2
}

// Valid reports whether s is a known stimulus.
func (s Stimulus) Valid() bool {
	switch s {
	case Go1, Go2, NoGo1, NoGo2:
		return true
	}
	return false
}

// CorrectAction returns the action that scores on this stimulus.
func (s Stimulus) CorrectAction() agent.Action {
	if s.IsGo() {
		return agent.Go
	}
	return agent.NoGo
}

// Proportions gives the number of trials per stimulus within a block.
type Proportions map[Stimulus]int

// Total returns the block length.
func (p Proportions) Total() int {
	n := 0
	for _, c := range p {
		n += c
	}
	return n
}

// ErrUnknownBlock is returned for a block name with no proportions.
var ErrUnknownBlock = errors.New("unknown block")

// DefaultBlockProportions are the go-incongruent block definitions:
// MC is balanced, LC and HC1 swap the frequent images, and HC2 makes go2 the
// dominant stimulus.
func DefaultBlockProportions() map[string]Proportions {
	return map[string]Proportions{
		"MC":  {Go1: 25, Go2: 25, NoGo1: 25, NoGo2: 25},
		"LC":  {Go1: 35, Go2: 15, NoGo1: 35, NoGo2: 15},
		"HC1": {Go1: 15, Go2: 35, NoGo1: 15, NoGo2: 35},
		"HC2": {Go1: 15, Go2: 50, NoGo1: 15, NoGo2: 20},
	}
}

// DefaultBlockOrder is the sequence blocks are run in.
func DefaultBlockOrder() []string {
	return []string{"MC", "HC1", "HC2", "LC"}
}

// Trial is one scheduled presentation.
type Trial struct {
	Number   int      `json:"trial_number"` // 1-based across the whole schedule
	Block    string   `json:"block"`
	Stimulus Stimulus `json:"stimulus"`
}

// Design describes a full experiment.
type Design struct {
	Order          []string
	Proportions    map[string]Proportions
	ResponseWindow time.Duration
}

// DefaultDesign returns the standard block order and proportions.
func DefaultDesign() Design {
	return Design{
		Order:          DefaultBlockOrder(),
		Proportions:    DefaultBlockProportions(),
		ResponseWindow: constants.ResponseWindow,
	}
}

// Validate checks that every block in Order has proportions.
func (d Design) Validate() error {
	if len(d.Order) == 0 {
		return fmt.Errorf("design has no blocks")
	}
	for _, name := range d.Order {
		p, ok := d.Proportions[name]
		if !ok {
			return fmt.Errorf("block %q: %w", name, ErrUnknownBlock)
		}
		for s, n := range p {
			if !s.Valid() {
				return fmt.Errorf("block %q: unknown stimulus %q", name, s)
			}
			if n < 0 {
				return fmt.Errorf("block %q: negative count for %s", name, s)
			}
		}
	}
	if d.ResponseWindow <= 0 {
		return fmt.Errorf("response window must be positive, got %v", d.ResponseWindow)
	}
	return nil
}

// GenerateBlock expands a block's proportions into a shuffled stimulus list.
// Stimuli are laid out in canonical order and then Fisher-Yates shuffled
// with rng, so a fixed seed gives a fixed block. Keys that are not one of
// the four stimuli are skipped; Design.Validate rejects them up front.
func GenerateBlock(p Proportions, rng *rand.Rand) []Stimulus {
	block := make([]Stimulus, 0, p.Total())
	for _, s := range orderedStimuli(p) {
		for i := 0; i < p[s]; i++ {
			block = append(block, s)
		}
	}
	for i := len(block) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		block[i], block[j] = block[j], block[i]
	}
	return block
}

// Schedule builds the full numbered trial list for the design.
func (d Design) Schedule(rng *rand.Rand) ([]Trial, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var trials []Trial
	for _, name := range d.Order {
		for _, s := range GenerateBlock(d.Proportions[name], rng) {
			trials = append(trials, Trial{
				Number:   len(trials) + 1,
				Block:    name,
				Stimulus: s,
			})
		}
	}
	return trials, nil
}

// orderedStimuli returns the known stimuli present in p in canonical order.
func orderedStimuli(p Proportions) []Stimulus {
	out := make([]Stimulus, 0, len(p))
	for _, s := range Stimuli {
		if _, ok := p[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
