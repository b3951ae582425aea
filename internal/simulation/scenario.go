package simulation

import (
	"fmt"
	"time"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/task"
)

// Subject identifies one simulated participant.
type Subject struct {
	Index int
	ID    string
	Seed  int64
}

// SubjectAt returns the conventional subject for batch position i: its ID is
// "agent-<i>" and its seed is base+i.
func SubjectAt(i int, base int64) Subject {
	return Subject{Index: i, ID: fmt.Sprintf("agent-%d", i), Seed: base + int64(i)}
}

// Step is one trial of a session.
type Step struct {
	Trial    int                       `json:"trial"`
	Block    string                    `json:"block,omitempty"`
	Stimulus task.Stimulus             `json:"stimulus,omitempty"`
	Action   agent.Action              `json:"action"`
	Probs    agent.Distribution        `json:"probs"`
	Reward   float64                   `json:"reward"`
	Update   agent.UpdateResult        `json:"update"`
	Values   [agent.NumActions]float64 `json:"values"`

	// Task outcome; zero for reward-sequence sessions.
	Correct      bool          `json:"correct"`
	ScoreDelta   int           `json:"score_delta"`
	Score        int           `json:"score"`
	ReactionTime time.Duration `json:"reaction_time"`
}

// SessionResult captures a finished session.
type SessionResult struct {
	SessionID   string                    `json:"session_id"`
	Subject     Subject                   `json:"subject"`
	Steps       []Step                    `json:"steps"`
	FinalValues [agent.NumActions]float64 `json:"final_values"`
	FinalScore  int                       `json:"final_score"`
}

// Accuracy is the fraction of correct task trials.
func (r SessionResult) Accuracy() float64 {
	if len(r.Steps) == 0 {
		return 0
	}
	n := 0
	for _, s := range r.Steps {
		if s.Correct {
			n++
		}
	}
	return float64(n) / float64(len(r.Steps))
}

// GoRate returns the fraction of go actions per stimulus.
func (r SessionResult) GoRate() map[task.Stimulus]float64 {
	total := make(map[task.Stimulus]int)
	gos := make(map[task.Stimulus]int)
	for _, s := range r.Steps {
		total[s.Stimulus]++
		if s.Action == agent.Go {
			gos[s.Stimulus]++
		}
	}
	out := make(map[task.Stimulus]float64, len(total))
	for stim, n := range total {
		out[stim] = float64(gos[stim]) / float64(n)
	}
	return out
}

// BatchConfig describes a set of independent subjects run against the same
// agent parameters and task design.
type BatchConfig struct {
	Subjects int
	Seed     int64
	Workers  int // 0 = one per subject
	Agent    agent.Config
	Design   task.Design
}
