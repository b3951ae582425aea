package task

import (
	"time"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/constants"
)

// Response is what happened during the stimulus window.
type Response struct {
	Pressed      bool
	ReactionTime time.Duration // zero when not pressed
}

// Outcome is the scored result of a trial.
type Outcome struct {
	Correct    bool
	ScoreDelta int
	NewScore   int
}

// Reward converts the score change into an agent outcome (+1 or -1).
func (o Outcome) Reward() float64 {
	return float64(o.ScoreDelta) / constants.ScorePerTrial
}

// Evaluate scores a response: pressing on a go stimulus or withholding on a
// no-go stimulus is correct.
func Evaluate(s Stimulus, r Response, score int) Outcome {
	correct := r.Pressed == s.IsGo()
	delta := -constants.ScorePerTrial
	if correct {
		delta = constants.ScorePerTrial
	}
	return Outcome{
		Correct:    correct,
		ScoreDelta: delta,
		NewScore:   score + delta,
	}
}

// ResponseFor maps an agent action to a knock response. Reaction time is
// reported in whole milliseconds and is zero for withheld responses.
func ResponseFor(a agent.Action, rt time.Duration) Response {
	if a != agent.Go {
		return Response{}
	}
	return Response{Pressed: true, ReactionTime: rt.Truncate(time.Millisecond)}
}

// Feedback is the message shown after a trial.
func Feedback(o Outcome) string {
	if o.Correct {
		return "HURRAY!!! +50"
	}
	return "BAD LUCK!!! -50"
}
