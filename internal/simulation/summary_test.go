package simulation

import (
	"testing"
	"time"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/task"
)

func TestSummarize(t *testing.T) {
	results := []SessionResult{
		{
			FinalScore: 100,
			Steps: []Step{
				{Block: "MC", Stimulus: task.Go1, Action: agent.Go, Correct: true},
				{Block: "MC", Stimulus: task.NoGo1, Action: agent.NoGo, Correct: true},
			},
		},
		{
			FinalScore: -100,
			Steps: []Step{
				{Block: "MC", Stimulus: task.Go1, Action: agent.NoGo},
				{Block: "LC", Stimulus: task.NoGo1, Action: agent.Go},
			},
		},
	}

	sum := Summarize(results)
	if sum.Subjects != 2 || sum.Trials != 4 {
		t.Errorf("Subjects/Trials = %d/%d, want 2/4", sum.Subjects, sum.Trials)
	}
	if sum.MeanAccuracy != 0.5 {
		t.Errorf("MeanAccuracy = %v, want 0.5", sum.MeanAccuracy)
	}
	if sum.MeanScore != 0 {
		t.Errorf("MeanScore = %v, want 0", sum.MeanScore)
	}
	if sum.GoRate[task.Go1] != 0.5 || sum.GoRate[task.NoGo1] != 0.5 {
		t.Errorf("GoRate = %v", sum.GoRate)
	}
	if got := sum.BlockAcc["MC"]; got < 0.666 || got > 0.667 {
		t.Errorf("BlockAcc[MC] = %v, want 2/3", got)
	}
	if blocks := sum.Blocks(); len(blocks) != 2 || blocks[0] != "LC" {
		t.Errorf("Blocks() = %v", blocks)
	}
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	if sum.Subjects != 0 || sum.MeanAccuracy != 0 {
		t.Errorf("Summarize(nil) = %+v", sum)
	}
}

func TestTrialRecords(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res := SessionResult{
		SessionID: "s1",
		Subject:   Subject{ID: "agent-1"},
		Steps: []Step{{
			Trial: 1, Block: "MC", Stimulus: task.Go2, Action: agent.Go,
			Probs: agent.Distribution{0.6, 0.4}, Correct: true, ScoreDelta: 50, Score: 50,
			ReactionTime: 345 * time.Millisecond,
		}},
	}
	recs := TrialRecords(res, ts)
	if len(recs) != 1 {
		t.Fatalf("len = %d", len(recs))
	}
	r := recs[0]
	if r.ReactionTime != 345 || r.Action != "go" || *r.PGo != 0.6 || r.SessionID != "s1" || !r.Timestamp.Equal(ts) {
		t.Errorf("TrialRecords() = %+v", r)
	}
}
