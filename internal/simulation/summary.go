package simulation

import (
	"sort"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/task"
)

// BatchSummary aggregates a batch of task sessions.
type BatchSummary struct {
	Subjects     int                       `json:"subjects"`
	Trials       int                       `json:"trials"`
	MeanAccuracy float64                   `json:"mean_accuracy"`
	MeanScore    float64                   `json:"mean_score"`
	GoRate       map[task.Stimulus]float64 `json:"go_rate"`
	BlockAcc     map[string]float64        `json:"block_accuracy"`
}

// Summarize pools every step of every session.
func Summarize(results []SessionResult) BatchSummary {
	sum := BatchSummary{
		Subjects: len(results),
		GoRate:   make(map[task.Stimulus]float64),
		BlockAcc: make(map[string]float64),
	}
	if len(results) == 0 {
		return sum
	}

	stimTotal := make(map[task.Stimulus]int)
	blockTotal := make(map[string]int)
	for _, res := range results {
		sum.MeanAccuracy += res.Accuracy()
		sum.MeanScore += float64(res.FinalScore)
		for _, s := range res.Steps {
			sum.Trials++
			stimTotal[s.Stimulus]++
			if s.Action == agent.Go {
				sum.GoRate[s.Stimulus]++
			}
			if s.Block != "" {
				blockTotal[s.Block]++
				if s.Correct {
					sum.BlockAcc[s.Block]++
				}
			}
		}
	}
	n := float64(len(results))
	sum.MeanAccuracy /= n
	sum.MeanScore /= n
	for stim, c := range stimTotal {
		sum.GoRate[stim] /= float64(c)
	}
	for b, c := range blockTotal {
		sum.BlockAcc[b] /= float64(c)
	}
	return sum
}

// Blocks returns the summary's block names in sorted order.
func (s BatchSummary) Blocks() []string {
	out := make([]string, 0, len(s.BlockAcc))
	for b := range s.BlockAcc {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
