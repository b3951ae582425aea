package ddm

import (
	"math"
	"sort"
)

// Trial is one row of a stimulus-coded trial table.
type Trial struct {
	SubjIdx   int     `json:"subj_idx"`
	Condition int     `json:"condition"`
	Response  int     `json:"response"` // 1 = "yes"/go, 0 = "no"/withhold
	Correct   bool    `json:"correct"`
	RT        float64 `json:"rt"` // seconds; NaN when not observed
	Stimulus  int     `json:"stimulus"`
}

// StimCode converts a raw boundary hit into the stimulus-coded response.
// On present trials the upper boundary means "yes"; on absent trials the
// lower boundary does. correct is the raw upper-boundary hit and stimulus
// is 1 exactly when the response agrees with it.
func StimCode(present, upperHit bool) (response int, correct bool, stimulus int) {
	yes := upperHit
	if !present {
		yes = !upperHit
	}
	if yes {
		response = 1
	}
	correct = upperHit
	if (response == 1) == correct {
		stimulus = 1
	}
	return response, correct, stimulus
}

// ApplyGoNoGo masks the RT of every response-0 trial with NaN, as in a
// go/no-go design where withheld responses have no latency. trials is
// modified in place and returned.
func ApplyGoNoGo(trials []Trial) []Trial {
	for i := range trials {
		if trials[i].Response == 0 {
			trials[i].RT = math.NaN()
		}
	}
	return trials
}

// BySubject groups trials by SubjIdx, preserving row order within a group.
func BySubject(trials []Trial) map[int][]Trial {
	out := make(map[int][]Trial)
	for _, t := range trials {
		out[t.SubjIdx] = append(out[t.SubjIdx], t)
	}
	return out
}

// ByCondition groups trials by Condition, preserving row order.
func ByCondition(trials []Trial) map[int][]Trial {
	out := make(map[int][]Trial)
	for _, t := range trials {
		out[t.Condition] = append(out[t.Condition], t)
	}
	return out
}

// SortedKeys returns the keys of a grouping in ascending order.
func SortedKeys(groups map[int][]Trial) []int {
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
