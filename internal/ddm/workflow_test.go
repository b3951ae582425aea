package ddm

import (
	"context"
	"math"
	"testing"
	"time"
)

func fastEuler(base int64) GeneratorFactory {
	return SeededEuler(base, WithStep(5*time.Millisecond), WithMaxDecisionTime(2*time.Second))
}

func TestSimulate(t *testing.T) {
	cfg := SimulateConfig{
		Subjects:       3,
		TrialsPerLevel: 40,
		Conditions:     DefaultConditions(),
		GoNoGo:         true,
		Workers:        2,
	}
	trials, err := Simulate(context.Background(), fastEuler(5), cfg)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if len(trials) != 3*2*80 {
		t.Fatalf("len = %d, want %d", len(trials), 3*2*80)
	}
	for i, tr := range trials {
		if want := i / 160; tr.SubjIdx != want {
			t.Fatalf("row %d subject = %d, want %d", i, tr.SubjIdx, want)
		}
		if tr.Response == 0 && !math.IsNaN(tr.RT) {
			t.Fatalf("row %d: response 0 with RT %v under go/no-go masking", i, tr.RT)
		}
		if tr.Response == 1 && math.IsNaN(tr.RT) {
			t.Fatalf("row %d: response 1 lost its RT", i)
		}
	}

	again, _ := Simulate(context.Background(), fastEuler(5), cfg)
	for i := range trials {
		a, b := trials[i], again[i]
		if a.Response != b.Response || (a.RT != b.RT && !(math.IsNaN(a.RT) && math.IsNaN(b.RT))) {
			t.Fatalf("row %d not reproducible", i)
		}
	}
}

func TestSimulate_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Simulate(ctx, fastEuler(1), SimulateConfig{Conditions: DefaultConditions()}); err == nil {
		t.Error("Simulate() with zero subjects should fail")
	}
	if _, err := Simulate(ctx, fastEuler(1), SimulateConfig{Subjects: 1}); err == nil {
		t.Error("Simulate() without conditions should fail")
	}
}

func TestResimulate(t *testing.T) {
	fits := []FitResult{
		{SubjIdx: 4, Params: map[int]Params{1: DefaultConditions()[1].Params, 0: DefaultConditions()[0].Params}},
	}
	trials, err := Resimulate(context.Background(), fastEuler(9), fits, SimulateConfig{TrialsPerLevel: 10})
	if err != nil {
		t.Fatalf("Resimulate() error = %v", err)
	}
	if len(trials) != 40 {
		t.Fatalf("len = %d, want 40", len(trials))
	}
	if trials[0].SubjIdx != 4 || trials[0].Condition != 0 || trials[39].Condition != 1 {
		t.Errorf("rows not ordered by condition for subject 4: first=%+v last=%+v", trials[0], trials[39])
	}
}
