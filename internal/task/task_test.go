package task

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/nvandessel/gonogo/internal/agent"
)

func TestDefaultBlockProportions(t *testing.T) {
	props := DefaultBlockProportions()
	for _, name := range DefaultBlockOrder() {
		p, ok := props[name]
		if !ok {
			t.Fatalf("block %s missing from proportions", name)
		}
		if p.Total() != 100 {
			t.Errorf("block %s total = %d, want 100", name, p.Total())
		}
	}
	if got := props["HC2"][Go2]; got != 50 {
		t.Errorf("HC2 go2 = %d, want 50", got)
	}
}

func TestGenerateBlock_Counts(t *testing.T) {
	p := Proportions{Go1: 35, Go2: 15, NoGo1: 35, NoGo2: 15}
	block := GenerateBlock(p, rand.New(rand.NewSource(1)))
	if len(block) != 100 {
		t.Fatalf("len(block) = %d, want 100", len(block))
	}
	counts := make(map[Stimulus]int)
	for _, s := range block {
		counts[s]++
	}
	for s, want := range p {
		if counts[s] != want {
			t.Errorf("count[%s] = %d, want %d", s, counts[s], want)
		}
	}
}

func TestGenerateBlock_Deterministic(t *testing.T) {
	p := DefaultBlockProportions()["MC"]
	a := GenerateBlock(p, rand.New(rand.NewSource(9)))
	b := GenerateBlock(p, rand.New(rand.NewSource(9)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("index %d: %s != %s for the same seed", i, a[i], b[i])
		}
	}

	c := GenerateBlock(p, rand.New(rand.NewSource(10)))
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical 100-trial blocks")
	}
}

func TestGenerateBlock_UnknownStimulusSkipped(t *testing.T) {
	p := Proportions{Go1: 3, NoGo2: 2, Stimulus("go3"): 4}
	block := GenerateBlock(p, rand.New(rand.NewSource(2)))
	if len(block) != 5 {
		t.Fatalf("len(block) = %d, want 5", len(block))
	}
	for _, s := range block {
		if !s.Valid() {
			t.Errorf("block contains unknown stimulus %q", s)
		}
	}
}

func TestSchedule_RejectsUnknownStimulus(t *testing.T) {
	d := DefaultDesign()
	d.Proportions = map[string]Proportions{"HC1": {Go1: 10, Stimulus("go3"): 5}}
	d.Order = []string{"HC1"}
	if _, err := d.Schedule(rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("Schedule() accepted an unknown stimulus")
	}
}

func TestSchedule(t *testing.T) {
	d := DefaultDesign()
	trials, err := d.Schedule(rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if len(trials) != 400 {
		t.Fatalf("len(trials) = %d, want 400", len(trials))
	}
	for i, tr := range trials {
		if tr.Number != i+1 {
			t.Fatalf("trial %d numbered %d", i, tr.Number)
		}
		wantBlock := d.Order[i/100]
		if tr.Block != wantBlock {
			t.Fatalf("trial %d block = %s, want %s", tr.Number, tr.Block, wantBlock)
		}
	}
}

func TestDesignValidate(t *testing.T) {
	tests := []struct {
		name    string
		design  Design
		wantErr error
	}{
		{"default", DefaultDesign(), nil},
		{"unknown block", Design{Order: []string{"XX"}, Proportions: DefaultBlockProportions(), ResponseWindow: time.Second}, ErrUnknownBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.design.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	empty := Design{ResponseWindow: time.Second}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty order")
	}
	bad := DefaultDesign()
	bad.ResponseWindow = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero response window")
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		stimulus  Stimulus
		pressed   bool
		wantOK    bool
		wantDelta int
	}{
		{"press on go", Go1, true, true, 50},
		{"withhold on go", Go2, false, false, -50},
		{"press on no-go", NoGo1, true, false, -50},
		{"withhold on no-go", NoGo2, false, true, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Evaluate(tt.stimulus, Response{Pressed: tt.pressed}, 100)
			if o.Correct != tt.wantOK {
				t.Errorf("Correct = %v, want %v", o.Correct, tt.wantOK)
			}
			if o.ScoreDelta != tt.wantDelta {
				t.Errorf("ScoreDelta = %d, want %d", o.ScoreDelta, tt.wantDelta)
			}
			if o.NewScore != 100+tt.wantDelta {
				t.Errorf("NewScore = %d, want %d", o.NewScore, 100+tt.wantDelta)
			}
			wantReward := 1.0
			if !tt.wantOK {
				wantReward = -1.0
			}
			if o.Reward() != wantReward {
				t.Errorf("Reward() = %v, want %v", o.Reward(), wantReward)
			}
		})
	}
}

func TestResponseFor(t *testing.T) {
	r := ResponseFor(agent.Go, 512*time.Millisecond+300*time.Microsecond)
	if !r.Pressed || r.ReactionTime != 512*time.Millisecond {
		t.Errorf("ResponseFor(go) = %+v, want pressed at 512ms", r)
	}
	r = ResponseFor(agent.NoGo, time.Second)
	if r.Pressed || r.ReactionTime != 0 {
		t.Errorf("ResponseFor(no-go) = %+v, want no press and zero RT", r)
	}
}

func TestCorrectAction(t *testing.T) {
	for _, s := range Stimuli {
		want := agent.NoGo
		if s == Go1 || s == Go2 {
			want = agent.Go
		}
		if got := s.CorrectAction(); got != want {
			t.Errorf("%s.CorrectAction() = %s, want %s", s, got, want)
		}
	}
}
