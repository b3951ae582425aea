package ddm

import (
	"errors"
	"math"
	"testing"
)

func TestParamsValidate(t *testing.T) {
	good := Params{A: 2, V: 0.5, T: 0.3, Z: 0.5}
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"valid", func(*Params) {}, true},
		{"zero a", func(p *Params) { p.A = 0 }, false},
		{"z at 0", func(p *Params) { p.Z = 0 }, false},
		{"z at 1", func(p *Params) { p.Z = 1 }, false},
		{"negative sv", func(p *Params) { p.SV = -1 }, false},
		{"sz past support", func(p *Params) { p.SZ = 1.0 }, false},
		{"st past t", func(p *Params) { p.ST = 0.8 }, false},
		{"NaN drift", func(p *Params) { p.V = math.NaN() }, false},
		{"variability within support", func(p *Params) { p.SZ, p.ST, p.SV = 0.2, 0.2, 0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := good
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("Validate() error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestPresentAbsent(t *testing.T) {
	p := Params{A: 2, V: 0.5, T: 0.3, Z: 0.3, DC: 0.2}

	pr := p.Present()
	if math.Abs(pr.V-0.7) > 1e-12 || pr.Z != 0.3 || pr.DC != 0 {
		t.Errorf("Present() = %+v, want v=0.7 z=0.3", pr)
	}
	ab := p.Absent()
	if math.Abs(ab.V-0.3) > 1e-12 || math.Abs(ab.Z-0.7) > 1e-12 || ab.DC != 0 {
		t.Errorf("Absent() = %+v, want v=0.3 z=0.7", ab)
	}
	if pr.A != p.A || ab.T != p.T {
		t.Error("Present/Absent must keep a and t")
	}
}

func TestDefaultConditions(t *testing.T) {
	conds := DefaultConditions()
	if len(conds) != 2 {
		t.Fatalf("len = %d, want 2", len(conds))
	}
	if conds[0].Params.DC != -0.2 || conds[1].Params.DC != 0.2 {
		t.Errorf("drift criteria = %v/%v, want -0.2/0.2", conds[0].Params.DC, conds[1].Params.DC)
	}
	for _, c := range conds {
		if err := c.Params.Validate(); err != nil {
			t.Errorf("condition %d invalid: %v", c.ID, err)
		}
	}
}
