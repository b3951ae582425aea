package ddm

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// GeneratorFactory builds an independent Generator for a subject.
type GeneratorFactory func(subject int) Generator

// SeededEuler returns a factory giving subject i an EulerGenerator seeded
// with base+i.
func SeededEuler(base int64, opts ...EulerOption) GeneratorFactory {
	return func(subject int) Generator {
		return NewEulerGenerator(base+int64(subject), opts...)
	}
}

// SimulateConfig describes a multi-subject simulation.
type SimulateConfig struct {
	Subjects       int
	TrialsPerLevel int // per stimulus level, per condition
	Conditions     []Condition
	GoNoGo         bool // mask response-0 RTs with NaN
	Workers        int  // 0 = one per subject
}

// Simulate generates every subject's table in parallel. Rows come out
// grouped by subject, then condition, then present/absent.
func Simulate(ctx context.Context, newGen GeneratorFactory, cfg SimulateConfig) ([]Trial, error) {
	if cfg.Subjects <= 0 {
		return nil, fmt.Errorf("need at least one subject, got %d", cfg.Subjects)
	}
	if len(cfg.Conditions) == 0 {
		return nil, fmt.Errorf("need at least one condition")
	}

	perSubject := make([][]Trial, cfg.Subjects)
	g, gctx := errgroup.WithContext(ctx)
	workers := cfg.Workers
	if workers <= 0 {
		workers = cfg.Subjects
	}
	g.SetLimit(workers)
	for s := 0; s < cfg.Subjects; s++ {
		g.Go(func() error {
			gen := newGen(s)
			var rows []Trial
			for _, c := range cfg.Conditions {
				part, err := gen.Generate(gctx, c.Params, c.ID, cfg.TrialsPerLevel, cfg.TrialsPerLevel)
				if err != nil {
					return fmt.Errorf("subject %d condition %d: %w", s, c.ID, err)
				}
				rows = append(rows, part...)
			}
			for i := range rows {
				rows[i].SubjIdx = s
			}
			perSubject[s] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Trial
	for _, rows := range perSubject {
		all = append(all, rows...)
	}
	if cfg.GoNoGo {
		ApplyGoNoGo(all)
	}
	return all, nil
}

// Resimulate generates fresh data from fitted parameters, one subject per
// FitResult, using the same trial counts and masking as cfg. cfg.Subjects
// and cfg.Conditions are ignored.
func Resimulate(ctx context.Context, newGen GeneratorFactory, fits []FitResult, cfg SimulateConfig) ([]Trial, error) {
	var all []Trial
	for _, fr := range fits {
		conds := make([]Condition, 0, len(fr.Params))
		for _, id := range sortedParamKeys(fr.Params) {
			conds = append(conds, Condition{ID: id, Params: fr.Params[id]})
		}
		rows, err := Simulate(ctx, func(int) Generator { return newGen(fr.SubjIdx) }, SimulateConfig{
			Subjects:       1,
			TrialsPerLevel: cfg.TrialsPerLevel,
			Conditions:     conds,
			GoNoGo:         cfg.GoNoGo,
		})
		if err != nil {
			return nil, fmt.Errorf("resimulate subject %d: %w", fr.SubjIdx, err)
		}
		for i := range rows {
			rows[i].SubjIdx = fr.SubjIdx
		}
		all = append(all, rows...)
	}
	return all, nil
}

func sortedParamKeys(m map[int]Params) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
