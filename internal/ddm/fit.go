package ddm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrNoFitter is returned when a fit is requested without a Fitter.
var ErrNoFitter = errors.New("no DDM fitter configured")

// GoodnessOfFit summarises a fit.
type GoodnessOfFit struct {
	Statistic     float64 `json:"statistic"` // e.g. the G-square value
	BIC           float64 `json:"bic"`
	LogLikelihood float64 `json:"likelihood"`
	Penalty       float64 `json:"penalty"`
}

// FitResult holds one subject's estimates, keyed by condition.
type FitResult struct {
	SubjIdx int            `json:"subj_idx"`
	Params  map[int]Params `json:"params"`
	Fit     GoodnessOfFit  `json:"fit"`
}

// Fitter estimates per-condition parameters from one subject's trials using
// the given RT quantiles.
type Fitter interface {
	Fit(ctx context.Context, trials []Trial, quantiles []float64) (FitResult, error)
}

// FitterFunc adapts a function to the Fitter interface.
type FitterFunc func(ctx context.Context, trials []Trial, quantiles []float64) (FitResult, error)

// Fit calls f.
func (f FitterFunc) Fit(ctx context.Context, trials []Trial, quantiles []float64) (FitResult, error) {
	return f(ctx, trials, quantiles)
}

// FitAll fits every subject independently, at most workers at a time
// (0 = one per subject). Results are ordered by SubjIdx and carry it even
// if the Fitter leaves it unset.
func FitAll(ctx context.Context, f Fitter, trials []Trial, quantiles []float64, workers int) ([]FitResult, error) {
	if f == nil {
		return nil, ErrNoFitter
	}
	if err := ValidateQuantiles(quantiles); err != nil {
		return nil, err
	}

	groups := BySubject(trials)
	subjects := SortedKeys(groups)
	if workers <= 0 {
		workers = len(subjects)
	}

	results := make([]FitResult, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, subj := range subjects {
		g.Go(func() error {
			res, err := f.Fit(gctx, groups[subj], quantiles)
			if err != nil {
				return fmt.Errorf("subject %d: %w", subj, err)
			}
			res.SubjIdx = subj
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
