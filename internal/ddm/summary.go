package ddm

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrDuplicateEdges is returned when RT quantile edges are not unique, so
// quantile bins cannot be formed.
var ErrDuplicateEdges = errors.New("bin edges must be unique")

// Bin is one RT-quantile bin of a conditional accuracy/response curve.
type Bin struct {
	Index     int     `json:"index"`
	N         int     `json:"n"`
	MeanRT    float64 `json:"mean_rt"`
	PCorrect  float64 `json:"p_correct"`
	PResponse float64 `json:"p_response"`
}

// Summary holds the statistics behind the data/model comparison plots for
// one trial table.
type Summary struct {
	N           int       `json:"n"`
	MissingRT   int       `json:"missing_rt"`
	PCorrect    float64   `json:"p_correct"`
	PResponse   float64   `json:"p_response"`
	Quantiles   []float64 `json:"quantiles"`
	RTQuantiles []float64 `json:"rt_quantiles"`
	Bins        []Bin     `json:"bins"`
}

// ValidateQuantiles checks that q is non-empty, within [0, 1], and strictly
// increasing.
func ValidateQuantiles(q []float64) error {
	if len(q) == 0 {
		return fmt.Errorf("no quantiles given")
	}
	for i, p := range q {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("quantile %v outside [0, 1]", p)
		}
		if i > 0 && p <= q[i-1] {
			return fmt.Errorf("quantiles must be strictly increasing, got %v after %v", p, q[i-1])
		}
	}
	return nil
}

// Summarize computes P(correct), P(response=1), the RT quantiles of the
// observed (non-NaN) RTs, and conditional accuracy/response per quantile
// bin. Quantiles interpolate linearly between order statistics. Bins follow quantile-cut semantics: edges are the RT quantiles at q,
// bin i is (edge[i], edge[i+1]] with the lowest edge included, and RTs
// outside the outer edges belong to no bin. With fewer than two quantiles
// there are no bins.
func Summarize(trials []Trial, q []float64) (Summary, error) {
	if err := ValidateQuantiles(q); err != nil {
		return Summary{}, err
	}

	sum := Summary{N: len(trials), Quantiles: append([]float64(nil), q...)}
	if len(trials) == 0 {
		return sum, nil
	}

	correct := make([]float64, len(trials))
	response := make([]float64, len(trials))
	var rts []float64
	for i, t := range trials {
		if t.Correct {
			correct[i] = 1
		}
		response[i] = float64(t.Response)
		if math.IsNaN(t.RT) {
			sum.MissingRT++
		} else {
			rts = append(rts, t.RT)
		}
	}
	sum.PCorrect = stat.Mean(correct, nil)
	sum.PResponse = stat.Mean(response, nil)

	if len(rts) == 0 {
		return sum, nil
	}
	sort.Float64s(rts)
	sum.RTQuantiles = quantilesOf(rts, q)

	if len(q) < 2 {
		return sum, nil
	}
	idx, err := binIndex(trials, sum.RTQuantiles)
	if err != nil {
		return sum, err
	}

	nBins := len(q) - 1
	binRT := make([][]float64, nBins)
	binCorrect := make([][]float64, nBins)
	binResp := make([][]float64, nBins)
	for i, b := range idx {
		if b < 0 {
			continue
		}
		binRT[b] = append(binRT[b], trials[i].RT)
		binCorrect[b] = append(binCorrect[b], correct[i])
		binResp[b] = append(binResp[b], response[i])
	}
	for b := 0; b < nBins; b++ {
		if len(binRT[b]) == 0 {
			continue
		}
		sum.Bins = append(sum.Bins, Bin{
			Index:     b,
			N:         len(binRT[b]),
			MeanRT:    stat.Mean(binRT[b], nil),
			PCorrect:  stat.Mean(binCorrect[b], nil),
			PResponse: stat.Mean(binResp[b], nil),
		})
	}
	return sum, nil
}

// QCut assigns each trial to an RT-quantile bin and returns the bin index
// per trial (-1 for NaN RTs or RTs outside the outer edges) with the edges.
func QCut(trials []Trial, q []float64) ([]int, []float64, error) {
	if err := ValidateQuantiles(q); err != nil {
		return nil, nil, err
	}
	var rts []float64
	for _, t := range trials {
		if !math.IsNaN(t.RT) {
			rts = append(rts, t.RT)
		}
	}
	if len(rts) == 0 {
		idx := make([]int, len(trials))
		for i := range idx {
			idx[i] = -1
		}
		return idx, nil, nil
	}
	sort.Float64s(rts)
	edges := quantilesOf(rts, q)
	idx, err := binIndex(trials, edges)
	return idx, edges, err
}

func quantilesOf(sorted, q []float64) []float64 {
	out := make([]float64, len(q))
	for i, p := range q {
		out[i] = quantile(sorted, p)
	}
	return out
}

// quantile interpolates linearly between order statistics at rank
// (n-1)*p, the default of numpy.quantile and pandas qcut. gonum's
// stat.LinInterp interpolates the empirical CDF instead and gives
// different values for interior p. sorted must be non-empty.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

func binIndex(trials []Trial, edges []float64) ([]int, error) {
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, fmt.Errorf("edge %v repeats: %w", edges[i], ErrDuplicateEdges)
		}
	}
	lo, hi := edges[0], edges[len(edges)-1]
	idx := make([]int, len(trials))
	for i, t := range trials {
		switch {
		case math.IsNaN(t.RT), t.RT < lo, t.RT > hi:
			idx[i] = -1
		case t.RT == lo:
			idx[i] = 0
		default:
			idx[i] = sort.SearchFloat64s(edges, t.RT) - 1
		}
	}
	return idx, nil
}

// RTSign selects how SignedRTs orients each latency.
type RTSign int

const (
	// ByCorrect negates RTs of incorrect trials.
	ByCorrect RTSign = iota
	// ByResponse negates RTs of response-0 trials.
	ByResponse
)

// SignedRTs returns the observed RTs with the sign convention of the
// distribution plots: positive for correct (or response 1), negative
// otherwise. NaN RTs are skipped.
func SignedRTs(trials []Trial, by RTSign) []float64 {
	out := make([]float64, 0, len(trials))
	for _, t := range trials {
		if math.IsNaN(t.RT) {
			continue
		}
		positive := t.Correct
		if by == ByResponse {
			positive = t.Response == 1
		}
		if positive {
			out = append(out, t.RT)
		} else {
			out = append(out, -t.RT)
		}
	}
	return out
}

// Histogram is a density histogram over symmetric RT bins.
type Histogram struct {
	Edges   []float64 `json:"edges"`
	Density []float64 `json:"density"`
}

// SignedHistogram bins signed RTs into nBins equal-width bins spanning
// [-maxRT, maxRT], normalised so the bars integrate to one. Values outside
// the span are dropped.
func SignedHistogram(signed []float64, maxRT float64, nBins int) (Histogram, error) {
	if nBins < 1 || !(maxRT > 0) {
		return Histogram{}, fmt.Errorf("need nBins >= 1 and maxRT > 0, got %d and %v", nBins, maxRT)
	}
	edges := floats.Span(make([]float64, nBins+1), -maxRT, maxRT)

	x := make([]float64, 0, len(signed))
	for _, v := range signed {
		if v >= -maxRT && v <= maxRT {
			x = append(x, v)
		}
	}
	sort.Float64s(x)

	// Histogram's last bin is half-open; widen it so +maxRT is counted.
	dividers := append([]float64(nil), edges...)
	dividers[nBins] = math.Nextafter(maxRT, math.Inf(1))
	counts := stat.Histogram(nil, dividers, x, nil)

	width := edges[1] - edges[0]
	total := floats.Sum(counts)
	if total > 0 {
		floats.Scale(1/(total*width), counts)
	}
	return Histogram{Edges: edges, Density: counts}, nil
}

// Percentile99 returns the 99th percentile of the observed RTs, the span
// used for the RT histograms. It returns 0 when no RT is observed.
func Percentile99(trials []Trial) float64 {
	var rts []float64
	for _, t := range trials {
		if !math.IsNaN(t.RT) {
			rts = append(rts, t.RT)
		}
	}
	if len(rts) == 0 {
		return 0
	}
	sort.Float64s(rts)
	return quantile(rts, 0.99)
}
