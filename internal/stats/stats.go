// Package stats reduces per-trial delivery ratios to per-protocol summaries
// and ranks protocols against each other.
package stats

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/specialistvlad/manetbench/internal/protocol"
)

// Summary describes the samples of one protocol. Only strictly positive
// samples are valid; a zero sample is a failed or empty trial.
type Summary struct {
	Protocol protocol.Protocol
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
	Valid    int
	Total    int
	Samples  []float64
}

// HasValid reports whether any sample was usable.
func (s Summary) HasValid() bool { return s.Valid > 0 }

// Summarize computes mean, sample standard deviation, min and max over the
// valid samples. StdDev is 0 with fewer than two valid samples.
func Summarize(p protocol.Protocol, samples []float64) Summary {
	s := Summary{
		Protocol: p,
		Total:    len(samples),
		Samples:  slices.Clone(samples),
	}

	valid := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v > 0 && !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	s.Valid = len(valid)
	if s.Valid == 0 {
		return s
	}

	s.Mean = stat.Mean(valid, nil)
	if s.Valid > 1 {
		s.StdDev = stat.StdDev(valid, nil)
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	return s
}

// Comparison is a set of summaries ranked by mean, best first.
type Comparison struct {
	Ranked []Summary
}

// Best returns the top-ranked summary.
func (c Comparison) Best() (Summary, bool) {
	if len(c.Ranked) == 0 {
		return Summary{}, false
	}
	return c.Ranked[0], true
}

// Rank orders summaries by mean, descending. The sort is stable: equal means
// keep their input order. Summaries without valid samples rank as mean 0.
func Rank(summaries []Summary) Comparison {
	ranked := slices.Clone(summaries)
	slices.SortStableFunc(ranked, func(a, b Summary) int {
		am, bm := rankMean(a), rankMean(b)
		switch {
		case am > bm:
			return -1
		case am < bm:
			return 1
		default:
			return 0
		}
	})
	return Comparison{Ranked: ranked}
}

func rankMean(s Summary) float64 {
	if !s.HasValid() {
		return 0
	}
	return s.Mean
}
