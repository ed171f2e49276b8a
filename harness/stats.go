package harness

import (
	"math"
	"slices"
)

// Stats summarizes a series of measurements.
type Stats struct {
	Mean            float64 `json:"mean"`
	Median          float64 `json:"median"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Stdev           float64 `json:"stdev"`
	P50             float64 `json:"p50"`
	P90             float64 `json:"p90"`
	P95             float64 `json:"p95"`
	P99             float64 `json:"p99"`
	SampleCount     int     `json:"sample_count"`
	OutliersRemoved bool    `json:"outliers_removed"`
}

// outlierThreshold is the minimum series length at which the single
// fastest and slowest samples are dropped from central statistics.
const outlierThreshold = 5

// Summarize computes Stats over values. Min and Max always reflect the
// full series; the remaining fields exclude outliers when requested and
// there are enough samples.
func Summarize(values []float64, removeOutliers bool) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	st := Stats{
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		SampleCount: len(sorted),
	}

	calc := sorted
	if removeOutliers && len(sorted) >= outlierThreshold {
		calc = sorted[1 : len(sorted)-1]
		st.OutliersRemoved = true
	}

	var sum float64
	for _, v := range calc {
		sum += v
	}

	st.Mean = sum / float64(len(calc))
	st.Median = Percentile(calc, 0.5)
	st.P50 = st.Median
	st.P90 = Percentile(calc, 0.90)
	st.P95 = Percentile(calc, 0.95)
	st.P99 = Percentile(calc, 0.99)

	if len(calc) > 1 {
		var sq float64
		for _, v := range calc {
			sq += (v - st.Mean) * (v - st.Mean)
		}

		st.Stdev = math.Sqrt(sq / float64(len(calc)-1))
	}

	return st
}

// Percentile interpolates linearly between the closest ranks of sorted,
// which must be in ascending order. p is in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := p * float64(n-1)
	lower := int(rank)
	upper := min(lower+1, n-1)
	frac := rank - float64(lower)

	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
