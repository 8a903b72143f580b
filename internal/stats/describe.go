// Package stats computes descriptive statistics over rule metric columns.
//
// Statistics of an empty column are NaN rather than zero so that "no rules
// survived" stays distinguishable from "the metric is zero".
package stats

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics for one column.
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"` // sample standard deviation (n-1)
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Undefined returns a summary with every statistic set to NaN.
func Undefined() Summary {
	nan := math.NaN()
	return Summary{Mean: nan, Median: nan, Std: nan, Min: nan, Max: nan}
}

// Describe summarizes values. The input slice is not modified.
// A single value has an undefined (NaN) standard deviation.
func Describe(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Undefined()
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	std := math.NaN()
	if n > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(n-1))
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		Median: median,
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// Defined reports whether the summary was computed from at least one value.
func (s Summary) Defined() bool {
	return s.Count > 0
}
