// Package insights derives the market-level views of a catalog: summary
// statistics, price segments, per-feature performance and the product
// strategy for a user product.
package insights

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantile returns the q-quantile of values, interpolating linearly between
// the two closest ranks. values need not be sorted and are not modified.
// An empty input returns NaN.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	if lo < 0 {
		return s[0]
	}
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	return s[lo] + (pos-float64(lo))*(s[lo+1]-s[lo])
}

// meanOrNil returns the mean of x, or nil when x is empty.
func meanOrNil(x []float64) *float64 {
	if len(x) == 0 {
		return nil
	}
	m := stat.Mean(x, nil)
	return &m
}

func meanOrZero(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}
