// Package formulas holds small numeric building blocks shared by the
// analytics modules.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (N-1 denominator).
// Fewer than two observations yield 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return math.Sqrt(Variance(data))
}

// Variance calculates the unbiased sample variance.
// Fewer than two observations yield 0; tiny negative round-off is clamped.
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return math.Max(stat.Variance(data, nil), 0)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
