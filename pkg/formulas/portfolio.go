package formulas

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PortfolioVariance returns w'Σw.
func PortfolioVariance(w []float64, cov [][]float64) float64 {
	var variance float64
	for i := range w {
		for j := range w {
			variance += w[i] * w[j] * cov[i][j]
		}
	}
	return variance
}

// PortfolioVolatility returns sqrt(w'Σw), clamping round-off below zero.
func PortfolioVolatility(w []float64, cov [][]float64) float64 {
	return math.Sqrt(math.Max(PortfolioVariance(w, cov), 0))
}

// PortfolioReturn returns w'μ.
func PortfolioReturn(w, mu []float64) float64 {
	var r float64
	for i := range w {
		r += w[i] * mu[i]
	}
	return r
}

// RiskContributions returns each asset's share of portfolio variance,
// w_i * (Σw)_i / w'Σw. A zero-variance portfolio yields all zeros.
func RiskContributions(w []float64, cov [][]float64) []float64 {
	n := len(w)
	out := make([]float64, n)
	total := PortfolioVariance(w, cov)
	if total <= 0 {
		return out
	}
	for i := 0; i < n; i++ {
		var marginal float64
		for j := 0; j < n; j++ {
			marginal += cov[i][j] * w[j]
		}
		out[i] = w[i] * marginal / total
	}
	return out
}

// EigenRange returns the smallest and largest eigenvalues of a symmetric matrix.
func EigenRange(sym mat.Symmetric) (minEig, maxEig float64, ok bool) {
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return 0, 0, false
	}
	values := eig.Values(nil)
	if len(values) == 0 {
		return 0, 0, false
	}
	// EigenSym returns eigenvalues in ascending order.
	return values[0], values[len(values)-1], true
}
