package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance calculates the correlation matrix from a covariance matrix.
//
// Formula: corr(i,j) = cov(i,j) / (std(i) * std(j)), std(i) = sqrt(cov(i,i))
//
// A zero-variance asset has no defined correlation: its row and column are 0
// off the diagonal and its diagonal entry is 1. Results are clamped to [-1, 1].
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square")
		}
	}

	std := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov[i][i]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("invalid variance on diagonal at %d: %v", i, v)
		}
		std[i] = math.Sqrt(v)
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		corr[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			val := 0.0
			if den := std[i] * std[j]; den > 0 {
				val = Clamp(cov[i][j]/den, -1, 1)
			}
			corr[i][j] = val
			corr[j][i] = val
		}
	}

	return corr, nil
}

// CovarianceFromCorrelation rebuilds cov(i,j) = corr(i,j) * std(i) * std(j).
func CovarianceFromCorrelation(corr [][]float64, std []float64) ([][]float64, error) {
	n := len(corr)
	if len(std) != n {
		return nil, fmt.Errorf("correlation size %d does not match %d standard deviations", n, len(std))
	}
	cov := make([][]float64, n)
	for i := 0; i < n; i++ {
		if len(corr[i]) != n {
			return nil, fmt.Errorf("correlation matrix is not square")
		}
		cov[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			cov[i][j] = corr[i][j] * std[i] * std[j]
		}
	}
	return cov, nil
}

// AverageOffDiagonal returns the mean of the off-diagonal entries of a
// square matrix, or 0 when n < 2.
func AverageOffDiagonal(m [][]float64) float64 {
	n := len(m)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				sum += m[i][j]
			}
		}
	}
	return sum / float64(n*(n-1))
}
