package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStats(t *testing.T) {
	data := []float64{1, 2, 3, 4}

	assert.Equal(t, 2.5, Mean(data))
	assert.InDelta(t, 5.0/3.0, Variance(data), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), StdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Variance([]float64{7}))
	assert.Equal(t, 0.0, StdDev([]float64{7}))
}

func TestClampAndIsFinite(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(1.0000001, -1, 1))
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, -1, 1))

	assert.True(t, IsFinite(0))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(-1)))
}

func TestCorrelationMatrixFromCovariance(t *testing.T) {
	cov := [][]float64{
		{4, 2, 0},
		{2, 9, 0},
		{0, 0, 0},
	}

	corr, err := CorrelationMatrixFromCovariance(cov)
	require.NoError(t, err)

	assert.Equal(t, 1.0, corr[0][0])
	assert.InDelta(t, 2.0/6.0, corr[0][1], 1e-12)
	assert.Equal(t, corr[0][1], corr[1][0])
	assert.Equal(t, 1.0, corr[2][2], "zero-variance diagonal")
	assert.Equal(t, 0.0, corr[0][2])

	back, err := CovarianceFromCorrelation(corr, []float64{2, 3, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, back[0][1], 1e-12)
	assert.InDelta(t, 9.0, back[1][1], 1e-12)
}

func TestCorrelationMatrixFromCovariance_Invalid(t *testing.T) {
	_, err := CorrelationMatrixFromCovariance(nil)
	assert.Error(t, err)

	_, err = CorrelationMatrixFromCovariance([][]float64{{1, 0}, {0}})
	assert.Error(t, err)

	_, err = CorrelationMatrixFromCovariance([][]float64{{-1, 0}, {0, 1}})
	assert.Error(t, err)

	_, err = CovarianceFromCorrelation([][]float64{{1}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestAverageOffDiagonal(t *testing.T) {
	m := [][]float64{
		{1, 0.2, 0.4},
		{0.2, 1, 0.6},
		{0.4, 0.6, 1},
	}
	assert.InDelta(t, 0.4, AverageOffDiagonal(m), 1e-12)
	assert.Equal(t, 0.0, AverageOffDiagonal([][]float64{{1}}))
}

func TestPortfolio(t *testing.T) {
	cov := [][]float64{{0.04, 0.01}, {0.01, 0.09}}
	w := []float64{0.5, 0.5}

	variance := 0.25*0.04 + 2*0.25*0.01 + 0.25*0.09
	assert.InDelta(t, variance, PortfolioVariance(w, cov), 1e-15)
	assert.InDelta(t, math.Sqrt(variance), PortfolioVolatility(w, cov), 1e-15)
	assert.InDelta(t, 0.15, PortfolioReturn(w, []float64{0.1, 0.2}), 1e-15)

	rc := RiskContributions(w, cov)
	assert.InDelta(t, 1.0, rc[0]+rc[1], 1e-12)
	assert.InDelta(t, 0.5*0.025/variance, rc[0], 1e-12)

	assert.Equal(t, []float64{0, 0}, RiskContributions(w, [][]float64{{0, 0}, {0, 0}}))
}

func TestEigenRange(t *testing.T) {
	sym := mat.NewSymDense(2, []float64{2, 1, 1, 2})

	lo, hi, ok := EigenRange(sym)
	require.True(t, ok)
	assert.InDelta(t, 1.0, lo, 1e-12)
	assert.InDelta(t, 3.0, hi, 1e-12)
}
