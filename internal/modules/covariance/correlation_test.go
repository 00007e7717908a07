package covariance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

func TestToCorrelation_Bounds(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		m := randomReturns(seed, 50, 4)
		for _, model := range Models() {
			cov, err := Estimate(m, Options{Model: model, Delta: 0.5})
			require.NoError(t, err)

			corr, err := ToCorrelation(cov)
			require.NoError(t, err)
			for i := range corr.Values {
				assert.Equal(t, 1.0, corr.Values[i][i], "diagonal is exactly 1")
				for j := range corr.Values[i] {
					assert.GreaterOrEqual(t, corr.Values[i][j], -1.0)
					assert.LessOrEqual(t, corr.Values[i][j], 1.0)
					assert.Equal(t, corr.Values[i][j], corr.Values[j][i])
				}
			}
		}
	}
}

func TestToCorrelation_RoundTrip(t *testing.T) {
	m := randomReturns(5, 80, 5)
	cov, err := Sample(m)
	require.NoError(t, err)

	corr, err := ToCorrelation(cov)
	require.NoError(t, err)
	rebuilt, err := FromCorrelation(corr, StdDevs(cov))
	require.NoError(t, err)

	for i := range cov.Values {
		for j := range cov.Values[i] {
			assert.InDelta(t, cov.Values[i][j], rebuilt.Values[i][j], 1e-15)
		}
	}
}

func TestToCorrelation_ZeroVarianceAsset(t *testing.T) {
	m := domain.ReturnsMatrix{
		Assets: []string{"A", "B", "C"},
		Values: [][]float64{
			{0, 0, 0},
			{0, 0.02, 0.01},
			{0, -0.01, -0.03},
			{0, 0.04, 0.02},
		},
	}
	cov, err := Sample(m)
	require.NoError(t, err)

	corr, err := ToCorrelation(cov)
	require.NoError(t, err)
	assert.Equal(t, 1.0, corr.Values[0][0])
	assert.Equal(t, 0.0, corr.Values[0][1])
	assert.Equal(t, 0.0, corr.Values[0][2])
	assert.Equal(t, 0.0, corr.Values[1][0])
	assert.Equal(t, 0.0, corr.Values[2][0])

	v, ok := corr.At("A", "B")
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestToCorrelation_InvalidDiagonal(t *testing.T) {
	_, err := ToCorrelation(domain.CovarianceMatrix{
		Assets: []string{"A", "B"},
		Values: [][]float64{{-1, 0}, {0, 1}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsNumerical(err))
}
