package optimization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

func newTestOptimizer() *Optimizer {
	return NewOptimizer(DefaultSettings(), zerolog.Nop())
}

func covMatrix(assets []string, rows ...[]float64) domain.CovarianceMatrix {
	return domain.CovarianceMatrix{Assets: assets, Values: rows}
}

func assetNames(n int) []string {
	assets := make([]string, n)
	for i := range assets {
		assets[i] = string(rune('A' + i))
	}
	return assets
}

// factorCovariance builds a positive definite one-factor covariance
// matrix beta*beta'*f + diag(idio) with deterministic random loadings.
func factorCovariance(seed int64, n int) domain.CovarianceMatrix {
	rng := rand.New(rand.NewSource(seed))
	beta := make([]float64, n)
	idio := make([]float64, n)
	for i := range beta {
		beta[i] = 0.3 + rng.Float64()*1.2
		idio[i] = 0.01 + rng.Float64()*0.05
	}
	factor := 0.04
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		for j := range values[i] {
			values[i][j] = beta[i] * beta[j] * factor
		}
		values[i][i] += idio[i]
	}
	return covMatrix(assetNames(n), values...)
}

func expectedReturns(assets []string, values ...float64) domain.AssetVector {
	return domain.AssetVector{Assets: assets, Values: values}
}

func variance(w domain.WeightVector, cov domain.CovarianceMatrix) float64 {
	return formulas.PortfolioVariance(w.Weights, cov.Values)
}

func sharpe(w []float64, cov domain.CovarianceMatrix, mu []float64, rf float64) float64 {
	return (formulas.PortfolioReturn(w, mu) - rf) / formulas.PortfolioVolatility(w, cov.Values)
}

func assertLongOnly(t *testing.T, w domain.WeightVector) {
	t.Helper()
	assert.InDelta(t, 1.0, w.Sum(), 1e-6, "weights must sum to 1")
	for i, v := range w.Weights {
		assert.GreaterOrEqual(t, v, -1e-9, "weight %s must not be short", w.Assets[i])
		assert.False(t, math.IsNaN(v))
	}
}

func TestOptimize_LongOnlyFullyInvested(t *testing.T) {
	opt := newTestOptimizer()

	for seed := int64(1); seed <= 10; seed++ {
		for n := 2; n <= 6; n++ {
			cov := factorCovariance(seed, n)
			mu := make([]float64, n)
			for i := range mu {
				mu[i] = 0.02 + 0.05*float64(i)
			}

			for _, objective := range Objectives() {
				result, err := opt.Optimize(Problem{
					Objective:       objective,
					Covariance:      cov,
					ExpectedReturns: expectedReturns(cov.Assets, mu...),
					RiskFreeRate:    0.03,
				})
				require.NoError(t, err, "seed %d n %d objective %s", seed, n, objective)
				assert.Equal(t, cov.Assets, result.Weights.Assets)
				assert.Equal(t, objective, result.Objective)
				assertLongOnly(t, result.Weights)
			}
		}
	}
}

func TestMinVariance_ClosedForm(t *testing.T) {
	cov := covMatrix([]string{"A", "B", "C"},
		[]float64{1, 0, 0},
		[]float64{0, 2, 0},
		[]float64{0, 0, 4},
	)

	result, err := newTestOptimizer().Optimize(Problem{Objective: ObjectiveMinVariance, Covariance: cov})
	require.NoError(t, err)

	assert.Equal(t, MethodClosedForm, result.Method)
	assert.InDelta(t, 4.0/7, result.Weights.Weights[0], 1e-12)
	assert.InDelta(t, 2.0/7, result.Weights.Weights[1], 1e-12)
	assert.InDelta(t, 1.0/7, result.Weights.Weights[2], 1e-12)
}

func TestMinVariance_BindingLongOnlyConstraint(t *testing.T) {
	// The unconstrained minimum shorts B.
	cov := covMatrix([]string{"A", "B"},
		[]float64{1, 1.9},
		[]float64{1.9, 4},
	)

	result, err := newTestOptimizer().Optimize(Problem{Objective: ObjectiveMinVariance, Covariance: cov})
	require.NoError(t, err)

	assert.Equal(t, MethodProjectedGradient, result.Method)
	assert.Greater(t, result.Iterations, 0)
	assert.InDelta(t, 1.0, result.Weights.Weights[0], 1e-8)
	assert.InDelta(t, 0.0, result.Weights.Weights[1], 1e-8)
	assertLongOnly(t, result.Weights)
}

func TestMinVariance_NotWorseThanVerticesOrEqualWeight(t *testing.T) {
	opt := newTestOptimizer()

	for seed := int64(1); seed <= 20; seed++ {
		n := 2 + int(seed%5)
		cov := factorCovariance(seed, n)

		result, err := opt.Optimize(Problem{Objective: ObjectiveMinVariance, Covariance: cov})
		require.NoError(t, err)
		got := variance(result.Weights, cov)

		equal := domain.WeightVector{Assets: cov.Assets, Weights: equalWeights(n)}
		assert.LessOrEqual(t, got, variance(equal, cov)+1e-12, "seed %d equal weight", seed)
		for i := 0; i < n; i++ {
			assert.LessOrEqual(t, got, cov.Values[i][i]+1e-12, "seed %d vertex %d", seed, i)
		}
	}
}

func TestMaxSharpe_Tangency(t *testing.T) {
	assets := []string{"A", "B"}
	cov := covMatrix(assets,
		[]float64{0.04, 0},
		[]float64{0, 0.09},
	)

	result, err := newTestOptimizer().Optimize(Problem{
		Objective:       ObjectiveMaxSharpe,
		Covariance:      cov,
		ExpectedReturns: expectedReturns(assets, 0.10, 0.15),
		RiskFreeRate:    0.03,
	})
	require.NoError(t, err)

	// Σ⁻¹(μ - rf) = (1.75, 1.3333...)
	assert.InDelta(t, 1.75/(1.75+4.0/3), result.Weights.Weights[0], 1e-6)
	assert.InDelta(t, (4.0/3)/(1.75+4.0/3), result.Weights.Weights[1], 1e-6)
}

func TestMaxSharpe_ExcludesNegativeExcessReturn(t *testing.T) {
	assets := []string{"A", "B", "C"}
	cov := covMatrix(assets,
		[]float64{0.04, 0, 0},
		[]float64{0, 0.09, 0},
		[]float64{0, 0, 0.01},
	)

	result, err := newTestOptimizer().Optimize(Problem{
		Objective:       ObjectiveMaxSharpe,
		Covariance:      cov,
		ExpectedReturns: expectedReturns(assets, 0.10, 0.15, 0.02),
		RiskFreeRate:    0.03,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.75/(1.75+4.0/3), result.Weights.Weights[0], 1e-6)
	assert.InDelta(t, (4.0/3)/(1.75+4.0/3), result.Weights.Weights[1], 1e-6)
	assert.InDelta(t, 0.0, result.Weights.Weights[2], 1e-9)
}

func TestMaxSharpe_BeatsEqualWeightAndVertices(t *testing.T) {
	opt := newTestOptimizer()
	rf := 0.03

	for seed := int64(1); seed <= 10; seed++ {
		n := 3 + int(seed%3)
		cov := factorCovariance(seed, n)
		rng := rand.New(rand.NewSource(seed * 7))
		mu := make([]float64, n)
		for i := range mu {
			mu[i] = rng.Float64() * 0.4
		}
		mu[0] = 0.25

		result, err := opt.Optimize(Problem{
			Objective:       ObjectiveMaxSharpe,
			Covariance:      cov,
			ExpectedReturns: expectedReturns(cov.Assets, mu...),
			RiskFreeRate:    rf,
		})
		require.NoError(t, err)

		got := sharpe(result.Weights.Weights, cov, mu, rf)
		assert.GreaterOrEqual(t, got, sharpe(equalWeights(n), cov, mu, rf)-1e-9, "seed %d", seed)
		for i := 0; i < n; i++ {
			vertex := make([]float64, n)
			vertex[i] = 1
			assert.GreaterOrEqual(t, got, sharpe(vertex, cov, mu, rf)-1e-9, "seed %d vertex %d", seed, i)
		}
	}
}

func TestMaxSharpe_NoPositiveExcessReturn(t *testing.T) {
	assets := []string{"A", "B", "C"}
	cov := factorCovariance(3, 3)

	_, err := newTestOptimizer().Optimize(Problem{
		Objective:       ObjectiveMaxSharpe,
		Covariance:      cov,
		ExpectedReturns: expectedReturns(assets, 0.03, 0.03, 0.03),
		RiskFreeRate:    0.03,
	})

	require.Error(t, err)
	assert.True(t, domain.IsNumerical(err))
	assert.ErrorIs(t, err, domain.ErrNoPositiveExcessReturn)
}

func TestMaxSharpe_MissingExpectedReturn(t *testing.T) {
	cov := factorCovariance(1, 3)

	_, err := newTestOptimizer().Optimize(Problem{
		Objective:       ObjectiveMaxSharpe,
		Covariance:      cov,
		ExpectedReturns: expectedReturns([]string{"A", "B"}, 0.1, 0.2),
	})

	require.Error(t, err)
	assert.True(t, domain.IsData(err))
	assert.ErrorIs(t, err, domain.ErrMissingAsset)
}

func TestRiskParity_EqualVariancesUncorrelated(t *testing.T) {
	cov := covMatrix([]string{"A", "B"},
		[]float64{0.04, 0},
		[]float64{0, 0.04},
	)

	result, err := newTestOptimizer().Optimize(Problem{Objective: ObjectiveRiskParity, Covariance: cov})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.Weights.Weights[0], 1e-9)
	assert.InDelta(t, 0.5, result.Weights.Weights[1], 1e-9)
}

func TestRiskParity_InverseVolatilityWhenUncorrelated(t *testing.T) {
	cov := covMatrix([]string{"A", "B"},
		[]float64{1, 0},
		[]float64{0, 4},
	)

	result, err := newTestOptimizer().Optimize(Problem{Objective: ObjectiveRiskParity, Covariance: cov})
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3, result.Weights.Weights[0], 1e-6)
	assert.InDelta(t, 1.0/3, result.Weights.Weights[1], 1e-6)
}

func TestRiskParity_EqualContributions(t *testing.T) {
	opt := newTestOptimizer()

	for seed := int64(1); seed <= 10; seed++ {
		n := 2 + int(seed%5)
		cov := factorCovariance(seed, n)

		result, err := opt.Optimize(Problem{Objective: ObjectiveRiskParity, Covariance: cov})
		require.NoError(t, err)

		for _, share := range formulas.RiskContributions(result.Weights.Weights, cov.Values) {
			assert.InDelta(t, 1/float64(n), share, 1e-5, "seed %d", seed)
		}
	}
}

func TestRiskParity_ZeroVarianceAsset(t *testing.T) {
	cov := covMatrix([]string{"A", "B"},
		[]float64{0, 0},
		[]float64{0, 0.04},
	)

	_, err := newTestOptimizer().Optimize(Problem{Objective: ObjectiveRiskParity, Covariance: cov})

	require.Error(t, err)
	assert.True(t, domain.IsNumerical(err))
	assert.ErrorIs(t, err, domain.ErrZeroVariance)
}

func TestOptimize_IterationCapReportsNonConvergence(t *testing.T) {
	cov := covMatrix([]string{"A", "B"},
		[]float64{1, 1.9},
		[]float64{1.9, 4},
	)
	opt := NewOptimizer(Settings{MaxIterations: 1, Tolerance: 1e-10}, zerolog.Nop())

	_, err := opt.Optimize(Problem{Objective: ObjectiveMinVariance, Covariance: cov})

	require.Error(t, err)
	assert.True(t, domain.IsNumerical(err))
	assert.ErrorIs(t, err, domain.ErrNotConverged)
}

func TestOptimize_Deterministic(t *testing.T) {
	opt := newTestOptimizer()
	cov := factorCovariance(42, 5)
	mu := expectedReturns(cov.Assets, 0.1, 0.2, 0.15, 0.05, 0.3)

	for _, objective := range Objectives() {
		p := Problem{Objective: objective, Covariance: cov, ExpectedReturns: mu, RiskFreeRate: 0.03}
		first, err := opt.Optimize(p)
		require.NoError(t, err)
		second, err := opt.Optimize(p)
		require.NoError(t, err)
		assert.Equal(t, first.Weights, second.Weights, objective.String())
	}
}

func TestOptimize_InvalidInput(t *testing.T) {
	cov := factorCovariance(1, 2)

	tests := []struct {
		name     string
		settings Settings
		problem  Problem
		check    func(error) bool
		cause    error
	}{
		{
			name:     "zero iterations",
			settings: Settings{MaxIterations: 0, Tolerance: 1e-10},
			problem:  Problem{Objective: ObjectiveMinVariance, Covariance: cov},
			check:    domain.IsConfiguration,
			cause:    domain.ErrInvalidSetting,
		},
		{
			name:     "negative tolerance",
			settings: Settings{MaxIterations: 10, Tolerance: -1},
			problem:  Problem{Objective: ObjectiveMinVariance, Covariance: cov},
			check:    domain.IsConfiguration,
			cause:    domain.ErrInvalidSetting,
		},
		{
			name:     "unknown objective",
			settings: DefaultSettings(),
			problem:  Problem{Objective: Objective(99), Covariance: cov},
			check:    domain.IsConfiguration,
			cause:    domain.ErrInvalidSetting,
		},
		{
			name:     "ragged covariance",
			settings: DefaultSettings(),
			problem: Problem{Objective: ObjectiveMinVariance, Covariance: covMatrix([]string{"A", "B"},
				[]float64{1, 0},
				[]float64{0},
			)},
			check: domain.IsNumerical,
			cause: domain.ErrDimensionMismatch,
		},
		{
			name:     "non-finite covariance",
			settings: DefaultSettings(),
			problem: Problem{Objective: ObjectiveMinVariance, Covariance: covMatrix([]string{"A", "B"},
				[]float64{1, math.NaN()},
				[]float64{math.NaN(), 1},
			)},
			check: domain.IsNumerical,
			cause: domain.ErrNonFinite,
		},
	}

	opt := newTestOptimizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := opt.OptimizeWith(tt.problem, tt.settings)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected kind: %v", err)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestProjectHalfspaceOrthant_Simplex(t *testing.T) {
	tests := []struct {
		name string
		v    []float64
		want []float64
	}{
		{name: "uniform", v: []float64{0.5, 0.5, 0.5}, want: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{name: "already feasible", v: []float64{0.2, 0.8}, want: []float64{0.2, 0.8}},
		{name: "clips negatives", v: []float64{2, 0, -1}, want: []float64{1, 0, 0}},
		{name: "shifts", v: []float64{0.205, -0.0996}, want: []float64{0.6523, 0.3477}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := projectHalfspaceOrthant(tt.v, ones(len(tt.v)))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestProjectHalfspaceOrthant_MixedSigns(t *testing.T) {
	a := []float64{0.5, -0.2, 1}
	got := projectHalfspaceOrthant([]float64{3, 4, -2}, a)

	for _, v := range got {
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.InDelta(t, 1.0, formulas.PortfolioReturn(got, a), 1e-12)
}
