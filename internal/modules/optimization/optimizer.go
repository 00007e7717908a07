// Package optimization builds long-only, fully-invested portfolios from a
// covariance matrix: global minimum variance, maximum Sharpe ratio and equal
// risk contribution.
package optimization

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

// Solver methods reported in Result.Method.
const (
	MethodClosedForm        = "closed_form"
	MethodProjectedGradient = "projected_gradient"
	MethodBFGS              = "bfgs"
	MethodNelderMead        = "nelder_mead"
)

const (
	DefaultMaxIterations = 10000
	DefaultTolerance     = 1e-10
)

// Settings bounds the iterative solvers.
type Settings struct {
	// MaxIterations caps every iterative solve and acts as its timeout.
	MaxIterations int
	// Tolerance is the convergence threshold on the step size.
	Tolerance float64
}

// DefaultSettings returns the solver defaults.
func DefaultSettings() Settings {
	return Settings{MaxIterations: DefaultMaxIterations, Tolerance: DefaultTolerance}
}

// Validate checks the solver bounds.
func (s Settings) Validate() error {
	const op = "optimization.Settings"
	if s.MaxIterations <= 0 {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "max iterations must be positive, got %d", s.MaxIterations)
	}
	if !(s.Tolerance > 0) || math.IsInf(s.Tolerance, 0) {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "tolerance must be a positive number, got %g", s.Tolerance)
	}
	return nil
}

// Problem is one optimization request.
type Problem struct {
	Objective  Objective
	Covariance domain.CovarianceMatrix
	// ExpectedReturns and RiskFreeRate are only read by ObjectiveMaxSharpe.
	ExpectedReturns domain.AssetVector
	RiskFreeRate    float64
}

// Result is the raw solver output.
type Result struct {
	Weights    domain.WeightVector
	Objective  Objective
	Method     string
	Iterations int
}

// Optimizer solves portfolio construction problems. It holds no per-request
// state and is safe for concurrent use.
type Optimizer struct {
	settings Settings
	log      zerolog.Logger
}

// NewOptimizer creates an optimizer with the given solver bounds.
func NewOptimizer(settings Settings, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		settings: settings,
		log:      log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize returns weights that are non-negative and sum to one, or an error.
// It never returns a vector containing NaN or negative entries.
func (o *Optimizer) Optimize(p Problem) (Result, error) {
	return o.OptimizeWith(p, o.settings)
}

// OptimizeWith is Optimize with per-call solver bounds.
func (o *Optimizer) OptimizeWith(p Problem, settings Settings) (Result, error) {
	const op = "optimization.Optimize"

	if err := settings.Validate(); err != nil {
		return Result{}, err
	}
	if !p.Objective.Valid() {
		return Result{}, domain.ConfigurationError(op, domain.ErrInvalidSetting, "unknown objective %d", int(p.Objective))
	}
	sigma, err := checkCovariance(op, p.Covariance)
	if err != nil {
		return Result{}, err
	}

	var (
		x      []float64
		method string
		iters  int
	)
	switch p.Objective {
	case ObjectiveMinVariance:
		x, method, iters, err = minVariance(sigma, settings)
	case ObjectiveMaxSharpe:
		var mu []float64
		mu, err = alignReturns(op, p.Covariance.Assets, p.ExpectedReturns)
		if err != nil {
			return Result{}, err
		}
		x, method, iters, err = maxSharpe(sigma, mu, p.RiskFreeRate, settings)
	case ObjectiveRiskParity:
		x, method, iters, err = riskParity(sigma, settings)
	}
	if err != nil {
		o.log.Debug().Err(err).Str("objective", p.Objective.String()).Msg("Solver failed")
		return Result{}, err
	}

	weights, err := normalize(op, x)
	if err != nil {
		return Result{}, err
	}

	o.log.Debug().
		Str("objective", p.Objective.String()).
		Str("method", method).
		Int("iterations", iters).
		Int("assets", len(weights)).
		Msg("Portfolio optimized")

	return Result{
		Weights:    domain.WeightVector{Assets: append([]string(nil), p.Covariance.Assets...), Weights: weights},
		Objective:  p.Objective,
		Method:     method,
		Iterations: iters,
	}, nil
}

func checkCovariance(op string, cov domain.CovarianceMatrix) ([][]float64, error) {
	n := cov.Size()
	if n == 0 {
		return nil, domain.ConfigurationError(op, domain.ErrTooFewAssets, "empty covariance matrix")
	}
	if len(cov.Values) != n {
		return nil, domain.NumericalError(op, domain.ErrDimensionMismatch, "covariance has %d rows for %d assets", len(cov.Values), n)
	}
	for i, row := range cov.Values {
		if len(row) != n {
			return nil, domain.NumericalError(op, domain.ErrDimensionMismatch, "covariance row %d has %d columns, want %d", i, len(row), n)
		}
		for _, v := range row {
			if !formulas.IsFinite(v) {
				return nil, domain.NumericalError(op, domain.ErrNonFinite, "covariance contains a non-finite entry")
			}
		}
	}
	return cov.Values, nil
}

// alignReturns orders the expected returns like the covariance assets.
func alignReturns(op string, assets []string, mu domain.AssetVector) ([]float64, error) {
	out := make([]float64, len(assets))
	for i, asset := range assets {
		v, ok := mu.Get(asset)
		if !ok {
			return nil, domain.DataError(op, domain.ErrMissingAsset, "no expected return for %s", asset)
		}
		if !formulas.IsFinite(v) {
			return nil, domain.NumericalError(op, domain.ErrNonFinite, "expected return for %s is not finite", asset)
		}
		out[i] = v
	}
	return out, nil
}

// normalize clips round-off negatives and rescales to sum to one.
func normalize(op string, x []float64) ([]float64, error) {
	w := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		if !formulas.IsFinite(v) {
			return nil, domain.NumericalError(op, domain.ErrNonFinite, "solver produced a non-finite weight")
		}
		w[i] = math.Max(v, 0)
		sum += w[i]
	}
	if !(sum > 0) || math.IsInf(sum, 0) {
		return nil, domain.NumericalError(op, domain.ErrNonFinite, "solver produced weights summing to %g", sum)
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
