package optimization

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

// riskParityTolerance is how far a risk contribution share may sit from 1/n.
const riskParityTolerance = 1e-6

// riskParity finds weights whose contributions w_i (Σw)_i are all equal.
//
// Σ is first scaled by its mean variance. The solution is the minimizer of
// ½ y'Sy - (1/n) Σ ln y_i, whose first-order condition is y_i (Sy)_i = 1/n
// for every i. It is solved in log space (y = exp(x)) so positivity holds
// without constraints, with BFGS and a Nelder-Mead fallback, and then checked
// against the equal-contribution condition.
func riskParity(sigma [][]float64, settings Settings) ([]float64, string, int, error) {
	const op = "optimization.RiskParity"
	n := len(sigma)

	scale := 0.0
	for i := 0; i < n; i++ {
		if sigma[i][i] <= 0 {
			return nil, "", 0, domain.NumericalError(op, domain.ErrZeroVariance,
				"equal risk contribution is undefined with a zero-variance asset (index %d)", i)
		}
		scale += sigma[i][i]
	}
	scale /= float64(n)

	s := make([][]float64, n)
	for i := range sigma {
		s[i] = make([]float64, n)
		for j := range sigma[i] {
			s[i][j] = sigma[i][j] / scale
		}
	}

	target := 1 / float64(n)
	sy := make([]float64, n)
	expand := func(x []float64) []float64 {
		y := make([]float64, n)
		for i := range x {
			y[i] = math.Exp(x[i])
		}
		return y
	}
	mulS := func(y []float64) {
		for i := range sy {
			v := 0.0
			for j := range y {
				v += s[i][j] * y[j]
			}
			sy[i] = v
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			y := expand(x)
			mulS(y)
			f := 0.0
			for i := range y {
				f += 0.5*y[i]*sy[i] - target*x[i]
			}
			return f
		},
		Grad: func(grad, x []float64) {
			y := expand(x)
			mulS(y)
			for i := range grad {
				grad[i] = y[i]*sy[i] - target
			}
		},
	}

	// Equal weights scaled onto the optimum's variance level (y'Sy = 1).
	initial := equalWeights(n)
	norm := math.Sqrt(formulas.PortfolioVariance(initial, s))
	for i := range initial {
		initial[i] = math.Log(initial[i] / norm)
	}

	optSettings := &optimize.Settings{
		GradientThreshold: settings.Tolerance,
		MajorIterations:   settings.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   settings.Tolerance * settings.Tolerance,
			Iterations: 100,
		},
	}

	method := MethodBFGS
	result, err := optimize.Minimize(problem, initial, optSettings, &optimize.BFGS{})
	if err != nil || !equalContributions(result, s, target) {
		start := initial
		if result != nil && finiteAll(result.X) {
			start = result.X
		}
		method = MethodNelderMead
		result, err = optimize.Minimize(problem, start, optSettings, &optimize.NelderMead{})
	}
	if result == nil {
		return nil, "", 0, domain.NumericalError(op, domain.ErrNotConverged, "equal risk contribution solver failed: %v", err)
	}
	if !equalContributions(result, s, target) {
		return nil, "", result.Stats.MajorIterations, domain.NumericalError(op, domain.ErrNotConverged,
			"equal risk contribution did not converge in %d iterations (status %v)", result.Stats.MajorIterations, result.Status)
	}

	return expand(result.X), method, result.Stats.MajorIterations, nil
}

// equalContributions reports whether every risk contribution share of the
// normalized solution is within riskParityTolerance of target.
func equalContributions(result *optimize.Result, s [][]float64, target float64) bool {
	if result == nil || !finiteAll(result.X) {
		return false
	}
	w := make([]float64, len(result.X))
	sum := 0.0
	for i, x := range result.X {
		w[i] = math.Exp(x)
		sum += w[i]
	}
	if !(sum > 0) || math.IsInf(sum, 0) {
		return false
	}
	for i := range w {
		w[i] /= sum
	}
	for _, share := range formulas.RiskContributions(w, s) {
		if math.Abs(share-target) > riskParityTolerance {
			return false
		}
	}
	return true
}

func finiteAll(v []float64) bool {
	for _, x := range v {
		if !formulas.IsFinite(x) {
			return false
		}
	}
	return true
}
