package optimization

import (
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// minVariance solves min w'Σw s.t. w >= 0, Σw = 1.
//
// When Σ is positive definite the unconstrained solution Σ⁻¹1 / 1'Σ⁻¹1 is
// tried first; it is the answer whenever it is already long-only. Otherwise
// the constrained problem is solved by projected gradient on the simplex,
// seeded from equal weights.
func minVariance(sigma [][]float64, settings Settings) ([]float64, string, int, error) {
	const op = "optimization.MinVariance"
	n := len(sigma)

	if w, ok := closedFormMinVariance(sigma); ok {
		return w, MethodClosedForm, 0, nil
	}

	res := minimizeQuadratic(sigma, ones(n), equalWeights(n), settings.MaxIterations, settings.Tolerance)
	if !res.converged {
		return nil, "", res.iterations, domain.NumericalError(op, domain.ErrNotConverged,
			"minimum variance did not converge in %d iterations (residual %.3g)", res.iterations, res.residual)
	}
	return res.x, MethodProjectedGradient, res.iterations, nil
}

// closedFormMinVariance returns Σ⁻¹1 / 1'Σ⁻¹1 when Σ factors and every
// weight is non-negative.
func closedFormMinVariance(sigma [][]float64) ([]float64, bool) {
	n := len(sigma)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, sigma[i][j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, false
	}
	// A numerically singular Σ factors but gives garbage.
	if cond := chol.Cond(); cond > 1e12 {
		return nil, false
	}

	var z mat.VecDense
	if err := chol.SolveVecTo(&z, mat.NewVecDense(n, ones(n))); err != nil {
		return nil, false
	}

	sum := mat.Sum(&z)
	if !(sum > 0) {
		return nil, false
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = z.AtVec(i) / sum
		if w[i] < 0 {
			return nil, false
		}
	}
	return w, true
}

// maxSharpe maximizes (w'μ - rf) / sqrt(w'Σw) over the long-only simplex.
//
// With a = μ - rf the ratio is scale-invariant, so the problem is solved as
// the convex program min y'Σy s.t. a'y = 1, y >= 0 and w = y / Σy. It needs
// at least one asset with a strictly positive excess return; otherwise no
// portfolio beats the risk-free rate and the result is undefined.
func maxSharpe(sigma [][]float64, mu []float64, rf float64, settings Settings) ([]float64, string, int, error) {
	const op = "optimization.MaxSharpe"
	n := len(sigma)

	excess := make([]float64, n)
	positive := false
	for i := range mu {
		excess[i] = mu[i] - rf
		if excess[i] > 0 {
			positive = true
		}
	}
	if !positive {
		return nil, "", 0, domain.NumericalError(op, domain.ErrNoPositiveExcessReturn,
			"no asset returns more than the risk-free rate %.4f", rf)
	}

	res := minimizeQuadratic(sigma, excess, equalWeights(n), settings.MaxIterations, settings.Tolerance)
	if !res.converged {
		return nil, "", res.iterations, domain.NumericalError(op, domain.ErrNotConverged,
			"maximum Sharpe did not converge in %d iterations (residual %.3g)", res.iterations, res.residual)
	}
	return res.x, MethodProjectedGradient, res.iterations, nil
}
