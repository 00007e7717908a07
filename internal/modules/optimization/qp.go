package optimization

import (
	"math"

	"github.com/aristath/cryptoptimizer/pkg/formulas"
	"gonum.org/v1/gonum/mat"
)

// qpResult is the outcome of a projected-gradient run.
type qpResult struct {
	x          []float64
	iterations int
	converged  bool
	residual   float64
}

// minimizeQuadratic minimizes x'Σx over {x >= 0, a'x = 1} with accelerated
// projected gradient (FISTA) and gradient-based adaptive restart.
//
// Convergence is declared when the projected-gradient step
// ||x - P(x - ∇f(x)/L)||∞ drops to tol * max(1, ||x||∞).
func minimizeQuadratic(sigma [][]float64, a, seed []float64, maxIter int, tol float64) qpResult {
	n := len(seed)
	lipschitz := 2 * largestEigenvalue(sigma)

	x := projectHalfspaceOrthant(seed, a)
	if lipschitz <= 0 {
		// Σ is zero: every feasible point is optimal.
		return qpResult{x: x, converged: true}
	}
	step := 1 / lipschitz

	grad := make([]float64, n)
	trial := make([]float64, n)
	y := append([]float64(nil), x...)
	momentum := 1.0

	for k := 1; k <= maxIter; k++ {
		gradient(grad, sigma, y)
		for i := range trial {
			trial[i] = y[i] - step*grad[i]
		}
		next := projectHalfspaceOrthant(trial, a)

		res := fixedPointResidual(sigma, a, next, step)
		if res <= tol*math.Max(1, maxAbs(next)) {
			return qpResult{x: next, iterations: k, converged: true, residual: res}
		}

		// Restart when the momentum direction opposes the gradient step.
		restart := 0.0
		for i := range next {
			restart += (y[i] - next[i]) * (next[i] - x[i])
		}
		if restart > 0 {
			momentum = 1
		}

		nextMomentum := (1 + math.Sqrt(1+4*momentum*momentum)) / 2
		beta := (momentum - 1) / nextMomentum
		for i := range y {
			y[i] = next[i] + beta*(next[i]-x[i])
		}
		x, momentum = next, nextMomentum
	}

	return qpResult{x: x, iterations: maxIter, converged: false, residual: fixedPointResidual(sigma, a, x, step)}
}

// gradient writes ∇(x'Σx) = 2Σx into dst.
func gradient(dst []float64, sigma [][]float64, x []float64) {
	for i := range dst {
		g := 0.0
		for j := range x {
			g += sigma[i][j] * x[j]
		}
		dst[i] = 2 * g
	}
}

func fixedPointResidual(sigma [][]float64, a, x []float64, step float64) float64 {
	n := len(x)
	grad := make([]float64, n)
	gradient(grad, sigma, x)
	trial := make([]float64, n)
	for i := range trial {
		trial[i] = x[i] - step*grad[i]
	}
	p := projectHalfspaceOrthant(trial, a)
	res := 0.0
	for i := range p {
		res = math.Max(res, math.Abs(p[i]-x[i]))
	}
	return res
}

// largestEigenvalue returns λmax(Σ), falling back to the max absolute row
// sum (an upper bound) when the eigendecomposition fails.
func largestEigenvalue(sigma [][]float64) float64 {
	n := len(sigma)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, sigma[i][j])
		}
	}
	if _, maxEig, ok := formulas.EigenRange(sym); ok && formulas.IsFinite(maxEig) {
		return math.Max(maxEig, 0)
	}
	bound := 0.0
	for i := 0; i < n; i++ {
		row := 0.0
		for j := 0; j < n; j++ {
			row += math.Abs(sigma[i][j])
		}
		bound = math.Max(bound, row)
	}
	return bound
}

// projectHalfspaceOrthant returns the Euclidean projection of v onto
// {y >= 0, a'y = 1}. The solution is y = max(0, v - τa) where τ solves
// φ(τ) = Σ a_i max(0, v_i - τ a_i) = 1; φ is non-increasing, so τ is found
// by bracketing and bisection. a must have at least one positive entry.
// With a = 1 this is the projection onto the probability simplex.
func projectHalfspaceOrthant(v, a []float64) []float64 {
	phi := func(tau float64) float64 {
		s := 0.0
		for i := range v {
			if d := v[i] - tau*a[i]; d > 0 {
				s += a[i] * d
			}
		}
		return s
	}

	lo, hi := -1.0, 1.0
	for i := 0; i < 2000 && phi(lo) < 1; i++ {
		lo *= 2
	}
	for i := 0; i < 2000 && phi(hi) > 1; i++ {
		hi *= 2
	}
	for i := 0; i < 200; i++ {
		mid := lo + (hi-lo)/2
		if mid <= lo || mid >= hi {
			break
		}
		if phi(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}
	tau := lo + (hi-lo)/2

	y := make([]float64, len(v))
	for i := range v {
		y[i] = math.Max(0, v[i]-tau*a[i])
	}
	return y
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
