package covariance

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

// psdTolerance is the relative tolerance on the smallest eigenvalue.
const psdTolerance = 1e-10

// Options configures Estimate.
type Options struct {
	Model Model
	// Delta is the shrinkage intensity for ModelShrinkage, within [0, 1].
	Delta float64
}

// Estimate produces an N x N covariance matrix from a returns matrix under
// the selected model. The result is symmetric with a non-negative diagonal
// and is checked for positive semi-definiteness.
func Estimate(returns domain.ReturnsMatrix, opts Options) (domain.CovarianceMatrix, error) {
	const op = "covariance.Estimate"

	var (
		cov domain.CovarianceMatrix
		err error
	)
	switch opts.Model {
	case ModelSample:
		cov, err = Sample(returns)
	case ModelConstantCorrelation:
		cov, err = ConstantCorrelation(returns)
	case ModelShrinkage:
		cov, err = Shrinkage(returns, opts.Delta)
	default:
		return domain.CovarianceMatrix{}, domain.ConfigurationError(op, domain.ErrInvalidSetting, "unknown covariance model %d", int(opts.Model))
	}
	if err != nil {
		return domain.CovarianceMatrix{}, err
	}

	if err := CheckPSD(cov); err != nil {
		return domain.CovarianceMatrix{}, err
	}
	return cov, nil
}

// Sample computes the unbiased sample covariance (X - mean)'(X - mean) / (T - 1).
func Sample(returns domain.ReturnsMatrix) (domain.CovarianceMatrix, error) {
	if err := checkReturns("covariance.Sample", returns); err != nil {
		return domain.CovarianceMatrix{}, err
	}

	n := returns.Cols()
	sym := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(sym, returns.Dense(), nil)

	cov := domain.NewSquareMatrix(returns.Assets)
	for i := 0; i < n; i++ {
		// Constant columns can leave a round-off residue; variances never go negative.
		cov.Values[i][i] = math.Max(sym.At(i, i), 0)
		for j := i + 1; j < n; j++ {
			v := sym.At(i, j)
			cov.Values[i][j] = v
			cov.Values[j][i] = v
		}
	}
	return cov, nil
}

// ConstantCorrelation keeps each asset's sample variance and sets every
// pairwise correlation to the average sample correlation:
// Cov[i,j] = avgCorr * std[i] * std[j]. Correlation with a zero-variance
// asset counts as 0 in the average.
func ConstantCorrelation(returns domain.ReturnsMatrix) (domain.CovarianceMatrix, error) {
	sample, err := Sample(returns)
	if err != nil {
		return domain.CovarianceMatrix{}, err
	}
	return constantCorrelationFrom(sample), nil
}

// AverageCorrelation returns the mean pairwise correlation implied by a
// covariance matrix.
func AverageCorrelation(cov domain.CovarianceMatrix) float64 {
	corr, err := formulas.CorrelationMatrixFromCovariance(cov.Values)
	if err != nil {
		return 0
	}
	return formulas.AverageOffDiagonal(corr)
}

func constantCorrelationFrom(sample domain.CovarianceMatrix) domain.CovarianceMatrix {
	n := sample.Size()
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		std[i] = math.Sqrt(sample.Values[i][i])
	}
	rhoBar := AverageCorrelation(sample)

	cov := domain.NewSquareMatrix(sample.Assets)
	for i := 0; i < n; i++ {
		cov.Values[i][i] = sample.Values[i][i]
		for j := i + 1; j < n; j++ {
			v := rhoBar * std[i] * std[j]
			cov.Values[i][j] = v
			cov.Values[j][i] = v
		}
	}
	return cov
}

// Shrinkage computes delta * constant-correlation + (1 - delta) * sample.
// delta outside [0, 1] is a configuration error.
func Shrinkage(returns domain.ReturnsMatrix, delta float64) (domain.CovarianceMatrix, error) {
	if err := ValidateDelta(delta); err != nil {
		return domain.CovarianceMatrix{}, err
	}
	sample, err := Sample(returns)
	if err != nil {
		return domain.CovarianceMatrix{}, err
	}
	prior := constantCorrelationFrom(sample)

	n := sample.Size()
	cov := domain.NewSquareMatrix(sample.Assets)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cov.Values[i][j] = delta*prior.Values[i][j] + (1-delta)*sample.Values[i][j]
		}
	}
	return cov, nil
}

// ValidateDelta checks that a shrinkage intensity is within [0, 1].
func ValidateDelta(delta float64) error {
	if math.IsNaN(delta) || delta < 0 || delta > 1 {
		return domain.ConfigurationError("covariance.Shrinkage", domain.ErrInvalidDelta, "got %v", delta)
	}
	return nil
}

// CheckPSD returns a numerical error when the matrix is not symmetric
// positive semi-definite within tolerance.
func CheckPSD(cov domain.CovarianceMatrix) error {
	const op = "covariance.CheckPSD"

	n := cov.Size()
	if n == 0 {
		return domain.NumericalError(op, domain.ErrDimensionMismatch, "empty covariance matrix")
	}
	for i := 0; i < n; i++ {
		if len(cov.Values[i]) != n {
			return domain.NumericalError(op, domain.ErrDimensionMismatch, "row %d has %d entries, expected %d", i, len(cov.Values[i]), n)
		}
		for j := 0; j < n; j++ {
			v := cov.Values[i][j]
			if !formulas.IsFinite(v) {
				return domain.NumericalError(op, domain.ErrNonFinite, "entry (%d,%d) is %v", i, j, v)
			}
			scale := math.Max(1, math.Max(math.Abs(v), math.Abs(cov.Values[j][i])))
			if math.Abs(v-cov.Values[j][i]) > psdTolerance*scale {
				return domain.NumericalError(op, domain.ErrNotPSD, "matrix is not symmetric at (%d,%d)", i, j)
			}
		}
		if cov.Values[i][i] < 0 {
			return domain.NumericalError(op, domain.ErrNotPSD, "negative variance %v for %s", cov.Values[i][i], cov.Assets[i])
		}
	}

	minEig, maxEig, ok := formulas.EigenRange(cov.Sym())
	if !ok {
		return domain.NumericalError(op, domain.ErrNotPSD, "eigendecomposition failed")
	}
	if minEig < -psdTolerance*math.Max(1, math.Abs(maxEig)) {
		return domain.NumericalError(op, domain.ErrNotPSD, "smallest eigenvalue %g", minEig)
	}
	return nil
}

func checkReturns(op string, returns domain.ReturnsMatrix) error {
	n := returns.Cols()
	if n == 0 {
		return domain.DataError(op, domain.ErrEmptySeries, "returns matrix has no assets")
	}
	if returns.Rows() < 2 {
		return domain.DataError(op, domain.ErrInsufficientData, "need at least 2 observations, got %d", returns.Rows())
	}
	for t, row := range returns.Values {
		if len(row) != n {
			return domain.DataError(op, domain.ErrDimensionMismatch, "row %d has %d entries, expected %d", t, len(row), n)
		}
		for i, v := range row {
			if !formulas.IsFinite(v) {
				return domain.DataError(op, domain.ErrNonFinite, "return for %s at row %d is %v", returns.Assets[i], t, v)
			}
		}
	}
	return nil
}
