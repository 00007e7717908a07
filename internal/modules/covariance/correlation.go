package covariance

import (
	"math"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

// ToCorrelation converts a covariance matrix into a correlation matrix:
// Corr[i,j] = Cov[i,j] / (std[i] * std[j]). A zero-variance asset gets 1 on
// its diagonal and 0 everywhere else in its row and column.
func ToCorrelation(cov domain.CovarianceMatrix) (domain.CorrelationMatrix, error) {
	corr, err := formulas.CorrelationMatrixFromCovariance(cov.Values)
	if err != nil {
		return domain.CorrelationMatrix{}, domain.NumericalError("covariance.ToCorrelation", domain.ErrNotPSD, "%v", err)
	}
	return domain.CorrelationMatrix{Assets: append([]string(nil), cov.Assets...), Values: corr}, nil
}

// StdDevs returns sqrt of the covariance diagonal.
func StdDevs(cov domain.CovarianceMatrix) []float64 {
	std := make([]float64, cov.Size())
	for i := range std {
		std[i] = math.Sqrt(math.Max(cov.Values[i][i], 0))
	}
	return std
}

// FromCorrelation rebuilds a covariance matrix from correlations and
// standard deviations.
func FromCorrelation(corr domain.CorrelationMatrix, std []float64) (domain.CovarianceMatrix, error) {
	vals, err := formulas.CovarianceFromCorrelation(corr.Values, std)
	if err != nil {
		return domain.CovarianceMatrix{}, domain.DataError("covariance.FromCorrelation", domain.ErrDimensionMismatch, "%v", err)
	}
	return domain.CovarianceMatrix{Assets: append([]string(nil), corr.Assets...), Values: vals}, nil
}
