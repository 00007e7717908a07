package optimization

import (
	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

// Summary describes a weighted portfolio under a covariance matrix.
type Summary struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	// Sharpe is 0 when the portfolio has no volatility.
	Sharpe float64 `json:"sharpe"`
	// RiskContributions maps each asset to its share of portfolio variance.
	RiskContributions map[string]float64 `json:"risk_contributions"`
}

// Summarize computes expected return, volatility, Sharpe ratio against rf
// and risk contribution shares for w. Expected returns must cover every
// weighted asset.
func Summarize(w domain.WeightVector, cov domain.CovarianceMatrix, mu domain.AssetVector, rf float64) (Summary, error) {
	const op = "optimization.Summarize"

	sigma, err := checkCovariance(op, cov)
	if err != nil {
		return Summary{}, err
	}
	if len(w.Assets) != cov.Size() || len(w.Weights) != cov.Size() {
		return Summary{}, domain.NumericalError(op, domain.ErrDimensionMismatch,
			"%d weights for a %d x %d covariance", len(w.Weights), cov.Size(), cov.Size())
	}

	weights := make([]float64, cov.Size())
	for i, asset := range cov.Assets {
		v, ok := w.Get(asset)
		if !ok {
			return Summary{}, domain.NumericalError(op, domain.ErrDimensionMismatch, "no weight for %s", asset)
		}
		weights[i] = v
	}
	expected, err := alignReturns(op, cov.Assets, mu)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		ExpectedReturn:    formulas.PortfolioReturn(weights, expected),
		Volatility:        formulas.PortfolioVolatility(weights, sigma),
		RiskContributions: make(map[string]float64, cov.Size()),
	}
	if s.Volatility > 0 {
		s.Sharpe = (s.ExpectedReturn - rf) / s.Volatility
	}
	for i, share := range formulas.RiskContributions(weights, sigma) {
		s.RiskContributions[cov.Assets[i]] = share
	}
	return s, nil
}
