package analytics

import (
	"math"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/internal/modules/covariance"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
)

// Defaults used when no configuration is supplied.
const (
	DefaultDelta          = 0.5
	DefaultRiskFreeRate   = 0.03
	DefaultPeriodsPerYear = 365
)

// Settings selects the estimator, the objective and their parameters for
// one analysis.
type Settings struct {
	Model covariance.Model `json:"model"`
	// Delta is the shrinkage intensity, read only by the shrinkage model.
	Delta          float64                `json:"delta"`
	Objective      optimization.Objective `json:"objective"`
	RiskFreeRate   float64                `json:"risk_free_rate"`
	PeriodsPerYear int                    `json:"periods_per_year"`
	// ForwardFill fills interior price gaps with the last valid price
	// instead of rejecting them.
	ForwardFill bool                  `json:"forward_fill"`
	Solver      optimization.Settings `json:"-"`
}

// DefaultSettings returns sample covariance, minimum variance and daily
// crypto annualization.
func DefaultSettings() Settings {
	return Settings{
		Model:          covariance.ModelSample,
		Delta:          DefaultDelta,
		Objective:      optimization.ObjectiveMinVariance,
		RiskFreeRate:   DefaultRiskFreeRate,
		PeriodsPerYear: DefaultPeriodsPerYear,
		Solver:         optimization.DefaultSettings(),
	}
}

// Validate reports the first invalid setting as a configuration error.
func (s Settings) Validate() error {
	const op = "analytics.Settings"

	if !s.Model.Valid() {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "unknown covariance model %d", int(s.Model))
	}
	if s.Model == covariance.ModelShrinkage {
		if err := covariance.ValidateDelta(s.Delta); err != nil {
			return err
		}
	}
	if !s.Objective.Valid() {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "unknown objective %d", int(s.Objective))
	}
	if s.PeriodsPerYear <= 0 {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "periods per year must be positive, got %d", s.PeriodsPerYear)
	}
	if math.IsNaN(s.RiskFreeRate) || math.IsInf(s.RiskFreeRate, 0) {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "risk-free rate must be finite")
	}
	return s.Solver.Validate()
}

// Overrides are optional per-request changes to Settings.
type Overrides struct {
	Model          *covariance.Model       `json:"model,omitempty"`
	Delta          *float64                `json:"delta,omitempty"`
	Objective      *optimization.Objective `json:"objective,omitempty"`
	RiskFreeRate   *float64                `json:"risk_free_rate,omitempty"`
	PeriodsPerYear *int                    `json:"periods_per_year,omitempty"`
	ForwardFill    *bool                   `json:"forward_fill,omitempty"`
}

// Apply returns s with every set override applied.
func (s Settings) Apply(o Overrides) Settings {
	if o.Model != nil {
		s.Model = *o.Model
	}
	if o.Delta != nil {
		s.Delta = *o.Delta
	}
	if o.Objective != nil {
		s.Objective = *o.Objective
	}
	if o.RiskFreeRate != nil {
		s.RiskFreeRate = *o.RiskFreeRate
	}
	if o.PeriodsPerYear != nil {
		s.PeriodsPerYear = *o.PeriodsPerYear
	}
	if o.ForwardFill != nil {
		s.ForwardFill = *o.ForwardFill
	}
	return s
}

// Option is one selectable value of a tagged enumeration.
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// CovarianceModels lists the covariance estimators.
func CovarianceModels() []Option {
	models := covariance.Models()
	out := make([]Option, len(models))
	for i, m := range models {
		out[i] = Option{Code: m.String(), Label: m.Label()}
	}
	return out
}

// Objectives lists the portfolio objectives.
func Objectives() []Option {
	objectives := optimization.Objectives()
	out := make([]Option, len(objectives))
	for i, o := range objectives {
		out[i] = Option{Code: o.String(), Label: o.Label()}
	}
	return out
}
