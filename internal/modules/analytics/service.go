// Package analytics is the entry point of the portfolio analytics core. It
// turns an asset selection, a date range and a price table into returns
// statistics, covariance and correlation matrices and optimal weights.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/internal/modules/covariance"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
	"github.com/aristath/cryptoptimizer/internal/modules/returns"
	"github.com/aristath/cryptoptimizer/internal/prices"
)

// MinAssets is the smallest selection that can be optimized.
const MinAssets = 2

// Request is one analysis.
type Request struct {
	Assets []string
	// Start is inclusive and End exclusive. Zero values leave that side open.
	Start    time.Time
	End      time.Time
	Settings Settings
	// Prices, when set, is used instead of the service's source.
	Prices *domain.PriceTable
}

// SolverInfo describes how the weights were found.
type SolverInfo struct {
	Method     string `json:"method"`
	Iterations int    `json:"iterations"`
}

// Report is everything the presentation layer consumes, as plain mappings.
type Report struct {
	ID           string            `json:"id"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Assets       []string          `json:"assets"`
	DisplayNames map[string]string `json:"display_names"`
	Start        string            `json:"start,omitempty"`
	End          string            `json:"end,omitempty"`
	Settings     Settings          `json:"settings"`
	Observations int               `json:"observations"`
	FilledPrices int               `json:"filled_prices"`

	CumulativeReturns    map[string]map[string]float64 `json:"cumulative_returns"`
	AnnualizedReturn     map[string]float64            `json:"annualized_return"`
	AnnualizedVolatility map[string]float64            `json:"annualized_volatility"`
	Covariance           map[string]map[string]float64 `json:"covariance"`
	Correlation          map[string]map[string]float64 `json:"correlation"`

	Weights        map[string]float64           `json:"weights"`
	DisplayWeights []optimization.DisplayWeight `json:"display_weights"`
	Summary        optimization.Summary         `json:"summary"`
	Solver         SolverInfo                   `json:"solver"`
}

// Service runs analyses. It keeps no state between requests.
type Service struct {
	source    prices.Source
	optimizer *optimization.Optimizer
	universe  domain.Universe
	metrics   *Metrics
	log       zerolog.Logger
}

// NewService creates an analytics service. source may be nil when every
// request carries its own price table; metrics may be nil.
func NewService(
	source prices.Source,
	optimizer *optimization.Optimizer,
	universe domain.Universe,
	metrics *Metrics,
	log zerolog.Logger,
) *Service {
	return &Service{
		source:    source,
		optimizer: optimizer,
		universe:  universe,
		metrics:   metrics,
		log:       log.With().Str("component", "analytics").Logger(),
	}
}

// Universe returns the configured selectable assets.
func (s *Service) Universe() domain.Universe {
	return s.universe
}

// Analyze validates the request, loads prices and runs the full pipeline.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	report, err := s.analyze(ctx, req)
	elapsed := time.Since(start)

	s.metrics.observe(req.Settings, elapsed, err)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("kind", errorKindLabel(err)).
			Strs("assets", req.Assets).
			Msg("Analysis failed")
		return nil, err
	}

	s.metrics.observeSolver(req.Settings, report.Solver.Method, report.Solver.Iterations)
	s.log.Info().
		Str("report_id", report.ID).
		Strs("assets", report.Assets).
		Str("model", req.Settings.Model.String()).
		Str("objective", req.Settings.Objective.String()).
		Int("observations", report.Observations).
		Dur("duration", elapsed).
		Msg("Analysis completed")
	return report, nil
}

func (s *Service) analyze(ctx context.Context, req Request) (*Report, error) {
	const op = "analytics.Analyze"

	if err := validateRequest(op, req); err != nil {
		return nil, err
	}
	settings := req.Settings

	table, err := s.loadPrices(ctx, req)
	if err != nil {
		return nil, err
	}
	filled := 0
	if settings.ForwardFill {
		table, filled = prices.ForwardFill(table)
		if filled > 0 {
			s.log.Debug().Int("filled_prices", filled).Msg("Filled interior price gaps")
		}
	}
	if err := prices.Validate(table, req.Assets); err != nil {
		return nil, err
	}
	series, err := prices.SeriesOf(table, req.Assets)
	if err != nil {
		return nil, err
	}

	periodic, err := returns.Periodic(series...)
	if err != nil {
		return nil, err
	}
	cumulative := returns.Compound(periodic)
	annReturn, err := returns.AnnualizedReturn(periodic, settings.PeriodsPerYear)
	if err != nil {
		return nil, err
	}
	annVol, err := returns.AnnualizedVolatility(periodic, settings.PeriodsPerYear)
	if err != nil {
		return nil, err
	}

	periodicCov, err := covariance.Estimate(periodic, covariance.Options{Model: settings.Model, Delta: settings.Delta})
	if err != nil {
		return nil, err
	}
	cov := periodicCov.Scale(float64(settings.PeriodsPerYear))
	corr, err := covariance.ToCorrelation(cov)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.optimizer.OptimizeWith(optimization.Problem{
		Objective:       settings.Objective,
		Covariance:      cov,
		ExpectedReturns: annReturn,
		RiskFreeRate:    settings.RiskFreeRate,
	}, settings.Solver)
	if err != nil {
		return nil, err
	}
	summary, err := optimization.Summarize(result.Weights, cov, annReturn, settings.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(req.Assets))
	for _, a := range req.Assets {
		names[a] = s.universe.DisplayName(a)
	}

	report := &Report{
		ID:                   uuid.New().String(),
		GeneratedAt:          time.Now().UTC(),
		Assets:               append([]string(nil), req.Assets...),
		DisplayNames:         names,
		Settings:             settings,
		Observations:         periodic.Rows(),
		FilledPrices:         filled,
		CumulativeReturns:    cumulative.ByTime(),
		AnnualizedReturn:     annReturn.Map(),
		AnnualizedVolatility: annVol.Map(),
		Covariance:           cov.Map(),
		Correlation:          corr.Map(),
		Weights:              result.Weights.Map(),
		DisplayWeights:       optimization.DisplayWeights(result.Weights),
		Summary:              summary,
		Solver:               SolverInfo{Method: result.Method, Iterations: result.Iterations},
	}
	if !req.Start.IsZero() {
		report.Start = req.Start.Format(prices.DateLayout)
	}
	if !req.End.IsZero() {
		report.End = req.End.Format(prices.DateLayout)
	}
	return report, nil
}

func validateRequest(op string, req Request) error {
	if len(req.Assets) < MinAssets {
		return domain.ConfigurationError(op, domain.ErrTooFewAssets, "selected %d assets", len(req.Assets))
	}
	seen := make(map[string]bool, len(req.Assets))
	for _, a := range req.Assets {
		if a == "" {
			return domain.ConfigurationError(op, domain.ErrInvalidSetting, "empty asset identifier")
		}
		if seen[a] {
			return domain.ConfigurationError(op, domain.ErrDuplicateAsset, "%s selected twice", a)
		}
		seen[a] = true
	}
	if !req.Start.IsZero() && !req.End.IsZero() && !req.Start.Before(req.End) {
		return domain.ConfigurationError(op, domain.ErrInvalidDateRange, "%s is not before %s",
			req.Start.Format(prices.DateLayout), req.End.Format(prices.DateLayout))
	}
	return req.Settings.Validate()
}

// loadPrices returns the request's columns within [Start, End).
func (s *Service) loadPrices(ctx context.Context, req Request) (domain.PriceTable, error) {
	const op = "analytics.loadPrices"

	if req.Prices != nil {
		selected, err := prices.Select(*req.Prices, req.Assets)
		if err != nil {
			return domain.PriceTable{}, err
		}
		return prices.Slice(selected, req.Start, req.End), nil
	}
	if s.source == nil {
		return domain.PriceTable{}, domain.DataError(op, domain.ErrEmptySeries, "no price source configured")
	}
	table, err := s.source.Load(ctx, req.Assets, req.Start, req.End)
	if err != nil {
		return domain.PriceTable{}, err
	}
	return prices.Select(table, req.Assets)
}
