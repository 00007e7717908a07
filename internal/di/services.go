package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/config"
	"github.com/aristath/cryptoptimizer/internal/modules/analytics"
	analyticshandlers "github.com/aristath/cryptoptimizer/internal/modules/analytics/handlers"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
	"github.com/aristath/cryptoptimizer/internal/prices"
)

// InitializeServices creates the price source, the optimizer, the analytics
// service and its HTTP handler.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	defaults, err := cfg.Defaults()
	if err != nil {
		return err
	}
	container.Defaults = defaults

	switch {
	case container.HistoryDB != nil:
		container.PriceSource = prices.NewSQLiteSource(container.HistoryDB, log)
	case cfg.PriceCSVPath != "":
		container.PriceSource = prices.NewCSVSource(cfg.PriceCSVPath, log)
	default:
		// Every request then has to carry its own prices.
		log.Warn().Msg("No price source configured (set PRICE_DB_PATH or PRICE_CSV_PATH)")
	}

	container.Registry = prometheus.NewRegistry()
	container.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	container.Metrics = analytics.NewMetrics(container.Registry)

	container.Optimizer = optimization.NewOptimizer(defaults.Solver, log)
	container.AnalyticsService = analytics.NewService(
		container.PriceSource,
		container.Optimizer,
		cfg.Universe,
		container.Metrics,
		log,
	)
	container.AnalyticsHandler = analyticshandlers.NewHandler(container.AnalyticsService, defaults, log)

	log.Info().
		Int("universe", len(cfg.Universe)).
		Str("model", defaults.Model.String()).
		Str("objective", defaults.Objective.String()).
		Msg("Services initialized")
	return nil
}
