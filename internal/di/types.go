package di

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/cryptoptimizer/internal/database"
	"github.com/aristath/cryptoptimizer/internal/modules/analytics"
	analyticshandlers "github.com/aristath/cryptoptimizer/internal/modules/analytics/handlers"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
	"github.com/aristath/cryptoptimizer/internal/prices"
)

// Container holds all application dependencies
type Container struct {
	// Databases; nil when prices come from a CSV file
	HistoryDB *database.DB

	// Price data
	PriceSource prices.Source

	// Services
	Optimizer        *optimization.Optimizer
	Registry         *prometheus.Registry
	Metrics          *analytics.Metrics
	AnalyticsService *analytics.Service
	Defaults         analytics.Settings

	// Handlers
	AnalyticsHandler *analyticshandlers.Handler
}

// Close releases every resource the container opened.
func (c *Container) Close() error {
	if c == nil || c.HistoryDB == nil {
		return nil
	}
	return c.HistoryDB.Close()
}
