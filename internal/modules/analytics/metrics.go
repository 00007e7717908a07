package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// Metrics holds the analysis collectors. A nil *Metrics records nothing.
type Metrics struct {
	Analyses         *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	Duration         *prometheus.HistogramVec
	SolverIterations *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoptimizer_analyses_total",
				Help: "Total number of portfolio analyses by objective, model and outcome",
			},
			[]string{"objective", "model", "outcome"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoptimizer_analysis_errors_total",
				Help: "Total number of failed analyses by error kind",
			},
			[]string{"kind"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptoptimizer_analysis_duration_seconds",
				Help:    "Duration of a full analysis in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"objective"},
		),
		SolverIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptoptimizer_solver_iterations",
				Help:    "Iterations used by the portfolio solver",
				Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"objective", "method"},
		),
	}
	reg.MustRegister(m.Analyses, m.Errors, m.Duration, m.SolverIterations)
	return m
}

func (m *Metrics) observe(s Settings, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.Errors.WithLabelValues(errorKindLabel(err)).Inc()
	}
	m.Analyses.WithLabelValues(s.Objective.String(), s.Model.String(), outcome).Inc()
	m.Duration.WithLabelValues(s.Objective.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) observeSolver(s Settings, method string, iterations int) {
	if m == nil {
		return
	}
	m.SolverIterations.WithLabelValues(s.Objective.String(), method).Observe(float64(iterations))
}

func errorKindLabel(err error) string {
	if kind := domain.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "internal"
}
