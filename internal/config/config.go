// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/internal/modules/analytics"
	"github.com/aristath/cryptoptimizer/internal/modules/covariance"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
)

// Config holds application configuration
type Config struct {
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool

	// Analysis defaults, overridable per request
	CovarianceModel string
	ShrinkageDelta  float64
	Objective       string
	RiskFreeRate    float64
	PeriodsPerYear  int
	MaxIterations   int
	Tolerance       float64
	ForwardFill     bool

	UniverseFile string // optional YAML asset list
	PriceDBPath  string // optional SQLite history database
	PriceCSVPath string // optional wide CSV price file
	Universe     domain.Universe

	// parseErrors holds variables that were set but did not parse
	parseErrors []error
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       env.getEnvAsBool("LOG_PRETTY", true),
		Port:            env.getEnvAsInt("PORT", 8001),
		DevMode:         env.getEnvAsBool("DEV_MODE", false),
		CovarianceModel: getEnv("COVARIANCE_MODEL", covariance.ModelSample.String()),
		ShrinkageDelta:  env.getEnvAsFloat("SHRINKAGE_DELTA", analytics.DefaultDelta),
		Objective:       getEnv("OBJECTIVE", optimization.ObjectiveMinVariance.String()),
		RiskFreeRate:    env.getEnvAsFloat("RISK_FREE_RATE", analytics.DefaultRiskFreeRate),
		PeriodsPerYear:  env.getEnvAsInt("PERIODS_PER_YEAR", analytics.DefaultPeriodsPerYear),
		MaxIterations:   env.getEnvAsInt("MAX_ITERATIONS", optimization.DefaultMaxIterations),
		Tolerance:       env.getEnvAsFloat("TOLERANCE", optimization.DefaultTolerance),
		ForwardFill:     env.getEnvAsBool("FORWARD_FILL", false),
		UniverseFile:    getEnv("UNIVERSE_FILE", ""),
		PriceDBPath:     getEnv("PRICE_DB_PATH", ""),
		PriceCSVPath:    getEnv("PRICE_CSV_PATH", ""),
		Universe:        DefaultUniverse(),
	}
	cfg.parseErrors = env.errs

	if cfg.UniverseFile != "" {
		universe, err := LoadUniverse(cfg.UniverseFile)
		if err != nil {
			return nil, err
		}
		cfg.Universe = universe
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every analysis default is usable
func (c *Config) Validate() error {
	if len(c.parseErrors) > 0 {
		return errors.Join(c.parseErrors...)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if len(c.Universe) < analytics.MinAssets {
		return fmt.Errorf("asset universe needs at least %d assets, has %d", analytics.MinAssets, len(c.Universe))
	}
	settings, err := c.Defaults()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid analysis defaults: %w", err)
	}
	return nil
}

// Defaults returns the analysis settings used when a request leaves a
// field out.
func (c *Config) Defaults() (analytics.Settings, error) {
	model, err := covariance.ParseModel(c.CovarianceModel)
	if err != nil {
		return analytics.Settings{}, fmt.Errorf("invalid COVARIANCE_MODEL: %w", err)
	}
	objective, err := optimization.ParseObjective(c.Objective)
	if err != nil {
		return analytics.Settings{}, fmt.Errorf("invalid OBJECTIVE: %w", err)
	}
	return analytics.Settings{
		Model:          model,
		Delta:          c.ShrinkageDelta,
		Objective:      objective,
		RiskFreeRate:   c.RiskFreeRate,
		PeriodsPerYear: c.PeriodsPerYear,
		ForwardFill:    c.ForwardFill,
		Solver: optimization.Settings{
			MaxIterations: c.MaxIterations,
			Tolerance:     c.Tolerance,
		},
	}, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables. A variable that is set but does not
// parse is recorded instead of being replaced by its default.
type envReader struct {
	errs []error
}

func (e *envReader) invalid(key, value, want string) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: expected %s", key, value, want))
}

func (e *envReader) getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			e.invalid(key, value, "an integer")
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func (e *envReader) getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			e.invalid(key, value, "a finite number")
			return defaultValue
		}
		return floatVal
	}
	return defaultValue
}

func (e *envReader) getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			e.invalid(key, value, "true or false")
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}
