// Package main is a command-line front end for one-off portfolio analyses
// over a CSV price file or a SQLite price history database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/cryptoptimizer/internal/config"
	"github.com/aristath/cryptoptimizer/internal/database"
	"github.com/aristath/cryptoptimizer/internal/modules/analytics"
	"github.com/aristath/cryptoptimizer/internal/modules/covariance"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
	"github.com/aristath/cryptoptimizer/internal/prices"
	"github.com/aristath/cryptoptimizer/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	csvPath   string
	dbPath    string
	assets    []string
	start     string
	end       string
	model     string
	delta     float64
	objective string
	rf        float64
	ppy       int
	fillGaps  bool
	asJSON    bool
	logLevel  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	defaults := analytics.DefaultSettings()
	opts := &options{}

	root := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize a long-only crypto portfolio",
		Long: `Compute returns statistics, a covariance model and optimal weights
for a selection of assets.

Examples:
  optimize --csv prices.csv --assets BTC-USD,ETH-USD,LTC-USD
  optimize --db history.db --assets BTC-USD,ETH-USD --model shrinkage --delta 0.3 --objective msr
  optimize --csv prices.csv --assets BTC-USD,ETH-USD --start 2024-01-01 --end 2024-07-01 --json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, stdout, stderr)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.csvPath, "csv", "", "wide CSV price file (date column plus one column per asset)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite price history database")
	flags.StringSliceVar(&opts.assets, "assets", nil, "comma-separated asset identifiers")
	flags.StringVar(&opts.start, "start", "", "first date, inclusive (YYYY-MM-DD)")
	flags.StringVar(&opts.end, "end", "", "last date, exclusive (YYYY-MM-DD)")
	flags.StringVar(&opts.model, "model", defaults.Model.String(), "covariance model: sample, constant_correlation, shrinkage")
	flags.Float64Var(&opts.delta, "delta", defaults.Delta, "shrinkage intensity in [0, 1]")
	flags.StringVar(&opts.objective, "objective", defaults.Objective.String(), "objective: gmv, msr, erc")
	flags.Float64Var(&opts.rf, "rf", defaults.RiskFreeRate, "annual risk-free rate")
	flags.IntVar(&opts.ppy, "ppy", defaults.PeriodsPerYear, "periods per year used to annualize")
	flags.BoolVar(&opts.fillGaps, "fill-gaps", false, "forward-fill interior price gaps")
	flags.BoolVar(&opts.asJSON, "json", false, "print the full report as JSON")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newModelsCmd(stdout))
	return root
}

func newModelsCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List covariance models and objectives",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCODE\tNAME")
			for _, m := range covariance.Models() {
				fmt.Fprintf(tw, "model\t%s\t%s\n", m, m.Label())
			}
			for _, o := range optimization.Objectives() {
				fmt.Fprintf(tw, "objective\t%s\t%s\n", o, o.Label())
			}
			return tw.Flush()
		},
	}
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	log := logger.New(logger.Config{Level: opts.logLevel, Pretty: true, Output: stderr})

	settings, err := opts.settings()
	if err != nil {
		return err
	}
	start, err := parseDate("start", opts.start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", opts.end)
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(opts, log)
	if err != nil {
		return err
	}
	defer closeSource()

	optimizer := optimization.NewOptimizer(settings.Solver, log)
	service := analytics.NewService(source, optimizer, config.DefaultUniverse(), nil, log)

	report, err := service.Analyze(ctx, analytics.Request{
		Assets:   opts.assets,
		Start:    start,
		End:      end,
		Settings: settings,
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(stdout, report)
}

func (o *options) settings() (analytics.Settings, error) {
	s := analytics.DefaultSettings()
	model, err := covariance.ParseModel(o.model)
	if err != nil {
		return s, err
	}
	objective, err := optimization.ParseObjective(o.objective)
	if err != nil {
		return s, err
	}
	s.Model = model
	s.Delta = o.delta
	s.Objective = objective
	s.RiskFreeRate = o.rf
	s.PeriodsPerYear = o.ppy
	s.ForwardFill = o.fillGaps
	return s, s.Validate()
}

// openSource returns the configured price source and a func releasing it.
func openSource(opts *options, log zerolog.Logger) (prices.Source, func(), error) {
	switch {
	case opts.dbPath != "" && opts.csvPath != "":
		return nil, nil, fmt.Errorf("use either --csv or --db, not both")
	case opts.dbPath != "":
		db, err := database.New(database.Config{
			Path:    opts.dbPath,
			Profile: database.ProfileReadOnly,
			Name:    "history",
		})
		if err != nil {
			return nil, nil, err
		}
		return prices.NewSQLiteSource(db, log), func() { _ = db.Close() }, nil
	case opts.csvPath != "":
		return prices.NewCSVSource(opts.csvPath, log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("a price source is required (--csv or --db)")
	}
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(prices.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", field, s)
	}
	return t, nil
}

func printReport(w io.Writer, report *analytics.Report) error {
	fmt.Fprintf(w, "Objective:    %s (%s, %d iterations)\n",
		report.Settings.Objective.Label(), report.Solver.Method, report.Solver.Iterations)
	fmt.Fprintf(w, "Covariance:   %s\n", report.Settings.Model.Label())
	fmt.Fprintf(w, "Observations: %d\n\n", report.Observations)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ASSET\tWEIGHT\tPERCENT\tANN. RETURN\tANN. VOL\t")
	for _, dw := range report.DisplayWeights {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\t%.4f\t%.4f\t\n",
			report.DisplayNames[dw.Asset],
			dw.Weight.String(),
			dw.Percent.StringFixed(2),
			report.AnnualizedReturn[dw.Asset],
			report.AnnualizedVolatility[dw.Asset],
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nExpected return: %.4f\nVolatility:      %.4f\nSharpe ratio:    %.4f\n",
		report.Summary.ExpectedReturn, report.Summary.Volatility, report.Summary.Sharpe)
	return nil
}
