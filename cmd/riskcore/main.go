package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantfall/riskcore"
	"github.com/quantfall/riskcore/config"
	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/logger/zerolog"
	"github.com/quantfall/riskcore/sweep"
)

// Command line flags
var (
	configPath string

	// Sweep command flags
	sweepParams  []string
	targetMetric string
	minimize     bool
	topN         int
	parallelism  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "riskcore",
		Short:   "Backtesting engine with ATR stops and kill-switch risk controls",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path (e.g. ./configs/riskcore.yaml)")

	rootCmd.AddCommand(buildBacktestCmd())
	rootCmd.AddCommand(buildSweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildBacktestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest over the configured data feeds",
		RunE:  runBacktest,
	}
}

func buildSweepCmd() *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Grid search over strategy and risk parameters",
		RunE:  runSweep,
	}

	sweepCmd.Flags().StringArrayVarP(&sweepParams, "param", "p", nil,
		"Sweep dimension: name=min:max:step for ranges, name=a,b,c for choices (repeatable)")
	sweepCmd.Flags().StringVarP(&targetMetric, "metric", "m", string(core.MetricProfit), "Metric to rank results by")
	sweepCmd.Flags().BoolVar(&minimize, "minimize", false, "Rank ascending instead of descending")
	sweepCmd.Flags().IntVarP(&topN, "top", "n", 10, "Number of results to report")
	sweepCmd.Flags().IntVarP(&parallelism, "parallelism", "j", 4, "Concurrent evaluations")

	sweepCmd.MarkFlagRequired("param")

	return sweepCmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	bt, err := riskcore.FromConfig(cfg, log)
	if err != nil {
		return err
	}

	if err := bt.Run(cmd.Context()); err != nil {
		return err
	}

	return bt.WriteSummary(os.Stdout)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	parameters := make([]core.Parameter, 0, len(sweepParams))
	for _, spec := range sweepParams {
		param, err := parseParameter(spec)
		if err != nil {
			return err
		}
		parameters = append(parameters, param)
	}

	search, err := sweep.NewGridSearch(sweep.NewConfig().
		WithParameters(parameters...).
		WithTargetMetric(core.MetricName(targetMetric), !minimize).
		WithTopN(topN).
		WithParallelism(parallelism).
		WithProgress().
		WithLogger(log))
	if err != nil {
		return err
	}

	evaluator, err := riskcore.NewBacktestEvaluator(cfg, log)
	if err != nil {
		return err
	}

	results, err := search.Run(cmd.Context(), evaluator)
	if err != nil {
		return err
	}

	for i, result := range results {
		fmt.Printf("%2d. %s=%.4f  params=%v  (%s)\n",
			i+1, targetMetric, result.Metrics[targetMetric], result.Parameters, result.Duration.Round(0))
	}
	return nil
}

func loadConfig() (*config.Config, core.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	zl, err := zerolog.NewZerolog(cfg.Logging.Level, cfg.Logging.TimeLayout, cfg.Logging.Colored, cfg.Logging.JSON)
	if err != nil {
		return nil, nil, err
	}

	return cfg, zerolog.NewAdapter(zl.Logger), nil
}

// parseParameter turns a flag spec into a sweep dimension. Range specs with
// a decimal point anywhere become float parameters, otherwise int; comma
// lists become categorical choices.
func parseParameter(spec string) (core.Parameter, error) {
	name, value, found := strings.Cut(spec, "=")
	if !found || name == "" || value == "" {
		return core.Parameter{}, fmt.Errorf("invalid parameter spec %q, expected name=min:max:step or name=a,b,c", spec)
	}

	if strings.Contains(value, ",") {
		options := make([]any, 0)
		for _, option := range strings.Split(value, ",") {
			options = append(options, option)
		}
		return core.Parameter{Name: name, Type: core.TypeCategorical, Options: options}, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return core.Parameter{}, fmt.Errorf("invalid range spec %q, expected min:max:step", spec)
	}

	if strings.Contains(value, ".") {
		bounds := make([]float64, 3)
		for i, part := range parts {
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return core.Parameter{}, fmt.Errorf("invalid float in %q: %w", spec, err)
			}
			bounds[i] = f
		}
		return core.Parameter{
			Name: name,
			Type: core.TypeFloat,
			Min:  bounds[0],
			Max:  bounds[1],
			Step: bounds[2],
		}, nil
	}

	bounds := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return core.Parameter{}, fmt.Errorf("invalid int in %q: %w", spec, err)
		}
		bounds[i] = n
	}
	return core.Parameter{
		Name: name,
		Type: core.TypeInt,
		Min:  bounds[0],
		Max:  bounds[1],
		Step: bounds[2],
	}, nil
}
