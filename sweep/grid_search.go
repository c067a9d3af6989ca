// Package sweep runs parameter grid searches. Every grid point is evaluated
// by an isolated backtest run; nothing is shared between evaluations except
// the read-only bar data.
package sweep

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/quantfall/riskcore/core"
)

// Config holds configuration for a grid search.
type Config struct {
	Parameters   []core.Parameter
	Parallelism  int
	TargetMetric core.MetricName
	Maximize     bool
	TopN         int
	ShowProgress bool
	Logger       core.Logger
}

// NewConfig creates a default configuration.
func NewConfig() *Config {
	return &Config{
		Parallelism:  1,
		TargetMetric: core.MetricProfit,
		Maximize:     true,
		TopN:         5,
	}
}

// WithParameters adds parameters to the configuration.
func (c *Config) WithParameters(params ...core.Parameter) *Config {
	c.Parameters = append(c.Parameters, params...)
	return c
}

// WithParallelism sets the number of parallel evaluations.
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// WithTargetMetric sets the metric results are ranked by.
func (c *Config) WithTargetMetric(metric core.MetricName, maximize bool) *Config {
	c.TargetMetric = metric
	c.Maximize = maximize
	return c
}

// WithTopN sets the number of top results to return.
func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

// WithProgress enables the terminal progress bar.
func (c *Config) WithProgress() *Config {
	c.ShowProgress = true
	return c
}

// WithLogger sets the logger.
func (c *Config) WithLogger(log core.Logger) *Config {
	c.Logger = log
	return c
}

// GridSearch exhaustively evaluates the cartesian product of all parameter
// ranges.
type GridSearch struct {
	parameters   []core.Parameter
	parallelism  int
	targetMetric core.MetricName
	maximize     bool
	topN         int
	showProgress bool
	log          core.Logger
}

// NewGridSearch creates a grid search from the configuration.
func NewGridSearch(config *Config) (*GridSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(config.Parameters) == 0 {
		return nil, fmt.Errorf("at least one parameter must be provided")
	}

	parallelism := config.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	log := config.Logger
	if log == nil {
		log = core.NewNopLogger()
	}

	for _, param := range config.Parameters {
		if err := validateParameter(param); err != nil {
			return nil, err
		}
	}

	return &GridSearch{
		parameters:   config.Parameters,
		parallelism:  parallelism,
		targetMetric: config.TargetMetric,
		maximize:     config.Maximize,
		topN:         config.TopN,
		showProgress: config.ShowProgress,
		log:          log,
	}, nil
}

func validateParameter(param core.Parameter) error {
	switch param.Type {
	case core.TypeInt:
		if _, ok := param.Min.(int); !ok {
			return fmt.Errorf("parameter %s: min must be an int", param.Name)
		}
		if _, ok := param.Max.(int); !ok {
			return fmt.Errorf("parameter %s: max must be an int", param.Name)
		}
		step, ok := param.Step.(int)
		if !ok || step <= 0 {
			return fmt.Errorf("parameter %s: step must be a positive int", param.Name)
		}
	case core.TypeFloat:
		if _, ok := param.Min.(float64); !ok {
			return fmt.Errorf("parameter %s: min must be a float", param.Name)
		}
		if _, ok := param.Max.(float64); !ok {
			return fmt.Errorf("parameter %s: max must be a float", param.Name)
		}
		step, ok := param.Step.(float64)
		if !ok || step <= 0 {
			return fmt.Errorf("parameter %s: step must be a positive float", param.Name)
		}
	case core.TypeBool:
	case core.TypeCategorical:
		if len(param.Options) == 0 {
			return fmt.Errorf("parameter %s: categorical parameters need options", param.Name)
		}
	default:
		return fmt.Errorf("parameter %s: unsupported type %s", param.Name, param.Type)
	}
	return nil
}

// Grid expands the parameter definitions into every combination.
func (g *GridSearch) Grid() []core.ParameterSet {
	sets := []core.ParameterSet{{}}

	for _, param := range g.parameters {
		values := parameterValues(param)

		expanded := make([]core.ParameterSet, 0, len(sets)*len(values))
		for _, set := range sets {
			for _, value := range values {
				next := make(core.ParameterSet, len(set)+1)
				for k, v := range set {
					next[k] = v
				}
				next[param.Name] = value
				expanded = append(expanded, next)
			}
		}
		sets = expanded
	}

	return sets
}

func parameterValues(param core.Parameter) []any {
	switch param.Type {
	case core.TypeInt:
		min, max, step := param.Min.(int), param.Max.(int), param.Step.(int)
		values := make([]any, 0)
		for v := min; v <= max; v += step {
			values = append(values, v)
		}
		return values
	case core.TypeFloat:
		min, max, step := param.Min.(float64), param.Max.(float64), param.Step.(float64)
		values := make([]any, 0)
		// Tolerance keeps accumulated float error from dropping the endpoint.
		for v := min; v <= max+step/1e6; v += step {
			values = append(values, v)
		}
		return values
	case core.TypeBool:
		return []any{false, true}
	case core.TypeCategorical:
		return param.Options
	default:
		return []any{param.Default}
	}
}

// Run evaluates every grid point and returns results ranked by the target
// metric, best first, limited to TopN when set.
func (g *GridSearch) Run(ctx context.Context, evaluator core.Evaluator) ([]*core.SweepResult, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	grid := g.Grid()
	g.log.Infof("starting grid search over %d combinations", len(grid))

	var bar *progressbar.ProgressBar
	if g.showProgress {
		bar = progressbar.Default(int64(len(grid)), "sweep")
	}

	var (
		results   []*core.SweepResult
		mutex     sync.Mutex
		wg        sync.WaitGroup
		errCh     = make(chan error, 1)
		semaphore = make(chan struct{}, g.parallelism)
	)

	// on cancellation or evaluator failure dispatching stops, but the
	// results slice is only touched again after every in-flight worker
	// has finished
	var runErr error
dispatch:
	for _, params := range grid {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case err := <-errCh:
			runErr = err
			break dispatch
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(paramSet core.ParameterSet) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := evaluator.Evaluate(ctx, paramSet)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("evaluation error: %w", err):
				default:
				}
				return
			}

			mutex.Lock()
			results = append(results, result)
			mutex.Unlock()

			if bar != nil {
				bar.Add(1)
			}
		}(params)
	}

	wg.Wait()

	if runErr == nil {
		select {
		case err := <-errCh:
			runErr = err
		default:
		}
	}
	if runErr != nil {
		return results, runErr
	}

	g.sortResults(results)
	if g.topN > 0 && g.topN < len(results) {
		results = results[:g.topN]
	}

	g.log.Infof("grid search completed with %d results", len(results))
	return results, nil
}

func (g *GridSearch) sortResults(results []*core.SweepResult) {
	metric := string(g.targetMetric)
	sort.SliceStable(results, func(i, j int) bool {
		if g.maximize {
			return results[i].Metrics[metric] > results[j].Metrics[metric]
		}
		return results[i].Metrics[metric] < results[j].Metrics[metric]
	})
}
