package riskcore

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfall/riskcore/config"
	"github.com/quantfall/riskcore/core"
)

// BacktestEvaluator runs one full backtest per parameter set, overlaying the
// set onto a base configuration. It satisfies core.Evaluator, so a grid
// search can drive it concurrently; each evaluation builds its own Backtest
// and shares nothing.
type BacktestEvaluator struct {
	base *config.Config
	log  core.Logger
}

// NewBacktestEvaluator builds an evaluator around a validated base config.
// Trade storage is disabled during sweeps; only metrics are collected.
func NewBacktestEvaluator(base *config.Config, log core.Logger) (*BacktestEvaluator, error) {
	if base == nil {
		return nil, core.NewConfigError("config", "must not be nil")
	}
	if log == nil {
		log = core.NewNopLogger()
	}
	return &BacktestEvaluator{base: base, log: log}, nil
}

// Evaluate applies the parameter set and runs the backtest to completion.
func (e *BacktestEvaluator) Evaluate(ctx context.Context, params core.ParameterSet) (*core.SweepResult, error) {
	cfg := *e.base
	cfg.Storage = config.StorageConfig{Driver: config.StorageNone}

	for name, value := range params {
		if err := applyParameter(&cfg, name, value); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bt, err := FromConfig(&cfg, core.NewNopLogger())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := bt.Run(ctx); err != nil {
		return nil, err
	}

	metrics := bt.Metrics()
	result := &core.SweepResult{
		Parameters: params,
		Metrics: map[string]float64{
			string(core.MetricProfit):     metrics.TotalProfit(),
			string(core.MetricWinRate):    metrics.WinRate(),
			string(core.MetricDrawdown):   metrics.MaxDrawdown(),
			string(core.MetricTradeCount): float64(metrics.TradeCount()),
		},
		Duration: time.Since(start),
	}

	if symbols := metrics.Symbols(); len(symbols) == 1 {
		summary := metrics.Summary(symbols[0])
		result.Metrics[string(core.MetricPayoff)] = summary.Payoff()
		result.Metrics[string(core.MetricProfitFactor)] = summary.ProfitFactor()
	}

	return result, nil
}

// applyParameter maps a sweep dimension onto its config field.
func applyParameter(cfg *config.Config, name string, value any) error {
	switch name {
	case "atr_period":
		n, err := asInt(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.ATR.Period = n
	case "stop_multiplier":
		f, err := asFloat(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Stop.ATRMultiplier = f
	case "trailing_multiplier":
		f, err := asFloat(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Trailing.Multiplier = f
	case "trailing_activation_r":
		f, err := asFloat(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Trailing.ActivationRMultiple = f
	case "account_risk_fraction":
		f, err := asFloat(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Sizing.AccountRiskFraction = f
	case "breakout_lookback":
		n, err := asInt(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Strategy.Breakout.LookbackPeriod = n
	case "breakout_multiplier":
		f, err := asFloat(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Strategy.Breakout.Multiplier = f
	case "ema_fast_length":
		n, err := asInt(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Strategy.EMACross.FastLength = n
	case "ema_slow_length":
		n, err := asInt(value)
		if err != nil {
			return paramErr(name, err)
		}
		cfg.Strategy.EMACross.SlowLength = n
	case "strategy":
		s, ok := value.(string)
		if !ok {
			return paramErr(name, fmt.Errorf("expected string, got %T", value))
		}
		cfg.Strategy.Name = s
	default:
		return core.NewConfigError("sweep", "unknown parameter "+name)
	}
	return nil
}

func paramErr(name string, err error) error {
	return core.NewConfigError("sweep", fmt.Sprintf("parameter %s: %v", name, err))
}

func asInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", value)
	}
}

func asFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected float, got %T", value)
	}
}
