package riskcore

import (
	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/execution"
	"github.com/quantfall/riskcore/risk"
)

// Option is a functional option for configuring a Runtime instance
type Option func(*Runtime)

// WithLogger sets the runtime logger. Components built by the runtime
// inherit it. Defaults to a no-op logger.
func WithLogger(log core.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithInitialEquity sets the starting account equity.
func WithInitialEquity(equity float64) Option {
	return func(r *Runtime) {
		r.initialEquity = equity
	}
}

// WithAccountRiskFraction sets the equity fraction risked per trade.
func WithAccountRiskFraction(fraction float64) Option {
	return func(r *Runtime) {
		r.riskFraction = fraction
	}
}

// WithEquityCap limits position notional to the given fraction of current
// equity at entry.
func WithEquityCap(pct float64) Option {
	return func(r *Runtime) {
		r.equityCapPct = pct
	}
}

// WithATRPeriod sets the averaging window of the volatility indicator.
func WithATRPeriod(period int) Option {
	return func(r *Runtime) {
		r.atrPeriod = period
	}
}

// WithStopMultiplier sets the initial stop distance in ATR multiples.
func WithStopMultiplier(multiplier float64) Option {
	return func(r *Runtime) {
		r.stopMultiplier = multiplier
	}
}

// WithTrailing replaces the default trailing stop configuration.
func WithTrailing(cfg risk.TrailingConfig) Option {
	return func(r *Runtime) {
		r.trailingCfg = cfg
	}
}

// WithExecutionEngine sets the fill simulator. Defaults to a frictionless
// engine that fills every order at the market price.
func WithExecutionEngine(engine *execution.Engine) Option {
	return func(r *Runtime) {
		r.engine = engine
	}
}

// WithKillSwitch installs a circuit breaker. Defaults to a kill switch with
// no triggers, which never halts trading.
func WithKillSwitch(killSwitch *risk.KillSwitch) Option {
	return func(r *Runtime) {
		r.killSwitch = killSwitch
	}
}

// WithStorage persists completed trades, by default trades are not persisted
func WithStorage(storage core.TradeStorage) Option {
	return func(r *Runtime) {
		r.storage = storage
	}
}

// WithMetrics subscribes a metrics sink to trade and equity events.
func WithMetrics(metrics core.MetricsSink) Option {
	return func(r *Runtime) {
		r.metrics = metrics
	}
}

// WithPartialExits installs scale-out levels. Levels are sorted by
// R-multiple and fire in order, at most one per bar.
func WithPartialExits(levels ...PartialLevel) Option {
	return func(r *Runtime) {
		r.partialLevels = levels
	}
}

// WithBadBarPolicy chooses how invalid bars are handled: skip logs and drops
// the bar, abort stops the run with the validation error.
func WithBadBarPolicy(policy string) Option {
	return func(r *Runtime) {
		r.badBarPolicy = policy
	}
}
