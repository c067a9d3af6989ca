package riskcore

import (
	"context"
	"io"
	"time"

	"github.com/quantfall/riskcore/config"
	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/execution"
	"github.com/quantfall/riskcore/feed"
	"github.com/quantfall/riskcore/metric"
	"github.com/quantfall/riskcore/risk"
	"github.com/quantfall/riskcore/storage"
	"github.com/quantfall/riskcore/strategy"
)

// Backtest bundles one runtime per configured symbol with a shared feeder,
// trade storage and metrics aggregator.
type Backtest struct {
	feeder   core.Feeder
	runtimes map[string]*Runtime
	symbols  []string
	metrics  *metric.Aggregator
	log      core.Logger
}

// FromConfig assembles a complete backtest from a validated configuration.
// Every component is built through its own constructor, so invalid
// parameters surface here, before any bar is processed.
func FromConfig(cfg *config.Config, log core.Logger) (*Backtest, error) {
	if log == nil {
		log = core.NewNopLogger()
	}

	symbolFeeds := make([]feed.SymbolFeed, 0, len(cfg.Data.Feeds))
	for _, f := range cfg.Data.Feeds {
		symbolFeeds = append(symbolFeeds, feed.SymbolFeed{
			Symbol:    f.Symbol,
			File:      f.File,
			Timeframe: f.Timeframe,
		})
	}
	feeder, err := feed.NewCSVFeed(cfg.Data.Timeframe, symbolFeeds...)
	if err != nil {
		return nil, err
	}

	engine, err := engineFromConfig(cfg.Execution, log)
	if err != nil {
		return nil, err
	}

	store, err := storageFromConfig(cfg.Storage)
	if err != nil {
		return nil, err
	}

	bt := &Backtest{
		feeder:   feeder,
		runtimes: make(map[string]*Runtime),
		metrics:  metric.NewAggregator(),
		log:      log,
	}

	for _, f := range cfg.Data.Feeds {
		str, err := strategyFromConfig(cfg.Strategy)
		if err != nil {
			return nil, err
		}

		killSwitch, err := killSwitchFromConfig(cfg.KillSwitch, log)
		if err != nil {
			return nil, err
		}

		options := []Option{
			WithLogger(log),
			WithInitialEquity(cfg.InitialEquity),
			WithAccountRiskFraction(cfg.Sizing.AccountRiskFraction),
			WithEquityCap(cfg.Sizing.PerSymbolEquityCapPct),
			WithATRPeriod(cfg.ATR.Period),
			WithStopMultiplier(cfg.Stop.ATRMultiplier),
			WithTrailing(risk.TrailingConfig(cfg.Trailing)),
			WithExecutionEngine(engine),
			WithKillSwitch(killSwitch),
			WithMetrics(bt.metrics),
			WithBadBarPolicy(cfg.BadBarPolicy),
		}
		if store != nil {
			options = append(options, WithStorage(store))
		}
		if cfg.Exits.Partials.Enabled {
			levels := make([]PartialLevel, 0, len(cfg.Exits.Partials.Levels))
			for _, level := range cfg.Exits.Partials.Levels {
				levels = append(levels, PartialLevel{
					RMultiple: level.RMultiple,
					ExitPct:   level.ExitPct,
				})
			}
			options = append(options, WithPartialExits(levels...))
		}

		runtime, err := NewRuntime(f.Symbol, str, options...)
		if err != nil {
			return nil, err
		}
		bt.runtimes[f.Symbol] = runtime
		bt.symbols = append(bt.symbols, f.Symbol)
	}

	return bt, nil
}

// Run executes every symbol's runtime sequentially over the loaded data.
func (b *Backtest) Run(ctx context.Context) error {
	for _, symbol := range b.symbols {
		b.log.WithField("symbol", symbol).Info("starting backtest")
		if err := b.runtimes[symbol].Run(ctx, b.feeder); err != nil {
			return err
		}
	}
	return nil
}

// Runtime returns the runtime for a symbol, or nil when not configured.
func (b *Backtest) Runtime(symbol string) *Runtime {
	return b.runtimes[symbol]
}

// Metrics returns the shared metrics aggregator.
func (b *Backtest) Metrics() *metric.Aggregator {
	return b.metrics
}

// WriteSummary prints the per-symbol results table and equity statistics.
func (b *Backtest) WriteSummary(w io.Writer) error {
	return b.metrics.WriteSummary(w)
}

func engineFromConfig(cfg config.ExecutionConfig, log core.Logger) (*execution.Engine, error) {
	options := []execution.Option{
		execution.WithLogger(log),
		execution.WithSpreadBps(cfg.SpreadBps),
		execution.WithExecutionDelay(time.Duration(cfg.DelayMs) * time.Millisecond),
	}

	switch {
	case len(cfg.Slippage.Tiers) > 0:
		model, err := execution.NewVolumeTieredSlippage(cfg.Slippage.Tiers)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithSlippage(model))
	case cfg.Slippage.Bps > 0:
		model, err := execution.NewPercentSlippage(cfg.Slippage.Bps)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithSlippage(model))
	case cfg.Slippage.Amount > 0:
		model, err := execution.NewFixedSlippage(cfg.Slippage.Amount)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithSlippage(model))
	}

	switch {
	case len(cfg.Commission.Tiers) > 0:
		model, err := execution.NewTieredCommission(cfg.Commission.Tiers)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithCommission(model))
	case cfg.Commission.Rate > 0:
		model, err := execution.NewRateCommission(cfg.Commission.Rate, cfg.Commission.MinCommission)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithCommission(model))
	case cfg.Commission.PerShare > 0:
		model, err := execution.NewPerShareCommission(cfg.Commission.PerShare, cfg.Commission.MinCommission)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithCommission(model))
	}

	switch cfg.Impact.Model {
	case config.ImpactLinear:
		model, err := execution.NewLinearImpact(cfg.Impact.Rate)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithImpact(model))
	case config.ImpactSquareRoot:
		model, err := execution.NewSquareRootImpact(cfg.Impact.Coefficient)
		if err != nil {
			return nil, err
		}
		options = append(options, execution.WithImpact(model))
	}

	return execution.NewEngine(options...)
}

func strategyFromConfig(cfg config.StrategyConfig) (core.Strategy, error) {
	switch cfg.Name {
	case "ema_cross":
		return strategy.NewEMACross(cfg.EMACross.FastLength, cfg.EMACross.SlowLength)
	default:
		return strategy.NewBreakout(strategy.BreakoutConfig{
			LookbackPeriod:  cfg.Breakout.LookbackPeriod,
			Multiplier:      cfg.Breakout.Multiplier,
			ATRPeriod:       cfg.Breakout.ATRPeriod,
			MinATRThreshold: cfg.Breakout.MinATRThreshold,
			Direction:       cfg.Breakout.Direction,
		})
	}
}

// killSwitchFromConfig registers triggers in their configured order, which
// is the order the kill switch evaluates them in.
func killSwitchFromConfig(cfg config.KillSwitchConfig, log core.Logger) (*risk.KillSwitch, error) {
	killSwitch := risk.NewKillSwitch(log)

	for _, tc := range cfg.Triggers {
		trigger, err := triggerFromConfig(tc)
		if err != nil {
			return nil, err
		}
		killSwitch.AddTrigger(trigger)
	}

	return killSwitch, nil
}

// triggerFromConfig builds one trigger. List entries cannot pick up viper
// defaults, so the history-window fallbacks live here.
func triggerFromConfig(tc config.TriggerConfig) (risk.Trigger, error) {
	switch tc.Type {
	case config.TriggerDrawdown:
		return risk.NewDrawdownTrigger(tc.MaxDrawdown)
	case config.TriggerAbsoluteLoss:
		return risk.NewAbsoluteLossTrigger(tc.MaxLoss)
	case config.TriggerVolatility:
		lookback := tc.Lookback
		if lookback == 0 {
			lookback = 60
		}
		return risk.NewVolatilityTrigger(tc.MaxVolatility, lookback)
	case config.TriggerVaR:
		confidence := tc.Confidence
		if confidence == 0 {
			confidence = 0.95
		}
		lookback := tc.Lookback
		if lookback == 0 {
			lookback = 100
		}
		method := tc.Method
		if method == "" {
			method = "historical"
		}
		return risk.NewVaRTrigger(confidence, tc.Limit, lookback, method)
	case config.TriggerTimeWindow:
		return risk.NewTimeWindowTrigger(tc.Start, tc.End, tc.TradingDaysOnly)
	default:
		return nil, core.NewConfigError("kill_switch.triggers", "unsupported trigger type "+tc.Type)
	}
}

func storageFromConfig(cfg config.StorageConfig) (core.TradeStorage, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		return storage.NewFromSQLite(cfg.Path, storage.DefaultConfig())
	case config.StorageNone:
		return nil, nil
	default:
		if cfg.Path == "" || cfg.Path == ":memory:" {
			return storage.NewFromMemory()
		}
		return storage.NewFromFile(cfg.Path)
	}
}
