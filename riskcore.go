// Package riskcore wires the trade pipeline together: bar validation, ATR
// tracking, strategy signals, order execution, position lifecycle, trailing
// stops and kill-switch evaluation, in that order, one bar at a time.
package riskcore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/execution"
	"github.com/quantfall/riskcore/indicator"
	"github.com/quantfall/riskcore/position"
	"github.com/quantfall/riskcore/risk"
)

// Bad bar policies
const (
	BadBarSkip  = "skip"
	BadBarAbort = "abort"
)

// PartialLevel scales out a fraction of the open position once unrealized
// profit reaches RMultiple times the initial risk. ExitPct applies to the
// size remaining at the time the level fires.
type PartialLevel struct {
	RMultiple float64
	ExitPct   float64
}

// Runtime drives a single-symbol backtest. It is not safe for concurrent
// use; process bars from one goroutine.
type Runtime struct {
	symbol         string
	strategy       core.Strategy
	initialEquity  float64
	riskFraction   float64
	equityCapPct   float64
	stopMultiplier float64
	badBarPolicy   string
	partialLevels  []PartialLevel

	atr        *indicator.ATR
	tracker    *position.Tracker
	trailing   *risk.TrailingStop
	killSwitch *risk.KillSwitch
	engine     *execution.Engine
	storage    core.TradeStorage
	metrics    core.MetricsSink
	log        core.Logger

	df            *core.Dataframe
	partialsTaken int
	peakEquity    float64

	// deferred until every option has been applied
	atrPeriod   int
	trailingCfg risk.TrailingConfig
}

// NewRuntime builds a runtime for one symbol. The strategy decides entries;
// everything else (sizing, fills, stops, circuit breakers) belongs to the
// runtime and is tuned through options.
func NewRuntime(symbol string, strategy core.Strategy, options ...Option) (*Runtime, error) {
	if symbol == "" {
		return nil, core.NewConfigError("symbol", "must not be empty")
	}
	if strategy == nil {
		return nil, core.NewConfigError("strategy", "must not be nil")
	}

	r := &Runtime{
		symbol:         symbol,
		strategy:       strategy,
		initialEquity:  100_000,
		riskFraction:   0.01,
		equityCapPct:   1.0,
		stopMultiplier: 2.0,
		badBarPolicy:   BadBarSkip,
		atrPeriod:      14,
		trailingCfg: risk.TrailingConfig{
			Enabled:    true,
			Type:       risk.TrailingTypeATR,
			Multiplier: 2.0,
		},
		df: core.NewDataframe(symbol),
	}

	for _, option := range options {
		option(r)
	}

	if r.log == nil {
		r.log = core.NewNopLogger()
	}

	if r.initialEquity <= 0 {
		return nil, core.NewConfigError("initial_equity", "must be positive")
	}
	if r.riskFraction <= 0 || r.riskFraction > 1 {
		return nil, core.NewConfigError("account_risk_fraction", "must be in (0, 1]")
	}
	if r.equityCapPct <= 0 || r.equityCapPct > 1 {
		return nil, core.NewConfigError("per_symbol_equity_cap_pct", "must be in (0, 1]")
	}
	switch r.badBarPolicy {
	case BadBarSkip, BadBarAbort:
	default:
		return nil, core.NewConfigError("bad_bar_policy", "must be skip or abort")
	}
	for _, level := range r.partialLevels {
		if level.RMultiple <= 0 {
			return nil, core.NewConfigError("partials", "r_multiple must be positive")
		}
		if level.ExitPct <= 0 || level.ExitPct > 1 {
			return nil, core.NewConfigError("partials", "exit_pct must be in (0, 1]")
		}
	}
	sort.SliceStable(r.partialLevels, func(i, j int) bool {
		return r.partialLevels[i].RMultiple < r.partialLevels[j].RMultiple
	})

	var err error
	if r.atr, err = indicator.NewATR(r.atrPeriod); err != nil {
		return nil, err
	}
	if r.tracker, err = position.NewTracker(r.stopMultiplier, r.log); err != nil {
		return nil, err
	}
	if r.trailing, err = risk.NewTrailingStop(r.trailingCfg, r.atr, r.log); err != nil {
		return nil, err
	}
	if r.killSwitch == nil {
		r.killSwitch = risk.NewKillSwitch(r.log)
	}
	if r.engine == nil {
		if r.engine, err = execution.NewEngine(execution.WithLogger(r.log)); err != nil {
			return nil, err
		}
	}

	r.peakEquity = r.initialEquity

	return r, nil
}

// Position returns the open position, or nil when flat.
func (r *Runtime) Position() *position.Position {
	return r.tracker.Position()
}

// Equity returns initial equity plus realized P&L, marked at the given price
// when a position is open.
func (r *Runtime) Equity(markPrice float64) float64 {
	equity := r.initialEquity + r.tracker.RealizedPNL()
	if pos := r.tracker.Position(); pos != nil {
		equity += pos.UnrealizedPNL(markPrice)
	}
	return equity
}

// KillSwitch exposes the circuit breaker, mainly so callers can inspect or
// reset it between runs.
func (r *Runtime) KillSwitch() *risk.KillSwitch {
	return r.killSwitch
}

// ProcessBar advances the runtime by one bar. The pipeline order is fixed:
// validate, update ATR, manage the open position (partials, then trailing,
// then stop check), otherwise look for an entry, and finally evaluate the
// kill switch on the closing snapshot.
func (r *Runtime) ProcessBar(ctx context.Context, bar core.Bar) (core.BarProcessResult, error) {
	if err := bar.Validate(); err != nil {
		if r.badBarPolicy == BadBarAbort {
			return core.BarProcessResult{}, err
		}
		r.log.WithError(err).WithField("symbol", r.symbol).Warn("skipping invalid bar")
		return core.BarProcessResult{}, nil
	}

	atrValue, err := r.atr.AddBar(bar.High, bar.Low, bar.PrevClose)
	if err != nil {
		if r.badBarPolicy == BadBarAbort {
			return core.BarProcessResult{}, err
		}
		r.log.WithError(err).Warn("skipping bar rejected by ATR")
		return core.BarProcessResult{}, nil
	}
	r.df.Push(bar)

	result := core.BarProcessResult{ATR: atrValue}

	if r.tracker.Position() != nil {
		if err := r.manageOpenPosition(ctx, bar, &result); err != nil {
			return result, err
		}
	} else if !r.killSwitch.Active() {
		if err := r.tryEnter(ctx, bar, atrValue); err != nil {
			return result, err
		}
	}

	snapshot := r.snapshot(bar)
	r.killSwitch.Evaluate(snapshot)
	if r.metrics != nil {
		r.metrics.OnEquity(snapshot)
	}

	return result, nil
}

// Run processes every bar the feeder yields for the runtime's symbol. An
// open position at the end of the data is closed at the last bar's close.
func (r *Runtime) Run(ctx context.Context, feeder core.Feeder) error {
	bars, err := feeder.Bars(ctx, r.symbol)
	if err != nil {
		return err
	}

	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := r.ProcessBar(ctx, bar); err != nil {
			return err
		}
	}

	if pos := r.tracker.Position(); pos != nil && len(bars) > 0 {
		last := bars[len(bars)-1]
		if _, err := r.closePosition(ctx, pos, last.Close, last, core.ReasonEndOfData); err != nil {
			return err
		}
	}

	return nil
}

// manageOpenPosition runs the exit pipeline for one bar. Partial exits have
// priority over the trailing stop, and at most one partial level fires per
// bar.
func (r *Runtime) manageOpenPosition(ctx context.Context, bar core.Bar, result *core.BarProcessResult) error {
	pos := r.tracker.Position()

	if exit, err := r.maybePartialExit(ctx, pos, bar); err != nil {
		return err
	} else if exit != nil {
		result.ExitResult = exit
	}

	pos = r.tracker.Position()
	if pos == nil {
		return nil
	}

	r.trailing.Update(pos, bar.Close)
	result.StopPrice = pos.StopPrice

	if !risk.StopHit(pos, bar.High, bar.Low) {
		return nil
	}
	result.StopHit = true

	exit, err := r.closePosition(ctx, pos, *pos.StopPrice, bar, core.ReasonTrailingStop)
	if err != nil {
		return err
	}
	result.ExitResult = &exit
	result.StopPrice = nil
	return nil
}

// maybePartialExit fires the next untaken partial level when open profit
// reaches its R-multiple threshold. A level that would close the whole
// position is treated as a full exit.
func (r *Runtime) maybePartialExit(ctx context.Context, pos *position.Position, bar core.Bar) (*core.ExitResult, error) {
	if r.partialsTaken >= len(r.partialLevels) {
		return nil, nil
	}

	// thresholds are per share, so earlier partials do not dilute the open
	// R-multiple of what remains
	level := r.partialLevels[r.partialsTaken]
	riskPerShare := pos.RiskPerShare()
	if riskPerShare <= 0 {
		return nil, nil
	}
	profitPerShare := pos.UnrealizedPNL(bar.Close) / pos.Size
	if profitPerShare < level.RMultiple*riskPerShare {
		return nil, nil
	}
	r.partialsTaken++

	quantity := level.ExitPct * pos.Size
	if quantity >= pos.Size {
		exit, err := r.closePosition(ctx, pos, bar.Close, bar, core.ReasonPartialExit)
		if err != nil {
			return nil, err
		}
		return &exit, nil
	}

	order := core.Order{
		Symbol:   r.symbol,
		Side:     exitSide(pos.IsLong),
		Quantity: quantity,
		Type:     core.OrderTypeMarket,
		Time:     bar.Time,
	}
	fill, err := r.engine.ExecuteOrder(order, bar.Close, bar.Volume)
	if err != nil {
		return nil, err
	}

	exit, err := r.tracker.ExitPartial(fill, quantity, core.ReasonPartialExit)
	if err != nil {
		return nil, err
	}

	r.log.WithFields(map[string]any{
		"symbol":     r.symbol,
		"r_multiple": level.RMultiple,
		"quantity":   quantity,
		"remaining":  pos.Size,
	}).Info("partial exit filled")

	if err := r.recordTrade(ctx, pos, fill, exit, bar); err != nil {
		return nil, err
	}
	return &exit, nil
}

// tryEnter sizes and opens a new position when the strategy signals one.
// Quantity is the equity fraction at risk divided by the stop distance, so a
// stopped-out trade loses close to riskFraction of current equity.
func (r *Runtime) tryEnter(ctx context.Context, bar core.Bar, atrValue float64) error {
	if r.df.Len() < r.strategy.WarmupPeriod() || !r.atr.HasEnoughSamples(r.atr.Period()) {
		return nil
	}

	signal := r.strategy.OnBar(r.df)
	if !signal.Enter {
		return nil
	}

	stopDistance := atrValue * r.stopMultiplier
	if stopDistance <= 0 || math.IsNaN(stopDistance) {
		return nil
	}
	equity := r.Equity(bar.Close)
	quantity := r.riskFraction * equity / stopDistance

	// a small ATR can size the trade far past the account; position
	// notional is capped at equityCapPct of current equity
	if maxQuantity := r.equityCapPct * equity / bar.Close; quantity > maxQuantity {
		r.log.WithFields(map[string]any{
			"symbol":   r.symbol,
			"quantity": quantity,
			"capped":   maxQuantity,
		}).Debug("entry quantity capped by equity limit")
		quantity = maxQuantity
	}
	if quantity <= 0 {
		return nil
	}

	side := core.SideTypeBuy
	if !signal.IsLong {
		side = core.SideTypeSell
	}
	order := core.Order{
		Symbol:   r.symbol,
		Side:     side,
		Quantity: quantity,
		Type:     core.OrderTypeMarket,
		Time:     bar.Time,
	}

	fill, err := r.engine.ExecuteOrder(order, bar.Close, bar.Volume)
	if err != nil {
		return err
	}
	if _, err := r.tracker.Enter(fill, atrValue, signal.IsLong, bar.Time); err != nil {
		return err
	}
	r.partialsTaken = 0

	r.log.WithFields(map[string]any{
		"symbol":   r.symbol,
		"side":     side,
		"quantity": quantity,
		"price":    fill.Price,
		"atr":      atrValue,
	}).Info("entered position")

	return nil
}

// closePosition exits the whole position at the given price, then persists
// the trade and notifies the metrics sink.
func (r *Runtime) closePosition(ctx context.Context, pos *position.Position, price float64, bar core.Bar, reason string) (core.ExitResult, error) {
	order := core.Order{
		Symbol:   r.symbol,
		Side:     exitSide(pos.IsLong),
		Quantity: pos.Size,
		Type:     core.OrderTypeMarket,
		Time:     bar.Time,
	}
	fill, err := r.engine.ExecuteOrder(order, price, bar.Volume)
	if err != nil {
		return core.ExitResult{}, err
	}

	// capture entry fields before the tracker destroys the position
	entry := *pos

	exit, err := r.tracker.Exit(fill, reason)
	if err != nil {
		return core.ExitResult{}, err
	}

	r.log.WithFields(map[string]any{
		"symbol":     r.symbol,
		"reason":     reason,
		"pnl":        exit.PNL,
		"r_multiple": exit.RMultiple,
	}).Info("closed position")

	if err := r.recordTrade(ctx, &entry, fill, exit, bar); err != nil {
		return core.ExitResult{}, err
	}
	return exit, nil
}

func (r *Runtime) recordTrade(ctx context.Context, pos *position.Position, fill core.Fill, exit core.ExitResult, bar core.Bar) error {
	if r.metrics != nil {
		r.metrics.OnTrade(r.symbol, exit)
	}
	if r.storage == nil {
		return nil
	}

	side := core.SideTypeBuy
	if !pos.IsLong {
		side = core.SideTypeSell
	}
	record := &core.TradeRecord{
		Symbol:     r.symbol,
		Side:       side,
		Quantity:   fill.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill.Price,
		PNL:        exit.PNL,
		RMultiple:  exit.RMultiple,
		Commission: exit.Commission,
		Reason:     exit.Reason,
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Time,
	}
	if err := r.storage.SaveTrade(ctx, record); err != nil {
		return fmt.Errorf("failed to persist trade: %w", err)
	}
	return nil
}

func (r *Runtime) snapshot(bar core.Bar) core.Snapshot {
	equity := r.Equity(bar.Close)
	if equity > r.peakEquity {
		r.peakEquity = equity
	}

	realizedLoss := 0.0
	if realized := r.tracker.RealizedPNL(); realized < 0 {
		realizedLoss = -realized
	}

	return core.Snapshot{
		Equity:       equity,
		PeakEquity:   r.peakEquity,
		RealizedLoss: realizedLoss,
		Time:         bar.Time,
	}
}

func exitSide(isLong bool) core.SideType {
	if isLong {
		return core.SideTypeSell
	}
	return core.SideTypeBuy
}
