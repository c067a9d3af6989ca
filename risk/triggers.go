package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfall/riskcore/core"
)

// Trigger is a stateful kill-switch condition evaluated once per bar against
// a portfolio snapshot. Implementations accumulate whatever history they need
// across calls.
type Trigger interface {
	Name() string
	// Check updates the trigger's state with the snapshot and reports whether
	// the condition fired. A non-empty reason describes the breach.
	Check(snapshot core.Snapshot) (bool, string)
}

// ---------------------
// Drawdown
// ---------------------

// DrawdownTrigger fires when peak-to-trough equity loss reaches a fraction.
type DrawdownTrigger struct {
	maxDrawdown float64
	peak        float64
}

// NewDrawdownTrigger creates a drawdown trigger; maxDrawdown is a fraction in (0, 1].
func NewDrawdownTrigger(maxDrawdown float64) (*DrawdownTrigger, error) {
	if maxDrawdown <= 0 || maxDrawdown > 1 {
		return nil, core.NewConfigError("kill_switch.drawdown", "threshold must be in (0, 1]")
	}
	return &DrawdownTrigger{maxDrawdown: maxDrawdown}, nil
}

func (d *DrawdownTrigger) Name() string { return "drawdown" }

func (d *DrawdownTrigger) Check(snapshot core.Snapshot) (bool, string) {
	if snapshot.Equity > d.peak {
		d.peak = snapshot.Equity
	}
	if d.peak <= 0 {
		return false, ""
	}

	drawdown := (d.peak - snapshot.Equity) / d.peak
	if drawdown >= d.maxDrawdown {
		return true, fmt.Sprintf("drawdown %.2f%% exceeds limit %.2f%%", drawdown*100, d.maxDrawdown*100)
	}
	return false, ""
}

// ---------------------
// Absolute loss
// ---------------------

// AbsoluteLossTrigger fires when equity falls a fixed amount below its
// starting value.
type AbsoluteLossTrigger struct {
	maxLoss float64
	initial *float64
}

// NewAbsoluteLossTrigger creates an absolute loss trigger in quote currency.
func NewAbsoluteLossTrigger(maxLoss float64) (*AbsoluteLossTrigger, error) {
	if maxLoss <= 0 {
		return nil, core.NewConfigError("kill_switch.absolute_loss", "threshold must be positive")
	}
	return &AbsoluteLossTrigger{maxLoss: maxLoss}, nil
}

func (a *AbsoluteLossTrigger) Name() string { return "absolute_loss" }

func (a *AbsoluteLossTrigger) Check(snapshot core.Snapshot) (bool, string) {
	if a.initial == nil {
		v := snapshot.Equity
		a.initial = &v
	}

	loss := *a.initial - snapshot.Equity
	if loss >= a.maxLoss {
		return true, fmt.Sprintf("loss %.2f exceeds limit %.2f", loss, a.maxLoss)
	}
	return false, ""
}

// ---------------------
// Volatility
// ---------------------

// minVolatilityObservations is the smallest return history considered
// meaningful for an annualized volatility estimate.
const minVolatilityObservations = 10

// VolatilityTrigger fires when the annualized standard deviation of per-bar
// equity returns crosses a limit.
type VolatilityTrigger struct {
	maxVolatility float64
	lookback      int
	returns       []float64
	lastEquity    float64
}

// NewVolatilityTrigger creates a volatility trigger; maxVolatility is the
// annualized fraction (0.50 = 50%), lookback the number of bars retained.
func NewVolatilityTrigger(maxVolatility float64, lookback int) (*VolatilityTrigger, error) {
	if maxVolatility <= 0 {
		return nil, core.NewConfigError("kill_switch.volatility", "threshold must be positive")
	}
	if lookback < minVolatilityObservations {
		return nil, core.NewConfigError("kill_switch.volatility", fmt.Sprintf("lookback must be at least %d", minVolatilityObservations))
	}
	return &VolatilityTrigger{maxVolatility: maxVolatility, lookback: lookback}, nil
}

func (v *VolatilityTrigger) Name() string { return "volatility" }

func (v *VolatilityTrigger) Check(snapshot core.Snapshot) (bool, string) {
	if v.lastEquity > 0 {
		v.returns = append(v.returns, (snapshot.Equity-v.lastEquity)/v.lastEquity)
		if len(v.returns) > v.lookback {
			v.returns = v.returns[len(v.returns)-v.lookback:]
		}
	}
	v.lastEquity = snapshot.Equity

	if len(v.returns) < minVolatilityObservations {
		return false, ""
	}

	volatility := stat.StdDev(v.returns, nil) * math.Sqrt(252)
	if volatility >= v.maxVolatility {
		return true, fmt.Sprintf("volatility %.2f%% exceeds limit %.2f%%", volatility*100, v.maxVolatility*100)
	}
	return false, ""
}

// ---------------------
// Value at Risk
// ---------------------

// VaR estimation methods
const (
	VaRMethodHistorical = "historical"
	VaRMethodParametric = "parametric"
)

// minVaRObservations is the smallest return history used for a VaR estimate.
const minVaRObservations = 30

// VaRTrigger fires when the latest per-bar return breaches the running
// Value-at-Risk estimate and exceeds the loss limit.
type VaRTrigger struct {
	confidence float64
	limit      float64
	lookback   int
	parametric bool
	returns    []float64
	lastEquity float64
}

// NewVaRTrigger creates a VaR trigger. Confidence is e.g. 0.95, limit the
// per-bar loss fraction below which breaches are ignored.
func NewVaRTrigger(confidence, limit float64, lookback int, method string) (*VaRTrigger, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, core.NewConfigError("kill_switch.var", "confidence must be in (0, 1)")
	}
	if limit <= 0 {
		return nil, core.NewConfigError("kill_switch.var", "limit must be positive")
	}
	if lookback < minVaRObservations {
		return nil, core.NewConfigError("kill_switch.var", fmt.Sprintf("lookback must be at least %d", minVaRObservations))
	}

	switch method {
	case VaRMethodHistorical, VaRMethodParametric:
	default:
		return nil, core.NewConfigError("kill_switch.var", "unsupported method "+method)
	}

	return &VaRTrigger{
		confidence: confidence,
		limit:      limit,
		lookback:   lookback,
		parametric: method == VaRMethodParametric,
	}, nil
}

func (v *VaRTrigger) Name() string { return "var" }

func (v *VaRTrigger) Check(snapshot core.Snapshot) (bool, string) {
	if v.lastEquity > 0 {
		v.returns = append(v.returns, (snapshot.Equity-v.lastEquity)/v.lastEquity)
		if len(v.returns) > v.lookback {
			v.returns = v.returns[len(v.returns)-v.lookback:]
		}
	}
	v.lastEquity = snapshot.Equity

	if len(v.returns) < minVaRObservations {
		return false, ""
	}

	estimate := v.estimate()
	current := v.returns[len(v.returns)-1]

	if current <= estimate && math.Abs(current) > v.limit {
		return true, fmt.Sprintf("return %.2f%% breaches VaR estimate %.2f%%", current*100, estimate*100)
	}
	return false, ""
}

// estimate returns the per-bar return at the configured confidence level,
// as a (typically negative) fraction.
func (v *VaRTrigger) estimate() float64 {
	if v.parametric {
		mean, std := stat.MeanStdDev(v.returns, nil)
		return mean + std*distuv.UnitNormal.Quantile(1-v.confidence)
	}

	sorted := make([]float64, len(v.returns))
	copy(sorted, v.returns)
	sort.Float64s(sorted)
	return stat.Quantile(1-v.confidence, stat.Empirical, sorted, nil)
}

// ---------------------
// Trading window
// ---------------------

// TimeWindowTrigger fires when a bar falls outside the allowed trading
// window or on a non-trading day.
type TimeWindowTrigger struct {
	start           timeOfDay
	end             timeOfDay
	tradingDaysOnly bool
}

type timeOfDay struct {
	hour, minute int
}

// NewTimeWindowTrigger creates a trading-window trigger. Times use "HH:MM".
func NewTimeWindowTrigger(start, end string, tradingDaysOnly bool) (*TimeWindowTrigger, error) {
	startTod, err := parseTimeOfDay(start)
	if err != nil {
		return nil, core.NewConfigError("kill_switch.time_window.start", err.Error())
	}
	endTod, err := parseTimeOfDay(end)
	if err != nil {
		return nil, core.NewConfigError("kill_switch.time_window.end", err.Error())
	}
	if !startTod.before(endTod) {
		return nil, core.NewConfigError("kill_switch.time_window", "start must precede end")
	}

	return &TimeWindowTrigger{start: startTod, end: endTod, tradingDaysOnly: tradingDaysOnly}, nil
}

func (t *TimeWindowTrigger) Name() string { return "time_window" }

func (t *TimeWindowTrigger) Check(snapshot core.Snapshot) (bool, string) {
	now := timeOfDay{snapshot.Time.Hour(), snapshot.Time.Minute()}

	if now.before(t.start) || t.end.before(now) {
		return true, fmt.Sprintf("timestamp %s outside trading window %02d:%02d-%02d:%02d",
			snapshot.Time.Format("15:04"), t.start.hour, t.start.minute, t.end.hour, t.end.minute)
	}

	if t.tradingDaysOnly {
		switch snapshot.Time.Weekday() {
		case time.Saturday, time.Sunday:
			return true, "non-trading day"
		}
	}
	return false, ""
}

func parseTimeOfDay(s string) (timeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return timeOfDay{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return timeOfDay{parsed.Hour(), parsed.Minute()}, nil
}

func (t timeOfDay) before(other timeOfDay) bool {
	if t.hour != other.hour {
		return t.hour < other.hour
	}
	return t.minute < other.minute
}
