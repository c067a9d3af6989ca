package strategy

import (
	"github.com/markcheno/go-talib"

	"github.com/quantfall/riskcore/core"
)

// Breakout directions
const (
	DirectionLong  = "long"
	DirectionShort = "short"
	DirectionBoth  = "both"
)

// BreakoutConfig configures the ATR breakout strategy.
type BreakoutConfig struct {
	LookbackPeriod  int
	Multiplier      float64
	ATRPeriod       int
	MinATRThreshold float64
	Direction       string
}

// Breakout signals entries when the bar pushes beyond the recent range by an
// ATR multiple: a long when the high clears the lookback high plus
// multiplier*ATR, a short when the low breaks the lookback low minus the
// same margin. The current bar is excluded from the range.
type Breakout struct {
	cfg BreakoutConfig
}

// NewBreakout creates an ATR breakout strategy.
func NewBreakout(cfg BreakoutConfig) (*Breakout, error) {
	if cfg.LookbackPeriod < 2 {
		return nil, core.NewConfigError("strategy.breakout.lookback_period", "must be at least 2")
	}
	if cfg.Multiplier <= 0 {
		return nil, core.NewConfigError("strategy.breakout.multiplier", "must be positive")
	}
	if cfg.ATRPeriod <= 0 {
		return nil, core.NewConfigError("strategy.breakout.atr_period", "must be positive")
	}
	if cfg.MinATRThreshold < 0 {
		return nil, core.NewConfigError("strategy.breakout.min_atr_threshold", "must not be negative")
	}

	switch cfg.Direction {
	case DirectionLong, DirectionShort, DirectionBoth:
	default:
		return nil, core.NewConfigError("strategy.breakout.direction", "unsupported direction "+cfg.Direction)
	}

	return &Breakout{cfg: cfg}, nil
}

// WarmupPeriod returns the number of bars needed before signals are
// meaningful.
func (s *Breakout) WarmupPeriod() int {
	if s.cfg.ATRPeriod > s.cfg.LookbackPeriod {
		return s.cfg.ATRPeriod + 1
	}
	return s.cfg.LookbackPeriod + 1
}

// OnBar checks the latest bar against the preceding range.
func (s *Breakout) OnBar(df *core.Dataframe) core.Signal {
	if df.Len() < s.WarmupPeriod() {
		return core.Signal{}
	}

	atrSeries := talib.Atr(df.High.Values(), df.Low.Values(), df.Close.Values(), s.cfg.ATRPeriod)
	atr := atrSeries[len(atrSeries)-1]
	if atr < s.cfg.MinATRThreshold {
		return core.Signal{}
	}

	// Range over the lookback window ending at the previous bar.
	prior := df.Sample(s.cfg.LookbackPeriod + 1)
	recentHigh := highest(prior.High.Values()[:prior.Len()-1])
	recentLow := lowest(prior.Low.Values()[:prior.Len()-1])

	margin := atr * s.cfg.Multiplier

	if s.cfg.Direction != DirectionShort && df.High.Last(0) > recentHigh+margin {
		return core.Signal{Enter: true, IsLong: true}
	}
	if s.cfg.Direction != DirectionLong && df.Low.Last(0) < recentLow-margin {
		return core.Signal{Enter: true, IsLong: false}
	}
	return core.Signal{}
}

func highest(values []float64) float64 {
	result := values[0]
	for _, v := range values[1:] {
		if v > result {
			result = v
		}
	}
	return result
}

func lowest(values []float64) float64 {
	result := values[0]
	for _, v := range values[1:] {
		if v < result {
			result = v
		}
	}
	return result
}
