// Package strategy contains entry-signal sources for the runtime. A strategy
// only decides direction; sizing, execution and risk live in the runtime.
package strategy

import (
	"github.com/markcheno/go-talib"

	"github.com/quantfall/riskcore/core"
)

// EMACross signals long entries when the fast EMA crosses above the slow one
// and short entries on the opposite cross.
type EMACross struct {
	fastLength int
	slowLength int
}

// NewEMACross creates an EMA crossover strategy.
func NewEMACross(fastLength, slowLength int) (*EMACross, error) {
	if fastLength <= 0 || slowLength <= 0 {
		return nil, core.NewConfigError("strategy.ema_cross", "periods must be positive")
	}
	if fastLength >= slowLength {
		return nil, core.NewConfigError("strategy.ema_cross", "fast period must be shorter than slow period")
	}
	return &EMACross{fastLength: fastLength, slowLength: slowLength}, nil
}

// WarmupPeriod returns the number of bars needed before signals are
// meaningful.
func (s *EMACross) WarmupPeriod() int {
	return s.slowLength * 2
}

// OnBar recomputes both EMAs over the dataframe and reports crosses on the
// latest bar.
func (s *EMACross) OnBar(df *core.Dataframe) core.Signal {
	if df.Len() < s.WarmupPeriod() {
		return core.Signal{}
	}

	df.Metadata["ema_fast"] = core.Series[float64](talib.Ema(df.Close.Values(), s.fastLength))
	df.Metadata["ema_slow"] = core.Series[float64](talib.Ema(df.Close.Values(), s.slowLength))

	if df.Metadata["ema_fast"].Crossover(df.Metadata["ema_slow"]) {
		return core.Signal{Enter: true, IsLong: true}
	}
	if df.Metadata["ema_fast"].Crossunder(df.Metadata["ema_slow"]) {
		return core.Signal{Enter: true, IsLong: false}
	}
	return core.Signal{}
}
