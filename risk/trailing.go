// Package risk implements the protective-stop and circuit-breaker logic of
// the runtime: ATR trailing stops and the kill-switch trigger registry.
package risk

import (
	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/indicator"
	"github.com/quantfall/riskcore/position"
)

// Trailing stop types
const (
	TrailingTypeATR     = "atr"
	TrailingTypePercent = "percent"
)

// TrailingConfig configures the trailing stop engine.
type TrailingConfig struct {
	Enabled              bool
	Type                 string
	Multiplier           float64
	Percent              float64
	UseDynamicATR        bool
	DynamicATRMinSamples int
	ActivationRMultiple  float64
}

// distanceFunc computes the trailing distance for a position at a price.
// The trailing type is resolved into one of these at construction, so no
// string dispatch happens per bar.
type distanceFunc func(pos *position.Position, price float64) float64

// TrailingStop tightens a position's protective stop as price moves in the
// trade's favor. Stops never loosen: a candidate stop replaces the current
// one only when strictly more favorable.
type TrailingStop struct {
	enabled     bool
	distance    distanceFunc
	activationR float64
	log         core.Logger
}

// NewTrailingStop builds a trailing stop engine. Unknown trailing types and
// non-positive parameters fail fast with a *core.ConfigError.
func NewTrailingStop(cfg TrailingConfig, atr *indicator.ATR, log core.Logger) (*TrailingStop, error) {
	if log == nil {
		log = core.NewNopLogger()
	}

	t := &TrailingStop{
		enabled:     cfg.Enabled,
		activationR: cfg.ActivationRMultiple,
		log:         log,
	}

	if cfg.ActivationRMultiple < 0 {
		return nil, core.NewConfigError("trailing.activation_r_multiple", "must not be negative")
	}

	// disabled trailing skips type resolution so the zero config is usable
	if !cfg.Enabled {
		return t, nil
	}

	switch cfg.Type {
	case TrailingTypeATR:
		if cfg.Multiplier <= 0 {
			return nil, core.NewConfigError("trailing.multiplier", "must be positive")
		}
		if cfg.UseDynamicATR {
			if cfg.DynamicATRMinSamples < 1 {
				return nil, core.NewConfigError("trailing.dynamic_atr_min_samples", "must be a positive integer")
			}
			if atr == nil {
				return nil, core.NewConfigError("trailing.use_dynamic_atr", "requires an ATR indicator")
			}
			minSamples := cfg.DynamicATRMinSamples
			multiplier := cfg.Multiplier
			t.distance = func(pos *position.Position, _ float64) float64 {
				if atr.HasEnoughSamples(minSamples) {
					return atr.Value() * multiplier
				}
				// Not warmed up yet: fall back to the entry snapshot.
				return pos.EntryATR * multiplier
			}
		} else {
			multiplier := cfg.Multiplier
			t.distance = func(pos *position.Position, _ float64) float64 {
				return pos.EntryATR * multiplier
			}
		}
	case TrailingTypePercent:
		if cfg.Percent <= 0 || cfg.Percent >= 1 {
			return nil, core.NewConfigError("trailing.percent", "must be in (0, 1)")
		}
		percent := cfg.Percent
		t.distance = func(_ *position.Position, price float64) float64 {
			return price * percent
		}
	default:
		return nil, core.NewConfigError("trailing.type", "unsupported trailing type "+cfg.Type)
	}

	return t, nil
}

// Distance returns the current trailing distance for a position, or 0 when
// trailing is disabled.
func (t *TrailingStop) Distance(pos *position.Position, price float64) float64 {
	if !t.enabled || pos == nil {
		return 0
	}
	return t.distance(pos, price)
}

// Update recomputes the trailing stop for the current price. It returns the
// new stop when the stop moved, nil when unchanged. Trailing only begins once
// the open profit reaches activationR times the initial risk; until then the
// entry stop is left untouched.
func (t *TrailingStop) Update(pos *position.Position, currentPrice float64) *float64 {
	if !t.enabled || pos == nil {
		return nil
	}

	if threshold := t.activationR * pos.InitialRisk(); pos.UnrealizedPNL(currentPrice) < threshold {
		return nil
	}

	distance := t.distance(pos, currentPrice)
	if distance <= 0 {
		return nil
	}

	if pos.IsLong {
		candidate := currentPrice - distance
		if pos.StopPrice == nil || candidate > *pos.StopPrice {
			pos.SetStop(candidate)
			return pos.StopPrice
		}
		return nil
	}

	candidate := currentPrice + distance
	if pos.StopPrice == nil || candidate < *pos.StopPrice {
		pos.SetStop(candidate)
		return pos.StopPrice
	}
	return nil
}

// StopHit reports whether the bar touched the protective stop. The boundary
// counts as a hit: a long stops out when bar low <= stop, a short when bar
// high >= stop.
func StopHit(pos *position.Position, barHigh, barLow float64) bool {
	if pos == nil || pos.StopPrice == nil {
		return false
	}
	if pos.IsLong {
		return barLow <= *pos.StopPrice
	}
	return barHigh >= *pos.StopPrice
}
