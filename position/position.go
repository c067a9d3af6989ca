// Package position tracks the lifecycle of a single open trade position.
package position

import (
	"time"
)

// Position is the mutable record of an open trade. A runtime owns at most one
// per symbol; only the trailing-stop engine moves StopPrice after entry.
type Position struct {
	EntryPrice  float64
	Size        float64
	EntryATR    float64
	IsLong      bool
	StopPrice   *float64
	InitialStop float64
	EntryTime   time.Time

	// initialSize is the size at entry, kept so partial exits do not change
	// the per-share risk basis.
	initialSize float64
}

// UnrealizedPNL returns the open profit at the given mark price, before costs.
func (p *Position) UnrealizedPNL(markPrice float64) float64 {
	if p.Size == 0 {
		return 0
	}
	if p.IsLong {
		return p.Size * (markPrice - p.EntryPrice)
	}
	return p.Size * (p.EntryPrice - markPrice)
}

// RiskPerShare returns the entry-to-initial-stop distance.
func (p *Position) RiskPerShare() float64 {
	if p.IsLong {
		return p.EntryPrice - p.InitialStop
	}
	return p.InitialStop - p.EntryPrice
}

// InitialRisk returns the total risk taken at entry.
func (p *Position) InitialRisk() float64 {
	return p.RiskPerShare() * p.initialSize
}

// SetStop replaces the protective stop. Used by the trailing engine only.
func (p *Position) SetStop(price float64) {
	p.StopPrice = &price
}
