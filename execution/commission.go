package execution

import (
	"sort"

	"github.com/quantfall/riskcore/core"
)

// CommissionModel prices the broker fee for a fill. Commission never alters
// the fill price; it is charged separately against realized PnL.
type CommissionModel interface {
	Commission(order core.Order, fillPrice float64) float64
}

// ---------------------
// No-op
// ---------------------

type noCommission struct{}

func (noCommission) Commission(core.Order, float64) float64 { return 0 }

// NoCommission returns a model that charges nothing.
func NoCommission() CommissionModel { return noCommission{} }

// ---------------------
// Per share
// ---------------------

// PerShareCommission charges a fixed amount per share with a minimum per
// order.
type PerShareCommission struct {
	perShare float64
	minimum  float64
}

// NewPerShareCommission creates a per-share commission model.
func NewPerShareCommission(perShare, minimum float64) (*PerShareCommission, error) {
	if perShare < 0 {
		return nil, core.NewConfigError("commission.per_share", "must not be negative")
	}
	if minimum < 0 {
		return nil, core.NewConfigError("commission.min_commission", "must not be negative")
	}
	return &PerShareCommission{perShare: perShare, minimum: minimum}, nil
}

func (p *PerShareCommission) Commission(order core.Order, _ float64) float64 {
	commission := order.Quantity * p.perShare
	if commission < p.minimum {
		return p.minimum
	}
	return commission
}

// ---------------------
// Notional rate
// ---------------------

// RateCommission charges a fraction of the fill notional with a minimum per
// order.
type RateCommission struct {
	rate    float64
	minimum float64
}

// NewRateCommission creates a notional-rate commission model.
func NewRateCommission(rate, minimum float64) (*RateCommission, error) {
	if rate < 0 {
		return nil, core.NewConfigError("commission.rate", "must not be negative")
	}
	if minimum < 0 {
		return nil, core.NewConfigError("commission.min_commission", "must not be negative")
	}
	return &RateCommission{rate: rate, minimum: minimum}, nil
}

func (r *RateCommission) Commission(order core.Order, fillPrice float64) float64 {
	commission := order.Quantity * fillPrice * r.rate
	if commission < r.minimum {
		return r.minimum
	}
	return commission
}

// ---------------------
// Notional tiered
// ---------------------

// CommissionTier maps a notional floor to a commission rate.
type CommissionTier struct {
	Threshold float64 `mapstructure:"threshold"`
	Rate      float64 `mapstructure:"rate"`
}

// TieredCommission charges a rate selected by the fill notional: the tier
// with the highest threshold not exceeding the notional applies, so a trade
// landing exactly on a threshold gets that tier's rate. Notionals below
// every threshold fall back to the lowest tier.
type TieredCommission struct {
	tiers []CommissionTier
}

// NewTieredCommission creates a notional-tiered commission model. Tiers are
// sorted by threshold; at least one is required.
func NewTieredCommission(tiers []CommissionTier) (*TieredCommission, error) {
	if len(tiers) == 0 {
		return nil, core.NewConfigError("commission.tiers", "at least one tier is required")
	}
	for _, tier := range tiers {
		if tier.Threshold < 0 || tier.Rate < 0 {
			return nil, core.NewConfigError("commission.tiers", "thresholds and rates must not be negative")
		}
	}

	sorted := make([]CommissionTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Threshold < sorted[j].Threshold
	})

	return &TieredCommission{tiers: sorted}, nil
}

func (t *TieredCommission) Commission(order core.Order, fillPrice float64) float64 {
	notional := order.Quantity * fillPrice

	rate := t.tiers[0].Rate
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if notional >= t.tiers[i].Threshold {
			rate = t.tiers[i].Rate
			break
		}
	}
	return notional * rate
}
