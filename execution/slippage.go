// Package execution prices orders against a bar: bid-ask spread, slippage,
// market impact and commission compose into a single fill. Every cost slot
// defaults to a no-op model, so a bare engine fills at market.
package execution

import (
	"sort"

	"github.com/quantfall/riskcore/core"
)

// SlippageModel prices the adverse move between decision and fill. The
// returned adjustment is added to the fill price: positive for buys,
// negative for sells.
type SlippageModel interface {
	Slippage(order core.Order, marketPrice, volume float64) float64
}

// ---------------------
// No-op
// ---------------------

type noSlippage struct{}

func (noSlippage) Slippage(core.Order, float64, float64) float64 { return 0 }

// NoSlippage returns a model that never slips.
func NoSlippage() SlippageModel { return noSlippage{} }

// ---------------------
// Fixed per share
// ---------------------

// FixedSlippage charges a constant amount per share.
type FixedSlippage struct {
	amount float64
}

// NewFixedSlippage creates a fixed slippage model; amount is quote currency
// per share.
func NewFixedSlippage(amount float64) (*FixedSlippage, error) {
	if amount < 0 {
		return nil, core.NewConfigError("slippage.amount", "must not be negative")
	}
	return &FixedSlippage{amount: amount}, nil
}

func (f *FixedSlippage) Slippage(order core.Order, _, _ float64) float64 {
	return signed(f.amount, order.Side)
}

// ---------------------
// Percent of price
// ---------------------

// PercentSlippage charges a fraction of the market price, configured in
// basis points.
type PercentSlippage struct {
	bps float64
}

// NewPercentSlippage creates a percentage slippage model.
func NewPercentSlippage(bps float64) (*PercentSlippage, error) {
	if bps < 0 {
		return nil, core.NewConfigError("slippage.bps", "must not be negative")
	}
	return &PercentSlippage{bps: bps}, nil
}

func (p *PercentSlippage) Slippage(order core.Order, marketPrice, _ float64) float64 {
	return signed(marketPrice*p.bps/10000, order.Side)
}

// ---------------------
// Volume tiered
// ---------------------

// SlippageTier maps an average-daily-volume floor to a slippage rate.
type SlippageTier struct {
	ADVThreshold float64 `mapstructure:"adv_threshold"`
	Bps          float64 `mapstructure:"bps"`
}

// VolumeTieredSlippage charges basis points selected by the bar's volume:
// the tier with the highest adv_threshold not exceeding the volume applies.
// When no tier qualifies, including a zero-volume bar against positive
// thresholds, no slippage is charged.
type VolumeTieredSlippage struct {
	tiers []SlippageTier
}

// NewVolumeTieredSlippage creates a volume-tiered slippage model. Tiers are
// sorted by threshold; at least one is required.
func NewVolumeTieredSlippage(tiers []SlippageTier) (*VolumeTieredSlippage, error) {
	if len(tiers) == 0 {
		return nil, core.NewConfigError("slippage.tiers", "at least one tier is required")
	}
	for _, tier := range tiers {
		if tier.ADVThreshold < 0 || tier.Bps < 0 {
			return nil, core.NewConfigError("slippage.tiers", "thresholds and bps must not be negative")
		}
	}

	sorted := make([]SlippageTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ADVThreshold < sorted[j].ADVThreshold
	})

	return &VolumeTieredSlippage{tiers: sorted}, nil
}

func (v *VolumeTieredSlippage) Slippage(order core.Order, marketPrice, volume float64) float64 {
	var bps float64
	for i := len(v.tiers) - 1; i >= 0; i-- {
		if volume >= v.tiers[i].ADVThreshold {
			bps = v.tiers[i].Bps
			break
		}
	}
	if bps == 0 {
		return 0
	}
	return signed(marketPrice*bps/10000, order.Side)
}

// signed orients a cost toward the taker: buys pay up, sells receive less.
func signed(amount float64, side core.SideType) float64 {
	if side == core.SideTypeBuy {
		return amount
	}
	return -amount
}
