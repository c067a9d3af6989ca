package execution

import (
	"math"

	"github.com/quantfall/riskcore/core"
)

// ImpactModel prices the market impact of an order against the bar's traded
// volume. The returned adjustment is added to the fill price: positive for
// buys, negative for sells. Zero volume means impact cannot be estimated
// and models return 0.
type ImpactModel interface {
	Impact(order core.Order, marketPrice, volume float64) float64
}

// ---------------------
// No-op
// ---------------------

type noImpact struct{}

func (noImpact) Impact(core.Order, float64, float64) float64 { return 0 }

// NoImpact returns a model with no market impact.
func NoImpact() ImpactModel { return noImpact{} }

// ---------------------
// Linear participation
// ---------------------

// LinearImpact scales impact linearly with the order's share of the bar's
// notional: price * (order notional / volume notional) * rate.
type LinearImpact struct {
	rate float64
}

// NewLinearImpact creates a linear market impact model.
func NewLinearImpact(rate float64) (*LinearImpact, error) {
	if rate < 0 {
		return nil, core.NewConfigError("impact.rate", "must not be negative")
	}
	return &LinearImpact{rate: rate}, nil
}

func (l *LinearImpact) Impact(order core.Order, marketPrice, volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	participation := order.Quantity / volume
	return signed(marketPrice*participation*l.rate, order.Side)
}

// ---------------------
// Square root
// ---------------------

// SquareRootImpact follows the square-root law: impact grows with the
// square root of the participation rate, price * coefficient *
// sqrt(quantity / volume).
type SquareRootImpact struct {
	coefficient float64
}

// NewSquareRootImpact creates a square-root market impact model.
func NewSquareRootImpact(coefficient float64) (*SquareRootImpact, error) {
	if coefficient < 0 {
		return nil, core.NewConfigError("impact.coefficient", "must not be negative")
	}
	return &SquareRootImpact{coefficient: coefficient}, nil
}

func (s *SquareRootImpact) Impact(order core.Order, marketPrice, volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	participation := order.Quantity / volume
	return signed(marketPrice*s.coefficient*math.Sqrt(participation), order.Side)
}
