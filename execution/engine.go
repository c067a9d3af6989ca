package execution

import (
	"time"

	"github.com/quantfall/riskcore/core"
)

// Option configures an Engine.
type Option func(*Engine)

// WithSlippage sets the slippage model.
func WithSlippage(model SlippageModel) Option {
	return func(e *Engine) { e.slippage = model }
}

// WithCommission sets the commission model.
func WithCommission(model CommissionModel) Option {
	return func(e *Engine) { e.commission = model }
}

// WithImpact sets the market impact model.
func WithImpact(model ImpactModel) Option {
	return func(e *Engine) { e.impact = model }
}

// WithSpreadBps sets the full bid-ask spread in basis points of the market
// price. Half of it is charged toward the taker.
func WithSpreadBps(bps float64) Option {
	return func(e *Engine) { e.spreadBps = bps }
}

// WithExecutionDelay records a simulated order-to-fill latency. The delay is
// carried on the engine for reporting; fills still price off the current bar.
func WithExecutionDelay(delay time.Duration) Option {
	return func(e *Engine) { e.delay = delay }
}

// WithLogger sets the engine logger.
func WithLogger(log core.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine turns orders into fills. The fill price composes bid-ask spread,
// slippage and market impact; commission is computed on the resulting fill
// notional and carried on the fill, never folded into its price.
type Engine struct {
	slippage   SlippageModel
	commission CommissionModel
	impact     ImpactModel
	spreadBps  float64
	delay      time.Duration
	log        core.Logger
}

// NewEngine creates an execution engine. All cost slots default to no-op
// models.
func NewEngine(options ...Option) (*Engine, error) {
	engine := &Engine{
		slippage:   NoSlippage(),
		commission: NoCommission(),
		impact:     NoImpact(),
		log:        core.NewNopLogger(),
	}

	for _, option := range options {
		option(engine)
	}

	if engine.spreadBps < 0 {
		return nil, core.NewConfigError("execution.spread_bps", "must not be negative")
	}
	if engine.delay < 0 {
		return nil, core.NewConfigError("execution.delay_ms", "must not be negative")
	}

	return engine, nil
}

// ExecutionDelay returns the configured simulated latency.
func (e *Engine) ExecutionDelay() time.Duration {
	return e.delay
}

// ExecuteOrder fills an order against the current market price and bar
// volume. Buys cross the spread upward, sells downward, then slippage and
// impact push the price further against the taker.
func (e *Engine) ExecuteOrder(order core.Order, marketPrice, volume float64) (core.Fill, error) {
	if order.Quantity <= 0 {
		return core.Fill{}, core.ErrInvalidQuantity
	}

	halfSpread := marketPrice * e.spreadBps / 2 / 10000
	basePrice := marketPrice + signed(halfSpread, order.Side)

	fillPrice := basePrice +
		e.slippage.Slippage(order, basePrice, volume) +
		e.impact.Impact(order, basePrice, volume)

	fill := core.Fill{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		Commission: e.commission.Commission(order, fillPrice),
	}

	e.log.WithFields(map[string]any{
		"symbol":     fill.Symbol,
		"side":       fill.Side,
		"quantity":   fill.Quantity,
		"market":     marketPrice,
		"fill":       fill.Price,
		"commission": fill.Commission,
	}).Debug("order executed")

	return fill, nil
}
