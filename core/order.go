package core

import "time"

// SideType represents the direction of an order (BUY or SELL)
type SideType string

// OrderType represents the type of order (MARKET, LIMIT, STOP)
type OrderType string

// Order side constants
const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// Order type constants
const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// Order is a transient trade intent, created per entry or exit and consumed
// by the execution engine.
type Order struct {
	Symbol   string
	Side     SideType
	Quantity float64
	Type     OrderType
	Time     time.Time
}

// Fill is the result of executing an order. It is immutable once produced:
// price already includes spread, slippage and market impact.
type Fill struct {
	Symbol     string
	Side       SideType
	Quantity   float64
	Price      float64
	Commission float64
}

// Notional returns the filled value in quote currency.
func (f Fill) Notional() float64 {
	return f.Quantity * f.Price
}
