package core

import "time"

// ExitResult is the immutable, terminal record of a closed trade.
type ExitResult struct {
	PNL        float64 `json:"pnl"`
	RMultiple  float64 `json:"r_multiple"`
	TotalPNL   float64 `json:"total_pnl"`
	Commission float64 `json:"commission"`
	Reason     string  `json:"reason"`
}

// Exit reason constants
const (
	ReasonTrailingStop = "trailing_stop"
	ReasonPartialExit  = "partial_exit"
	ReasonSignal       = "signal"
	ReasonManual       = "manual"
	ReasonEndOfData    = "end_of_data"
)

// BarProcessResult summarizes what happened while processing one bar.
type BarProcessResult struct {
	ATR        float64
	StopHit    bool
	StopPrice  *float64
	ExitResult *ExitResult
}

// Snapshot is a point-in-time view of the portfolio used by the kill-switch
// triggers. Values derived from history (volatility, VaR) are filled by the
// trigger evaluators themselves.
type Snapshot struct {
	Equity            float64
	PeakEquity        float64
	RealizedLoss      float64
	RollingVolatility float64
	VaREstimate       float64
	Time              time.Time
}

// TradeRecord is the persisted form of a completed trade.
type TradeRecord struct {
	ID         int64     `json:"id" gorm:"primaryKey,autoIncrement"`
	Symbol     string    `json:"symbol"`
	Side       SideType  `json:"side"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PNL        float64   `json:"pnl"`
	RMultiple  float64   `json:"r_multiple"`
	Commission float64   `json:"commission"`
	Reason     string    `json:"reason"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
}
