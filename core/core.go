package core

import (
	"context"
)

// Feeder yields validated bars in chronological order.
// Implementations are expected to validate bars before handing them to the
// runtime (see Bar.Validate).
type Feeder interface {
	// Bars returns the full bar history for a symbol, oldest first.
	Bars(ctx context.Context, symbol string) ([]Bar, error)
}

// Strategy produces entry signals for the runtime. The runtime owns position
// sizing, execution and risk management; a strategy only decides direction.
type Strategy interface {
	// WarmupPeriod is the number of bars required before signals are meaningful.
	WarmupPeriod() int
	// OnBar inspects the dataframe, already updated with the current bar, and
	// returns an entry signal. A zero Signal means no action.
	OnBar(df *Dataframe) Signal
}

// Signal is an entry intent produced by a Strategy.
type Signal struct {
	Enter  bool
	IsLong bool
}

// TradeStorage persists completed trade records.
type TradeStorage interface {
	SaveTrade(ctx context.Context, trade *TradeRecord) error
	Trades(ctx context.Context, filters ...TradeFilter) ([]*TradeRecord, error)
}

// TradeFilter selects trade records on retrieval.
type TradeFilter func(trade TradeRecord) bool

// MetricsSink receives completed trades and equity snapshots from the runtime.
// The push is one-way; the runtime never reads back from the sink.
type MetricsSink interface {
	OnTrade(symbol string, result ExitResult)
	OnEquity(snapshot Snapshot)
}

// WithSymbol filters trade records by symbol.
func WithSymbol(symbol string) TradeFilter {
	return func(trade TradeRecord) bool {
		return trade.Symbol == symbol
	}
}

// WithReason filters trade records by exit reason.
func WithReason(reason string) TradeFilter {
	return func(trade TradeRecord) bool {
		return trade.Reason == reason
	}
}
