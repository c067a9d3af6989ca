// Package metric aggregates completed trades and equity snapshots into
// performance statistics.
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfall/riskcore/core"
)

// SymbolSummary collects per-symbol trade statistics.
type SymbolSummary struct {
	Symbol     string
	Wins       []float64
	Losses     []float64
	RMultiples []float64
	Commission float64
}

// Trades returns the number of completed trades.
func (s *SymbolSummary) Trades() int {
	return len(s.Wins) + len(s.Losses)
}

// Profit returns the net PnL across all trades.
func (s *SymbolSummary) Profit() float64 {
	return sum(s.Wins) + sum(s.Losses)
}

// WinRate returns the fraction of trades that made money.
func (s *SymbolSummary) WinRate() float64 {
	if s.Trades() == 0 {
		return 0
	}
	return float64(len(s.Wins)) / float64(s.Trades())
}

// Payoff returns the ratio of average win to average loss.
func (s *SymbolSummary) Payoff() float64 {
	if len(s.Wins) == 0 || len(s.Losses) == 0 {
		return 0
	}
	avgLoss := stat.Mean(s.Losses, nil)
	if avgLoss == 0 {
		return 0
	}
	return stat.Mean(s.Wins, nil) / math.Abs(avgLoss)
}

// ProfitFactor returns the ratio of gross profit to gross loss.
func (s *SymbolSummary) ProfitFactor() float64 {
	grossLoss := sum(s.Losses)
	if grossLoss == 0 {
		return 0
	}
	return sum(s.Wins) / math.Abs(grossLoss)
}

// SQN returns the system quality number, sqrt(n) * mean / stddev of trade
// PnLs.
func (s *SymbolSummary) SQN() float64 {
	trades := append(append([]float64{}, s.Wins...), s.Losses...)
	if len(trades) < 2 {
		return 0
	}

	mean, std := stat.MeanStdDev(trades, nil)
	if std == 0 {
		return 0
	}
	return math.Sqrt(float64(len(trades))) * mean / std
}

// Aggregator receives trades and equity snapshots from the runtime and
// implements core.MetricsSink. It is not safe for concurrent use; parameter
// sweeps give each run its own aggregator.
type Aggregator struct {
	summaries map[string]*SymbolSummary
	symbols   []string
	equity    []core.Snapshot
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{summaries: make(map[string]*SymbolSummary)}
}

// OnTrade records a completed trade.
func (a *Aggregator) OnTrade(symbol string, result core.ExitResult) {
	summary, ok := a.summaries[symbol]
	if !ok {
		summary = &SymbolSummary{Symbol: symbol}
		a.summaries[symbol] = summary
		a.symbols = append(a.symbols, symbol)
	}

	if result.PNL >= 0 {
		summary.Wins = append(summary.Wins, result.PNL)
	} else {
		summary.Losses = append(summary.Losses, result.PNL)
	}
	summary.RMultiples = append(summary.RMultiples, result.RMultiple)
	summary.Commission += result.Commission
}

// OnEquity records an equity snapshot.
func (a *Aggregator) OnEquity(snapshot core.Snapshot) {
	a.equity = append(a.equity, snapshot)
}

// Summary returns the statistics for one symbol, or nil when it has no
// trades.
func (a *Aggregator) Summary(symbol string) *SymbolSummary {
	return a.summaries[symbol]
}

// Symbols returns traded symbols in first-trade order.
func (a *Aggregator) Symbols() []string {
	return a.symbols
}

// Equity returns the recorded snapshots in arrival order.
func (a *Aggregator) Equity() []core.Snapshot {
	return a.equity
}

// TotalProfit returns net PnL across all symbols.
func (a *Aggregator) TotalProfit() float64 {
	total := 0.0
	for _, summary := range a.summaries {
		total += summary.Profit()
	}
	return total
}

// TradeCount returns the number of completed trades across all symbols.
func (a *Aggregator) TradeCount() int {
	count := 0
	for _, summary := range a.summaries {
		count += summary.Trades()
	}
	return count
}

// WinRate returns the winning fraction across all symbols.
func (a *Aggregator) WinRate() float64 {
	wins, trades := 0, 0
	for _, summary := range a.summaries {
		wins += len(summary.Wins)
		trades += summary.Trades()
	}
	if trades == 0 {
		return 0
	}
	return float64(wins) / float64(trades)
}

// MaxDrawdown returns the largest peak-to-trough equity loss as a fraction
// of the peak.
func (a *Aggregator) MaxDrawdown() float64 {
	var peak, maxDrawdown float64
	for _, snapshot := range a.equity {
		if snapshot.Equity > peak {
			peak = snapshot.Equity
		}
		if peak <= 0 {
			continue
		}
		if drawdown := (peak - snapshot.Equity) / peak; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
