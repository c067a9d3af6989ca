package metric

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/riskcore/core"
)

func TestAggregator_SymbolSummary(t *testing.T) {
	agg := NewAggregator()

	agg.OnTrade("SPY", core.ExitResult{PNL: 100, RMultiple: 2.0, Commission: 1})
	agg.OnTrade("SPY", core.ExitResult{PNL: 50, RMultiple: 1.0, Commission: 1})
	agg.OnTrade("SPY", core.ExitResult{PNL: -50, RMultiple: -1.0, Commission: 1})

	summary := agg.Summary("SPY")
	require.NotNil(t, summary)

	assert.Equal(t, 3, summary.Trades())
	assert.Equal(t, 100.0, summary.Profit())
	assert.InDelta(t, 2.0/3.0, summary.WinRate(), 1e-9)
	// Average win 75, average loss 50.
	assert.InDelta(t, 1.5, summary.Payoff(), 1e-9)
	// Gross profit 150, gross loss 50.
	assert.InDelta(t, 3.0, summary.ProfitFactor(), 1e-9)
	assert.Equal(t, 3.0, summary.Commission)
	assert.NotZero(t, summary.SQN())
}

func TestAggregator_ZeroTradesSafe(t *testing.T) {
	agg := NewAggregator()

	assert.Nil(t, agg.Summary("SPY"))
	assert.Zero(t, agg.WinRate())
	assert.Zero(t, agg.TotalProfit())
	assert.Zero(t, agg.TradeCount())
	assert.Zero(t, agg.MaxDrawdown())
}

func TestAggregator_BreakEvenCountsAsWin(t *testing.T) {
	agg := NewAggregator()
	agg.OnTrade("SPY", core.ExitResult{PNL: 0, RMultiple: 0})

	summary := agg.Summary("SPY")
	assert.Equal(t, 1, len(summary.Wins))
	assert.Zero(t, summary.ProfitFactor())
}

func TestAggregator_MaxDrawdown(t *testing.T) {
	agg := NewAggregator()
	now := time.Now()

	for i, equity := range []float64{1000, 1200, 900, 1100, 800} {
		agg.OnEquity(core.Snapshot{Equity: equity, Time: now.Add(time.Duration(i) * time.Minute)})
	}

	// Worst trough is 800 off the 1200 peak.
	assert.InDelta(t, 400.0/1200.0, agg.MaxDrawdown(), 1e-9)
	assert.Len(t, agg.Equity(), 5)
}

func TestAggregator_WriteSummary(t *testing.T) {
	agg := NewAggregator()
	agg.OnTrade("SPY", core.ExitResult{PNL: 100, RMultiple: 2.0})
	agg.OnTrade("QQQ", core.ExitResult{PNL: -40, RMultiple: -1.0})
	agg.OnEquity(core.Snapshot{Equity: 1000, Time: time.Now()})

	var buf bytes.Buffer
	require.NoError(t, agg.WriteSummary(&buf))

	out := buf.String()
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "QQQ")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "R-MULTIPLES")
}
