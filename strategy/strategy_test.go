package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/riskcore/core"
)

func pushBar(df *core.Dataframe, open, high, low, closePrice float64) {
	df.Push(core.Bar{
		Symbol: df.Symbol,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: 1000,
		Time:   time.Now(),
	})
}

func flatFrame(symbol string, bars int) *core.Dataframe {
	df := core.NewDataframe(symbol)
	for i := 0; i < bars; i++ {
		pushBar(df, 100, 101, 99, 100)
	}
	return df
}

func TestEMACross_ConfigValidation(t *testing.T) {
	var cfgErr *core.ConfigError

	_, err := NewEMACross(0, 21)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewEMACross(21, 9)
	require.ErrorAs(t, err, &cfgErr)
}

func TestEMACross_NoSignalBeforeWarmup(t *testing.T) {
	s, err := NewEMACross(3, 5)
	require.NoError(t, err)

	df := flatFrame("SPY", s.WarmupPeriod()-1)
	assert.Equal(t, core.Signal{}, s.OnBar(df))
}

func TestEMACross_LongOnUpwardCross(t *testing.T) {
	s, err := NewEMACross(3, 5)
	require.NoError(t, err)

	df := core.NewDataframe("SPY")
	// A steady decline keeps the fast EMA below the slow one.
	price := 100.0
	for i := 0; i < 12; i++ {
		pushBar(df, price, price+1, price-1, price)
		price--
	}
	assert.Equal(t, core.Signal{}, s.OnBar(df))

	// A violent rally yanks the fast EMA across.
	pushBar(df, 150, 151, 149, 150)
	assert.Equal(t, core.Signal{Enter: true, IsLong: true}, s.OnBar(df))
}

func TestEMACross_ShortOnDownwardCross(t *testing.T) {
	s, err := NewEMACross(3, 5)
	require.NoError(t, err)

	df := core.NewDataframe("SPY")
	price := 100.0
	for i := 0; i < 12; i++ {
		pushBar(df, price, price+1, price-1, price)
		price++
	}
	assert.Equal(t, core.Signal{}, s.OnBar(df))

	pushBar(df, 60, 61, 59, 60)
	assert.Equal(t, core.Signal{Enter: true, IsLong: false}, s.OnBar(df))
}

func validBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		LookbackPeriod:  5,
		Multiplier:      1.0,
		ATRPeriod:       3,
		MinATRThreshold: 0,
		Direction:       DirectionBoth,
	}
}

func TestBreakout_ConfigValidation(t *testing.T) {
	var cfgErr *core.ConfigError

	cfg := validBreakoutConfig()
	cfg.LookbackPeriod = 1
	_, err := NewBreakout(cfg)
	require.ErrorAs(t, err, &cfgErr)

	cfg = validBreakoutConfig()
	cfg.Direction = "sideways"
	_, err = NewBreakout(cfg)
	require.ErrorAs(t, err, &cfgErr)
}

func TestBreakout_LongOnRangeBreak(t *testing.T) {
	s, err := NewBreakout(validBreakoutConfig())
	require.NoError(t, err)

	// Flat range: highs 101, lows 99, ATR settles at 2.
	df := flatFrame("SPY", 10)
	assert.Equal(t, core.Signal{}, s.OnBar(df))

	// High must clear 101 + 1*ATR; 105 does.
	pushBar(df, 100, 105, 100, 104)
	assert.Equal(t, core.Signal{Enter: true, IsLong: true}, s.OnBar(df))
}

func TestBreakout_ShortOnRangeBreak(t *testing.T) {
	s, err := NewBreakout(validBreakoutConfig())
	require.NoError(t, err)

	df := flatFrame("SPY", 10)

	pushBar(df, 100, 100, 95, 96)
	assert.Equal(t, core.Signal{Enter: true, IsLong: false}, s.OnBar(df))
}

func TestBreakout_DirectionFilter(t *testing.T) {
	cfg := validBreakoutConfig()
	cfg.Direction = DirectionLong
	s, err := NewBreakout(cfg)
	require.NoError(t, err)

	df := flatFrame("SPY", 10)
	pushBar(df, 100, 100, 95, 96)

	// A downside break is ignored by a long-only strategy.
	assert.Equal(t, core.Signal{}, s.OnBar(df))
}

func TestBreakout_QuietMarketFiltered(t *testing.T) {
	cfg := validBreakoutConfig()
	cfg.MinATRThreshold = 10
	s, err := NewBreakout(cfg)
	require.NoError(t, err)

	df := flatFrame("SPY", 10)
	pushBar(df, 100, 105, 100, 104)

	// ATR of roughly 2 sits under the 10 threshold.
	assert.Equal(t, core.Signal{}, s.OnBar(df))
}
