package risk

import (
	"testing"
	"time"

	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/indicator"
	"github.com/quantfall/riskcore/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLong(t *testing.T, entry, size, atr, stopMult float64) *position.Position {
	t.Helper()
	tracker, err := position.NewTracker(stopMult, core.NewNopLogger())
	require.NoError(t, err)
	pos, err := tracker.Enter(core.Fill{Price: entry, Quantity: size}, atr, true, time.Now())
	require.NoError(t, err)
	return pos
}

func openShort(t *testing.T, entry, size, atr, stopMult float64) *position.Position {
	t.Helper()
	tracker, err := position.NewTracker(stopMult, core.NewNopLogger())
	require.NoError(t, err)
	pos, err := tracker.Enter(core.Fill{Price: entry, Quantity: size}, atr, false, time.Now())
	require.NoError(t, err)
	return pos
}

func staticATRTrailing(t *testing.T, multiplier, activationR float64) *TrailingStop {
	t.Helper()
	ts, err := NewTrailingStop(TrailingConfig{
		Enabled:             true,
		Type:                TrailingTypeATR,
		Multiplier:          multiplier,
		ActivationRMultiple: activationR,
	}, nil, core.NewNopLogger())
	require.NoError(t, err)
	return ts
}

func TestNewTrailingStop_ConfigValidation(t *testing.T) {
	var cfgErr *core.ConfigError

	_, err := NewTrailingStop(TrailingConfig{Enabled: true, Type: "fibonacci"}, nil, nil)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewTrailingStop(TrailingConfig{Enabled: true, Type: TrailingTypeATR, Multiplier: 0}, nil, nil)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewTrailingStop(TrailingConfig{Enabled: true, Type: TrailingTypePercent, Percent: 1.5}, nil, nil)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewTrailingStop(TrailingConfig{
		Enabled: true, Type: TrailingTypeATR, Multiplier: 2,
		UseDynamicATR: true, DynamicATRMinSamples: 0,
	}, nil, nil)
	require.ErrorAs(t, err, &cfgErr)
}

func TestTrailingStop_NeverLoosensLong(t *testing.T) {
	ts := staticATRTrailing(t, 2.0, 0)
	pos := openLong(t, 100, 10, 2.0, 2.0) // stop 96, distance 4

	prices := []float64{102, 105, 103, 108, 104, 110, 101}
	lastStop := *pos.StopPrice
	for _, price := range prices {
		ts.Update(pos, price)
		require.NotNil(t, pos.StopPrice)
		assert.GreaterOrEqual(t, *pos.StopPrice, lastStop, "stop loosened at price %f", price)
		lastStop = *pos.StopPrice
	}

	// Highest price seen is 110 -> stop 106.
	assert.InDelta(t, 106.0, *pos.StopPrice, 1e-9)
}

func TestTrailingStop_NeverLoosensShort(t *testing.T) {
	ts := staticATRTrailing(t, 2.0, 0)
	pos := openShort(t, 100, 10, 2.0, 2.0) // stop 104, distance 4

	prices := []float64{98, 95, 97, 92, 96, 90, 99}
	lastStop := *pos.StopPrice
	for _, price := range prices {
		ts.Update(pos, price)
		require.NotNil(t, pos.StopPrice)
		assert.LessOrEqual(t, *pos.StopPrice, lastStop, "stop loosened at price %f", price)
		lastStop = *pos.StopPrice
	}

	assert.InDelta(t, 94.0, *pos.StopPrice, 1e-9)
}

func TestTrailingStop_ActivationGate(t *testing.T) {
	// activation 2R: initial risk 40, so trailing starts at +80 profit.
	ts := staticATRTrailing(t, 2.0, 2.0)
	pos := openLong(t, 100, 10, 2.0, 2.0)

	// +50 profit: below the gate, entry stop untouched.
	assert.Nil(t, ts.Update(pos, 105))
	assert.InDelta(t, 96.0, *pos.StopPrice, 1e-9)

	// +100 profit: gate passed, stop moves to 110 - 4.
	updated := ts.Update(pos, 110)
	require.NotNil(t, updated)
	assert.InDelta(t, 106.0, *updated, 1e-9)
}

func TestTrailingStop_UnchangedReturnsNil(t *testing.T) {
	ts := staticATRTrailing(t, 2.0, 0)
	pos := openLong(t, 100, 10, 2.0, 2.0)

	require.NotNil(t, ts.Update(pos, 110))
	// Lower price produces a worse candidate: no movement, nil result.
	assert.Nil(t, ts.Update(pos, 108))
	assert.InDelta(t, 106.0, *pos.StopPrice, 1e-9)
}

func TestTrailingStop_DynamicFallsBackUntilWarm(t *testing.T) {
	atr, err := indicator.NewATR(14)
	require.NoError(t, err)

	ts, err := NewTrailingStop(TrailingConfig{
		Enabled:              true,
		Type:                 TrailingTypeATR,
		Multiplier:           2.0,
		UseDynamicATR:        true,
		DynamicATRMinSamples: 3,
	}, atr, core.NewNopLogger())
	require.NoError(t, err)

	pos := openLong(t, 100, 10, 2.0, 2.0)

	// One sample: not enough, entry ATR applies.
	atr.AddBar(110, 104, 107)
	assert.InDelta(t, 4.0, ts.Distance(pos, 110), 1e-9)

	// Warmed up: the live ATR takes over. TRs are 6, 6, 6 -> ATR 6.
	atr.AddBar(112, 106, 109)
	atr.AddBar(114, 108, 111)
	assert.InDelta(t, 12.0, ts.Distance(pos, 114), 1e-9)
}

func TestTrailingStop_PercentDistance(t *testing.T) {
	ts, err := NewTrailingStop(TrailingConfig{
		Enabled: true,
		Type:    TrailingTypePercent,
		Percent: 0.05,
	}, nil, core.NewNopLogger())
	require.NoError(t, err)

	pos := openLong(t, 100, 10, 2.0, 2.0)
	assert.InDelta(t, 10.0, ts.Distance(pos, 200), 1e-9)
}

func TestTrailingStop_DisabledDoesNothing(t *testing.T) {
	ts, err := NewTrailingStop(TrailingConfig{
		Enabled:    false,
		Type:       TrailingTypeATR,
		Multiplier: 2.0,
	}, nil, core.NewNopLogger())
	require.NoError(t, err)

	pos := openLong(t, 100, 10, 2.0, 2.0)
	assert.Nil(t, ts.Update(pos, 150))
	assert.Zero(t, ts.Distance(pos, 150))
	assert.InDelta(t, 96.0, *pos.StopPrice, 1e-9)
}

func TestStopHit_BoundaryInclusive(t *testing.T) {
	long := openLong(t, 100, 10, 2.0, 2.0) // stop 96

	assert.False(t, StopHit(long, 101, 96.01))
	assert.True(t, StopHit(long, 101, 96.0)) // equality is a hit
	assert.True(t, StopHit(long, 101, 95.0))

	short := openShort(t, 100, 10, 2.0, 2.0) // stop 104

	assert.False(t, StopHit(short, 103.99, 99))
	assert.True(t, StopHit(short, 104.0, 99))
	assert.True(t, StopHit(short, 105.0, 99))

	// No stop set: never a hit.
	noStop := openLong(t, 100, 10, 0, 2.0)
	assert.False(t, StopHit(noStop, 101, 0))
}
