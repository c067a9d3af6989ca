package position

import (
	"testing"
	"time"

	"github.com/quantfall/riskcore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T, stopMult float64) *Tracker {
	t.Helper()
	tracker, err := NewTracker(stopMult, core.NewNopLogger())
	require.NoError(t, err)
	return tracker
}

func TestTracker_EnterSetsInitialStop(t *testing.T) {
	tracker := newTracker(t, 2.0)

	pos, err := tracker.Enter(core.Fill{Price: 100, Quantity: 10}, 2.0, true, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 96.0, pos.InitialStop)
	require.NotNil(t, pos.StopPrice)
	assert.Equal(t, 96.0, *pos.StopPrice)
	assert.Equal(t, 40.0, pos.InitialRisk())
}

func TestTracker_EnterShortStopAboveEntry(t *testing.T) {
	tracker := newTracker(t, 1.5)

	pos, err := tracker.Enter(core.Fill{Price: 50, Quantity: 4}, 2.0, false, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 53.0, pos.InitialStop)
	assert.Equal(t, 12.0, pos.InitialRisk())
}

func TestTracker_DoubleEnterFails(t *testing.T) {
	tracker := newTracker(t, 2.0)

	_, err := tracker.Enter(core.Fill{Price: 100, Quantity: 10}, 2.0, true, time.Now())
	require.NoError(t, err)

	_, err = tracker.Enter(core.Fill{Price: 101, Quantity: 5}, 2.0, true, time.Now())
	require.ErrorIs(t, err, core.ErrPositionExists)

	var stateErr *core.StateError
	require.ErrorAs(t, err, &stateErr)
}

func TestTracker_ExitWithoutPositionFails(t *testing.T) {
	tracker := newTracker(t, 2.0)

	_, err := tracker.Exit(core.Fill{Price: 100}, core.ReasonManual)
	require.ErrorIs(t, err, core.ErrNoPosition)
}

func TestTracker_RoundTripZeroCostIsFlat(t *testing.T) {
	tracker := newTracker(t, 2.0)

	_, err := tracker.Enter(core.Fill{Price: 100, Quantity: 10}, 2.0, true, time.Now())
	require.NoError(t, err)

	result, err := tracker.Exit(core.Fill{Price: 100}, core.ReasonManual)
	require.NoError(t, err)

	assert.Zero(t, result.PNL)
	assert.Zero(t, result.RMultiple)
	assert.Zero(t, tracker.RealizedPNL())
	assert.Nil(t, tracker.Position())
}

func TestTracker_ExitComputesPNLAndRMultiple(t *testing.T) {
	tracker := newTracker(t, 2.0)

	// entry 100, ATR 2, mult 2 -> stop 96, risk/share 4, total 40.
	_, err := tracker.Enter(core.Fill{Price: 100, Quantity: 10, Commission: 1}, 2.0, true, time.Now())
	require.NoError(t, err)

	result, err := tracker.Exit(core.Fill{Price: 110, Commission: 1}, core.ReasonSignal)
	require.NoError(t, err)

	assert.InDelta(t, 99.0, result.PNL, 1e-9) // 10*10 - 1
	assert.InDelta(t, 99.0/40.0, result.RMultiple, 1e-9)
	assert.InDelta(t, 97.0, result.TotalPNL, 1e-9) // minus entry commission too
}

func TestTracker_ShortExitPNL(t *testing.T) {
	tracker := newTracker(t, 1.0)

	_, err := tracker.Enter(core.Fill{Price: 200, Quantity: 5}, 4.0, false, time.Now())
	require.NoError(t, err)

	result, err := tracker.Exit(core.Fill{Price: 190}, core.ReasonSignal)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, result.PNL, 1e-9)
	assert.InDelta(t, 2.5, result.RMultiple, 1e-9) // risk/share 4, qty 5 -> 20
}

func TestTracker_ZeroRiskYieldsZeroRMultiple(t *testing.T) {
	tracker := newTracker(t, 2.0)

	// ATR 0 at entry: no stop distance, r-multiple pinned to 0.
	pos, err := tracker.Enter(core.Fill{Price: 100, Quantity: 10}, 0, true, time.Now())
	require.NoError(t, err)
	assert.Nil(t, pos.StopPrice)

	result, err := tracker.Exit(core.Fill{Price: 105}, core.ReasonSignal)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, result.PNL, 1e-9)
	assert.Zero(t, result.RMultiple)
}

func TestTracker_PartialExitKeepsRiskBasis(t *testing.T) {
	tracker := newTracker(t, 2.0)

	_, err := tracker.Enter(core.Fill{Price: 100, Quantity: 10}, 2.0, true, time.Now())
	require.NoError(t, err)

	result, err := tracker.ExitPartial(core.Fill{Price: 104}, 5, core.ReasonPartialExit)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, result.PNL, 1e-9)
	assert.InDelta(t, 1.0, result.RMultiple, 1e-9) // 20 / (4 * 5)

	pos := tracker.Position()
	require.NotNil(t, pos)
	assert.Equal(t, 5.0, pos.Size)
	assert.Equal(t, 40.0, pos.InitialRisk()) // risk basis unchanged

	// Closing the remainder destroys the position.
	_, err = tracker.Exit(core.Fill{Price: 104}, core.ReasonSignal)
	require.NoError(t, err)
	assert.Nil(t, tracker.Position())
}

func TestTracker_PartialExitBounds(t *testing.T) {
	tracker := newTracker(t, 2.0)

	_, err := tracker.ExitPartial(core.Fill{Price: 100}, 5, core.ReasonPartialExit)
	require.ErrorIs(t, err, core.ErrNoPosition)

	_, err = tracker.Enter(core.Fill{Price: 100, Quantity: 10}, 2.0, true, time.Now())
	require.NoError(t, err)

	_, err = tracker.ExitPartial(core.Fill{Price: 100}, 10, core.ReasonPartialExit)
	require.ErrorIs(t, err, core.ErrInvalidQuantity)
}
