package indicator

import (
	"math"
	"testing"

	"github.com/quantfall/riskcore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATR_RejectsNonPositivePeriod(t *testing.T) {
	_, err := NewATR(0)
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestATR_TrueRangeSelection(t *testing.T) {
	atr, err := NewATR(14)
	require.NoError(t, err)

	// Plain range: high-low dominates.
	v, err := atr.AddBar(105, 100, 102)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9)

	// Gap up: |high - prevClose| dominates.
	atr2, _ := NewATR(14)
	v, err = atr2.AddBar(120, 118, 100)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, v, 1e-9)

	// Gap down: |low - prevClose| dominates.
	atr3, _ := NewATR(14)
	v, err = atr3.AddBar(92, 90, 100)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v, 1e-9)
}

func TestATR_PartialMeanDuringWarmup(t *testing.T) {
	atr, err := NewATR(3)
	require.NoError(t, err)

	v, _ := atr.AddBar(104, 100, 102) // TR 4
	assert.InDelta(t, 4.0, v, 1e-9)

	v, _ = atr.AddBar(106, 100, 104) // TR 6
	assert.InDelta(t, 5.0, v, 1e-9)

	assert.False(t, atr.HasEnoughSamples(3))
	assert.True(t, atr.HasEnoughSamples(2))
}

func TestATR_WindowEviction(t *testing.T) {
	atr, err := NewATR(2)
	require.NoError(t, err)

	atr.AddBar(110, 100, 105) // TR 10
	atr.AddBar(104, 100, 102) // TR 4
	v, _ := atr.AddBar(106, 100, 104) // TR 6, evicts 10

	assert.InDelta(t, 5.0, v, 1e-9)
	assert.Equal(t, 2, atr.SampleCount())
}

func TestATR_ValueBoundedByWindowMax(t *testing.T) {
	atr, err := NewATR(5)
	require.NoError(t, err)

	bars := [][3]float64{
		{101, 99, 100}, {103, 100, 101}, {108, 102, 103},
		{107, 104, 106}, {110, 101, 107}, {109, 108, 108},
	}
	maxTR := 0.0
	for _, b := range bars {
		v, err := atr.AddBar(b[0], b[1], b[2])
		require.NoError(t, err)

		tr := math.Max(b[0]-b[1], math.Max(math.Abs(b[0]-b[2]), math.Abs(b[1]-b[2])))
		if tr > maxTR {
			maxTR = tr
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, maxTR)
	}
}

func TestATR_RejectsMalformedBars(t *testing.T) {
	atr, err := NewATR(3)
	require.NoError(t, err)

	atr.AddBar(104, 100, 102)
	before := atr.Value()

	var dataErr *core.DataError

	_, err = atr.AddBar(100, 104, 102) // high < low
	require.ErrorAs(t, err, &dataErr)

	_, err = atr.AddBar(math.NaN(), 100, 102)
	require.ErrorAs(t, err, &dataErr)

	_, err = atr.AddBar(104, math.Inf(-1), 102)
	require.ErrorAs(t, err, &dataErr)

	// Rejected bars leave the window untouched.
	assert.Equal(t, 1, atr.SampleCount())
	assert.Equal(t, before, atr.Value())
}
