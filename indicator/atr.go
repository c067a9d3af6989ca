// Package indicator provides the rolling volatility measures used by the
// runtime's risk components.
package indicator

import (
	"fmt"
	"math"

	"github.com/quantfall/riskcore/core"
)

// ATR is a rolling average true range over a fixed window. The window holds
// at most `period` true-range values; before warm-up the value is the mean of
// the partial window. A running sum keeps AddBar O(1).
type ATR struct {
	period     int
	trueRanges []float64
	head       int
	sum        float64
}

// NewATR creates an ATR indicator. The period must be positive.
func NewATR(period int) (*ATR, error) {
	if period <= 0 {
		return nil, core.NewConfigError("atr_period", "must be positive")
	}
	return &ATR{
		period:     period,
		trueRanges: make([]float64, 0, period),
	}, nil
}

// AddBar pushes one bar's true range into the window and returns the updated
// ATR value. Non-finite inputs or high < low are rejected with a *DataError
// and leave the window untouched.
func (a *ATR) AddBar(high, low, prevClose float64) (float64, error) {
	for name, v := range map[string]float64{"high": high, "low": low, "prev_close": prevClose} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return a.Value(), core.NewDataError(fmt.Sprintf("%s is not finite", name))
		}
	}
	if high < low {
		return a.Value(), core.NewDataError(fmt.Sprintf("high %f below low %f", high, low))
	}

	trueRange := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))

	if len(a.trueRanges) < a.period {
		a.trueRanges = append(a.trueRanges, trueRange)
	} else {
		// Window full: evict the oldest value in place.
		a.sum -= a.trueRanges[a.head]
		a.trueRanges[a.head] = trueRange
		a.head = (a.head + 1) % a.period
	}
	a.sum += trueRange

	return a.Value(), nil
}

// Value returns the arithmetic mean of the current window, or 0 when empty.
func (a *ATR) Value() float64 {
	if len(a.trueRanges) == 0 {
		return 0
	}
	return a.sum / float64(len(a.trueRanges))
}

// SampleCount returns the number of true ranges currently in the window.
func (a *ATR) SampleCount() int {
	return len(a.trueRanges)
}

// HasEnoughSamples reports whether at least minSamples bars were observed.
func (a *ATR) HasEnoughSamples(minSamples int) bool {
	return len(a.trueRanges) >= minSamples
}

// Period returns the configured window capacity.
func (a *ATR) Period() int {
	return a.period
}
