package core

import (
	"fmt"
	"math"
	"time"
)

// Bar is a single OHLC price bar. PrevClose is carried explicitly so the
// true-range calculation does not depend on feed ordering.
type Bar struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	PrevClose float64
	Volume    float64
	Time      time.Time
}

// Validate reports whether the bar satisfies the input invariants:
// finite prices, High >= Low and PrevClose > 0. A non-nil return is
// always a *DataError.
func (b Bar) Validate() error {
	for name, v := range map[string]float64{
		"open":       b.Open,
		"high":       b.High,
		"low":        b.Low,
		"close":      b.Close,
		"prev_close": b.PrevClose,
		"volume":     b.Volume,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewDataError(fmt.Sprintf("bar %s is not finite", name))
		}
	}

	if b.High < b.Low {
		return NewDataError(fmt.Sprintf("bar high %f below low %f", b.High, b.Low))
	}

	if b.PrevClose <= 0 {
		return NewDataError(fmt.Sprintf("bar prev_close %f is not positive", b.PrevClose))
	}

	return nil
}
