package core

import (
	"time"
)

// Dataframe is a time series container for bar and custom indicator data.
// The runtime appends one row per processed bar; strategies read from it.
type Dataframe struct {
	Symbol string

	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Close  Series[float64]
	Volume Series[float64]

	Time       []time.Time
	LastUpdate time.Time

	// Custom user metadata for indicators
	Metadata map[string]Series[float64]
}

// NewDataframe creates an empty dataframe for a symbol.
func NewDataframe(symbol string) *Dataframe {
	return &Dataframe{
		Symbol:   symbol,
		Metadata: make(map[string]Series[float64]),
	}
}

// Push appends a bar to the dataframe.
func (df *Dataframe) Push(bar Bar) {
	df.Open = append(df.Open, bar.Open)
	df.High = append(df.High, bar.High)
	df.Low = append(df.Low, bar.Low)
	df.Close = append(df.Close, bar.Close)
	df.Volume = append(df.Volume, bar.Volume)
	df.Time = append(df.Time, bar.Time)
	df.LastUpdate = bar.Time
}

// Len returns the number of rows in the dataframe.
func (df *Dataframe) Len() int {
	return len(df.Time)
}

// Sample returns a subset of the dataframe with the last 'positions' elements
// Used for windowing operations on a dataframe
func (df Dataframe) Sample(positions int) Dataframe {
	size := len(df.Time)
	start := size - positions

	// Return the entire dataframe if requested sample is larger than dataframe
	if start <= 0 {
		return df
	}

	sample := Dataframe{
		Symbol:     df.Symbol,
		Open:       df.Open.LastValues(positions),
		High:       df.High.LastValues(positions),
		Low:        df.Low.LastValues(positions),
		Close:      df.Close.LastValues(positions),
		Volume:     df.Volume.LastValues(positions),
		Time:       df.Time[start:],
		LastUpdate: df.LastUpdate,
		Metadata:   make(map[string]Series[float64]),
	}

	// Also copy metadata series
	for key := range df.Metadata {
		sample.Metadata[key] = df.Metadata[key].LastValues(positions)
	}

	return sample
}
