// Package feed loads historical bars from CSV files and replays them into
// the runtime.
package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"

	"github.com/quantfall/riskcore/core"
)

// ---------------------
// Constants and Errors
// ---------------------

var (
	// ErrInsufficientData is returned when a symbol has no bars loaded.
	ErrInsufficientData = errors.New("insufficient data")

	// defaultHeaderMap defines the standard CSV column mapping
	defaultHeaderMap = map[string]int{
		"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
	}
)

// ---------------------
// Types
// ---------------------

// SymbolFeed describes one CSV source file.
type SymbolFeed struct {
	Symbol    string
	File      string
	Timeframe string
}

// CSVFeed reads bars from CSV files, resamples them to a target timeframe
// and chains PrevClose across consecutive bars. It implements core.Feeder.
type CSVFeed struct {
	feeds map[string]SymbolFeed
	bars  map[string][]core.Bar
}

// ---------------------
// Constructor
// ---------------------

// NewCSVFeed loads every source file and resamples it to the target
// timeframe.
func NewCSVFeed(targetTimeframe string, feeds ...SymbolFeed) (*CSVFeed, error) {
	csvFeed := &CSVFeed{
		feeds: make(map[string]SymbolFeed),
		bars:  make(map[string][]core.Bar),
	}

	for _, feed := range feeds {
		csvFeed.feeds[feed.Symbol] = feed

		bars, err := readBarsFromCSV(feed)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feed.Symbol, err)
		}

		bars, err = resampleBars(bars, feed.Timeframe, targetTimeframe)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feed.Symbol, err)
		}

		chainPrevClose(bars)
		csvFeed.bars[feed.Symbol] = bars
	}

	return csvFeed, nil
}

// ---------------------
// CSV Processing
// ---------------------

// readBarsFromCSV reads and parses one source file.
func readBarsFromCSV(feed SymbolFeed) ([]core.Bar, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(csvLines) == 0 {
		return nil, ErrInsufficientData
	}

	headerMap, hasCustomHeaders := parseHeaders(csvLines[0])
	if hasCustomHeaders {
		csvLines = csvLines[1:]
	}

	bars := make([]core.Bar, 0, len(csvLines))
	for _, line := range csvLines {
		bar, err := parseBarFromLine(line, headerMap, feed.Symbol)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// parseHeaders analyzes CSV headers and returns an index map
func parseHeaders(headers []string) (headerMap map[string]int, hasCustomHeaders bool) {
	// A numeric first cell means the file has no header row.
	if _, err := strconv.Atoi(headers[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap = make(map[string]int)
	for index, header := range headers {
		headerMap[header] = index
	}

	return headerMap, true
}

// parseBarFromLine parses a CSV line and creates a bar
func parseBarFromLine(line []string, headerMap map[string]int, symbol string) (core.Bar, error) {
	timestamp, err := strconv.Atoi(line[headerMap["time"]])
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{
		Symbol: symbol,
		Time:   time.Unix(int64(timestamp), 0).UTC(),
	}

	if bar.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Bar{}, err
	}

	if bar.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Bar{}, err
	}

	if bar.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Bar{}, err
	}

	if bar.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Bar{}, err
	}

	if bar.Volume, err = strconv.ParseFloat(line[headerMap["volume"]], 64); err != nil {
		return core.Bar{}, err
	}

	return bar, nil
}

// chainPrevClose links each bar to its predecessor's close. The first bar
// has no predecessor and uses its own open.
func chainPrevClose(bars []core.Bar) {
	for i := range bars {
		if i == 0 {
			bars[i].PrevClose = bars[i].Open
			continue
		}
		bars[i].PrevClose = bars[i-1].Close
	}
}

// ---------------------
// Timeframe Handling
// ---------------------

// isFirstBarPeriod checks if a bar is the first in a period
func isFirstBarPeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	prev := t.Add(-fromDuration).UTC()
	return isLastBarPeriod(prev, fromTimeframe, targetTimeframe)
}

// isLastBarPeriod checks if a bar is the last in a period
func isLastBarPeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	if fromTimeframe == targetTimeframe {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	next := t.Add(fromDuration).UTC()
	return isTimeOnPeriodBoundary(next, targetTimeframe)
}

// isTimeOnPeriodBoundary checks if a timestamp is on a period boundary
func isTimeOnPeriodBoundary(t time.Time, targetTimeframe string) (bool, error) {
	switch targetTimeframe {
	case "1m":
		return t.Second() == 0, nil
	case "5m":
		return t.Minute()%5 == 0 && t.Second() == 0, nil
	case "10m":
		return t.Minute()%10 == 0 && t.Second() == 0, nil
	case "15m":
		return t.Minute()%15 == 0 && t.Second() == 0, nil
	case "30m":
		return t.Minute()%30 == 0 && t.Second() == 0, nil
	case "1h":
		return t.Minute() == 0 && t.Second() == 0, nil
	case "2h":
		return t.Hour()%2 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "4h":
		return t.Hour()%4 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "12h":
		return t.Hour()%12 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1d":
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1w":
		return t.Weekday() == time.Sunday && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	default:
		return false, fmt.Errorf("invalid timeframe: %s", targetTimeframe)
	}
}

// ---------------------
// Resampling
// ---------------------

// resampleBars groups source bars into target-timeframe periods.
func resampleBars(sourceBars []core.Bar, sourceTimeframe, targetTimeframe string) ([]core.Bar, error) {
	if sourceTimeframe == targetTimeframe || len(sourceBars) == 0 {
		return sourceBars, nil
	}

	startIdx, err := findFirstPeriodBar(sourceBars, sourceTimeframe, targetTimeframe)
	if err != nil {
		return nil, err
	}
	sourceBars = sourceBars[startIdx:]

	targetBars := make([]core.Bar, 0, len(sourceBars)/4)

	var currentBar core.Bar
	inPeriod := false

	for _, bar := range sourceBars {
		isLast, err := isLastBarPeriod(bar.Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}

		if !inPeriod {
			currentBar = bar
			inPeriod = true
		} else {
			currentBar.High = math.Max(currentBar.High, bar.High)
			currentBar.Low = math.Min(currentBar.Low, bar.Low)
			currentBar.Close = bar.Close
			currentBar.Volume += bar.Volume
		}

		if isLast {
			targetBars = append(targetBars, currentBar)
			inPeriod = false
		}
	}

	// An unfinished trailing period is dropped.
	return targetBars, nil
}

// findFirstPeriodBar finds the index of the first bar that starts a period
func findFirstPeriodBar(bars []core.Bar, sourceTimeframe, targetTimeframe string) (int, error) {
	for i := range bars {
		isFirst, err := isFirstBarPeriod(bars[i].Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return 0, err
		}
		if isFirst {
			return i, nil
		}
	}
	return 0, nil
}

// ---------------------
// API Methods
// ---------------------

// Limit keeps only the trailing window of the given duration for every
// symbol.
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for symbol, bars := range c.bars {
		if len(bars) == 0 {
			continue
		}

		start := bars[len(bars)-1].Time.Add(-duration)
		c.bars[symbol] = lo.Filter(bars, func(bar core.Bar, _ int) bool {
			return bar.Time.After(start)
		})
		chainPrevClose(c.bars[symbol])
	}
	return c
}

// Symbols returns the loaded symbols.
func (c *CSVFeed) Symbols() []string {
	return lo.Keys(c.bars)
}

// Bars returns the full bar history for a symbol.
func (c *CSVFeed) Bars(_ context.Context, symbol string) ([]core.Bar, error) {
	bars, ok := c.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, symbol)
	}
	return bars, nil
}
