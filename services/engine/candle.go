package engine

import (
	"sort"
	"time"
)

// Candle represents a single OHLCV bar. Immutable input to the simulation.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Symbol    string
	Exchange  string
}

// Date returns the trading date of the bar in UTC.
func (c Candle) Date() string {
	return c.Timestamp.UTC().Format("2006-01-02")
}

// Range returns the intrabar high-low spread.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// SortCandles orders candles by timestamp ascending. Stable so that bars
// sharing a timestamp keep their input order.
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// DetectGaps checks for missing intervals in sorted candles and returns the
// timestamp preceding each gap.
func DetectGaps(candles []Candle, expectedStep time.Duration) (gaps []time.Time) {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp.Sub(candles[i-1].Timestamp) > expectedStep {
			gaps = append(gaps, candles[i-1].Timestamp)
		}
	}
	return gaps
}
