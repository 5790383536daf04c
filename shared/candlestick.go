package shared

import (
	"math"
	"time"
)

// Candlestick represents a unit candlestick for a market. A candlestick is
// immutable once closed; only the worker owning the in-progress candle for a
// timeframe mutates it, tick by tick, before freezing it on the bucket
// boundary.
type Candlestick struct {
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata fields.
	Market    string
	Timeframe Timeframe
}

// TickEvent represents a unit market trade update. Ticks are transient and
// consumed once by the worker owning their symbol.
type TickEvent struct {
	Market    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// TrueRange returns the true range of the candlestick given the previous
// close.
func (c *Candlestick) TrueRange(prevClose float64) float64 {
	return math.Max(c.High-c.Low,
		math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// Closes extracts the close series from the provided candlesticks.
func Closes(candles []Candlestick) []float64 {
	closes := make([]float64, len(candles))
	for idx := range candles {
		closes[idx] = candles[idx].Close
	}

	return closes
}

// Volumes extracts the volume series from the provided candlesticks.
func Volumes(candles []Candlestick) []float64 {
	volumes := make([]float64, len(candles))
	for idx := range candles {
		volumes[idx] = candles[idx].Volume
	}

	return volumes
}
