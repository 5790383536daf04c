// Package resample converts base timeframe candlestick series into arbitrary
// coarser timeframes. All functions are pure and retain no state between
// calls.
package resample

import (
	"github.com/dnldd/swarm/shared"
)

// Resample aggregates the provided base series into buckets of the provided
// timeframe. Bucket aggregation uses the first open, the maximum high, the
// minimum low, the last close and the summed volume. Buckets with no source
// candles are dropped rather than zero filled, and non-uniform candle
// spacing is tolerated. An empty input yields an empty output.
func Resample(base []shared.Candlestick, timeframe shared.Timeframe) []shared.Candlestick {
	if len(base) == 0 {
		return []shared.Candlestick{}
	}

	resampled := make([]shared.Candlestick, 0, len(base))
	var current *shared.Candlestick

	for idx := range base {
		candle := &base[idx]
		bucketOpen := timeframe.Truncate(candle.Date)

		if current == nil || !current.Date.Equal(bucketOpen) {
			// Freeze the previous bucket and start a new one.
			if current != nil {
				resampled = append(resampled, *current)
			}

			current = &shared.Candlestick{
				Open:      candle.Open,
				High:      candle.High,
				Low:       candle.Low,
				Close:     candle.Close,
				Volume:    candle.Volume,
				Date:      bucketOpen,
				Market:    candle.Market,
				Timeframe: timeframe,
			}
			continue
		}

		if candle.High > current.High {
			current.High = candle.High
		}
		if candle.Low < current.Low {
			current.Low = candle.Low
		}
		current.Close = candle.Close
		current.Volume += candle.Volume
	}

	resampled = append(resampled, *current)

	return resampled
}
