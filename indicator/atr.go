package indicator

import (
	"github.com/dnldd/swarm/shared"
)

// ATR computes the average true range of the provided candlestick series as
// the rolling mean of the true range over the provided period.
func ATR(candles []shared.Candlestick, period int) []float64 {
	trueRanges := make([]float64, len(candles))
	for idx := range candles {
		if idx == 0 {
			trueRanges[idx] = candles[idx].High - candles[idx].Low
			continue
		}

		trueRanges[idx] = candles[idx].TrueRange(candles[idx-1].Close)
	}

	return SMA(trueRanges, period)
}

// LatestATRPercent returns the most recent average true range as a
// percentage of the closing price, or zero when there is insufficient
// history. A zero value is treated as permissive by the risk gate, failing
// open on data gaps.
func LatestATRPercent(candles []shared.Candlestick, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	series := ATR(candles, period)
	last := len(candles) - 1
	if candles[last].Close == 0 {
		return 0
	}

	return (series[last] / candles[last].Close) * 100
}
