// Package indicator implements stateless technical indicator functions over
// price and volume series. Every function returns a series the same length
// as its input, padded with NaN where there is insufficient history, and
// produces identical results for identical inputs.
package indicator

import (
	"math"
)

// nanSeries creates a series of the provided length filled with NaN.
func nanSeries(length int) []float64 {
	series := make([]float64, length)
	for idx := range series {
		series[idx] = math.NaN()
	}

	return series
}

// SMA computes the simple moving average of the provided series.
func SMA(series []float64, period int) []float64 {
	out := nanSeries(len(series))
	if period <= 0 || len(series) < period {
		return out
	}

	var sum float64
	for idx := range series {
		sum += series[idx]
		if idx >= period {
			sum -= series[idx-period]
		}
		if idx >= period-1 {
			out[idx] = sum / float64(period)
		}
	}

	return out
}

// EMA computes the exponential moving average of the provided series using
// the standard smoothing factor 2/(span+1), seeded with the first value.
func EMA(series []float64, span int) []float64 {
	out := nanSeries(len(series))
	if span <= 0 || len(series) == 0 {
		return out
	}

	alpha := 2 / (float64(span) + 1)
	ema := series[0]
	out[0] = ema
	for idx := 1; idx < len(series); idx++ {
		ema = alpha*series[idx] + (1-alpha)*ema
		out[idx] = ema
	}

	return out
}

// StdDev computes the rolling population standard deviation of the provided
// series.
func StdDev(series []float64, period int) []float64 {
	out := nanSeries(len(series))
	if period <= 0 || len(series) < period {
		return out
	}

	means := SMA(series, period)
	for idx := period - 1; idx < len(series); idx++ {
		var sum float64
		for k := idx - period + 1; k <= idx; k++ {
			diff := series[k] - means[idx]
			sum += diff * diff
		}
		out[idx] = math.Sqrt(sum / float64(period))
	}

	return out
}

// VolumeRatio computes the ratio of each volume sample to its rolling
// average over the provided period.
func VolumeRatio(volumes []float64, period int) []float64 {
	out := nanSeries(len(volumes))
	averages := SMA(volumes, period)
	for idx := range volumes {
		if !math.IsNaN(averages[idx]) && averages[idx] > 0 {
			out[idx] = volumes[idx] / averages[idx]
		}
	}

	return out
}

// GoldenCross reports whether the fast moving average crossed above the slow
// moving average on the final bar of the provided series.
func GoldenCross(closes []float64, fast int, slow int) bool {
	if len(closes) < slow+1 {
		return false
	}

	fastMA := SMA(closes, fast)
	slowMA := SMA(closes, slow)

	last := len(closes) - 1
	prev := last - 1
	if math.IsNaN(fastMA[prev]) || math.IsNaN(slowMA[prev]) {
		return false
	}

	return fastMA[last] > slowMA[last] && fastMA[prev] <= slowMA[prev]
}
