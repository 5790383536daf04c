package indicator

import (
	"math"
)

const (
	// NeutralRSI is the neutral relative strength value returned by LatestRSI
	// when there is insufficient history, preventing NaN from propagating
	// into entry decisions.
	NeutralRSI = 50.0
)

// RSI computes the relative strength index of the provided close series
// using Wilder's smoothing, where the average gain and loss are exponential
// moving averages with alpha of 1/period. The first period values are NaN
// padded.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	alpha := 1 / float64(period)
	var avgGain, avgLoss float64

	for idx := 1; idx < len(closes); idx++ {
		delta := closes[idx] - closes[idx-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if idx == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		if idx < period {
			continue
		}

		switch {
		case avgLoss == 0 && avgGain == 0:
			out[idx] = NeutralRSI
		case avgLoss == 0:
			out[idx] = 100
		default:
			rs := avgGain / avgLoss
			out[idx] = 100 - 100/(1+rs)
		}
	}

	return out
}

// LatestRSI returns the most recent relative strength value for the provided
// close series, or the neutral value when there is insufficient history.
func LatestRSI(closes []float64, period int) float64 {
	series := RSI(closes, period)
	if len(series) == 0 {
		return NeutralRSI
	}

	last := series[len(series)-1]
	if math.IsNaN(last) {
		return NeutralRSI
	}

	return last
}
