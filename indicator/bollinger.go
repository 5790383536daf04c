package indicator

import (
	"math"
)

// BollingerResult represents the bollinger band series.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands computes bollinger bands over the provided close series,
// with the middle band a simple moving average and the outer bands offset by
// the provided multiple of the rolling standard deviation.
func BollingerBands(closes []float64, period int, stdDevs float64) *BollingerResult {
	middle := SMA(closes, period)
	deviations := StdDev(closes, period)

	upper := nanSeries(len(closes))
	lower := nanSeries(len(closes))
	for idx := range closes {
		if math.IsNaN(middle[idx]) || math.IsNaN(deviations[idx]) {
			continue
		}

		upper[idx] = middle[idx] + stdDevs*deviations[idx]
		lower[idx] = middle[idx] - stdDevs*deviations[idx]
	}

	return &BollingerResult{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
	}
}
