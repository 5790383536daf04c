package indicator

// MACDResult represents the moving average convergence divergence series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the moving average convergence divergence of the provided
// close series, where the macd line is the fast exponential moving average
// less the slow one, the signal line is the exponential moving average of
// the macd line, and the histogram is their difference.
func MACD(closes []float64, fast int, slow int, signal int) *MACDResult {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	macd := make([]float64, len(closes))
	for idx := range closes {
		macd[idx] = fastEMA[idx] - slowEMA[idx]
	}

	signalLine := EMA(macd, signal)
	histogram := make([]float64, len(closes))
	for idx := range closes {
		histogram[idx] = macd[idx] - signalLine[idx]
	}

	return &MACDResult{
		MACD:      macd,
		Signal:    signalLine,
		Histogram: histogram,
	}
}
