package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/peterldowns/testy/assert"
)

func TestSMA(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}

	out := SMA(series, 3)
	assert.Equal(t, len(series), len(out))
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, float64(2), out[2])
	assert.Equal(t, float64(3), out[3])
	assert.Equal(t, float64(4), out[4])

	// Ensure an undersized series is fully NaN padded.
	short := SMA([]float64{1, 2}, 3)
	for idx := range short {
		assert.True(t, math.IsNaN(short[idx]))
	}
}

func TestEMA(t *testing.T) {
	series := []float64{2, 4, 6, 8}

	out := EMA(series, 3)
	assert.Equal(t, float64(2), out[0])

	// alpha = 0.5 for span 3.
	assert.Equal(t, float64(3), out[1])
	assert.Equal(t, float64(4.5), out[2])
	assert.Equal(t, float64(6.25), out[3])
}

func TestRSIBounds(t *testing.T) {
	// Oscillating series with both gains and losses.
	series := make([]float64, 100)
	for idx := range series {
		series[idx] = 100 + 5*math.Sin(float64(idx)) + float64(idx%7)
	}

	out := RSI(series, 14)
	for idx := range out {
		if math.IsNaN(out[idx]) {
			continue
		}
		assert.True(t, out[idx] >= 0)
		assert.True(t, out[idx] <= 100)
	}

	// Ensure a strictly rising series saturates at 100.
	rising := make([]float64, 30)
	for idx := range rising {
		rising[idx] = float64(idx)
	}
	out = RSI(rising, 14)
	assert.Equal(t, float64(100), out[len(out)-1])
}

func TestLatestRSINeutralOnInsufficientHistory(t *testing.T) {
	assert.Equal(t, NeutralRSI, LatestRSI([]float64{}, 14))
	assert.Equal(t, NeutralRSI, LatestRSI([]float64{100, 101, 102}, 14))
}

func TestMACD(t *testing.T) {
	series := make([]float64, 60)
	for idx := range series {
		series[idx] = 100 + float64(idx)
	}

	out := MACD(series, 12, 26, 9)
	assert.Equal(t, len(series), len(out.MACD))
	assert.Equal(t, len(series), len(out.Signal))
	assert.Equal(t, len(series), len(out.Histogram))

	// A steadily rising series keeps the fast average above the slow one.
	last := len(series) - 1
	assert.True(t, out.MACD[last] > 0)
	assert.Equal(t, out.Histogram[last], out.MACD[last]-out.Signal[last])
}

func TestBollingerBands(t *testing.T) {
	series := make([]float64, 40)
	for idx := range series {
		series[idx] = 100 + float64(idx%5)
	}

	out := BollingerBands(series, 20, 2)
	last := len(series) - 1
	assert.True(t, out.Upper[last] > out.Middle[last])
	assert.True(t, out.Lower[last] < out.Middle[last])

	// Bands are symmetric about the middle band.
	upperGap := out.Upper[last] - out.Middle[last]
	lowerGap := out.Middle[last] - out.Lower[last]
	assert.True(t, math.Abs(upperGap-lowerGap) < 1e-9)
}

func TestATR(t *testing.T) {
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	candles := make([]shared.Candlestick, 20)
	for idx := range candles {
		candles[idx] = shared.Candlestick{
			Open:   100,
			High:   102,
			Low:    98,
			Close:  100,
			Volume: 10,
			Date:   start.Add(time.Duration(idx) * time.Minute),
		}
	}

	out := ATR(candles, 14)
	last := len(candles) - 1

	// Constant 4 point range with no gaps yields a constant true range.
	assert.Equal(t, float64(4), out[last])

	atrPct := LatestATRPercent(candles, 14)
	assert.Equal(t, float64(4), atrPct)

	// Insufficient history fails open with zero.
	assert.Equal(t, float64(0), LatestATRPercent(candles[:5], 14))
}

func TestGoldenCross(t *testing.T) {
	// Slow decline keeps the fast average below the slow one, then a sharp
	// rally on the final bar forces the cross.
	series := make([]float64, 30)
	for idx := range series {
		series[idx] = 110 - 0.5*float64(idx)
	}
	series[29] = 130

	assert.True(t, GoldenCross(series, 5, 20))

	// No cross on a flat series.
	flat := make([]float64, 30)
	for idx := range flat {
		flat[idx] = 100
	}
	assert.False(t, GoldenCross(flat, 5, 20))

	// Insufficient history never reports a cross.
	assert.False(t, GoldenCross(series[:10], 5, 20))
}

func TestVolumeRatio(t *testing.T) {
	volumes := []float64{10, 10, 10, 10, 30}

	out := VolumeRatio(volumes, 4)
	last := len(volumes) - 1
	assert.True(t, out[last] > 1.5)
	assert.True(t, math.IsNaN(out[0]))
}
