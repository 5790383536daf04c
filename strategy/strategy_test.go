package strategy

import (
	"testing"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// generateCandles creates one-minute candles for the provided close and
// volume series.
func generateCandles(t *testing.T, market string, closes []float64, volumes []float64) []shared.Candlestick {
	t.Helper()

	start := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	candles := make([]shared.Candlestick, len(closes))
	for idx := range closes {
		candles[idx] = shared.Candlestick{
			Open:      closes[idx],
			High:      closes[idx] + 1,
			Low:       closes[idx] - 1,
			Close:     closes[idx],
			Volume:    volumes[idx],
			Date:      start.Add(time.Duration(idx) * time.Minute),
			Market:    market,
			Timeframe: shared.OneMinute,
		}
	}

	return candles
}

// goldenCrossSeries builds a series with a clean golden cross and a volume
// surge on the cross bar.
func goldenCrossSeries(t *testing.T) []shared.Candlestick {
	t.Helper()

	closes := make([]float64, 30)
	volumes := make([]float64, 30)
	for idx := range closes {
		closes[idx] = 110 - 0.5*float64(idx)
		volumes[idx] = 10
	}
	closes[29] = 130
	volumes[29] = 30

	return generateCandles(t, "AAPL", closes, volumes)
}

func TestMomentumCrossScenario(t *testing.T) {
	cfg := DefaultConfig()
	strat := NewMomentumCross()

	// Ensure a clean golden cross with a volume surge emits a buy.
	signal := strat.Evaluate(goldenCrossSeries(t), &cfg)
	assert.Equal(t, shared.Buy, signal.Action)
	assert.True(t, signal.Score > 0)

	// Ensure insufficient history yields a hold with a zero score.
	short := goldenCrossSeries(t)[:5]
	signal = strat.Evaluate(short, &cfg)
	assert.Equal(t, shared.Hold, signal.Action)
	assert.Equal(t, float64(0), signal.Score)
}

func TestRegistryEmitsBuyOnGoldenCross(t *testing.T) {
	cfg := DefaultConfig()
	logger := log.With().Str("component", "strategytest").Logger()
	registry, err := NewRegistry(&logger, NewMomentumCross(), NewMeanReversion(),
		NewPowerHourScalp(), NewInverseHedge())
	assert.NoError(t, err)

	signals := registry.EvaluateAll(goldenCrossSeries(t), &cfg)
	assert.Equal(t, 4, len(signals))

	var buys int
	for idx := range signals {
		if signals[idx].Action == shared.Buy {
			buys++
		}
	}
	assert.True(t, buys >= 1)
}

func TestMeanReversionOversold(t *testing.T) {
	cfg := DefaultConfig()
	strat := NewMeanReversion()

	// Flat series collapsing hard at the end to force an oversold lower
	// band breach.
	closes := make([]float64, 40)
	volumes := make([]float64, 40)
	for idx := range closes {
		closes[idx] = 100
		volumes[idx] = 10
	}
	closes[37] = 96
	closes[38] = 92
	closes[39] = 85

	signal := strat.Evaluate(generateCandles(t, "AAPL", closes, volumes), &cfg)
	assert.Equal(t, shared.Buy, signal.Action)
	assert.True(t, signal.Score >= 0.6)
}

func TestPowerHourScalpWindowGate(t *testing.T) {
	cfg := DefaultConfig()
	strat := NewPowerHourScalp()

	closes := make([]float64, 40)
	volumes := make([]float64, 40)
	for idx := range closes {
		closes[idx] = 100
		volumes[idx] = 10
	}
	closes[38] = 95
	closes[39] = 90

	// Candle dated inside the morning power window triggers.
	candles := generateCandles(t, "AAPL", closes, volumes)
	signal := strat.Evaluate(candles, &cfg)
	assert.Equal(t, shared.Buy, signal.Action)

	// The same shape outside any window holds.
	for idx := range candles {
		candles[idx].Date = candles[idx].Date.Add(10 * time.Hour)
	}
	signal = strat.Evaluate(candles, &cfg)
	assert.Equal(t, shared.Hold, signal.Action)
}

func TestInverseHedgeGating(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HedgeMarkets = []string{"SQQQ"}
	strat := NewInverseHedge()

	closes := make([]float64, 30)
	volumes := make([]float64, 30)
	for idx := range closes {
		// Rising trend with pullbacks so relative strength stays healthy.
		closes[idx] = 100 + 0.5*float64(idx) + 2*float64(idx%2)
		volumes[idx] = 10
	}

	// Ensure a non hedge instrument always holds.
	signal := strat.Evaluate(generateCandles(t, "AAPL", closes, volumes), &cfg)
	assert.Equal(t, shared.Hold, signal.Action)

	// Ensure a trending hedge instrument buys.
	signal = strat.Evaluate(generateCandles(t, "SQQQ", closes, volumes), &cfg)
	assert.Equal(t, shared.Buy, signal.Action)
}

// panicStrategy always panics, to exercise registry isolation.
type panicStrategy struct{}

func (s *panicStrategy) Name() string { return "panicker" }

func (s *panicStrategy) Evaluate(candles []shared.Candlestick, cfg *Config) shared.Signal {
	panic("boom")
}

func TestRegistryIsolatesFailingStrategy(t *testing.T) {
	cfg := DefaultConfig()
	logger := log.With().Str("component", "strategytest").Logger()
	registry, err := NewRegistry(&logger, &panicStrategy{}, NewMomentumCross())
	assert.NoError(t, err)

	signals := registry.EvaluateAll(goldenCrossSeries(t), &cfg)
	assert.Equal(t, 2, len(signals))

	// The failing strategy degrades to a hold while the momentum strategy
	// still evaluates.
	assert.Equal(t, shared.Hold, signals[0].Action)
	assert.Equal(t, float64(0), signals[0].Score)
	assert.Equal(t, shared.Buy, signals[1].Action)
}

func TestRegistryRequiresStrategies(t *testing.T) {
	logger := log.With().Str("component", "strategytest").Logger()
	_, err := NewRegistry(&logger)
	assert.Error(t, err)
}

func TestParameterStoreReload(t *testing.T) {
	store, err := NewParameterStore(DefaultConfig())
	assert.NoError(t, err)

	cfg := store.Fetch()
	assert.Equal(t, 14, cfg.RSIPeriod)

	cfg.RSIPeriod = 7
	assert.NoError(t, store.Reload(cfg))
	assert.Equal(t, 7, store.Fetch().RSIPeriod)

	// Ensure malformed parameters are rejected.
	cfg.FastMAPeriod = 50
	assert.Error(t, store.Reload(cfg))
}
