package multiplex

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/dnldd/swarm/strategy"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// stubOracle returns a fixed verdict, optionally failing, and counts calls.
type stubOracle struct {
	confidence float64
	err        error
	calls      int
}

func (o *stubOracle) Predict(ctx context.Context, octx *shared.OracleContext) (shared.OracleVerdict, error) {
	o.calls++
	if o.err != nil {
		return shared.OracleVerdict{}, o.err
	}

	return shared.OracleVerdict{Action: shared.Buy, Confidence: o.confidence}, nil
}

func (o *stubOracle) FetchSentiment(ctx context.Context, market string) (float64, error) {
	return 0.5, nil
}

// alwaysBuy votes buy on every evaluation.
type alwaysBuy struct{}

func (s *alwaysBuy) Name() string { return "alwaysbuy" }

func (s *alwaysBuy) Evaluate(candles []shared.Candlestick, cfg *strategy.Config) shared.Signal {
	return shared.Signal{Strategy: s.Name(), Action: shared.Buy, Score: 0.9}
}

// depthBuy votes buy only when the series carries at least minBars bars,
// splitting votes across timeframes.
type depthBuy struct {
	minBars int
}

func (s *depthBuy) Name() string { return "depthbuy" }

func (s *depthBuy) Evaluate(candles []shared.Candlestick, cfg *strategy.Config) shared.Signal {
	if len(candles) < s.minBars {
		return shared.Signal{Strategy: s.Name(), Action: shared.Hold}
	}

	return shared.Signal{Strategy: s.Name(), Action: shared.Buy, Score: 0.8}
}

// baseSeries builds count one-minute candles aligned to midnight so higher
// timeframe buckets fill cleanly.
func baseSeries(t *testing.T, count int) []shared.Candlestick {
	t.Helper()

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	candles := make([]shared.Candlestick, count)
	for idx := range candles {
		price := 100 + 0.01*float64(idx)
		candles[idx] = shared.Candlestick{
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    10,
			Date:      start.Add(time.Duration(idx) * time.Minute),
			Market:    "AAPL",
			Timeframe: shared.OneMinute,
		}
	}

	return candles
}

func newTestEngine(t *testing.T, oracle shared.Oracle, strategies ...strategy.Strategy) *Engine {
	t.Helper()

	logger := log.With().Str("component", "multiplextest").Logger()
	registry, err := strategy.NewRegistry(&logger, strategies...)
	assert.NoError(t, err)

	store, err := strategy.NewParameterStore(strategy.DefaultConfig())
	assert.NoError(t, err)

	engine, err := NewEngine(&EngineConfig{
		Capital: 1_000_000,
		Oracle:  oracle,
		// Uncapped pass-through sizing keeps assertions arithmetic.
		CalculateBetSize: func(capital, winRate, riskReward, volatilityPct float64) float64 {
			return capital * winRate * 0.1
		},
		Strategies: registry,
		Params:     store,
		Logger:     &logger,
	})
	assert.NoError(t, err)

	return engine
}

func TestAnalyzeExcludesShallowTimeframes(t *testing.T) {
	oracle := &stubOracle{confidence: 0.9}
	engine := newTestEngine(t, oracle, &alwaysBuy{})

	// 300 base minutes: only the 1m, 5m and 15m frames reach twenty bars.
	// All three vote buy, so consensus is 3/3, not 3/9.
	result := engine.Analyze(context.Background(), "AAPL", baseSeries(t, 300), 0.5)

	assert.Equal(t, 3, result.ParticipatingTimeframes)
	assert.Equal(t, 3, result.PositiveTimeframes)
	assert.Equal(t, 1.0, result.ConsensusRatio)
	assert.Equal(t, shared.Buy, result.Decision)
	assert.True(t, result.RecommendedBetSize > 0)
	assert.True(t, len(result.ReasoningTrace) > 0)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	oracle := &stubOracle{confidence: 0.9}
	engine := newTestEngine(t, oracle, &alwaysBuy{})

	result := engine.Analyze(context.Background(), "AAPL", baseSeries(t, 5), 0.5)

	assert.Equal(t, shared.Hold, result.Decision)
	assert.Equal(t, 0, result.ParticipatingTimeframes)
	assert.Equal(t, float64(0), result.ConsensusRatio)

	// The oracle is never consulted without data.
	assert.Equal(t, 0, oracle.calls)
}

func TestAnalyzeOracleArbitration(t *testing.T) {
	// A 300 minute base with a 50 bar depth gate: the 1m (300 bars) and 5m
	// (60 bars) frames vote buy, the 15m (20 bars) frame holds. Consensus
	// 2/3 sits between the consensus and super consensus thresholds.
	base := baseSeries(t, 300)

	// A skeptical oracle holds the line.
	skeptic := &stubOracle{confidence: 0.5}
	engine := newTestEngine(t, skeptic, &depthBuy{minBars: 50})
	result := engine.Analyze(context.Background(), "AAPL", base, 0.5)
	assert.True(t, math.Abs(result.ConsensusRatio-2.0/3.0) < 1e-9)
	assert.Equal(t, shared.Hold, result.Decision)
	assert.Equal(t, 1, skeptic.calls)

	// A confident oracle approves the same consensus.
	believer := &stubOracle{confidence: 0.9}
	engine = newTestEngine(t, believer, &depthBuy{minBars: 50})
	result = engine.Analyze(context.Background(), "AAPL", base, 0.5)
	assert.Equal(t, shared.Buy, result.Decision)
}

func TestAnalyzeSuperConsensusOverride(t *testing.T) {
	// Unanimous consensus overrides a deeply skeptical oracle.
	skeptic := &stubOracle{confidence: 0.1}
	engine := newTestEngine(t, skeptic, &alwaysBuy{})

	result := engine.Analyze(context.Background(), "AAPL", baseSeries(t, 300), 0.5)
	assert.Equal(t, 1.0, result.ConsensusRatio)
	assert.Equal(t, shared.Buy, result.Decision)
}

func TestAnalyzeOracleFailureFallsBackNeutral(t *testing.T) {
	broken := &stubOracle{err: errors.New("deadline exceeded")}
	engine := newTestEngine(t, broken, &alwaysBuy{})

	result := engine.Analyze(context.Background(), "AAPL", baseSeries(t, 300), 0.5)

	// The cycle proceeds on the neutral fallback; unanimous consensus still
	// clears the super consensus override.
	assert.Equal(t, 0.5, result.OracleConfidence)
	assert.Equal(t, shared.Buy, result.Decision)
}

func TestAnalyzeWithoutOracle(t *testing.T) {
	engine := newTestEngine(t, nil, &depthBuy{minBars: 50})

	// With the oracle path disabled, consensus above threshold decides alone.
	result := engine.Analyze(context.Background(), "AAPL", baseSeries(t, 300), 0.5)
	assert.True(t, result.ConsensusRatio >= 0.60)
	assert.Equal(t, shared.Buy, result.Decision)
}

func TestConsensusMonotonicity(t *testing.T) {
	base := baseSeries(t, 300)
	oracle := &stubOracle{confidence: 0.9}

	// More positive votes, oracle fixed: the ratio strictly increases and an
	// approved buy never flips back to hold.
	partial := newTestEngine(t, oracle, &depthBuy{minBars: 50}).
		Analyze(context.Background(), "AAPL", base, 0.5)
	full := newTestEngine(t, oracle, &alwaysBuy{}).
		Analyze(context.Background(), "AAPL", base, 0.5)

	assert.True(t, full.ConsensusRatio > partial.ConsensusRatio)
	assert.Equal(t, shared.Buy, partial.Decision)
	assert.Equal(t, shared.Buy, full.Decision)
}
