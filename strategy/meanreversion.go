package strategy

import (
	"fmt"
	"math"

	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/shared"
)

// MeanReversion is a reversion strategy combining relative strength extremes
// with bollinger band breaches.
type MeanReversion struct{}

// Ensure MeanReversion implements the Strategy interface.
var _ Strategy = (*MeanReversion)(nil)

// NewMeanReversion initializes a mean reversion strategy.
func NewMeanReversion() *MeanReversion {
	return &MeanReversion{}
}

// Name returns the name of the strategy.
func (s *MeanReversion) Name() string {
	return "meanreversion"
}

// Evaluate produces a directional signal from the provided candle window.
func (s *MeanReversion) Evaluate(candles []shared.Candlestick, cfg *Config) shared.Signal {
	market, timeframe := seriesIdentity(candles)
	if len(candles) < cfg.BollingerPeriod+1 || len(candles) <= cfg.RSIPeriod {
		return holdSignal(market, timeframe, s.Name(), "insufficient history")
	}

	closes := shared.Closes(candles)
	rsi := indicator.LatestRSI(closes, cfg.RSIPeriod)
	bands := indicator.BollingerBands(closes, cfg.BollingerPeriod, cfg.BollingerStdDev)

	last := len(closes) - 1
	if math.IsNaN(bands.Lower[last]) {
		return holdSignal(market, timeframe, s.Name(), "insufficient history")
	}

	switch {
	case rsi <= cfg.RSIOversold && closes[last] <= bands.Lower[last]:
		// Oversold with a lower band breach, score scaled by how deep the
		// oversold reading is.
		score := 0.6 + 0.4*(cfg.RSIOversold-rsi)/cfg.RSIOversold
		return shared.Signal{
			Market:    market,
			Strategy:  s.Name(),
			Timeframe: timeframe,
			Action:    shared.Buy,
			Score:     math.Min(score, 1),
			Reasoning: fmt.Sprintf("oversold reversion, rsi %.1f below lower band", rsi),
		}
	case rsi >= cfg.RSIOverbought && closes[last] >= bands.Upper[last]:
		score := 0.6 + 0.4*(rsi-cfg.RSIOverbought)/(100-cfg.RSIOverbought)
		return shared.Signal{
			Market:    market,
			Strategy:  s.Name(),
			Timeframe: timeframe,
			Action:    shared.Sell,
			Score:     math.Min(score, 1),
			Reasoning: fmt.Sprintf("overbought reversion, rsi %.1f above upper band", rsi),
		}
	default:
		return holdSignal(market, timeframe, s.Name(), "no reversion extreme")
	}
}
