package strategy

import (
	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/shared"
)

// InverseHedge trades configured inverse instruments only. An inverse
// instrument rallies when its underlying falls, so the strategy buys when
// the instrument's own trend turns up with room to run, providing downside
// hedging without shorting.
type InverseHedge struct{}

// Ensure InverseHedge implements the Strategy interface.
var _ Strategy = (*InverseHedge)(nil)

// NewInverseHedge initializes an inverse hedge strategy.
func NewInverseHedge() *InverseHedge {
	return &InverseHedge{}
}

// Name returns the name of the strategy.
func (s *InverseHedge) Name() string {
	return "inversehedge"
}

// Evaluate produces a directional signal from the provided candle window.
func (s *InverseHedge) Evaluate(candles []shared.Candlestick, cfg *Config) shared.Signal {
	market, timeframe := seriesIdentity(candles)
	if !cfg.IsHedgeMarket(market) {
		return holdSignal(market, timeframe, s.Name(), "not a hedge instrument")
	}

	if len(candles) < cfg.SlowMAPeriod+1 {
		return holdSignal(market, timeframe, s.Name(), "insufficient history")
	}

	closes := shared.Closes(candles)
	fastMA := indicator.SMA(closes, cfg.FastMAPeriod)
	slowMA := indicator.SMA(closes, cfg.SlowMAPeriod)
	rsi := indicator.LatestRSI(closes, cfg.RSIPeriod)

	last := len(closes) - 1
	uptrend := fastMA[last] > slowMA[last]

	switch {
	case uptrend && rsi < cfg.RSIOverbought:
		return shared.Signal{
			Market:    market,
			Strategy:  s.Name(),
			Timeframe: timeframe,
			Action:    shared.Buy,
			Score:     0.65,
			Reasoning: "inverse instrument trending up, underlying weakness",
		}
	case !uptrend:
		return shared.Signal{
			Market:    market,
			Strategy:  s.Name(),
			Timeframe: timeframe,
			Action:    shared.Sell,
			Score:     0.6,
			Reasoning: "underlying strength, unwinding hedge",
		}
	default:
		return holdSignal(market, timeframe, s.Name(), "hedge overextended")
	}
}
