package strategy

import (
	"fmt"
	"math"

	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/shared"
)

// PowerHourScalp is a time-of-day scalping strategy. It only trades during
// the configured high volatility intraday windows, entering on extreme
// short lookback oversold readings below the lower bollinger band.
type PowerHourScalp struct{}

// Ensure PowerHourScalp implements the Strategy interface.
var _ Strategy = (*PowerHourScalp)(nil)

// NewPowerHourScalp initializes a power hour scalping strategy.
func NewPowerHourScalp() *PowerHourScalp {
	return &PowerHourScalp{}
}

// Name returns the name of the strategy.
func (s *PowerHourScalp) Name() string {
	return "powerhourscalp"
}

// inWindow reports whether the provided UTC hour falls inside any configured
// scalping window.
func inWindow(hour int, windows [][2]int) bool {
	for idx := range windows {
		if hour >= windows[idx][0] && hour <= windows[idx][1] {
			return true
		}
	}

	return false
}

// Evaluate produces a directional signal from the provided candle window.
func (s *PowerHourScalp) Evaluate(candles []shared.Candlestick, cfg *Config) shared.Signal {
	market, timeframe := seriesIdentity(candles)
	if len(candles) < cfg.BollingerPeriod+1 {
		return holdSignal(market, timeframe, s.Name(), "insufficient history")
	}

	last := candles[len(candles)-1]
	if !inWindow(last.Date.UTC().Hour(), cfg.ScalpWindows) {
		return holdSignal(market, timeframe, s.Name(), "outside power hours")
	}

	closes := shared.Closes(candles)
	rsi := indicator.LatestRSI(closes, cfg.ScalpRSIPeriod)
	bands := indicator.BollingerBands(closes, cfg.BollingerPeriod, cfg.BollingerStdDev)

	lastIdx := len(closes) - 1
	if math.IsNaN(bands.Lower[lastIdx]) {
		return holdSignal(market, timeframe, s.Name(), "insufficient history")
	}

	if rsi < cfg.ScalpRSIEntry && closes[lastIdx] < bands.Lower[lastIdx] {
		return shared.Signal{
			Market:    market,
			Strategy:  s.Name(),
			Timeframe: timeframe,
			Action:    shared.Buy,
			Score:     0.8,
			Reasoning: fmt.Sprintf("power hour scalp, rsi(%d) %.1f below lower band", cfg.ScalpRSIPeriod, rsi),
		}
	}

	return holdSignal(market, timeframe, s.Name(), "no scalp setup")
}
