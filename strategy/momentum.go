package strategy

import (
	"fmt"

	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/shared"
)

// MomentumCross is a trend following strategy triggering on a golden cross
// of the fast moving average above the slow one, confirmed by a volume
// surge on the cross bar.
type MomentumCross struct{}

// Ensure MomentumCross implements the Strategy interface.
var _ Strategy = (*MomentumCross)(nil)

// NewMomentumCross initializes a momentum crossover strategy.
func NewMomentumCross() *MomentumCross {
	return &MomentumCross{}
}

// Name returns the name of the strategy.
func (s *MomentumCross) Name() string {
	return "momentumcross"
}

// Evaluate produces a directional signal from the provided candle window.
func (s *MomentumCross) Evaluate(candles []shared.Candlestick, cfg *Config) shared.Signal {
	market, timeframe := seriesIdentity(candles)
	if len(candles) < cfg.SlowMAPeriod+1 {
		return holdSignal(market, timeframe, s.Name(), "insufficient history")
	}

	closes := shared.Closes(candles)
	if !indicator.GoldenCross(closes, cfg.FastMAPeriod, cfg.SlowMAPeriod) {
		// A completed death cross flags an exit for held positions.
		if indicator.GoldenCross(invert(closes), cfg.FastMAPeriod, cfg.SlowMAPeriod) {
			return shared.Signal{
				Market:    market,
				Strategy:  s.Name(),
				Timeframe: timeframe,
				Action:    shared.Sell,
				Score:     0.6,
				Reasoning: "death cross",
			}
		}

		return holdSignal(market, timeframe, s.Name(), "no cross")
	}

	volumeRatios := indicator.VolumeRatio(shared.Volumes(candles), cfg.VolumePeriod)
	lastRatio := volumeRatios[len(volumeRatios)-1]
	if !(lastRatio >= cfg.VolumeSurge) {
		// NaN ratios from short volume history also land here.
		return holdSignal(market, timeframe, s.Name(), "cross without volume confirmation")
	}

	score := 0.7
	if lastRatio >= cfg.VolumeSurge*1.5 {
		score = 0.9
	}

	return shared.Signal{
		Market:    market,
		Strategy:  s.Name(),
		Timeframe: timeframe,
		Action:    shared.Buy,
		Score:     score,
		Reasoning: fmt.Sprintf("golden cross with %.1fx average volume", lastRatio),
	}
}

// invert mirrors the provided series so death crosses present as golden
// crosses.
func invert(series []float64) []float64 {
	out := make([]float64, len(series))
	for idx := range series {
		out[idx] = -series[idx]
	}

	return out
}
