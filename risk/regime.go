package risk

import (
	"math"

	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/shared"
)

const (
	// crushVolatilityThreshold is the annualized volatility percentage above
	// which the market is treated as a crash risk.
	crushVolatilityThreshold = 30.0
	// regimeLookback is the minimum history required to classify a regime.
	regimeLookback = 20
	// tradingPeriodsPerYear annualizes daily return volatility.
	tradingPeriodsPerYear = 252
)

// Regime represents the system wide market condition classification.
type Regime int

const (
	Neutral Regime = iota
	BullHealthy
	Bear
	CrushRisk
	ChaosOpportunity
)

// String stringifies the provided regime.
func (r Regime) String() string {
	switch r {
	case Neutral:
		return "neutral"
	case BullHealthy:
		return "healthy bull"
	case Bear:
		return "bear"
	case CrushRisk:
		return "crush risk"
	case ChaosOpportunity:
		return "chaos opportunity"
	default:
		return "unknown"
	}
}

// ClassifyRegime classifies the market regime from the provided market proxy
// series (an index). Insufficient history classifies as neutral, failing
// open on data gaps.
func ClassifyRegime(candles []shared.Candlestick) Regime {
	if len(candles) < regimeLookback {
		return Neutral
	}

	closes := shared.Closes(candles)

	// Annualized volatility of the last ten returns.
	returns := make([]float64, 0, 10)
	for idx := len(closes) - 10; idx < len(closes); idx++ {
		if closes[idx-1] == 0 {
			continue
		}
		returns = append(returns, (closes[idx]-closes[idx-1])/closes[idx-1])
	}

	var mean float64
	for idx := range returns {
		mean += returns[idx]
	}
	mean /= float64(len(returns))

	var variance float64
	for idx := range returns {
		diff := returns[idx] - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))

	volatility := math.Sqrt(variance) * math.Sqrt(tradingPeriodsPerYear) * 100
	if volatility > crushVolatilityThreshold {
		return CrushRisk
	}

	ema20 := indicator.EMA(closes, 20)
	ema50 := indicator.EMA(closes, 50)
	last := len(closes) - 1

	switch {
	case closes[last] < ema50[last]:
		return Bear
	case ema20[last] > ema50[last]:
		return BullHealthy
	default:
		return Neutral
	}
}

// CanTrade reports whether entries are generally permitted under the
// provided regime. Chaos mode entries are decided by the gate, not here.
func CanTrade(regime Regime) bool {
	return regime == BullHealthy || regime == Neutral
}
