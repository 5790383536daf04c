// Package risk implements the risk and regime gate: per market cooldown
// tracking, chaos detection, volatility circuit breaking, kelly derived
// position sizing and exit parameter generation. The gate exclusively owns
// all RiskState; other components read through CanEnter and request
// mutation through RecordExit.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/shared"
	"github.com/rs/zerolog"
)

const (
	// noveltyLookback is the baseline window for the volatility z-score.
	noveltyLookback = 50
	// chaosZScore is the z-score beyond which the market is treated as a
	// chaos opportunity rather than frozen out.
	chaosZScore = 3.0
	// atrPeriod is the average true range lookback for circuit breaking.
	atrPeriod = 14
	// maverickVolumeSurge is the volume to average ratio marking a maverick
	// breakout decoupled from its sector.
	maverickVolumeSurge = 3.0
	// maverickReturn is the single bar return marking a maverick breakout.
	maverickReturn = 0.03
)

// TradeMode represents the trade management profile for an entry.
type TradeMode int

const (
	Normal TradeMode = iota
	Chaos
	Maverick
)

// String stringifies the provided trade mode.
func (m TradeMode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Chaos:
		return "chaos"
	case Maverick:
		return "maverick"
	default:
		return "unknown"
	}
}

// RiskState represents the per market exit snapshot owned by the gate.
type RiskState struct {
	LastExitTime   time.Time
	LastExitPrice  float64
	LastExitReason string
	TradeMode      TradeMode
}

// EntryDecision represents the outcome of an entry check. A disallowed
// entry is a normal control flow outcome, not an error.
type EntryDecision struct {
	Allowed bool
	Reason  string
	Mode    TradeMode
}

// ExitParams represents the exit bracket generated for an entry. A zero
// take profit denotes uncapped upside managed by the trailing stop.
type ExitParams struct {
	TakeProfit      float64
	StopLoss        float64
	TrailingStopPct float64
	Description     string
}

// GateConfig represents the risk gate configuration.
type GateConfig struct {
	// CooldownWindow is the post exit lock duration for a market.
	CooldownWindow time.Duration
	// ReentryMargin is the fraction above the last exit price that permits
	// a re-entry breakout during cooldown.
	ReentryMargin float64
	// VolatilityThresholdPct is the standard average true range percentage
	// circuit breaker.
	VolatilityThresholdPct float64
	// BearVolatilityThresholdPct tightens the breaker in bear regimes.
	BearVolatilityThresholdPct float64
	// ChaosVolatilityThresholdPct loosens the breaker in chaos mode, which
	// deliberately exploits abnormal volatility.
	ChaosVolatilityThresholdPct float64
	// KellyFractionCap caps the sized fraction of capital.
	KellyFractionCap float64
	// MaxAllocation caps the absolute allocation per entry.
	MaxAllocation float64
	// Clock is the time source.
	Clock shared.Clock
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Gate tracks per market risk state and arbitrates entries.
type Gate struct {
	cfg      *GateConfig
	states   map[string]*RiskState
	stateMtx sync.RWMutex
}

// NewGate initializes a new risk gate.
func NewGate(cfg *GateConfig) *Gate {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}

	return &Gate{
		cfg:    cfg,
		states: make(map[string]*RiskState),
	}
}

// DefaultGateConfig returns the reference gate parameter set.
func DefaultGateConfig(logger *zerolog.Logger) *GateConfig {
	return &GateConfig{
		CooldownWindow:              30 * time.Minute,
		ReentryMargin:               0.005,
		VolatilityThresholdPct:      3.0,
		BearVolatilityThresholdPct:  2.0,
		ChaosVolatilityThresholdPct: 10.0,
		KellyFractionCap:            0.20,
		MaxAllocation:               20_000_000,
		Clock:                       shared.SystemClock{},
		Logger:                      logger,
	}
}

// RecordExit stores the provided exit snapshot for the market and starts
// its cooldown.
func (g *Gate) RecordExit(market string, exitPrice float64, reason string, at time.Time) {
	g.stateMtx.Lock()
	g.states[market] = &RiskState{
		LastExitTime:   at,
		LastExitPrice:  exitPrice,
		LastExitReason: reason,
	}
	g.stateMtx.Unlock()

	g.cfg.Logger.Info().Msgf("recorded exit for %s @ %.2f (%s), cooldown for %s",
		market, exitPrice, reason, g.cfg.CooldownWindow)
}

// FetchState returns a copy of the risk state for the provided market, and
// whether one exists.
func (g *Gate) FetchState(market string) (RiskState, bool) {
	g.stateMtx.RLock()
	defer g.stateMtx.RUnlock()

	state, ok := g.states[market]
	if !ok {
		return RiskState{}, false
	}

	return *state, true
}

// noveltyZScore computes the z-score of the latest true range relative to
// its rolling baseline. Insufficient history scores zero, failing open.
func noveltyZScore(candles []shared.Candlestick) float64 {
	if len(candles) < noveltyLookback {
		return 0
	}

	ranges := make([]float64, 0, noveltyLookback)
	for idx := len(candles) - noveltyLookback; idx < len(candles); idx++ {
		if candles[idx].Close == 0 {
			continue
		}
		ranges = append(ranges, (candles[idx].High-candles[idx].Low)/candles[idx].Close)
	}

	var mean float64
	for idx := range ranges {
		mean += ranges[idx]
	}
	mean /= float64(len(ranges))

	var variance float64
	for idx := range ranges {
		diff := ranges[idx] - mean
		variance += diff * diff
	}
	variance /= float64(len(ranges))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return (ranges[len(ranges)-1] - mean) / std
}

// CanEnter arbitrates an entry for the provided market. Rule order: chaos
// detection, regime lockdown, cooldown with re-entry breakout, then the
// volatility circuit breaker. Missing indicator data defaults to permissive
// values; risk breaches fail closed.
func (g *Gate) CanEnter(market string, price float64, at time.Time, candles []shared.Candlestick, regime Regime) EntryDecision {
	mode := Normal

	// Abnormal volatility switches to chaos mode, relaxing guards to
	// exploit the dislocation rather than freezing.
	z := noveltyZScore(candles)
	if math.Abs(z) > chaosZScore {
		mode = Chaos
		g.cfg.Logger.Warn().Msgf("%s: volatility z-score %.2f, entering chaos mode", market, z)
	}

	// System wide lockdown in crush regimes unless exploiting chaos.
	if regime == CrushRisk && mode != Chaos {
		return EntryDecision{
			Allowed: false,
			Reason:  "market crush risk, system lockdown",
			Mode:    mode,
		}
	}

	// Cooldown check with the re-entry breakout exception.
	state, ok := g.FetchState(market)
	if ok && at.Sub(state.LastExitTime) < g.cfg.CooldownWindow {
		threshold := state.LastExitPrice * (1 + g.cfg.ReentryMargin)
		if price > threshold {
			return EntryDecision{
				Allowed: true,
				Reason: fmt.Sprintf("re-entry breakout above last exit %.2f by %.1f%%",
					state.LastExitPrice, g.cfg.ReentryMargin*100),
				Mode: mode,
			}
		}

		return EntryDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("cooldown active for %s", g.cfg.CooldownWindow),
			Mode:    mode,
		}
	}

	// Volatility circuit breaker, tightened in bear regimes and loosened
	// in chaos mode.
	atrPct := indicator.LatestATRPercent(candles, atrPeriod)
	threshold := g.cfg.VolatilityThresholdPct
	switch {
	case mode == Chaos:
		threshold = g.cfg.ChaosVolatilityThresholdPct
	case regime == Bear:
		threshold = g.cfg.BearVolatilityThresholdPct
	}

	if atrPct > threshold {
		return EntryDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("volatility breaker tripped, atr %.2f%% above %.2f%%", atrPct, threshold),
			Mode:    mode,
		}
	}

	return EntryDecision{
		Allowed: true,
		Reason:  "risk checks passed",
		Mode:    mode,
	}
}

// CalculateBetSize sizes an entry using half kelly with volatility
// triggered de-leveraging. The sized fraction never exceeds the configured
// cap and the absolute allocation never exceeds the configured ceiling.
func (g *Gate) CalculateBetSize(capital float64, winRate float64, riskReward float64, volatilityPct float64) float64 {
	if capital <= 0 || riskReward <= 0 {
		return 0
	}

	p := winRate
	q := 1 - p
	b := riskReward
	kelly := (b*p - q) / b
	if kelly <= 0 {
		return 0
	}

	volModifier := 1.0
	if volatilityPct > 2.0 {
		volModifier = math.Max(0.2, 1-(volatilityPct-2.0)*0.5)
	}

	fraction := math.Min(kelly*0.5*volModifier, g.cfg.KellyFractionCap)
	return math.Min(capital*fraction, g.cfg.MaxAllocation)
}

// FetchExitParams returns the exit bracket for the provided trade mode and
// entry price. Profile selection is a pure lookup.
func (g *Gate) FetchExitParams(mode TradeMode, entryPrice float64) ExitParams {
	switch mode {
	case Maverick:
		// Let winners run: uncapped upside behind a loose trailing stop.
		return ExitParams{
			TakeProfit:      0,
			StopLoss:        entryPrice * 0.97,
			TrailingStopPct: 0.05,
			Description:     "uncapped upside, 5% trailing stop",
		}
	case Chaos:
		// Snatch and run: high probability small wins in panic bounces.
		return ExitParams{
			TakeProfit:      entryPrice * 1.015,
			StopLoss:        entryPrice * 0.99,
			TrailingStopPct: 0,
			Description:     "tight scalp bracket +1.5%/-1.0%",
		}
	default:
		return ExitParams{
			TakeProfit:      entryPrice * 1.03,
			StopLoss:        entryPrice * 0.98,
			TrailingStopPct: 0,
			Description:     "standard bracket +3%/-2%",
		}
	}
}

// MaverickBreakout reports whether the final bar shows explosive volume and
// price decoupled from its sector, upgrading the trade mode profile.
func MaverickBreakout(candles []shared.Candlestick) bool {
	if len(candles) < 21 {
		return false
	}

	volumeRatios := indicator.VolumeRatio(shared.Volumes(candles), 20)
	last := len(candles) - 1
	if math.IsNaN(volumeRatios[last]) || volumeRatios[last] < maverickVolumeSurge {
		return false
	}

	prevClose := candles[last-1].Close
	if prevClose == 0 {
		return false
	}

	return (candles[last].Close-prevClose)/prevClose > maverickReturn
}
