package shared

import (
	"time"
)

// Action represents a directional trading verdict.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

// String stringifies the provided action.
func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Hold:
		return "hold"
	default:
		return "unknown"
	}
}

// Signal represents a directional signal produced by a strategy evaluation.
// A signal is read-only and has no lifecycle beyond the evaluation call that
// created it.
type Signal struct {
	Market    string
	Strategy  string
	Timeframe Timeframe
	Action    Action
	// Score is the strategy's confidence in the signal, in [0, 1].
	Score     float64
	Reasoning string
}

// ConsensusResult represents the outcome of a single multiplex evaluation
// cycle for a market.
type ConsensusResult struct {
	Market             string
	ConsensusRatio     float64
	OracleConfidence   float64
	Decision           Action
	RecommendedBetSize float64
	// ParticipatingTimeframes is the number of timeframes with enough
	// resampled bars to contribute a vote.
	ParticipatingTimeframes int
	PositiveTimeframes      int
	// ReasoningTrace is the ordered log of intermediate contributions, kept
	// for auditability.
	ReasoningTrace []string
	CreatedOn      time.Time
}

// MarketSignalKind represents the type of a cross-market bus signal.
type MarketSignalKind int

const (
	GoldenTemplate MarketSignalKind = iota
	SectorGoldenCross
	ExpertSentiment
)

// String stringifies the provided market signal kind.
func (k MarketSignalKind) String() string {
	switch k {
	case GoldenTemplate:
		return "golden template"
	case SectorGoldenCross:
		return "sector golden cross"
	case ExpertSentiment:
		return "expert sentiment"
	default:
		return "unknown"
	}
}

// MarketSignal represents a cross-market signal published on the signal bus,
// used by workers to corroborate their local technical triggers.
type MarketSignal struct {
	Market    string
	Sector    string
	Kind      MarketSignalKind
	Detail    string
	CreatedOn time.Time
}

// Outcome represents the structured record of a completed worker monitoring
// round.
type Outcome struct {
	ID         string
	Market     string
	Timeframe  Timeframe
	EntryPrice float64
	ExitPrice  float64
	PNLPercent float64
	Resonance  float64
	Win        bool
	Reason     string
	CreatedOn  time.Time
}
