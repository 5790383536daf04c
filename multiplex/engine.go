// Package multiplex implements the cross timeframe consensus engine. For a
// single market it resamples the base series across a fixed set of
// timeframes, collects one vote per timeframe from the strategy set, merges
// the consensus ratio with an oracle confidence score and renders a final
// decision with a recommended bet size.
package multiplex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/swarm/indicator"
	"github.com/dnldd/swarm/resample"
	"github.com/dnldd/swarm/shared"
	"github.com/dnldd/swarm/strategy"
	"github.com/rs/zerolog"
)

const (
	// defaultMinBars is the minimum resampled bars for a timeframe to vote.
	defaultMinBars = 20
	// defaultConsensusThreshold is the consensus ratio required to consider
	// a buy.
	defaultConsensusThreshold = 0.60
	// defaultSuperConsensusThreshold is the consensus ratio that overrides a
	// skeptical oracle.
	defaultSuperConsensusThreshold = 0.80
	// defaultOracleApprovalThreshold is the oracle confidence required to
	// approve a consensus buy.
	defaultOracleApprovalThreshold = 0.70
	// defaultOracleTimeout is the latency budget for an oracle query.
	defaultOracleTimeout = 5 * time.Second
	// neutralConfidence is the oracle fallback when a query fails or times
	// out.
	neutralConfidence = 0.5
	// defaultRiskReward is the target risk to reward ratio used for sizing.
	defaultRiskReward = 2.5
	// atrPeriod is the average true range lookback for sizing de-leverage.
	atrPeriod = 14
)

// EngineConfig represents the multiplex engine configuration.
type EngineConfig struct {
	// Timeframes is the evaluated timeframe set.
	Timeframes []shared.Timeframe
	// MinBars is the minimum resampled bars for a timeframe to vote.
	MinBars int
	// ConsensusThreshold is the consensus ratio required to consider a buy.
	ConsensusThreshold float64
	// SuperConsensusThreshold overrides a skeptical oracle.
	SuperConsensusThreshold float64
	// OracleApprovalThreshold is the oracle confidence required to approve.
	OracleApprovalThreshold float64
	// OracleTimeout is the latency budget for an oracle query.
	OracleTimeout time.Duration
	// RiskReward is the target risk to reward ratio used for sizing.
	RiskReward float64
	// Capital is the sizing capital base.
	Capital float64
	// Oracle is the forecasting collaborator. A nil oracle cleanly disables
	// the oracle path, decisions then rest on consensus alone.
	Oracle shared.Oracle
	// Strategies evaluates each resampled series.
	Strategies *strategy.Registry
	// Params supplies strategy parameters.
	Params *strategy.ParameterStore
	// CalculateBetSize sizes an approved entry.
	CalculateBetSize func(capital float64, winRate float64, riskReward float64, volatilityPct float64) float64
	// Clock is the time source.
	Clock shared.Clock
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely checks out.
func (cfg *EngineConfig) Validate() error {
	var errs error

	if cfg.Strategies == nil {
		errs = errors.Join(errs, errors.New("strategy registry cannot be nil"))
	}
	if cfg.Params == nil {
		errs = errors.Join(errs, errors.New("parameter store cannot be nil"))
	}
	if cfg.CalculateBetSize == nil {
		errs = errors.Join(errs, errors.New("calculateBetSize function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}

	return errs
}

// Engine evaluates cross timeframe consensus for markets. The engine holds
// no per market state, independent markets may be analyzed concurrently.
type Engine struct {
	cfg *EngineConfig
}

// NewEngine initializes a new multiplex engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = shared.MultiplexTimeframes()
	}
	if cfg.MinBars == 0 {
		cfg.MinBars = defaultMinBars
	}
	if cfg.ConsensusThreshold == 0 {
		cfg.ConsensusThreshold = defaultConsensusThreshold
	}
	if cfg.SuperConsensusThreshold == 0 {
		cfg.SuperConsensusThreshold = defaultSuperConsensusThreshold
	}
	if cfg.OracleApprovalThreshold == 0 {
		cfg.OracleApprovalThreshold = defaultOracleApprovalThreshold
	}
	if cfg.OracleTimeout == 0 {
		cfg.OracleTimeout = defaultOracleTimeout
	}
	if cfg.RiskReward == 0 {
		cfg.RiskReward = defaultRiskReward
	}
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}

	return &Engine{cfg: cfg}, nil
}

// marketPhase classifies the base series phase from price against its
// twenty bar average.
func marketPhase(closes []float64) string {
	const period = 20
	if len(closes) < period {
		return "neutral"
	}

	ma := indicator.SMA(closes, period)
	last := len(closes) - 1

	switch {
	case closes[last] > ma[last]:
		return "bull"
	case closes[last] < ma[last]:
		return "bear"
	default:
		return "neutral"
	}
}

// consultOracle queries the oracle within its latency budget. Query failures
// and timeouts fall back to a neutral confidence rather than blocking the
// cycle.
func (e *Engine) consultOracle(ctx context.Context, market string, base []shared.Candlestick, sentiment float64, trace []string) (float64, []string) {
	octx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
	defer cancel()

	verdict, err := e.cfg.Oracle.Predict(octx, &shared.OracleContext{
		Market:        market,
		ShortCandles:  resample.Resample(base, shared.FiveMinute),
		LongCandles:   resample.Resample(base, shared.SixtyMinute),
		NewsSentiment: sentiment,
		MarketPhase:   marketPhase(shared.Closes(base)),
	})
	if err != nil {
		e.cfg.Logger.Error().Msgf("oracle query for %s: %v", market, err)
		trace = append(trace, "oracle unavailable, neutral fallback 0.50")
		return neutralConfidence, trace
	}

	trace = append(trace, fmt.Sprintf("oracle verdict %s, confidence %.2f",
		verdict.Action, verdict.Confidence))
	return verdict.Confidence, trace
}

// Analyze evaluates consensus for the provided market. Timeframes are
// evaluated sequentially so their votes never race each other.
func (e *Engine) Analyze(ctx context.Context, market string, base []shared.Candlestick, sentiment float64) shared.ConsensusResult {
	result := shared.ConsensusResult{
		Market:    market,
		Decision:  shared.Hold,
		CreatedOn: e.cfg.Clock.Now(),
	}

	params := e.cfg.Params.Fetch()
	trace := make([]string, 0, len(e.cfg.Timeframes)+3)

	var participating, positive int
	for _, timeframe := range e.cfg.Timeframes {
		resampled := resample.Resample(base, timeframe)
		if len(resampled) < e.cfg.MinBars {
			trace = append(trace, fmt.Sprintf("%s: excluded, %d/%d bars",
				timeframe, len(resampled), e.cfg.MinBars))
			continue
		}

		participating++

		signals := e.cfg.Strategies.EvaluateAll(resampled, &params)
		var voted bool
		for idx := range signals {
			if signals[idx].Action == shared.Buy {
				if !voted {
					positive++
					voted = true
				}
				trace = append(trace, fmt.Sprintf("%s: buy from %s (%.2f)",
					timeframe, signals[idx].Strategy, signals[idx].Score))
			}
		}
		if !voted {
			trace = append(trace, fmt.Sprintf("%s: no buy votes", timeframe))
		}
	}

	result.ParticipatingTimeframes = participating
	result.PositiveTimeframes = positive

	// No votes at any timeframe holds without consulting the oracle.
	if participating == 0 {
		result.ReasoningTrace = append(trace, "insufficient data at every timeframe")
		return result
	}

	result.ConsensusRatio = float64(positive) / float64(participating)
	trace = append(trace, fmt.Sprintf("consensus %d/%d = %.2f",
		positive, participating, result.ConsensusRatio))

	if result.ConsensusRatio < e.cfg.ConsensusThreshold {
		result.OracleConfidence = neutralConfidence
		result.ReasoningTrace = append(trace, fmt.Sprintf("below consensus threshold %.2f, holding",
			e.cfg.ConsensusThreshold))
		return result
	}

	switch {
	case e.cfg.Oracle == nil:
		// Oracle path disabled, consensus decides alone.
		result.OracleConfidence = neutralConfidence
		result.Decision = shared.Buy
		trace = append(trace, "no oracle configured, approving on consensus")
	default:
		confidence, updated := e.consultOracle(ctx, market, base, sentiment, trace)
		trace = updated
		result.OracleConfidence = confidence

		switch {
		case confidence > e.cfg.OracleApprovalThreshold:
			result.Decision = shared.Buy
			trace = append(trace, "oracle approved")
		case result.ConsensusRatio >= e.cfg.SuperConsensusThreshold:
			result.Decision = shared.Buy
			trace = append(trace, fmt.Sprintf("super consensus %.2f overrides skeptical oracle",
				result.ConsensusRatio))
		default:
			trace = append(trace, "oracle skeptical and no super consensus, holding")
		}
	}

	if result.Decision == shared.Buy {
		winRate := (result.ConsensusRatio + result.OracleConfidence) / 2
		atrPct := indicator.LatestATRPercent(base, atrPeriod)
		result.RecommendedBetSize = e.cfg.CalculateBetSize(e.cfg.Capital, winRate,
			e.cfg.RiskReward, atrPct)
		trace = append(trace, fmt.Sprintf("sized %.2f at win rate %.2f",
			result.RecommendedBetSize, winRate))
	}

	result.ReasoningTrace = trace
	return result
}
