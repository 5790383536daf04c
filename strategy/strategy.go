// Package strategy implements the pluggable signal evaluators run by workers
// and the multiplex engine. Each strategy is a pure function from a candle
// window to a directional signal; the registry isolates failures so a single
// misbehaving strategy can never take down an evaluation cycle.
package strategy

import (
	"fmt"

	"github.com/dnldd/swarm/shared"
	"github.com/rs/zerolog"
)

// Strategy defines the requirements for a signal evaluator.
type Strategy interface {
	// Name returns the name of the strategy.
	Name() string
	// Evaluate produces a directional signal from the provided candle
	// window. Implementations return a hold signal with a zero score when
	// there is insufficient history.
	Evaluate(candles []shared.Candlestick, cfg *Config) shared.Signal
}

// Registry holds the ordered set of registered strategies.
type Registry struct {
	strategies []Strategy
	logger     *zerolog.Logger
}

// NewRegistry initializes a strategy registry. At least one strategy must be
// registered.
func NewRegistry(logger *zerolog.Logger, strategies ...Strategy) (*Registry, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies registered")
	}

	return &Registry{
		strategies: strategies,
		logger:     logger,
	}, nil
}

// Strategies returns the registered strategies in evaluation order.
func (r *Registry) Strategies() []Strategy {
	return r.strategies
}

// evaluateOne runs a single strategy, converting a panic into a hold signal
// so one failing strategy cannot take down the rest of the evaluation.
func (r *Registry) evaluateOne(strat Strategy, candles []shared.Candlestick, cfg *Config) (signal shared.Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Msgf("strategy %s panicked during evaluation: %v", strat.Name(), rec)
			market, timeframe := seriesIdentity(candles)
			signal = holdSignal(market, timeframe, strat.Name(), "evaluation failure")
		}
	}()

	return strat.Evaluate(candles, cfg)
}

// EvaluateAll runs every registered strategy against the provided candle
// window and returns their signals in registration order.
func (r *Registry) EvaluateAll(candles []shared.Candlestick, cfg *Config) []shared.Signal {
	signals := make([]shared.Signal, 0, len(r.strategies))
	for idx := range r.strategies {
		signals = append(signals, r.evaluateOne(r.strategies[idx], candles, cfg))
	}

	return signals
}

// seriesIdentity extracts the market and timeframe from a candle window.
func seriesIdentity(candles []shared.Candlestick) (string, shared.Timeframe) {
	if len(candles) == 0 {
		return "", shared.OneMinute
	}

	last := candles[len(candles)-1]
	return last.Market, last.Timeframe
}

// holdSignal creates a neutral signal for the provided market and strategy.
func holdSignal(market string, timeframe shared.Timeframe, strategy string, reasoning string) shared.Signal {
	return shared.Signal{
		Market:    market,
		Strategy:  strategy,
		Timeframe: timeframe,
		Action:    shared.Hold,
		Score:     0,
		Reasoning: reasoning,
	}
}
