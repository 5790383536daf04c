package shared

import (
	"context"
	"time"
)

// OrderSide represents the side of an order.
type OrderSide int

const (
	BuyOrder OrderSide = iota
	SellOrder
)

// String stringifies the provided order side.
func (s OrderSide) String() string {
	switch s {
	case BuyOrder:
		return "buy"
	case SellOrder:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderResult represents the response from an order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Err     string
}

// OracleContext represents the context supplied to the oracle for a
// prediction.
type OracleContext struct {
	Market        string
	ShortCandles  []Candlestick
	LongCandles   []Candlestick
	NewsSentiment float64
	MarketPhase   string
}

// OracleVerdict represents the oracle's response to a prediction query.
type OracleVerdict struct {
	Action     Action
	Confidence float64
}

// Candidate represents a market proposed by the scanner for watchlist
// admission.
type Candidate struct {
	Market string
	Price  float64
	Reason string
}

// HistoricDataProvider defines the requirements for fetching historical
// market data to cold-start a worker or a multiplex cycle.
type HistoricDataProvider interface {
	// FetchHistory fetches up to lookback base timeframe candles for the
	// provided market.
	FetchHistory(ctx context.Context, market string, lookback int) ([]Candlestick, error)
}

// OrderExecutor defines the requirements for submitting orders. The core
// does not manage order books or fills.
type OrderExecutor interface {
	// SubmitOrder submits the described order for execution.
	SubmitOrder(ctx context.Context, market string, side OrderSide, quantity float64, price float64) (OrderResult, error)
}

// Oracle defines the requirements for the external forecasting collaborator.
type Oracle interface {
	// Predict queries the oracle for a verdict on the provided context.
	Predict(ctx context.Context, octx *OracleContext) (OracleVerdict, error)
	// FetchSentiment fetches the news sentiment score for the provided
	// market, in [0, 1].
	FetchSentiment(ctx context.Context, market string) (float64, error)
}

// OutcomeStorer defines the requirements for persisting worker outcomes and
// multiplex decisions. Persistence failures must never block trading logic.
type OutcomeStorer interface {
	// PersistOutcome stores the provided outcome.
	PersistOutcome(ctx context.Context, outcome *Outcome) error
	// PersistDecision stores the provided consensus result.
	PersistDecision(ctx context.Context, result *ConsensusResult) error
}

// Scanner defines the requirements for sourcing watchlist candidates.
type Scanner interface {
	// Scan fetches candidate markets for watchlist admission.
	Scan(ctx context.Context) ([]Candidate, error)
}

// Clock defines the requirements for fetching the current time. It is
// injected to keep cooldown and freshness checks deterministic in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
