// Package position tracks open positions through their lifecycles: bracket
// checks against current prices, pnl updates and closed position handoff to
// persistence.
package position

import (
	"time"

	"github.com/dnldd/swarm/risk"
	"github.com/google/uuid"
)

// Status represents the status of a position.
type Status int

const (
	Active Status = iota
	TargetHit
	StoppedOut
	Closed
)

// String stringifies the provided position status.
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case TargetHit:
		return "target hit"
	case StoppedOut:
		return "stopped out"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Position represents a live market position opened by an approved decision.
type Position struct {
	ID          string
	Market      string
	Quantity    float64
	EntryPrice  float64
	EntryReason string
	Mode        risk.TradeMode
	Bracket     risk.ExitParams
	PNLPercent  float64
	PeakPrice   float64
	ExitPrice   float64
	ExitReason  string
	Status      Status
	CreatedOn   time.Time
	ClosedOn    time.Time
}

// NewPosition initializes a new active position.
func NewPosition(market string, quantity float64, entryPrice float64, reason string,
	mode risk.TradeMode, bracket risk.ExitParams, at time.Time) *Position {
	return &Position{
		ID:          uuid.New().String(),
		Market:      market,
		Quantity:    quantity,
		EntryPrice:  entryPrice,
		EntryReason: reason,
		Mode:        mode,
		Bracket:     bracket,
		PeakPrice:   entryPrice,
		Status:      Active,
		CreatedOn:   at,
	}
}

// UpdatePNLPercent updates the percentage change of the position given the
// current price.
func (p *Position) UpdatePNLPercent(currentPrice float64) float64 {
	p.PNLPercent = ((currentPrice - p.EntryPrice) / p.EntryPrice) * 100
	return p.PNLPercent
}

// CheckBracket checks the position's exit bracket against the provided price
// and reports whether it was hit, with the triggering reason. The peak price
// backing the trailing stop is updated as a side effect.
func (p *Position) CheckBracket(currentPrice float64) (bool, string) {
	if currentPrice > p.PeakPrice {
		p.PeakPrice = currentPrice
	}

	switch {
	case p.Bracket.TakeProfit > 0 && currentPrice >= p.Bracket.TakeProfit:
		return true, "target hit"
	case currentPrice <= p.Bracket.StopLoss:
		return true, "stop loss hit"
	case p.Bracket.TrailingStopPct > 0 &&
		currentPrice <= p.PeakPrice*(1-p.Bracket.TrailingStopPct):
		return true, "trailing stop hit"
	default:
		return false, ""
	}
}

// Close closes the position using the provided exit details.
func (p *Position) Close(exitPrice float64, reason string, at time.Time) Status {
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.ClosedOn = at
	p.UpdatePNLPercent(exitPrice)

	switch {
	case p.Bracket.TakeProfit > 0 && exitPrice >= p.Bracket.TakeProfit:
		p.Status = TargetHit
	case exitPrice <= p.Bracket.StopLoss:
		p.Status = StoppedOut
	default:
		p.Status = Closed
	}

	return p.Status
}
