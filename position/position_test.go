package position

import (
	"math"
	"testing"
	"time"

	"github.com/dnldd/swarm/risk"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func standardBracket(entry float64) risk.ExitParams {
	return risk.ExitParams{
		TakeProfit: entry * 1.03,
		StopLoss:   entry * 0.98,
	}
}

func TestPositionBracketChecks(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	pos := NewPosition("AAPL", 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)

	assert.Equal(t, Active, pos.Status)

	hit, _ := pos.CheckBracket(101)
	assert.False(t, hit)

	hit, reason := pos.CheckBracket(103.5)
	assert.True(t, hit)
	assert.Equal(t, "target hit", reason)

	hit, reason = pos.CheckBracket(97.5)
	assert.True(t, hit)
	assert.Equal(t, "stop loss hit", reason)
}

func TestPositionTrailingStop(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	bracket := risk.ExitParams{StopLoss: 97, TrailingStopPct: 0.05}
	pos := NewPosition("AAPL", 100, 100, "maverick breakout", risk.Maverick, bracket, now)

	// Uncapped upside: a large run does not trigger a target.
	hit, _ := pos.CheckBracket(120)
	assert.False(t, hit)

	// A 4% pullback from the peak survives the 5% trail.
	hit, _ = pos.CheckBracket(115.2)
	assert.False(t, hit)

	// A pullback through the trail exits.
	hit, reason := pos.CheckBracket(113.9)
	assert.True(t, hit)
	assert.Equal(t, "trailing stop hit", reason)
}

func TestPositionClose(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	pos := NewPosition("AAPL", 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)

	status := pos.Close(103.5, "target hit", now.Add(time.Hour))
	assert.Equal(t, TargetHit, status)
	assert.True(t, math.Abs(pos.PNLPercent-3.5) < 1e-9)

	pos = NewPosition("AAPL", 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)
	status = pos.Close(97, "stop loss hit", now.Add(time.Hour))
	assert.Equal(t, StoppedOut, status)
	assert.True(t, pos.PNLPercent < 0)
}

func newTestBook(t *testing.T, persisted *[]*Position, exits *[]string) *Book {
	t.Helper()

	logger := log.With().Str("component", "positiontest").Logger()
	book, err := NewBook(&BookConfig{
		PersistClosedPosition: func(position *Position) error {
			*persisted = append(*persisted, position)
			return nil
		},
		RecordExit: func(market string, exitPrice float64, reason string, at time.Time) {
			*exits = append(*exits, market)
		},
		Logger: &logger,
	})
	assert.NoError(t, err)

	return book
}

func TestBookCapsOpenPositions(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	var persisted []*Position
	var exits []string
	book := newTestBook(t, &persisted, &exits)

	for _, market := range []string{"AAPL", "MSFT", "NVDA"} {
		_, err := book.Open(market, 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)
		assert.NoError(t, err)
	}

	// The fourth position is rejected at capacity.
	_, err := book.Open("TSLA", 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)
	assert.Error(t, err)
	assert.True(t, book.AtCapacity())

	// Doubling up on an open market is rejected.
	book.CheckExits(map[string]float64{"AAPL": 103.5}, now)
	_, err = book.Open("MSFT", 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)
	assert.Error(t, err)
}

func TestBookCheckExits(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	var persisted []*Position
	var exits []string
	book := newTestBook(t, &persisted, &exits)

	_, err := book.Open("AAPL", 100, 100, "consensus buy", risk.Normal, standardBracket(100), now)
	assert.NoError(t, err)
	_, err = book.Open("MSFT", 100, 200, "consensus buy", risk.Normal, standardBracket(200), now)
	assert.NoError(t, err)

	// One target hit, one still active, one market with no price.
	closed := book.CheckExits(map[string]float64{"AAPL": 103.5}, now.Add(time.Hour))

	assert.Equal(t, 1, len(closed))
	assert.Equal(t, "AAPL", closed[0].Market)
	assert.Equal(t, TargetHit, closed[0].Status)
	assert.Equal(t, 1, len(persisted))
	assert.Equal(t, []string{"AAPL"}, exits)

	assert.False(t, book.HasOpen("AAPL"))
	assert.True(t, book.HasOpen("MSFT"))
	assert.Equal(t, 1, book.OpenCount())
}
