package bus

import (
	"math"
	"testing"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

type fixedClock struct {
	at time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.at
}

func TestTickBusRouting(t *testing.T) {
	logger := log.With().Str("component", "bustest").Logger()
	bus := NewTickBus(&TickBusConfig{Logger: &logger})

	ch := make(chan shared.TickEvent, 4)
	assert.NoError(t, bus.Subscribe("AAPL", ch))

	// Duplicate subscriptions are rejected.
	assert.Error(t, bus.Subscribe("AAPL", make(chan shared.TickEvent)))

	// Ticks for untracked markets are discarded.
	bus.Dispatch(shared.TickEvent{Market: "TSLA", Price: 200})
	assert.Equal(t, uint64(0), bus.TickCount())

	bus.Dispatch(shared.TickEvent{Market: "AAPL", Price: 101})
	bus.Dispatch(shared.TickEvent{Market: "AAPL", Price: 102})
	assert.Equal(t, uint64(2), bus.TickCount())

	// Per market ordering holds.
	first := <-ch
	second := <-ch
	assert.Equal(t, float64(101), first.Price)
	assert.Equal(t, float64(102), second.Price)

	bus.Unsubscribe("AAPL")
	assert.False(t, bus.Subscribed("AAPL"))
}

func TestTickBusShedsOnSaturation(t *testing.T) {
	logger := log.With().Str("component", "bustest").Logger()
	bus := NewTickBus(&TickBusConfig{Logger: &logger})

	ch := make(chan shared.TickEvent, 1)
	assert.NoError(t, bus.Subscribe("AAPL", ch))

	bus.Dispatch(shared.TickEvent{Market: "AAPL", Price: 101})
	bus.Dispatch(shared.TickEvent{Market: "AAPL", Price: 102})

	assert.Equal(t, uint64(1), bus.DroppedCount())

	// The retained tick is the earliest, never a reordering.
	tick := <-ch
	assert.Equal(t, float64(101), tick.Price)
}

func TestSignalBoardResonance(t *testing.T) {
	logger := log.With().Str("component", "bustest").Logger()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{at: now}
	board := NewSignalBoard(&SignalBoardConfig{Clock: clock, Logger: &logger})

	// An isolated market carries the base weight.
	assert.Equal(t, 1.0, board.ResonanceWeight("AAPL", "tech"))

	// Three fresh sector signals from other markets add 0.1 each.
	for _, market := range []string{"MSFT", "NVDA", "GOOG"} {
		board.Publish(shared.MarketSignal{
			Market: market,
			Sector: "tech",
			Kind:   shared.SectorGoldenCross,
		})
	}
	assert.True(t, math.Abs(board.ResonanceWeight("AAPL", "tech")-1.3) < 1e-9)

	// The market's own signal does not count toward its resonance.
	board.Publish(shared.MarketSignal{Market: "AAPL", Sector: "tech", Kind: shared.GoldenTemplate})
	assert.True(t, math.Abs(board.ResonanceWeight("AAPL", "tech")-1.3) < 1e-9)

	// Expert sentiment on the market adds 0.5.
	board.Publish(shared.MarketSignal{Market: "AAPL", Kind: shared.ExpertSentiment})
	assert.True(t, math.Abs(board.ResonanceWeight("AAPL", "tech")-1.8) < 1e-9)

	// Other sectors are unaffected.
	assert.Equal(t, 1.0, board.ResonanceWeight("XOM", "energy"))
}

func TestSignalBoardResonanceCap(t *testing.T) {
	logger := log.With().Str("component", "bustest").Logger()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	board := NewSignalBoard(&SignalBoardConfig{Clock: &fixedClock{at: now}, Logger: &logger})

	for idx := 0; idx < 8; idx++ {
		board.Publish(shared.MarketSignal{
			Market: string(rune('A' + idx)),
			Sector: "tech",
			Kind:   shared.SectorGoldenCross,
		})
	}

	// Sector resonance caps at five signals.
	assert.True(t, math.Abs(board.ResonanceWeight("AAPL", "tech")-1.5) < 1e-9)
}

func TestSignalBoardPrunesStaleSignals(t *testing.T) {
	logger := log.With().Str("component", "bustest").Logger()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{at: now}
	board := NewSignalBoard(&SignalBoardConfig{Clock: clock, Logger: &logger})

	board.Publish(shared.MarketSignal{Market: "MSFT", Sector: "tech", Kind: shared.SectorGoldenCross})
	board.Publish(shared.MarketSignal{Market: "AAPL", Kind: shared.ExpertSentiment})

	// Sector signals expire after five minutes, expert sentiment persists
	// for a day.
	clock.at = now.Add(6 * time.Minute)
	related := board.RelatedSignals("AAPL", "tech")
	assert.Equal(t, 1, len(related))
	assert.Equal(t, shared.ExpertSentiment, related[0].Kind)

	clock.at = now.Add(25 * time.Hour)
	assert.Equal(t, 0, len(board.RelatedSignals("AAPL", "tech")))
}
