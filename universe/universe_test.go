package universe

import (
	"fmt"
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

func newTestUniverse(t *testing.T, maxSize int) (*Universe, *fixedClock) {
	t.Helper()

	logger := log.With().Str("component", "universetest").Logger()
	clock := &fixedClock{at: time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)}

	return NewUniverse(&UniverseConfig{
		MaxSize: maxSize,
		Clock:   clock,
		Logger:  &logger,
	}), clock
}

func TestUniverseAdmission(t *testing.T) {
	universe, _ := newTestUniverse(t, 3)

	evicted, admitted := universe.Admit(shared.Candidate{Market: "AAPL", Price: 100, Reason: "top gainer +8%"})
	assert.True(t, admitted)
	assert.Equal(t, "", evicted)
	assert.True(t, universe.Contains("AAPL"))

	// Re-admitting an existing member is a no-op.
	_, admitted = universe.Admit(shared.Candidate{Market: "AAPL", Price: 101})
	assert.False(t, admitted)
	assert.Equal(t, 1, universe.Size())
}

func TestUniverseEvictsOldestAtCapacity(t *testing.T) {
	universe, clock := newTestUniverse(t, 3)

	for idx, market := range []string{"AAPL", "MSFT", "NVDA"} {
		clock.at = clock.at.Add(time.Duration(idx) * time.Minute)
		_, admitted := universe.Admit(shared.Candidate{Market: market, Price: 100})
		assert.True(t, admitted)
	}

	// The capacity bound holds and the oldest member is the one evicted.
	evicted, admitted := universe.Admit(shared.Candidate{Market: "TSLA", Price: 100})
	assert.True(t, admitted)
	assert.Equal(t, "AAPL", evicted)
	assert.Equal(t, 3, universe.Size())
	assert.False(t, universe.Contains("AAPL"))
	assert.True(t, universe.Contains("TSLA"))
}

func TestUniverseCapacityInvariant(t *testing.T) {
	universe, _ := newTestUniverse(t, 5)

	for idx := 0; idx < 20; idx++ {
		universe.Admit(shared.Candidate{Market: fmt.Sprintf("M%d", idx), Price: 100})
		assert.True(t, universe.Size() <= 5)
	}
}

func TestUniversePrunesStagnantMembers(t *testing.T) {
	universe, clock := newTestUniverse(t, 10)

	universe.Admit(shared.Candidate{Market: "AAPL", Price: 100})
	universe.Admit(shared.Candidate{Market: "MSFT", Price: 300})

	// A 0.2% move refreshes activity, a 0.05% move does not.
	clock.at = clock.at.Add(25 * time.Minute)
	universe.Touch("AAPL", 100.2)
	universe.Touch("MSFT", 300.15)

	clock.at = clock.at.Add(10 * time.Minute)
	pruned := universe.Prune()

	assert.Equal(t, []string{"MSFT"}, pruned)
	assert.True(t, universe.Contains("AAPL"))
	assert.False(t, universe.Contains("MSFT"))
}

func TestUniverseTouchUnknownMarket(t *testing.T) {
	universe, _ := newTestUniverse(t, 10)

	// Touching an untracked market is a no-op.
	universe.Touch("AAPL", 100)
	assert.Equal(t, 0, universe.Size())
}
