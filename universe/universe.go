// Package universe implements the dynamic watchlist: scanner promoted
// markets tracked with activity timestamps, bounded in size, with stagnant
// entries pruned and the oldest evicted at capacity.
package universe

import (
	"sync"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/rs/zerolog"
)

const (
	// defaultMaxSize bounds the watchlist.
	defaultMaxSize = 50
	// defaultStagnantWindow is the inactivity duration before pruning.
	defaultStagnantWindow = 30 * time.Minute
	// activityThreshold is the fractional price move that refreshes a
	// market's activity timestamp.
	activityThreshold = 0.001
)

// Entry represents a watchlist member.
type Entry struct {
	Market       string
	AddedAt      time.Time
	Reason       string
	LastActiveAt time.Time
	LastPrice    float64
}

// UniverseConfig represents the watchlist configuration.
type UniverseConfig struct {
	// MaxSize bounds the watchlist.
	MaxSize int
	// StagnantWindow is the inactivity duration before pruning.
	StagnantWindow time.Duration
	// Clock is the time source.
	Clock shared.Clock
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Universe tracks the active market watchlist. Mutation happens only from
// the orchestration loop; the mutex guards concurrent reads from workers.
type Universe struct {
	cfg        *UniverseConfig
	entries    map[string]*Entry
	entriesMtx sync.RWMutex
}

// NewUniverse initializes a new watchlist.
func NewUniverse(cfg *UniverseConfig) *Universe {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.StagnantWindow == 0 {
		cfg.StagnantWindow = defaultStagnantWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}

	return &Universe{
		cfg:     cfg,
		entries: make(map[string]*Entry),
	}
}

// oldestLocked returns the market with the earliest admission time. The
// entries mutex must be held.
func (u *Universe) oldestLocked() string {
	var oldest string
	var oldestAt time.Time
	for market, entry := range u.entries {
		if oldest == "" || entry.AddedAt.Before(oldestAt) {
			oldest = market
			oldestAt = entry.AddedAt
		}
	}

	return oldest
}

// Admit adds the provided candidate to the watchlist, evicting the oldest
// member at capacity. Returns the evicted market, if any, and whether the
// candidate was newly admitted.
func (u *Universe) Admit(candidate shared.Candidate) (string, bool) {
	now := u.cfg.Clock.Now()

	u.entriesMtx.Lock()
	defer u.entriesMtx.Unlock()

	if _, ok := u.entries[candidate.Market]; ok {
		return "", false
	}

	var evicted string
	if len(u.entries) >= u.cfg.MaxSize {
		evicted = u.oldestLocked()
		delete(u.entries, evicted)
		u.cfg.Logger.Info().Msgf("evicted oldest watchlist member %s at capacity", evicted)
	}

	u.entries[candidate.Market] = &Entry{
		Market:       candidate.Market,
		AddedAt:      now,
		Reason:       candidate.Reason,
		LastActiveAt: now,
		LastPrice:    candidate.Price,
	}

	u.cfg.Logger.Info().Msgf("admitted %s to watchlist: %s", candidate.Market, candidate.Reason)
	return evicted, true
}

// Touch refreshes the activity timestamp for the provided market when its
// price has moved beyond the activity threshold since the last refresh.
func (u *Universe) Touch(market string, price float64) {
	now := u.cfg.Clock.Now()

	u.entriesMtx.Lock()
	defer u.entriesMtx.Unlock()

	entry, ok := u.entries[market]
	if !ok {
		return
	}

	if entry.LastPrice == 0 {
		entry.LastPrice = price
		entry.LastActiveAt = now
		return
	}

	move := (price - entry.LastPrice) / entry.LastPrice
	if move < 0 {
		move = -move
	}

	if move >= activityThreshold {
		entry.LastActiveAt = now
		entry.LastPrice = price
	}
}

// Prune removes markets stagnant beyond the configured window and returns
// them.
func (u *Universe) Prune() []string {
	now := u.cfg.Clock.Now()

	u.entriesMtx.Lock()
	defer u.entriesMtx.Unlock()

	pruned := make([]string, 0)
	for market, entry := range u.entries {
		if now.Sub(entry.LastActiveAt) > u.cfg.StagnantWindow {
			delete(u.entries, market)
			pruned = append(pruned, market)
		}
	}

	if len(pruned) > 0 {
		u.cfg.Logger.Info().Msgf("pruned %d stagnant watchlist members", len(pruned))
	}

	return pruned
}

// Contains reports whether the provided market is on the watchlist.
func (u *Universe) Contains(market string) bool {
	u.entriesMtx.RLock()
	defer u.entriesMtx.RUnlock()

	_, ok := u.entries[market]
	return ok
}

// Markets returns the current watchlist members.
func (u *Universe) Markets() []string {
	u.entriesMtx.RLock()
	defer u.entriesMtx.RUnlock()

	markets := make([]string, 0, len(u.entries))
	for market := range u.entries {
		markets = append(markets, market)
	}

	return markets
}

// Size returns the current watchlist size.
func (u *Universe) Size() int {
	u.entriesMtx.RLock()
	defer u.entriesMtx.RUnlock()

	return len(u.entries)
}
