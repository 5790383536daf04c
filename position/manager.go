package position

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dnldd/swarm/risk"
	"github.com/rs/zerolog"
)

const (
	// defaultMaxOpenPositions caps concurrent open positions.
	defaultMaxOpenPositions = 3
)

// BookConfig represents the position book configuration.
type BookConfig struct {
	// MaxOpenPositions caps concurrent open positions.
	MaxOpenPositions int
	// PersistClosedPosition persists the provided closed position. Failures
	// are logged, never propagated into trading flow.
	PersistClosedPosition func(position *Position) error
	// RecordExit relays a closed position's exit to the risk gate.
	RecordExit func(market string, exitPrice float64, reason string, at time.Time)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely checks out.
func (cfg *BookConfig) Validate() error {
	var errs error

	if cfg.PersistClosedPosition == nil {
		errs = errors.Join(errs, errors.New("persistClosedPosition function cannot be nil"))
	}
	if cfg.RecordExit == nil {
		errs = errors.Join(errs, errors.New("recordExit function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}

	return errs
}

// Book tracks open positions. The orchestration loop is its sole mutator,
// checking exits before admitting new entries each cycle.
type Book struct {
	cfg          *BookConfig
	positions    []*Position
	positionsMtx sync.RWMutex
}

// NewBook initializes a new position book.
func NewBook(cfg *BookConfig) (*Book, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenPositions == 0 {
		cfg.MaxOpenPositions = defaultMaxOpenPositions
	}

	return &Book{
		cfg:       cfg,
		positions: make([]*Position, 0, cfg.MaxOpenPositions),
	}, nil
}

// Open adds a new position to the book. Opening fails when the book is at
// capacity or the market already holds an open position.
func (b *Book) Open(market string, quantity float64, entryPrice float64, reason string,
	mode risk.TradeMode, bracket risk.ExitParams, at time.Time) (*Position, error) {
	b.positionsMtx.Lock()
	defer b.positionsMtx.Unlock()

	if len(b.positions) >= b.cfg.MaxOpenPositions {
		return nil, fmt.Errorf("position book at capacity: %d/%d",
			len(b.positions), b.cfg.MaxOpenPositions)
	}

	for idx := range b.positions {
		if b.positions[idx].Market == market {
			return nil, fmt.Errorf("%s already holds an open position", market)
		}
	}

	position := NewPosition(market, quantity, entryPrice, reason, mode, bracket, at)
	b.positions = append(b.positions, position)

	b.cfg.Logger.Info().Msgf("opened %s position (%s) @ %.2f, stop %.2f",
		market, position.ID, entryPrice, bracket.StopLoss)

	return position, nil
}

// HasOpen reports whether the provided market holds an open position.
func (b *Book) HasOpen(market string) bool {
	b.positionsMtx.RLock()
	defer b.positionsMtx.RUnlock()

	for idx := range b.positions {
		if b.positions[idx].Market == market {
			return true
		}
	}

	return false
}

// OpenCount returns the number of open positions.
func (b *Book) OpenCount() int {
	b.positionsMtx.RLock()
	defer b.positionsMtx.RUnlock()

	return len(b.positions)
}

// AtCapacity reports whether the book can admit another position.
func (b *Book) AtCapacity() bool {
	b.positionsMtx.RLock()
	defer b.positionsMtx.RUnlock()

	return len(b.positions) >= b.cfg.MaxOpenPositions
}

// OpenMarkets returns the markets with open positions.
func (b *Book) OpenMarkets() []string {
	b.positionsMtx.RLock()
	defer b.positionsMtx.RUnlock()

	markets := make([]string, 0, len(b.positions))
	for idx := range b.positions {
		markets = append(markets, b.positions[idx].Market)
	}

	return markets
}

// CheckExits checks every open position's bracket against the provided
// current prices, closing and persisting the ones that hit. Markets without
// a current price are skipped. Returns the closed positions.
func (b *Book) CheckExits(prices map[string]float64, at time.Time) []*Position {
	b.positionsMtx.Lock()
	defer b.positionsMtx.Unlock()

	closed := make([]*Position, 0)
	for idx := 0; idx < len(b.positions); idx++ {
		pos := b.positions[idx]
		price, ok := prices[pos.Market]
		if !ok {
			continue
		}

		pos.UpdatePNLPercent(price)
		hit, reason := pos.CheckBracket(price)
		if !hit {
			continue
		}

		pos.Close(price, reason, at)
		closed = append(closed, pos)

		err := b.cfg.PersistClosedPosition(pos)
		if err != nil {
			b.cfg.Logger.Error().Msgf("persisting closed position %s: %v", pos.ID, err)
		}

		b.cfg.RecordExit(pos.Market, price, reason, at)
		b.cfg.Logger.Info().Msgf("closed %s position (%s) @ %.2f, pnl %.2f%% (%s)",
			pos.Market, pos.ID, price, pos.PNLPercent, reason)

		b.positions = slices.Delete(b.positions, idx, idx+1)
		idx--
	}

	return closed
}
