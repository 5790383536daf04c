package bus

import (
	"sync"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/rs/zerolog"
)

const (
	// sectorSignalWindow is the freshness window for sector level signals.
	sectorSignalWindow = 5 * time.Minute
	// expertFreshnessWindow is the freshness window for expert sentiment.
	expertFreshnessWindow = 24 * time.Hour
	// maxSectorResonance caps the counted sector signals for weighting.
	maxSectorResonance = 5
	// sectorIncrement is the resonance weight added per fresh sector signal.
	sectorIncrement = 0.1
	// expertIncrement is the resonance weight added for fresh expert
	// sentiment on the market.
	expertIncrement = 0.5
)

// SignalBoardConfig represents the signal board configuration.
type SignalBoardConfig struct {
	// Clock is the time source.
	Clock shared.Clock
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// SignalBoard tracks recent cross market signals. A win on a market whose
// sector is firing elsewhere carries more weight than an isolated one.
type SignalBoard struct {
	cfg        *SignalBoardConfig
	signals    []shared.MarketSignal
	signalsMtx sync.RWMutex
}

// NewSignalBoard initializes a new signal board.
func NewSignalBoard(cfg *SignalBoardConfig) *SignalBoard {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}

	return &SignalBoard{
		cfg:     cfg,
		signals: make([]shared.MarketSignal, 0),
	}
}

// fresh reports whether the provided signal is within its freshness window.
func fresh(signal *shared.MarketSignal, now time.Time) bool {
	window := sectorSignalWindow
	if signal.Kind == shared.ExpertSentiment {
		window = expertFreshnessWindow
	}

	return now.Sub(signal.CreatedOn) < window
}

// Publish posts the provided signal to the board and prunes stale entries.
func (b *SignalBoard) Publish(signal shared.MarketSignal) {
	now := b.cfg.Clock.Now()
	if signal.CreatedOn.IsZero() {
		signal.CreatedOn = now
	}

	b.signalsMtx.Lock()
	defer b.signalsMtx.Unlock()

	kept := b.signals[:0]
	for idx := range b.signals {
		if fresh(&b.signals[idx], now) {
			kept = append(kept, b.signals[idx])
		}
	}
	b.signals = append(kept, signal)

	b.cfg.Logger.Debug().Msgf("posted %s signal for %s (%s)",
		signal.Kind, signal.Market, signal.Sector)
}

// RelatedSignals returns the fresh signals relevant to the provided market:
// sector signals from other markets in the same sector, and expert sentiment
// on the market itself.
func (b *SignalBoard) RelatedSignals(market string, sector string) []shared.MarketSignal {
	now := b.cfg.Clock.Now()

	b.signalsMtx.RLock()
	defer b.signalsMtx.RUnlock()

	related := make([]shared.MarketSignal, 0)
	for idx := range b.signals {
		signal := b.signals[idx]
		if !fresh(&signal, now) {
			continue
		}

		switch signal.Kind {
		case shared.ExpertSentiment:
			if signal.Market == market {
				related = append(related, signal)
			}
		default:
			if signal.Sector == sector && signal.Market != market {
				related = append(related, signal)
			}
		}
	}

	return related
}

// ResonanceWeight computes the outcome weight multiplier for the provided
// market. The base weight grows with fresh sector activity, capped, and with
// fresh expert sentiment on the market.
func (b *SignalBoard) ResonanceWeight(market string, sector string) float64 {
	related := b.RelatedSignals(market, sector)

	var sectorSignals int
	var expert bool
	for idx := range related {
		if related[idx].Kind == shared.ExpertSentiment {
			expert = true
			continue
		}
		sectorSignals++
	}

	if sectorSignals > maxSectorResonance {
		sectorSignals = maxSectorResonance
	}

	weight := 1.0 + sectorIncrement*float64(sectorSignals)
	if expert {
		weight += expertIncrement
	}

	return weight
}
