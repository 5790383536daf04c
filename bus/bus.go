// Package bus routes market data between the feed and per market workers
// and tracks cross market signals used for resonance weighting.
package bus

import (
	"fmt"
	"sync"

	"github.com/dnldd/swarm/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// bufferSize is the default buffer size for subscriber channels.
	bufferSize = 64
)

// TickBusConfig represents the tick bus configuration.
type TickBusConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// TickBus fans ticks out to per market subscribers. Each market has at most
// one subscriber channel, so tick order per market is preserved end to end.
type TickBus struct {
	cfg     *TickBusConfig
	subs    map[string]chan<- shared.TickEvent
	subsMtx sync.RWMutex

	ticks   atomic.Uint64
	dropped atomic.Uint64
}

// NewTickBus initializes a new tick bus.
func NewTickBus(cfg *TickBusConfig) *TickBus {
	return &TickBus{
		cfg:  cfg,
		subs: make(map[string]chan<- shared.TickEvent),
	}
}

// Subscribe registers the provided channel as the sole tick consumer for the
// market.
func (b *TickBus) Subscribe(market string, ch chan<- shared.TickEvent) error {
	b.subsMtx.Lock()
	defer b.subsMtx.Unlock()

	if _, ok := b.subs[market]; ok {
		return fmt.Errorf("market %s already has a subscriber", market)
	}

	b.subs[market] = ch
	return nil
}

// Unsubscribe removes the tick consumer for the provided market.
func (b *TickBus) Unsubscribe(market string) {
	b.subsMtx.Lock()
	delete(b.subs, market)
	b.subsMtx.Unlock()
}

// Subscribed reports whether the provided market has a tick consumer.
func (b *TickBus) Subscribed(market string) bool {
	b.subsMtx.RLock()
	defer b.subsMtx.RUnlock()

	_, ok := b.subs[market]
	return ok
}

// Dispatch relays the provided tick to its market subscriber. Ticks for
// markets without a subscriber are discarded. The send never blocks, a slow
// consumer sheds ticks rather than stalling the feed.
func (b *TickBus) Dispatch(tick shared.TickEvent) {
	b.subsMtx.RLock()
	sub, ok := b.subs[tick.Market]
	b.subsMtx.RUnlock()

	if !ok {
		return
	}

	b.ticks.Inc()

	select {
	case sub <- tick:
		// do nothing.
	default:
		b.dropped.Inc()
		b.cfg.Logger.Error().Msgf("%s tick channel at capacity: %d/%d",
			tick.Market, len(sub), cap(sub))
	}
}

// TickCount returns the number of ticks dispatched to subscribers.
func (b *TickBus) TickCount() uint64 {
	return b.ticks.Load()
}

// DroppedCount returns the number of ticks shed by saturated subscribers.
func (b *TickBus) DroppedCount() uint64 {
	return b.dropped.Load()
}
