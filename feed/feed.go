// Package feed implements the upstream market data clients: a partitioned
// websocket tick feed and an http historical data client used to cold-start
// workers and multiplex cycles.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// defaultBatchSize is the number of markets carried per websocket
	// session, respecting upstream per connection subscription limits.
	defaultBatchSize = 40
	// initialBackoff is the starting reconnect delay.
	initialBackoff = time.Second
	// maxBackoff caps the reconnect delay.
	maxBackoff = time.Minute
)

// FeedConfig represents the tick feed configuration.
type FeedConfig struct {
	// URL is the websocket endpoint of the upstream feed.
	URL string
	// Markets is the set of markets to subscribe to.
	Markets []string
	// BatchSize is the number of markets per websocket session.
	BatchSize int
	// Dispatch relays a parsed tick downstream.
	Dispatch func(tick shared.TickEvent)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely checks out.
func (cfg *FeedConfig) Validate() error {
	var errs error

	if cfg.URL == "" {
		errs = errors.Join(errs, errors.New("feed url cannot be an empty string"))
	}
	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, errors.New("feed markets cannot be empty"))
	}
	if cfg.Dispatch == nil {
		errs = errors.Join(errs, errors.New("dispatch function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}

	return errs
}

// Feed streams ticks from the upstream websocket feed, one session per
// market batch. A failing session reconnects with backoff without affecting
// its siblings.
type Feed struct {
	cfg      *FeedConfig
	sessions []*session
}

// NewFeed initializes a new tick feed.
func NewFeed(cfg *FeedConfig) (*Feed, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}

	feed := &Feed{cfg: cfg}
	for start := 0; start < len(cfg.Markets); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(cfg.Markets))

		logger := cfg.Logger.With().Int("session", len(feed.sessions)).Logger()
		feed.sessions = append(feed.sessions, &session{
			url:      cfg.URL,
			markets:  cfg.Markets[start:end],
			dispatch: cfg.Dispatch,
			logger:   &logger,
		})
	}

	return feed, nil
}

// Sessions returns the number of websocket sessions the feed partitions
// its markets across.
func (f *Feed) Sessions() int {
	return len(f.sessions)
}

// Run streams ticks until the context is cancelled.
func (f *Feed) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for idx := range f.sessions {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			s.run(ctx)
		}(f.sessions[idx])
	}

	wg.Wait()
}

// session owns one websocket connection carrying a batch of markets.
type session struct {
	url      string
	markets  []string
	dispatch func(tick shared.TickEvent)
	logger   *zerolog.Logger
}

// ParseTick parses a tick event from the provided feed frame.
func ParseTick(frame []byte) (shared.TickEvent, error) {
	market := gjson.GetBytes(frame, "symbol").String()
	if market == "" {
		return shared.TickEvent{}, fmt.Errorf("tick frame missing symbol")
	}

	price := gjson.GetBytes(frame, "price").Float()
	if price <= 0 {
		return shared.TickEvent{}, fmt.Errorf("tick frame for %s has invalid price", market)
	}

	return shared.TickEvent{
		Market:    market,
		Price:     price,
		Volume:    gjson.GetBytes(frame, "volume").Float(),
		Timestamp: time.UnixMilli(gjson.GetBytes(frame, "timestamp").Int()).UTC(),
	}, nil
}

// stream dials the feed, subscribes the session's markets and relays ticks
// until the connection fails or the context is cancelled.
func (s *session) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}
	defer conn.Close()

	// Unblock pending reads when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			// do nothing.
		}
	}()

	err = conn.WriteJSON(map[string]any{
		"action":  "subscribe",
		"symbols": s.markets,
	})
	if err != nil {
		return fmt.Errorf("subscribing markets: %w", err)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading feed frame: %w", err)
		}

		tick, err := ParseTick(frame)
		if err != nil {
			s.logger.Debug().Msgf("discarding frame: %v", err)
			continue
		}

		s.dispatch(tick)
	}
}

// run streams the session, reconnecting with capped exponential backoff on
// failure.
func (s *session) run(ctx context.Context) {
	backoff := initialBackoff
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			s.logger.Error().Msgf("feed session (%d markets): %v, reconnecting in %s",
				len(s.markets), err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		}
	}
}
