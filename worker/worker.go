// Package worker implements the per market shadow worker: a stateful actor
// that aggregates ticks into candles, evaluates strategies on candle close
// and tracks virtual entries through to a recorded outcome.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dnldd/swarm/risk"
	"github.com/dnldd/swarm/shared"
	"github.com/dnldd/swarm/strategy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// defaultHistorySize is the bounded candle history per worker.
	defaultHistorySize = 300
	// entryScoreThreshold is the minimum resonance weighted score required
	// to open a virtual entry.
	entryScoreThreshold = 0.7
)

// State represents the lifecycle state of a shadow worker.
type State int

const (
	Idle State = iota
	Monitoring
)

// String stringifies the provided state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Monitoring:
		return "monitoring"
	default:
		return "unknown"
	}
}

// entry tracks a virtual position opened by the worker.
type entry struct {
	price     float64
	openedAt  time.Time
	bracket   risk.ExitParams
	mode      risk.TradeMode
	resonance float64
	peak      float64
}

// WorkerConfig represents the shadow worker configuration.
type WorkerConfig struct {
	// Market is the name of the tracked market.
	Market string
	// Sector is the sector grouping used for resonance.
	Sector string
	// Timeframe is the candle aggregation timeframe.
	Timeframe shared.Timeframe
	// HistorySize bounds the retained candle history.
	HistorySize int
	// Strategies evaluates the candle history on candle close.
	Strategies *strategy.Registry
	// Params supplies strategy parameters.
	Params *strategy.ParameterStore
	// CanEnter arbitrates a virtual entry with the risk gate.
	CanEnter func(market string, price float64, at time.Time, candles []shared.Candlestick) risk.EntryDecision
	// ExitParams fetches the exit bracket for an entry.
	ExitParams func(mode risk.TradeMode, entryPrice float64) risk.ExitParams
	// RecordExit relays an exit to the risk gate.
	RecordExit func(market string, exitPrice float64, reason string, at time.Time)
	// ResonanceWeight fetches the cross market boost for the market.
	ResonanceWeight func(market string, sector string) float64
	// PublishSignal posts a signal to the cross market board.
	PublishSignal func(signal shared.MarketSignal)
	// PersistOutcome records a completed virtual trade.
	PersistOutcome func(outcome shared.Outcome)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely checks out.
func (cfg *WorkerConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, errors.New("market cannot be an empty string"))
	}
	if cfg.Strategies == nil {
		errs = errors.Join(errs, errors.New("strategy registry cannot be nil"))
	}
	if cfg.Params == nil {
		errs = errors.Join(errs, errors.New("parameter store cannot be nil"))
	}
	if cfg.CanEnter == nil {
		errs = errors.Join(errs, errors.New("canEnter function cannot be nil"))
	}
	if cfg.ExitParams == nil {
		errs = errors.Join(errs, errors.New("exitParams function cannot be nil"))
	}
	if cfg.RecordExit == nil {
		errs = errors.Join(errs, errors.New("recordExit function cannot be nil"))
	}
	if cfg.ResonanceWeight == nil {
		errs = errors.Join(errs, errors.New("resonanceWeight function cannot be nil"))
	}
	if cfg.PublishSignal == nil {
		errs = errors.Join(errs, errors.New("publishSignal function cannot be nil"))
	}
	if cfg.PersistOutcome == nil {
		errs = errors.Join(errs, errors.New("persistOutcome function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}

	return errs
}

// Worker shadows a single market. It exclusively owns its candle buffers and
// in-progress candle; all mutation happens on its own run loop.
type Worker struct {
	cfg     *WorkerConfig
	state   State
	candles []shared.Candlestick
	current *shared.Candlestick
	open    *entry
	ticks   chan shared.TickEvent
}

// NewWorker initializes a new shadow worker.
func NewWorker(cfg *WorkerConfig) (*Worker, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.HistorySize == 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.Timeframe == 0 {
		cfg.Timeframe = shared.OneMinute
	}

	return &Worker{
		cfg:     cfg,
		state:   Idle,
		candles: make([]shared.Candlestick, 0, cfg.HistorySize),
		ticks:   make(chan shared.TickEvent, bufferSize),
	}, nil
}

// TickChannel returns the channel the worker consumes ticks from.
func (w *Worker) TickChannel() chan shared.TickEvent {
	return w.ticks
}

// State returns the current lifecycle state of the worker.
func (w *Worker) State() State {
	return w.state
}

// History returns the worker's closed candle history.
func (w *Worker) History() []shared.Candlestick {
	return w.candles
}

// Preload seeds the worker's candle history for a warm start.
func (w *Worker) Preload(candles []shared.Candlestick) {
	if len(candles) > w.cfg.HistorySize {
		candles = candles[len(candles)-w.cfg.HistorySize:]
	}

	w.candles = append(w.candles[:0], candles...)
}

// appendCandle freezes the provided candle into the bounded history.
func (w *Worker) appendCandle(candle shared.Candlestick) {
	w.candles = append(w.candles, candle)
	if len(w.candles) > w.cfg.HistorySize {
		w.candles = w.candles[1:]
	}
}

// ProcessTick advances the worker with the provided tick: bracket checks
// while monitoring, then candle aggregation and strategy evaluation on
// candle close. Ticks are processed strictly in arrival order.
func (w *Worker) ProcessTick(tick shared.TickEvent) {
	if w.state == Monitoring {
		w.checkBracket(tick)
	}

	bucket := w.cfg.Timeframe.Truncate(tick.Timestamp)
	switch {
	case w.current == nil:
		w.current = w.newCandle(tick, bucket)
	case !bucket.Equal(w.current.Date):
		w.closeCandle(tick.Timestamp)
		w.current = w.newCandle(tick, bucket)
	default:
		w.current.High = max(w.current.High, tick.Price)
		w.current.Low = min(w.current.Low, tick.Price)
		w.current.Close = tick.Price
		w.current.Volume += tick.Volume
	}
}

// newCandle starts an in-progress candle from the provided tick.
func (w *Worker) newCandle(tick shared.TickEvent, bucket time.Time) *shared.Candlestick {
	return &shared.Candlestick{
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
		Volume:    tick.Volume,
		Date:      bucket,
		Market:    w.cfg.Market,
		Timeframe: w.cfg.Timeframe,
	}
}

// closeCandle freezes the in-progress candle and evaluates strategies on the
// updated history.
func (w *Worker) closeCandle(at time.Time) {
	w.appendCandle(*w.current)
	w.current = nil

	if w.state != Idle {
		return
	}

	w.evaluate(at)
}

// evaluate runs the strategy set over the candle history and opens a virtual
// entry when a technical trigger resonates across the market's sector.
func (w *Worker) evaluate(at time.Time) {
	cfg := w.cfg.Params.Fetch()
	signals := w.cfg.Strategies.EvaluateAll(w.candles, &cfg)

	var best *shared.Signal
	for idx := range signals {
		if signals[idx].Action != shared.Buy {
			continue
		}
		if best == nil || signals[idx].Score > best.Score {
			best = &signals[idx]
		}
	}

	if best == nil {
		return
	}

	resonance := w.cfg.ResonanceWeight(w.cfg.Market, w.cfg.Sector)
	weighted := best.Score * resonance
	if weighted < entryScoreThreshold {
		w.cfg.Logger.Debug().Msgf("%s: %s trigger below threshold (%.2f x %.2f)",
			w.cfg.Market, best.Strategy, best.Score, resonance)
		return
	}

	price := w.candles[len(w.candles)-1].Close
	decision := w.cfg.CanEnter(w.cfg.Market, price, at, w.candles)
	if !decision.Allowed {
		w.cfg.Logger.Info().Msgf("%s: entry rejected, %s", w.cfg.Market, decision.Reason)
		return
	}

	mode := decision.Mode
	if mode == risk.Normal && risk.MaverickBreakout(w.candles) {
		mode = risk.Maverick
	}

	bracket := w.cfg.ExitParams(mode, price)
	w.open = &entry{
		price:     price,
		openedAt:  at,
		bracket:   bracket,
		mode:      mode,
		resonance: resonance,
		peak:      price,
	}
	w.state = Monitoring

	w.cfg.PublishSignal(shared.MarketSignal{
		Market:    w.cfg.Market,
		Sector:    w.cfg.Sector,
		Kind:      shared.GoldenTemplate,
		Detail:    best.Reasoning,
		CreatedOn: at,
	})

	w.cfg.Logger.Info().Msgf("%s: monitoring %s entry @ %.2f (%s), resonance %.2f",
		w.cfg.Market, mode, price, best.Strategy, resonance)
}

// checkBracket checks the open entry's exit bracket against the provided
// tick and finalizes the trade on a hit.
func (w *Worker) checkBracket(tick shared.TickEvent) {
	open := w.open
	open.peak = max(open.peak, tick.Price)

	switch {
	case open.bracket.TakeProfit > 0 && tick.Price >= open.bracket.TakeProfit:
		w.finalize(tick, "target hit")
	case tick.Price <= open.bracket.StopLoss:
		w.finalize(tick, "stop loss hit")
	case open.bracket.TrailingStopPct > 0 &&
		tick.Price <= open.peak*(1-open.bracket.TrailingStopPct):
		w.finalize(tick, "trailing stop hit")
	}
}

// finalize records the outcome of the open entry and returns the worker to
// idle.
func (w *Worker) finalize(tick shared.TickEvent, reason string) {
	open := w.open
	pnl := (tick.Price - open.price) / open.price * 100

	outcome := shared.Outcome{
		ID:         uuid.New().String(),
		Market:     w.cfg.Market,
		Timeframe:  w.cfg.Timeframe,
		EntryPrice: open.price,
		ExitPrice:  tick.Price,
		PNLPercent: pnl,
		Resonance:  open.resonance,
		Win:        pnl > 0,
		Reason:     reason,
		CreatedOn:  tick.Timestamp,
	}

	w.cfg.PersistOutcome(outcome)
	w.cfg.RecordExit(w.cfg.Market, tick.Price, reason, tick.Timestamp)

	w.cfg.Logger.Info().Msgf("%s: closed entry @ %.2f, pnl %.2f%% (%s)",
		w.cfg.Market, tick.Price, pnl, reason)

	w.open = nil
	w.state = Idle
}

// Run processes ticks for the worker until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-w.ticks:
			w.ProcessTick(tick)
		}
	}
}
