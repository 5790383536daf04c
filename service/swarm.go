// Package service wires the swarm together: the tick feed, the distribution
// bus, per market shadow workers, the multiplex engine, the risk gate and
// the periodic decision loop.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/swarm/bus"
	"github.com/dnldd/swarm/database"
	"github.com/dnldd/swarm/feed"
	"github.com/dnldd/swarm/metrics"
	"github.com/dnldd/swarm/multiplex"
	"github.com/dnldd/swarm/position"
	"github.com/dnldd/swarm/risk"
	"github.com/dnldd/swarm/shared"
	"github.com/dnldd/swarm/strategy"
	"github.com/dnldd/swarm/universe"
	"github.com/dnldd/swarm/worker"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// defaultDecisionInterval is the cadence of the decision cycle.
	defaultDecisionInterval = 30 * time.Second
	// defaultSnapshotInterval is the cadence of performance snapshots.
	defaultSnapshotInterval = 10 * time.Second
	// historyLookback is the candle history fetched to warm start a worker.
	historyLookback = 300
	// expertSentimentThreshold posts an expert sentiment signal to the board.
	expertSentimentThreshold = 0.7
	// neutralSentiment is the fallback when the sentiment query fails.
	neutralSentiment = 0.5
)

// SwarmConfig represents the configuration struct for the swarm service.
type SwarmConfig struct {
	// Markets represents the initially tracked markets.
	Markets []string
	// Sectors maps each market to its sector grouping.
	Sectors map[string]string
	// RegimeMarket is the index proxy used for regime classification.
	RegimeMarket string
	// HedgeMarkets are the inverse instruments eligible for hedge entries.
	HedgeMarkets []string
	// FeedURL is the websocket tick feed endpoint. An empty url disables the
	// feed; ticks may still be injected through OnTick.
	FeedURL string
	// Capital is the sizing capital base.
	Capital float64
	// MetricsAddr exposes the prometheus endpoint when set.
	MetricsAddr string
	// DecisionInterval overrides the decision cycle cadence.
	DecisionInterval time.Duration
	// HistoricData cold-starts workers. Optional; without it workers warm up
	// from live ticks alone.
	HistoricData shared.HistoricDataProvider
	// Oracle is the forecasting collaborator. A nil oracle disables the
	// oracle path.
	Oracle shared.Oracle
	// Storer persists outcomes and decisions.
	Storer shared.OutcomeStorer
	// Positions persists closed positions. Optional.
	Positions database.PositionStorer
	// Executor submits approved orders.
	Executor shared.OrderExecutor
	// Scanner supplies watchlist candidates. Optional.
	Scanner shared.Scanner
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sanely checks out.
func (cfg *SwarmConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for swarm service"))
	}
	if cfg.Capital <= 0 {
		errs = errors.Join(errs, fmt.Errorf("capital must be positive"))
	}
	if cfg.Storer == nil {
		errs = errors.Join(errs, fmt.Errorf("outcome storer cannot be nil"))
	}
	if cfg.Executor == nil {
		errs = errors.Join(errs, fmt.Errorf("order executor cannot be nil"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// runningWorker pairs a shadow worker with its cancellation function.
type runningWorker struct {
	worker *worker.Worker
	cancel context.CancelFunc
}

// Swarm represents the surveillance and decision service.
type Swarm struct {
	cfg         *SwarmConfig
	tickBus     *bus.TickBus
	signalBoard *bus.SignalBoard
	gate        *risk.Gate
	params      *strategy.ParameterStore
	registry    *strategy.Registry
	engine      *multiplex.Engine
	universe    *universe.Universe
	book        *position.Book
	tickFeed    *feed.Feed

	workers    map[string]*runningWorker
	workersMtx sync.Mutex

	prices    map[string]float64
	pricesMtx sync.RWMutex

	runCtx context.Context
	logger *zerolog.Logger
	wg     sync.WaitGroup
}

// NewSwarm initializes a new swarm service.
func NewSwarm(cfg *SwarmConfig) (*Swarm, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.DecisionInterval == 0 {
		cfg.DecisionInterval = defaultDecisionInterval
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logger := log.With().Str("service", "swarm").Logger()

	strategyCfg := strategy.DefaultConfig()
	strategyCfg.HedgeMarkets = cfg.HedgeMarkets
	params, err := strategy.NewParameterStore(strategyCfg)
	if err != nil {
		return nil, fmt.Errorf("creating parameter store: %w", err)
	}

	registryLogger := logger.With().Str("component", "strategy").Logger()
	registry, err := strategy.NewRegistry(&registryLogger, strategy.NewMomentumCross(),
		strategy.NewMeanReversion(), strategy.NewPowerHourScalp(), strategy.NewInverseHedge())
	if err != nil {
		return nil, fmt.Errorf("creating strategy registry: %w", err)
	}

	gateLogger := logger.With().Str("component", "risk").Logger()
	gate := risk.NewGate(risk.DefaultGateConfig(&gateLogger))

	busLogger := logger.With().Str("component", "bus").Logger()
	tickBus := bus.NewTickBus(&bus.TickBusConfig{Logger: &busLogger})
	signalBoard := bus.NewSignalBoard(&bus.SignalBoardConfig{Logger: &busLogger})

	engineLogger := logger.With().Str("component", "multiplex").Logger()
	engine, err := multiplex.NewEngine(&multiplex.EngineConfig{
		Capital:          cfg.Capital,
		Oracle:           cfg.Oracle,
		Strategies:       registry,
		Params:           params,
		CalculateBetSize: gate.CalculateBetSize,
		Logger:           &engineLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating multiplex engine: %w", err)
	}

	universeLogger := logger.With().Str("component", "universe").Logger()
	watchlist := universe.NewUniverse(&universe.UniverseConfig{Logger: &universeLogger})

	bookLogger := logger.With().Str("component", "positions").Logger()
	book, err := position.NewBook(&position.BookConfig{
		PersistClosedPosition: func(pos *position.Position) error {
			if cfg.Positions == nil {
				return nil
			}
			return cfg.Positions.PersistClosedPosition(context.Background(), pos)
		},
		RecordExit: gate.RecordExit,
		Logger:     &bookLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating position book: %w", err)
	}

	service := &Swarm{
		cfg:         cfg,
		tickBus:     tickBus,
		signalBoard: signalBoard,
		gate:        gate,
		params:      params,
		registry:    registry,
		engine:      engine,
		universe:    watchlist,
		book:        book,
		workers:     make(map[string]*runningWorker),
		prices:      make(map[string]float64),
		logger:      &logger,
	}

	if cfg.FeedURL != "" {
		feedLogger := logger.With().Str("component", "feed").Logger()
		tickFeed, err := feed.NewFeed(&feed.FeedConfig{
			URL:      cfg.FeedURL,
			Markets:  cfg.Markets,
			Dispatch: service.OnTick,
			Logger:   &feedLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating tick feed: %w", err)
		}
		service.tickFeed = tickFeed
	}

	return service, nil
}

// OnTick routes the provided tick into the swarm.
func (s *Swarm) OnTick(tick shared.TickEvent) {
	metrics.TicksTotal.Inc()

	s.pricesMtx.Lock()
	s.prices[tick.Market] = tick.Price
	s.pricesMtx.Unlock()

	s.universe.Touch(tick.Market, tick.Price)
	s.tickBus.Dispatch(tick)
}

// latestPrices snapshots the last seen price per market.
func (s *Swarm) latestPrices() map[string]float64 {
	s.pricesMtx.RLock()
	defer s.pricesMtx.RUnlock()

	prices := make(map[string]float64, len(s.prices))
	for market, price := range s.prices {
		prices[market] = price
	}

	return prices
}

// regime classifies the current system regime from the configured index
// proxy's candle history.
func (s *Swarm) regime() risk.Regime {
	s.workersMtx.Lock()
	running, ok := s.workers[s.cfg.RegimeMarket]
	s.workersMtx.Unlock()

	if !ok {
		return risk.Neutral
	}

	return risk.ClassifyRegime(running.worker.History())
}

// ensureWorker starts a shadow worker for the provided market if one is not
// already running.
func (s *Swarm) ensureWorker(ctx context.Context, market string) error {
	s.workersMtx.Lock()
	defer s.workersMtx.Unlock()

	if _, ok := s.workers[market]; ok {
		return nil
	}

	workerLogger := s.logger.With().Str("component", "worker").Str("market", market).Logger()
	w, err := worker.NewWorker(&worker.WorkerConfig{
		Market:     market,
		Sector:     s.cfg.Sectors[market],
		Timeframe:  shared.OneMinute,
		Strategies: s.registry,
		Params:     s.params,
		CanEnter: func(market string, price float64, at time.Time, candles []shared.Candlestick) risk.EntryDecision {
			return s.gate.CanEnter(market, price, at, candles, s.regime())
		},
		ExitParams:      s.gate.FetchExitParams,
		RecordExit:      s.gate.RecordExit,
		ResonanceWeight: s.signalBoard.ResonanceWeight,
		PublishSignal:   s.signalBoard.Publish,
		PersistOutcome:  s.persistOutcome,
		Logger:          &workerLogger,
	})
	if err != nil {
		return fmt.Errorf("creating worker for %s: %w", market, err)
	}

	if s.cfg.HistoricData != nil {
		history, err := s.cfg.HistoricData.FetchHistory(ctx, market, historyLookback)
		if err != nil {
			s.logger.Error().Msgf("warm starting %s: %v", market, err)
		} else {
			w.Preload(history)
		}
	}

	err = s.tickBus.Subscribe(market, w.TickChannel())
	if err != nil {
		return fmt.Errorf("subscribing %s worker: %w", market, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	s.workers[market] = &runningWorker{worker: w, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.Run(wctx)
	}()

	return nil
}

// removeWorker stops and detaches the provided market's worker.
func (s *Swarm) removeWorker(market string) {
	s.workersMtx.Lock()
	defer s.workersMtx.Unlock()

	running, ok := s.workers[market]
	if !ok {
		return
	}

	s.tickBus.Unsubscribe(market)
	running.cancel()
	delete(s.workers, market)
}

// persistOutcome records a worker outcome. Persistence failures are logged,
// never propagated into trading flow.
func (s *Swarm) persistOutcome(outcome shared.Outcome) {
	result := "loss"
	if outcome.Win {
		result = "win"
	}
	metrics.OutcomesTotal.WithLabelValues(outcome.Market, result).Inc()

	err := s.cfg.Storer.PersistOutcome(context.Background(), &outcome)
	if err != nil {
		s.logger.Error().Msgf("persisting outcome for %s: %v", outcome.Market, err)
	}
}

// refreshUniverse prunes stagnant markets and admits scanner candidates,
// keeping the worker set aligned with the watchlist.
func (s *Swarm) refreshUniverse(ctx context.Context) {
	for _, market := range s.universe.Prune() {
		s.removeWorker(market)
	}

	if s.cfg.Scanner != nil {
		candidates, err := s.cfg.Scanner.Scan(ctx)
		if err != nil {
			s.logger.Error().Msgf("scanning for candidates: %v", err)
		}

		for idx := range candidates {
			evicted, admitted := s.universe.Admit(candidates[idx])
			if evicted != "" {
				s.removeWorker(evicted)
			}
			if admitted {
				err := s.ensureWorker(s.runCtx, candidates[idx].Market)
				if err != nil {
					s.logger.Error().Msgf("starting worker: %v", err)
				}
			}
		}
	}

	metrics.WatchlistSize.Set(float64(s.universe.Size()))
}

// fetchSentiment fetches news sentiment for the provided market, falling
// back to neutral on failure.
func (s *Swarm) fetchSentiment(ctx context.Context, market string) float64 {
	if s.cfg.Oracle == nil {
		return neutralSentiment
	}

	sentiment, err := s.cfg.Oracle.FetchSentiment(ctx, market)
	if err != nil {
		s.logger.Error().Msgf("fetching sentiment for %s: %v", market, err)
		return neutralSentiment
	}

	if sentiment >= expertSentimentThreshold {
		s.signalBoard.Publish(shared.MarketSignal{
			Market: market,
			Sector: s.cfg.Sectors[market],
			Kind:   shared.ExpertSentiment,
			Detail: fmt.Sprintf("sentiment %.2f", sentiment),
		})
	}

	return sentiment
}

// submitOrder relays an approved order to the executor.
func (s *Swarm) submitOrder(ctx context.Context, market string, side shared.OrderSide, quantity float64, price float64) {
	result, err := s.cfg.Executor.SubmitOrder(ctx, market, side, quantity, price)
	if err != nil {
		s.logger.Error().Msgf("submitting %s order for %s: %v", side, market, err)
		return
	}
	if !result.Success {
		s.logger.Error().Msgf("%s order for %s rejected: %s", side, market, result.Err)
		return
	}

	metrics.OrdersTotal.WithLabelValues(market, side.String()).Inc()
	s.logger.Info().Msgf("submitted %s order for %s: %.2f @ %.2f (%s)",
		side, market, quantity, price, result.OrderID)
}

// checkExits closes positions whose brackets were hit and submits the
// corresponding sell orders. Exits always run before new entries to avoid
// over-allocation.
func (s *Swarm) checkExits(ctx context.Context, now time.Time) {
	prices := s.latestPrices()
	closed := s.book.CheckExits(prices, now)
	for idx := range closed {
		pos := closed[idx]
		s.submitOrder(ctx, pos.Market, shared.SellOrder, pos.Quantity, pos.ExitPrice)
	}

	metrics.OpenPositions.Set(float64(s.book.OpenCount()))
}

// evaluateEntries runs the multiplex engine over watchlist markets without
// open positions and opens approved ones.
func (s *Swarm) evaluateEntries(ctx context.Context, now time.Time) {
	regime := s.regime()

	for _, market := range s.universe.Markets() {
		if s.book.AtCapacity() {
			return
		}
		if s.book.HasOpen(market) {
			continue
		}

		s.workersMtx.Lock()
		running, ok := s.workers[market]
		s.workersMtx.Unlock()
		if !ok {
			continue
		}

		history := running.worker.History()
		if len(history) == 0 {
			continue
		}

		sentiment := s.fetchSentiment(ctx, market)
		result := s.engine.Analyze(ctx, market, history, sentiment)
		metrics.DecisionsTotal.WithLabelValues(market, result.Decision.String()).Inc()

		err := s.cfg.Storer.PersistDecision(ctx, &result)
		if err != nil {
			s.logger.Error().Msgf("persisting decision for %s: %v", market, err)
		}

		if result.Decision != shared.Buy {
			continue
		}

		price := history[len(history)-1].Close
		decision := s.gate.CanEnter(market, price, now, history, regime)
		if !decision.Allowed {
			s.logger.Info().Msgf("%s: consensus buy rejected by gate, %s", market, decision.Reason)
			continue
		}

		if result.RecommendedBetSize <= 0 || price <= 0 {
			continue
		}

		quantity := result.RecommendedBetSize / price
		bracket := s.gate.FetchExitParams(decision.Mode, price)
		_, err = s.book.Open(market, quantity, price, fmt.Sprintf("consensus %.2f, oracle %.2f",
			result.ConsensusRatio, result.OracleConfidence), decision.Mode, bracket, now)
		if err != nil {
			s.logger.Error().Msgf("opening position for %s: %v", market, err)
			continue
		}

		s.submitOrder(ctx, market, shared.BuyOrder, quantity, price)
	}
}

// decisionCycle runs one full orchestration pass: exits, universe refresh,
// then new entries.
func (s *Swarm) decisionCycle(ctx context.Context) {
	now := time.Now().UTC()

	s.checkExits(ctx, now)
	s.refreshUniverse(ctx)
	s.evaluateEntries(ctx, now)
}

// snapshot logs throughput counters for the performance monitor.
func (s *Swarm) snapshot() {
	s.logger.Info().Msgf("ticks %d (dropped %d), open positions %d, watchlist %d",
		s.tickBus.TickCount(), s.tickBus.DroppedCount(), s.book.OpenCount(), s.universe.Size())
}

// Run handles the lifecycle processes of the swarm service.
func (s *Swarm) Run(ctx context.Context) error {
	s.runCtx = ctx

	if s.cfg.MetricsAddr != "" {
		srv := metrics.Serve(s.cfg.MetricsAddr)
		defer srv.Close()
	}

	// Seed the watchlist and workers from the configured markets.
	for _, market := range s.cfg.Markets {
		s.universe.Admit(shared.Candidate{Market: market, Reason: "configured market"})
		err := s.ensureWorker(ctx, market)
		if err != nil {
			return err
		}
	}

	if s.tickFeed != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tickFeed.Run(ctx)
		}()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating job scheduler: %w", err)
	}

	_, err = scheduler.NewJob(gocron.DurationJob(s.cfg.DecisionInterval),
		gocron.NewTask(func() { s.decisionCycle(ctx) }))
	if err != nil {
		return fmt.Errorf("scheduling decision cycle: %w", err)
	}

	_, err = scheduler.NewJob(gocron.DurationJob(defaultSnapshotInterval),
		gocron.NewTask(s.snapshot))
	if err != nil {
		return fmt.Errorf("scheduling performance snapshot: %w", err)
	}

	scheduler.Start()

	<-ctx.Done()

	err = scheduler.Shutdown()
	if err != nil {
		s.logger.Error().Msgf("shutting down scheduler: %v", err)
	}

	s.wg.Wait()
	return nil
}
