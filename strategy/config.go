package strategy

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Config represents the tunable parameters shared by all strategies. A copy
// is passed into every evaluation, replacing any global parameter state.
type Config struct {
	// RSIPeriod is the relative strength lookback for mean reversion.
	RSIPeriod int
	// RSIOversold is the oversold threshold.
	RSIOversold float64
	// RSIOverbought is the overbought threshold.
	RSIOverbought float64
	// BollingerPeriod is the bollinger band lookback.
	BollingerPeriod int
	// BollingerStdDev is the bollinger band width in standard deviations.
	BollingerStdDev float64
	// FastMAPeriod is the fast moving average lookback for momentum.
	FastMAPeriod int
	// SlowMAPeriod is the slow moving average lookback for momentum.
	SlowMAPeriod int
	// VolumePeriod is the volume average lookback.
	VolumePeriod int
	// VolumeSurge is the minimum volume to average volume ratio treated as a
	// surge.
	VolumeSurge float64
	// ScalpRSIPeriod is the fast relative strength lookback for scalping.
	ScalpRSIPeriod int
	// ScalpRSIEntry is the extreme oversold threshold for scalping.
	ScalpRSIEntry float64
	// ScalpWindows are the intraday UTC hour windows the scalper trades in.
	ScalpWindows [][2]int
	// HedgeMarkets are the inverse instruments the hedge strategy is gated
	// to.
	HedgeMarkets []string
}

// DefaultConfig returns the reference parameter set.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		RSIOversold:     30,
		RSIOverbought:   70,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
		FastMAPeriod:    5,
		SlowMAPeriod:    20,
		VolumePeriod:    20,
		VolumeSurge:     2,
		ScalpRSIPeriod:  2,
		ScalpRSIEntry:   10,
		ScalpWindows:    [][2]int{{14, 16}, {19, 21}},
		HedgeMarkets:    []string{},
	}
}

// Validate asserts the config has sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.RSIPeriod <= 0 {
		errs = errors.Join(errs, fmt.Errorf("rsi period must be positive"))
	}
	if cfg.FastMAPeriod >= cfg.SlowMAPeriod {
		errs = errors.Join(errs, fmt.Errorf("fast ma period (%d) must be below slow ma period (%d)",
			cfg.FastMAPeriod, cfg.SlowMAPeriod))
	}
	if cfg.BollingerPeriod <= 0 {
		errs = errors.Join(errs, fmt.Errorf("bollinger period must be positive"))
	}
	if cfg.VolumeSurge < 1 {
		errs = errors.Join(errs, fmt.Errorf("volume surge ratio cannot be below 1"))
	}

	return errs
}

// IsHedgeMarket reports whether the provided market is a configured inverse
// instrument.
func (cfg *Config) IsHedgeMarket(market string) bool {
	return slices.Contains(cfg.HedgeMarkets, market)
}

// ParameterStore owns the live strategy parameter set and its
// reload-on-change semantics. It is injected at construction rather than
// imported globally.
type ParameterStore struct {
	cfgMtx sync.RWMutex
	cfg    Config
}

// NewParameterStore initializes a parameter store with the provided config.
func NewParameterStore(cfg Config) (*ParameterStore, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating strategy config: %w", err)
	}

	return &ParameterStore{cfg: cfg}, nil
}

// Fetch returns a copy of the current parameter set.
func (s *ParameterStore) Fetch() Config {
	s.cfgMtx.RLock()
	defer s.cfgMtx.RUnlock()

	return s.cfg
}

// Reload swaps in a new parameter set after validating it.
func (s *ParameterStore) Reload(cfg Config) error {
	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("validating strategy config: %w", err)
	}

	s.cfgMtx.Lock()
	s.cfg = cfg
	s.cfgMtx.Unlock()

	return nil
}
