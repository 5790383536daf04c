package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the configuration struct for the service.
type Config struct {
	// Markets represents the tracked markets.
	Markets []string
	// Sectors maps markets to sector groupings, as market:sector pairs.
	Sectors []string
	// RegimeMarket is the index proxy used for regime classification.
	RegimeMarket string
	// HedgeMarkets are the inverse instruments eligible for hedge entries.
	HedgeMarkets []string
	// FeedURL is the websocket tick feed endpoint.
	FeedURL string
	// HistoryURL is the historical data api endpoint.
	HistoryURL string
	// HistoryAPIKey is the historical data api key.
	HistoryAPIKey string
	// OracleURL is the oracle service endpoint. Empty disables the oracle.
	OracleURL string
	// OracleAPIKey is the oracle service api key.
	OracleAPIKey string
	// DBEndpoint is the database connection endpoint.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string
	// Capital is the sizing capital base.
	Capital int
	// MetricsAddr exposes the prometheus endpoint when set.
	MetricsAddr string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for swarm service"))
	}
	if cfg.FeedURL == "" {
		errs = errors.Join(errs, fmt.Errorf("feed url cannot be an empty string"))
	}
	if cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Capital <= 0 {
		errs = errors.Join(errs, fmt.Errorf("capital must be positive"))
	}
	for idx := range cfg.Sectors {
		if !strings.Contains(cfg.Sectors[idx], ":") {
			errs = errors.Join(errs, fmt.Errorf("malformed sector pair: %s", cfg.Sectors[idx]))
		}
	}

	return errs
}

// SectorMap converts the configured market:sector pairs into a lookup map.
func (cfg *Config) SectorMap() map[string]string {
	sectors := make(map[string]string, len(cfg.Sectors))
	for idx := range cfg.Sectors {
		pair := strings.SplitN(cfg.Sectors[idx], ":", 2)
		if len(pair) == 2 {
			sectors[pair[0]] = pair[1]
		}
	}

	return sectors
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	for _, reg := range []struct {
		name  string
		value interface{}
		usage string
	}{
		{"markets", &cfg.Markets, "the tracked markets"},
		{"sectors", &cfg.Sectors, "market:sector pairs for resonance grouping"},
		{"regimemarket", &cfg.RegimeMarket, "the index proxy for regime classification"},
		{"hedgemarkets", &cfg.HedgeMarkets, "the inverse hedge instruments"},
		{"feedurl", &cfg.FeedURL, "the websocket tick feed endpoint"},
		{"historyurl", &cfg.HistoryURL, "the historical data api endpoint"},
		{"historyapikey", &cfg.HistoryAPIKey, "the historical data api key"},
		{"oracleurl", &cfg.OracleURL, "the oracle service endpoint"},
		{"oracleapikey", &cfg.OracleAPIKey, "the oracle service api key"},
		{"dbendpoint", &cfg.DBEndpoint, "the database connection endpoint"},
		{"dbuser", &cfg.DBUser, "the database user"},
		{"dbpass", &cfg.DBPass, "the database user pass"},
		{"capital", &cfg.Capital, "the sizing capital base"},
		{"metricsaddr", &cfg.MetricsAddr, "the prometheus metrics address"},
	} {
		err = cfg.registerFlag(reg.name, reg.value, reg.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
