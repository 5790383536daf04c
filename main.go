package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/dnldd/swarm/database"
	"github.com/dnldd/swarm/feed"
	"github.com/dnldd/swarm/oracle"
	"github.com/dnldd/swarm/service"
	"github.com/dnldd/swarm/shared"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DBEndpoint,
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
	})
	if err != nil {
		log.Printf("creating database: %v", err)
		return
	}

	var history shared.HistoricDataProvider
	if cfg.HistoryURL != "" {
		history = feed.NewHistoryClient(&feed.HistoryConfig{
			BaseURL: cfg.HistoryURL,
			APIKey:  cfg.HistoryAPIKey,
		})
	}

	var forecaster shared.Oracle
	if cfg.OracleURL != "" {
		forecaster = oracle.NewClient(&oracle.ClientConfig{
			BaseURL: cfg.OracleURL,
			APIKey:  cfg.OracleAPIKey,
		})
	}

	swarmCfg := service.SwarmConfig{
		Markets:      cfg.Markets,
		Sectors:      cfg.SectorMap(),
		RegimeMarket: cfg.RegimeMarket,
		HedgeMarkets: cfg.HedgeMarkets,
		FeedURL:      cfg.FeedURL,
		Capital:      float64(cfg.Capital),
		MetricsAddr:  cfg.MetricsAddr,
		HistoricData: history,
		Oracle:       forecaster,
		Storer:       db,
		Positions:    db,
		Executor:     &paperExecutor{},
		Cancel:       cancel,
	}
	swarm, err := service.NewSwarm(&swarmCfg)
	if err != nil {
		log.Printf("creating swarm service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	err = swarm.Run(ctx)
	if err != nil {
		log.Printf("running swarm service: %v", err)
	}
}
