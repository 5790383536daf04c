// Package database persists worker outcomes, consensus decisions and closed
// positions to rqlite. Persistence is fire and forget from the trading path;
// failures are surfaced to callers for logging only.
package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/swarm/position"
	"github.com/dnldd/swarm/shared"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// SQL statements.
	createOutcomeTableSQL  = "CREATE TABLE IF NOT EXISTS outcome (id TEXT PRIMARY KEY, market TEXT, timeframe TEXT, entryprice REAL, exitprice REAL, pnlpercent REAL, resonance REAL, win INTEGER, reason TEXT, createdon INTEGER)"
	createDecisionTableSQL = "CREATE TABLE IF NOT EXISTS decision (market TEXT, consensusratio REAL, oracleconfidence REAL, decision INTEGER, betsize REAL, participating INTEGER, positive INTEGER, trace TEXT, createdon INTEGER)"
	createPositionTableSQL = "CREATE TABLE IF NOT EXISTS position (id TEXT PRIMARY KEY, market TEXT, quantity REAL, entryprice REAL, entryreason TEXT, mode INTEGER, pnlpercent REAL, exitprice REAL, exitreason TEXT, status INTEGER, createdon INTEGER, closedon INTEGER)"
	createMetadataTableSQL = "CREATE TABLE IF NOT EXISTS metadata (id TEXT PRIMARY KEY, total INTEGER, wins INTEGER, losses INTEGER, createdon INTEGER)"

	persistOutcomeSQL        = "INSERT INTO outcome(id, market, timeframe, entryprice, exitprice, pnlpercent, resonance, win, reason, createdon) VALUES(?,?,?,?,?,?,?,?,?,?)"
	persistDecisionSQL       = "INSERT INTO decision(market, consensusratio, oracleconfidence, decision, betsize, participating, positive, trace, createdon) VALUES(?,?,?,?,?,?,?,?,?)"
	persistClosedPositionSQL = "INSERT INTO position(id, market, quantity, entryprice, entryreason, mode, pnlpercent, exitprice, exitreason, status, createdon, closedon) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)"
	findMetadataSQL          = "SELECT * FROM metadata WHERE id = ?"
	updateMetadataSQL        = "UPDATE metadata SET total = total + 1, wins = wins + ?, losses = losses + ? WHERE id = ?"
	persistMetadataSQL       = "INSERT INTO metadata(id, total, wins, losses, createdon) VALUES(?,?,?,?,?)"
)

// PositionStorer defines the requirements for storing closed positions.
type PositionStorer interface {
	// PersistClosedPosition stores the provided closed position.
	PersistClosedPosition(ctx context.Context, position *position.Position) error
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the OutcomeStorer and PositionStorer
// interfaces.
var _ shared.OutcomeStorer = (*Database)(nil)
var _ PositionStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	if cfg.Logger == nil {
		logger := log.With().Str("component", "database").Logger()
		cfg.Logger = &logger
	}

	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createOutcomeTableSQL},
		{SQL: createDecisionTableSQL},
		{SQL: createPositionTableSQL},
		{SQL: createMetadataTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// generateMetadataID generates deterministic ids for metadata using the
// current month, week and market.
func generateMetadataID(currentTime time.Time, market string) string {
	month := currentTime.Month().String()
	week := currentTime.Day() / 7

	id := fmt.Sprintf("%s-Week-%d-%s", month, week, market)
	return id
}

// updateMetadata rolls the provided outcome into the market's weekly
// win/loss tally.
func (db *Database) updateMetadata(ctx context.Context, market string, win bool, at time.Time) error {
	var wins, losses int
	switch {
	case win:
		wins++
	default:
		losses++
	}

	id := generateMetadataID(at, market)
	resp, err := db.client.QuerySingle(ctx, findMetadataSQL, id)
	if err != nil {
		return err
	}

	exists := len(resp.GetQueryResultsAssoc()) > 0
	switch {
	case exists:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              updateMetadataSQL,
				PositionalParams: []any{wins, losses, id},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("updating metadata %s: %d -> %s", id, idx, errStr)
		}
	default:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              persistMetadataSQL,
				PositionalParams: []any{id, 1, wins, losses, at.Unix()},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("creating metadata %s: %d -> %s", id, idx, errStr)
		}
	}

	return nil
}

// PersistOutcome stores the provided worker outcome to the database.
func (db *Database) PersistOutcome(ctx context.Context, outcome *shared.Outcome) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistOutcomeSQL,
			PositionalParams: []any{outcome.ID, outcome.Market, outcome.Timeframe.String(),
				outcome.EntryPrice, outcome.ExitPrice, outcome.PNLPercent, outcome.Resonance,
				outcome.Win, outcome.Reason, outcome.CreatedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting outcome %s: %d -> %s", outcome.ID, idx, errStr)
	}

	return db.updateMetadata(ctx, outcome.Market, outcome.Win, outcome.CreatedOn)
}

// PersistDecision stores the provided consensus result to the database.
func (db *Database) PersistDecision(ctx context.Context, result *shared.ConsensusResult) error {
	trace := ""
	for idx := range result.ReasoningTrace {
		if idx > 0 {
			trace += "; "
		}
		trace += result.ReasoningTrace[idx]
	}

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistDecisionSQL,
			PositionalParams: []any{result.Market, result.ConsensusRatio, result.OracleConfidence,
				int(result.Decision), result.RecommendedBetSize, result.ParticipatingTimeframes,
				result.PositiveTimeframes, trace, result.CreatedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting decision for %s: %d -> %s", result.Market, idx, errStr)
	}

	return nil
}

// PersistClosedPosition stores the provided closed position to the database.
func (db *Database) PersistClosedPosition(ctx context.Context, pos *position.Position) error {
	if pos.Status == position.Active {
		db.cfg.Logger.Error().Msgf("refusing to persist active position: %s", spew.Sdump(pos))
		return fmt.Errorf("position %s is still active", pos.ID)
	}

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistClosedPositionSQL,
			PositionalParams: []any{pos.ID, pos.Market, pos.Quantity, pos.EntryPrice,
				pos.EntryReason, int(pos.Mode), pos.PNLPercent, pos.ExitPrice, pos.ExitReason,
				int(pos.Status), pos.CreatedOn.Unix(), pos.ClosedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting closed position %s: %d -> %s", pos.ID, idx, errStr)
	}

	return db.updateMetadata(ctx, pos.Market, pos.PNLPercent > 0, pos.ClosedOn)
}
