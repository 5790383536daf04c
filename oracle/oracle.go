// Package oracle implements the http client for the external forecasting
// collaborator. Queries carry a fixed latency budget; callers fall back to a
// neutral confidence when a query fails.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/tidwall/gjson"
)

// ClientConfig represents the configuration for the oracle client.
type ClientConfig struct {
	// BaseURL is the root url of the oracle service.
	BaseURL string
	// APIKey is the oracle service api key.
	APIKey string
}

// Client represents the oracle service client.
type Client struct {
	cfg   *ClientConfig
	httpc http.Client
}

// Ensure the Client implements the Oracle interface.
var _ shared.Oracle = (*Client)(nil)

// NewClient instantiates a new oracle client.
func NewClient(cfg *ClientConfig) *Client {
	return &Client{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}
}

// parseAction parses a directional action from the provided string.
func parseAction(action string) shared.Action {
	switch action {
	case "buy":
		return shared.Buy
	case "sell":
		return shared.Sell
	default:
		return shared.Hold
	}
}

// Predict queries the oracle for a verdict on the provided context.
func (c *Client) Predict(ctx context.Context, octx *shared.OracleContext) (shared.OracleVerdict, error) {
	payload, err := json.Marshal(map[string]any{
		"symbol":       octx.Market,
		"phase":        octx.MarketPhase,
		"sentiment":    octx.NewsSentiment,
		"short_closes": shared.Closes(octx.ShortCandles),
		"long_closes":  shared.Closes(octx.LongCandles),
	})
	if err != nil {
		return shared.OracleVerdict{}, fmt.Errorf("encoding predict payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return shared.OracleVerdict{}, fmt.Errorf("creating predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return shared.OracleVerdict{}, fmt.Errorf("querying oracle for %s: %w", octx.Market, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.OracleVerdict{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return shared.OracleVerdict{}, fmt.Errorf("querying oracle for %s: status %d",
			octx.Market, resp.StatusCode)
	}

	return shared.OracleVerdict{
		Action:     parseAction(gjson.GetBytes(body, "action").String()),
		Confidence: gjson.GetBytes(body, "confidence").Float(),
	}, nil
}

// FetchSentiment fetches the news sentiment score for the provided market,
// clamped to [0, 1].
func (c *Client) FetchSentiment(ctx context.Context, market string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/sentiment?symbol="+market, nil)
	if err != nil {
		return 0, fmt.Errorf("creating sentiment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching sentiment for %s: %w", market, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching sentiment for %s: status %d", market, resp.StatusCode)
	}

	sentiment := gjson.GetBytes(body, "sentiment").Float()
	switch {
	case sentiment < 0:
		sentiment = 0
	case sentiment > 1:
		sentiment = 1
	}

	return sentiment, nil
}
