package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dnldd/swarm/shared"
	"github.com/tidwall/gjson"
)

// HistoryConfig represents the configuration for the historical data client.
type HistoryConfig struct {
	// BaseURL is the root url of the historical data api.
	BaseURL string
	// APIKey is the historical data api key.
	APIKey string
}

// HistoryClient fetches base timeframe candle history over http.
type HistoryClient struct {
	cfg   *HistoryConfig
	httpc http.Client
	buf   *bytes.Buffer
}

// Ensure the HistoryClient implements the HistoricDataProvider interface.
var _ shared.HistoricDataProvider = (*HistoryClient)(nil)

// NewHistoryClient instantiates a new historical data client.
func NewHistoryClient(cfg *HistoryConfig) *HistoryClient {
	return &HistoryClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}
}

// formURL creates full urls including parameters for the api.
func (c *HistoryClient) formURL(path string, params string) string {
	c.buf.WriteString(c.cfg.BaseURL)
	c.buf.WriteString(path)
	c.buf.WriteString("?")
	c.buf.WriteString(params)
	url := c.buf.String()
	c.buf.Reset()

	return url
}

// ParseCandlesticks parses candlesticks from the provided json data.
func ParseCandlesticks(data []gjson.Result, market string, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	candles := make([]shared.Candlestick, 0, len(data))

	for idx := range data {
		var candle shared.Candlestick

		candle.Open = data[idx].Get("open").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Close = data[idx].Get("close").Float()
		candle.Volume = data[idx].Get("volume").Float()

		candle.Market = market
		candle.Timeframe = timeframe

		dt, err := time.Parse(shared.DateLayout, data[idx].Get("date").String())
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}

		candle.Date = dt
		candles = append(candles, candle)
	}

	return candles, nil
}

// FetchHistory fetches up to lookback one-minute candles for the provided
// market.
func (c *HistoryClient) FetchHistory(ctx context.Context, market string, lookback int) ([]shared.Candlestick, error) {
	const historyPath = "/historical-chart/1min"

	params := url.Values{}
	params.Add("symbol", market)
	params.Add("limit", strconv.Itoa(lookback))
	params.Add("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(historyPath, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating history request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", market, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching history for %s: status %d", market, resp.StatusCode)
	}

	data := gjson.ParseBytes(body).Array()

	return ParseCandlesticks(data, market, shared.OneMinute)
}
