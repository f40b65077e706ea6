// Package yahoo fetches quotes from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// cacheTTL bounds how long a chart response counts as fresh. Quotes move, so
// this is short; expired entries still serve as a stale fallback.
const cacheTTL = 15 * time.Minute

// Client for the Yahoo Finance v8 chart API.
type Client struct {
	baseURL string
	client  *http.Client
	cache   *CacheRepository
}

// NewClient creates a new chart API client.
// cache is optional - if nil, caching is disabled.
// baseURL overrides the production endpoint when non-empty (used in tests).
func NewClient(cache *CacheRepository, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
	}
}

// RecentCloses returns the latest daily close per ticker over the last five
// days. The chart API is per-symbol, so the bulk tier is one short-range pass
// over all tickers; a ticker that fails here is simply absent from the map
// and the caller falls through to the wider tiers.
func (c *Client) RecentCloses(ctx context.Context, tickers []string) (map[string]float64, error) {
	closes := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		price, err := c.lastClose(ctx, ticker, "5d", "1d")
		if err != nil {
			continue
		}
		closes[ticker] = price
	}
	return closes, nil
}

// MonthlyClose returns the latest daily close for one ticker over the last
// month.
func (c *Client) MonthlyClose(ctx context.Context, ticker string) (float64, error) {
	return c.lastClose(ctx, ticker, "1mo", "1d")
}

// IntradayClose returns the latest hourly quote for one ticker over the last
// five days.
func (c *Client) IntradayClose(ctx context.Context, ticker string) (float64, error) {
	return c.lastClose(ctx, ticker, "5d", "60m")
}

// chartResponse is the subset of the v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// lastClose fetches one chart and returns its most recent non-missing close.
// If the API is unreachable or returns garbage, an expired cached response is
// used instead.
func (c *Client) lastClose(ctx context.Context, ticker, rng, interval string) (float64, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", ticker, rng, interval)

	if c.cache != nil {
		if data, err := c.cache.GetIfFresh(cacheKey); err == nil && data != nil {
			if price, err := parseLastClose(data); err == nil {
				return price, nil
			}
		}
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s", c.baseURL, ticker, rng, interval)
	body, err := c.fetch(ctx, url)
	if err != nil {
		if price, ok := c.staleClose(cacheKey); ok {
			return price, nil
		}
		return 0, err
	}

	price, err := parseLastClose(body)
	if err != nil {
		if stale, ok := c.staleClose(cacheKey); ok {
			return stale, nil
		}
		return 0, fmt.Errorf("%s: %w", ticker, err)
	}

	if c.cache != nil {
		// Cache failures never fail the quote.
		_ = c.cache.Store(cacheKey, body, cacheTTL)
	}

	return price, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	// Yahoo rejects the default Go user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; fintrack/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart response: %w", err)
	}
	return body, nil
}

func (c *Client) staleClose(cacheKey string) (float64, bool) {
	if c.cache == nil {
		return 0, false
	}
	data, err := c.cache.GetStale(cacheKey)
	if err != nil || data == nil {
		return 0, false
	}
	price, err := parseLastClose(data)
	if err != nil {
		return 0, false
	}
	return price, true
}

// parseLastClose extracts the most recent non-null close from a chart payload.
func parseLastClose(data []byte) (float64, error) {
	var payload chartResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return 0, fmt.Errorf("chart API error: %s", payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, fmt.Errorf("chart response has no quote data")
	}

	closes := payload.Chart.Result[0].Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil {
			return *closes[i], nil
		}
	}
	return 0, fmt.Errorf("chart response has no usable close")
}
