// Package oracle provides price-resolution sources for price-trigger duels.
// The engine consumes prices through domain.PriceSource; how a source
// obtains them is outside the settlement core.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Client fetches spot prices from an HTTP price feed. The feed is expected
// to answer GET {base}/price?symbol=BTC-USD with {"symbol":"BTC-USD",
// "price":12345.67,"ts":...}.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a price feed client for the given base URL. A zero
// timeout falls back to 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type priceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts"`
}

// Price returns the current observed price for the symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle: fetch price %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("oracle: symbol %s: %w", symbol, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle: fetch price %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("oracle: decode price %s: %w", symbol, err)
	}
	if body.Price <= 0 {
		return 0, fmt.Errorf("oracle: non-positive price %f for %s", body.Price, symbol)
	}
	return body.Price, nil
}

var _ domain.PriceSource = (*Client)(nil)
