// Package price fetches the BTC/USD spot price from an ordered chain of
// providers and keeps a refreshed ticker for display.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// Provider returns one BTC/USD quote.
type Provider interface {
	Name() string
	Quote(ctx context.Context) (float64, error)
}

type tickerResponse struct {
	Price string `json:"price"`
}

type ratesResponse struct {
	Data struct {
		Currency string `json:"currency"`
		Rates    struct {
			USD string `json:"USD"`
		} `json:"rates"`
	} `json:"data"`
}

// CoinbaseTicker reads the Coinbase Exchange BTC-USD ticker.
type CoinbaseTicker struct {
	url        string
	httpClient *http.Client
}

// NewCoinbaseTicker creates the primary provider. A nil client gets a
// default one; per-attempt deadlines come from the caller's context.
func NewCoinbaseTicker(url string, client *http.Client) *CoinbaseTicker {
	return &CoinbaseTicker{url: url, httpClient: defaultClient(client)}
}

func (c *CoinbaseTicker) Name() string { return "coinbase-exchange" }

func (c *CoinbaseTicker) Quote(ctx context.Context) (float64, error) {
	var body tickerResponse
	if err := getJSON(ctx, c.httpClient, c.url, "Coinbase API error", &body); err != nil {
		return 0, err
	}
	return parsePrice(body.Price)
}

// CoinbaseRates reads the Coinbase exchange-rates endpoint for BTC.
type CoinbaseRates struct {
	url        string
	httpClient *http.Client
}

// NewCoinbaseRates creates the fallback provider.
func NewCoinbaseRates(url string, client *http.Client) *CoinbaseRates {
	return &CoinbaseRates{url: url, httpClient: defaultClient(client)}
}

func (c *CoinbaseRates) Name() string { return "coinbase-rates" }

func (c *CoinbaseRates) Quote(ctx context.Context) (float64, error) {
	var body ratesResponse
	if err := getJSON(ctx, c.httpClient, c.url, "Coinbase fallback API error", &body); err != nil {
		return 0, err
	}
	return parsePrice(body.Data.Rates.USD)
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func getJSON(ctx context.Context, client *http.Client, url, statusPrefix string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%s: %d", statusPrefix, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parsePrice accepts a positive decimal string such as "50123.45".
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadQuote, s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrBadQuote, d.String())
	}
	f, _ := d.Float64()
	return f, nil
}
