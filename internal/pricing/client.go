package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/metrics"
)

// DefaultBaseURL is the CryptoCompare price endpoint root.
const DefaultBaseURL = "https://min-api.cryptocompare.com"

// Client implements Oracle against the CryptoCompare min-api.
type Client struct {
	client *resty.Client
}

// NewClient creates a price client. An empty baseURL selects CryptoCompare.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Client{client: client}
}

// GetPrice resolves symbol to its current USD price. Any failure mode —
// transport error, non-200 status, missing field, non-positive quote —
// surfaces as ErrPriceUnavailable with the cause attached.
func (c *Client) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fsym":  symbol,
			"tsyms": "USD",
		}).
		Get("/data/price")
	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("%w: fetch %s: %v", ErrPriceUnavailable, symbol, err)
	}
	if resp.StatusCode() != 200 {
		metrics.OracleRequestsTotal.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("%w: fetch %s: status %d", ErrPriceUnavailable, symbol, resp.StatusCode())
	}

	var body map[string]json.Number
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.OracleRequestsTotal.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("%w: decode %s: %v", ErrPriceUnavailable, symbol, err)
	}

	raw, ok := body["USD"]
	if !ok {
		metrics.OracleRequestsTotal.WithLabelValues("unknown_symbol").Inc()
		return decimal.Zero, fmt.Errorf("%w: no USD quote for %s", ErrPriceUnavailable, symbol)
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil || !price.IsPositive() {
		metrics.OracleRequestsTotal.WithLabelValues("bad_quote").Inc()
		return decimal.Zero, fmt.Errorf("%w: non-positive quote %q for %s", ErrPriceUnavailable, raw.String(), symbol)
	}

	metrics.OracleRequestsTotal.WithLabelValues("ok").Inc()
	return price, nil
}
