package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"solana-wallet/internal/features/valuation"
	"solana-wallet/internal/infra/log"
	"solana-wallet/internal/infra/transport"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultPricesURL = "https://fe-api.jup.ag/api/v1/prices"

// PricesResponse - USD price per mint, null when the API has no quote
type PricesResponse struct {
	Prices map[string]decimal.NullDecimal `json:"prices"`
}

type Client struct {
	baseURL string
	http    *transport.Client
}

func NewClient(baseURL string, t *transport.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultPricesURL
	}
	if t == nil {
		t = transport.New(transport.Options{Name: "jupiter-prices"})
	}
	return &Client{baseURL: baseURL, http: t}
}

// FetchPrices prices one batch of mints. Mints without a quote are absent from the result.
func (c *Client) FetchPrices(ctx context.Context, mints []string) (valuation.Prices, error) {
	prices := valuation.Prices{}
	if len(mints) == 0 {
		return prices, nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid prices url: %w", err)
	}
	// Commas between mints stay literal, the API does not accept %2C.
	escaped := make([]string, len(mints))
	for i, m := range mints {
		escaped[i] = url.QueryEscape(m)
	}
	listAddress := "list_address=" + strings.Join(escaped, ",")
	if u.RawQuery == "" {
		u.RawQuery = listAddress
	} else {
		u.RawQuery += "&" + listAddress
	}

	body, err := c.http.Do(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}

	var resp PricesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prices response: %w", err)
	}

	for _, mint := range mints {
		p, ok := resp.Prices[mint]
		if !ok || !p.Valid {
			log.LogDebug("No price quote", zap.String("mint", mint))
			continue
		}
		if p.Decimal.IsNegative() {
			log.LogWarn("Ignoring negative price", zap.String("mint", mint), zap.String("price", p.Decimal.String()))
			continue
		}
		prices[mint] = p.Decimal
	}
	return prices, nil
}
