package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fetcher looks up the current USD rate of an asset from an external
// price oracle.
type Fetcher interface {
	FetchUSDPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

// coinIDs maps payment asset symbols to the price API's coin identifiers.
var coinIDs = map[string]string{
	"SOL": "solana",
	"BNB": "binancecoin",
}

// HTTPFetcher reads spot prices from a coingecko-compatible simple/price
// endpoint.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPFetcher(baseURL string, log *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

func (f *HTTPFetcher) FetchUSDPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	coinID, ok := coinIDs[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price feed for asset %s", asset)
	}

	u := fmt.Sprintf("%s?ids=%s&vs_currencies=usd", f.baseURL, url.QueryEscape(coinID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price api returned %d", resp.StatusCode)
	}

	var payload map[string]struct {
		USD json.Number `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, err
	}

	entry, ok := payload[coinID]
	if !ok {
		return decimal.Zero, fmt.Errorf("price api response missing %s", coinID)
	}
	price, err := decimal.NewFromString(entry.USD.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", entry.USD, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive price for %s", asset)
	}
	return price, nil
}

// Service resolves the USD rate used at settlement time: stable assets are
// pinned to 1, volatile assets go through the cache-backed oracle.
type Service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	log     *zap.Logger
}

func NewService(fetcher Fetcher, cache Cache, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{fetcher: fetcher, cache: cache, ttl: ttl, log: log}
}

func (s *Service) USDPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	switch asset {
	case "USDT", "USDC":
		return decimal.NewFromInt(1), nil
	}

	if price, ok := s.cache.Get(ctx, asset); ok {
		return price, nil
	}

	price, err := s.fetcher.FetchUSDPrice(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	s.cache.Set(ctx, asset, price, s.ttl)
	return price, nil
}
