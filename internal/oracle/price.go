// Package oracle resolves USD prices for the native asset and a small set of
// well-known tokens.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vialytics/wrapped-worker/internal/core"
)

// DefaultEndpoint is the upstream native asset price API.
const DefaultEndpoint = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

// FallbackNativePrice is used whenever the upstream price cannot be fetched.
// Price resolution is best-effort; a stale-ish constant beats failing the job.
const FallbackNativePrice = 134.27

// NativeMint is the chain's native asset identifier.
const NativeMint = "So11111111111111111111111111111111111111112"

const cacheKeyNativePrice = "oracle:native_usd"

// Stablecoins pinned to one dollar.
var stablecoins = map[string]float64{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 1.0, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": 1.0, // USDT
}

// Major tokens with static reference prices.
var majorTokens = map[string]float64{
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": 0.000025, // BONK
	"EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm": 2.5,      // WIF
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  0.85,     // JUP
	"jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL":  2.8,      // JTO
}

// Config holds price oracle settings.
type Config struct {
	// Endpoint overrides the upstream price API; DefaultEndpoint when empty.
	Endpoint string
	// FallbackPrice overrides FallbackNativePrice when positive.
	FallbackPrice float64
	// HTTPClient overrides the default client; useful in tests.
	HTTPClient *http.Client
	// Cache, when non-nil, memoizes the native price for CacheTTL.
	Cache    core.CacheRepository
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Oracle implements core.PriceSource.
type Oracle struct {
	endpoint string
	fallback float64
	client   *http.Client
	cache    core.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

// New creates an Oracle with the given configuration.
func New(cfg Config) *Oracle {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	fallback := cfg.FallbackPrice
	if fallback <= 0 {
		fallback = FallbackNativePrice
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		endpoint: endpoint,
		fallback: fallback,
		client:   client,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   logger.With("component", "oracle"),
	}
}

// NativeUSDPrice returns the current native asset price in USD. Never fails:
// any fetch or decode problem yields the fallback price.
func (o *Oracle) NativeUSDPrice(ctx context.Context) float64 {
	if price, ok := o.cachedPrice(ctx); ok {
		return price
	}

	price, err := o.fetchPrice(ctx)
	if err != nil {
		o.logger.WarnContext(ctx, "price fetch failed, using fallback",
			"fallback", o.fallback, "error", err)
		return o.fallback
	}

	o.storePrice(ctx, price)
	return price
}

// AssetUSDPrice resolves the USD price for a token mint. Unknown mints return
// zero, which excludes them from volume rather than pricing them for free.
func (o *Oracle) AssetUSDPrice(mint string, nativePrice float64) float64 {
	if mint == NativeMint {
		return nativePrice
	}
	if price, ok := stablecoins[mint]; ok {
		return price
	}
	if price, ok := majorTokens[mint]; ok {
		return price
	}
	return 0
}

func (o *Oracle) fetchPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build price request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var body struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}
	if body.Solana.USD <= 0 {
		return 0, fmt.Errorf("price API returned non-positive price %v", body.Solana.USD)
	}
	return body.Solana.USD, nil
}

func (o *Oracle) cachedPrice(ctx context.Context) (float64, bool) {
	if o.cache == nil {
		return 0, false
	}
	raw, err := o.cache.Get(ctx, cacheKeyNativePrice)
	if err != nil || len(raw) == 0 {
		return 0, false
	}
	price, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func (o *Oracle) storePrice(ctx context.Context, price float64) {
	if o.cache == nil {
		return
	}
	raw := strconv.FormatFloat(price, 'f', -1, 64)
	if err := o.cache.Set(ctx, cacheKeyNativePrice, []byte(raw), o.cacheTTL); err != nil {
		o.logger.WarnContext(ctx, "cache price failed", "error", err)
	}
}
