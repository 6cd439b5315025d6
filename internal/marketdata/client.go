package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/symbolcache/symbolcache/internal/infrastructure/httpclient"
	"github.com/symbolcache/symbolcache/internal/net/budget"
	"github.com/symbolcache/symbolcache/internal/net/circuit"
	"github.com/symbolcache/symbolcache/internal/net/ratelimit"
)

// Client is the contract components depend on to reach the market-data
// provider. A real HTTP-backed implementation and a fake for tests both
// satisfy it.
type Client interface {
	ListSymbols(ctx context.Context) ([]RawListing, error)
	FetchProfile(ctx context.Context, symbol SymbolID) (Profile, error)
}

// Config configures the HTTP-backed Client.
type Config struct {
	APIKey             string
	BaseURL            string
	Exchange           string
	MIC                string
	RateLimit          float64 // requests per second
	RateBurst          int
	MaxParallelFetches int // also bounds the client's own concurrency

	BackoffBase time.Duration
	BackoffMax  time.Duration

	CircuitFailureThreshold int
	CircuitSuccessThreshold int
	CircuitTimeout          time.Duration
	CircuitRequestTimeout   time.Duration
}

// HTTPClient is the Finnhub-shaped MarketClient implementation.
type HTTPClient struct {
	cfg     Config
	pool    *httpclient.ClientPool
	limiter *ratelimit.Limiter
	breaker *circuit.Breaker
	budget  *budget.Tracker
	host    string
}

// NewHTTPClient builds a MarketClient wired with rate limiting, a circuit
// breaker, and an optional daily request budget, matching the resilience
// stack the teacher wires around its provider clients.
func NewHTTPClient(cfg Config, budgetTracker *budget.Tracker) (*HTTPClient, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("marketdata: invalid base url: %w", err)
	}

	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 200 * time.Millisecond
	}
	backoffMax := cfg.BackoffMax
	if backoffMax <= 0 {
		backoffMax = 3 * time.Second
	}
	requestTimeout := cfg.CircuitRequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	pool := httpclient.NewClientPool(httpclient.ClientConfig{
		MaxConcurrency: cfg.MaxParallelFetches,
		RequestTimeout: requestTimeout,
		JitterRange:    [2]int{0, 50},
		MaxRetries:     2,
		BackoffBase:    backoffBase,
		BackoffMax:     backoffMax,
		UserAgent:      "stockcache/1.0 (+market-data enrichment cache)",
	})

	circuitTimeout := cfg.CircuitTimeout
	if circuitTimeout <= 0 {
		circuitTimeout = 30 * time.Second
	}
	failureThreshold := cfg.CircuitFailureThreshold
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	successThreshold := cfg.CircuitSuccessThreshold
	if successThreshold <= 0 {
		successThreshold = 2
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = maxInt(1, cfg.MaxParallelFetches)
	}

	return &HTTPClient{
		cfg:     cfg,
		pool:    pool,
		limiter: ratelimit.NewLimiter(cfg.RateLimit, burst),
		breaker: circuit.NewBreaker("marketdata", circuit.Config{
			FailureThreshold: failureThreshold,
			SuccessThreshold: successThreshold,
			Timeout:          circuitTimeout,
			RequestTimeout:   requestTimeout,
		}),
		budget: budgetTracker,
		host:   parsed.Host,
	}, nil
}

// Breaker exposes the client's circuit breaker for readiness reporting.
func (c *HTTPClient) Breaker() *circuit.Breaker { return c.breaker }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ListSymbols fetches the full symbol roster for the configured exchange.
func (c *HTTPClient) ListSymbols(ctx context.Context) ([]RawListing, error) {
	var out []RawListing
	err := c.do(ctx, "/stock/symbol", "", func(body []byte) error {
		return json.Unmarshal(body, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchProfile fetches the company profile for a single symbol.
func (c *HTTPClient) FetchProfile(ctx context.Context, symbol SymbolID) (Profile, error) {
	var out Profile
	err := c.do(ctx, "/stock/profile2", string(symbol), func(body []byte) error {
		return json.Unmarshal(body, &out)
	})
	if err != nil {
		return Profile{}, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, endpoint, symbol string, decode func([]byte) error) error {
	if c.budget != nil {
		if err := c.budget.Allow(); err != nil {
			if _, exhausted := err.(*budget.BudgetExhaustedError); exhausted {
				return &ClientError{Kind: ErrKindRateLimited, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: err}
			}
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("marketdata: daily budget warning")
		}
	}

	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return &ClientError{Kind: ErrKindRateLimited, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: err}
	}

	req, err := c.buildRequest(ctx, endpoint, symbol)
	if err != nil {
		return &ClientError{Kind: ErrKindTransport, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: err}
	}

	var body []byte
	breakerErr := c.breaker.Call(ctx, func(ctx context.Context) error {
		resp, err := c.pool.Do(ctx, req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &ClientError{Kind: ErrKindRateLimited, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: fmt.Errorf("HTTP 429")}
		}
		if resp.StatusCode == http.StatusNotFound {
			return &ClientError{Kind: ErrKindNotFound, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: fmt.Errorf("HTTP 404")}
		}
		if resp.StatusCode >= 500 {
			return &ClientError{Kind: ErrKindUpstream5xx, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			return &ClientError{Kind: ErrKindTransport, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ClientError{Kind: ErrKindTransport, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: err}
		}
		body = buf
		if c.budget != nil {
			c.budget.Consume()
		}
		return nil
	})

	if breakerErr != nil {
		if ce, ok := breakerErr.(*ClientError); ok {
			return ce
		}
		return &ClientError{Kind: ErrKindTransport, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: breakerErr}
	}

	if err := decode(body); err != nil {
		return &ClientError{Kind: ErrKindDecode, Endpoint: endpoint, Symbol: SymbolID(symbol), Err: err}
	}

	log.Debug().Str("endpoint", endpoint).Str("symbol", symbol).Msg("marketdata request completed")
	return nil
}

func (c *HTTPClient) buildRequest(ctx context.Context, endpoint, symbol string) (*http.Request, error) {
	u, err := url.Parse(c.cfg.BaseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("exchange", c.cfg.Exchange)
	if c.cfg.MIC != "" {
		q.Set("mic", c.cfg.MIC)
	}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Finnhub-Token", c.cfg.APIKey)
	return req, nil
}
