package tsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"jax-options-gex/libs/resilience"
)

// Client is the REST + streaming upstream client: typed GETs for bars,
// expirations, strikes, and quotes, plus the chunked options-chain stream.
// REST calls pass through a token-bucket rate limiter and a circuit
// breaker before hitting the wire.
type Client struct {
	config  *Config
	tokens  *TokenManager
	http    *resty.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewClient builds an upstream client. tokens must already be constructed
// with the caller's credentials.
func NewClient(config *Config, tokens *TokenManager) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "tsclient-rest",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		MaxFailures: 5,
	})

	return &Client{
		config:  config,
		tokens:  tokens,
		http:    resty.New().SetBaseURL(config.baseURL()).SetTimeout(config.RESTTimeout),
		limiter: rate.NewLimiter(rate.Limit(config.RESTCallsPerSecond), 1),
		breaker: breaker,
	}, nil
}

// GetBars fetches the most recent realtime bar for symbol.
func (c *Client) GetBars(ctx context.Context, symbol string) ([]Bar, error) {
	var out barsResponse
	path := fmt.Sprintf("/marketdata/barcharts/%s", symbol)
	if err := c.getJSON(ctx, path, map[string]string{
		"unit":            "Minute",
		"barsback":        "1",
		"sessiontemplate": "USEQ24Hour",
	}, &out); err != nil {
		return nil, err
	}
	return out.Bars, nil
}

// GetExpirations fetches available option expirations for symbol.
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]Expiration, error) {
	var out expirationsResponse
	path := fmt.Sprintf("/marketdata/options/expirations/%s", symbol)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Expirations, nil
}

// GetStrikes fetches the strike ladder for symbol at expiration (YYYY-MM-DD).
func (c *Client) GetStrikes(ctx context.Context, symbol, expiration string) ([]float64, error) {
	var out strikesResponse
	path := fmt.Sprintf("/marketdata/options/strikes/%s", symbol)
	if err := c.getJSON(ctx, path, map[string]string{"expiration": expiration}, &out); err != nil {
		return nil, err
	}
	strikes := make([]float64, 0, len(out.Strikes))
	for _, pair := range out.Strikes {
		if len(pair) > 0 {
			strikes = append(strikes, pair[0])
		}
	}
	return strikes, nil
}

// GetQuote fetches a single underlying bar used as a fallback spot price.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Bar, error) {
	bars, err := c.GetBars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars returned for %s", ErrTransport, symbol)
	}
	return &bars[0], nil
}

func (c *Client) getJSON(ctx context.Context, path string, query map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
	}

	headers, err := c.tokens.GetHeaders(ctx)
	if err != nil {
		return err
	}

	_, err = c.breaker.ExecuteWithContext(ctx, func() (any, error) {
		req := c.http.R().SetContext(ctx).SetHeaderMultiValues(map[string][]string(headers)).SetResult(out)
		if query != nil {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if resp.StatusCode() == 401 {
			return nil, fmt.Errorf("%w: token expired mid-request", ErrTransport)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: %s returned %d", ErrTransport, path, resp.StatusCode())
		}
		return nil, nil
	})
	return err
}
