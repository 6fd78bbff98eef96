package tsclient

import (
	"errors"
	"time"
)

const (
	liveBaseURL    = "https://api.tradestation.com/v3"
	sandboxBaseURL = "https://sim-api.tradestation.com/v3"
	tokenURL       = "https://signin.tradestation.com/oauth/token"
)

// Config holds the upstream client's credentials and tuning knobs.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UseSandbox   bool

	RESTTimeout     time.Duration
	StreamConnectTO time.Duration

	// RESTCallsPerSecond bounds the token-bucket rate limiter ahead of the
	// circuit breaker; the upstream enforces a calls/sec budget.
	RESTCallsPerSecond float64

	RedisURL string // optional; in-memory cache used when empty
	CacheTTL time.Duration
}

// DefaultConfig returns tuning defaults; credentials must still be set.
func DefaultConfig() *Config {
	return &Config{
		RESTTimeout:        10 * time.Second,
		StreamConnectTO:    30 * time.Second,
		RESTCallsPerSecond: 5,
		CacheTTL:           5 * time.Second,
	}
}

// Validate checks that required credentials are present.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return errors.New("tsclient: client ID, client secret, and refresh token are required")
	}
	if c.RESTTimeout == 0 {
		c.RESTTimeout = 10 * time.Second
	}
	if c.StreamConnectTO == 0 {
		c.StreamConnectTO = 30 * time.Second
	}
	if c.RESTCallsPerSecond == 0 {
		c.RESTCallsPerSecond = 5
	}
	return nil
}

func (c *Config) baseURL() string {
	if c.UseSandbox {
		return sandboxBaseURL
	}
	return liveBaseURL
}
