package tsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const refreshSkew = 60 * time.Second

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenManager refreshes short-lived OAuth bearer tokens and hands out
// ready-to-use auth headers. Cached reads are lock-free; refreshes are
// serialized so concurrent callers never trigger overlapping requests to
// the token endpoint.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	http         *resty.Client

	mu           sync.Mutex
	refreshToken string
	failures     int

	cachedHeader  atomic.Value // string
	expiresAtUnix atomic.Int64 // unix seconds
}

// NewTokenManager builds a token manager with no cached token; the first
// GetHeaders call performs an initial refresh.
func NewTokenManager(clientID, clientSecret, refreshToken string) *TokenManager {
	tm := &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		refreshToken: refreshToken,
		http:         resty.New().SetTimeout(10 * time.Second),
	}
	tm.cachedHeader.Store("")
	return tm
}

// GetHeaders returns a header set carrying a bearer token valid for at
// least refreshSkew longer. It refreshes the token when the cached one is
// absent or about to expire.
func (tm *TokenManager) GetHeaders(ctx context.Context) (http.Header, error) {
	if tm.tokenFreshEnough() {
		h := http.Header{}
		h.Set("Authorization", tm.cachedHeader.Load().(string))
		return h, nil
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.tokenFreshEnough() {
		h := http.Header{}
		h.Set("Authorization", tm.cachedHeader.Load().(string))
		return h, nil
	}

	if err := tm.refresh(ctx); err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set("Authorization", tm.cachedHeader.Load().(string))
	return h, nil
}

func (tm *TokenManager) tokenFreshEnough() bool {
	expiresAt := tm.expiresAtUnix.Load()
	if expiresAt == 0 {
		return false
	}
	return time.Now().Add(refreshSkew).Before(time.Unix(expiresAt, 0))
}

// refresh must be called with mu held.
func (tm *TokenManager) refresh(ctx context.Context) error {
	resp, err := tm.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     tm.clientID,
			"client_secret": tm.clientSecret,
			"refresh_token": tm.refreshToken,
		}).
		Post(tm.tokenURL)

	if err != nil {
		tm.failures++
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if resp.IsError() {
		tm.failures++
		return fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode())
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.AccessToken == "" || body.ExpiresIn == 0 {
		tm.failures++
		return fmt.Errorf("%w: malformed token response", ErrAuth)
	}

	tm.failures = 0
	if body.RefreshToken != "" {
		tm.refreshToken = body.RefreshToken
	}
	tm.cachedHeader.Store("Bearer " + body.AccessToken)
	tm.expiresAtUnix.Store(time.Now().Add(time.Duration(body.ExpiresIn) * time.Second).Unix())
	return nil
}

// ConsecutiveFailures reports how many refreshes have failed in a row, for
// comparison against MaxAuthFailures.
func (tm *TokenManager) ConsecutiveFailures() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.failures
}
