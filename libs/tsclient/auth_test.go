package tsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestTokenManager_RefreshesAndCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
	}))
	defer srv.Close()

	tm := NewTokenManager("id", "secret", "refresh")
	tm.tokenURL = srv.URL

	h1, err := tm.GetHeaders(context.Background())
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if h1.Get("Authorization") != "Bearer tok-1" {
		t.Errorf("Authorization = %q", h1.Get("Authorization"))
	}

	h2, err := tm.GetHeaders(context.Background())
	if err != nil {
		t.Fatalf("GetHeaders (cached): %v", err)
	}
	if h2.Get("Authorization") != h1.Get("Authorization") {
		t.Errorf("expected cached header to be reused")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("token endpoint called %d times, want 1 (second call should hit the cache)", calls)
	}
}

func TestTokenManager_RotatesRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", RefreshToken: "new-refresh", ExpiresIn: 3600})
	}))
	defer srv.Close()

	tm := NewTokenManager("id", "secret", "old-refresh")
	tm.tokenURL = srv.URL

	if _, err := tm.GetHeaders(context.Background()); err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if tm.refreshToken != "new-refresh" {
		t.Errorf("refreshToken = %q, want rotation to new-refresh", tm.refreshToken)
	}
}

func TestTokenManager_NonOKStatusIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tm := NewTokenManager("id", "secret", "refresh")
	tm.tokenURL = srv.URL

	_, err := tm.GetHeaders(context.Background())
	if err == nil || !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if tm.ConsecutiveFailures() != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", tm.ConsecutiveFailures())
	}
}

func TestTokenManager_MalformedBodyIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not_a_token_field": true}`))
	}))
	defer srv.Close()

	tm := NewTokenManager("id", "secret", "refresh")
	tm.tokenURL = srv.URL

	_, err := tm.GetHeaders(context.Background())
	if err == nil || !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
