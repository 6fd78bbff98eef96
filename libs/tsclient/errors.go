package tsclient

import "errors"

// ErrAuth wraps any token-refresh failure: non-200 response or a body that
// doesn't parse as the expected token JSON. TokenManager counts consecutive
// occurrences (see ConsecutiveFailures); no caller in this module acts on
// MaxAuthFailures: the ingestion engine reconnects after every failure.
var ErrAuth = errors.New("tsclient: auth error")

// ErrTransport wraps network-level and non-2xx REST/stream failures,
// including a 401 surfaced mid-stream after token expiry.
var ErrTransport = errors.New("tsclient: transport error")

// ErrProtocol wraps a stream line that is not valid JSON or doesn't match
// either the Quote or Heartbeat frame shape.
var ErrProtocol = errors.New("tsclient: protocol error")

// MaxAuthFailures is the number of consecutive auth failures after which
// the caller should treat the token manager as unrecoverable.
const MaxAuthFailures = 3
