package tsclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// StreamSink receives parsed frames off the options-chain stream.
type StreamSink func(StreamFrame)

// StreamOptionsChain opens a chunked GET against the options-chain stream
// endpoint and delivers parsed frames to sink until ctx is cancelled, the
// connection errors, or the server closes the body. Malformed lines are
// logged and delivered to sink as a DropErr frame instead of a parsed
// quote/heartbeat; they never terminate the stream.
func (c *Client) StreamOptionsChain(ctx context.Context, underlying, expiration string, strikeProximity *int, sink StreamSink) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.config.StreamConnectTO)
	defer cancel()

	headers, err := c.tokens.GetHeaders(dialCtx)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("expiration", expiration)
	if strikeProximity != nil {
		q.Set("strikeProximity", strconv.Itoa(*strikeProximity))
	}

	reqURL := fmt.Sprintf("%s/marketdata/stream/options/chains/%s?%s", c.config.baseURL(), underlying, q.Encode())
	// The request carries ctx rather than dialCtx so the connect timeout does
	// not also cut off the long-lived body read; connectTimer enforces it only
	// until the response headers arrive.
	reqCtx, cancelReq := context.WithCancel(ctx)
	defer cancelReq()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build stream request: %v", ErrTransport, err)
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/vnd.tradestation.streams.v2+json")

	httpClient := &http.Client{} // no overall Timeout: the read has no deadline, only a connect timeout
	connectTimer := time.AfterFunc(c.config.StreamConnectTO, cancelReq)
	resp, err := httpClient.Do(req)
	connectTimer.Stop()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: 401 opening stream", ErrTransport)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: stream returned %d", ErrTransport, resp.StatusCode)
	}

	// The connect timeout above only bounded dialing; the body read itself
	// is unbounded except for the ctx-driven cancellation below.
	return decodeStream(ctx, resp.Body, sink)
}

// decodeStream reads newline-delimited JSON objects from r, splitting the
// buffered byte stream on '\n'. A chunk may contain multiple objects and an
// object may span multiple chunks; bufio.Scanner handles both by buffering
// across Read calls.
func decodeStream(ctx context.Context, r readerWithDeadline, sink StreamSink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if closer, ok := r.(interface{ Close() error }); ok {
				closer.Close()
			}
		case <-done:
		}
	}()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		frame, err := parseFrame(line)
		if err != nil {
			log.Printf("tsclient: skipping malformed stream line: %v", err)
			sink(StreamFrame{DropErr: err})
			continue
		}
		sink(frame)
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: stream read: %v", ErrTransport, err)
	}
	return nil
}

// readerWithDeadline is satisfied by http.Response.Body; declared narrowly
// so decodeStream is testable against a plain io.Reader wrapper in tests.
type readerWithDeadline interface {
	Read(p []byte) (n int, err error)
}

func parseFrame(line []byte) (StreamFrame, error) {
	var probe struct {
		Heartbeat *int `json:"Heartbeat"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return StreamFrame{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	if probe.Heartbeat != nil {
		var hb HeartbeatFrame
		if err := json.Unmarshal(line, &hb); err != nil {
			return StreamFrame{}, fmt.Errorf("%w: heartbeat: %v", ErrProtocol, err)
		}
		return StreamFrame{Heartbeat: &hb}, nil
	}

	var q QuoteFrame
	if err := json.Unmarshal(line, &q); err != nil {
		return StreamFrame{}, fmt.Errorf("%w: quote: %v", ErrProtocol, err)
	}
	if len(q.Legs) == 0 {
		return StreamFrame{}, fmt.Errorf("%w: quote frame missing legs", ErrProtocol)
	}
	return StreamFrame{Quote: &q}, nil
}
