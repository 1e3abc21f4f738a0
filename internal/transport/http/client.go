// Package http is the REST transport used by meeting sessions.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBody = 4 << 20

type Options struct {
	// Token is sent as a bearer token when set.
	Token     string
	UserAgent string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Client implements core.Transport over net/http with JSON bodies.
type Client struct {
	hc        *http.Client
	token     string
	userAgent string
	logger    zerolog.Logger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "huddle/1.0"
	}
	return &Client{
		hc:        &http.Client{Timeout: timeout},
		token:     opts.Token,
		userAgent: ua,
		logger:    opts.Logger.With().Str("module", "transport.http").Logger(),
	}
}

func (c *Client) Do(ctx context.Context, req core.Request) (*core.Response, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.URL, err)
		}
		body = bytes.NewReader(b)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	trackingID := uuid.NewString()
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", c.userAgent)
	hreq.Header.Set("TrackingID", trackingID)
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.hc.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.Method, req.URL, err)
	}
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Str("tracking_id", trackingID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return &core.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
