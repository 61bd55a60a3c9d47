// Package apiclient is the Go client of the offlinekit control API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 2
	userAgent      = "offlinectl"
)

// Client talks to one offlinekit daemon.
type Client struct {
	baseURL string
	http    *http.Client
	retries uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each non-streaming request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetries sets how many times an idempotent request is retried when the
// daemon is unreachable or answers 503. Zero disables retries.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// New returns a client for the daemon at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		retries: defaultRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call sends one JSON request and decodes a successful answer into out.
// GET, PUT and DELETE are retried; POST is sent once.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	var body []byte
	attempt := func() error {
		var err error
		body, err = c.roundTrip(ctx, method, path, payload)
		return err
	}

	var err error
	if method == http.MethodPost || c.retries == 0 {
		err = attempt()
	} else {
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
		err = backoff.Retry(attempt, b)
	}
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// roundTrip returns the body of a 2xx answer. Errors worth retrying are
// returned as is; all others are wrapped in backoff.Permanent.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var r io.Reader
	if payload != nil {
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := parseProblem(resp.StatusCode, body)
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, apiErr
	}
	return nil, backoff.Permanent(apiErr)
}

// unwrapPermanent strips the retry marker so callers can match *APIError.
func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
