// Package etp is a client for the ESSArch Tools for Producer REST API.
package etp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/logging"
)

const (
	// DefaultPageSize is used for list requests when no page size is configured.
	DefaultPageSize = 10
	// DefaultChildConcurrency bounds concurrent child fetches in GetTreeData.
	DefaultChildConcurrency = 4

	defaultTimeout = 30 * time.Second
	// maxRetryTime is the longest a request is retried on network errors.
	maxRetryTime = 10 * time.Second
	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 1 << 20
)

// RequestIDHeader carries a fresh id on every request.
const RequestIDHeader = "X-Request-ID"

// Client talks to one ETP server.
type Client struct {
	baseURL          *url.URL
	httpClient       *http.Client
	username         string
	password         string
	pageSize         int
	childConcurrency int
	logger           *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a client for the server at baseURL. Requests that fail
// with a network error are retried with exponential backoff; HTTP error
// responses are never retried.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse server URL: %q is not absolute", baseURL)
	}

	c := &Client{
		baseURL:          u,
		pageSize:         DefaultPageSize,
		childConcurrency: DefaultChildConcurrency,
		logger:           logging.NopLogger(),
	}
	c.httpClient = &http.Client{
		Timeout: defaultTimeout,
		Transport: &retryRoundTripper{
			base: http.DefaultTransport,
			newBackoff: func() backoff.BackOff {
				return backoff.NewExponentialBackOff(
					backoff.WithInitialInterval(100*time.Millisecond),
					backoff.WithMaxInterval(1*time.Second),
					backoff.WithMaxElapsedTime(maxRetryTime),
				)
			},
			client: c,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient replaces the HTTP client, including its retrying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithBasicAuth sends a static basic-auth header on every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithPageSize sets the default page size for list requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithChildConcurrency bounds how many child requests GetTreeData has in flight.
func WithChildConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.childConcurrency = n
		}
	}
}

// WithLogger sets the logger for request failures and retries.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent("client")
		}
	}
}

// resolve turns an API path or an absolute URL returned by the server into
// a request URL.
func (c *Client) resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", ref, err)
	}
	if !r.IsAbs() {
		r.Path = strings.TrimLeft(r.Path, "/")
	}
	return c.baseURL.ResolveReference(r), nil
}

func (c *Client) do(ctx context.Context, op, method, ref string, query url.Values, body, out any) error {
	u, err := c.resolve(ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{
			Op:         op,
			Method:     method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
		c.logger.Debug("request failed",
			"method", method, "url", u.String(), "status", resp.StatusCode,
			"request_id", req.Header.Get(RequestIDHeader))
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, ref string, query url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, ref, query, nil, out)
}

func (c *Client) post(ctx context.Context, op, ref string, body, out any) error {
	return c.do(ctx, op, http.MethodPost, ref, nil, body, out)
}

// readDetail extracts the "detail" field of an error body, falling back to
// the raw text.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

// retryRoundTripper retries requests on network errors.
type retryRoundTripper struct {
	base       http.RoundTripper
	newBackoff func() backoff.BackOff
	client     *Client
}

func (rt *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := 0
	attempt := func() (*http.Response, error) {
		attempts++
		if attempts > 1 {
			if req.Body != nil && req.GetBody == nil {
				return nil, backoff.Permanent(fmt.Errorf("request body cannot be replayed"))
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				req.Body = body
			}
		}
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				rt.client.logger.Debug("retrying request after network error",
					"url", req.URL.String(), "attempt", attempts, "error", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}
	boff := backoff.WithContext(rt.newBackoff(), req.Context())
	return backoff.RetryWithData(attempt, boff)
}
