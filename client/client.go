package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meepleboard/meeple/pkg/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "meeple-client"

	maxBodySize = 10 << 20
)

// TokenSource is the part of the token lifecycle manager the pipeline needs.
type TokenSource interface {
	// GetValidToken returns "" when no usable credential exists.
	GetValidToken(ctx context.Context) (string, error)
	// RefreshAccessToken returns a new access token or an error.
	RefreshAccessToken(ctx context.Context) (string, error)
	ClearAll(ctx context.Context) error
}

// Request describes one API call. Path is relative to the client's base URL
// and must already be escaped.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header
	// Anonymous requests carry no credentials and never trigger a refresh.
	Anonymous bool
}

// Response is a fully read 2xx answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	return decodeJSON(r.Body, v)
}

func decodeJSON(body []byte, v any) error {
	if v == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		log.Error().Err(err).Str("body_preview", string(truncate(body, 200))).Msg("Failed to parse response JSON")
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Client is the authenticated request pipeline.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     TokenSource
	transforms []RequestTransform
	refresh    *refreshCoordinator
	metrics    *metrics.Metrics
	limiter    *RateLimiter
	userAgent  string
	onExpired  func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each HTTP exchange. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithSessionExpiredHandler registers fn to run after a failed refresh has
// cleared the session.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps outgoing requests per second, allowing bursts of burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = NewRateLimiter(perSecond, burst) }
}

// WithTransforms appends request transforms after the built-in ones.
func WithTransforms(ts ...RequestTransform) Option {
	return func(c *Client) { c.transforms = append(c.transforms, ts...) }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		tokens:    tokens,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	builtin := []RequestTransform{
		requestIDTransform,
		userAgentTransform(c.userAgent),
		rateLimitTransform(c.limiter),
		bearerTransform(tokens),
	}
	c.transforms = append(builtin, c.transforms...)
	c.refresh = newRefreshCoordinator(tokens, c.metrics, c.onExpired)
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Do dispatches r. An authentication failure triggers at most one refresh
// and replay; every other failure is returned unchanged.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, r)

	status := 0
	var apiErr *APIError
	switch {
	case resp != nil:
		status = resp.Status
	case errors.As(err, &apiErr):
		status = apiErr.Status
	}
	c.metrics.ObserveRequest(r.Method, status, time.Since(start))
	return resp, err
}

func (c *Client) do(ctx context.Context, r *Request) (*Response, error) {
	var body []byte
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = b
	}
	if r.Anonymous {
		ctx = withAnonymous(ctx)
	}

	resp, err := c.dispatch(ctx, r, body, "")
	if err == nil || r.Anonymous {
		return resp, err
	}
	return c.refresh.recover(ctx, err, func(ctx context.Context, token string) (*Response, error) {
		return c.dispatch(ctx, r, body, token)
	})
}

// dispatch performs one HTTP exchange. A non-empty token is attached as is,
// which keeps the bearer transform from looking up credentials again.
func (c *Client) dispatch(ctx context.Context, r *Request, body []byte, token string) (*Response, error) {
	u := c.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, rdr)
	if err != nil {
		log.Error().Err(err).Str("method", r.Method).Str("url", u).Msg("Failed to create HTTP request object")
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, t := range c.transforms {
		if err := t(ctx, req); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("method", req.Method).Str("url", u).Str("request_id", req.Header.Get(RequestIDHeader)).Msg("Sending HTTP request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", u).Msg("HTTP request failed")
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(r.Method, r.Path, resp.StatusCode, data)
		log.Debug().Str("method", req.Method).Str("url", u).Int("status", resp.StatusCode).Str("message", apiErr.Message).Msg("HTTP request returned non-OK status")
		return nil, apiErr
	}
	log.Debug().Str("method", req.Method).Str("url", u).Int("status", resp.StatusCode).Msg("HTTP request successful")
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) call(ctx context.Context, r *Request, out any) error {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Get fetches path and decodes the JSON answer into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}
