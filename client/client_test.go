package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/meepleboard/meeple/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the last request it served and answers with status/body.
type recorder struct {
	mu     sync.Mutex
	last   *http.Request
	body   []byte
	status int
	reply  string
}

func (rec *recorder) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.last = r.Clone(context.Background())
		rec.body = body
		status, reply := rec.status, rec.reply
		rec.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (rec *recorder) request() *http.Request {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.last
}

func (rec *recorder) payload() string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return string(rec.body)
}

func TestDoAttachesStandardHeaders(t *testing.T) {
	rec := &recorder{reply: `{"name":"Catan"}`}
	srv := rec.serve(t)
	c := New(srv.URL+"/MeepleBoard/", newFakeTokens(), WithUserAgent("meeple-test/1.0"))

	var out struct{ Name string }
	require.NoError(t, c.Post(context.Background(), "/game/import/13", map[string]int{"n": 1}, &out))

	assert.Equal(t, "Catan", out.Name)
	assert.Equal(t, "/MeepleBoard/game/import/13", rec.request().URL.Path)
	assert.Equal(t, "Bearer old", rec.request().Header.Get("Authorization"))
	assert.Equal(t, "application/json", rec.request().Header.Get("Content-Type"))
	assert.Equal(t, "meeple-test/1.0", rec.request().Header.Get("User-Agent"))
	assert.Len(t, rec.request().Header.Get(RequestIDHeader), 36)
	assert.JSONEq(t, `{"n":1}`, rec.payload())
}

func TestDoWithoutCredentialSendsNoAuthorization(t *testing.T) {
	rec := &recorder{}
	srv := rec.serve(t)
	tokens := newFakeTokens()
	tokens.current = ""
	c := New(srv.URL, tokens)

	require.NoError(t, c.Get(context.Background(), "/game/suggestions", nil, nil))
	assert.Empty(t, rec.request().Header.Get("Authorization"))
}

func TestAnonymousRequestsNeverRefresh(t *testing.T) {
	rec := &recorder{status: http.StatusUnauthorized, reply: `{"message":"Invalid credentials."}`}
	srv := rec.serve(t)
	tokens := newFakeTokens()
	c := New(srv.URL, tokens)

	_, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/login", Body: map[string]string{}, Anonymous: true})

	require.True(t, IsUnauthorized(err))
	assert.Empty(t, rec.request().Header.Get("Authorization"))
	refreshes, clears := tokens.counts()
	assert.Zero(t, refreshes)
	assert.Zero(t, clears)
}

func TestQueryIsEncoded(t *testing.T) {
	rec := &recorder{reply: `[]`}
	srv := rec.serve(t)
	c := New(srv.URL, newFakeTokens())

	_, err := c.Games().Suggestions(context.Background(), "ticket to ride", Page{Offset: 20})
	require.NoError(t, err)

	q := rec.request().URL.Query()
	assert.Equal(t, "ticket to ride", q.Get("query"))
	assert.Equal(t, "20", q.Get("offset"))
	assert.Equal(t, "10", q.Get("limit"))
}

func TestTransportErrorIsNotAnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	tokens := newFakeTokens()
	m := metrics.New()
	c := New(url, tokens, WithMetrics(m))

	err := c.Get(context.Background(), "/users/me", nil, nil)

	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	refreshes, _ := tokens.counts()
	assert.Zero(t, refreshes)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP meeple_http_requests_total API requests by method and final status code (0 = transport error).
# TYPE meeple_http_requests_total counter
meeple_http_requests_total{method="GET",status="0"} 1
`), "meeple_http_requests_total"))
}

func TestCustomTransformCanAbort(t *testing.T) {
	rec := &recorder{}
	srv := rec.serve(t)
	stop := errors.New("offline mode")
	c := New(srv.URL, newFakeTokens(), WithTransforms(func(context.Context, *http.Request) error { return stop }))

	err := c.Get(context.Background(), "/users/me", nil, nil)

	assert.ErrorIs(t, err, stop)
	assert.Nil(t, rec.request())
}

func TestDecodeFailureIsReported(t *testing.T) {
	rec := &recorder{reply: `{"name":`}
	srv := rec.serve(t)
	c := New(srv.URL, newFakeTokens())

	var out Game
	err := c.Get(context.Background(), "/game/1", nil, &out)
	assert.ErrorContains(t, err, "failed to decode response")
}

func TestAPIErrorShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		code    string
		errors  []string
	}{
		{"message and list", `{"message":"Registration failed.","errors":["Email taken."]}`, "Registration failed.", "", []string{"Email taken."}},
		{"problem details", `{"title":"Validation failed","errors":{"Password":["Too short."],"Email":["Bad."]}}`, "Validation failed", "", []string{"Bad.", "Too short."}},
		{"error field and code", `{"error":"nope","code":"locked"}`, "nope", "locked", nil},
		{"plain text", `Service Unavailable`, "Service Unavailable", "", nil},
		{"empty", ``, "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAPIError(http.MethodPost, "/auth/register", http.StatusBadRequest, []byte(tt.body))
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.errors, e.Errors)
		})
	}
}

func TestAPIErrorString(t *testing.T) {
	e := &APIError{Status: http.StatusNotFound, Method: http.MethodGet, Path: "/game/9"}
	assert.Equal(t, "GET /game/9: 404 Not Found", e.Error())
	assert.True(t, IsNotFound(e))
	assert.False(t, IsUnauthorized(e))
}
