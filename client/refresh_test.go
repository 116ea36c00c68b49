package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meepleboard/meeple/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens hands out "old" until refreshed to next. When release is set,
// refreshes block until it is closed.
type fakeTokens struct {
	mu           sync.Mutex
	current      string
	next         string
	refreshErr   error
	refreshCalls int
	clearCalls   int
	started      chan struct{}
	release      chan struct{}
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{current: "old", next: "new", started: make(chan struct{}, 16)}
}

func (f *fakeTokens) GetValidToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeTokens) RefreshAccessToken(context.Context) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	release := f.release
	f.mu.Unlock()
	f.started <- struct{}{}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.current = f.next
	return f.next, nil
}

func (f *fakeTokens) ClearAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	f.current = ""
	return nil
}

func (f *fakeTokens) counts() (refreshes, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls, f.clearCalls
}

func (rc *refreshCoordinator) pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.waiters)
}

// tokenServer accepts only "Bearer <valid>" and counts requests per token.
type tokenServer struct {
	*httptest.Server
	mu    sync.Mutex
	valid string
	seen  map[string]int
}

func newTokenServer(t *testing.T, valid string) *tokenServer {
	ts := &tokenServer{valid: valid, seen: map[string]int{}}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		ts.mu.Lock()
		ts.seen[auth]++
		valid := ts.valid
		ts.mu.Unlock()
		if auth != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token expired."}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) count(auth string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.seen[auth]
}

// fireConcurrent issues n GETs once the refresh is in flight with n-1 waiters
// queued, then releases it.
func fireConcurrent(t *testing.T, c *Client, tokens *fakeTokens, n int) []error {
	t.Helper()
	tokens.release = make(chan struct{})

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]any
			errs[i] = c.Get(context.Background(), "/things", nil, &out)
		}(i)
	}

	select {
	case <-tokens.started:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never started")
	}
	require.Eventually(t, func() bool { return c.refresh.pending() == n-1 }, 5*time.Second, 5*time.Millisecond)
	close(tokens.release)
	wg.Wait()
	return errs
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	srv := newTokenServer(t, "new")
	tokens := newFakeTokens()
	m := metrics.New()
	c := New(srv.URL, tokens, WithMetrics(m))

	errs := fireConcurrent(t, c, tokens, 5)

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	refreshes, clears := tokens.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 0, clears)
	assert.Equal(t, 5, srv.count("Bearer old"))
	assert.Equal(t, 5, srv.count("Bearer new"))
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP meeple_refresh_waiters_total Requests that queued behind an in-flight refresh.
# TYPE meeple_refresh_waiters_total counter
meeple_refresh_waiters_total 4
# HELP meeple_request_replays_total Requests redispatched with a refreshed token.
# TYPE meeple_request_replays_total counter
meeple_request_replays_total 5
`), "meeple_refresh_waiters_total", "meeple_request_replays_total"))
}

func TestFailedRefreshFailsEveryWaiterAndClearsOnce(t *testing.T) {
	srv := newTokenServer(t, "never")
	tokens := newFakeTokens()
	tokens.refreshErr = errors.New("refresh rejected")
	var expired atomic.Int32
	c := New(srv.URL, tokens, WithSessionExpiredHandler(func() { expired.Add(1) }))

	errs := fireConcurrent(t, c, tokens, 4)

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err), "waiters get their own 401, got %v", err)
	}
	refreshes, clears := tokens.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 1, clears)
	assert.Equal(t, int32(1), expired.Load())
	assert.Equal(t, 0, srv.count("Bearer new"), "nothing is replayed after a failed refresh")
}

func TestReplayIsAttemptedOnlyOnce(t *testing.T) {
	// The server rejects both the old and the refreshed token.
	srv := newTokenServer(t, "never")
	tokens := newFakeTokens()
	c := New(srv.URL, tokens)

	err := c.Get(context.Background(), "/things", nil, nil)

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	refreshes, clears := tokens.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 0, clears)
	assert.Equal(t, 1, srv.count("Bearer old"))
	assert.Equal(t, 1, srv.count("Bearer new"))
}

func TestNonAuthFailuresSkipRefresh(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Not yours."}`))
	}))
	defer srv.Close()
	tokens := newFakeTokens()
	c := New(srv.URL, tokens)

	err := c.Get(context.Background(), "/things", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Not yours.", apiErr.Message)
	assert.Equal(t, int32(1), hits.Load())
	refreshes, _ := tokens.counts()
	assert.Zero(t, refreshes)
}

func TestWaiterCancellationLeavesRefreshRunning(t *testing.T) {
	tokens := newFakeTokens()
	tokens.release = make(chan struct{})
	rc := newRefreshCoordinator(tokens, nil, nil)
	unauthorized := &APIError{Status: http.StatusUnauthorized}

	var replayed atomic.Int32
	replay := func(context.Context, string) (*Response, error) {
		replayed.Add(1)
		return &Response{Status: http.StatusOK}, nil
	}

	leaderDone := make(chan error, 1)
	go func() {
		_, err := rc.recover(context.Background(), unauthorized, replay)
		leaderDone <- err
	}()
	<-tokens.started

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := rc.recover(ctx, unauthorized, replay)
		waiterDone <- err
	}()
	require.Eventually(t, func() bool { return rc.pending() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-waiterDone, context.Canceled)

	close(tokens.release)
	assert.NoError(t, <-leaderDone)
	assert.Equal(t, int32(1), replayed.Load())
	assert.Zero(t, rc.pending())
}

func TestRecoverPassesThroughOtherErrors(t *testing.T) {
	tokens := newFakeTokens()
	rc := newRefreshCoordinator(tokens, nil, nil)
	boom := errors.New("connection reset")

	_, err := rc.recover(context.Background(), boom, func(context.Context, string) (*Response, error) {
		t.Fatal("replay must not run")
		return nil, nil
	})

	assert.Same(t, boom, err)
	refreshes, _ := tokens.counts()
	assert.Zero(t, refreshes)
}

func TestSequentialFailuresRefreshAgain(t *testing.T) {
	srv := newTokenServer(t, "never")
	tokens := newFakeTokens()
	c := New(srv.URL, tokens)

	for i := 0; i < 2; i++ {
		require.Error(t, c.Get(context.Background(), "/things", nil, nil))
	}
	refreshes, _ := tokens.counts()
	assert.Equal(t, 2, refreshes, "a refresh is only shared while in flight")
}
