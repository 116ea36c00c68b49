package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meepleboard/meeple/auth"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory CredentialStore with error injection.
type memStore struct {
	mu        sync.Mutex
	data      map[string]string
	getErr    error
	failKeys  map[string]error
	deletions []string
}

func newMemStore(kv map[string]string) *memStore {
	data := map[string]string{}
	for k, v := range kv {
		data[k] = v
	}
	return &memStore{data: data, failKeys: map[string]error{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.data[key], nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failKeys[key]; err != nil {
		return err
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletions = append(m.deletions, key)
	if err := m.failKeys[key]; err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

func (m *memStore) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// fakeRefresher records calls and optionally blocks until released.
type fakeRefresher struct {
	mu      sync.Mutex
	calls   []string
	pair    auth.TokenPair
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	f.mu.Lock()
	f.calls = append(f.calls, refreshToken)
	n := len(f.calls)
	f.mu.Unlock()

	if f.started != nil && n == 1 {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return auth.TokenPair{}, f.err
	}
	return f.pair, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errBackend = errors.New("backend said no")

// mintToken signs a token with the given claims. Signatures are never
// verified by the client, so the key is irrelevant.
func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	return mintToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})
}

func newService(store auth.CredentialStore, refresher auth.TokenRefresher, opts ...auth.Option) *auth.Service {
	opts = append([]auth.Option{auth.WithClock(func() time.Time { return fixedNow })}, opts...)
	return auth.NewService(store, refresher, opts...)
}
