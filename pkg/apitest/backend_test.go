package apitest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meepleboard/meeple/pkg/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestProtectedRoutesCheckTokens(t *testing.T) {
	b := apitest.New(t)
	id := b.AddUser("alice", "alice@example.com", "secret1")

	assert.Equal(t, http.StatusUnauthorized, get(t, b.URL()+"/users/me", "").StatusCode)

	expired, _ := b.IssueTokens(id, time.Now().Add(-time.Minute))
	assert.Equal(t, http.StatusUnauthorized, get(t, b.URL()+"/users/me", expired).StatusCode)

	fresh, _ := b.IssueTokens(id, time.Now().Add(time.Minute))
	resp := get(t, b.URL()+"/users/me", fresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, id, me["id"])

	b.RevokeAccessTokens()
	assert.Equal(t, http.StatusUnauthorized, get(t, b.URL()+"/users/me", fresh).StatusCode)
	assert.Equal(t, 4, b.Hits("GET /users/me"))
}

func TestRefreshHookRunsBeforeAnswer(t *testing.T) {
	b := apitest.New(t)
	id := b.AddUser("alice", "alice@example.com", "secret1")
	_, refresh := b.IssueTokens(id, time.Now().Add(time.Minute))
	var called atomic.Bool
	b.OnRefresh(func() { called.Store(true) })

	body, _ := json.Marshal(map[string]string{"refreshToken": refresh})
	resp, err := http.Post(b.URL()+"/auth/refresh-token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, called.Load())
	assert.Equal(t, 1, b.RefreshCalls())
}
