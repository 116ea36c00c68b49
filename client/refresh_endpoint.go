package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meepleboard/meeple/auth"
	"github.com/rs/zerolog/log"
)

const refreshPath = "/auth/refresh-token"

// RefreshEndpoint calls the token refresh endpoint directly, outside the
// pipeline, so a refresh can never trigger another refresh.
type RefreshEndpoint struct {
	url        string
	httpClient *http.Client
	userAgent  string
}

// NewRefreshEndpoint targets {baseURL}/auth/refresh-token. A nil httpClient
// gets one with DefaultTimeout.
func NewRefreshEndpoint(baseURL string, httpClient *http.Client) *RefreshEndpoint {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &RefreshEndpoint{
		url:        strings.TrimRight(baseURL, "/") + refreshPath,
		httpClient: httpClient,
		userAgent:  DefaultUserAgent,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh implements auth.TokenRefresher.
func (e *RefreshEndpoint) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	_ = requestIDTransform(ctx, req)

	log.Debug().Str("url", e.url).Msg("Requesting token refresh")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("refresh endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return auth.TokenPair{}, newAPIError(http.MethodPost, refreshPath, resp.StatusCode, body)
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return auth.TokenPair{}, fmt.Errorf("malformed refresh response: %w", err)
	}
	if out.Token == "" || out.RefreshToken == "" {
		return auth.TokenPair{}, auth.ErrInvalidRefreshResponse
	}
	return auth.TokenPair{AccessToken: out.Token, RefreshToken: out.RefreshToken}, nil
}
