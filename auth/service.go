package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/meepleboard/meeple/pkg/metrics"
	"github.com/meepleboard/meeple/pkg/redact"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Storage keys. The names match what earlier MeepleBoard clients wrote.
const (
	KeyAccessToken  = "secure_token"
	KeyRefreshToken = "secure_refresh_token"
	KeyRememberMe   = "remember_me"
	KeyCurrentUser  = "current_user"
)

var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyRememberMe, KeyCurrentUser}

var (
	// ErrNotPersistent means the user did not ask to be remembered, so no
	// refresh is attempted and nothing is cleared.
	ErrNotPersistent = errors.New("session is not persistent")
	// ErrNoRefreshToken means the session is persistent but no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrInvalidRefreshResponse means the endpoint answered without a full token pair.
	ErrInvalidRefreshResponse = errors.New("refresh response is missing tokens")
	ErrNotLoggedIn            = errors.New("not logged in")
)

// User is the profile cached under KeyCurrentUser.
type User struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Email    string `json:"email,omitempty"`
}

// Service owns the session credentials: it stores them, decides whether the
// access token is still usable, refreshes it and wipes the session.
type Service struct {
	Store     CredentialStore
	Refresher TokenRefresher

	leeway  time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	flight  singleflight.Group
}

type Option func(*Service)

// WithExpiryLeeway treats tokens as expired d before their exp claim.
func WithExpiryLeeway(d time.Duration) Option {
	return func(s *Service) { s.leeway = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService is the constructor for the token lifecycle manager.
func NewService(store CredentialStore, refresher TokenRefresher, opts ...Option) *Service {
	s := &Service{
		Store:     store,
		Refresher: refresher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreTokens persists a freshly issued token pair. The refresh token is only
// kept when rememberMe is set; otherwise any stale one is removed.
func (s *Service) StoreTokens(ctx context.Context, accessToken, refreshToken string, rememberMe bool) error {
	log.Debug().Bool("remember_me", rememberMe).Str("token", redact.Token(accessToken)).Msg("Storing session tokens")

	if err := s.Store.Set(ctx, KeyRememberMe, strconv.FormatBool(rememberMe)); err != nil {
		return fmt.Errorf("failed to store remember-me flag: %w", err)
	}
	if err := s.Store.Set(ctx, KeyAccessToken, accessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if rememberMe {
		if err := s.Store.Set(ctx, KeyRefreshToken, refreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
		return nil
	}
	if err := s.Store.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("failed to remove refresh token: %w", err)
	}
	return nil
}

// GetValidToken returns an access token that is not known to be expired,
// refreshing it if needed. An empty token with a nil error means there is no
// usable credential; an error is only returned when the store cannot be read.
func (s *Service) GetValidToken(ctx context.Context) (string, error) {
	token, err := s.Store.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		return "", nil
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		log.Warn().Err(err).Msg("Stored access token cannot be decoded")
		return "", nil
	}
	if !claims.Expired(s.now(), s.leeway) {
		return token, nil
	}

	log.Info().Time("exp", claims.ExpiresAt).Msg("Access token expired, refreshing")
	fresh, err := s.RefreshAccessToken(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("No usable access token")
		return "", nil
	}
	return fresh, nil
}

// RefreshAccessToken exchanges the stored refresh token for a new pair.
// Concurrent callers share a single exchange. The exchange is detached from
// ctx cancellation so a started refresh always settles the stored session.
// On failure the returned token is "" and, unless the session is not
// persistent, every session key has been cleared.
func (s *Service) RefreshAccessToken(ctx context.Context) (string, error) {
	v, err, shared := s.flight.Do("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	if shared {
		log.Debug().Msg("Joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Service) refresh(ctx context.Context) (string, error) {
	remember, err := s.Store.Get(ctx, KeyRememberMe)
	if err != nil {
		return s.failRefresh(ctx, fmt.Errorf("failed to read remember-me flag: %w", err))
	}
	if remember != "true" {
		s.metrics.ObserveRefresh(metrics.OutcomeSkipped)
		return "", ErrNotPersistent
	}

	refreshToken, err := s.Store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return s.failRefresh(ctx, fmt.Errorf("failed to read refresh token: %w", err))
	}
	if refreshToken == "" {
		return s.failRefresh(ctx, ErrNoRefreshToken)
	}

	pair, err := s.Refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return s.failRefresh(ctx, fmt.Errorf("refresh request failed: %w", err))
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return s.failRefresh(ctx, ErrInvalidRefreshResponse)
	}

	if err := s.StoreTokens(ctx, pair.AccessToken, pair.RefreshToken, true); err != nil {
		return s.failRefresh(ctx, err)
	}

	s.metrics.ObserveRefresh(metrics.OutcomeSuccess)
	log.Info().Str("token", redact.Token(pair.AccessToken)).Msg("Access token refreshed")
	return pair.AccessToken, nil
}

func (s *Service) failRefresh(ctx context.Context, cause error) (string, error) {
	s.metrics.ObserveRefresh(metrics.OutcomeFailure)
	log.Warn().Err(cause).Msg("Token refresh failed, clearing session")
	if err := s.ClearAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clear session after refresh failure")
	}
	return "", cause
}

// ClearAll removes every session key. It tries all keys even when one fails.
func (s *Service) ClearAll(ctx context.Context) error {
	var errs []error
	for _, key := range sessionKeys {
		if err := s.Store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	if len(errs) == 0 {
		log.Debug().Msg("Session cleared")
	}
	return errors.Join(errs...)
}

// SaveUser caches the signed-in user's profile.
func (s *Service) SaveUser(ctx context.Context, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.Store.Set(ctx, KeyCurrentUser, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// CurrentUser returns the cached profile, or nil when none is stored.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := s.Store.Get(ctx, KeyCurrentUser)
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &user, nil
}

// UserID reads the user id out of the stored access token.
func (s *Service) UserID(ctx context.Context) (string, error) {
	token, err := s.Store.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		return "", ErrNotLoggedIn
	}
	claims, err := DecodeClaims(token)
	if err != nil {
		return "", err
	}
	id := claims.UserID()
	if id == "" {
		return "", errors.New("access token carries no user id")
	}
	return id, nil
}
