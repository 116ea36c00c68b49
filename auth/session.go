package auth

import (
	"context"
	"fmt"
	"time"
)

// Session is a read-only snapshot of what is stored for the current user.
type Session struct {
	LoggedIn        bool
	RememberMe      bool
	HasRefreshToken bool
	ExpiresAt       time.Time
	Expired         bool
	UserID          string
	UserName        string
}

// Status inspects the store without refreshing anything.
func (s *Service) Status(ctx context.Context) (Session, error) {
	var st Session

	token, err := s.Store.Get(ctx, KeyAccessToken)
	if err != nil {
		return st, fmt.Errorf("failed to read access token: %w", err)
	}
	remember, err := s.Store.Get(ctx, KeyRememberMe)
	if err != nil {
		return st, fmt.Errorf("failed to read remember-me flag: %w", err)
	}
	refresh, err := s.Store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return st, fmt.Errorf("failed to read refresh token: %w", err)
	}

	st.LoggedIn = token != ""
	st.RememberMe = remember == "true"
	st.HasRefreshToken = refresh != ""
	if !st.LoggedIn {
		return st, nil
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		st.Expired = true
		return st, nil
	}
	st.ExpiresAt = claims.ExpiresAt
	st.Expired = claims.Expired(s.now(), s.leeway)
	st.UserID = claims.UserID()
	st.UserName = claims.UserName()
	return st, nil
}
