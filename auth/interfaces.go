package auth

import "context"

// CredentialStore is a string key/value store for session secrets.
// Get returns "" for an absent key. Deleting an absent key is not an error.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TokenPair is what the refresh endpoint hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}
