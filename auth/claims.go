package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access token claims the client cares about.
type Claims struct {
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
	raw       jwt.MapClaims
}

// DecodeClaims reads the payload of a JWT WITHOUT verifying its signature.
// The result is only good for estimating expiry and reading display fields;
// the server remains the authority on whether a token is valid.
func DecodeClaims(token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("failed to read exp claim: %w", err)
	}

	c := &Claims{raw: claims}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Expired reports whether the token should be treated as expired at now.
// A token without exp is always expired.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

// UserID returns the first non-empty of sub, nameid and id.
func (c *Claims) UserID() string {
	return c.firstString("sub", "nameid", "id")
}

// UserName returns the display name claim, if any.
func (c *Claims) UserName() string {
	return c.firstString("unique_name", "userName", "name")
}

func (c *Claims) Email() string {
	return c.firstString("email")
}

func (c *Claims) firstString(keys ...string) string {
	for _, k := range keys {
		switch v := c.raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
