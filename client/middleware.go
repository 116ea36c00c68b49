package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

// RequestTransform mutates an outgoing request before dispatch. Returning an
// error aborts the request.
type RequestTransform func(ctx context.Context, req *http.Request) error

type ctxKey int

const anonymousKey ctxKey = iota

func withAnonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey).(bool)
	return v
}

// bearerTransform attaches the current access token. A store failure is
// treated as having no credential; the server will answer 401 and the
// refresh protocol takes over.
func bearerTransform(tokens TokenSource) RequestTransform {
	return func(ctx context.Context, req *http.Request) error {
		if isAnonymous(ctx) || req.Header.Get("Authorization") != "" {
			return nil
		}
		token, err := tokens.GetValidToken(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Cannot read credentials, sending request without them")
			return nil
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}

func requestIDTransform(_ context.Context, req *http.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return nil
}

func userAgentTransform(ua string) RequestTransform {
	return func(_ context.Context, req *http.Request) error {
		if ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		return nil
	}
}

func rateLimitTransform(l *RateLimiter) RequestTransform {
	return func(ctx context.Context, _ *http.Request) error {
		if l == nil {
			return nil
		}
		return l.Wait(ctx)
	}
}
