package client

import (
	"context"
	"sync"

	"github.com/meepleboard/meeple/pkg/metrics"
	"github.com/rs/zerolog/log"
)

type replayFunc func(ctx context.Context, token string) (*Response, error)

// refreshCoordinator recovers requests rejected with 401. The first such
// request refreshes the token; requests failing while that refresh is
// outstanding queue behind it and receive its outcome. Every request is
// replayed at most once.
type refreshCoordinator struct {
	tokens    TokenSource
	metrics   *metrics.Metrics
	onExpired func()

	mu         sync.Mutex
	refreshing bool
	// waiters receive the refresh outcome: a token, or "" on failure.
	// Each channel has room for exactly one value.
	waiters []chan string
}

func newRefreshCoordinator(tokens TokenSource, m *metrics.Metrics, onExpired func()) *refreshCoordinator {
	return &refreshCoordinator{tokens: tokens, metrics: m, onExpired: onExpired}
}

// recover handles the failure origErr of a first attempt. replay redispatches
// the original request with the given token and is called at most once.
func (rc *refreshCoordinator) recover(ctx context.Context, origErr error, replay replayFunc) (*Response, error) {
	if !IsUnauthorized(origErr) {
		return nil, origErr
	}

	rc.mu.Lock()
	if rc.refreshing {
		ch := make(chan string, 1)
		rc.waiters = append(rc.waiters, ch)
		rc.mu.Unlock()
		rc.metrics.IncWaiters()
		log.Debug().Msg("Waiting for in-flight token refresh")

		select {
		case token := <-ch:
			if token == "" {
				return nil, origErr
			}
			rc.metrics.IncReplays()
			return replay(ctx, token)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	rc.refreshing = true
	rc.mu.Unlock()

	// A started refresh always runs to completion.
	token, err := rc.tokens.RefreshAccessToken(context.WithoutCancel(ctx))
	if err != nil {
		token = ""
	}

	rc.mu.Lock()
	waiters := rc.waiters
	rc.waiters = nil
	rc.refreshing = false
	rc.mu.Unlock()

	for _, ch := range waiters {
		ch <- token
	}

	if token == "" {
		log.Warn().Err(err).Int("waiters", len(waiters)).Msg("Token refresh failed, ending session")
		if cerr := rc.tokens.ClearAll(context.WithoutCancel(ctx)); cerr != nil {
			log.Error().Err(cerr).Msg("Failed to clear session")
		}
		if rc.onExpired != nil {
			rc.onExpired()
		}
		return nil, origErr
	}

	log.Debug().Int("waiters", len(waiters)).Msg("Token refreshed, replaying request")
	rc.metrics.IncReplays()
	return replay(ctx, token)
}
