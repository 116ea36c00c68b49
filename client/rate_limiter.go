package client

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket over requests.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64 // requests per second
	burst  float64
	tokens float64 // current available tokens
	last   time.Time
}

// NewRateLimiter returns nil when perSecond is not positive, which disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{rate: perSecond, burst: float64(burst), tokens: float64(burst), last: time.Now()}
}

// reserve takes a token if one is available, otherwise reports how long
// until the next one.
func (l *RateLimiter) reserve(now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Refill tokens
	elapsed := now.Sub(l.last).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
		l.last = now
	}
	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}
	return time.Duration((1 - l.tokens) / l.rate * float64(time.Second)), false
}

// Wait blocks until a request may be sent or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		wait, ok := l.reserve(time.Now())
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
