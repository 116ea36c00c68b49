package client

import (
	"context"
	"testing"
	"time"
)

func TestNewRateLimiter_Disabled(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"zero limit", 0},
		{"negative limit", -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if l := NewRateLimiter(tt.rate, 5); l != nil {
				t.Errorf("NewRateLimiter(%v) should disable limiting", tt.rate)
			}
		})
	}

	var l *RateLimiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait() = %v", err)
	}
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	l := NewRateLimiter(1, 3)
	now := l.last

	for i := 0; i < 3; i++ {
		if _, ok := l.reserve(now); !ok {
			t.Fatalf("request %d within burst was throttled", i)
		}
	}
	wait, ok := l.reserve(now)
	if ok {
		t.Fatal("request beyond burst should be throttled")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("wait = %v, want (0, 1s]", wait)
	}

	if _, ok := l.reserve(now.Add(time.Second)); !ok {
		t.Error("token should be refilled after one second")
	}
}

func TestRateLimiter_RefillIsCappedAtBurst(t *testing.T) {
	l := NewRateLimiter(10, 2)
	now := l.last.Add(time.Hour)

	granted := 0
	for i := 0; i < 5; i++ {
		if _, ok := l.reserve(now); ok {
			granted++
		}
	}
	if granted != 2 {
		t.Errorf("granted %d after long idle, want burst of 2", granted)
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	l := NewRateLimiter(0.001, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}
