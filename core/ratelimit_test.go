package core

import (
	"testing"
	"time"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(3, time.Minute)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("hit %d within limit was blocked", i+1)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("hit over limit was allowed")
	}

	// Other clients have independent windows.
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("unrelated client was blocked")
	}

	// Window elapses: counter resets lazily on the next hit.
	now = now.Add(time.Minute)
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("client still blocked after window reset")
	}
}

func TestRateLimiterWindowNotYetElapsed(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("first hit blocked")
	}
	now = now.Add(59 * time.Second)
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("second hit inside the window was allowed")
	}
}
