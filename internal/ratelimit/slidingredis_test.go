package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "pos:ratelimit:"}

	ctx := context.Background()
	const key = "login:203.0.113.9"
	window := 2 * time.Second
	max := 3

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, key, window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be within the window", i+1)
		}
		if remaining != max-(i+1) {
			t.Fatalf("remaining = %d after attempt %d", remaining, i+1)
		}
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, key, window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("attempt over the limit must be rejected")
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	if reset.Before(time.Now()) {
		t.Fatal("reset must be in the future while throttled")
	}

	// A different client is tracked independently.
	allowed, _, _, err = limiter.Allow(ctx, "login:203.0.113.44", window, max)
	if err != nil {
		t.Fatalf("allow other key: %v", err)
	}
	if !allowed {
		t.Fatal("other client must not share the budget")
	}

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, key, window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("window expiry must clear the throttle")
	}
}
