package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func fixedClock(l *FixedWindowLimiter, at time.Time) {
	l.now = func() time.Time { return at }
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	defer limiter.Close()
	start := time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC)
	fixedClock(limiter, start)

	ctx := context.Background()
	if !limiter.Allow(ctx, "login:1.2.3.4") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow(ctx, "login:1.2.3.4") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow(ctx, "login:1.2.3.4") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "login:5.6.7.8") {
		t.Fatalf("other keys keep their own quota")
	}

	fixedClock(limiter, start.Add(time.Minute))
	if !limiter.Allow(ctx, "login:1.2.3.4") {
		t.Fatalf("next window should reset quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "", 1, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	defer limiter.Close()
	redis.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterConstructorErrors(t *testing.T) {
	if l, err := NewRedisFixedWindowLimiter("", "", "p", 1, time.Second); err == nil || l != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
	if _, err := NewFixedWindowLimiter(nil, "p", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	redis := miniredis.RunT(t)
	if _, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "p", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestNilLimiterDenies(t *testing.T) {
	var l *FixedWindowLimiter
	if l.Allow(context.Background(), "k") {
		t.Fatalf("nil limiter should deny")
	}
}
