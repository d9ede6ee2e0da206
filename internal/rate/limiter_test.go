package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg), mr
}

func TestLoginLimitAfterMaxFailures(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if err := limiter.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	// The counter sits at the budget; one more failure tips it over.
	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("check at budget must pass: %v", err)
	}
	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// Other identifiers are unaffected.
	if err := limiter.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("unrelated identifier limited: %v", err)
	}
}

func TestResetLoginClearsCounter(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = limiter.IncrementLogin(ctx, "alice", "")
	_ = limiter.IncrementLogin(ctx, "alice", "")
	if err := limiter.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := limiter.ResetLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("counter not cleared: %v", err)
	}
	attempts, err := limiter.GetLoginAttempts(ctx, "alice")
	if err != nil || attempts != 0 {
		t.Fatalf("expected zero attempts, got %d (%v)", attempts, err)
	}
}

func TestIPThrottleSharesBudgetAcrossIdentifiers(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = limiter.IncrementLogin(ctx, "alice", "203.0.113.9")
	_ = limiter.IncrementLogin(ctx, "bob", "203.0.113.9")
	if err := limiter.IncrementLogin(ctx, "carol", "203.0.113.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on shared IP, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "dave", "203.0.113.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("fresh identifier on a hot IP must be limited, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "dave", "198.51.100.1"); err != nil {
		t.Fatalf("different IP limited: %v", err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = limiter.IncrementLogin(ctx, "alice", "")
	_ = limiter.IncrementLogin(ctx, "alice", "")
	if err := limiter.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("window not expired: %v", err)
	}
}

func TestCheckRefreshCountsPresentations(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := limiter.CheckRefresh(ctx, "token-a"); err != nil {
		t.Fatalf("presentation 1 limited: %v", err)
	}
	if err := limiter.CheckRefresh(ctx, "token-a"); err != nil {
		t.Fatalf("presentation 2 limited: %v", err)
	}
	if err := limiter.CheckRefresh(ctx, "token-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := limiter.CheckRefresh(ctx, "token-b"); err != nil {
		t.Fatalf("unrelated token limited: %v", err)
	}
}

func TestCheckRefreshDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{EnableRefreshThrottle: false})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := limiter.CheckRefresh(ctx, "token-a"); err != nil {
			t.Fatalf("disabled throttle must never limit: %v", err)
		}
	}
}

func TestRedisDownSurfacesUnavailable(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxLoginAttempts:        3,
		LoginCooldownDuration:   time.Minute,
		MaxRefreshAttempts:      3,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()
	mr.Close()

	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := limiter.CheckRefresh(ctx, "token-a"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
