package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for the failed-login lockout counter.
// Threshold is injected by the engine; Window of zero keeps the streak until
// an explicit reset.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutGuard tracks consecutive failed login attempts per account and
// reports when the configured threshold is reached. Blocking the account is
// the caller's transition; the guard only counts.
type LockoutGuard struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutGuard creates a new lockout guard.
func NewLockoutGuard(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutGuard {
	return &LockoutGuard{redis: redisClient, config: cfg}
}

func (g *LockoutGuard) key(accountKey string) string {
	return "flc:" + accountKey
}

// RecordFailure increments the failure counter for an account key.
// Returns true when the threshold has been reached; the caller should block
// the account and then call Reset so a later unblock requires a fresh run of
// failures.
func (g *LockoutGuard) RecordFailure(ctx context.Context, accountKey string) (bool, error) {
	if !g.config.Enabled || accountKey == "" {
		return false, nil
	}

	count, err := g.redis.Incr(ctx, g.key(accountKey)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if count == 1 && g.config.Window > 0 {
		// TTL on first failure makes the streak a rolling window.
		if err := g.redis.Expire(ctx, g.key(accountKey), g.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}

	return count >= int64(g.config.Threshold), nil
}

// Reset clears the failure counter, after a successful full login or once
// the account has been blocked.
func (g *LockoutGuard) Reset(ctx context.Context, accountKey string) error {
	if !g.config.Enabled || accountKey == "" {
		return nil
	}

	if err := g.redis.Del(ctx, g.key(accountKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current consecutive-failure count for an account.
func (g *LockoutGuard) FailureCount(ctx context.Context, accountKey string) (int, error) {
	if !g.config.Enabled || accountKey == "" {
		return 0, nil
	}

	count, err := g.redis.Get(ctx, g.key(accountKey)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
