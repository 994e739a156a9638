// Package limiters implements the account lockout guard: Redis-backed
// failure counters that temporarily refuse login attempts after repeated
// failures, independent of credential correctness.
package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig tunes the lockout guard. Threshold failures within Window
// lock the identifier for Duration.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

var (
	// ErrLocked reports that the identifier is currently locked out.
	ErrLocked = errors.New("identifier locked out")
	// ErrLockoutUnavailable reports that the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutGuard tracks failed login attempts per normalized identifier and
// refuses further attempts once the threshold is crossed. Failures are
// recorded even for identifiers with no account, so lockout behavior does
// not reveal account existence. Counter increments use Redis INCR, so
// concurrent failures against the same identifier never under-count.
type LockoutGuard struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutGuard returns a guard backed by the given Redis client.
func NewLockoutGuard(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutGuard {
	return &LockoutGuard{redis: redisClient, config: cfg}
}

func (g *LockoutGuard) failKey(identifier string) string {
	return "lf:" + identifier
}

func (g *LockoutGuard) lockKey(identifier string) string {
	return "lk:" + identifier
}

// CheckAllowed reports whether a login attempt for identifier may proceed.
// It must run before any password comparison. While the identifier is
// locked it returns ErrLocked regardless of credential correctness.
func (g *LockoutGuard) CheckAllowed(ctx context.Context, identifier string) error {
	if !g.config.Enabled || identifier == "" {
		return nil
	}

	err := g.redis.Get(ctx, g.lockKey(identifier)).Err()
	if err == nil {
		return ErrLocked
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// RecordFailure counts a failed attempt. When the counter reaches the
// threshold within the window, the identifier is locked for the configured
// duration and ErrLocked is returned. Otherwise it returns the number of
// attempts remaining before lockout.
func (g *LockoutGuard) RecordFailure(ctx context.Context, identifier string) (int, error) {
	if !g.config.Enabled || identifier == "" {
		return 0, nil
	}

	count, err := g.redis.Incr(ctx, g.failKey(identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	// First failure opens the window. The counter expires with it.
	if count == 1 && g.config.Window > 0 {
		if err := g.redis.Expire(ctx, g.failKey(identifier), g.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}

	if count >= int64(g.config.Threshold) {
		if err := g.redis.Set(ctx, g.lockKey(identifier), 1, g.config.Duration).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		if err := g.redis.Del(ctx, g.failKey(identifier)).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		return 0, ErrLocked
	}

	remaining := g.config.Threshold - int(count)
	return remaining, nil
}

// RecordSuccess resets the failure counter after a successful login.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, identifier string) error {
	if !g.config.Enabled || identifier == "" {
		return nil
	}

	if err := g.redis.Del(ctx, g.failKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current counter for an identifier. Missing keys
// return zero.
func (g *LockoutGuard) FailureCount(ctx context.Context, identifier string) (int, error) {
	if !g.config.Enabled || identifier == "" {
		return 0, nil
	}

	count, err := g.redis.Get(ctx, g.failKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
