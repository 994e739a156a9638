package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes the fixed-window throttles. A zero limit disables the
// corresponding throttle entirely.
type Config struct {
	LoginLimit    int
	LoginWindow   time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
}

// Throttle applies coarse fixed-window request limits on top of the
// account lockout guard: logins are throttled per source IP, refreshes
// per token subject. Counters live in Redis so every engine instance
// sees the same windows.
type Throttle struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Throttle backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Throttle {
	return &Throttle{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowLogin counts a login attempt from ip and reports ErrThrottled once
// the window budget is spent. An empty ip is not throttled.
func (t *Throttle) AllowLogin(ctx context.Context, ip string) error {
	if t.config.LoginLimit <= 0 || ip == "" {
		return nil
	}
	return t.consume(ctx, "rt:login:"+ip, t.config.LoginLimit, t.config.LoginWindow)
}

// AllowRefresh counts a refresh attempt for subject and reports
// ErrThrottled once the window budget is spent.
func (t *Throttle) AllowRefresh(ctx context.Context, subject string) error {
	if t.config.RefreshLimit <= 0 || subject == "" {
		return nil
	}
	return t.consume(ctx, "rt:refresh:"+subject, t.config.RefreshLimit, t.config.RefreshWindow)
}

func (t *Throttle) consume(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set once, on the first hit.
	if count == 1 {
		if err := t.redis.Expire(ctx, key, window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if count > int64(limit) {
		return ErrThrottled
	}
	return nil
}
