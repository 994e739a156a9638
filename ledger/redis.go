package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/internal"
)

// ErrLedgerUnavailable reports that the ledger backend is unreachable.
var ErrLedgerUnavailable = errors.New("revocation ledger unavailable")

// RedisLedger stores revocation entries as Redis keys with native expiry,
// so entries vanish at the token's own expiry without a sweep. Shared by
// every engine instance pointed at the same Redis.
type RedisLedger struct {
	redis redis.UniversalClient
}

// NewRedisLedger returns a ledger backed by the given Redis client.
func NewRedisLedger(redisClient redis.UniversalClient) *RedisLedger {
	return &RedisLedger{redis: redisClient}
}

func (l *RedisLedger) key(token string) string {
	return "rvk:" + internal.HashToken(token)
}

// Record marks token revoked until expiresAt.
func (l *RedisLedger) Record(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := l.redis.Set(ctx, l.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// Contains reports whether token is currently revoked.
func (l *RedisLedger) Contains(ctx context.Context, token string) (bool, error) {
	err := l.redis.Get(ctx, l.key(token)).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
}
