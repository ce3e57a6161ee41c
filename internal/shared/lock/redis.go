package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"wellness-backend/internal/shared/telemetry"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker implements Locker with SET NX PX on a shared redis.
type RedisLocker struct {
	rdb goredis.UniversalClient
}

// NewRedisLocker connects to addr and verifies it with a ping.
func NewRedisLocker(ctx context.Context, addr, password string) (*RedisLocker, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLocker{rdb: rdb}, nil
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(rdb goredis.UniversalClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			telemetry.Warn("lock.release_failed", map[string]any{"error": err})
		}
	}, nil
}

// Ping checks the redis connection.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}

var _ Locker = (*RedisLocker)(nil)
