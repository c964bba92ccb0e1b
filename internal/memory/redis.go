package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client the snapshot needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisSnapshot stores the snapshot under a single redis key with no expiry.
type RedisSnapshot struct {
	client redisClient
	key    string
}

// NewRedisSnapshot connects using either a redis:// URL or a bare host:port.
func NewRedisSnapshot(ctx context.Context, addr, key string) (*RedisSnapshot, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisSnapshot(client, key), nil
}

func newRedisSnapshot(client redisClient, key string) *RedisSnapshot {
	if strings.TrimSpace(key) == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshot{client: client, key: key}
}

func (r *RedisSnapshot) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return data, nil
}

func (r *RedisSnapshot) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisSnapshot) Close() error {
	return r.client.Close()
}

var _ Snapshotter = (*RedisSnapshot)(nil)
