package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "gridmap:"

// RedisStore keeps settings as plain string keys under a common prefix.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore panics on a nil client; an empty prefix selects "gridmap:".
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// DialRedis connects to addr and checks the connection before returning.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisStore) key(k string) string {
	return r.keyPrefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: failed to get %s: %w", r.key(key), err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to set %s: %w", r.key(key), err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete %v: %w", full, err)
	}
	return nil
}
