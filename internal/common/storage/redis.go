// internal/common/storage/redis.go
package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStorage persists snapshots in Redis under a configurable prefix.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage wraps an existing Redis client as a Storage.
func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	// Snapshots never expire; they are overwritten on every mutation.
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
