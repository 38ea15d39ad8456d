package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisKVStore keeps drafts and sessions in Redis with a sliding TTL.
type RedisKVStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisKVStore constructs the store. Keys are stored as prefix:key.
func NewRedisKVStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisKVStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisKVStore{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *RedisKVStore) key(key string) string {
	return r.prefix + ":" + key
}

func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.client == nil {
		return nil, ErrKeyNotFound
	}
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key(key), r.ttl).Err(); err != nil {
			r.logger.Warn("failed to extend draft ttl", zap.String("key", key), zap.Error(err))
		}
	}
	return raw, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis set %s: no client", key)
	}
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKVStore) Remove(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Purge removes every key under pattern, relative to the store prefix.
func (r *RedisKVStore) Purge(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}
	iter := r.client.Scan(ctx, 0, r.key(pattern), 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisKVStore) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
