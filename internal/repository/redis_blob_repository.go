package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errRedisNotConfigured = errors.New("redis client not configured")

// RedisBlobRepository keeps documents as plain Redis strings under a shared prefix.
type RedisBlobRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBlobRepository constructs a Redis-backed blob store.
func NewRedisBlobRepository(client *redis.Client, prefix string, logger *zap.Logger) *RedisBlobRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBlobRepository{client: client, prefix: prefix, logger: logger}
}

// Key returns the Redis key a blob is stored under.
func (r *RedisBlobRepository) Key(key string) string {
	return r.prefix + key
}

// Get retrieves the raw payload.
func (r *RedisBlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if r.client == nil {
		return nil, errRedisNotConfigured
	}

	raw, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("redis blob missing", zap.String("key", r.Key(key)))
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", r.Key(key), err)
	}
	return raw, nil
}

// Put stores the payload without expiry.
func (r *RedisBlobRepository) Put(ctx context.Context, key string, payload []byte) error {
	if r.client == nil {
		return errRedisNotConfigured
	}

	if err := r.client.Set(ctx, r.Key(key), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.Key(key), err)
	}
	return nil
}

// Delete removes the payload if present.
func (r *RedisBlobRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return errRedisNotConfigured
	}

	if err := r.client.Del(ctx, r.Key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", r.Key(key), err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *RedisBlobRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return errRedisNotConfigured
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *RedisBlobRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
