// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransient backs the handoff slot with Redis. TTL is enforced
// server-side, so an abandoned pipeline cleans itself up even if no
// receiver ever looks at the slot.
type RedisTransient struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *slog.Logger
}

type RedisOption func(*RedisTransient)

// WithPrefix sets the Redis key prefix. Default "imageflow".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisTransient) {
		s.prefix = prefix
	}
}

// WithDefaultTTL sets the lifetime applied when a Set passes ttl <= 0.
func WithDefaultTTL(ttl time.Duration) RedisOption {
	return func(s *RedisTransient) {
		s.defaultTTL = ttl
	}
}

func NewRedisTransient(client *redis.Client, logger *slog.Logger, opts ...RedisOption) *RedisTransient {
	if logger == nil {
		logger = slog.Default()
	}

	s := &RedisTransient{
		client:     client,
		prefix:     "imageflow",
		defaultTTL: 20 * time.Minute,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisTransient) Get(ctx context.Context, key string) (string, bool) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("transient get failed, treating as absent", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

func (s *RedisTransient) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.logger.Error("transient set failed, dropping write", "key", key, "error", err)
	}
}

func (s *RedisTransient) Clear(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Warn("transient clear failed", "key", key, "error", err)
	}
}

func (s *RedisTransient) key(key string) string {
	return s.prefix + ":" + key
}
