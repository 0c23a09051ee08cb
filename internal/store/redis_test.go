// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisTransient(t *testing.T, opts ...RedisOption) (*RedisTransient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRedisTransient(client, logger, opts...), mr
}

func TestRedisTransientSetGetClear(t *testing.T) {
	ctx := context.Background()
	s, _ := setupRedisTransient(t)

	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected empty slot to miss")
	}

	s.Set(ctx, KeyHandoffSlot, "payload", time.Minute)
	if v, ok := s.Get(ctx, KeyHandoffSlot); !ok || v != "payload" {
		t.Fatalf("expected stored value, got %q ok=%v", v, ok)
	}

	s.Clear(ctx, KeyHandoffSlot)
	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected cleared slot to miss")
	}
}

func TestRedisTransientTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := setupRedisTransient(t)

	s.Set(ctx, KeyHandoffSlot, "payload", 20*time.Minute)

	mr.FastForward(19 * time.Minute)
	if _, ok := s.Get(ctx, KeyHandoffSlot); !ok {
		t.Fatal("expected value before TTL")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected value to expire server-side")
	}
}

func TestRedisTransientDefaultTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := setupRedisTransient(t, WithDefaultTTL(time.Minute))

	s.Set(ctx, KeyHandoffSlot, "payload", 0)

	mr.FastForward(2 * time.Minute)
	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected default TTL to apply when ttl <= 0")
	}
}

func TestRedisTransientKeyPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := setupRedisTransient(t, WithPrefix("testapp"))

	s.Set(ctx, KeyHandoffSlot, "payload", time.Minute)

	if !mr.Exists("testapp:" + KeyHandoffSlot) {
		t.Fatal("expected prefixed key in redis")
	}
}

func TestRedisTransientBackendDownActsEmpty(t *testing.T) {
	ctx := context.Background()
	s, mr := setupRedisTransient(t)

	s.Set(ctx, KeyHandoffSlot, "payload", time.Minute)
	mr.Close()

	// Backend failures are swallowed: reads miss, writes drop.
	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected dead backend to read as empty")
	}
	s.Set(ctx, KeyHandoffSlot, "other", time.Minute)
	s.Clear(ctx, KeyHandoffSlot)
}
