// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixeltools/imageflow/internal/config"
	"github.com/pixeltools/imageflow/internal/janitor"
	"github.com/pixeltools/imageflow/internal/logging"
	"github.com/pixeltools/imageflow/internal/persistence/postgres"
	"github.com/pixeltools/imageflow/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	var durable store.Durable
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("database unavailable, durable sweeps disabled", "error", err)
		durable = store.NewMemoryDurable()
	} else {
		defer pool.Close()
		durable = store.NewPostgresDurable(pool, logger)
	}

	var transient store.Transient
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	pingErr := rdb.Ping(pingCtx).Err()
	cancelPing()
	if pingErr != nil {
		logger.Warn("redis unavailable, slot sweeps disabled", "error", pingErr)
		transient = store.NewMemoryTransient()
	} else {
		defer func() { _ = rdb.Close() }()
		transient = store.NewRedisTransient(rdb, logger, store.WithDefaultTTL(cfg.HandoffTTL))
	}

	j := janitor.New(janitor.Deps{
		Durable:   durable,
		Transient: transient,
		Logger:    logger,
		MaxAge:    cfg.HandoffTTL,
	})

	logger.Info("janitor started", "interval", cfg.JanitorInterval)

	ticker := time.NewTicker(cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("janitor stopping")
			return
		case <-ticker.C:
			if err := j.ProcessOnce(ctx); err != nil {
				logger.Error("janitor sweep failed", "error", err)
			}
		}
	}
}
