// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixeltools/imageflow/internal/config"
	"github.com/pixeltools/imageflow/internal/handoff"
	"github.com/pixeltools/imageflow/internal/history"
	"github.com/pixeltools/imageflow/internal/logging"
	"github.com/pixeltools/imageflow/internal/orchestrator"
	"github.com/pixeltools/imageflow/internal/persistence/postgres"
	"github.com/pixeltools/imageflow/internal/registry"
	"github.com/pixeltools/imageflow/internal/store"
	httptransport "github.com/pixeltools/imageflow/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
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
	var healthChecker httptransport.HealthChecker

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("database unavailable, saved workflows will not survive restarts", "error", err)
		durable = store.NewMemoryDurable()
	} else {
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
				log.Fatalf("schema bootstrap failed: %v", err)
			}
		} else if err := postgres.SchemaReady(ctx, pool); err != nil {
			log.Fatalf("schema not ready: %v", err)
		}

		durable = store.NewPostgresDurable(pool, logger)
		healthChecker = postgres.NewSchemaHealthChecker(pool)
	}

	var transient store.Transient

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	pingErr := rdb.Ping(pingCtx).Err()
	cancelPing()
	if pingErr != nil {
		logger.Warn("redis unavailable, handoffs will not survive restarts", "error", pingErr)
		transient = store.NewMemoryTransient()
	} else {
		defer func() { _ = rdb.Close() }()
		transient = store.NewRedisTransient(rdb, logger, store.WithDefaultTTL(cfg.HandoffTTL))
	}

	reg := registry.New(registry.Deps{Durable: durable, Logger: logger})
	hist := history.New(durable, logger)
	channel := handoff.New(handoff.Deps{
		Transient: transient,
		Logger:    logger,
		MaxAge:    cfg.HandoffTTL,
	})
	pipeline := orchestrator.New(orchestrator.Deps{
		Registry: reg,
		History:  hist,
		Channel:  channel,
		Logger:   logger,
	})

	handler := httptransport.NewRouter(httptransport.Deps{
		Registry:        reg,
		History:         hist,
		Pipeline:        pipeline,
		HealthChecker:   healthChecker,
		Logger:          logger,
		AdminToken:      cfg.AdminToken,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Version:         Version,
		Commit:          Commit,
		BuildDate:       BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
