// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDurable keeps durable blobs in the kv_entries table. Backend
// errors are logged and swallowed per the package contract.
type PostgresDurable struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresDurable(pool *pgxpool.Pool, logger *slog.Logger) *PostgresDurable {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDurable{pool: pool, logger: logger}
}

func (s *PostgresDurable) Get(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key=$1`,
		key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("durable get failed, treating as absent", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

func (s *PostgresDurable) Set(ctx context.Context, key, value string) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		s.logger.Error("durable set failed, dropping write", "key", key, "error", err)
	}
}

func (s *PostgresDurable) Remove(ctx context.Context, key string) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key=$1`, key); err != nil {
		s.logger.Warn("durable remove failed", "key", key, "error", err)
	}
}
