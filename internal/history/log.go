// SPDX-License-Identifier: Apache-2.0

// Package history keeps the append-only, size-capped record of pipeline
// executions. Entries are independent of the workflow definitions that
// produced them: a definition can be edited or deleted after the run
// and the history entry stands.
package history

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/metrics"
	"github.com/pixeltools/imageflow/internal/store"
)

type Log struct {
	durable store.Durable
	logger  *slog.Logger
}

func New(durable store.Durable, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{durable: durable, logger: logger}
}

// Append prepends entry and truncates the log to the storage cap,
// oldest dropped first.
func (l *Log) Append(ctx context.Context, entry domain.RunHistoryEntry) {
	all := l.load(ctx)

	all = append([]domain.RunHistoryEntry{entry}, all...)
	if evicted := len(all) - domain.MaxHistoryEntries; evicted > 0 {
		all = all[:domain.MaxHistoryEntries]
		metrics.IncHistoryEvicted(evicted)
	}

	l.persist(ctx, all)
	l.logger.Info("run recorded",
		"run_id", entry.RunID,
		"workflow", entry.WorkflowName,
		"source_tool", entry.SourceToolID,
	)
}

// ListFor returns the most recent entries whose source tool matches,
// capped for display. The full log stays in storage.
func (l *Log) ListFor(ctx context.Context, sourceToolID domain.ToolID) []domain.RunHistoryEntry {
	all := l.load(ctx)

	out := make([]domain.RunHistoryEntry, 0, domain.MaxHistoryDisplay)
	for _, entry := range all {
		if entry.SourceToolID != sourceToolID {
			continue
		}
		out = append(out, entry)
		if len(out) == domain.MaxHistoryDisplay {
			break
		}
	}
	return out
}

// All returns the whole stored log, most recent first.
func (l *Log) All(ctx context.Context) []domain.RunHistoryEntry {
	return l.load(ctx)
}

// Clear empties the entire cross-tool log.
func (l *Log) Clear(ctx context.Context) {
	l.durable.Remove(ctx, store.KeyRunHistory)
	l.logger.Info("run history cleared")
}

func (l *Log) load(ctx context.Context) []domain.RunHistoryEntry {
	raw, ok := l.durable.Get(ctx, store.KeyRunHistory)
	if !ok || raw == "" {
		return nil
	}

	var all []domain.RunHistoryEntry
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		l.logger.Error("run history corrupted, starting empty", "error", err)
		return nil
	}
	return all
}

func (l *Log) persist(ctx context.Context, all []domain.RunHistoryEntry) {
	raw, err := json.Marshal(all)
	if err != nil {
		l.logger.Error("marshal run history failed, dropping write", "error", err)
		return
	}
	l.durable.Set(ctx, store.KeyRunHistory, string(raw))
}
