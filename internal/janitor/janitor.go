// SPDX-License-Identifier: Apache-2.0

// Package janitor is the background sweep over the two storage tiers:
// it drops a handoff package that outlived its maximum age and re-trims
// the durable blobs to their caps in case a crashed writer left an
// oversized library or history behind.
package janitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/metrics"
	"github.com/pixeltools/imageflow/internal/registry"
	"github.com/pixeltools/imageflow/internal/store"
)

type Deps struct {
	Durable   store.Durable
	Transient store.Transient
	Logger    *slog.Logger
	MaxAge    time.Duration
	Now       func() time.Time
}

type Janitor struct {
	durable   store.Durable
	transient store.Transient
	logger    *slog.Logger
	maxAge    time.Duration
	now       func() time.Time
}

func New(deps Deps) *Janitor {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	maxAge := deps.MaxAge
	if maxAge <= 0 {
		maxAge = domain.MaxHandoffAge
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Janitor{
		durable:   deps.Durable,
		transient: deps.Transient,
		logger:    l,
		maxAge:    maxAge,
		now:       now,
	}
}

// ProcessOnce runs one sweep. Each sub-sweep is independent; a corrupt
// blob in one does not block the others.
func (j *Janitor) ProcessOnce(ctx context.Context) error {
	j.sweepHandoffSlot(ctx)
	j.trimWorkflowLibrary(ctx)
	j.trimRunHistory(ctx)

	metrics.IncJanitorSweep()
	return nil
}

// slotHeader is the only part of the stored handoff package the sweep
// needs to look at.
type slotHeader struct {
	CreatedAt time.Time `json:"created_at"`
}

func (j *Janitor) sweepHandoffSlot(ctx context.Context) {
	raw, ok := j.transient.Get(ctx, store.KeyHandoffSlot)
	if !ok {
		return
	}

	var header slotHeader
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		j.transient.Clear(ctx, store.KeyHandoffSlot)
		metrics.IncJanitorSlotExpired()
		j.logger.Warn("handoff slot corrupted, cleared", "error", err)
		return
	}

	if header.CreatedAt.IsZero() || j.now().Sub(header.CreatedAt) > j.maxAge {
		j.transient.Clear(ctx, store.KeyHandoffSlot)
		metrics.IncJanitorSlotExpired()
		j.logger.Info("expired handoff slot cleared", "created_at", header.CreatedAt)
	}
}

func (j *Janitor) trimWorkflowLibrary(ctx context.Context) {
	raw, ok := j.durable.Get(ctx, store.KeyWorkflowLibrary)
	if !ok || raw == "" {
		return
	}

	var all []domain.WorkflowDefinition
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		j.logger.Warn("workflow library corrupted, leaving for registry recovery", "error", err)
		return
	}

	trimmed := registry.Trim(all)
	if len(trimmed) == len(all) {
		return
	}

	out, err := json.Marshal(trimmed)
	if err != nil {
		j.logger.Error("marshal trimmed workflow library failed", "error", err)
		return
	}
	j.durable.Set(ctx, store.KeyWorkflowLibrary, string(out))
	j.logger.Info("workflow library re-trimmed",
		"before", len(all),
		"after", len(trimmed),
	)
}

func (j *Janitor) trimRunHistory(ctx context.Context) {
	raw, ok := j.durable.Get(ctx, store.KeyRunHistory)
	if !ok || raw == "" {
		return
	}

	var all []domain.RunHistoryEntry
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		j.logger.Warn("run history corrupted, leaving for history recovery", "error", err)
		return
	}

	if len(all) <= domain.MaxHistoryEntries {
		return
	}

	trimmed := all[:domain.MaxHistoryEntries]
	out, err := json.Marshal(trimmed)
	if err != nil {
		j.logger.Error("marshal trimmed run history failed", "error", err)
		return
	}
	j.durable.Set(ctx, store.KeyRunHistory, string(out))
	j.logger.Info("run history re-trimmed",
		"before", len(all),
		"after", len(trimmed),
	)
}
