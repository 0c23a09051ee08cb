// SPDX-License-Identifier: Apache-2.0

// Package registry is CRUD over the saved workflow library. The whole
// library is one JSON blob in the durable store, read-modify-write on
// every mutation. Concurrent writers (two tabs saving at once) are
// last-write-wins; acceptable for a single-user utility.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/metrics"
	"github.com/pixeltools/imageflow/internal/store"
)

type Registry struct {
	durable store.Durable
	logger  *slog.Logger
	now     func() time.Time
}

type Deps struct {
	Durable store.Durable
	Logger  *slog.Logger
	Now     func() time.Time
}

func New(deps Deps) *Registry {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		durable: deps.Durable,
		logger:  l,
		now:     now,
	}
}

// List returns every saved definition rooted at sourceToolID, in stored
// order. Callers sort for display if they care.
func (r *Registry) List(ctx context.Context, sourceToolID domain.ToolID) []domain.WorkflowDefinition {
	all := r.load(ctx)

	out := make([]domain.WorkflowDefinition, 0, len(all))
	for _, def := range all {
		if def.SourceToolID == sourceToolID {
			out = append(out, def)
		}
	}
	return out
}

// Get looks a definition up by id.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) *domain.WorkflowDefinition {
	for _, def := range r.load(ctx) {
		if def.ID == id {
			d := def
			return &d
		}
	}
	return nil
}

// Upsert normalizes and saves a definition. A definition with the same
// source tool and a case-insensitively equal name is replaced in place:
// its steps change and updated_at advances, but id, created_at and the
// run counters survive.
func (r *Registry) Upsert(ctx context.Context, name string, sourceToolID domain.ToolID, targets []domain.ToolID) (domain.WorkflowDefinition, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return domain.WorkflowDefinition{}, domain.ErrEmptyWorkflowName
	}
	if !domain.ValidTool(sourceToolID) {
		return domain.WorkflowDefinition{}, domain.ErrUnknownTool
	}

	downstream := normalizeTargets(sourceToolID, targets)
	if len(downstream) == 0 {
		return domain.WorkflowDefinition{}, domain.ErrNoWorkflowSteps
	}

	steps := append([]domain.ToolID{sourceToolID}, downstream...)
	now := r.now()

	all := r.load(ctx)
	for i, def := range all {
		if def.SourceToolID == sourceToolID && strings.EqualFold(def.Name, normalized) {
			all[i].Name = normalized
			all[i].Steps = steps
			all[i].UpdatedAt = now
			r.persist(ctx, all)
			metrics.IncWorkflowSaved()

			r.logger.Info("workflow updated",
				"workflow_id", all[i].ID,
				"name", normalized,
				"source_tool", sourceToolID,
				"steps", len(steps),
			)
			return all[i], nil
		}
	}

	def := domain.WorkflowDefinition{
		ID:           uuid.New(),
		Name:         normalized,
		SourceToolID: sourceToolID,
		Steps:        steps,
		CreatedAt:    now,
		UpdatedAt:    now,
		RunCount:     0,
		LastRunAt:    nil,
	}

	all = append(all, def)
	r.persist(ctx, all)
	metrics.IncWorkflowSaved()

	r.logger.Info("workflow created",
		"workflow_id", def.ID,
		"name", normalized,
		"source_tool", sourceToolID,
		"steps", len(steps),
	)
	return def, nil
}

// Remove deletes by id. Absent ids are a no-op.
func (r *Registry) Remove(ctx context.Context, id uuid.UUID) {
	all := r.load(ctx)

	kept := all[:0]
	for _, def := range all {
		if def.ID != id {
			kept = append(kept, def)
		}
	}
	if len(kept) == len(all) {
		return
	}

	r.persist(ctx, kept)
	r.logger.Info("workflow removed", "workflow_id", id)
}

// RecordRun bumps the run counters for a definition. Returns nil when
// the definition is gone; the run still proceeds on its snapshot.
func (r *Registry) RecordRun(ctx context.Context, id uuid.UUID) *domain.WorkflowDefinition {
	all := r.load(ctx)

	for i := range all {
		if all[i].ID != id {
			continue
		}
		now := r.now()
		all[i].RunCount++
		all[i].LastRunAt = &now
		all[i].UpdatedAt = now
		r.persist(ctx, all)

		def := all[i]
		return &def
	}

	r.logger.Warn("run recorded against deleted workflow", "workflow_id", id)
	return nil
}

func (r *Registry) load(ctx context.Context) []domain.WorkflowDefinition {
	raw, ok := r.durable.Get(ctx, store.KeyWorkflowLibrary)
	if !ok || raw == "" {
		return nil
	}

	var all []domain.WorkflowDefinition
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		r.logger.Error("workflow library corrupted, starting empty", "error", err)
		return nil
	}
	return all
}

func (r *Registry) persist(ctx context.Context, all []domain.WorkflowDefinition) {
	all = Trim(all)

	raw, err := json.Marshal(all)
	if err != nil {
		r.logger.Error("marshal workflow library failed, dropping write", "error", err)
		return
	}
	r.durable.Set(ctx, store.KeyWorkflowLibrary, string(raw))
}

// Trim enforces the registry cap, dropping the stalest definitions by
// updated_at. Exported for the janitor's re-trim pass.
func Trim(all []domain.WorkflowDefinition) []domain.WorkflowDefinition {
	if len(all) <= domain.MaxSavedWorkflows {
		return all
	}

	sorted := make([]domain.WorkflowDefinition, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	return sorted[:domain.MaxSavedWorkflows]
}

func normalizeName(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")
	if len(collapsed) > domain.MaxWorkflowNameLen {
		// Back off to a rune boundary so the cut never leaves a
		// partial UTF-8 sequence at the end of the name.
		cut := domain.MaxWorkflowNameLen
		for cut > 0 && !utf8.RuneStart(collapsed[cut]) {
			cut--
		}
		collapsed = collapsed[:cut]
	}
	return collapsed
}

func normalizeTargets(source domain.ToolID, targets []domain.ToolID) []domain.ToolID {
	seen := make(map[domain.ToolID]bool, len(targets))
	out := make([]domain.ToolID, 0, domain.MaxWorkflowSteps-1)

	for _, target := range targets {
		if target == source || seen[target] || !domain.ValidTool(target) {
			continue
		}
		seen[target] = true
		out = append(out, target)
		if len(out) == domain.MaxWorkflowSteps-1 {
			break
		}
	}
	return out
}
