// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/orchestrator"
)

type WorkflowRegistry interface {
	List(ctx context.Context, sourceToolID domain.ToolID) []domain.WorkflowDefinition
	Upsert(ctx context.Context, name string, sourceToolID domain.ToolID, targets []domain.ToolID) (domain.WorkflowDefinition, error)
	Remove(ctx context.Context, id uuid.UUID)
}

type RunHistory interface {
	ListFor(ctx context.Context, sourceToolID domain.ToolID) []domain.RunHistoryEntry
	Clear(ctx context.Context)
}

type Pipeline interface {
	StartRun(ctx context.Context, workflowID uuid.UUID, from domain.ToolID, a domain.Artifact) (*orchestrator.Launch, error)
	Continue(ctx context.Context, current domain.ToolID, a domain.Artifact, rc *domain.RunContext) (*orchestrator.Launch, error)
	Receive(ctx context.Context, tool domain.ToolID) *orchestrator.Arrival
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
