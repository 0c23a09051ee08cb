// SPDX-License-Identifier: Apache-2.0

// Package runctx tracks where a pipeline execution currently is. All
// functions are pure: the run context is part of the handoff payload,
// so advancement returns a fresh copy instead of mutating state that
// may already be serialized somewhere else.
package runctx

import (
	"time"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
)

// Advance is the result of a successful step advancement.
type Advance struct {
	NextTool domain.ToolID
	Context  domain.RunContext
}

// Start snapshots a definition into a new run context positioned at
// fromStepIndex. Index 1 starts a fresh run (index 0 is the producing
// tool, which has already run); higher indexes continue an in-flight
// run.
func Start(def domain.WorkflowDefinition, fromStepIndex int) domain.RunContext {
	steps := make([]domain.ToolID, len(def.Steps))
	copy(steps, def.Steps)

	return domain.RunContext{
		RunID:            uuid.New(),
		WorkflowID:       def.ID,
		WorkflowName:     def.Name,
		SourceToolID:     def.SourceToolID,
		Steps:            steps,
		CurrentStepIndex: fromStepIndex,
		StartedAt:        time.Now(),
	}
}

// NextStep returns the tool after the current step and a copy of rc
// advanced by one. It returns nil when rc is absent, when current is
// not the tool the context expects (stale or misdelivered context), or
// when the sequence is exhausted. Callers that need to tell completion
// apart from a mismatch check FinishedAt.
func NextStep(rc *domain.RunContext, current domain.ToolID) *Advance {
	if rc == nil {
		return nil
	}
	if rc.CurrentStepIndex < 0 || rc.CurrentStepIndex >= len(rc.Steps) {
		return nil
	}
	if rc.Steps[rc.CurrentStepIndex] != current {
		return nil
	}
	if rc.CurrentStepIndex+1 >= len(rc.Steps) {
		return nil
	}

	next := *rc
	next.Steps = make([]domain.ToolID, len(rc.Steps))
	copy(next.Steps, rc.Steps)
	next.CurrentStepIndex = rc.CurrentStepIndex + 1

	return &Advance{
		NextTool: next.Steps[next.CurrentStepIndex],
		Context:  next,
	}
}

// FinishedAt reports whether rc is terminal at the given tool: the
// current step matches and there is nothing after it. A mismatched tool
// is not completion, it is a caller error.
func FinishedAt(rc *domain.RunContext, current domain.ToolID) bool {
	if rc == nil {
		return false
	}
	if rc.CurrentStepIndex < 0 || rc.CurrentStepIndex >= len(rc.Steps) {
		return false
	}
	return rc.Steps[rc.CurrentStepIndex] == current &&
		rc.CurrentStepIndex == len(rc.Steps)-1
}
