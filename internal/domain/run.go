// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunContext is the snapshot of "which workflow, which step" that rides
// along with a handoff. Steps and WorkflowName are copied from the
// definition when the run starts, so later edits or deletion of the
// definition do not disturb an in-flight run.
//
// Invariant: 0 <= CurrentStepIndex < len(Steps).
type RunContext struct {
	RunID            uuid.UUID `json:"run_id"`
	WorkflowID       uuid.UUID `json:"workflow_id"`
	WorkflowName     string    `json:"workflow_name"`
	SourceToolID     ToolID    `json:"source_tool_id"`
	Steps            []ToolID  `json:"steps"`
	CurrentStepIndex int       `json:"current_step_index"`
	StartedAt        time.Time `json:"started_at"`
}
