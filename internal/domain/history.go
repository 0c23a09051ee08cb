// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxHistoryEntries is the storage cap for the run history log.
	// Oldest entries are dropped first.
	MaxHistoryEntries = 40

	// MaxHistoryDisplay caps what a single tool view lists; the rest
	// stays in storage.
	MaxHistoryDisplay = 12
)

// RunHistoryEntry records one pipeline execution, independent of the
// definition that produced it (the definition may be edited or deleted
// afterwards).
type RunHistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	RunID        uuid.UUID `json:"run_id"`
	WorkflowID   uuid.UUID `json:"workflow_id"`
	WorkflowName string    `json:"workflow_name"`
	SourceToolID ToolID    `json:"source_tool_id"`
	Steps        []ToolID  `json:"steps"`
	CreatedAt    time.Time `json:"created_at"`
}
