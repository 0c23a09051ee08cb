// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxWorkflowNameLen bounds a normalized workflow name.
	MaxWorkflowNameLen = 60

	// MaxWorkflowSteps caps the whole step sequence, source tool
	// included.
	MaxWorkflowSteps = 5

	// MaxSavedWorkflows caps the whole registry; oldest by updated_at
	// are dropped first.
	MaxSavedWorkflows = 60
)

// WorkflowDefinition is a named, reusable pipeline rooted at one source
// tool. Steps[0] is always SourceToolID. Two definitions with the same
// source tool and a case-insensitively equal name are the same logical
// definition.
type WorkflowDefinition struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	SourceToolID ToolID     `json:"source_tool_id"`
	Steps        []ToolID   `json:"steps"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	RunCount     int        `json:"run_count"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
}
