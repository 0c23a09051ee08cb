// SPDX-License-Identifier: Apache-2.0

package domain

import "time"

// MaxHandoffAge is how long an unread handoff stays valid in the
// transient slot before the receiver treats it as expired.
const MaxHandoffAge = 20 * time.Minute

// HandoffPackage is the single-use envelope written by a producing view
// and read at most once by the consuming view. EncodedArtifact is the
// codec's textual form so the whole package survives a string-keyed
// store.
type HandoffPackage struct {
	SourceToolID    ToolID      `json:"source_tool_id"`
	TargetToolID    ToolID      `json:"target_tool_id"`
	FileName        string      `json:"file_name"`
	EncodedArtifact string      `json:"encoded_artifact"`
	CreatedAt       time.Time   `json:"created_at"`
	RunContext      *RunContext `json:"run_context,omitempty"`
}
