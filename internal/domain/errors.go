// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrEmptyWorkflowName = errors.New("empty name")
var ErrNoWorkflowSteps = errors.New("no steps")
var ErrUnknownTool = errors.New("unknown tool")
var ErrIncompatibleFormat = errors.New("target tool cannot accept this artifact format")
var ErrArtifactEncode = errors.New("artifact could not be encoded")
var ErrWorkflowNotFound = errors.New("workflow not found")
var ErrWrongSourceTool = errors.New("workflow does not start at this tool")
var ErrRunComplete = errors.New("pipeline already at its last step")
var ErrStaleRunContext = errors.New("run context does not match this tool")
