// SPDX-License-Identifier: Apache-2.0

// Package orchestrator ties the registry, run engine, handoff channel
// and history log into the user-facing flows: start a saved workflow
// from a tool's output, continue an in-flight run, and consume a
// pending handoff on arrival.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/handoff"
	"github.com/pixeltools/imageflow/internal/history"
	"github.com/pixeltools/imageflow/internal/metrics"
	"github.com/pixeltools/imageflow/internal/registry"
	"github.com/pixeltools/imageflow/internal/runctx"
)

type Service struct {
	registry *registry.Registry
	history  *history.Log
	channel  *handoff.Channel
	logger   *slog.Logger
	now      func() time.Time
}

type Deps struct {
	Registry *registry.Registry
	History  *history.Log
	Channel  *handoff.Channel
	Logger   *slog.Logger
	Now      func() time.Time
}

func New(deps Deps) *Service {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		registry: deps.Registry,
		history:  deps.History,
		channel:  deps.Channel,
		logger:   l,
		now:      now,
	}
}

// Launch reports where a send is headed: the target tool to navigate to
// and the run context that travels with the artifact.
type Launch struct {
	Target domain.ToolID     `json:"target"`
	Run    domain.RunContext `json:"run"`
}

// Arrival is a consumed handoff plus the completion verdict for the
// receiving view.
type Arrival struct {
	SourceTool domain.ToolID
	Artifact   domain.Artifact
	RunContext *domain.RunContext
	Completed  bool
}

// StartRun launches a saved workflow from its source tool's output. The
// run snapshot is taken before any bookkeeping, so the run proceeds on
// it even if the definition is edited or deleted mid-flight.
func (s *Service) StartRun(ctx context.Context, workflowID uuid.UUID, from domain.ToolID, a domain.Artifact) (*Launch, error) {
	def := s.registry.Get(ctx, workflowID)
	if def == nil {
		return nil, domain.ErrWorkflowNotFound
	}
	if def.SourceToolID != from {
		return nil, domain.ErrWrongSourceTool
	}

	rc := runctx.Start(*def, 1)
	target := rc.Steps[rc.CurrentStepIndex]

	if !domain.CanAccept(a.MIMEType, target) {
		s.logger.Info("run refused: incompatible artifact",
			"workflow_id", workflowID,
			"target_tool", target,
			"mime_type", a.MIMEType,
		)
		return nil, domain.ErrIncompatibleFormat
	}

	if err := s.channel.Send(ctx, from, target, a, &rc); err != nil {
		return nil, err
	}

	// Bookkeeping is best-effort past this point. RecordRun returning
	// nil means the definition vanished between Get and now; the run
	// keeps going on its snapshot.
	s.registry.RecordRun(ctx, workflowID)
	s.history.Append(ctx, domain.RunHistoryEntry{
		ID:           uuid.New(),
		RunID:        rc.RunID,
		WorkflowID:   rc.WorkflowID,
		WorkflowName: rc.WorkflowName,
		SourceToolID: rc.SourceToolID,
		Steps:        rc.Steps,
		CreatedAt:    s.now(),
	})
	metrics.IncRunStarted()

	s.logger.Info("workflow run started",
		"run_id", rc.RunID,
		"workflow_id", workflowID,
		"target_tool", target,
	)
	return &Launch{Target: target, Run: rc}, nil
}

// Continue advances an in-flight run by one step from the current tool.
// ErrRunComplete means the pipeline has nothing after this tool;
// ErrStaleRunContext means the context was never meant for this tool.
func (s *Service) Continue(ctx context.Context, current domain.ToolID, a domain.Artifact, rc *domain.RunContext) (*Launch, error) {
	adv := runctx.NextStep(rc, current)
	if adv == nil {
		if runctx.FinishedAt(rc, current) {
			return nil, domain.ErrRunComplete
		}
		return nil, domain.ErrStaleRunContext
	}

	if !domain.CanAccept(a.MIMEType, adv.NextTool) {
		s.logger.Info("continue refused: incompatible artifact",
			"run_id", rc.RunID,
			"target_tool", adv.NextTool,
			"mime_type", a.MIMEType,
		)
		return nil, domain.ErrIncompatibleFormat
	}

	if err := s.channel.Send(ctx, current, adv.NextTool, a, &adv.Context); err != nil {
		return nil, err
	}

	s.logger.Info("workflow run advanced",
		"run_id", rc.RunID,
		"from_tool", current,
		"target_tool", adv.NextTool,
		"step_index", adv.Context.CurrentStepIndex,
	)
	return &Launch{Target: adv.NextTool, Run: adv.Context}, nil
}

// Receive consumes the pending handoff for a tool view, if any, and
// reports whether the run (when present) is complete at this view.
func (s *Service) Receive(ctx context.Context, tool domain.ToolID) *Arrival {
	d := s.channel.Receive(ctx, tool)
	if d == nil {
		return nil
	}

	arrival := &Arrival{
		SourceTool: d.SourceTool,
		Artifact:   d.Artifact,
		RunContext: d.RunContext,
	}

	if runctx.FinishedAt(d.RunContext, tool) {
		arrival.Completed = true
		metrics.IncRunCompleted()
		s.logger.Info("workflow run completed",
			"run_id", d.RunContext.RunID,
			"workflow", d.RunContext.WorkflowName,
			"final_tool", tool,
		)
	}
	return arrival
}
