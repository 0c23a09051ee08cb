// SPDX-License-Identifier: Apache-2.0

// Package handoff is the single-use transport that carries one artifact
// (and optionally a run context) from the producing tool view to the
// consuming one across the navigation boundary.
//
// The channel is one global slot with last-write-wins semantics. Within
// one browsing context the order is strictly send-then-navigate-then-
// receive; across two contexts a second send can silently overwrite an
// unread first one. Known limitation: the system targets a single user
// driving a single active pipeline.
package handoff

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/pixeltools/imageflow/internal/artifact"
	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/metrics"
	"github.com/pixeltools/imageflow/internal/store"
)

// Delivery is what the consuming view gets out of the slot.
type Delivery struct {
	SourceTool domain.ToolID
	Artifact   domain.Artifact
	RunContext *domain.RunContext
}

type Channel struct {
	transient store.Transient
	logger    *slog.Logger
	maxAge    time.Duration
	now       func() time.Time
}

type Deps struct {
	Transient store.Transient
	Logger    *slog.Logger
	MaxAge    time.Duration
	Now       func() time.Time
}

func New(deps Deps) *Channel {
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
	return &Channel{
		transient: deps.Transient,
		logger:    l,
		maxAge:    maxAge,
		now:       now,
	}
}

// wirePackage is the read side of domain.HandoffPackage (same field
// tags). RunContext stays raw so a corrupted context can be dropped
// without losing the artifact next to it.
type wirePackage struct {
	SourceToolID    domain.ToolID   `json:"source_tool_id"`
	TargetToolID    domain.ToolID   `json:"target_tool_id"`
	FileName        string          `json:"file_name"`
	EncodedArtifact string          `json:"encoded_artifact"`
	CreatedAt       time.Time       `json:"created_at"`
	RunContext      json.RawMessage `json:"run_context,omitempty"`
}

// Send writes one handoff package into the slot. The artifact is
// already in memory, so past this point storage failures are swallowed
// by the adapter and the send reads back as "nothing pending".
func (c *Channel) Send(ctx context.Context, source, target domain.ToolID, a domain.Artifact, rc *domain.RunContext) error {
	return c.write(ctx, source, target, a.FileName, artifact.EncodeArtifact(a), len(a.Data), rc)
}

// SendFrom encodes the artifact payload from r before writing the slot.
// A read failure aborts the send with domain.ErrArtifactEncode and
// nothing is written.
func (c *Channel) SendFrom(ctx context.Context, source, target domain.ToolID, fileName, mimeType string, r io.Reader, rc *domain.RunContext) error {
	encoded, err := artifact.Encode(mimeType, r)
	if err != nil {
		c.logger.Warn("handoff aborted: artifact unreadable",
			"source_tool", source,
			"target_tool", target,
			"error", err,
		)
		return err
	}
	return c.write(ctx, source, target, fileName, encoded, len(encoded), rc)
}

func (c *Channel) write(ctx context.Context, source, target domain.ToolID, fileName, encoded string, payloadBytes int, rc *domain.RunContext) error {
	pkg := domain.HandoffPackage{
		SourceToolID:    source,
		TargetToolID:    target,
		FileName:        fileName,
		EncodedArtifact: encoded,
		CreatedAt:       c.now(),
		RunContext:      rc,
	}

	raw, err := json.Marshal(pkg)
	if err != nil {
		return err
	}

	c.transient.Set(ctx, store.KeyHandoffSlot, string(raw), c.maxAge)
	metrics.IncHandoff(metrics.HandoffSent)
	metrics.ObserveHandoffPayloadBytes(payloadBytes)

	c.logger.Info("handoff sent",
		"source_tool", source,
		"target_tool", target,
		"file_name", fileName,
		"with_run_context", rc != nil,
	)
	return nil
}

// Receive reads and clears the slot (read-once: a second call without
// an intervening Send yields nil). The slot is cleared even when the
// package turns out to be misaddressed or expired, so a dead package
// never blocks future sends.
func (c *Channel) Receive(ctx context.Context, expected domain.ToolID) *Delivery {
	raw, ok := c.transient.Get(ctx, store.KeyHandoffSlot)
	if !ok {
		metrics.IncHandoff(metrics.HandoffEmpty)
		return nil
	}
	c.transient.Clear(ctx, store.KeyHandoffSlot)

	var pkg wirePackage
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		c.logger.Warn("handoff package corrupted, discarding", "error", err)
		metrics.IncHandoff(metrics.HandoffCorrupt)
		return nil
	}

	if pkg.TargetToolID != expected {
		c.logger.Info("handoff not addressed to this view, discarding",
			"target_tool", pkg.TargetToolID,
			"expected_tool", expected,
		)
		metrics.IncHandoff(metrics.HandoffMismatch)
		return nil
	}

	if pkg.CreatedAt.IsZero() || c.now().Sub(pkg.CreatedAt) > c.maxAge {
		c.logger.Info("handoff expired, discarding",
			"target_tool", expected,
			"created_at", pkg.CreatedAt,
		)
		metrics.IncHandoff(metrics.HandoffExpired)
		return nil
	}

	a := artifact.Decode(pkg.EncodedArtifact, pkg.FileName, "")
	if a == nil {
		c.logger.Warn("handoff artifact undecodable, discarding", "target_tool", expected)
		metrics.IncHandoff(metrics.HandoffCorrupt)
		return nil
	}

	delivery := &Delivery{
		SourceTool: pkg.SourceToolID,
		Artifact:   *a,
	}

	if rc := decodeRunContext(pkg.RunContext); rc != nil {
		delivery.RunContext = rc
	} else if len(pkg.RunContext) > 0 {
		// Degraded handoff: the artifact still arrives even when the
		// run-context plumbing is corrupted.
		c.logger.Warn("run context malformed, delivering artifact without it",
			"target_tool", expected,
		)
	}

	metrics.IncHandoff(metrics.HandoffReceived)
	c.logger.Info("handoff received",
		"source_tool", pkg.SourceToolID,
		"target_tool", expected,
		"file_name", delivery.Artifact.FileName,
		"with_run_context", delivery.RunContext != nil,
	)
	return delivery
}

func decodeRunContext(raw json.RawMessage) *domain.RunContext {
	if len(raw) == 0 {
		return nil
	}

	var rc domain.RunContext
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil
	}
	if len(rc.Steps) == 0 {
		return nil
	}
	if rc.CurrentStepIndex < 0 || rc.CurrentStepIndex >= len(rc.Steps) {
		return nil
	}
	return &rc
}
