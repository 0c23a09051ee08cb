// SPDX-License-Identifier: Apache-2.0

package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChannel(t *testing.T) (*Channel, *store.MemoryTransient, *time.Time) {
	t.Helper()

	transient := store.NewMemoryTransient()
	current := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	transient.SetClock(func() time.Time { return current })

	c := New(Deps{
		Transient: transient,
		Logger:    discardLogger(),
		Now:       func() time.Time { return current },
	})
	return c, transient, &current
}

func testArtifact() domain.Artifact {
	return domain.Artifact{
		FileName: "photo.jpg",
		MIMEType: domain.MIMEJPEG,
		Data:     []byte{0xFF, 0xD8, 0xFF, 0xE0},
	}
}

func TestSendReceive(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testChannel(t)

	rc := domain.RunContext{
		RunID:            uuid.New(),
		WorkflowID:       uuid.New(),
		WorkflowName:     "shrink-and-web",
		SourceToolID:     domain.ToolResize,
		Steps:            []domain.ToolID{domain.ToolResize, domain.ToolCompress},
		CurrentStepIndex: 1,
		StartedAt:        time.Now(),
	}

	if err := c.Send(ctx, domain.ToolResize, domain.ToolCompress, testArtifact(), &rc); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	d := c.Receive(ctx, domain.ToolCompress)
	if d == nil {
		t.Fatal("expected a delivery")
	}
	if d.SourceTool != domain.ToolResize {
		t.Fatalf("unexpected source tool %s", d.SourceTool)
	}
	if d.Artifact.FileName != "photo.jpg" || d.Artifact.MIMEType != domain.MIMEJPEG {
		t.Fatalf("unexpected artifact %+v", d.Artifact)
	}
	if !bytes.Equal(d.Artifact.Data, testArtifact().Data) {
		t.Fatal("artifact payload corrupted in transit")
	}
	if d.RunContext == nil || d.RunContext.RunID != rc.RunID {
		t.Fatal("expected run context to survive the handoff")
	}
}

func TestSendWritesHandoffPackageForm(t *testing.T) {
	ctx := context.Background()
	c, transient, current := testChannel(t)

	rc := domain.RunContext{
		RunID:            uuid.New(),
		Steps:            []domain.ToolID{domain.ToolResize, domain.ToolCompress},
		CurrentStepIndex: 1,
	}
	if err := c.Send(ctx, domain.ToolResize, domain.ToolCompress, testArtifact(), &rc); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// The slot holds the domain envelope directly, so anything that
	// understands domain.HandoffPackage can read what Send wrote.
	raw, ok := transient.Get(ctx, store.KeyHandoffSlot)
	if !ok {
		t.Fatal("expected a package in the slot")
	}
	var pkg domain.HandoffPackage
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		t.Fatalf("slot content is not a handoff package: %v", err)
	}
	if pkg.SourceToolID != domain.ToolResize || pkg.TargetToolID != domain.ToolCompress {
		t.Fatalf("unexpected addressing %s -> %s", pkg.SourceToolID, pkg.TargetToolID)
	}
	if pkg.FileName != "photo.jpg" || pkg.EncodedArtifact == "" {
		t.Fatalf("unexpected payload %+v", pkg)
	}
	if !pkg.CreatedAt.Equal(*current) {
		t.Fatalf("expected created_at %s got %s", *current, pkg.CreatedAt)
	}
	if pkg.RunContext == nil || pkg.RunContext.RunID != rc.RunID {
		t.Fatal("expected run context to be embedded in the package")
	}
}

func TestReceiveReadOnce(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testChannel(t)

	if err := c.Send(ctx, domain.ToolResize, domain.ToolCompress, testArtifact(), nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if c.Receive(ctx, domain.ToolCompress) == nil {
		t.Fatal("expected first receive to deliver")
	}
	if c.Receive(ctx, domain.ToolCompress) != nil {
		t.Fatal("expected second receive to be empty")
	}
}

func TestReceiveWrongTargetClearsSlot(t *testing.T) {
	ctx := context.Background()
	c, transient, _ := testChannel(t)

	if err := c.Send(ctx, domain.ToolResize, domain.ToolCompress, testArtifact(), nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if c.Receive(ctx, domain.ToolCrop) != nil {
		t.Fatal("expected nil for a misaddressed package")
	}

	// The slot must not stay blocked by the dead package.
	if _, ok := transient.Get(ctx, store.KeyHandoffSlot); ok {
		t.Fatal("expected slot to be cleared")
	}
}

func TestReceiveExpired(t *testing.T) {
	ctx := context.Background()
	c, transient, current := testChannel(t)

	if err := c.Send(ctx, domain.ToolResize, domain.ToolCompress, testArtifact(), nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	*current = current.Add(domain.MaxHandoffAge / 2)
	if c.Receive(ctx, domain.ToolCompress) == nil {
		t.Fatal("expected fresh package before max age")
	}

	// The channel enforces max age itself, independent of any backend
	// TTL: plant a package that is still physically present but stale.
	raw, _ := json.Marshal(map[string]any{
		"source_tool_id":   domain.ToolResize,
		"target_tool_id":   domain.ToolCompress,
		"file_name":        "photo.jpg",
		"encoded_artifact": "data:image/jpeg;base64,/9j/4A==",
		"created_at":       current.Add(-domain.MaxHandoffAge - time.Minute).Format(time.RFC3339),
	})
	transient.Set(ctx, store.KeyHandoffSlot, string(raw), time.Hour)

	if c.Receive(ctx, domain.ToolCompress) != nil {
		t.Fatal("expected expired package to read as nil")
	}
	if _, ok := transient.Get(ctx, store.KeyHandoffSlot); ok {
		t.Fatal("expected expired package to be cleared")
	}
}

func TestReceiveMissingCreatedAt(t *testing.T) {
	ctx := context.Background()
	c, transient, _ := testChannel(t)

	raw, _ := json.Marshal(map[string]any{
		"source_tool_id":   domain.ToolResize,
		"target_tool_id":   domain.ToolCompress,
		"file_name":        "photo.jpg",
		"encoded_artifact": "data:image/jpeg;base64,/9j/4A==",
	})
	transient.Set(ctx, store.KeyHandoffSlot, string(raw), time.Hour)

	if c.Receive(ctx, domain.ToolCompress) != nil {
		t.Fatal("expected package without created_at to be rejected")
	}
}

func TestReceiveCorruptPackage(t *testing.T) {
	ctx := context.Background()
	c, transient, _ := testChannel(t)

	transient.Set(ctx, store.KeyHandoffSlot, "{not json", time.Hour)

	if c.Receive(ctx, domain.ToolCompress) != nil {
		t.Fatal("expected corrupt package to read as nil")
	}
	if _, ok := transient.Get(ctx, store.KeyHandoffSlot); ok {
		t.Fatal("expected corrupt package to be cleared")
	}
}

func TestReceiveDegradedRunContext(t *testing.T) {
	ctx := context.Background()
	c, transient, current := testChannel(t)

	// Well-formed package, garbage run context: the artifact must
	// still arrive so single-step handoffs keep working.
	raw, _ := json.Marshal(map[string]any{
		"source_tool_id":   domain.ToolResize,
		"target_tool_id":   domain.ToolCompress,
		"file_name":        "photo.jpg",
		"encoded_artifact": "data:image/jpeg;base64,/9j/4A==",
		"created_at":       current.Format(time.RFC3339),
		"run_context":      map[string]any{"steps": "not-an-array", "current_step_index": "NaN"},
	})
	transient.Set(ctx, store.KeyHandoffSlot, string(raw), time.Hour)

	d := c.Receive(ctx, domain.ToolCompress)
	if d == nil {
		t.Fatal("expected degraded delivery")
	}
	if d.RunContext != nil {
		t.Fatal("expected malformed run context to be dropped")
	}
	if d.Artifact.FileName != "photo.jpg" {
		t.Fatalf("unexpected artifact %+v", d.Artifact)
	}
}

func TestReceiveRejectsOutOfRangeContext(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testChannel(t)

	rc := domain.RunContext{
		RunID:            uuid.New(),
		Steps:            []domain.ToolID{domain.ToolResize, domain.ToolCompress},
		CurrentStepIndex: 7,
	}

	if err := c.Send(ctx, domain.ToolResize, domain.ToolCompress, testArtifact(), &rc); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	d := c.Receive(ctx, domain.ToolCompress)
	if d == nil {
		t.Fatal("expected delivery")
	}
	if d.RunContext != nil {
		t.Fatal("expected out-of-range context to be dropped")
	}
}

func TestSendFromUnreadableSource(t *testing.T) {
	ctx := context.Background()
	c, transient, _ := testChannel(t)

	err := c.SendFrom(ctx, domain.ToolResize, domain.ToolCompress,
		"photo.jpg", domain.MIMEJPEG, failingReader{}, nil)
	if !errors.Is(err, domain.ErrArtifactEncode) {
		t.Fatalf("expected ErrArtifactEncode, got %v", err)
	}

	// No partial write.
	if _, ok := transient.Get(ctx, store.KeyHandoffSlot); ok {
		t.Fatal("expected nothing in the slot after a failed encode")
	}
}

func TestSendFromReader(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testChannel(t)

	err := c.SendFrom(ctx, domain.ToolResize, domain.ToolCompress,
		"photo.jpg", domain.MIMEJPEG, strings.NewReader("payload"), nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	d := c.Receive(ctx, domain.ToolCompress)
	if d == nil || string(d.Artifact.Data) != "payload" {
		t.Fatal("expected reader payload to round-trip")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("blob revoked")
}
