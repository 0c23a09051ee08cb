// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entryFor(tool domain.ToolID, name string) domain.RunHistoryEntry {
	return domain.RunHistoryEntry{
		ID:           uuid.New(),
		RunID:        uuid.New(),
		WorkflowID:   uuid.New(),
		WorkflowName: name,
		SourceToolID: tool,
		Steps:        []domain.ToolID{tool, domain.ToolCompress},
		CreatedAt:    time.Now(),
	}
}

func TestAppendAndListFor(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryDurable(), discardLogger())

	l.Append(ctx, entryFor(domain.ToolResize, "first"))
	l.Append(ctx, entryFor(domain.ToolCrop, "other-tool"))
	l.Append(ctx, entryFor(domain.ToolResize, "second"))

	got := l.ListFor(ctx, domain.ToolResize)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for RESIZE, got %d", len(got))
	}
	if got[0].WorkflowName != "second" || got[1].WorkflowName != "first" {
		t.Fatalf("expected most-recent-first order, got %s then %s",
			got[0].WorkflowName, got[1].WorkflowName)
	}
}

func TestEviction(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryDurable(), discardLogger())

	for i := 0; i < 45; i++ {
		l.Append(ctx, entryFor(domain.ToolResize, fmt.Sprintf("run-%02d", i)))
	}

	all := l.All(ctx)
	if len(all) != domain.MaxHistoryEntries {
		t.Fatalf("expected exactly %d entries, got %d", domain.MaxHistoryEntries, len(all))
	}

	// The 5 oldest (run-00..run-04) were dropped.
	if all[0].WorkflowName != "run-44" {
		t.Fatalf("expected newest first, got %s", all[0].WorkflowName)
	}
	if all[len(all)-1].WorkflowName != "run-05" {
		t.Fatalf("expected run-05 as oldest survivor, got %s", all[len(all)-1].WorkflowName)
	}
}

func TestDisplayCap(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryDurable(), discardLogger())

	for i := 0; i < 20; i++ {
		l.Append(ctx, entryFor(domain.ToolResize, fmt.Sprintf("run-%02d", i)))
	}

	got := l.ListFor(ctx, domain.ToolResize)
	if len(got) != domain.MaxHistoryDisplay {
		t.Fatalf("expected display cap of %d, got %d", domain.MaxHistoryDisplay, len(got))
	}

	// The full log keeps everything under the storage cap.
	if len(l.All(ctx)) != 20 {
		t.Fatalf("expected 20 stored entries, got %d", len(l.All(ctx)))
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryDurable(), discardLogger())

	l.Append(ctx, entryFor(domain.ToolResize, "a"))
	l.Append(ctx, entryFor(domain.ToolCrop, "b"))

	l.Clear(ctx)

	if len(l.All(ctx)) != 0 {
		t.Fatal("expected cleared log to be empty")
	}
	if len(l.ListFor(ctx, domain.ToolResize)) != 0 {
		t.Fatal("clear is cross-tool, RESIZE view must be empty too")
	}
}

func TestCorruptLogActsEmpty(t *testing.T) {
	ctx := context.Background()
	durable := store.NewMemoryDurable()
	l := New(durable, discardLogger())

	durable.Set(ctx, store.KeyRunHistory, "][")

	if got := l.All(ctx); got != nil {
		t.Fatalf("expected corrupt log to read as empty, got %d entries", len(got))
	}

	l.Append(ctx, entryFor(domain.ToolResize, "recovered"))
	if len(l.All(ctx)) != 1 {
		t.Fatal("expected append to recover the log")
	}
}
