// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDurable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDurable()

	if _, ok := s.Get(ctx, KeyWorkflowLibrary); ok {
		t.Fatal("expected empty store to miss")
	}

	s.Set(ctx, KeyWorkflowLibrary, `[]`)
	v, ok := s.Get(ctx, KeyWorkflowLibrary)
	if !ok || v != `[]` {
		t.Fatalf("expected stored value, got %q ok=%v", v, ok)
	}

	s.Remove(ctx, KeyWorkflowLibrary)
	if _, ok := s.Get(ctx, KeyWorkflowLibrary); ok {
		t.Fatal("expected removed key to miss")
	}

	// Removing an absent key is a no-op, not a panic.
	s.Remove(ctx, "never-set")
}

func TestMemoryTransientTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTransient()

	current := time.Now()
	s.SetClock(func() time.Time { return current })

	s.Set(ctx, KeyHandoffSlot, "payload", 20*time.Minute)

	if v, ok := s.Get(ctx, KeyHandoffSlot); !ok || v != "payload" {
		t.Fatalf("expected fresh value, got %q ok=%v", v, ok)
	}

	current = current.Add(21 * time.Minute)
	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected value to expire after TTL")
	}
}

func TestMemoryTransientZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTransient()

	current := time.Now()
	s.SetClock(func() time.Time { return current })

	s.Set(ctx, KeyHandoffSlot, "payload", 0)
	current = current.Add(48 * time.Hour)

	if _, ok := s.Get(ctx, KeyHandoffSlot); !ok {
		t.Fatal("expected zero-ttl value to survive")
	}
}

func TestMemoryTransientOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTransient()

	// Single slot, last write wins: that is the documented multi-tab
	// behavior, not a bug.
	s.Set(ctx, KeyHandoffSlot, "first", time.Minute)
	s.Set(ctx, KeyHandoffSlot, "second", time.Minute)

	if v, _ := s.Get(ctx, KeyHandoffSlot); v != "second" {
		t.Fatalf("expected last write to win, got %q", v)
	}

	s.Clear(ctx, KeyHandoffSlot)
	if _, ok := s.Get(ctx, KeyHandoffSlot); ok {
		t.Fatal("expected cleared slot to miss")
	}
}
