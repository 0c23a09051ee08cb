// SPDX-License-Identifier: Apache-2.0

// Package store is the persistence boundary for the orchestrator. It
// exposes two durability classes: Durable for long-lived blobs (workflow
// library, run history) and Transient for the single pending handoff.
//
// Every implementation swallows backend failures: a failed read acts
// like an absent key and a failed write is a logged no-op. Losing a
// saved workflow or a pending handoff is recoverable; crashing the tool
// view that tried to save it is not.
package store

import (
	"context"
	"time"
)

// Durable store keys. Values are JSON-serialized arrays.
const (
	KeyWorkflowLibrary = "workflow-library"
	KeyRunHistory      = "run-history"
)

// KeyHandoffSlot is the single transient slot for the pending handoff.
// One slot system-wide: a second send overwrites an unread first one.
const KeyHandoffSlot = "handoff-slot"

// Durable is long-lived key-value storage.
type Durable interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Remove(ctx context.Context, key string)
}

// Transient is short-lived, single-read storage. A zero ttl means the
// backend's default lifetime applies.
type Transient interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Clear(ctx context.Context, key string)
}
