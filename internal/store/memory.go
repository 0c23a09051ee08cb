// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"
	"time"
)

// MemoryDurable is an in-process Durable store. Used in tests and as the
// fallback when no database is configured: the tool views keep working,
// saved workflows just do not outlive the process.
type MemoryDurable struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{values: make(map[string]string, 4)}
}

func (s *MemoryDurable) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryDurable) Set(_ context.Context, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryDurable) Remove(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

type memoryEntry struct {
	value    string
	deadline time.Time
}

// MemoryTransient is an in-process Transient store honoring TTL by
// deadline check on read. Its clock is injectable for tests.
type MemoryTransient struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	now    func() time.Time
}

func NewMemoryTransient() *MemoryTransient {
	return &MemoryTransient{
		values: make(map[string]memoryEntry, 1),
		now:    time.Now,
	}
}

// SetClock overrides the store's time source. Test hook.
func (s *MemoryTransient) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryTransient) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.values[key]
	if !ok {
		return "", false
	}
	if !e.deadline.IsZero() && s.now().After(e.deadline) {
		delete(s.values, key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryTransient) Set(_ context.Context, key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.deadline = s.now().Add(ttl)
	}
	s.values[key] = e
}

func (s *MemoryTransient) Clear(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
