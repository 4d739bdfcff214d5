// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package guard implements a lock-free value store with optimistic snapshot
// reads.
//
// The writer increments a version counter before and after mutating the
// value, so the version is odd exactly while a write is in flight. A reader
// copies the value and succeeds only if the version was even and unchanged
// across the copy. Failed snapshots are advisory; periodic readers simply
// retry on the next tick.
package guard // import "github.com/solderworks/hotplate/guard"

import "sync/atomic"

// Guard holds one value of type T.
//
// There must be a single writer. Any number of snapshot readers may run
// concurrently with it.
type Guard[T any] struct {
	value       T
	snapshot    T
	version     atomic.Uint32
	lastVersion uint32
}

// New returns a Guard seeded with initial.
func New[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial, snapshot: initial}
}

// Write replaces the stored value in one transaction.
func (g *Guard[T]) Write(v T) {
	g.BeginWrite()
	g.value = v
	g.EndWrite()
}

// BeginWrite opens a write transaction. Use Value to mutate the stored
// value in place, then close with EndWrite.
func (g *Guard[T]) BeginWrite() {
	g.version.Add(1)
}

// EndWrite closes a write transaction.
func (g *Guard[T]) EndWrite() {
	g.version.Add(1)
}

// Value returns a pointer to the stored value.
//
// Callers other than the writer must not touch it; readers go through
// Snapshot.
func (g *Guard[T]) Value() *T {
	return &g.value
}

// Snapshot attempts an atomic copy of the value.
//
// It fails if a write is in flight, if the copy raced a write, or if the
// value has not changed since the last successful snapshot. On success the
// copy is available via LastSnapshot until the next attempt.
func (g *Guard[T]) Snapshot() bool {
	before := g.version.Load()
	if before == g.lastVersion || before%2 != 0 {
		return false
	}
	g.snapshot = g.value
	if g.version.Load() != before {
		return false
	}
	g.lastVersion = before
	return true
}

// LastSnapshot returns the copy taken by the last successful Snapshot.
func (g *Guard[T]) LastSnapshot() T {
	return g.snapshot
}
