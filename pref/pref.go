// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pref implements asynchronous persistent preferences.
//
// A Preference wraps one (namespace, key) pair in a key-value store. Reads
// are lazy and served from memory afterwards; writes go into a lock-free
// shadow value. A periodic Writer snapshots dirty preferences and flushes
// them to storage, so storage latency never blocks the control path.
package pref // import "github.com/solderworks/hotplate/pref"

import (
	"bytes"
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/solderworks/hotplate/clock"
	"github.com/solderworks/hotplate/guard"
)

// KV is the backing key-value store. Implementations must make Write
// idempotent: overwriting a key with the same payload is allowed at any
// time.
type KV interface {
	// Write stores data under (ns, key), replacing any previous value.
	Write(ns, key string, data []byte) error
	// Read returns the value stored under (ns, key), or nil if absent.
	Read(ns, key string) ([]byte, error)
	// Length returns the stored size in bytes, 0 if absent.
	Length(ns, key string) int
}

// Tickable is what the Writer drives.
type Tickable interface {
	// Tick snapshots and flushes if the value changed since the last
	// successful flush.
	Tick()
}

// Preference is one persistent value of type T.
//
// Get and Set must come from a single goroutine (the owner); Tick is called
// from the Writer goroutine and synchronizes through the optimistic
// snapshot, never a lock.
type Preference[T any] struct {
	box       *guard.Guard[T]
	kv        KV
	ns, key   string
	encode    func(T) []byte
	decode    func([]byte) (T, bool)
	equal     func(a, b T) bool
	preloaded bool
	log       logrus.FieldLogger
}

// NewBinary returns a preference for a fixed-size value (scalar or struct of
// scalars), stored as its little-endian byte image. A stored blob of the
// wrong size reads as absent.
func NewBinary[T comparable](kv KV, ns, key string, initial T) *Preference[T] {
	return (&Preference[T]{
		kv: kv, ns: ns, key: key,
		encode: func(v T) []byte {
			var buf bytes.Buffer
			// Only fails on non-fixed-size types, which NewBinary does
			// not accept by contract.
			_ = binary.Write(&buf, binary.LittleEndian, v)
			return buf.Bytes()
		},
		decode: func(data []byte) (T, bool) {
			var v T
			if binary.Size(v) != len(data) {
				return v, false
			}
			if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &v); err != nil {
				return v, false
			}
			return v, true
		},
		equal: func(a, b T) bool { return a == b },
		log:   logrus.StandardLogger(),
	}).init(initial)
}

// NewBytes returns a preference for a variable-length byte payload. The
// stored length is implied by the blob size.
func NewBytes(kv KV, ns, key string, initial []byte) *Preference[[]byte] {
	return (&Preference[[]byte]{
		kv: kv, ns: ns, key: key,
		encode: func(v []byte) []byte { return v },
		decode: func(data []byte) ([]byte, bool) {
			out := make([]byte, len(data))
			copy(out, data)
			return out, true
		},
		equal: bytes.Equal,
		log:   logrus.StandardLogger(),
	}).init(initial)
}

func (p *Preference[T]) init(initial T) *Preference[T] {
	// Seed without a version bump so an untouched preference is never
	// flushed back to storage.
	p.box = guard.New(initial)
	return p
}

// SetLogger overrides the default logger.
func (p *Preference[T]) SetLogger(l logrus.FieldLogger) {
	p.log = l
}

// Get returns the current value, loading it from storage on first use.
// Malformed stored data is ignored and the in-memory value kept.
func (p *Preference[T]) Get() T {
	p.preload()
	return *p.box.Value()
}

// Set replaces the value. Setting an equal value is a no-op and causes no
// storage write.
func (p *Preference[T]) Set(v T) {
	if p.preloaded && p.equal(*p.box.Value(), v) {
		return
	}
	// A Set before the first Get must not be clobbered by a later preload.
	p.preloaded = true
	p.box.Write(v)
}

// Tick implements Tickable. Called by the Writer.
func (p *Preference[T]) Tick() {
	if !p.box.Snapshot() {
		return
	}
	if err := p.kv.Write(p.ns, p.key, p.encode(p.box.LastSnapshot())); err != nil {
		p.log.WithError(err).Warnf("pref: flush of %s/%s failed", p.ns, p.key)
	}
}

func (p *Preference[T]) preload() {
	if p.preloaded {
		return
	}
	p.preloaded = true
	if p.kv.Length(p.ns, p.key) == 0 {
		return
	}
	data, err := p.kv.Read(p.ns, p.key)
	if err != nil {
		p.log.WithError(err).Warnf("pref: load of %s/%s failed", p.ns, p.key)
		return
	}
	if v, ok := p.decode(data); ok {
		// Straight into the value, no version bump: a freshly loaded
		// preference is clean and must not be flushed back.
		*p.box.Value() = v
	}
}

// Writer flushes a set of preferences on a fixed period.
type Writer struct {
	periodMS uint32
	now      func() uint32
	prevRun  uint32
	prefs    []Tickable
}

// NewWriter returns a writer gating on periodMS between flush passes. now
// is the millisecond clock; nil disables the gate so every Tick flushes
// (useful in tests).
func NewWriter(periodMS uint32, now func() uint32) *Writer {
	return &Writer{periodMS: periodMS, now: now}
}

// Add registers a preference.
func (w *Writer) Add(p Tickable) {
	w.prefs = append(w.prefs, p)
}

// Tick runs one flush pass if the period has elapsed.
func (w *Writer) Tick() {
	if w.now != nil {
		ts := w.now()
		if !clock.Expired(ts, w.prevRun, w.periodMS) {
			return
		}
		w.prevRun = ts
	}
	for _, p := range w.prefs {
		p.Tick()
	}
}
