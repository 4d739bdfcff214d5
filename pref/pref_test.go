// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pref

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type memKV struct {
	m      map[string][]byte
	writes int
}

func newMemKV() *memKV {
	return &memKV{m: map[string][]byte{}}
}

func (kv *memKV) Write(ns, key string, data []byte) error {
	out := make([]byte, len(data))
	copy(out, data)
	kv.m[ns+"/"+key] = out
	kv.writes++
	return nil
}

func (kv *memKV) Read(ns, key string) ([]byte, error) {
	return kv.m[ns+"/"+key], nil
}

func (kv *memKV) Length(ns, key string) int {
	return len(kv.m[ns+"/"+key])
}

func TestSetTickReloadRoundTrip(t *testing.T) {
	type cal struct {
		Gain   int32
		Offset int32
	}
	kv := newMemKV()
	p := NewBinary(kv, "head", "cal", cal{})
	p.Set(cal{Gain: 65536, Offset: -12})
	p.Tick()
	require.Equal(t, 1, kv.writes)

	// Fresh preference over the same storage sees the value.
	p2 := NewBinary(kv, "head", "cal", cal{})
	require.Equal(t, cal{Gain: 65536, Offset: -12}, p2.Get())
}

func TestEqualSetWritesOnce(t *testing.T) {
	kv := newMemKV()
	p := NewBinary[int32](kv, "dev", "sel", -1)
	p.Set(7)
	p.Tick()
	p.Set(7)
	p.Tick()
	require.Equal(t, 1, kv.writes, "idempotent set must not touch storage")
}

func TestUntouchedPreferenceNeverFlushes(t *testing.T) {
	kv := newMemKV()
	p := NewBinary[int32](kv, "dev", "sel", -1)
	require.Equal(t, int32(-1), p.Get())
	p.Tick()
	p.Tick()
	require.Equal(t, 0, kv.writes)
}

func TestMalformedSizeIgnored(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Write("dev", "sel", []byte{1, 2, 3}))
	kv.writes = 0
	p := NewBinary[int32](kv, "dev", "sel", -1)
	require.Equal(t, int32(-1), p.Get(), "3 bytes for an int32 reads as absent")
}

func TestBytesPreference(t *testing.T) {
	kv := newMemKV()
	p := NewBytes(kv, "dev", "blob", nil)
	p.Set([]byte{0xAA, 0xBB})
	p.Tick()
	require.Equal(t, []byte{0xAA, 0xBB}, kv.m["dev/blob"])

	p2 := NewBytes(kv, "dev", "blob", nil)
	require.Equal(t, []byte{0xAA, 0xBB}, p2.Get())
	// A reload does not dirty the preference.
	p2.Tick()
	require.Equal(t, 1, kv.writes)
}

func TestWriterPeriodGate(t *testing.T) {
	kv := newMemKV()
	p := NewBinary[int32](kv, "dev", "sel", -1)
	now := uint32(0)
	w := NewWriter(200, func() uint32 { return now })
	w.Add(p)

	p.Set(1)
	w.Tick() // ts 0: period since start not yet elapsed
	require.Equal(t, 0, kv.writes)

	now = 100
	w.Tick() // still gated
	require.Equal(t, 0, kv.writes)

	now = 200
	w.Tick()
	require.Equal(t, 1, kv.writes)

	p.Set(2)
	now = 300
	w.Tick() // gated again
	require.Equal(t, 1, kv.writes)

	now = 400
	w.Tick()
	require.Equal(t, 2, kv.writes)
}

func TestWriterPeriodGateAcrossWrap(t *testing.T) {
	kv := newMemKV()
	p := NewBinary[int32](kv, "dev", "sel", -1)
	now := uint32(0xFFFFFFF0)
	w := NewWriter(200, func() uint32 { return now })
	w.prevRun = now
	w.Add(p)
	p.Set(1)

	now += 100 // the tick counter wraps here
	w.Tick()
	require.Equal(t, 0, kv.writes, "interval not elapsed across the wrap")

	now += 100
	w.Tick()
	require.Equal(t, 1, kv.writes)
}
