// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package clock provides the monotonic millisecond tick used by every state
// machine in the control core.
//
// The tick is a wrapping 32 bit counter. Deadline arithmetic is done on
// signed differences so it stays correct across the wrap, the same way a
// 32 bit RTOS tick counter is handled.
package clock // import "github.com/solderworks/hotplate/clock"

import "time"

var epoch = time.Now()

// NowMS returns the wrapping millisecond tick.
//
// The absolute value is meaningless; only differences between two ticks are.
func NowMS() uint32 {
	return uint32(time.Since(epoch) / time.Millisecond)
}

// Expired reports whether timeoutMS milliseconds have elapsed since t0.
//
// now is compared against t0+timeoutMS in signed 32 bit form, so the result
// is correct as long as the real elapsed time is below ~24 days.
func Expired(now, t0, timeoutMS uint32) bool {
	deadline := t0 + timeoutMS
	return int32(now-deadline) >= 0
}

// A Timer marks a point in time and answers deadline queries against an
// injectable clock, which keeps FSM timing testable.
type Timer struct {
	t0  uint32
	now func() uint32
}

// NewTimer starts a timer at now(). A nil now defaults to NowMS.
func NewTimer(now func() uint32) Timer {
	if now == nil {
		now = NowMS
	}
	return Timer{t0: now(), now: now}
}

// Expired reports whether timeoutMS milliseconds have elapsed since the
// timer was started.
func (t Timer) Expired(timeoutMS uint32) bool {
	return Expired(t.now(), t.t0, timeoutMS)
}
