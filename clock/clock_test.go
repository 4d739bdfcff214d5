// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package clock

import "testing"

func TestExpired(t *testing.T) {
	data := []struct {
		name    string
		now     uint32
		t0      uint32
		timeout uint32
		want    bool
	}{
		{"before deadline", 99, 0, 100, false},
		{"at deadline", 100, 0, 100, true},
		{"after deadline", 150, 0, 100, true},
		{"wrap pending", 0xFFFFFFF0, 0xFFFFFFA0, 1000, false},
		{"wrap expired", 200, 0xFFFFFFF0, 100, true},
		{"deadline past wrap not reached", 0xFFFFFFFE, 0xFFFFFFF0, 100, false},
		{"zero timeout", 5, 5, 0, true},
	}
	for _, line := range data {
		if got := Expired(line.now, line.t0, line.timeout); got != line.want {
			t.Fatalf("%s: Expired(%#x, %#x, %d) = %t, want %t", line.name, line.now, line.t0, line.timeout, got, line.want)
		}
	}
}

func TestTimer(t *testing.T) {
	now := uint32(1000)
	tm := NewTimer(func() uint32 { return now })
	if tm.Expired(100) {
		t.Fatal("timer expired immediately")
	}
	now += 99
	if tm.Expired(100) {
		t.Fatal("timer expired 1ms early")
	}
	now++
	if !tm.Expired(100) {
		t.Fatal("timer did not expire at deadline")
	}
}
