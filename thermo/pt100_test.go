// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermo

import "testing"

func TestPT100RoundTrip(t *testing.T) {
	for _, n := range pt100Table {
		if got := PT100TempX10(PT100ResistanceMohms(n.tX10)); got != n.tX10 {
			t.Fatalf("round trip at %d: got %d", n.tX10, got)
		}
	}
}

func TestPT100Clamping(t *testing.T) {
	if got := PT100TempX10(10); got != -500 {
		t.Fatalf("below table: got %d, want -500", got)
	}
	if got := PT100TempX10(999999); got != 4000 {
		t.Fatalf("above table: got %d, want 4000", got)
	}
	if got := PT100ResistanceMohms(-2000); got != 80310 {
		t.Fatalf("below table: got %d, want 80310", got)
	}
	if got := PT100ResistanceMohms(9999); got != 247090 {
		t.Fatalf("above table: got %d, want 247090", got)
	}
}

func TestPT100Interpolation(t *testing.T) {
	// Midway between 0 °C (100 Ω) and 25 °C (109.73 Ω).
	got := PT100TempX10(104865)
	if got < 124 || got > 126 {
		t.Fatalf("interpolated %d, want ~125", got)
	}
}
