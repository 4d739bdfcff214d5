// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package history records a sparse time series of (x, y) points.
//
// The recorder is delta encoded: a new point replaces the last one until the
// last one has moved far enough from its predecessor, either vertically
// (yThreshold) or horizontally (xThreshold, or x/xScaleAfter once that is
// larger, so long recordings stay bounded). The result is a curve that
// keeps fast transients and thins out flat stretches.
package history // import "github.com/solderworks/hotplate/history"

import "sync"

// MaxChunk is the number of points a single read returns at most.
const MaxChunk = 100

// Point is one recorded sample. X is in task seconds, Y in units chosen by
// the recorder owner (the heater core uses °C×100).
type Point struct {
	X uint32
	Y int32
}

// Recorder is a bounded ordered sequence of points under an exclusive lock.
type Recorder struct {
	mu          sync.Mutex
	data        []Point
	xThreshold  uint32
	yThreshold  int32
	xScaleAfter uint32
}

// New returns an empty recorder with the given delta-encoding parameters.
func New(xThreshold uint32, yThreshold int32, xScaleAfter uint32) *Recorder {
	r := &Recorder{}
	r.SetParams(xThreshold, yThreshold, xScaleAfter)
	return r
}

// SetParams replaces the delta-encoding parameters. Existing points keep
// their positions; only future Add calls are affected.
func (r *Recorder) SetParams(xThreshold uint32, yThreshold int32, xScaleAfter uint32) {
	r.mu.Lock()
	r.xThreshold = xThreshold
	r.yThreshold = yThreshold
	r.xScaleAfter = xScaleAfter
	r.mu.Unlock()
}

// Reset drops all recorded points.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.data = r.data[:0]
	r.mu.Unlock()
}

// Add records a point. Exact duplicates of the last point are dropped. If
// the last point has not "landed" yet it is overwritten instead of a new
// point being appended.
func (r *Recorder) Add(x uint32, y int32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.data); n != 0 && r.data[n-1].X == x && r.data[n-1].Y == y {
		return
	}
	p := Point{X: x, Y: y}
	if r.lastLanded() {
		r.data = append(r.data, p)
	} else {
		r.data[len(r.data)-1] = p
	}
}

// lastLanded reports whether the last point moved far enough from its
// predecessor to be kept. Called with mu held.
func (r *Recorder) lastLanded() bool {
	if len(r.data) < 2 {
		return true
	}
	last := r.data[len(r.data)-1]
	prev := r.data[len(r.data)-2]

	dy := last.Y - prev.Y
	if dy < 0 {
		dy = -dy
	}
	if dy >= r.yThreshold {
		return true
	}
	threshold := r.xThreshold
	if r.xScaleAfter != 0 {
		if scaled := last.X / r.xScaleAfter; scaled > threshold {
			threshold = scaled
		}
	}
	return last.X-prev.X >= threshold
}

// Len returns the number of retained points.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Last returns the most recent point, or false on an empty recorder.
func (r *Recorder) Last() (Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == 0 {
		return Point{}, false
	}
	return r.data[len(r.data)-1], true
}

// Points returns a copy of all retained points.
func (r *Recorder) Points() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Point, len(r.data))
	copy(out, r.data)
	return out
}

// ChunkFrom returns up to MaxChunk points with X ≥ from.
//
// The scan runs back to front: consumers poll with the last X they have
// seen, so the split point is usually near the end.
func (r *Recorder) ChunkFrom(from int32) []Point {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.data) == 0 || int32(r.data[len(r.data)-1].X) < from {
		return nil
	}
	start := 0
	if int32(r.data[0].X) < from {
		for i := len(r.data) - 1; i >= 0; i-- {
			if int32(r.data[i].X) < from {
				start = i + 1
				break
			}
		}
	}
	n := len(r.data) - start
	if n > MaxChunk {
		n = MaxChunk
	}
	out := make([]Point, n)
	copy(out, r.data[start:start+n])
	return out
}
