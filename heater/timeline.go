// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package heater

import "github.com/solderworks/hotplate/pb"

// StartTemperature is the assumed pad temperature at profile start, in °C.
const StartTemperature = 25

const (
	timelineXMult = 1000 // ms per second
	timelineYMult = 100  // value units per °C
)

type timelinePoint struct {
	timeX1000 int32
	valueX100 int32
}

// Timeline is a reflow profile unrolled into an absolute piecewise-linear
// setpoint curve. Owned by the reflow task; not safe for concurrent use.
type Timeline struct {
	points []timelinePoint
	// ratesCPerS is the per-segment slope in °C/s, clamped to ±100.
	ratesCPerS []float32
}

// Load rebuilds the timeline from a profile: the origin at the start
// temperature followed by the accumulated segment endpoints.
func (t *Timeline) Load(p *pb.Profile) {
	t.points = t.points[:0]
	t.ratesCPerS = t.ratesCPerS[:0]

	t.points = append(t.points, timelinePoint{0, StartTemperature * timelineYMult})
	for _, seg := range p.Segments {
		last := t.points[len(t.points)-1]
		t.points = append(t.points, timelinePoint{
			timeX1000: last.timeX1000 + seg.Duration*timelineXMult,
			valueX100: seg.Target * timelineYMult,
		})
	}
	if len(t.points) <= 1 {
		return
	}

	for i := 1; i < len(t.points); i++ {
		p0, p1 := t.points[i-1], t.points[i]
		deltaTime := float32(p1.timeX1000-p0.timeX1000) / timelineXMult
		deltaValue := float32(p1.valueX100-p0.valueX100) / timelineYMult
		var rate float32
		if deltaTime > 0.001 {
			rate = deltaValue / deltaTime
		} else if deltaValue > 0 {
			rate = 100
		} else if deltaValue < 0 {
			rate = -100
		}
		if rate > 100 {
			rate = 100
		} else if rate < -100 {
			rate = -100
		}
		t.ratesCPerS = append(t.ratesCPerS, rate)
	}
}

// MaxTimeX1000 returns the total profile duration in ms.
func (t *Timeline) MaxTimeX1000() int32 {
	if len(t.points) <= 1 {
		return 0
	}
	return t.points[len(t.points)-1].timeX1000
}

// Target returns the interpolated setpoint in °C at offset ms from start.
// Out-of-range offsets return 0.
func (t *Timeline) Target(offsetX1000 int32) float32 {
	if offsetX1000 < 0 {
		return 0
	}
	for i := 1; i < len(t.points); i++ {
		p0, p1 := t.points[i-1], t.points[i]
		if p0.timeX1000 <= offsetX1000 && p1.timeX1000 >= offsetX1000 {
			deltaTime := p1.timeX1000 - p0.timeX1000
			if deltaTime <= 0 {
				return float32(p1.valueX100) / timelineYMult
			}
			scaled := p0.valueX100 + (p1.valueX100-p0.valueX100)*(offsetX1000-p0.timeX1000)/deltaTime
			return float32(scaled) / timelineYMult
		}
	}
	return 0
}

// Rate returns the segment slope in °C/s at offset ms from start.
// Out-of-range offsets return 0.
func (t *Timeline) Rate(offsetX1000 int32) float32 {
	if offsetX1000 < 0 {
		return 0
	}
	for i := 1; i < len(t.points); i++ {
		if t.points[i].timeX1000 >= offsetX1000 {
			return t.ratesCPerS[i-1]
		}
	}
	return 0
}
