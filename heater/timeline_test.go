// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package heater

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solderworks/hotplate/pb"
)

func leadedProfile() *pb.Profile {
	return &pb.Profile{
		Id:   1,
		Name: "leaded",
		Segments: []*pb.Segment{
			{Target: 150, Duration: 90},
			{Target: 165, Duration: 30},
			{Target: 220, Duration: 60},
		},
	}
}

func TestTimelineLoad(t *testing.T) {
	tl := &Timeline{}
	tl.Load(leadedProfile())
	require.Equal(t, int32(180000), tl.MaxTimeX1000())

	// Start point.
	require.InDelta(t, StartTemperature, tl.Target(0), 0.01)
	// End of first ramp.
	require.InDelta(t, 150, tl.Target(90000), 0.01)
	// Midway through the first ramp: 25 + 125/2.
	require.InDelta(t, 87.5, tl.Target(45000), 0.5)
	// Final target.
	require.InDelta(t, 220, tl.Target(180000), 0.01)
}

func TestTimelineRates(t *testing.T) {
	tl := &Timeline{}
	tl.Load(leadedProfile())
	require.InDelta(t, (150.0-25.0)/90.0, tl.Rate(1000), 0.01)
	require.InDelta(t, 0.5, tl.Rate(100000), 0.01)
	require.InDelta(t, 55.0/60.0, tl.Rate(150000), 0.01)
}

func TestTimelineOutOfRange(t *testing.T) {
	tl := &Timeline{}
	tl.Load(leadedProfile())
	require.Equal(t, float32(0), tl.Target(-1))
	require.Equal(t, float32(0), tl.Target(180001))
	require.Equal(t, float32(0), tl.Rate(-5))
	require.Equal(t, float32(0), tl.Rate(999999))
}

func TestTimelineZeroDurationSegment(t *testing.T) {
	tl := &Timeline{}
	tl.Load(&pb.Profile{Segments: []*pb.Segment{
		{Target: 100, Duration: 10},
		{Target: 50, Duration: 0}, // instant drop
		{Target: 50, Duration: 10},
	}})
	// The instant drop clamps to the -100 °C/s rate.
	require.InDelta(t, -100, tl.ratesCPerS[1], 0.01)
	// At the step boundary the earlier segment wins; just past it the
	// post-drop level applies.
	require.InDelta(t, 100, tl.Target(10000), 0.01)
	require.InDelta(t, 50, tl.Target(10001), 0.01)
	require.Equal(t, int32(20000), tl.MaxTimeX1000())
}

func TestTimelineEmptyProfile(t *testing.T) {
	tl := &Timeline{}
	tl.Load(&pb.Profile{})
	require.Equal(t, int32(0), tl.MaxTimeX1000())
	require.Equal(t, float32(0), tl.Target(1000))
}
