// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package heater

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solderworks/hotplate/pb"
	"github.com/solderworks/hotplate/power"
)

type fakeHead struct {
	status pb.HeadStatus
	temp   float32
	params *pb.HeadParams
}

func (h *fakeHead) Status() pb.HeadStatus { return h.status }
func (h *fakeHead) Temperature() float32  { return h.temp }
func (h *fakeHead) Params() (*pb.HeadParams, bool) {
	if h.status != pb.HeadConnected || h.params == nil {
		return nil, false
	}
	return h.params, true
}

type fakePower struct {
	status   pb.PowerStatus
	targetMW uint32
	maxMW    uint32
	ticks    int
}

func (p *fakePower) Status() pb.PowerStatus { return p.status }
func (p *fakePower) SysTick()               { p.ticks++ }
func (p *fakePower) SetPowerMW(mw uint32)   { p.targetMW = mw }
func (p *fakePower) MaxPowerMW() uint32     { return p.maxMW }
func (p *fakePower) PeakMV() uint32         { return 9000 }
func (p *fakePower) PeakMA() uint32         { return 3000 }
func (p *fakePower) DutyX1000() uint32      { return 500 }
func (p *fakePower) LoadMohms() uint32      { return 3000 }

type coreHarness struct {
	core *Core
	head *fakeHead
	pwr  *fakePower
	now  uint32
}

func newHarness() *coreHarness {
	h := &coreHarness{
		head: &fakeHead{status: pb.HeadConnected, temp: 25, params: pb.DefaultHeadParams()},
		pwr:  &fakePower{status: pb.PwrOK, maxMW: 40000},
	}
	h.now = 10000
	h.core = New(h.head, h.pwr, func() uint32 { return h.now }, nil)
	return h
}

// tick advances the fake clock by one period and runs the core.
func (h *coreHarness) tick() {
	h.now += TickMS
	h.core.Tick()
}

func TestHealthTable(t *testing.T) {
	h := newHarness()
	data := []struct {
		power pb.PowerStatus
		head  pb.HeadStatus
		want  pb.HealthStatus
	}{
		{pb.PwrOK, pb.HeadConnected, pb.DevOK},
		{pb.PwrTransition, pb.HeadConnected, pb.DevOK},
		{pb.PwrOK, pb.HeadInitializing, pb.DevNotReady},
		{pb.PwrStartup, pb.HeadConnected, pb.DevNotReady},
		{pb.PwrOff, pb.HeadDisconnected, pb.DevNotReady},
		{pb.PwrFailure, pb.HeadConnected, pb.DevFailure},
		{pb.PwrOK, pb.HeadError, pb.DevFailure},
	}
	for _, line := range data {
		h.pwr.status = line.power
		h.head.status = line.head
		require.Equal(t, line.want, h.core.Health(), "%s + %s", line.power, line.head)
	}
}

func TestTaskStartPreconditions(t *testing.T) {
	h := newHarness()
	h.head.status = pb.HeadDisconnected
	require.False(t, h.core.TaskStart(1, nil), "no head")

	h.head.status = pb.HeadConnected
	h.head.params = nil
	require.False(t, h.core.TaskStart(1, nil), "no params")

	h.head.params = pb.DefaultHeadParams()
	require.True(t, h.core.TaskStart(1, nil))
	require.False(t, h.core.TaskStart(2, nil), "already active")
	h.core.TaskStop()
	require.False(t, h.core.IsTaskActive())
}

func TestControlLoopDrivesPower(t *testing.T) {
	h := newHarness()
	require.True(t, h.core.TaskStart(pb.HistoryIDAdrcTest, nil))
	h.core.SetTemperature(150, 0)
	h.core.TemperatureControlOn()

	h.tick()
	require.Greater(t, h.pwr.targetMW, uint32(0), "cold pad must get power")
	require.Equal(t, 1, h.pwr.ticks, "power SysTick driven from core tick")

	// Stopping the task drops the power request to zero.
	h.core.TaskStop()
	require.Equal(t, uint32(0), h.pwr.targetMW, "stop forces power off")
}

func TestHistoryRecordsPerSecond(t *testing.T) {
	h := newHarness()
	require.True(t, h.core.TaskStart(7, nil))
	for i := 0; i < 100; i++ { // 5 s
		h.head.temp += 1.0
		h.tick()
	}
	chunk := h.core.HistoryChunk(0, 0) // stale version: full replay
	require.Equal(t, int32(7), chunk.Type)
	require.NotEmpty(t, chunk.Data)
	require.Equal(t, float32(0), chunk.Data[0].X)
	// x strictly non-decreasing, covering the 5 task seconds.
	last := float32(-1)
	for _, p := range chunk.Data {
		require.GreaterOrEqual(t, p.X, last)
		last = p.X
	}
	require.Equal(t, float32(5), last)
}

func TestHistoryVersionMismatchRestarts(t *testing.T) {
	h := newHarness()
	require.True(t, h.core.TaskStart(1, nil))
	for i := 0; i < 60; i++ {
		h.head.temp += 2
		h.tick()
	}
	ver := h.core.HistoryChunk(0, 0).Version

	// Matching version + far offset: empty tail.
	require.Empty(t, h.core.HistoryChunk(ver, 1e6).Data)
	// Matching version + offset 0: full data.
	require.NotEmpty(t, h.core.HistoryChunk(ver, 0).Data)
	// Mismatched version ignores the offset.
	require.NotEmpty(t, h.core.HistoryChunk(ver-1, 1e6).Data)
}

func TestTaskIteratorReceivesTaskTime(t *testing.T) {
	h := newHarness()
	h.tick() // settle prevTick on the period grid
	var taskTimes []uint32
	require.True(t, h.core.TaskStart(1, func(dtMS, taskTimeMS uint32) {
		require.Equal(t, uint32(TickMS), dtMS)
		taskTimes = append(taskTimes, taskTimeMS)
	}))
	h.tick()
	h.tick()
	h.tick()
	require.Equal(t, []uint32{TickMS, 2 * TickMS, 3 * TickMS}, taskTimes)
}

func TestHealthLossStopsTask(t *testing.T) {
	h := newHarness()
	stops := 0
	h.core.SetHealthLossHook(func() { stops++ })
	require.True(t, h.core.TaskStart(1, nil))

	h.pwr.status = pb.PwrFailure
	h.tick()
	require.Equal(t, 1, stops)
	// The hook fires only while the task is still active.
	h.core.TaskStop()
	h.tick()
	require.Equal(t, 1, stops)
}

func TestTransitionPausesControl(t *testing.T) {
	h := newHarness()
	require.True(t, h.core.TaskStart(1, nil))
	h.core.SetTemperature(100, 0)
	h.core.TemperatureControlOn()
	h.pwr.status = pb.PwrTransition
	h.pwr.targetMW = 12345
	h.tick()
	// Health stays DevOK but the loop does not run.
	require.Equal(t, uint32(12345), h.pwr.targetMW)
}

func TestMeasurementAccessors(t *testing.T) {
	h := newHarness()
	require.InDelta(t, 3.0, h.core.Resistance(), 0.001)
	require.InDelta(t, 9.0, h.core.Volts(), 0.001)
	require.InDelta(t, 3.0, h.core.Amperes(), 0.001)
	require.InDelta(t, 13.5, h.core.Power(), 0.01)
	_ = power.UnknownResistance
}
