// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package activity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solderworks/hotplate/heater"
	"github.com/solderworks/hotplate/pb"
)

type fakeHeater struct {
	temp        float32
	power       float32
	setpoint    float32
	rate        float32
	watts       float32
	active      bool
	rejectStart bool
	controlOn   bool
	iter        heater.TaskIterator
	lastTaskID  int32
}

func (h *fakeHeater) TaskStart(id int32, iter heater.TaskIterator) bool {
	if h.rejectStart || h.active {
		return false
	}
	h.active = true
	h.lastTaskID = id
	h.iter = iter
	return true
}

func (h *fakeHeater) TaskStop() {
	h.active = false
	h.iter = nil
	h.controlOn = false
	h.watts = 0
}

func (h *fakeHeater) TemperatureControlOn()  { h.controlOn = true }
func (h *fakeHeater) TemperatureControlOff() { h.controlOn = false }
func (h *fakeHeater) SetTemperature(temp, rate float32) {
	h.setpoint = temp
	h.rate = rate
}
func (h *fakeHeater) SetPower(watts float32) { h.watts = watts }
func (h *fakeHeater) Temperature() float32   { return h.temp }
func (h *fakeHeater) Power() float32         { return h.power }

type fakeHead struct {
	params *pb.HeadParams
}

func (h *fakeHead) Params() (*pb.HeadParams, bool) {
	if h.params == nil {
		return nil, false
	}
	return h.params, true
}

func (h *fakeHead) SetParams(p *pb.HeadParams) bool {
	h.params = p
	return true
}

type fakeProfiles struct {
	profile *pb.Profile
}

func (p *fakeProfiles) SelectedProfile() (*pb.Profile, bool) {
	if p.profile == nil {
		return nil, false
	}
	return p.profile, true
}

type fakePairing struct {
	enabled  int
	disabled int
}

func (p *fakePairing) PairingEnable()  { p.enabled++ }
func (p *fakePairing) PairingDisable() { p.disabled++ }

type harness struct {
	fsm      *FSM
	heater   *fakeHeater
	head     *fakeHead
	profiles *fakeProfiles
	pairing  *fakePairing
	timerFn  func()
}

func newHarness() *harness {
	h := &harness{
		heater:   &fakeHeater{temp: 25},
		head:     &fakeHead{params: pb.DefaultHeadParams()},
		profiles: &fakeProfiles{profile: threeSegmentProfile()},
		pairing:  &fakePairing{},
	}
	h.fsm = New(h.heater, h.head, h.profiles, h.pairing, nil)
	h.fsm.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		h.timerFn = fn
		return time.NewTimer(time.Hour)
	}
	h.fsm.Start()
	return h
}

func threeSegmentProfile() *pb.Profile {
	return &pb.Profile{
		Id:   4,
		Name: "lead-free",
		Segments: []*pb.Segment{
			{Target: 150, Duration: 90},
			{Target: 165, Duration: 30},
			{Target: 220, Duration: 60},
		},
	}
}

// drain pumps queued commands through the FSM until the queue is empty.
func (h *harness) drain() {
	for {
		select {
		case cmd := <-h.fsm.queue:
			h.fsm.Dispatch(cmd)
		default:
			return
		}
	}
}

func TestInitGoesIdle(t *testing.T) {
	h := newHarness()
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
}

// A three segment 180 s profile runs to completion.
func TestReflowCompletesNormally(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdReflow})
	require.Equal(t, pb.ActivityReflow, h.fsm.State())
	require.True(t, h.heater.active)
	require.Equal(t, int32(4), h.heater.lastTaskID)
	require.True(t, h.heater.controlOn)
	require.Equal(t, int32(180000), h.fsm.timeline.MaxTimeX1000())

	// Drive the task iterator through the full profile at the heater
	// tick rate.
	for ms := uint32(50); ms < 180000; ms += 50 {
		h.heater.iter(50, ms)
	}
	require.InDelta(t, 220, h.heater.setpoint, 1, "end of profile setpoint")

	// The tick at 180 s finishes the task.
	h.heater.iter(50, 180000)
	require.False(t, h.heater.active)
	h.drain()
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
}

func TestReflowWithoutProfileAborts(t *testing.T) {
	h := newHarness()
	h.profiles.profile = nil
	h.fsm.Dispatch(Command{Kind: CmdReflow})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
	require.False(t, h.heater.active)
}

func TestReflowTaskRejectionAborts(t *testing.T) {
	h := newHarness()
	h.heater.rejectStart = true
	h.fsm.Dispatch(Command{Kind: CmdReflow})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
}

func TestReflowStopsByButton(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdReflow})
	h.fsm.Dispatch(Command{Kind: CmdButton, Button: Pressed1x})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
	require.False(t, h.heater.active, "exit hook must stop the task")
}

func TestLongPressStartsReflow(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdButton, Button: LongPress})
	require.Equal(t, pb.ActivityReflow, h.fsm.State())
}

func TestSensorBake(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdSensorBake, Watts: 12.5})
	require.Equal(t, pb.ActivitySensorBake, h.fsm.State())
	require.Equal(t, float32(12.5), h.heater.watts)
	require.Equal(t, pb.HistoryIDSensorBake, h.heater.lastTaskID)

	// Retarget without leaving the state.
	h.fsm.Dispatch(Command{Kind: CmdSensorBake, Watts: 20})
	require.Equal(t, pb.ActivitySensorBake, h.fsm.State())
	require.Equal(t, float32(20), h.heater.watts)

	h.fsm.Dispatch(Command{Kind: CmdStop})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
	require.False(t, h.heater.active)
}

func TestAdrcTestRetarget(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdAdrcTest, Temperature: 150})
	require.Equal(t, pb.ActivityAdrcTest, h.fsm.State())
	require.Equal(t, float32(150), h.heater.setpoint)
	require.True(t, h.heater.controlOn)

	h.fsm.Dispatch(Command{Kind: CmdAdrcTest, Temperature: 180})
	require.Equal(t, pb.ActivityAdrcTest, h.fsm.State())
	require.Equal(t, float32(180), h.heater.setpoint)
}

func TestStepResponseIdentifiesPlant(t *testing.T) {
	h := newHarness()
	h.heater.power = 0
	h.fsm.Dispatch(Command{Kind: CmdStepResponse, Watts: 10})
	require.Equal(t, pb.ActivityStepResponse, h.fsm.State())
	require.Equal(t, float32(10), h.heater.watts)

	// First order plant: T(t) = 25 + 100·(1 − e^(−t/30)), 10 W step.
	h.heater.power = 10
	for i := uint32(1); i <= 200; i++ {
		h.heater.temp = 25 + 100*(1-float32(math.Exp(-float64(i)/30)))
		h.heater.iter(50, i*1000)
		if !h.heater.active {
			break
		}
	}
	require.False(t, h.heater.active, "identification must finish")
	h.drain()
	require.Equal(t, pb.ActivityIdle, h.fsm.State())

	params := h.head.params
	require.InDelta(t, 30, params.Adrc.Response, 6, "t63 of a tau=30 plant")
	require.InDelta(t, 0.21, params.Adrc.B0, 0.06)
}

func TestBondingWindow(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdButton, Button: Pressed5x})
	require.Equal(t, pb.ActivityBonding, h.fsm.State())
	require.Equal(t, 1, h.pairing.enabled)

	// The timeout posts BondOff through the FIFO.
	require.NotNil(t, h.timerFn)
	h.timerFn()
	h.drain()
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
	require.Equal(t, 1, h.pairing.disabled)
}

func TestBondingExitByButton(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdButton, Button: Pressed5x})
	h.fsm.Dispatch(Command{Kind: CmdButton, Button: Pressed1x})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
	require.Equal(t, 1, h.pairing.disabled)
}

func TestFifoOverflowDropsNewest(t *testing.T) {
	h := newHarness()
	for i := 0; i < FifoCapacity+5; i++ {
		h.fsm.Enqueue(Command{Kind: CmdButton, Button: Pressed1x})
	}
	require.Equal(t, FifoCapacity, len(h.fsm.queue))
}

func TestUnknownEventsStay(t *testing.T) {
	h := newHarness()
	h.fsm.Dispatch(Command{Kind: CmdBondOff})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
	h.fsm.Dispatch(Command{Kind: CmdButton, Button: Pressed3x})
	require.Equal(t, pb.ActivityIdle, h.fsm.State())
}
