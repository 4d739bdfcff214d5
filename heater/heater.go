// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package heater runs the temperature control loop.
//
// The core ticks every 50 ms: it reads the head temperature, advances the
// ADRC controller towards the setpoint, and forwards the resulting power
// request to the power FSM. While a user task is active it also records one
// history point per task second and drives the task's custom iterator.
//
// The core owns the controller, the task lifecycle and the history
// exclusively; head and power are only read through their interfaces.
package heater // import "github.com/solderworks/hotplate/heater"

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/solderworks/hotplate/adrc"
	"github.com/solderworks/hotplate/clock"
	"github.com/solderworks/hotplate/history"
	"github.com/solderworks/hotplate/pb"
	"github.com/solderworks/hotplate/power"
)

// TickMS is the control loop period.
const TickMS = 50

// History delta-encoding parameters installed at task start: land a point
// every 2 s or every 1 °C; the x threshold becomes x/400 once that exceeds
// 2 s (from 1200 s on).
const (
	historyXThreshold  = 2
	historyYMult       = 100
	historyXScaleAfter = 400
)

// Head is the slice of the head FSM the core reads.
type Head interface {
	Status() pb.HeadStatus
	Temperature() float32
	Params() (*pb.HeadParams, bool)
}

// Power is the slice of the power FSM the core drives.
type Power interface {
	Status() pb.PowerStatus
	SysTick()
	SetPowerMW(mw uint32)
	MaxPowerMW() uint32
	PeakMV() uint32
	PeakMA() uint32
	DutyX1000() uint32
	LoadMohms() uint32
}

// TaskIterator is a task's per-tick hook, called with the time since the
// previous tick and the time since task start.
type TaskIterator func(dtMS, taskTimeMS uint32)

// Core is the heater control core.
type Core struct {
	mu    sync.Mutex
	head  Head
	power Power
	log   logrus.FieldLogger
	now   func() uint32

	adrc adrc.Controller
	hist *history.Recorder

	tempControl atomic.Bool
	taskActive  atomic.Bool
	setpoint    atomic.Uint32 // float32 bits
	rate        atomic.Uint32 // float32 bits

	taskIter        TaskIterator
	taskStartTS     uint32
	prevTickMS      uint32
	histVersion     int32
	histTaskID      int32
	histLastRecorded uint32

	// onHealthLoss is invoked (outside the lock) when health leaves
	// DevOK while a task runs; the activity FSM uses it to stop the
	// task.
	onHealthLoss func()
}

// New returns a core over head and power. now is the millisecond clock;
// nil defaults to the system clock.
func New(h Head, p Power, now func() uint32, log logrus.FieldLogger) *Core {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if now == nil {
		now = clock.NowMS
	}
	c := &Core{
		head:  h,
		power: p,
		log:   log,
		now:   now,
		hist:  history.New(historyXThreshold, historyYMult, historyXScaleAfter),
	}
	c.prevTickMS = now() - TickMS
	return c
}

// SetHealthLossHook installs the callback fired when device health leaves
// DevOK mid-task.
func (c *Core) SetHealthLossHook(fn func()) {
	c.onHealthLoss = fn
}

// Health derives the aggregate device health.
func (c *Core) Health() pb.HealthStatus {
	ps := c.power.Status()
	hs := c.head.Status()
	if (ps == pb.PwrOK || ps == pb.PwrTransition) && hs == pb.HeadConnected {
		return pb.DevOK
	}
	if ps >= pb.PwrFailure || hs >= pb.HeadError {
		return pb.DevFailure
	}
	return pb.DevNotReady
}

// Tick advances the control loop by one period.
func (c *Core) Tick() {
	c.power.SysTick()

	if c.Health() != pb.DevOK {
		if c.taskActive.Load() && c.onHealthLoss != nil {
			c.onHealthLoss()
		}
		c.mu.Lock()
		c.prevTickMS = c.now()
		c.mu.Unlock()
		return
	}
	if c.power.Status() != pb.PwrOK {
		// PD contract in transition: hold the controller.
		c.mu.Lock()
		c.prevTickMS = c.now()
		c.mu.Unlock()
		return
	}

	c.mu.Lock()

	now := c.now()
	dtMS := now - c.prevTickMS
	c.prevTickMS = now

	if c.tempControl.Load() {
		dt := float32(dtMS) / 1000
		u := c.adrc.Iterate(c.head.Temperature(), c.Setpoint(), c.MaxPower(), dt)
		c.power.SetPowerMW(uint32(u * 1000))
	}

	if !c.taskActive.Load() {
		c.mu.Unlock()
		return
	}

	taskTimeMS := now - c.taskStartTS
	if seconds := taskTimeMS / 1000; seconds > c.histLastRecorded {
		c.hist.Add(seconds, int32(math.Round(float64(c.head.Temperature())*historyYMult)))
		c.histLastRecorded = seconds
	}

	iter := c.taskIter
	c.mu.Unlock()

	// Outside the lock: iterators call back into TaskStop and friends.
	if iter != nil {
		iter(dtMS, taskTimeMS)
	}
}

// TaskStart begins a user task. It fails if a task is already running, no
// head is attached, or the head parameters cannot be loaded.
func (c *Core) TaskStart(taskID int32, iter TaskIterator) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.taskActive.Load() {
		return false
	}
	if c.head.Status() != pb.HeadConnected {
		return false
	}
	if !c.loadParamsLocked() {
		return false
	}

	c.hist.Reset()
	c.hist.SetParams(historyXThreshold, historyYMult, historyXScaleAfter)
	c.taskStartTS = c.now()
	c.histLastRecorded = 0
	c.histTaskID = taskID
	c.histVersion++
	c.hist.Add(0, int32(math.Round(float64(c.head.Temperature())*historyYMult)))

	c.taskIter = iter
	c.taskActive.Store(true)
	c.log.Infof("heater: task %d started", taskID)
	return true
}

// TaskStop ends the running task, forcing the heater off.
func (c *Core) TaskStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskActive.Store(false)
	c.taskIter = nil
	c.tempControl.Store(false)
	c.power.SetPowerMW(0)
}

// IsTaskActive reports whether a user task runs.
func (c *Core) IsTaskActive() bool {
	return c.taskActive.Load()
}

// TemperatureControlOn reloads the controller parameters, re-seats the
// observer on the current temperature and enables closed-loop control.
func (c *Core) TemperatureControlOn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadParamsLocked()
	c.adrc.ResetTo(c.head.Temperature())
	c.tempControl.Store(true)
}

// TemperatureControlOff disables closed-loop control and forces power off.
func (c *Core) TemperatureControlOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempControl.Store(false)
	c.power.SetPowerMW(0)
}

// loadParamsLocked pulls the ADRC tuning from the attached head.
func (c *Core) loadParamsLocked() bool {
	params, ok := c.head.Params()
	if !ok || params.Adrc == nil {
		return false
	}
	a := params.Adrc
	c.adrc.SetParams(a.B0, a.Response, a.N, a.M)
	return true
}

// SetTemperature updates the control setpoint in °C; rate carries the
// profile slope in °C/s for consumers that model the trajectory.
func (c *Core) SetTemperature(temp, rate float32) {
	c.setpoint.Store(math.Float32bits(temp))
	c.rate.Store(math.Float32bits(rate))
}

// Setpoint returns the control setpoint in °C.
func (c *Core) Setpoint() float32 {
	return math.Float32frombits(c.setpoint.Load())
}

// SetpointRate returns the last commanded setpoint slope in °C/s.
func (c *Core) SetpointRate() float32 {
	return math.Float32frombits(c.rate.Load())
}

// SetPower requests constant open-loop heater power in watts.
func (c *Core) SetPower(watts float32) {
	if watts < 0 {
		watts = 0
	}
	c.power.SetPowerMW(uint32(watts * 1000))
}

// Temperature returns the head temperature in °C.
func (c *Core) Temperature() float32 {
	return c.head.Temperature()
}

// MaxPower returns the present power ceiling in watts.
func (c *Core) MaxPower() float32 {
	return float32(c.power.MaxPowerMW()) * 0.001
}

// Power returns the currently delivered power in watts: measured volts ×
// amperes scaled by the duty cycle.
func (c *Core) Power() float32 {
	return c.Volts() * c.Amperes() * float32(c.power.DutyX1000()) * 0.001
}

// Volts returns the measured rail voltage.
func (c *Core) Volts() float32 {
	return float32(c.power.PeakMV()) * 0.001
}

// Amperes returns the measured drain current.
func (c *Core) Amperes() float32 {
	return float32(c.power.PeakMA()) * 0.001
}

// DutyCycle returns the PWM duty in [0, 1].
func (c *Core) DutyCycle() float32 {
	return float32(c.power.DutyX1000()) * 0.001
}

// Resistance returns the measured load resistance in ohms, +Inf while
// unknown.
func (c *Core) Resistance() float32 {
	mohms := c.power.LoadMohms()
	if mohms == power.UnknownResistance {
		return float32(math.Inf(1))
	}
	return float32(mohms) * 0.001
}

// HistoryChunk serves one page of task history.
//
// A client whose version does not match the recording restarts from the
// beginning; a matching client gets the points at x ≥ from.
func (c *Core) HistoryChunk(clientVersion int32, from float32) *pb.HistoryChunk {
	c.mu.Lock()
	version := c.histVersion
	taskID := c.histTaskID
	c.mu.Unlock()

	fromX := int32(math.Round(float64(from)))
	if version != clientVersion {
		fromX = math.MinInt32
	}
	chunk := &pb.HistoryChunk{Type: taskID, Version: version}
	for _, p := range c.hist.ChunkFrom(fromX) {
		chunk.Data = append(chunk.Data, &pb.HistoryPoint{
			X: float32(p.X),
			Y: float32(p.Y) / historyYMult,
		})
	}
	return chunk
}
