// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package activity is the top level state machine of the device: Idle and
// the user-invoked tasks (Reflow, SensorBake, AdrcTest, StepResponse) plus
// the BLE Bonding window.
//
// Commands from the RPC surface and the button arrive through a bounded
// FIFO and are dispatched one at a time under a mutex, so transitions are
// never re-entered. Every task state forces the heater off in its exit
// hook; aborted entries fall back to Idle without side effects.
package activity // import "github.com/solderworks/hotplate/activity"

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solderworks/hotplate/heater"
	"github.com/solderworks/hotplate/pb"
)

// FifoCapacity bounds the command queue; overflow drops the newest command.
const FifoCapacity = 16

// BondingWindow is how long pairing stays open.
const BondingWindow = 15 * time.Second

// stepResponseMaxSeconds bounds the identification log.
const stepResponseMaxSeconds = 1000

// Heater is the slice of the heater core the FSM drives.
type Heater interface {
	TaskStart(taskID int32, iter heater.TaskIterator) bool
	TaskStop()
	TemperatureControlOn()
	TemperatureControlOff()
	SetTemperature(temp, rate float32)
	SetPower(watts float32)
	Temperature() float32
	Power() float32
}

// HeadParams is the head parameter store used by the step response
// identification.
type HeadParams interface {
	Params() (*pb.HeadParams, bool)
	SetParams(params *pb.HeadParams) bool
}

// ProfileSource serves the selected reflow profile.
type ProfileSource interface {
	SelectedProfile() (*pb.Profile, bool)
}

// Pairing opens and closes the BLE bonding window.
type Pairing interface {
	PairingEnable()
	PairingDisable()
}

type stepEntry struct {
	temp  float32
	power float32
}

// FSM is the activity machine. Enqueue is safe from any goroutine; the
// dispatch loop serializes everything else.
type FSM struct {
	state atomic.Int32

	mu       sync.Mutex
	queue    chan Command
	heater   Heater
	head     HeadParams
	profiles ProfileSource
	pairing  Pairing
	log      logrus.FieldLogger

	// afterFunc schedules the bonding timeout, swappable in tests.
	afterFunc func(d time.Duration, fn func()) *time.Timer

	timeline  heater.Timeline
	stepLog   []stepEntry
	bakeTemp  float32
	bondTimer *time.Timer

	// pendingWatts / pendingTemp carry the payload of the command that
	// caused the state entry.
	pendingWatts float32
	pendingTemp  float32
}

// New returns an FSM in the Init state. Call Start to bring it to Idle and
// Run to consume commands.
func New(h Heater, head HeadParams, profiles ProfileSource, pairing Pairing, log logrus.FieldLogger) *FSM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := &FSM{
		queue:     make(chan Command, FifoCapacity),
		heater:    h,
		head:      head,
		profiles:  profiles,
		pairing:   pairing,
		log:       log,
		afterFunc: time.AfterFunc,
	}
	f.state.Store(int32(pb.ActivityInit))
	return f
}

// State returns the wire-stable activity state.
func (f *FSM) State() pb.ActivityID {
	return pb.ActivityID(f.state.Load())
}

// Start performs the Init transition.
func (f *FSM) Start() {
	f.mu.Lock()
	f.transition(pb.ActivityIdle)
	f.mu.Unlock()
}

// Enqueue posts a command. On overflow the command is dropped with a
// warning; producers never block.
func (f *FSM) Enqueue(cmd Command) {
	select {
	case f.queue <- cmd:
	default:
		f.log.Warnf("activity: queue full, dropping %s", cmd.Kind)
	}
}

// Run consumes commands until ctx is done. Meant to run as the dedicated
// consumer goroutine.
func (f *FSM) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-f.queue:
			f.Dispatch(cmd)
		}
	}
}

// Dispatch processes one command to completion.
func (f *FSM) Dispatch(cmd Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if next := f.onEvent(cmd); next != f.State() {
		f.transition(next)
	}
}

// transition runs exit and entry hooks, following redirects from aborted
// entries. Called with mu held.
func (f *FSM) transition(to pb.ActivityID) {
	for {
		f.onExit()
		f.state.Store(int32(to))
		f.log.Infof("activity: state %s", to)
		next := f.onEnter()
		if next == to {
			return
		}
		to = next
	}
}

func (f *FSM) onEnter() pb.ActivityID {
	switch f.State() {
	case pb.ActivityInit:
		return pb.ActivityIdle
	case pb.ActivityReflow:
		return f.enterReflow()
	case pb.ActivitySensorBake:
		return f.enterSensorBake()
	case pb.ActivityAdrcTest:
		return f.enterAdrcTest()
	case pb.ActivityStepResponse:
		return f.enterStepResponse()
	case pb.ActivityBonding:
		return f.enterBonding()
	}
	return f.State()
}

func (f *FSM) onExit() {
	switch f.State() {
	case pb.ActivityReflow, pb.ActivitySensorBake, pb.ActivityAdrcTest, pb.ActivityStepResponse:
		f.heater.TaskStop()
	case pb.ActivityBonding:
		if f.bondTimer != nil {
			f.bondTimer.Stop()
			f.bondTimer = nil
		}
		f.pairing.PairingDisable()
	}
}

func (f *FSM) onEvent(cmd Command) pb.ActivityID {
	state := f.State()
	switch state {
	case pb.ActivityIdle:
		switch cmd.Kind {
		case CmdReflow:
			return pb.ActivityReflow
		case CmdSensorBake:
			f.pendingWatts = cmd.Watts
			return pb.ActivitySensorBake
		case CmdAdrcTest:
			f.pendingTemp = cmd.Temperature
			return pb.ActivityAdrcTest
		case CmdStepResponse:
			f.pendingWatts = cmd.Watts
			return pb.ActivityStepResponse
		case CmdButton:
			switch cmd.Button {
			case LongPress:
				return pb.ActivityReflow
			case Pressed5x:
				return pb.ActivityBonding
			}
		default:
			f.logUnknown(cmd)
		}
	case pb.ActivityReflow:
		switch cmd.Kind {
		case CmdStop:
			if cmd.Success {
				f.log.Info("activity: reflow completed")
			} else {
				f.log.Info("activity: reflow terminated")
			}
			return pb.ActivityIdle
		case CmdButton:
			if cmd.Button == Pressed1x {
				return pb.ActivityIdle
			}
		default:
			f.logUnknown(cmd)
		}
	case pb.ActivitySensorBake:
		switch cmd.Kind {
		case CmdStop:
			return pb.ActivityIdle
		case CmdSensorBake:
			// Retarget without restarting the task.
			f.heater.SetPower(cmd.Watts)
		case CmdButton:
			if cmd.Button == Pressed1x {
				return pb.ActivityIdle
			}
		default:
			f.logUnknown(cmd)
		}
	case pb.ActivityAdrcTest:
		switch cmd.Kind {
		case CmdStop:
			return pb.ActivityIdle
		case CmdAdrcTest:
			f.heater.SetTemperature(cmd.Temperature, 0)
		case CmdButton:
			if cmd.Button == Pressed1x {
				return pb.ActivityIdle
			}
		default:
			f.logUnknown(cmd)
		}
	case pb.ActivityStepResponse:
		switch cmd.Kind {
		case CmdStop:
			return pb.ActivityIdle
		case CmdButton:
			if cmd.Button == Pressed1x {
				return pb.ActivityIdle
			}
		default:
			f.logUnknown(cmd)
		}
	case pb.ActivityBonding:
		switch cmd.Kind {
		case CmdBondOff:
			return pb.ActivityIdle
		case CmdButton:
			if cmd.Button == Pressed1x {
				return pb.ActivityIdle
			}
		default:
			f.logUnknown(cmd)
		}
	}
	return state
}

func (f *FSM) logUnknown(cmd Command) {
	f.log.Infof("activity: unhandled %s in %s", cmd.Kind, f.State())
}

func (f *FSM) enterReflow() pb.ActivityID {
	profile, ok := f.profiles.SelectedProfile()
	if !ok {
		f.log.Warn("activity: no profile selected")
		return pb.ActivityIdle
	}
	f.timeline.Load(profile)
	if !f.heater.TaskStart(profile.Id, f.reflowIterator) {
		f.log.Warn("activity: reflow task rejected")
		return pb.ActivityIdle
	}
	f.heater.TemperatureControlOn()
	return pb.ActivityReflow
}

// reflowIterator runs on the heater tick. The timeline is immutable while
// the task is active.
func (f *FSM) reflowIterator(dtMS, taskTimeMS uint32) {
	if int32(taskTimeMS) >= f.timeline.MaxTimeX1000() {
		f.heater.TaskStop()
		f.Enqueue(Command{Kind: CmdStop, Success: true})
		return
	}
	offset := int32(taskTimeMS)
	f.heater.SetTemperature(f.timeline.Target(offset), f.timeline.Rate(offset))
}

func (f *FSM) enterSensorBake() pb.ActivityID {
	f.bakeTemp = f.heater.Temperature()
	if !f.heater.TaskStart(pb.HistoryIDSensorBake, f.bakeIterator) {
		return pb.ActivityIdle
	}
	f.heater.SetPower(f.pendingWatts)
	return pb.ActivitySensorBake
}

// bakeIterator watches for abnormal temperature jitter; it logs but never
// aborts.
func (f *FSM) bakeIterator(dtMS, taskTimeMS uint32) {
	t := f.heater.Temperature()
	if d := t - f.bakeTemp; d > 5 || d < -5 {
		f.log.Errorf("activity: abnormal temperature jitter %.1f -> %.1f", f.bakeTemp, t)
	}
	f.bakeTemp = t
}

func (f *FSM) enterAdrcTest() pb.ActivityID {
	f.heater.SetTemperature(f.pendingTemp, 0)
	if !f.heater.TaskStart(pb.HistoryIDAdrcTest, nil) {
		return pb.ActivityIdle
	}
	f.heater.TemperatureControlOn()
	return pb.ActivityAdrcTest
}

func (f *FSM) enterStepResponse() pb.ActivityID {
	f.stepLog = f.stepLog[:0]
	f.stepLog = append(f.stepLog, stepEntry{temp: f.heater.Temperature()})
	if !f.heater.TaskStart(pb.HistoryIDStepResponse, f.stepIterator) {
		return pb.ActivityIdle
	}
	f.heater.SetPower(f.pendingWatts)
	return pb.ActivityStepResponse
}

// stepIterator records one (temperature, power) entry per task second and,
// once the temperature has been stable within 1 °C for 10 s, identifies
// the first order plant: response time t63 and control gain b0.
func (f *FSM) stepIterator(dtMS, taskTimeMS uint32) {
	if taskTimeMS < uint32(len(f.stepLog))*1000 {
		return
	}
	f.stepLog = append(f.stepLog, stepEntry{temp: f.heater.Temperature(), power: f.heater.Power()})

	if len(f.stepLog) > stepResponseMaxSeconds {
		f.heater.TaskStop()
		f.Enqueue(Command{Kind: CmdStop})
		return
	}
	// Skip the transport delay before looking for stability.
	if len(f.stepLog) <= 10 {
		return
	}
	last := f.stepLog[len(f.stepLog)-1].temp
	ref := f.stepLog[len(f.stepLog)-10].temp
	if d := last - ref; d > 1 || d < -1 {
		return
	}

	var maxPower float32
	for _, e := range f.stepLog {
		if e.power > maxPower {
			maxPower = e.power
		}
	}
	tInitial := f.stepLog[0].temp
	tFinal := last
	t63Temp := tInitial + (tFinal-tInitial)*0.63
	var t63 float32
	for i, e := range f.stepLog {
		if e.temp >= t63Temp {
			t63 = float32(i)
			break
		}
	}
	if t63 > 0 && maxPower > 0 {
		b0 := (t63Temp - tInitial) / t63 / maxPower
		f.log.Infof("activity: step response t63=%.0fs b0=%.5f", t63, b0)
		if params, ok := f.head.Params(); ok {
			params.Adrc.Response = t63
			params.Adrc.B0 = b0
			f.head.SetParams(params)
		}
	}
	f.heater.TaskStop()
	f.Enqueue(Command{Kind: CmdStop, Success: true})
}

func (f *FSM) enterBonding() pb.ActivityID {
	f.bondTimer = f.afterFunc(BondingWindow, func() {
		f.Enqueue(Command{Kind: CmdBondOff})
	})
	f.pairing.PairingEnable()
	return pb.ActivityBonding
}
