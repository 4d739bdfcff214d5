// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package power couples the device policy manager events of the USB-PD
// stack to the capability selector and the heater PWM.
//
// It owns the PWM and the selector exclusively: the heater core only ever
// asks for watts, and this package translates that into a PD capability
// request plus a duty cycle.
package power // import "github.com/solderworks/hotplate/power"

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/solderworks/hotplate/devices/ina226"
	"github.com/solderworks/hotplate/pb"
)

// UnknownResistance is reported while no valid load measurement exists.
const UnknownResistance uint32 = math.MaxUint32

// EventKind identifies a DPM lifecycle event.
type EventKind int

const (
	EvStartup EventKind = iota
	EvTransitToDefault
	EvSrcCapsReceived
	EvSelectCapDone
	EvSrcDisabled
	EvAlert
	EvSnkReady
	EvCableDetached
	EvHandshakeDone
	EvNewPowerLevelRejected
)

func (k EventKind) String() string {
	switch k {
	case EvStartup:
		return "Startup"
	case EvTransitToDefault:
		return "TransitToDefault"
	case EvSrcCapsReceived:
		return "SrcCapsReceived"
	case EvSelectCapDone:
		return "SelectCapDone"
	case EvSrcDisabled:
		return "SrcDisabled"
	case EvAlert:
		return "Alert"
	case EvSnkReady:
		return "SnkReady"
	case EvCableDetached:
		return "CableDetached"
	case EvHandshakeDone:
		return "HandshakeDone"
	case EvNewPowerLevelRejected:
		return "NewPowerLevelRejected"
	}
	return "Unknown"
}

// Event is one message from the PD stack.
type Event struct {
	Kind EventKind
	// Caps accompanies SrcCapsReceived.
	Caps []SourceCap
}

// Requester initiates a capability request on the PD stack. triggerMV is
// the requested voltage: the nominal voltage for fixed capabilities, the
// programmed output voltage for APDOs.
type Requester interface {
	RequestCap(index int32, triggerMV uint32) error
}

// PwmControl is the slice of the PWM the power FSM drives.
type PwmControl interface {
	SetDutyX1000(duty uint32)
	DutyX1000() uint32
	Enable(enable bool)
}

// Drain is the published side of the drain tracker.
type Drain interface {
	Peek() ina226.Info
	Reset()
}

// apdoDeadbandMV is the hysteresis for APDO voltage tracking: re-requests
// below this delta are skipped so small load drifts do not bounce the
// contract through PwrTransition.
const apdoDeadbandMV = 500

// FSM is the power state machine. OnEvent and SysTick serialize under an
// internal lock; accessors are safe from any goroutine.
type FSM struct {
	mu     sync.Mutex
	status atomic.Int32

	sel   Selector
	pwm   PwmControl
	drain Drain
	req   Requester
	log   logrus.FieldLogger

	// pendingIndex is the capability requested but not yet confirmed by
	// SelectCapDone.
	pendingIndex int32
	// prevApdoMV / nextApdoMV implement the two-phase APDO voltage
	// tracking: next is what was last sent, prev what is confirmed.
	prevApdoMV uint32
	nextApdoMV uint32
	// isFromCapsUpdate is set between a caps reload and the next
	// completed selection; such selections always run the handshake.
	isFromCapsUpdate bool
	rejected         bool
}

// New returns an FSM in the PwrOff state.
func New(p PwmControl, d Drain, r Requester, log logrus.FieldLogger) *FSM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := &FSM{pwm: p, drain: d, req: r, log: log}
	f.status.Store(int32(pb.PwrOff))
	return f
}

// Status returns the power status.
func (f *FSM) Status() pb.PowerStatus {
	return pb.PowerStatus(f.status.Load())
}

func (f *FSM) setStatus(s pb.PowerStatus) {
	if pb.PowerStatus(f.status.Swap(int32(s))) != s {
		f.log.Infof("power: status %s", s)
	}
}

// OnEvent feeds one DPM event into the machine.
func (f *FSM) OnEvent(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Kind {
	case EvStartup:
		f.setStatus(pb.PwrStartup)
	case EvSrcCapsReceived:
		f.sel.LoadCaps(ev.Caps)
		f.sel.SetIndex(0)
		f.isFromCapsUpdate = true
		f.rejected = false
		f.logCaps()
	case EvSelectCapDone:
		f.sel.SetIndex(f.pendingIndex)
		f.prevApdoMV = f.nextApdoMV
		f.isFromCapsUpdate = false
		f.setStatus(pb.PwrOK)
	case EvSnkReady, EvHandshakeDone:
		f.setStatus(pb.PwrOK)
		f.pwm.Enable(true)
	case EvNewPowerLevelRejected:
		f.rejected = true
		f.requestLocked(0)
	case EvCableDetached, EvSrcDisabled, EvTransitToDefault:
		f.setStatus(pb.PwrOff)
		f.pwm.Enable(false)
		f.drain.Reset()
	case EvAlert:
		f.log.Debug("power: alert")
	}
}

// SysTick runs the periodic capability/duty housekeeping (50 ms nominal).
func (f *FSM) SysTick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.Status() {
	case pb.PwrOff, pb.PwrStartup, pb.PwrFailure:
		return
	}

	// Feed the latest valid load measurement into the selector.
	if info := f.drain.Peek(); info.LoadValid {
		f.sel.SetLoadMohms(info.LoadMohms())
	}

	f.updateDutyLocked()

	if f.Status() != pb.PwrOK {
		return // selection handshake in flight
	}

	// A fresh capability table always goes through an explicit request:
	// until one completes, the source has not been told which of the new
	// slots is in force, even when the recomputed choice lands on the
	// index already held. Cleared by SelectCapDone.
	if f.isFromCapsUpdate {
		f.sel.BetterAvailable()
		f.requestLocked(f.sel.BetterIndex)
		return
	}

	if !f.rejected && f.sel.BetterAvailable() {
		f.requestLocked(f.sel.BetterIndex)
		return
	}

	// APDO voltage tracking: follow the load drift on the programmed
	// rail, but only past the deadband so sub-threshold adjustments do
	// not re-enter PwrTransition.
	cur := f.sel.CurrentIndex
	if int(cur) < len(f.sel.Descriptors) && f.sel.Descriptors[cur].Variant.IsAPDO() {
		mv := f.triggerVoltageLocked(cur)
		delta := int64(mv) - int64(f.prevApdoMV)
		if delta < 0 {
			delta = -delta
		}
		if delta >= apdoDeadbandMV {
			f.requestLocked(cur)
		}
	}
}

// requestLocked initiates a capability request. Called with mu held.
func (f *FSM) requestLocked(index int32) {
	mv := f.triggerVoltageLocked(index)
	if err := f.req.RequestCap(index, mv); err != nil {
		f.log.WithError(err).Warn("power: capability request failed")
		return
	}
	f.log.Infof("power: requesting cap %d at %d mV", index, mv)
	f.pendingIndex = index
	f.nextApdoMV = mv
	f.setStatus(pb.PwrTransition)
}

// triggerVoltageLocked computes the request voltage for index: fixed
// capabilities ask for their nominal voltage, APDOs for the voltage that
// yields the target power into the present load, clamped to the
// capability's range.
func (f *FSM) triggerVoltageLocked(index int32) uint32 {
	if int(index) >= len(f.sel.Descriptors) {
		return 5000
	}
	d := &f.sel.Descriptors[index]
	if !d.Variant.IsAPDO() {
		return d.MVMax
	}
	// P = V²/R → mV = √(mW·mΩ).
	mv := isqrt(uint64(f.sel.TargetPowerMW) * uint64(f.sel.LoadMohms))
	if mv < d.MVMin {
		mv = d.MVMin
	}
	if mv > d.MVMax {
		mv = d.MVMax
	}
	return mv
}

// updateDutyLocked derives the PWM duty from the power target and the
// current capability ceiling. Called with mu held.
func (f *FSM) updateDutyLocked() {
	duty := uint32(0)
	if f.sel.LoadMohms != 0 && len(f.sel.Descriptors) != 0 {
		if max := f.sel.MWMax(f.sel.CurrentIndex); max != 0 {
			duty = (1000*f.sel.TargetPowerMW + max/2) / max
			if duty > 1000 {
				duty = 1000
			}
		}
	}
	f.pwm.SetDutyX1000(duty)
}

// SetPowerMW updates the heater power target in milliwatts.
func (f *FSM) SetPowerMW(mw uint32) {
	f.mu.Lock()
	f.sel.SetTargetPowerMW(mw)
	f.updateDutyLocked()
	f.mu.Unlock()
}

// PeakMV returns the measured rail voltage during the last pulse.
func (f *FSM) PeakMV() uint32 {
	return f.drain.Peek().PeakMV
}

// PeakMA returns the measured drain current during the last pulse.
func (f *FSM) PeakMA() uint32 {
	return f.drain.Peek().PeakMA
}

// DutyX1000 returns the active PWM duty.
func (f *FSM) DutyX1000() uint32 {
	return f.pwm.DutyX1000()
}

// LoadMohms returns the measured load resistance, or UnknownResistance
// while no valid measurement exists.
func (f *FSM) LoadMohms() uint32 {
	if info := f.drain.Peek(); info.LoadValid {
		return info.LoadMohms()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel.LoadMohms != 0 {
		return f.sel.LoadMohms
	}
	return UnknownResistance
}

// MaxPowerMW returns the ceiling of the current capability at the present
// load, 0 while the load is unknown.
func (f *FSM) MaxPowerMW() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel.LoadMohms == 0 || len(f.sel.Descriptors) == 0 {
		return 0
	}
	return f.sel.MWMax(f.sel.CurrentIndex)
}

// TargetPowerMW returns the requested heater power.
func (f *FSM) TargetPowerMW() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.TargetPowerMW
}

// CurrentIndex returns the capability in force.
func (f *FSM) CurrentIndex() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.CurrentIndex
}

func (f *FSM) logCaps() {
	for i, d := range f.sel.Descriptors {
		if d.Variant == Unknown {
			f.log.Infof("power: cap %d: hole", i)
			continue
		}
		f.log.Infof("power: cap %d: %s %d-%d mV %d mA", i, d.Variant, d.MVMin, d.MVMax, d.MAMax)
	}
}
