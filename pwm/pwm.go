// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pwm drives the heater load switch with a slow software PWM.
//
// The period is 200 ticks at 1 ms. Requested duty is carried in 1/1000
// units and dithered: the rounding error of each pulse is fed into the next
// one, so the long-run average converges to the request within 1/1000 even
// though individual pulses are whole ticks.
//
// The pulse is also the measurement window: after a short stabilization
// the drain sampler collects one reading per tick, and a naturally
// completed pulse publishes the averaged result. At zero duty the machine
// still emits minimum-width probe pulses separated by long idle stretches
// so the load measurement stays alive.
package pwm // import "github.com/solderworks/hotplate/pwm"

import (
	"sync"
	"sync/atomic"

	"periph.io/x/periph/conn/gpio"
	"github.com/sirupsen/logrus"
)

// Timing constants, in 1 ms ticks.
const (
	// PeriodTicks is the PWM period.
	PeriodTicks = 200
	// IdlePeriodTicks separates probe pulses while duty is zero.
	IdlePeriodTicks = 500
	// MinPulseTicks is the narrowest pulse emitted. Must cover the ADC
	// stabilization window.
	MinPulseTicks = 7
	// StabilizationTicks is how long after load-on the drain samples are
	// still discarded.
	StabilizationTicks = 5
)

// Sampler is the drain measurement hook driven from the pulse window.
type Sampler interface {
	// Clear drops a previous pulse's samples. Called at pulse start.
	Clear()
	// Collect reads one sample. Called once per stabilized pulse tick.
	Collect()
	// Process publishes the accumulated samples. Called only when a
	// pulse completes naturally, never on a mid-pulse disable.
	Process()
}

// State identifies the FSM state.
type State int32

const (
	// Disabled keeps the load off and waits for the enable latch.
	Disabled State = iota
	// Pulse has the load on.
	Pulse
	// Gap has the load off for the remainder of the period.
	Gap
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "Disabled"
	case Pulse:
		return "Pulse"
	case Gap:
		return "Gap"
	}
	return "Unknown"
}

const noChange State = -1

// FSM is the software PWM machine. Tick is called from the highest
// priority task once per millisecond; the other methods may be called from
// any goroutine.
type FSM struct {
	duty    atomic.Uint32
	enabled atomic.Bool

	mu      sync.Mutex
	state   State
	sampler Sampler
	load    gpio.PinIO
	log     logrus.FieldLogger

	pulseTicks uint32
	gapTicks   uint32
	tickCount  uint32
	// dutyError is the signed dither carry in 1/1000-tick units,
	// kept in [-500, 499].
	dutyError int32
}

// New returns a disabled FSM driving load and sampler.
func New(load gpio.PinIO, sampler Sampler, log logrus.FieldLogger) *FSM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := &FSM{state: Disabled, sampler: sampler, load: load, log: log}
	f.loadOn(false)
	return f
}

// SetDutyX1000 updates the requested duty in 1/1000 units, clamped to
// [0, 1000]. The new duty takes effect at the next pulse entry, never
// mid-pulse.
func (f *FSM) SetDutyX1000(duty uint32) {
	if duty > 1000 {
		duty = 1000
	}
	f.duty.Store(duty)
}

// DutyX1000 returns the requested duty.
func (f *FSM) DutyX1000() uint32 {
	return f.duty.Load()
}

// Enable latches the machine on at the next Disabled tick; Enable(false)
// stops it immediately, discarding any partially collected samples.
func (f *FSM) Enable(enable bool) {
	if enable {
		// Flag only, to stay in sync with the tick task.
		f.enabled.Store(true)
		return
	}
	f.mu.Lock()
	f.transition(Disabled)
	f.mu.Unlock()
}

// State returns the current FSM state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Tick advances the machine by one millisecond.
func (f *FSM) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if next := f.run(); next != noChange {
		f.transition(next)
	}
}

func (f *FSM) run() State {
	switch f.state {
	case Disabled:
		if f.enabled.Load() {
			return Pulse
		}
	case Pulse:
		f.tickCount++
		if f.tickCount >= StabilizationTicks {
			f.sampler.Collect()
		}
		if f.tickCount >= f.pulseTicks {
			return Gap
		}
	case Gap:
		f.tickCount++
		if f.tickCount >= f.gapTicks {
			return Pulse
		}
	}
	return noChange
}

// transition leaves the current state and enters to, following immediate
// redirects from entry handlers. Called with mu held.
func (f *FSM) transition(to State) {
	for {
		f.exit()
		f.state = to
		next := f.enter()
		if next == noChange {
			return
		}
		to = next
	}
}

func (f *FSM) exit() {
	if f.state == Pulse && f.tickCount >= f.pulseTicks {
		// Natural completion: publish the pulse's drain measurement.
		// A mid-pulse disable lands here with tickCount short and
		// skips it, so partial data never surfaces.
		f.sampler.Process()
	}
}

func (f *FSM) enter() State {
	switch f.state {
	case Disabled:
		f.loadOn(false)
		f.dutyError = 0
		f.enabled.Store(false)
	case Pulse:
		duty := f.duty.Load()
		if duty == 0 {
			f.pulseTicks = MinPulseTicks
			f.gapTicks = IdlePeriodTicks
			f.dutyError = 0
		} else {
			desired := int32(duty * PeriodTicks)
			pulse := (desired + f.dutyError + 500) / 1000
			f.pulseTicks = clampU32(uint32(pulse), MinPulseTicks, PeriodTicks)
			f.gapTicks = PeriodTicks - f.pulseTicks
			// Carry the deviation after clamping so it reflects the
			// actual pulse length, bounded against clamp blow-up.
			f.dutyError = clampI32(desired+f.dutyError-int32(f.pulseTicks)*1000, -500, 499)
		}
		f.tickCount = 0
		f.sampler.Clear()
		f.loadOn(true)
	case Gap:
		if f.gapTicks == 0 {
			return Pulse
		}
		f.tickCount = 0
		f.loadOn(false)
	}
	return noChange
}

func (f *FSM) loadOn(on bool) {
	l := gpio.Low
	if on {
		l = gpio.High
	}
	if err := f.load.Out(l); err != nil {
		f.log.WithError(err).Warn("pwm: load switch write failed")
	}
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
