// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package app is the composition root of the hotplate firmware core.
//
// It wires the device drivers and state machines together and runs their
// tick tasks. Nothing in here contains control logic; the App only owns
// construction, scheduling and the composite status snapshot.
package app // import "github.com/solderworks/hotplate/app"

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/i2c"

	"github.com/solderworks/hotplate/activity"
	"github.com/solderworks/hotplate/clock"
	"github.com/solderworks/hotplate/devices/eeprom24c"
	"github.com/solderworks/hotplate/devices/ina226"
	"github.com/solderworks/hotplate/head"
	"github.com/solderworks/hotplate/heater"
	"github.com/solderworks/hotplate/pb"
	"github.com/solderworks/hotplate/power"
	"github.com/solderworks/hotplate/pref"
	"github.com/solderworks/hotplate/profiles"
	"github.com/solderworks/hotplate/pwm"
)

// Tick periods of the core tasks.
const (
	PwmTick    = time.Millisecond
	HeadTick   = head.TickMS * time.Millisecond
	HeaterTick = heater.TickMS * time.Millisecond
	PrefsTick  = 200 * time.Millisecond
)

// PrefsWriterPeriodMS gates the preference flush passes.
const PrefsWriterPeriodMS = 200

// Config carries the externally owned collaborators.
type Config struct {
	// Bus is the shared I²C bus (INA226 + head EEPROM).
	Bus i2c.Bus
	// LoadPin switches the heater MOSFET.
	LoadPin gpio.PinIO
	// Sensor reads the head sensor divider.
	Sensor head.Sensor
	// KV is the settings store.
	KV pref.KV
	// Requester reaches the PD stack's DPM.
	Requester power.Requester
	// Pairing opens the BLE bonding window; nil disables it.
	Pairing activity.Pairing
	// Log defaults to the standard logger.
	Log logrus.FieldLogger
}

// App owns the assembled control core.
type App struct {
	Head     *head.FSM
	Pwm      *pwm.FSM
	Drain    *ina226.Tracker
	Power    *power.FSM
	Heater   *heater.Core
	Activity *activity.FSM
	Profiles *profiles.Store
	Writer   *pref.Writer

	log logrus.FieldLogger
}

type noPairing struct{}

func (noPairing) PairingEnable()  {}
func (noPairing) PairingDisable() {}

// New builds the core. It initializes the INA226 on the shared bus; the
// EEPROM is only touched once a head attaches.
func New(cfg Config) (*App, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	pairing := cfg.Pairing
	if pairing == nil {
		pairing = noPairing{}
	}

	monitor, err := ina226.New(cfg.Bus, ina226.DefaultAddr)
	if err != nil {
		return nil, err
	}
	drain := ina226.NewTracker(monitor)

	a := &App{Drain: drain, log: log}
	a.Pwm = pwm.New(cfg.LoadPin, drain, log)
	a.Power = power.New(a.Pwm, drain, cfg.Requester, log)
	a.Head = head.New(cfg.Sensor, eeprom24c.New(cfg.Bus, eeprom24c.DefaultAddr), log)
	a.Heater = heater.New(a.Head, a.Power, nil, log)
	a.Profiles = profiles.NewStore(cfg.KV)
	a.Activity = activity.New(a.Heater, a.Head, a.Profiles, pairing, log)
	a.Heater.SetHealthLossHook(func() {
		a.Activity.Enqueue(activity.Command{Kind: activity.CmdStop})
	})

	a.Writer = pref.NewWriter(PrefsWriterPeriodMS, clock.NowMS)
	a.Profiles.Register(a.Writer)
	return a, nil
}

// OnDpmEvent forwards one PD stack event into the power FSM.
func (a *App) OnDpmEvent(ev power.Event) {
	a.Power.OnEvent(ev)
}

// Run starts the tick tasks and the command consumer, returning when ctx
// ends. The PWM is forced off on the way out.
func (a *App) Run(ctx context.Context) {
	a.Activity.Start()

	go a.tickLoop(ctx, PwmTick, a.Pwm.Tick)
	go a.tickLoop(ctx, HeadTick, a.Head.Tick)
	go a.tickLoop(ctx, HeaterTick, a.Heater.Tick)
	go a.tickLoop(ctx, PrefsTick, a.Writer.Tick)

	a.Activity.Run(ctx)
	a.Pwm.Enable(false)
}

func (a *App) tickLoop(ctx context.Context, period time.Duration, tick func()) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick()
		}
	}
}

// Status assembles the composite device status snapshot.
func (a *App) Status() *pb.DeviceStatus {
	return &pb.DeviceStatus{
		Health:      int32(a.Heater.Health()),
		Activity:    int32(a.Activity.State()),
		Power:       int32(a.Power.Status()),
		Head:        int32(a.Head.Status()),
		Temperature: a.Heater.Temperature(),
		Resistance:  a.Heater.Resistance(),
		Watts:       a.Heater.Power(),
		MaxWatts:    a.Heater.MaxPower(),
		Volts:       a.Heater.Volts(),
		Amperes:     a.Heater.Amperes(),
		DutyCycle:   a.Heater.DutyCycle(),
	}
}
