// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
	"periph.io/x/periph/conn/physic"

	"github.com/solderworks/hotplate/app"
	"github.com/solderworks/hotplate/power"
	"github.com/solderworks/hotplate/thermo"
)

// simulator emulates the hotplate hardware: a first order thermal model of
// the pad, an INA226 and a head EEPROM on the I²C bus, the PT100 divider,
// and an always-agreeing USB-PD source.
type simulator struct {
	mu     sync.Mutex
	pin    *gpiotest.Pin
	tempC  float64
	railMV float64
	eeprom [256]byte
	a      *app.App
}

const (
	simTau       = 90.0  // s
	simB0        = 0.06  // °C/s per W
	simR25       = 3000  // mΩ at 25 °C
	simTCR       = 0.0039
	simAmbientC  = 25.0
	simThermalMS = 10
)

func newSimulator(pin *gpiotest.Pin) *simulator {
	return &simulator{pin: pin, tempC: simAmbientC, railMV: 5000}
}

// start feeds the PD attach sequence and runs the thermal model.
func (s *simulator) start(ctx context.Context, a *app.App) {
	s.mu.Lock()
	s.a = a
	s.mu.Unlock()

	a.OnDpmEvent(power.Event{Kind: power.EvStartup})
	a.OnDpmEvent(power.Event{Kind: power.EvSrcCapsReceived, Caps: []power.SourceCap{
		{Variant: power.Fixed, MVMin: 5000, MVMax: 5000, MA: 3000},
		{Variant: power.Fixed, MVMin: 9000, MVMax: 9000, MA: 3000},
		{Variant: power.PpsApdo, MVMin: 5000, MVMax: 11000, MA: 5000},
	}})
	a.OnDpmEvent(power.Event{Kind: power.EvSnkReady})

	go func() {
		t := time.NewTicker(simThermalMS * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.step(simThermalMS * 0.001)
			}
		}
	}()
}

// step advances the pad temperature by dt seconds.
func (s *simulator) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var watts float64
	if s.pin.L == gpio.High {
		v := s.railMV * 0.001
		watts = v * v / (s.loadOhmsLocked())
	}
	s.tempC += dt * (watts*simB0 - (s.tempC-simAmbientC)/simTau)
}

func (s *simulator) loadOhmsLocked() float64 {
	return simR25 * 0.001 * (1 + simTCR*(s.tempC-simAmbientC))
}

// ReadMV implements head.Sensor through the PT100 divider model.
func (s *simulator) ReadMV() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := float64(thermo.PT100ResistanceMohms(int32(s.tempC * 10)))
	return uint32(2500 * r / (r + 560000))
}

// RequestCap implements power.Requester: the simulated source accepts
// everything after a short handshake.
func (s *simulator) RequestCap(index int32, mv uint32) error {
	s.mu.Lock()
	s.railMV = float64(mv)
	a := s.a
	s.mu.Unlock()
	if a == nil {
		return errors.New("sim: not started")
	}
	time.AfterFunc(20*time.Millisecond, func() {
		a.OnDpmEvent(power.Event{Kind: power.EvSelectCapDone})
	})
	return nil
}

// String implements i2c.Bus.
func (s *simulator) String() string { return "simbus" }

// SetSpeed implements i2c.Bus.
func (s *simulator) SetSpeed(physic.Frequency) error { return nil }

// Tx implements i2c.Bus for the INA226 (0x40) and the head EEPROM (0x50).
func (s *simulator) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch addr {
	case 0x40:
		return s.ina226Tx(w, r)
	case 0x50:
		return s.eepromTx(w, r)
	}
	return errors.New("sim: no such device")
}

func (s *simulator) ina226Tx(w, r []byte) error {
	if len(w) == 0 {
		return errors.New("sim: empty transaction")
	}
	if len(r) == 0 {
		return nil // register writes are accepted and ignored
	}
	var v uint16
	switch w[0] {
	case 0x02: // bus voltage, LSB 1.25 mV
		v = uint16(s.railMV / 1.25)
	case 0x04: // current, LSB 1 mA
		if s.pin.L == gpio.High {
			v = uint16(s.railMV / 1000 / s.loadOhmsLocked() * 1000)
		}
	case 0xFE:
		v = 0x5449
	case 0xFF:
		v = 0x2260
	}
	r[0] = byte(v >> 8)
	r[1] = byte(v)
	return nil
}

func (s *simulator) eepromTx(w, r []byte) error {
	if len(w) == 0 {
		return errors.New("sim: empty transaction")
	}
	pos := int(w[0])
	for _, b := range w[1:] {
		s.eeprom[pos%len(s.eeprom)] = b
		pos++
	}
	for i := range r {
		r[i] = s.eeprom[(int(w[0])+i)%len(s.eeprom)]
	}
	return nil
}
