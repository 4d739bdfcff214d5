// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ina226 controls a Texas Instruments INA226 current/voltage
// monitor over I²C and derives the heater drain measurements from it.
//
// Datasheet: https://www.ti.com/lit/ds/symlink/ina226.pdf
//
// The device sits on the heater rail behind a 10 mΩ shunt. The PWM task
// polls it once per millisecond during the stabilized part of each pulse;
// at pulse end the accumulated samples are averaged into the published
// drain info.
package ina226 // import "github.com/solderworks/hotplate/devices/ina226"

import (
	"encoding/binary"
	"fmt"
	"sync"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/mmr"
	"periph.io/x/periph/conn/physic"
)

// DefaultAddr is the INA226 address with A0/A1 grounded.
const DefaultAddr uint16 = 0x40

const (
	regConfig      = 0x00
	regBusVoltage  = 0x02
	regCurrent     = 0x04
	regCalibration = 0x05
	regManufID     = 0xFE
	regDieID       = 0xFF

	// AVG=x2, VBUSCT/VSHCT=140µs, shunt+bus continuous: a full conversion
	// cycle every ~560µs, always fresher than the 1ms polling tick.
	configValue = 0x0207
	// Cal = 0.00512/(Current_LSB·Rshunt) with Current_LSB=1mA, Rshunt=10mΩ.
	calibrationValue = 0x0200

	manufIDTI = 0x5449
	dieID226  = 0x226
)

// Dev is the register-level INA226 driver.
type Dev struct {
	m mmr.Dev8
}

// New initializes the monitor for continuous shunt+bus conversion and
// verifies its identity registers.
func New(b i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{m: mmr.Dev8{Conn: &i2c.Dev{Bus: b, Addr: addr}, Order: binary.BigEndian}}
	if err := d.m.WriteUint16(regConfig, configValue); err != nil {
		return nil, fmt.Errorf("ina226: writing CONFIG: %v", err)
	}
	if err := d.m.WriteUint16(regCalibration, calibrationValue); err != nil {
		return nil, fmt.Errorf("ina226: writing CALIBRATION: %v", err)
	}
	if id, err := d.m.ReadUint16(regManufID); err != nil {
		return nil, fmt.Errorf("ina226: reading manufacturer id: %v", err)
	} else if id != manufIDTI {
		return nil, fmt.Errorf("ina226: unexpected manufacturer id %#04x", id)
	}
	if id, err := d.m.ReadUint16(regDieID); err != nil {
		return nil, fmt.Errorf("ina226: reading die id: %v", err)
	} else if id>>4 != dieID226 {
		return nil, fmt.Errorf("ina226: unexpected die id %#04x", id)
	}
	return d, nil
}

func (d *Dev) String() string {
	return "ina226"
}

// readRaw returns one raw bus voltage / current sample pair.
func (d *Dev) readRaw() (vRaw uint16, iRaw int16, err error) {
	vRaw, err = d.m.ReadUint16(regBusVoltage)
	if err != nil {
		return 0, 0, err
	}
	u, err := d.m.ReadUint16(regCurrent)
	if err != nil {
		return 0, 0, err
	}
	return vRaw, int16(u), nil
}

// filterSize is the averaging ring depth: at most the trailing 8 samples of
// a pulse contribute to the published measurement.
const filterSize = 8

// Thresholds below which a measurement does not describe a real heater
// load (open drain, or the 5V rail sagging away).
const (
	loadValidMinMA = 300
	loadValidMinMV = 4000
)

// Info is one published drain measurement.
type Info struct {
	PeakMV    uint32
	PeakMA    uint32
	LoadValid bool
}

// LoadMohms returns the measured load resistance in milliohms, or 0 when
// the measurement does not describe a valid load.
func (i Info) LoadMohms() uint32 {
	if !i.LoadValid || i.PeakMA == 0 {
		return 0
	}
	return i.PeakMV * 1000 / i.PeakMA
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s valid=%t",
		physic.ElectricPotential(i.PeakMV)*physic.MilliVolt,
		physic.ElectricCurrent(i.PeakMA)*physic.MilliAmpere,
		i.LoadValid)
}

type sample struct {
	vRaw uint16
	iRaw int16
}

// Tracker accumulates INA226 samples over a PWM pulse and publishes the
// averaged result.
//
// Collect, Process and Clear belong to the PWM task. Peek may be called
// from any goroutine.
type Tracker struct {
	d     *Dev
	ring  [filterSize]sample
	count uint32

	mu   sync.Mutex
	info Info
}

// NewTracker returns a tracker over an initialized monitor.
func NewTracker(d *Dev) *Tracker {
	return &Tracker{d: d}
}

// Collect reads one sample into the averaging ring. Bus errors drop the
// sample; the next tick retries.
func (t *Tracker) Collect() {
	vRaw, iRaw, err := t.d.readRaw()
	if err != nil {
		return
	}
	t.ring[t.count%filterSize] = sample{vRaw: vRaw, iRaw: iRaw}
	t.count++
}

// Process averages the accumulated samples and publishes them. A no-op if
// nothing was collected (so a pulse aborted before stabilization never
// publishes garbage).
func (t *Tracker) Process() {
	if t.count == 0 {
		return
	}
	n := t.count
	if n > filterSize {
		n = filterSize
	}
	var vSum uint32
	var iSum int32
	for i := uint32(0); i < n; i++ {
		vSum += uint32(t.ring[i].vRaw)
		iSum += int32(t.ring[i].iRaw)
	}
	if iSum < 0 {
		iSum = 0
	}
	// Vbus LSB is 1.25mV.
	peakMV := ((vSum / n) * 5 + 2) / 4
	peakMA := uint32(iSum / int32(n))

	t.mu.Lock()
	t.info = Info{
		PeakMV:    peakMV,
		PeakMA:    peakMA,
		LoadValid: peakMA >= loadValidMinMA && peakMV >= loadValidMinMV,
	}
	t.mu.Unlock()
	t.count = 0
}

// Clear drops any accumulated samples without publishing.
func (t *Tracker) Clear() {
	t.count = 0
}

// Reset clears the ring and zeroes the published info.
func (t *Tracker) Reset() {
	t.Clear()
	t.mu.Lock()
	t.info = Info{}
	t.mu.Unlock()
}

// Peek returns the last published measurement.
func (t *Tracker) Peek() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}
