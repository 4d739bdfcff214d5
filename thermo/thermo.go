// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermo converts raw head sensor readings into temperature.
//
// Two sensor kinds are supported: an RTD (PT100 behind a 560 Ω divider fed
// from a 2.5 V reference) and TCR sensing, which derives temperature from
// the resistance drift of the heater trace itself. Calibration degrades
// gracefully: two points give a linear fit, one point an offset, none the
// factory defaults. Degenerate point pairs silently fall back to the weaker
// fit rather than failing.
package thermo // import "github.com/solderworks/hotplate/thermo"

// SensorKind selects the temperature conversion model.
type SensorKind int32

const (
	// RTD is a PT100 element read through the divider.
	RTD SensorKind = iota
	// TCR derives temperature from heater trace resistance drift.
	TCR
)

// Factory defaults used when calibration points are missing.
const (
	tcrRDefaultMohms = 4000
	tcrTRefDefaultX10 = 250
	// Copper TCR 0.00393/°C, scaled for 0.1 °C units.
	tcrCoeffDefault = 0.00393 / 10.0
)

// Processor maps a raw sensor reading to temperature ×10.
//
// For RTD the input is the divider voltage in mV; for TCR it is the
// measured trace resistance in milliohms. Not safe for concurrent use.
type Processor struct {
	kind SensorKind

	// Calibration points: at = reference temperature in °C, value = raw
	// reading at that temperature (mV for RTD, mohms for TCR). An `at`
	// of zero or below marks the point as unset.
	p0At, p0Value float32
	p1At, p1Value float32

	// RTD: R_corrected = (gain·R_raw)>>16 + offset, in milliohms.
	rtdGainQ16 int64
	rtdOffset  int32

	// TCR: T_x10 = tRef_x10 + ((R - rBase)·invGain)>>16.
	tcrRBase      uint32
	tcrTRefX10    int32
	tcrInvGainQ16 int64
}

// NewProcessor returns a processor for the given sensor kind with default
// calibration.
func NewProcessor(kind SensorKind) *Processor {
	p := &Processor{kind: kind}
	p.rebuild()
	return p
}

// SetSensorKind switches the conversion model and rebuilds coefficients.
func (p *Processor) SetSensorKind(kind SensorKind) {
	p.kind = kind
	p.rebuild()
}

// SetCalPoints installs up to two calibration points and rebuilds the fit.
func (p *Processor) SetCalPoints(at0, value0, at1, value1 float32) {
	p.p0At, p.p0Value = at0, value0
	p.p1At, p.p1Value = at1, value1
	p.rebuild()
}

// TemperatureX10 converts a raw reading to temperature in 0.1 °C.
func (p *Processor) TemperatureX10(at uint32) int32 {
	if p.kind == RTD {
		return p.rtdTempX10(at)
	}
	return p.tcrTempX10(at)
}

func (p *Processor) calPointsCount() int {
	if p.p0At <= 0 {
		return 0
	}
	if p.p1At <= 0 {
		return 1
	}
	// Identical points would divide by zero in the linear fit; use only
	// the first point.
	if p.p0Value == p.p1Value || p.p0At == p.p1At {
		return 1
	}
	return 2
}

// dividerMohms converts a divider voltage to raw sensor resistance:
// R = 560 Ω · mV / (2500 mV − mV), in milliohms.
func dividerMohms(mv float32) float32 {
	return 560.0 * mv / (2500.0 - mv) * 1000.0
}

func (p *Processor) rebuild() {
	if p.kind == RTD {
		p.prepareRTD()
	} else {
		p.prepareTCR()
	}
}

func (p *Processor) prepareRTD() {
	switch p.calPointsCount() {
	case 0:
		p.rtdGainQ16 = 1 << 16
		p.rtdOffset = 0
	case 1:
		rRaw0 := dividerMohms(p.p0Value)
		rExpected0 := float32(PT100ResistanceMohms(int32(p.p0At * 10)))
		p.rtdGainQ16 = 1 << 16
		p.rtdOffset = int32(rExpected0 - rRaw0)
	case 2:
		rRaw0 := dividerMohms(p.p0Value)
		rRaw1 := dividerMohms(p.p1Value)
		rExpected0 := float32(PT100ResistanceMohms(int32(p.p0At * 10)))
		rExpected1 := float32(PT100ResistanceMohms(int32(p.p1At * 10)))
		gain := (rExpected1 - rExpected0) / (rRaw1 - rRaw0)
		p.rtdGainQ16 = int64(gain * 65536.0)
		p.rtdOffset = int32(rExpected0 - gain*rRaw0)
	}
}

func (p *Processor) rtdTempX10(mv uint32) int32 {
	if mv >= 2500 {
		// Open divider; the head FSM filters this before it gets here.
		mv = 2499
	}
	rRaw := (560 * mv * 1000) / (2500 - mv)
	rCorrected := (p.rtdGainQ16*int64(rRaw))>>16 + int64(p.rtdOffset)
	if rCorrected < 0 {
		rCorrected = 0
	}
	return PT100TempX10(uint32(rCorrected))
}

func (p *Processor) prepareTCR() {
	var gain float32
	switch p.calPointsCount() {
	case 0:
		p.tcrRBase = tcrRDefaultMohms
		p.tcrTRefX10 = tcrTRefDefaultX10
		gain = tcrRDefaultMohms * tcrCoeffDefault
	case 1:
		p.tcrRBase = uint32(p.p0Value)
		p.tcrTRefX10 = int32(p.p0At * 10)
		gain = p.p0Value * tcrCoeffDefault
	case 2:
		p.tcrRBase = uint32(p.p0Value)
		p.tcrTRefX10 = int32(p.p0At * 10)
		// gain = dR/dT_x10.
		gain = (p.p1Value - p.p0Value) / ((p.p1At - p.p0At) * 10.0)
	}
	p.tcrInvGainQ16 = int64((1.0 / gain) * 65536.0)
}

func (p *Processor) tcrTempX10(mohms uint32) int32 {
	deltaR := int64(int32(mohms) - int32(p.tcrRBase))
	deltaTX10 := (deltaR * p.tcrInvGainQ16) >> 16
	return p.tcrTRefX10 + int32(deltaTX10)
}
