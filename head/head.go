// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package head tracks the removable heater cartridge.
//
// Presence is detected through the sensor divider: a 560 Ω resistor against
// the head sensor at a 2.5 V reference puts a healthy PT100 in the
// ~310-770 mV band over -50..400 °C, a missing head floats high and a shorted sensor reads
// near zero (which doubles as the MCH-vs-PCB heater detect). Attach is
// debounced, after which the head's calibration blob is loaded from its
// EEPROM; a bus failure parks the FSM in Error until the sensor has read
// clean for a second.
//
// The FSM also owns the write-back path: parameter updates land in a
// lock-free shadow and are flushed to the EEPROM from the tick task.
package head // import "github.com/solderworks/hotplate/head"

import (
	"sync/atomic"

	"github.com/golang/protobuf/proto"
	"github.com/sirupsen/logrus"

	"github.com/solderworks/hotplate/guard"
	"github.com/solderworks/hotplate/pb"
	"github.com/solderworks/hotplate/thermo"
)

// Detection thresholds on the sensor divider.
const (
	// SensorShortedMV below this the sensor is shorted (or the heater is
	// an MCH with its sense wire tied low).
	SensorShortedMV = 150
	// SensorFloatingMV above this no head is attached.
	SensorFloatingMV = 800
)

// TickMS is the FSM tick period.
const TickMS = 20

const (
	debounceMS     = 100
	errorRestoreMS = 1000
)

// Sensor reads the head sensor divider voltage.
type Sensor interface {
	ReadMV() uint32
}

// Store is the head EEPROM blob store. A clean device reads as (nil, nil).
type Store interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FSM is the head attachment machine. Tick runs from a dedicated 20 ms
// task; the accessors are safe from any goroutine.
type FSM struct {
	status atomic.Int32
	kind   atomic.Int32
	proc   atomic.Pointer[thermo.Processor]

	sensor   Sensor
	store    Store
	params   *guard.Guard[[]byte]
	debounce uint32
	log      logrus.FieldLogger
}

// New returns a detached FSM.
func New(sensor Sensor, store Store, log logrus.FieldLogger) *FSM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := &FSM{sensor: sensor, store: store, params: guard.New[[]byte](nil), log: log}
	f.status.Store(int32(pb.HeadDisconnected))
	f.proc.Store(thermo.NewProcessor(thermo.RTD))
	return f
}

// Status returns the attachment status.
func (f *FSM) Status() pb.HeadStatus {
	return pb.HeadStatus(f.status.Load())
}

// IsAttached reports whether a head is fully attached.
func (f *FSM) IsAttached() bool {
	return f.Status() == pb.HeadConnected
}

// HeaterKind returns the detected heater construction.
func (f *FSM) HeaterKind() pb.HeaterKind {
	return pb.HeaterKind(f.kind.Load())
}

// Tick advances the machine by one 20 ms step.
func (f *FSM) Tick() {
	// Flush a dirty parameter shadow to the EEPROM first; the write
	// blocks this task only.
	if f.params.Snapshot() {
		if err := f.store.Write(f.params.LastSnapshot()); err != nil {
			f.log.WithError(err).Error("head: EEPROM write-back failed")
		}
	}

	mv := f.sensor.ReadMV()
	switch f.Status() {
	case pb.HeadDisconnected:
		if mv < SensorFloatingMV {
			f.enterInitializing()
		}
	case pb.HeadInitializing:
		if mv > SensorFloatingMV {
			f.enterDetached()
			return
		}
		f.debounce++
		if f.debounce*TickMS >= debounceMS {
			f.finishAttach(mv)
		}
	case pb.HeadConnected:
		if mv > SensorFloatingMV {
			f.enterDetached()
		}
	case pb.HeadError:
		if mv > SensorFloatingMV {
			f.enterDetached()
			return
		}
		f.debounce++
		if f.debounce*TickMS >= errorRestoreMS {
			f.enterDetached()
		}
	}
}

func (f *FSM) enterDetached() {
	f.log.Info("head: detached")
	f.status.Store(int32(pb.HeadDisconnected))
}

func (f *FSM) enterInitializing() {
	f.log.Info("head: initializing")
	f.status.Store(int32(pb.HeadInitializing))
	f.debounce = 0
}

func (f *FSM) enterError() {
	f.log.Error("head: error")
	f.status.Store(int32(pb.HeadError))
	f.debounce = 0
}

// finishAttach completes the debounced attach: heater type detect, EEPROM
// load, processor configuration.
func (f *FSM) finishAttach(mv uint32) {
	kind := pb.HeaterPCB
	if mv < SensorShortedMV {
		kind = pb.HeaterMCH
	}
	f.kind.Store(int32(kind))

	data, err := f.store.Read()
	if err != nil {
		f.log.WithError(err).Error("head: EEPROM read failed")
		f.enterError()
		return
	}
	if len(data) == 0 {
		// Factory-fresh head.
		data, _ = proto.Marshal(pb.DefaultHeadParams())
	}
	// Straight into the shadow, no version bump: a freshly loaded blob
	// is clean and must not be written back.
	*f.params.Value() = data
	f.configureProcessor(data)

	f.log.Infof("head: attached, heater %d", kind)
	f.status.Store(int32(pb.HeadConnected))
}

// configureProcessor swaps in a temperature processor matching the
// parameter blob. A blob that fails to decode configures the defaults.
func (f *FSM) configureProcessor(data []byte) {
	params := &pb.HeadParams{}
	if err := proto.Unmarshal(data, params); err != nil || params.Sensor == nil {
		params = pb.DefaultHeadParams()
	}
	kind := thermo.RTD
	if params.Sensor.SensorType != 0 {
		kind = thermo.TCR
	}
	p := thermo.NewProcessor(kind)
	p.SetCalPoints(params.Sensor.P0At, params.Sensor.P0Value, params.Sensor.P1At, params.Sensor.P1Value)
	f.proc.Store(p)
}

// TemperatureX10 returns the head temperature in 0.1 °C, 0 when the sensor
// reading is outside the plausible band.
func (f *FSM) TemperatureX10() int32 {
	mv := f.sensor.ReadMV()
	if mv < SensorShortedMV || mv > SensorFloatingMV {
		return 0
	}
	return f.proc.Load().TemperatureX10(mv)
}

// Temperature returns the head temperature in °C.
func (f *FSM) Temperature() float32 {
	return float32(f.TemperatureX10()) * 0.1
}

// ParamsPB returns a copy of the raw parameter blob. Fails while no head
// is attached.
func (f *FSM) ParamsPB() ([]byte, bool) {
	if !f.IsAttached() {
		return nil, false
	}
	v := *f.params.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// SetParamsPB replaces the parameter blob. The EEPROM write-back happens
// asynchronously from the tick task. Fails while no head is attached.
func (f *FSM) SetParamsPB(data []byte) bool {
	if !f.IsAttached() {
		return false
	}
	blob := make([]byte, len(data))
	copy(blob, data)
	f.params.Write(blob)
	f.configureProcessor(blob)
	return true
}

// Params returns the decoded head parameters. Fails while no head is
// attached; an undecodable blob yields the defaults per the recovery
// policy.
func (f *FSM) Params() (*pb.HeadParams, bool) {
	raw, ok := f.ParamsPB()
	if !ok {
		return nil, false
	}
	params := &pb.HeadParams{}
	if err := proto.Unmarshal(raw, params); err != nil {
		return pb.DefaultHeadParams(), true
	}
	if params.Adrc == nil {
		params.Adrc = pb.DefaultHeadParams().Adrc
	}
	if params.Sensor == nil {
		params.Sensor = &pb.SensorParams{}
	}
	return params, true
}

// SetParams encodes and stores the head parameters.
func (f *FSM) SetParams(params *pb.HeadParams) bool {
	if !f.IsAttached() {
		return false
	}
	data, err := proto.Marshal(params)
	if err != nil {
		return false
	}
	return f.SetParamsPB(data)
}
