// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pb holds the protobuf wire types exposed to clients and the
// stable status enumerations shared across the control core.
//
// The messages mirror types.proto of the device protocol; they are
// maintained by hand because the schema is small and frozen.
package pb // import "github.com/solderworks/hotplate/pb"

import "github.com/golang/protobuf/proto"

// Bounds carried by the fixed-size repeated fields of the wire schema.
const (
	MaxProfiles        = 10
	MaxProfileSegments = 10
	MaxProfileNameLen  = 50
	MaxHistoryChunk    = 100
)

// HeadStatus is the head attachment state. The ordering matters: anything
// at HeadError or above counts as a failure for device health.
type HeadStatus int32

const (
	HeadDisconnected HeadStatus = 0
	HeadInitializing HeadStatus = 1
	HeadConnected    HeadStatus = 2
	HeadError        HeadStatus = 3
)

func (s HeadStatus) String() string {
	switch s {
	case HeadDisconnected:
		return "HeadDisconnected"
	case HeadInitializing:
		return "HeadInitializing"
	case HeadConnected:
		return "HeadConnected"
	case HeadError:
		return "HeadError"
	}
	return "HeadUnknown"
}

// PowerStatus is the PD contract state. Values at PwrFailure or above count
// as a failure for device health.
type PowerStatus int32

const (
	PwrOff        PowerStatus = 0
	PwrStartup    PowerStatus = 1
	PwrTransition PowerStatus = 2
	PwrOK         PowerStatus = 3
	PwrFailure    PowerStatus = 4
)

func (s PowerStatus) String() string {
	switch s {
	case PwrOff:
		return "PwrOff"
	case PwrStartup:
		return "PwrStartup"
	case PwrTransition:
		return "PwrTransition"
	case PwrOK:
		return "PwrOK"
	case PwrFailure:
		return "PwrFailure"
	}
	return "PwrUnknown"
}

// HealthStatus is the aggregate device health derived from power and head
// status.
type HealthStatus int32

const (
	DevOK       HealthStatus = 0
	DevNotReady HealthStatus = 1
	DevFailure  HealthStatus = 2
)

func (s HealthStatus) String() string {
	switch s {
	case DevOK:
		return "DevOK"
	case DevNotReady:
		return "DevNotReady"
	case DevFailure:
		return "DevFailure"
	}
	return "DevUnknown"
}

// ActivityID is the activity state exposed on the wire. The values are part
// of the protocol and never renumbered.
type ActivityID int32

const (
	ActivityInit         ActivityID = 0
	ActivityIdle         ActivityID = 1
	ActivityReflow       ActivityID = 2
	ActivitySensorBake   ActivityID = 3
	ActivityAdrcTest     ActivityID = 4
	ActivityStepResponse ActivityID = 5
	ActivityBonding      ActivityID = 6
)

func (a ActivityID) String() string {
	switch a {
	case ActivityInit:
		return "Init"
	case ActivityIdle:
		return "Idle"
	case ActivityReflow:
		return "Reflow"
	case ActivitySensorBake:
		return "SensorBake"
	case ActivityAdrcTest:
		return "AdrcTest"
	case ActivityStepResponse:
		return "StepResponse"
	case ActivityBonding:
		return "Bonding"
	}
	return "Unknown"
}

// HeaterKind is the detected head heater construction.
type HeaterKind int32

const (
	HeaterMCH HeaterKind = 0
	HeaterPCB HeaterKind = 1
)

// History task identifiers for the built-in activities. Reflow tasks use
// the (positive) profile id instead.
const (
	HistoryIDSensorBake   int32 = -1
	HistoryIDAdrcTest     int32 = -2
	HistoryIDStepResponse int32 = -3
)

// AdrcParams carries the controller tuning of a head.
type AdrcParams struct {
	B0       float32 `protobuf:"fixed32,1,opt,name=b0,proto3" json:"b0,omitempty"`
	Response float32 `protobuf:"fixed32,2,opt,name=response,proto3" json:"response,omitempty"`
	N        float32 `protobuf:"fixed32,3,opt,name=n,proto3" json:"n,omitempty"`
	M        float32 `protobuf:"fixed32,4,opt,name=m,proto3" json:"m,omitempty"`
}

func (m *AdrcParams) Reset()         { *m = AdrcParams{} }
func (m *AdrcParams) String() string { return proto.CompactTextString(m) }
func (*AdrcParams) ProtoMessage()    {}

// SensorParams carries the sensor kind and calibration points of a head.
type SensorParams struct {
	SensorType int32   `protobuf:"varint,1,opt,name=sensor_type,json=sensorType,proto3" json:"sensor_type,omitempty"`
	P0At       float32 `protobuf:"fixed32,2,opt,name=p0_at,json=p0At,proto3" json:"p0_at,omitempty"`
	P0Value    float32 `protobuf:"fixed32,3,opt,name=p0_value,json=p0Value,proto3" json:"p0_value,omitempty"`
	P1At       float32 `protobuf:"fixed32,4,opt,name=p1_at,json=p1At,proto3" json:"p1_at,omitempty"`
	P1Value    float32 `protobuf:"fixed32,5,opt,name=p1_value,json=p1Value,proto3" json:"p1_value,omitempty"`
}

func (m *SensorParams) Reset()         { *m = SensorParams{} }
func (m *SensorParams) String() string { return proto.CompactTextString(m) }
func (*SensorParams) ProtoMessage()    {}

// HeadParams is the persistent blob owned by the head EEPROM.
type HeadParams struct {
	Adrc   *AdrcParams   `protobuf:"bytes,1,opt,name=adrc,proto3" json:"adrc,omitempty"`
	Sensor *SensorParams `protobuf:"bytes,2,opt,name=sensor,proto3" json:"sensor,omitempty"`
}

func (m *HeadParams) Reset()         { *m = HeadParams{} }
func (m *HeadParams) String() string { return proto.CompactTextString(m) }
func (*HeadParams) ProtoMessage()    {}

// DefaultHeadParams is the parameter set assumed for a factory-fresh head
// with an empty EEPROM.
func DefaultHeadParams() *HeadParams {
	return &HeadParams{
		Adrc:   &AdrcParams{B0: 0.06, Response: 90, N: 4, M: 6},
		Sensor: &SensorParams{},
	}
}

// Segment is one leg of a reflow profile.
type Segment struct {
	Target   int32 `protobuf:"varint,1,opt,name=target,proto3" json:"target,omitempty"`
	Duration int32 `protobuf:"varint,2,opt,name=duration,proto3" json:"duration,omitempty"`
}

func (m *Segment) Reset()         { *m = Segment{} }
func (m *Segment) String() string { return proto.CompactTextString(m) }
func (*Segment) ProtoMessage()    {}

// Profile is a named temperature-vs-time program.
type Profile struct {
	Id       int32      `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Name     string     `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Segments []*Segment `protobuf:"bytes,3,rep,name=segments,proto3" json:"segments,omitempty"`
}

func (m *Profile) Reset()         { *m = Profile{} }
func (m *Profile) String() string { return proto.CompactTextString(m) }
func (*Profile) ProtoMessage()    {}

// ProfilesData is the full profile table plus the active selection.
// SelectedId is -1 when the table is empty.
type ProfilesData struct {
	SelectedId int32      `protobuf:"varint,1,opt,name=selected_id,json=selectedId,proto3" json:"selected_id,omitempty"`
	Items      []*Profile `protobuf:"bytes,2,rep,name=items,proto3" json:"items,omitempty"`
}

func (m *ProfilesData) Reset()         { *m = ProfilesData{} }
func (m *ProfilesData) String() string { return proto.CompactTextString(m) }
func (*ProfilesData) ProtoMessage()    {}

// HistoryPoint is one sample of a recorded task trajectory: x in seconds
// from task start, y in the task's unit (°C for thermal tasks).
type HistoryPoint struct {
	X float32 `protobuf:"fixed32,1,opt,name=x,proto3" json:"x,omitempty"`
	Y float32 `protobuf:"fixed32,2,opt,name=y,proto3" json:"y,omitempty"`
}

func (m *HistoryPoint) Reset()         { *m = HistoryPoint{} }
func (m *HistoryPoint) String() string { return proto.CompactTextString(m) }
func (*HistoryPoint) ProtoMessage()    {}

// HistoryChunk is one page of task history. Type is the task id, Version
// changes whenever the recording restarts.
type HistoryChunk struct {
	Type    int32           `protobuf:"varint,1,opt,name=type,proto3" json:"type,omitempty"`
	Version int32           `protobuf:"varint,2,opt,name=version,proto3" json:"version,omitempty"`
	Data    []*HistoryPoint `protobuf:"bytes,3,rep,name=data,proto3" json:"data,omitempty"`
}

func (m *HistoryChunk) Reset()         { *m = HistoryChunk{} }
func (m *HistoryChunk) String() string { return proto.CompactTextString(m) }
func (*HistoryChunk) ProtoMessage()    {}

// DeviceStatus is the composite status snapshot served to clients.
type DeviceStatus struct {
	Health      int32   `protobuf:"varint,1,opt,name=health,proto3" json:"health,omitempty"`
	Activity    int32   `protobuf:"varint,2,opt,name=activity,proto3" json:"activity,omitempty"`
	Power       int32   `protobuf:"varint,3,opt,name=power,proto3" json:"power,omitempty"`
	Head        int32   `protobuf:"varint,4,opt,name=head,proto3" json:"head,omitempty"`
	Temperature float32 `protobuf:"fixed32,5,opt,name=temperature,proto3" json:"temperature,omitempty"`
	Resistance  float32 `protobuf:"fixed32,6,opt,name=resistance,proto3" json:"resistance,omitempty"`
	Watts       float32 `protobuf:"fixed32,7,opt,name=watts,proto3" json:"watts,omitempty"`
	MaxWatts    float32 `protobuf:"fixed32,8,opt,name=max_watts,json=maxWatts,proto3" json:"max_watts,omitempty"`
	Volts       float32 `protobuf:"fixed32,9,opt,name=volts,proto3" json:"volts,omitempty"`
	Amperes     float32 `protobuf:"fixed32,10,opt,name=amperes,proto3" json:"amperes,omitempty"`
	DutyCycle   float32 `protobuf:"fixed32,11,opt,name=duty_cycle,json=dutyCycle,proto3" json:"duty_cycle,omitempty"`
}

func (m *DeviceStatus) Reset()         { *m = DeviceStatus{} }
func (m *DeviceStatus) String() string { return proto.CompactTextString(m) }
func (*DeviceStatus) ProtoMessage()    {}
