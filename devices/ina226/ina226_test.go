// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ina226

import (
	"testing"

	"periph.io/x/periph/conn/i2c/i2ctest"
)

func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: DefaultAddr, W: []byte{regConfig, 0x02, 0x07}},
		{Addr: DefaultAddr, W: []byte{regCalibration, 0x02, 0x00}},
		{Addr: DefaultAddr, W: []byte{regManufID}, R: []byte{0x54, 0x49}},
		{Addr: DefaultAddr, W: []byte{regDieID}, R: []byte{0x22, 0x60}},
	}
}

func sampleOps(vRaw uint16, iRaw int16) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: DefaultAddr, W: []byte{regBusVoltage}, R: []byte{byte(vRaw >> 8), byte(vRaw)}},
		{Addr: DefaultAddr, W: []byte{regCurrent}, R: []byte{byte(uint16(iRaw) >> 8), byte(uint16(iRaw))}},
	}
}

func TestNew(t *testing.T) {
	b := &i2ctest.Playback{Ops: initOps(), DontPanic: true}
	if _, err := New(b, DefaultAddr); err != nil {
		t.Fatal(err)
	}
}

func TestNewBadDieID(t *testing.T) {
	ops := initOps()
	ops[3].R = []byte{0x11, 0x10}
	b := &i2ctest.Playback{Ops: ops, DontPanic: true}
	if _, err := New(b, DefaultAddr); err == nil {
		t.Fatal("expected identify failure")
	}
}

func TestTrackerAveraging(t *testing.T) {
	ops := initOps()
	// Four samples: Vbus raw 4000 (= 5000mV), 2000mA, one of them lower.
	ops = append(ops, sampleOps(4000, 2000)...)
	ops = append(ops, sampleOps(4000, 2000)...)
	ops = append(ops, sampleOps(4000, 2000)...)
	ops = append(ops, sampleOps(3992, 1992)...)
	b := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := New(b, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTracker(d)
	for i := 0; i < 4; i++ {
		tr.Collect()
	}
	tr.Process()
	info := tr.Peek()
	// v_avg = 3998 raw → 3998·1.25 = 4997.5, rounded to 4998.
	if info.PeakMV != 4998 {
		t.Fatalf("PeakMV = %d, want 4998", info.PeakMV)
	}
	if info.PeakMA != 1998 {
		t.Fatalf("PeakMA = %d, want 1998", info.PeakMA)
	}
	if !info.LoadValid {
		t.Fatal("load must be valid")
	}
	if got := info.LoadMohms(); got != 4998*1000/1998 {
		t.Fatalf("LoadMohms = %d", got)
	}
}

func TestTrackerInvalidLoad(t *testing.T) {
	ops := initOps()
	// 100mA at 5V: below the 300mA floor.
	ops = append(ops, sampleOps(4000, 100)...)
	b := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := New(b, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTracker(d)
	tr.Collect()
	tr.Process()
	info := tr.Peek()
	if info.LoadValid {
		t.Fatal("load must be invalid below the current floor")
	}
	if info.LoadMohms() != 0 {
		t.Fatal("invalid load must report 0 mΩ")
	}
}

func TestTrackerClearSkipsPublish(t *testing.T) {
	ops := initOps()
	ops = append(ops, sampleOps(4000, 2000)...)
	b := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := New(b, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTracker(d)
	tr.Collect()
	tr.Clear()
	tr.Process() // nothing accumulated: must not publish
	if info := tr.Peek(); info.PeakMV != 0 || info.PeakMA != 0 {
		t.Fatalf("published partial data: %+v", info)
	}
}

func TestNegativeCurrentClamps(t *testing.T) {
	ops := initOps()
	ops = append(ops, sampleOps(4000, -50)...)
	b := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := New(b, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTracker(d)
	tr.Collect()
	tr.Process()
	if info := tr.Peek(); info.PeakMA != 0 {
		t.Fatalf("PeakMA = %d, want 0 for negative current", info.PeakMA)
	}
}
