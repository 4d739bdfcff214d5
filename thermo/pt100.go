// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermo

// IEC 60751 PT100 resistance table, -50..400 °C in 25 °C steps. Resistance
// in milliohms, temperature in 0.1 °C. Linear interpolation between nodes is
// well under the sensor tolerance over this span.
type pt100Node struct {
	tX10  int32
	mohms uint32
}

var pt100Table = []pt100Node{
	{-500, 80310},
	{-250, 90190},
	{0, 100000},
	{250, 109730},
	{500, 119400},
	{750, 129000},
	{1000, 138510},
	{1250, 147950},
	{1500, 157330},
	{1750, 166630},
	{2000, 175860},
	{2250, 185010},
	{2500, 194100},
	{2750, 203110},
	{3000, 212050},
	{3250, 220920},
	{3500, 229720},
	{3750, 238440},
	{4000, 247090},
}

// PT100TempX10 maps a PT100 resistance in milliohms to temperature in
// 0.1 °C. Out-of-table resistances clamp to the table ends.
func PT100TempX10(mohms uint32) int32 {
	if mohms <= pt100Table[0].mohms {
		return pt100Table[0].tX10
	}
	last := pt100Table[len(pt100Table)-1]
	if mohms >= last.mohms {
		return last.tX10
	}
	for i := 1; i < len(pt100Table); i++ {
		n0, n1 := pt100Table[i-1], pt100Table[i]
		if mohms > n1.mohms {
			continue
		}
		dr := int64(n1.mohms - n0.mohms)
		dt := int64(n1.tX10 - n0.tX10)
		off := int64(mohms - n0.mohms)
		return n0.tX10 + int32((off*dt+dr/2)/dr)
	}
	return last.tX10
}

// PT100ResistanceMohms maps a temperature in 0.1 °C to the expected PT100
// resistance in milliohms. Out-of-table temperatures clamp to the table
// ends.
func PT100ResistanceMohms(tX10 int32) uint32 {
	if tX10 <= pt100Table[0].tX10 {
		return pt100Table[0].mohms
	}
	last := pt100Table[len(pt100Table)-1]
	if tX10 >= last.tX10 {
		return last.mohms
	}
	for i := 1; i < len(pt100Table); i++ {
		n0, n1 := pt100Table[i-1], pt100Table[i]
		if tX10 > n1.tX10 {
			continue
		}
		dt := int64(n1.tX10 - n0.tX10)
		dr := int64(n1.mohms - n0.mohms)
		off := int64(tX10 - n0.tX10)
		return n0.mohms + uint32((off*dr+dt/2)/dt)
	}
	return last.mohms
}
