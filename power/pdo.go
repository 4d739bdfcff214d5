// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package power

import "math"

// Variant classifies an advertised source capability.
type Variant int32

const (
	// Unknown marks a hole in the capability list. Slot positions are
	// preserved because the PDO index is the protocol handle.
	Unknown Variant = iota
	// Fixed is a fixed voltage supply.
	Fixed
	// PpsApdo is a programmable power supply (SPR range).
	PpsApdo
	// SprAvsApdo is an adjustable voltage supply in the SPR range.
	SprAvsApdo
	// EprAvsApdo is an adjustable voltage supply in the EPR range.
	EprAvsApdo
)

func (v Variant) String() string {
	switch v {
	case Fixed:
		return "Fixed"
	case PpsApdo:
		return "PPS"
	case SprAvsApdo:
		return "SPR-AVS"
	case EprAvsApdo:
		return "EPR-AVS"
	}
	return "Unknown"
}

// IsAPDO reports whether the variant has a programmable voltage.
func (v Variant) IsAPDO() bool {
	return v == PpsApdo || v == SprAvsApdo || v == EprAvsApdo
}

// MaxObjects is the capability list bound: 7 SPR slots plus 7 EPR slots.
const MaxObjects = 14

// PDO describes one source capability with the derived resistance floors
// the selector works from.
type PDO struct {
	Variant Variant

	MVMin uint32
	MVMax uint32
	MAMax uint32

	// Minimal load resistance the capability can drive without tripping
	// overcurrent, plus the 5%/10% guard margins.
	MohmsMin   uint32
	MohmsMin5  uint32
	MohmsMin10 uint32
}

// emptyPDO keeps holes in the list unreachable: any real load resistance is
// below MaxUint32.
var emptyPDO = PDO{
	MohmsMin:   math.MaxUint32,
	MohmsMin5:  math.MaxUint32,
	MohmsMin10: math.MaxUint32,
}

// SourceCap is one advertised capability as handed over by the DPM after
// SrcCapsReceived.
type SourceCap struct {
	Variant Variant
	MVMin   uint32
	MVMax   uint32
	MA      uint32
	// PDPmW is the power rating of capabilities advertised without an
	// explicit current limit (EPR AVS).
	PDPmW uint32
}

// describe derives the selector descriptor from a capability.
func describe(c SourceCap) PDO {
	if c.Variant == Unknown {
		return emptyPDO
	}
	d := PDO{Variant: c.Variant, MVMin: c.MVMin, MVMax: c.MVMax, MAMax: c.MA}
	// PD 3.2 bans sources below 5 V and the hardware needs 5 V anyway.
	if d.MVMin < 5000 {
		d.MVMin = 5000
	}
	if d.MAMax == 0 {
		if c.PDPmW == 0 || d.MVMax == 0 {
			return emptyPDO
		}
		d.MAMax = c.PDPmW * 1000 / d.MVMax
	}
	d.MohmsMin = d.MVMin * 1000 / d.MAMax
	d.MohmsMin5 = d.MohmsMin * 105 / 100
	d.MohmsMin10 = d.MohmsMin * 110 / 100
	return d
}

// DecodeWord parses one raw 32 bit source capability word. epr marks words
// from the EPR portion of the message (slots 7..13). Battery and variable
// supplies decode as Unknown: the heater cannot use them.
func DecodeWord(w uint32, epr bool) SourceCap {
	switch w >> 30 {
	case 0b00: // fixed supply
		mv := ((w >> 10) & 0x3FF) * 50
		ma := (w & 0x3FF) * 10
		return SourceCap{Variant: Fixed, MVMin: mv, MVMax: mv, MA: ma}
	case 0b11: // augmented
		switch (w >> 28) & 0x3 {
		case 0b00: // PPS
			return SourceCap{
				Variant: PpsApdo,
				MVMax:   ((w >> 17) & 0xFF) * 100,
				MVMin:   ((w >> 8) & 0xFF) * 100,
				MA:      (w & 0x7F) * 50,
			}
		case 0b01: // EPR AVS
			if !epr {
				return SourceCap{}
			}
			return SourceCap{
				Variant: EprAvsApdo,
				MVMax:   ((w >> 17) & 0x1FF) * 100,
				MVMin:   ((w >> 8) & 0xFF) * 100,
				PDPmW:   (w & 0xFF) * 1000,
			}
		case 0b10: // SPR AVS
			return SourceCap{
				Variant: SprAvsApdo,
				MVMin:   9000,
				MVMax:   20000,
				// 9-15 V current limit; the 15-20 V limit in bits 9:0
				// is lower and only matters above the heater's range.
				MA: ((w >> 10) & 0x3FF) * 10,
			}
		}
	}
	return SourceCap{}
}

// isqrt returns the integer square root of v.
func isqrt(v uint64) uint32 {
	if v == 0 {
		return 0
	}
	x := uint64(math.Sqrt(float64(v)))
	// Fix up float rounding at the boundary.
	for x*x > v {
		x--
	}
	for (x+1)*(x+1) <= v {
		x++
	}
	return uint32(x)
}
