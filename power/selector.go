// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package power

// Selector picks the best source capability for the present load.
//
// The heater's resistance drifts with temperature, so the right PDO is a
// moving target. The selector applies hysteresis and two guards to avoid
// oscillating between capabilities or getting stuck on PWM:
//
//   - Upgrade when the target exceeds 95% of the current capability's
//     ceiling; candidates must leave 10% headroom (power and current).
//   - Emergency downgrade to slot 0 (PD mandates 5 V fixed there) when the
//     load is within 5% of the overcurrent floor.
//   - APDO guard: an APDO whose floor voltage is above 5 V and whose
//     floor power exceeds target·1.03 would need duty < 100% with no
//     overcurrent trigger to ever step back down — a PWM lock. Such
//     APDOs are never entered, and an AVS capability (SPR or EPR) in
//     force that trips the guard is left for slot 0.
//   - While on a fixed capability, prefer moving to an APDO (or a lower
//     fixed voltage) that serves the target continuously, avoiding PWM.
//
// Not safe for concurrent use; the power FSM serializes access under its
// lock.
type Selector struct {
	Descriptors []PDO
	// CurrentIndex is the capability in force; BetterIndex is the
	// selector's advice. Callers switch only when they differ.
	CurrentIndex  int32
	BetterIndex   int32
	LoadMohms     uint32
	TargetPowerMW uint32
}

// LoadCaps rebuilds the descriptor table from advertised capabilities.
// Unsupported slots become holes so indexes keep their protocol meaning.
func (s *Selector) LoadCaps(caps []SourceCap) {
	s.Descriptors = s.Descriptors[:0]
	for _, c := range caps {
		if len(s.Descriptors) == MaxObjects {
			break
		}
		s.Descriptors = append(s.Descriptors, describe(c))
	}
}

// SetLoadMohms updates the live load resistance.
func (s *Selector) SetLoadMohms(mohms uint32) *Selector {
	s.LoadMohms = mohms
	return s
}

// SetTargetPowerMW updates the requested heater power.
func (s *Selector) SetTargetPowerMW(mw uint32) *Selector {
	s.TargetPowerMW = mw
	return s
}

// SetIndex records the capability actually in force (after a completed
// handshake) and resets the advice to it.
func (s *Selector) SetIndex(index int32) *Selector {
	s.CurrentIndex = index
	s.BetterIndex = index
	return s
}

// MWMax returns the power ceiling of capability idx at the present load:
// the lower of the voltage-limited and the current-limited maximum.
func (s *Selector) MWMax(idx int32) uint32 {
	d := &s.Descriptors[idx]
	vLimited := d.MVMax * d.MVMax / s.LoadMohms
	iLimited := (d.MAMax * d.MAMax / 1000) * s.LoadMohms / 1000
	if iLimited < vLimited {
		return iLimited
	}
	return vLimited
}

func (s *Selector) mwMax95(idx int32) uint32 { return s.MWMax(idx) * 95 / 100 }
func (s *Selector) mwMax90(idx int32) uint32 { return s.MWMax(idx) * 90 / 100 }

// pwmLocked reports whether capability d would sit on PWM at its floor
// voltage: floor above 5 V and floor power more than 3% over target.
func (s *Selector) pwmLocked(d *PDO) bool {
	minContinuousMW := d.MVMin * d.MVMin / s.LoadMohms
	return d.MVMin > 5000 && minContinuousMW > s.TargetPowerMW*103/100
}

// BetterAvailable runs the decision tree and reports whether BetterIndex
// now differs from CurrentIndex. With no capabilities or no load
// measurement it always reports no change.
func (s *Selector) BetterAvailable() bool {
	if len(s.Descriptors) == 0 || s.LoadMohms == 0 {
		return false
	}

	newIndex := s.CurrentIndex

	// Emergency 1: close to overcurrent (load under the 5% margin).
	// Slot 0 is the PD-mandated 5 V fixed fallback.
	if s.LoadMohms < s.Descriptors[newIndex].MohmsMin5 {
		newIndex = 0
	}

	// Emergency 2: an AVS floor too high for the target means PWM with
	// no path to step down. Drop to the safe base.
	if d := &s.Descriptors[newIndex]; d.Variant == SprAvsApdo || d.Variant == EprAvsApdo {
		if s.pwmLocked(d) {
			newIndex = 0
		}
	}

	// Upgrade when the target eats into the 5% headroom of the current
	// capability.
	if s.TargetPowerMW > s.mwMax95(newIndex) {
		// APDOs first, strongest slot first: continuous power without
		// PWM beats a fixed level.
		for i := int32(len(s.Descriptors)) - 1; i >= 0; i-- {
			d := &s.Descriptors[i]
			if !d.Variant.IsAPDO() {
				continue
			}
			if s.LoadMohms < d.MohmsMin10 {
				continue
			}
			if s.pwmLocked(d) {
				continue
			}
			if s.TargetPowerMW <= s.mwMax90(i) {
				s.BetterIndex = i
				return s.BetterIndex != s.CurrentIndex
			}
		}

		// No APDO fits; take the first capability of any kind that
		// covers the target with 10% headroom, tracking the strongest
		// safe one as a fallback.
		currentMaxMW := s.mwMax90(newIndex)
		for i := int32(0); i < int32(len(s.Descriptors)); i++ {
			d := &s.Descriptors[i]
			if d.Variant == Unknown {
				continue
			}
			if s.LoadMohms < d.MohmsMin10 {
				continue
			}
			mwTmp := s.mwMax90(i)
			if mwTmp > currentMaxMW {
				newIndex = i
				currentMaxMW = mwTmp
			}
			if d.Variant.IsAPDO() && s.pwmLocked(d) {
				continue
			}
			if mwTmp > s.TargetPowerMW {
				s.BetterIndex = i
				return s.BetterIndex != s.CurrentIndex
			}
		}

		// Target not satisfiable: best effort.
		s.BetterIndex = newIndex
		return s.BetterIndex != s.CurrentIndex
	}

	// On a fixed capability with headroom to spare, try to leave PWM
	// behind.
	if s.Descriptors[newIndex].Variant == Fixed {
		for i := int32(0); i < int32(len(s.Descriptors)); i++ {
			d := &s.Descriptors[i]
			if !d.Variant.IsAPDO() {
				continue
			}
			if s.LoadMohms < d.MohmsMin10 {
				continue
			}
			if s.mwMax90(i) < s.TargetPowerMW {
				continue
			}
			if s.pwmLocked(d) {
				continue
			}
			s.BetterIndex = i
			return s.BetterIndex != s.CurrentIndex
		}

		// No APDO; a lower fixed voltage still covering the target
		// shortens the PWM pulses.
		for i := int32(0); i < int32(len(s.Descriptors)); i++ {
			d := &s.Descriptors[i]
			if d.Variant != Fixed {
				continue
			}
			if s.LoadMohms < d.MohmsMin10 {
				continue
			}
			if d.MVMax >= s.Descriptors[newIndex].MVMax {
				continue
			}
			if s.TargetPowerMW <= s.mwMax90(i) {
				s.BetterIndex = i
				return s.BetterIndex != s.CurrentIndex
			}
		}
	}

	// Either nothing changed or an emergency rewrote newIndex without a
	// better candidate existing; publish it either way.
	s.BetterIndex = newIndex
	return s.BetterIndex != s.CurrentIndex
}
