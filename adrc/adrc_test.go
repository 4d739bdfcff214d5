// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adrc

import (
	"math"
	"testing"
)

// First order plant: dy/dt = (b0·u + (ambient-y)/tau). Mirrors a resistive
// heater losing heat to ambient.
type plant struct {
	y, tau, b0, ambient float64
}

func (p *plant) step(u, dt float64) {
	p.y += dt * (p.b0*u + (p.ambient-p.y)/p.tau)
}

func TestSteadyStateTracking(t *testing.T) {
	const (
		b0  = 0.8
		tau = 60.0
		dt  = 0.05
	)
	p := &plant{y: 25, tau: tau, b0: b0, ambient: 25}
	c := &Controller{}
	c.SetParams(b0, tau, 4, 6)
	c.ResetTo(float32(p.y))

	const yRef = 150.0
	for i := 0; i < int(20*tau/dt); i++ {
		u := c.Iterate(float32(p.y), yRef, 100, dt)
		if u < 0 || u > 100 {
			t.Fatalf("output %f escaped [0, 100]", u)
		}
		p.step(float64(u), dt)
	}
	if err := math.Abs(p.y - yRef); err > 0.5 {
		t.Fatalf("steady state error %.3f °C, want < 0.5", err)
	}
}

func TestAntiWindupRecovery(t *testing.T) {
	const (
		b0  = 0.1 // weak heater: will saturate
		tau = 30.0
		dt  = 0.05
	)
	p := &plant{y: 25, tau: tau, b0: b0, ambient: 25}
	c := &Controller{}
	c.SetParams(b0, tau, 4, 6)
	c.ResetTo(float32(p.y))

	// Unreachable setpoint saturates the output for a while.
	for i := 0; i < int(5*tau/dt); i++ {
		u := c.Iterate(float32(p.y), 500, 10, dt)
		p.step(float64(u), dt)
	}
	// Then drop to a reachable one. A wound-up integrator would badly
	// overshoot; the observer-fed clamp must not.
	for i := 0; i < int(10*tau/dt); i++ {
		u := c.Iterate(float32(p.y), 45, 10, dt)
		p.step(float64(u), dt)
	}
	if math.Abs(p.y-45) > 1 {
		t.Fatalf("did not settle at 45 °C after saturation, got %.2f", p.y)
	}
}

func TestResetTo(t *testing.T) {
	c := &Controller{}
	c.SetParams(1, 10, 4, 6)
	for i := 0; i < 100; i++ {
		c.Iterate(50, 200, 100, 0.05)
	}
	c.ResetTo(30)
	// With y == yRef == z1 and z2 == 0 the first output must be exactly 0.
	if u := c.Iterate(30, 30, 100, 0.05); u != 0 {
		t.Fatalf("output after reset = %f, want 0", u)
	}
}
