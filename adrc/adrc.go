// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package adrc implements a first order active disturbance rejection
// controller.
//
// The controller tracks a setpoint through an extended state observer: z1
// estimates the plant output, z2 the lumped disturbance. Tuning is two
// knobs on top of the identified plant (b0, tau): N sets the controller
// bandwidth ωc = N/τ and M the observer bandwidth ωo = M·ωc.
package adrc // import "github.com/solderworks/hotplate/adrc"

// Controller holds the observer state and gains. Not safe for concurrent
// use; the heater core owns it exclusively.
type Controller struct {
	b0    float32
	beta1 float32
	beta2 float32
	kp    float32
	z1    float32
	z2    float32
}

// SetParams derives the gains from plant and tuning parameters.
//
// tau is the open loop time constant in seconds, b0 the control gain.
func (c *Controller) SetParams(b0, tau, n, m float32) {
	omegaC := n / tau
	omegaO := m * omegaC
	c.SetParamsRaw(b0, omegaO, omegaC)
}

// SetParamsRaw sets the gains directly from b0, the observer bandwidth and
// the proportional gain.
func (c *Controller) SetParamsRaw(b0, omegaO, kp float32) {
	c.b0 = b0
	c.beta1 = 2 * omegaO
	c.beta2 = omegaO * omegaO
	c.kp = kp
}

// Iterate advances the controller by dt seconds and returns the control
// output, clamped to [0, uMax].
//
// The observer is updated with the clamped output, which is what keeps the
// integrator from winding up while the actuator is saturated.
func (c *Controller) Iterate(y, yRef, uMax, dt float32) float32 {
	e := yRef - c.z1
	u := (c.kp*e - c.z2) / c.b0
	if u < 0 {
		u = 0
	} else if u > uMax {
		u = uMax
	}

	eObs := y - c.z1
	c.z1 += dt * (c.b0*u + c.z2 + c.beta1*eObs)
	c.z2 += dt * (c.beta2 * eObs)
	return u
}

// ResetTo re-seats the observer on the measured output y and clears the
// disturbance estimate. Call at controller-on, never mid-iteration.
func (c *Controller) ResetTo(y float32) {
	c.z1 = y
	c.z2 = 0
}
