// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hotplate is the control core of a USB-PD powered soldering reflow
// hotplate.
//
// It negotiates a power contract with a USB-PD charger, drives a resistive
// heater through a software PWM, runs an active disturbance rejection
// controller (ADRC) to track a temperature profile, and records a sparse
// history of the resulting trajectory.
//
// The wire-level USB-PD engine (TCPC driver and the TC/PE/PRL state
// machines), the BLE transport and the RPC dispatcher are external
// collaborators; this module starts at the device policy manager boundary
// and owns everything between it and the heater.
package hotplate // import "github.com/solderworks/hotplate"
