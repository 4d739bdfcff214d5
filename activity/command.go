// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package activity

// CmdKind tags a command entering the activity FSM.
type CmdKind int

const (
	// CmdStop ends the running task. Success distinguishes a normal
	// completion from a termination.
	CmdStop CmdKind = iota
	// CmdReflow starts the selected reflow profile.
	CmdReflow
	// CmdSensorBake applies constant power for sensor testing.
	CmdSensorBake
	// CmdAdrcTest holds a fixed temperature under closed-loop control.
	CmdAdrcTest
	// CmdStepResponse applies a power step and identifies the plant.
	CmdStepResponse
	// CmdBondOff ends the BLE bonding window.
	CmdBondOff
	// CmdButton carries a debounced button gesture.
	CmdButton
)

func (k CmdKind) String() string {
	switch k {
	case CmdStop:
		return "Stop"
	case CmdReflow:
		return "Reflow"
	case CmdSensorBake:
		return "SensorBake"
	case CmdAdrcTest:
		return "AdrcTest"
	case CmdStepResponse:
		return "StepResponse"
	case CmdBondOff:
		return "BondOff"
	case CmdButton:
		return "Button"
	}
	return "Unknown"
}

// ButtonGesture is a debounced button event.
type ButtonGesture int

const (
	LongPressStart ButtonGesture = iota
	LongPressFail
	LongPress
	Pressed1x
	Pressed2x
	Pressed3x
	Pressed4x
	Pressed5x
)

// Command is one FIFO entry.
type Command struct {
	Kind CmdKind
	// Success accompanies CmdStop.
	Success bool
	// Watts accompanies CmdSensorBake and CmdStepResponse.
	Watts float32
	// Temperature accompanies CmdAdrcTest.
	Temperature float32
	// Button accompanies CmdButton.
	Button ButtonGesture
}
