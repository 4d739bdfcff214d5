// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termchart renders a thermal curve to the terminal (stdout) using
// ANSI color codes.
//
// Each sample becomes one colored block on a black-red-yellow-white heat
// scale. Useful to eyeball a reflow profile or a recorded history without
// leaving the shell.
package termchart // import "github.com/solderworks/hotplate/devices/termchart"

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Dev renders sample rows to a writer.
type Dev struct {
	w        io.Writer
	min, max float32
	buf      bytes.Buffer
}

// New returns a Dev rendering to the console with the given temperature
// scale in °C.
func New(min, max float32) *Dev {
	return NewWriter(colorable.NewColorableStdout(), min, max)
}

// NewWriter returns a Dev rendering to w.
func NewWriter(w io.Writer, min, max float32) *Dev {
	return &Dev{w: w, min: min, max: max}
}

func (d *Dev) String() string {
	return fmt.Sprintf("termchart(%g-%g)", d.min, d.max)
}

// Halt resets the terminal colors.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Write renders one row of temperature samples and a trailing newline.
func (d *Dev) Write(samples []float32) error {
	if d.max <= d.min {
		return errors.New("termchart: empty temperature scale")
	}
	// Minimize per-call allocations, same trick as a frame renderer.
	d.buf.Reset()
	_, _ = d.buf.WriteString("\033[0m")
	for _, s := range samples {
		_, _ = io.WriteString(&d.buf, ansi256.Default.Block(d.heatColor(s)))
	}
	_, _ = d.buf.WriteString("\033[0m\n")
	_, err := d.buf.WriteTo(d.w)
	return err
}

// heatColor maps a temperature to the black-red-yellow-white scale.
func (d *Dev) heatColor(t float32) color.NRGBA {
	norm := (t - d.min) / (d.max - d.min)
	if norm < 0 {
		norm = 0
	} else if norm > 1 {
		norm = 1
	}
	v := norm * 3
	switch {
	case v <= 1:
		return color.NRGBA{R: uint8(v * 255), A: 255}
	case v <= 2:
		return color.NRGBA{R: 255, G: uint8((v - 1) * 255), A: 255}
	default:
		return color.NRGBA{R: 255, G: 255, B: uint8((v - 2) * 255), A: 255}
	}
}

var _ fmt.Stringer = &Dev{}
