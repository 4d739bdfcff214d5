// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// profile-preview renders a reflow profile's temperature timeline to the
// terminal as a heat colored band.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/solderworks/hotplate/devices/termchart"
	"github.com/solderworks/hotplate/heater"
	"github.com/solderworks/hotplate/profiles"
)

func mainImpl() error {
	path := flag.String("f", "profiles.yaml", "YAML profile table")
	width := flag.Int("w", 80, "render width in columns")
	maxTemp := flag.Float64("max", 260, "top of the heat scale in °C")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if *width < 2 {
		return errors.New("width must be at least 2")
	}

	raw, err := ioutil.ReadFile(*path)
	if err != nil {
		return err
	}
	table, err := profiles.ParseYAML(raw)
	if err != nil {
		return err
	}
	if len(table.Items) == 0 {
		return errors.New("no profiles in table")
	}

	chart := termchart.New(heater.StartTemperature, float32(*maxTemp))
	defer chart.Halt()

	for _, p := range table.Items {
		tl := &heater.Timeline{}
		tl.Load(p)
		max := tl.MaxTimeX1000()
		marker := " "
		if p.Id == table.SelectedId {
			marker = "*"
		}
		fmt.Printf("%s %-20s %4d s  ", marker, p.Name, max/1000)

		samples := make([]float32, *width)
		for i := range samples {
			offset := max * int32(i) / int32(*width-1)
			samples[i] = tl.Target(offset)
		}
		if err := chart.Write(samples); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "profile-preview: %s.\n", err)
		os.Exit(1)
	}
}
