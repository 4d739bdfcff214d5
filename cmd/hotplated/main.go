// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// hotplated runs the hotplate control core on a host.
//
// When no I²C bus is named with -bus, the hardware and the USB-PD source
// are emulated, which makes the full control loop drivable
// on a workstation: the simulated pad heats, the drain tracker measures
// it, and reflow profiles run end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/gpio/gpiotest"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/solderworks/hotplate/activity"
	"github.com/solderworks/hotplate/app"
	"github.com/solderworks/hotplate/profiles"
)

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	busName := flag.String("bus", "", "I²C bus name (empty: simulate)")
	pinName := flag.String("pin", "GPIO3", "heater load switch pin")
	profilesPath := flag.String("profiles", "", "YAML profile table to load at start")
	reflow := flag.Bool("reflow", false, "start the selected profile immediately")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	logger := logrus.New()
	logger.SetOutput(colorable.NewColorableStdout())
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := app.Config{
		KV:  newMemKV(),
		Log: logger,
	}

	var sim *simulator
	if *busName == "" {
		pin := &gpiotest.Pin{N: "SIM_LOAD", Num: 3}
		sim = newSimulator(pin)
		cfg.Bus = sim
		cfg.LoadPin = pin
		cfg.Sensor = sim
		cfg.Requester = sim
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		bus, err := i2creg.Open(*busName)
		if err != nil {
			return err
		}
		defer bus.Close()
		pin := gpioreg.ByName(*pinName)
		if pin == nil {
			return fmt.Errorf("no such pin %q", *pinName)
		}
		cfg.Bus = bus
		cfg.LoadPin = pin
		// The sensor ADC sits outside the I²C bus; without a board
		// specific reader the head stays detached.
		cfg.Sensor = floatingSensor{}
		cfg.Requester = rejectingRequester{}
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	if *profilesPath != "" {
		raw, err := ioutil.ReadFile(*profilesPath)
		if err != nil {
			return err
		}
		table, err := profiles.ParseYAML(raw)
		if err != nil {
			return err
		}
		if err := a.Profiles.Set(table); err != nil {
			return err
		}
		logger.Infof("loaded %d profiles", len(table.Items))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if sim != nil {
		sim.start(ctx, a)
	}
	if *reflow {
		a.Activity.Enqueue(activity.Command{Kind: activity.CmdReflow})
	}

	a.Run(ctx)
	return nil
}

// floatingSensor reads like no head attached.
type floatingSensor struct{}

func (floatingSensor) ReadMV() uint32 { return 2400 }

// rejectingRequester stands in while no PD stack is wired up.
type rejectingRequester struct{}

func (rejectingRequester) RequestCap(index int32, mv uint32) error {
	return errors.New("no PD stack attached")
}

type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (kv *memKV) Write(ns, key string, data []byte) error {
	kv.m[ns+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (kv *memKV) Read(ns, key string) ([]byte, error) { return kv.m[ns+"/"+key], nil }
func (kv *memKV) Length(ns, key string) int           { return len(kv.m[ns+"/"+key]) }

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "hotplated: %s.\n", err)
		os.Exit(1)
	}
}

var _ i2c.Bus = &simulator{}
var _ gpio.PinIO = &gpiotest.Pin{}
