// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package eeprom24c stores one framed blob in a 24C02-class I²C EEPROM.
//
// Layout: an 8 byte header { magic 0x42DA LE, size u16 LE, crc32 u32 LE
// (CRC-32/ISO-HDLC over the payload) } followed by the payload. A missing
// or corrupted frame reads back as a clean device; only bus failures are
// errors, so the caller can fall back to defaults without special-casing a
// fresh head.
//
// The 24C02 has 8 byte pages and needs ~10 ms of self-timed write cycle
// after every page, which this driver inserts.
package eeprom24c // import "github.com/solderworks/hotplate/devices/eeprom24c"

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"periph.io/x/periph/conn/i2c"
)

// DefaultAddr is the 24C02 address with all address pins grounded.
const DefaultAddr uint16 = 0x50

const (
	// Size is the total EEPROM capacity in bytes.
	Size = 256
	// PageSize is the write page of a 24C02.
	PageSize = 8

	headerLen  = 8
	magic      = 0x42DA
	// MaxPayload is the largest storable blob.
	MaxPayload = Size - headerLen

	writeCycle = 10 * time.Millisecond
)

// Dev is a framed blob store over one 24C02.
type Dev struct {
	c i2c.Dev
	// sleep is the post-page write delay, swappable in tests.
	sleep func(time.Duration)
}

// New returns a store at addr on b.
func New(b i2c.Bus, addr uint16) *Dev {
	return &Dev{c: i2c.Dev{Bus: b, Addr: addr}, sleep: time.Sleep}
}

func (d *Dev) String() string {
	return fmt.Sprintf("eeprom24c(%s)", &d.c)
}

// Probe checks device presence with a single byte read.
func (d *Dev) Probe() error {
	var dummy [1]byte
	return d.readAt(0, dummy[:])
}

// Read returns the stored payload.
//
// A blank or corrupted frame (bad magic, oversize, CRC mismatch) returns
// (nil, nil): the device is clean and the caller uses defaults. An error is
// returned only for bus failures.
func (d *Dev) Read() ([]byte, error) {
	var hdr [headerLen]byte
	if err := d.readAt(0, hdr[:]); err != nil {
		return nil, fmt.Errorf("eeprom24c: reading header: %v", err)
	}
	if binary.LittleEndian.Uint16(hdr[0:2]) != magic {
		return nil, nil
	}
	size := binary.LittleEndian.Uint16(hdr[2:4])
	if size > MaxPayload {
		return nil, nil
	}
	data := make([]byte, size)
	if size > 0 {
		if err := d.readAt(headerLen, data); err != nil {
			return nil, fmt.Errorf("eeprom24c: reading payload: %v", err)
		}
	}
	if crc32.ChecksumIEEE(data) != binary.LittleEndian.Uint32(hdr[4:8]) {
		return nil, nil
	}
	return data, nil
}

// Write stores data as a new frame.
func (d *Dev) Write(data []byte) error {
	if len(data) > MaxPayload {
		return fmt.Errorf("eeprom24c: payload of %d bytes exceeds %d", len(data), MaxPayload)
	}
	var hdr [headerLen]byte
	binary.LittleEndian.PutUint16(hdr[0:2], magic)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint32(hdr[4:8], crc32.ChecksumIEEE(data))
	if err := d.writeAt(0, hdr[:]); err != nil {
		return fmt.Errorf("eeprom24c: writing header: %v", err)
	}
	if len(data) > 0 {
		if err := d.writeAt(headerLen, data); err != nil {
			return fmt.Errorf("eeprom24c: writing payload: %v", err)
		}
	}
	return nil
}

// readAt reads into buf starting at addr, chunking at page size.
func (d *Dev) readAt(addr uint16, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > PageSize {
			n = PageSize
		}
		if err := d.c.Tx([]byte{byte(addr)}, buf[:n]); err != nil {
			return err
		}
		addr += uint16(n)
		buf = buf[n:]
	}
	return nil
}

// writeAt writes buf starting at addr, never crossing a page boundary in
// one transaction and waiting out the self-timed write cycle after each.
func (d *Dev) writeAt(addr uint16, buf []byte) error {
	for len(buf) > 0 {
		untilPageEnd := PageSize - int(addr)%PageSize
		n := len(buf)
		if n > untilPageEnd {
			n = untilPageEnd
		}
		w := make([]byte, 1+n)
		w[0] = byte(addr)
		copy(w[1:], buf[:n])
		if err := d.c.Tx(w, nil); err != nil {
			return err
		}
		d.sleep(writeCycle)
		addr += uint16(n)
		buf = buf[n:]
	}
	return nil
}
