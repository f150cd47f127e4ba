// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import "fmt"

// Decoder assembles a frame window one byte at a time. It finishes on the
// terminator or once maxCount bytes are held, whichever comes first.
type Decoder struct {
	state    int
	maxCount int
	buffer   []byte
	crc      uint8
}

// NewDecoder creates a decoder for a device with the given EEPROM capacity.
// The window holds at most capacity bytes: the largest payload plus its
// checksum.
func NewDecoder(capacity int) *Decoder {
	if capacity < 1 {
		capacity = 1
	}
	return &Decoder{
		state:    stateIdle,
		maxCount: capacity,
		buffer:   make([]byte, 0, capacity),
	}
}

// Reset discards any partial frame
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.crc = crcInitial
}

// Len returns the number of window bytes held so far
func (d *Decoder) Len() int {
	return len(d.buffer)
}

// Residue returns the running CRC over the window so far
func (d *Decoder) Residue() uint8 {
	return d.crc
}

// DecodeByte processes a single byte.
// Returns a completed frame, or nil if more bytes are needed.
// Returns an error if called again after completion without Reset.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		d.state = stateReceiving
		fallthrough

	case stateReceiving:
		if b == Terminator {
			return d.complete(false), nil
		}
		d.buffer = append(d.buffer, b)
		d.crc = UpdateCRC(d.crc, b)
		if len(d.buffer) >= d.maxCount {
			return d.complete(true), nil
		}
		return nil, nil

	case stateComplete:
		return nil, fmt.Errorf("decoder complete, byte 0x%02X needs Reset", b)

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", state)
	}
}

func (d *Decoder) complete(truncated bool) *Frame {
	d.state = stateComplete
	window := make([]byte, len(d.buffer))
	copy(window, d.buffer)
	return NewFrame(window, truncated)
}
