// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import "time"

// Frame is a decoded frame window: every byte received before the
// terminator. The last byte of the window is the checksum.
type Frame struct {
	window    []byte
	truncated bool
	timestamp time.Time
}

// NewFrame creates a frame from a received window
func NewFrame(window []byte, truncated bool) *Frame {
	return &Frame{
		window:    window,
		truncated: truncated,
		timestamp: time.Now(),
	}
}

// Window returns payload and checksum as received
func (f *Frame) Window() []byte {
	return f.window
}

// Payload returns the bytes before the checksum
func (f *Frame) Payload() []byte {
	if len(f.window) == 0 {
		return f.window
	}
	return f.window[:len(f.window)-1]
}

// Size returns the payload length, which is also the EEPROM address of the
// checksum cell.
func (f *Frame) Size() int {
	return len(f.Payload())
}

// Checksum returns the received checksum byte. An empty window carries the
// checksum of an empty payload, which is zero and collides with the
// terminator.
func (f *Frame) Checksum() uint8 {
	if len(f.window) == 0 {
		return CalculateCRC(nil)
	}
	return f.window[len(f.window)-1]
}

// Truncated returns true if the frame hit the size limit before its
// terminator arrived
func (f *Frame) Truncated() bool {
	return f.truncated
}

// Timestamp returns the frame completion time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// EncodeFrame builds the wire form of payload for a device with the given
// EEPROM capacity: payload, CRC8, terminator.
//
// Payload bytes equal to the terminator are not escaped. A payload with a
// zero byte (or whose CRC happens to be zero) ends early on the device.
func EncodeFrame(payload []byte, capacity int) ([]byte, error) {
	if len(payload) > MaxPayload(capacity) {
		return nil, &PayloadTooLargeError{Length: len(payload), Capacity: capacity}
	}

	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, payload...)
	frame = append(frame, CalculateCRC(payload))
	frame = append(frame, Terminator)
	return frame, nil
}

// ExpectedReadback returns what an intact transfer of payload reads back
// from the device: the payload followed by its CRC. The terminator is not
// included.
func ExpectedReadback(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)
	return append(out, CalculateCRC(payload))
}

// HasSentinelCollision returns true if the encoded frame would be cut short
// by a terminator value inside the payload or checksum.
func HasSentinelCollision(payload []byte) bool {
	for _, b := range payload {
		if b == Terminator {
			return true
		}
	}
	return len(payload) > 0 && CalculateCRC(payload) == Terminator
}
