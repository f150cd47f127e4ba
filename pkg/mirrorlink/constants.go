// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mirrorlink implements the mirrorlink transfer protocol.
//
// A host pushes one frame (payload, CRC8, zero terminator) to a device over a
// slow half-duplex serial link after a two byte handshake. The device mirrors
// every byte into EEPROM, verifies the CRC, stores its own recomputed CRC
// after the payload and streams the stored bytes back so the host can
// confirm persistence.
//
// Verification failures are reported but never abort a session. There is no
// retransmission.
package mirrorlink

import "time"

// Wire bytes
const (
	HandshakeRequest = 'O'  // host -> device
	HandshakeReply   = 'T'  // device -> host
	Terminator       = 0x00 // ends a frame and a readback
)

// Link and storage defaults
const (
	DefaultBaudRate = 2400
	DefaultTimeout  = time.Second

	// DefaultCapacity is the EEPROM size of the reference board (ATmega328P
	// style, 2048 cells). One cell is reserved for the checksum.
	DefaultCapacity = 2048

	// DefaultSettleDelay is how long the host waits after opening the port
	// before the handshake. Opening the port resets most boards.
	DefaultSettleDelay = time.Second

	// DefaultHandshakeGap is the pause between the handshake and the first
	// frame byte.
	DefaultHandshakeGap = 2 * time.Millisecond

	// DefaultPollInterval bounds how long the device blocks on the link
	// before checking for cancellation.
	DefaultPollInterval = 100 * time.Millisecond
)

// CRC8 configuration
const (
	crcPolynomial = 0x07
	crcInitial    = 0x00
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateReceiving
	stateComplete
)

// Device diagnostic lines. The firmware printed these on the serial line
// ahead of the readback, the result lines followed by two blank lines.
const (
	DiagnosticVerifying = "Verifying checksum...\n"
	DiagnosticVerified  = "Checksum verified\n\n\n"
	DiagnosticCorrupt   = "Data corruption: CRC checksum failure\n\n\n"
)

// MaxPayload returns the largest payload a device with the given EEPROM
// capacity can store. The checksum takes the cell after the payload.
func MaxPayload(capacity int) int {
	if capacity < 1 {
		return 0
	}
	return capacity - 1
}
