// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeTimeout indicates the device never answered the handshake
	// request. Nothing has been transmitted past the request byte.
	ErrHandshakeTimeout = errors.New("handshake timeout")
	// ErrHandshakeFailed indicates the device answered with the wrong token.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrPayloadTooLarge indicates the payload does not fit the device EEPROM.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrChecksumMismatch indicates a frame failed CRC verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrReadbackTimeout indicates the readback stalled before its terminator.
	ErrReadbackTimeout = errors.New("readback timeout")
	// ErrReceiveTimeout indicates a device gave up on a stalled frame.
	ErrReceiveTimeout = errors.New("receive timeout")

	ErrFaultOffset     = errors.New("fault offset outside payload and checksum")
	ErrFaultNoop       = errors.New("fault leaves frame unchanged")
	ErrFaultTerminator = errors.New("fault would write the terminator value")
)

// HandshakeMismatchError reports an unexpected handshake reply byte.
type HandshakeMismatchError struct {
	Expected byte
	Actual   byte
}

func (e *HandshakeMismatchError) Error() string {
	return fmt.Sprintf("handshake failed: expected 0x%02X, got 0x%02X", e.Expected, e.Actual)
}

// Is matches ErrHandshakeFailed.
func (e *HandshakeMismatchError) Is(target error) bool {
	return target == ErrHandshakeFailed
}

// PayloadTooLargeError reports a payload that exceeds the EEPROM capacity.
type PayloadTooLargeError struct {
	Length   int
	Capacity int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large: %d bytes (max %d for %d cells)",
		e.Length, MaxPayload(e.Capacity), e.Capacity)
}

// Is matches ErrPayloadTooLarge.
func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

// ChecksumMismatchError reports a failed verification. Residue is the CRC of
// payload and received checksum together, which is zero for intact frames.
type ChecksumMismatchError struct {
	Received   uint8
	Calculated uint8
	Residue    uint8
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("CRC mismatch: expected 0x%02X, got 0x%02X (residue 0x%02X)",
		e.Calculated, e.Received, e.Residue)
}

// Is matches ErrChecksumMismatch.
func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
