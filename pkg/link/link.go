// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link provides byte-oriented half-duplex drivers for serial ports,
// byte streams (pseudo-terminals, WebSockets) and in-memory pipes.
//
// Every driver moves a single byte per operation and reports a receive that
// saw nothing within its timeout as ErrTimeout.
package link

import (
	"errors"
	"time"
)

var (
	// ErrTimeout indicates no byte arrived within the receive timeout
	ErrTimeout = errors.New("link timeout")
	// ErrClosed indicates the link is closed or the peer went away
	ErrClosed = errors.New("link closed")
)

// Driver is a blocking single-byte link. A timeout <= 0 blocks until a byte
// arrives or the link closes.
type Driver interface {
	Receive(timeout time.Duration) (byte, error)
	Transmit(b byte) error
	// Drain blocks until transmitted bytes have left the driver
	Drain() error
	Close() error
}

// ResetInput drops stale input before a new exchange. Drivers with their
// own ResetInput flush immediately; others are read until quiet for quiet.
func ResetInput(d Driver, quiet time.Duration) error {
	if r, ok := d.(interface{ ResetInput() error }); ok {
		return r.ResetInput()
	}
	_, err := Discard(d, quiet)
	return err
}

// Discard reads and drops bytes until the link has been quiet for quiet.
// Returns the number of bytes dropped.
func Discard(d Driver, quiet time.Duration) (int, error) {
	n := 0
	for {
		_, err := d.Receive(quiet)
		if errors.Is(err, ErrTimeout) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
