// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial wraps a serial port
type Serial struct {
	port    serial.Port
	name    string
	timeout time.Duration
	buf     [1]byte
}

// OpenSerial opens a serial port at baudRate, 8N1
func OpenSerial(portName string, baudRate int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return NewSerial(port, portName), nil
}

// NewSerial wraps an already open port
func NewSerial(port serial.Port, name string) *Serial {
	return &Serial{port: port, name: name, timeout: -1}
}

// Name returns the port device name
func (s *Serial) Name() string {
	return s.name
}

func (s *Serial) Receive(timeout time.Duration) (byte, error) {
	if timeout != s.timeout {
		t := timeout
		if t <= 0 {
			t = serial.NoTimeout
		}
		if err := s.port.SetReadTimeout(t); err != nil {
			return 0, mapSerialError(err)
		}
		s.timeout = timeout
	}

	// go.bug.st/serial reports a read timeout as a zero-length read
	n, err := s.port.Read(s.buf[:])
	if err != nil {
		return 0, mapSerialError(err)
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return s.buf[0], nil
}

func (s *Serial) Transmit(b byte) error {
	s.buf[0] = b
	if _, err := s.port.Write(s.buf[:]); err != nil {
		return mapSerialError(err)
	}
	return nil
}

func (s *Serial) Drain() error {
	return mapSerialError(s.port.Drain())
}

// ResetInput discards bytes the port received but nobody read yet
func (s *Serial) ResetInput() error {
	return mapSerialError(s.port.ResetInputBuffer())
}

func (s *Serial) Close() error {
	return s.port.Close()
}

func mapSerialError(err error) error {
	if err == nil {
		return nil
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
