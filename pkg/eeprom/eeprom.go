// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package eeprom emulates byte-addressable EEPROM with separate erase,
// write and erase-write operations.
//
// A plain write can only clear bits. A cell must be erased before a write
// stores exactly the requested byte.
package eeprom

import (
	"errors"
	"fmt"
	"time"
)

// ErasedValue is the content of an erased cell
const ErasedValue = 0xFF

// ErrAddressOutOfRange indicates an address beyond the storage size
var ErrAddressOutOfRange = errors.New("address out of range")

// Storage is byte-addressable non-volatile storage
type Storage interface {
	Erase(addr int) error
	Write(addr int, b byte) error
	EraseWrite(addr int, b byte) error
	Read(addr int) (byte, error)
	Size() int
}

// CellState is what the mirror knows about a cell's recent history
type CellState uint8

const (
	CellUnknown CellState = iota
	CellErased
	CellProgrammed
)

func (s CellState) String() string {
	switch s {
	case CellUnknown:
		return "unknown"
	case CellErased:
		return "erased"
	case CellProgrammed:
		return "programmed"
	default:
		return fmt.Sprintf("CellState(%d)", uint8(s))
	}
}

// Timing holds the simulated latency of each operation class
type Timing struct {
	Erase      time.Duration
	Write      time.Duration
	EraseWrite time.Duration
	Read       time.Duration
}

// AVRTiming approximates ATmega328P EEPROM programming times
var AVRTiming = Timing{
	Erase:      1800 * time.Microsecond,
	Write:      1800 * time.Microsecond,
	EraseWrite: 3400 * time.Microsecond,
}

// EraseRange erases addresses [0, n) of s
func EraseRange(s Storage, n int) error {
	if n > s.Size() {
		n = s.Size()
	}
	for addr := 0; addr < n; addr++ {
		if err := s.Erase(addr); err != nil {
			return err
		}
	}
	return nil
}

func checkAddress(addr, size int) error {
	if addr < 0 || addr >= size {
		return fmt.Errorf("%w: %d (size %d)", ErrAddressOutOfRange, addr, size)
	}
	return nil
}
