// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eeprom

import (
	"sync"
	"time"
)

// Counters counts storage operations since creation or the last
// ResetCounters
type Counters struct {
	Erases      uint64
	Writes      uint64
	EraseWrites uint64
	Reads       uint64

	// Writes to cells that were not erased first. These may not store the
	// requested value.
	UnerasedWrites uint64
}

// Mirror is an in-memory Storage
type Mirror struct {
	mu       sync.Mutex
	cells    []byte
	states   []CellState
	erases   []uint32 // per-cell erase cycles
	programs []uint32 // per-cell program cycles
	counters Counters
	timing   Timing
	sleep    func(time.Duration)
}

// Option configures a Mirror
type Option func(*Mirror)

// WithTiming makes every operation block for its simulated latency
func WithTiming(t Timing) Option {
	return func(m *Mirror) {
		m.timing = t
	}
}

// WithSleep replaces time.Sleep for simulated latency
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Mirror) {
		m.sleep = sleep
	}
}

// NewMirror creates a mirror of size cells. Cells start in the unknown state
// holding ErasedValue, as a factory-fresh part does.
func NewMirror(size int, opts ...Option) *Mirror {
	if size < 0 {
		size = 0
	}
	m := &Mirror{
		cells:    make([]byte, size),
		states:   make([]CellState, size),
		erases:   make([]uint32, size),
		programs: make([]uint32, size),
		sleep:    time.Sleep,
	}
	for i := range m.cells {
		m.cells[i] = ErasedValue
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) Size() int {
	return len(m.cells)
}

// Erase resets a cell to ErasedValue
func (m *Mirror) Erase(addr int) error {
	if err := checkAddress(addr, len(m.cells)); err != nil {
		return err
	}
	m.delay(m.timing.Erase)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[addr] = ErasedValue
	m.states[addr] = CellErased
	m.erases[addr]++
	m.counters.Erases++
	return nil
}

// Write programs a cell without erasing it. Programming can only clear
// bits, so the stored value is the AND of the old content and b.
func (m *Mirror) Write(addr int, b byte) error {
	if err := checkAddress(addr, len(m.cells)); err != nil {
		return err
	}
	m.delay(m.timing.Write)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[addr] != CellErased {
		m.counters.UnerasedWrites++
	}
	m.cells[addr] &= b
	m.states[addr] = CellProgrammed
	m.programs[addr]++
	m.counters.Writes++
	return nil
}

// EraseWrite erases and programs a cell in one operation
func (m *Mirror) EraseWrite(addr int, b byte) error {
	if err := checkAddress(addr, len(m.cells)); err != nil {
		return err
	}
	m.delay(m.timing.EraseWrite)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[addr] = b
	m.states[addr] = CellProgrammed
	m.erases[addr]++
	m.programs[addr]++
	m.counters.EraseWrites++
	return nil
}

func (m *Mirror) Read(addr int) (byte, error) {
	if err := checkAddress(addr, len(m.cells)); err != nil {
		return 0, err
	}
	m.delay(m.timing.Read)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Reads++
	return m.cells[addr], nil
}

// State returns the recent history of a cell
func (m *Mirror) State(addr int) (CellState, error) {
	if err := checkAddress(addr, len(m.cells)); err != nil {
		return CellUnknown, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[addr], nil
}

// Wear returns the erase and program cycle counts of a cell
func (m *Mirror) Wear(addr int) (erases, programs uint32, err error) {
	if err := checkAddress(addr, len(m.cells)); err != nil {
		return 0, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.erases[addr], m.programs[addr], nil
}

// Counters returns a copy of the operation counters
func (m *Mirror) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// ResetCounters zeroes the operation counters. Wear is kept.
func (m *Mirror) ResetCounters() {
	m.mu.Lock()
	m.counters = Counters{}
	m.mu.Unlock()
}

// Contents returns a copy of cells [from, to)
func (m *Mirror) Contents(from, to int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if from < 0 {
		from = 0
	}
	if to > len(m.cells) {
		to = len(m.cells)
	}
	if from >= to {
		return []byte{}
	}
	out := make([]byte, to-from)
	copy(out, m.cells[from:to])
	return out
}

func (m *Mirror) delay(d time.Duration) {
	if d > 0 {
		m.sleep(d)
	}
}
