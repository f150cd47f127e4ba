// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eeprom

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// imageVersion is bumped when the Snapshot layout changes
const imageVersion = 1

// Snapshot is the persistent form of a Mirror
type Snapshot struct {
	Version  uint      `cbor:"0,keyasint"`
	Saved    time.Time `cbor:"1,keyasint"`
	Cells    []byte    `cbor:"2,keyasint"`
	States   []byte    `cbor:"3,keyasint"`
	Erases   []uint32  `cbor:"4,keyasint"`
	Programs []uint32  `cbor:"5,keyasint"`
}

// Snapshot captures cells, cell states and wear
func (m *Mirror) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Snapshot{
		Version:  imageVersion,
		Saved:    time.Now().UTC(),
		Cells:    make([]byte, len(m.cells)),
		States:   make([]byte, len(m.states)),
		Erases:   make([]uint32, len(m.erases)),
		Programs: make([]uint32, len(m.programs)),
	}
	copy(s.Cells, m.cells)
	for i, st := range m.states {
		s.States[i] = byte(st)
	}
	copy(s.Erases, m.erases)
	copy(s.Programs, m.programs)
	return s
}

// Restore replaces the mirror contents with a snapshot of the same size
func (m *Mirror) Restore(s *Snapshot) error {
	if s.Version != imageVersion {
		return fmt.Errorf("unsupported image version %d (want %d)", s.Version, imageVersion)
	}
	n := len(m.cells)
	if len(s.Cells) != n || len(s.States) != n || len(s.Erases) != n || len(s.Programs) != n {
		return fmt.Errorf("image size mismatch: image has %d cells, mirror has %d", len(s.Cells), n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.cells, s.Cells)
	for i, st := range s.States {
		if CellState(st) > CellProgrammed {
			st = byte(CellUnknown)
		}
		m.states[i] = CellState(st)
	}
	copy(m.erases, s.Erases)
	copy(m.programs, s.Programs)
	return nil
}

// MarshalImage encodes a snapshot as CBOR
func MarshalImage(s *Snapshot) ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return data, nil
}

// UnmarshalImage decodes a CBOR snapshot
func UnmarshalImage(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &s, nil
}

// SaveImage writes the mirror to path
func (m *Mirror) SaveImage(path string) error {
	data, err := MarshalImage(m.Snapshot())
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ReadImage reads a snapshot from path
func ReadImage(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalImage(data)
}

// LoadImage restores the mirror from path
func (m *Mirror) LoadImage(path string) error {
	s, err := ReadImage(path)
	if err != nil {
		return err
	}
	return m.Restore(s)
}
