// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eeprom

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror_FreshCellsUnknown(t *testing.T) {
	m := NewMirror(4)
	assert.Equal(t, 4, m.Size())

	state, err := m.State(0)
	require.NoError(t, err)
	assert.Equal(t, CellUnknown, state)

	b, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, byte(ErasedValue), b)
}

func TestMirror_EraseThenWrite(t *testing.T) {
	m := NewMirror(4)
	require.NoError(t, m.Erase(1))
	require.NoError(t, m.Write(1, 0x5A))

	b, err := m.Read(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), b)

	state, _ := m.State(1)
	assert.Equal(t, CellProgrammed, state)
	assert.Zero(t, m.Counters().UnerasedWrites)
}

func TestMirror_WriteWithoutEraseOnlyClearsBits(t *testing.T) {
	m := NewMirror(4)
	require.NoError(t, m.Erase(0))
	require.NoError(t, m.Write(0, 0xF0))
	require.NoError(t, m.Write(0, 0x0F))

	b, _ := m.Read(0)
	assert.Equal(t, byte(0x00), b, "second write cannot set bits the first cleared")
	assert.Equal(t, uint64(1), m.Counters().UnerasedWrites)
}

func TestMirror_EraseWrite(t *testing.T) {
	m := NewMirror(4)
	require.NoError(t, m.EraseWrite(2, 0x00))
	require.NoError(t, m.EraseWrite(2, 0xA5))

	b, _ := m.Read(2)
	assert.Equal(t, byte(0xA5), b)

	erases, programs, err := m.Wear(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), erases)
	assert.Equal(t, uint32(2), programs)
	assert.Equal(t, uint64(2), m.Counters().EraseWrites)
}

func TestMirror_AddressOutOfRange(t *testing.T) {
	m := NewMirror(4)

	checks := map[string]error{
		"erase":       m.Erase(4),
		"write":       m.Write(-1, 0),
		"erase-write": m.EraseWrite(4, 0),
	}
	_, checks["read"] = m.Read(100)
	_, checks["state"] = m.State(4)

	for name, err := range checks {
		assert.True(t, errors.Is(err, ErrAddressOutOfRange), "%s: got %v", name, err)
	}
}

func TestEraseRange(t *testing.T) {
	m := NewMirror(8)
	for i := 0; i < 8; i++ {
		require.NoError(t, m.EraseWrite(i, 0x11))
	}

	require.NoError(t, EraseRange(m, 100))
	assert.Equal(t, bytes.Repeat([]byte{ErasedValue}, 8), m.Contents(0, 8))
	assert.Equal(t, uint64(8), m.Counters().Erases)
}

func TestMirror_Timing(t *testing.T) {
	var slept []time.Duration
	m := NewMirror(2, WithTiming(AVRTiming), WithSleep(func(d time.Duration) {
		slept = append(slept, d)
	}))

	require.NoError(t, m.Erase(0))
	require.NoError(t, m.Write(0, 1))
	require.NoError(t, m.EraseWrite(1, 1))
	_, err := m.Read(0)
	require.NoError(t, err)

	// Reads are free on AVR
	assert.Equal(t, []time.Duration{AVRTiming.Erase, AVRTiming.Write, AVRTiming.EraseWrite}, slept)
}

func TestMirror_ResetCountersKeepsWear(t *testing.T) {
	m := NewMirror(1)
	require.NoError(t, m.Erase(0))
	m.ResetCounters()

	assert.Zero(t, m.Counters().Erases)
	erases, _, _ := m.Wear(0)
	assert.Equal(t, uint32(1), erases)
}

func TestMirror_Contents(t *testing.T) {
	m := NewMirror(4)
	assert.Len(t, m.Contents(-5, 100), 4)
	assert.Empty(t, m.Contents(3, 1))
}

// ============================================================
// Image Tests
// ============================================================

func TestImage_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.img")

	m := NewMirror(16)
	require.NoError(t, EraseRange(m, 16))
	for i, b := range []byte("AB\x87") {
		require.NoError(t, m.Write(i, b))
	}
	require.NoError(t, m.SaveImage(path))

	restored := NewMirror(16)
	require.NoError(t, restored.LoadImage(path))
	assert.Equal(t, m.Contents(0, 16), restored.Contents(0, 16))

	state, _ := restored.State(0)
	assert.Equal(t, CellProgrammed, state)
	state, _ = restored.State(5)
	assert.Equal(t, CellErased, state)

	erases, programs, _ := restored.Wear(1)
	assert.Equal(t, uint32(1), erases)
	assert.Equal(t, uint32(1), programs)
}

func TestImage_SizeMismatch(t *testing.T) {
	s := NewMirror(8).Snapshot()
	err := NewMirror(16).Restore(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}

func TestImage_BadVersion(t *testing.T) {
	s := NewMirror(8).Snapshot()
	s.Version = 99
	assert.Error(t, NewMirror(8).Restore(s))
}

func TestImage_Corrupt(t *testing.T) {
	_, err := UnmarshalImage([]byte{0xFF, 0x00})
	assert.Error(t, err)
}

func TestImage_MarshalRoundTrip(t *testing.T) {
	m := NewMirror(4)
	require.NoError(t, m.EraseWrite(3, 0x42))

	data, err := MarshalImage(m.Snapshot())
	require.NoError(t, err)
	s, err := UnmarshalImage(data)
	require.NoError(t, err)
	assert.Equal(t, m.Contents(0, 4), s.Cells)
}

// ============================================================
// Dump Tests
// ============================================================

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	cells := append([]byte("Hello, mirror!"), 0xD0, 0xFF, 'x')
	require.NoError(t, Dump(&buf, cells, 0x100))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0100  48 65 6C 6C 6F 2C 20 6D  69 72 72 6F 72 21 D0 FF "))
	assert.True(t, strings.HasSuffix(lines[0], "|Hello, mirror!..|"))
	assert.True(t, strings.HasPrefix(lines[1], "0110  78 "))
	assert.True(t, strings.HasSuffix(lines[1], "|x|"))
}
