// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultInjector_Replace(t *testing.T) {
	frame, err := EncodeFrame([]byte("Hello, mirror!"), DefaultCapacity)
	require.NoError(t, err)

	corrupted, err := LegacyBurstFault().Apply(frame)
	require.NoError(t, err)

	assert.Equal(t, byte('0'), corrupted[7])
	assert.Equal(t, byte('m'), frame[7], "original frame must not be modified")
	for i := range frame {
		if i != 7 {
			assert.Equal(t, frame[i], corrupted[i], "byte %d changed", i)
		}
	}
}

func TestFaultInjector_Flip(t *testing.T) {
	frame := []byte{'A', 'B', 0x87, Terminator}
	f := &FaultInjector{Offset: 2, Mode: FaultFlip, Value: 0x01}

	corrupted, err := f.Apply(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 'B', 0x86, Terminator}, corrupted)
}

func TestFaultInjector_Rejections(t *testing.T) {
	frame := []byte{'A', 'B', 0x87, Terminator}

	tests := []struct {
		name  string
		fault FaultInjector
		err   error
	}{
		{"negative offset", FaultInjector{Offset: -1, Value: 'x'}, ErrFaultOffset},
		{"terminator offset", FaultInjector{Offset: 3, Value: 'x'}, ErrFaultOffset},
		{"past end", FaultInjector{Offset: 7, Value: '0'}, ErrFaultOffset},
		{"same value", FaultInjector{Offset: 0, Value: 'A'}, ErrFaultNoop},
		{"zero flip", FaultInjector{Offset: 0, Mode: FaultFlip, Value: 0}, ErrFaultNoop},
		{"replace with terminator", FaultInjector{Offset: 1, Value: Terminator}, ErrFaultTerminator},
		{"flip to terminator", FaultInjector{Offset: 0, Mode: FaultFlip, Value: 'A'}, ErrFaultTerminator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fault.Apply(frame)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

// Every single byte error in payload or checksum must be caught. CRC8 with
// polynomial 0x07 detects all bursts of up to 8 bits, so no exceptions are
// expected.
func TestFaultInjector_AllSingleByteErrorsDetected(t *testing.T) {
	payload := []byte("Hello, mirror!")
	frame, err := EncodeFrame(payload, DefaultCapacity)
	require.NoError(t, err)

	undetected := 0
	for offset := 0; offset < len(frame)-1; offset++ {
		for mask := 1; mask < 256; mask++ {
			f := &FaultInjector{Offset: offset, Mode: FaultFlip, Value: byte(mask)}
			corrupted, err := f.Apply(frame)
			if errors.Is(err, ErrFaultTerminator) {
				continue
			}
			require.NoError(t, err)

			decoded, _ := decodeAll(t, NewDecoder(DefaultCapacity), corrupted)
			require.NotNil(t, decoded)
			if Verify(decoded.Window()) != VerdictCorrupt {
				undetected++
				t.Errorf("undetected corruption: offset %d mask 0x%02X", offset, mask)
			}
		}
	}
	assert.Zero(t, undetected)
}

func TestFaultMode_String(t *testing.T) {
	assert.Equal(t, "replace", FaultReplace.String())
	assert.Equal(t, "flip", FaultFlip.String())
	assert.Equal(t, "replace offset=7 value=0x30", LegacyBurstFault().String())
}
