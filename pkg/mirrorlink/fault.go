// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import "fmt"

// FaultMode selects how a FaultInjector corrupts its byte
type FaultMode int

const (
	// FaultReplace overwrites the byte with Value
	FaultReplace FaultMode = iota
	// FaultFlip XORs the byte with Value
	FaultFlip
)

func (m FaultMode) String() string {
	switch m {
	case FaultReplace:
		return "replace"
	case FaultFlip:
		return "flip"
	default:
		return fmt.Sprintf("FaultMode(%d)", int(m))
	}
}

// FaultInjector corrupts exactly one byte of an encoded frame before it is
// transmitted. It exists to prove the device notices.
type FaultInjector struct {
	Offset int
	Mode   FaultMode
	Value  byte
}

// LegacyBurstFault is the burst error the bench host simulated:
// frame offset 7 replaced with '0'.
func LegacyBurstFault() *FaultInjector {
	return &FaultInjector{Offset: 7, Mode: FaultReplace, Value: '0'}
}

// Apply returns a corrupted copy of frame. Only payload and checksum bytes
// can be corrupted. A corruption that changes nothing or produces the
// terminator value is refused, since neither exercises the checksum.
func (f *FaultInjector) Apply(frame []byte) ([]byte, error) {
	// Last byte is the terminator
	if f.Offset < 0 || f.Offset >= len(frame)-1 {
		return nil, fmt.Errorf("%w: offset %d, frame length %d", ErrFaultOffset, f.Offset, len(frame))
	}

	original := frame[f.Offset]
	corrupted := original
	switch f.Mode {
	case FaultReplace:
		corrupted = f.Value
	case FaultFlip:
		corrupted = original ^ f.Value
	default:
		return nil, fmt.Errorf("unknown fault mode: %v", f.Mode)
	}

	if corrupted == original {
		return nil, fmt.Errorf("%w: offset %d already 0x%02X", ErrFaultNoop, f.Offset, original)
	}
	if corrupted == Terminator {
		return nil, fmt.Errorf("%w: offset %d", ErrFaultTerminator, f.Offset)
	}

	out := make([]byte, len(frame))
	copy(out, frame)
	out[f.Offset] = corrupted
	return out, nil
}

func (f *FaultInjector) String() string {
	return fmt.Sprintf("%s offset=%d value=0x%02X", f.Mode, f.Offset, f.Value)
}
