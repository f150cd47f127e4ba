// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStatistics_RecordSession(t *testing.T) {
	s := NewStatistics()

	s.RecordSession(VerdictOK, nil)
	s.RecordSession(VerdictCorrupt, nil)
	s.RecordSession(VerdictUnknown, fmt.Errorf("wrapped: %w", ErrHandshakeTimeout))
	s.RecordSession(VerdictUnknown, &HandshakeMismatchError{Expected: 'T', Actual: 'X'})
	s.RecordSession(VerdictUnknown, &PayloadTooLargeError{Length: 3000, Capacity: 2048})
	s.RecordSession(VerdictUnknown, ErrReadbackTimeout)

	snap := s.Snapshot()
	if snap.Sessions != 6 {
		t.Errorf("Sessions = %d, want 6", snap.Sessions)
	}
	if snap.Verified != 1 || snap.Corrupt != 1 {
		t.Errorf("Verified/Corrupt = %d/%d, want 1/1", snap.Verified, snap.Corrupt)
	}
	if snap.HandshakeFailures != 2 {
		t.Errorf("HandshakeFailures = %d, want 2", snap.HandshakeFailures)
	}
	if snap.OversizedFrames != 1 {
		t.Errorf("OversizedFrames = %d, want 1", snap.OversizedFrames)
	}
	if snap.TransportErrors != 1 {
		t.Errorf("TransportErrors = %d, want 1", snap.TransportErrors)
	}
}

func TestStatistics_Rates(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < 4; i++ {
		s.RecordByte(Up, 250*time.Millisecond)
	}
	s.RecordByte(Down, 500*time.Millisecond)

	snap := s.Snapshot()
	if snap.InstantUp != 4 {
		t.Errorf("InstantUp = %f, want 4", snap.InstantUp)
	}
	if snap.AverageUp != 4 {
		t.Errorf("AverageUp = %f, want 4", snap.AverageUp)
	}
	if snap.AverageDown != 2 {
		t.Errorf("AverageDown = %f, want 2", snap.AverageDown)
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.RecordSession(VerdictOK, nil)
	s.RecordSession(VerdictCorrupt, nil)

	out := s.String()
	for _, want := range []string{"Sessions:", "Verified:", "Corrupt:", "Bytes Up:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Handshake Err") {
		t.Errorf("String() should omit zero error counters:\n%s", out)
	}

	s.Reset()
	if snap := s.Snapshot(); snap.Sessions != 0 || snap.Corrupt != 0 {
		t.Errorf("Reset left counters: %+v", &snap)
	}
}

func TestDirection_String(t *testing.T) {
	if Up.String() != "Up" || Down.String() != "Down" {
		t.Errorf("unexpected direction names %s/%s", Up, Down)
	}
}
