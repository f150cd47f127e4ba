// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		max      int
		expected string
	}{
		{"printable", []byte("AB"), 0, "AB"},
		{"escaped", []byte{'A', 0x87, 0x00}, 0, `A\x87\x00`},
		{"backslash", []byte(`a\b`), 0, `a\x5Cb`},
		{"elided", []byte("0123456789"), 4, "01...(6 bytes)...89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.data, tt.max); got != tt.expected {
				t.Errorf("FormatBytes() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatTransferResult(t *testing.T) {
	payload := []byte("AB")
	frame, _ := EncodeFrame(payload, DefaultCapacity)

	intact := &TransferResult{
		Payload:      payload,
		Frame:        frame,
		Readback:     ExpectedReadback(payload),
		Expected:     ExpectedReadback(payload),
		Started:      time.Now(),
		UpDuration:   10 * time.Millisecond,
		DownDuration: 10 * time.Millisecond,
	}
	if out := FormatTransferResult(intact); !strings.Contains(out, "INTACT") {
		t.Errorf("expected INTACT in:\n%s", out)
	}

	corrupted := *intact
	corrupted.Fault = LegacyBurstFault()
	corrupted.Readback = ExpectedReadback([]byte("CB"))
	corrupted.Expected = corrupted.Readback
	corrupted.RemoteVerdict = VerdictCorrupt
	out := FormatTransferResult(&corrupted)
	for _, want := range []string{"PERSISTED CORRUPTED DATA", "Fault:", "Device:   CORRUPT"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	mismatch := *intact
	mismatch.Readback = []byte("A")
	if out := FormatTransferResult(&mismatch); !strings.Contains(out, "MISMATCH") {
		t.Errorf("expected MISMATCH in:\n%s", out)
	}
}

func TestFormatSessionReport(t *testing.T) {
	r := &SessionReport{
		Started:   time.Now(),
		Duration:  1500 * time.Millisecond,
		Skipped:   3,
		Frame:     NewFrame([]byte("0123456"), true),
		Verdict:   VerdictCorrupt,
		VerifyErr: &ChecksumMismatchError{Received: 0x36, Calculated: 0x12, Residue: 0x24},
		Checksum:  0x12,
	}

	out := FormatSessionReport(r)
	for _, want := range []string{"size=6", "verdict=CORRUPT", "checksum=0x12", "skipped=3", "truncated", "CRC mismatch"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
