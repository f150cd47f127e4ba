// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"bytes"
	"fmt"
)

// Verdict is the outcome of frame verification
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictOK
	VerdictCorrupt
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "OK"
	case VerdictCorrupt:
		return "CORRUPT"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic returns the line the device prints for this verdict
func (v Verdict) Diagnostic() string {
	switch v {
	case VerdictOK:
		return DiagnosticVerified
	case VerdictCorrupt:
		return DiagnosticCorrupt
	default:
		return ""
	}
}

// Verify recomputes the CRC over a received window (payload followed by the
// received checksum). The window is intact iff the result is zero.
func Verify(window []byte) Verdict {
	if CalculateCRC(window) == 0 {
		return VerdictOK
	}
	return VerdictCorrupt
}

// VerifyFrame verifies f and returns a *ChecksumMismatchError describing a
// failure. The error is informational; sessions continue regardless.
func VerifyFrame(f *Frame) (Verdict, error) {
	residue := CalculateCRC(f.Window())
	if residue == 0 {
		return VerdictOK, nil
	}
	return VerdictCorrupt, &ChecksumMismatchError{
		Received:   f.Checksum(),
		Calculated: CalculateCRC(f.Payload()),
		Residue:    residue,
	}
}

// SplitDiagnostics removes device diagnostic lines from the front of a
// readback and returns the verdict they announced. Readbacks from devices
// that do not echo diagnostics are returned unchanged with VerdictUnknown.
func SplitDiagnostics(readback []byte) ([]byte, Verdict) {
	rest, ok := bytes.CutPrefix(readback, []byte(DiagnosticVerifying))
	if !ok {
		return readback, VerdictUnknown
	}
	if data, ok := bytes.CutPrefix(rest, []byte(DiagnosticVerified)); ok {
		return data, VerdictOK
	}
	if data, ok := bytes.CutPrefix(rest, []byte(DiagnosticCorrupt)); ok {
		return data, VerdictCorrupt
	}
	return rest, VerdictUnknown
}

// FormatVerdict returns a one line summary of a verification
func FormatVerdict(v Verdict, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %v", v, err)
	}
	return v.String()
}
