// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"fmt"
	"strings"
	"time"
)

// FormatBytes renders data as printable text, escaping everything else as
// \xNN. Long input is elided in the middle.
func FormatBytes(data []byte, max int) string {
	var b strings.Builder
	write := func(c byte) {
		if c >= 0x20 && c < 0x7F && c != '\\' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "\\x%02X", c)
		}
	}

	if max <= 0 || len(data) <= max {
		for _, c := range data {
			write(c)
		}
		return b.String()
	}

	half := max / 2
	for _, c := range data[:half] {
		write(c)
	}
	fmt.Fprintf(&b, "...(%d bytes)...", len(data)-2*half)
	for _, c := range data[len(data)-half:] {
		write(c)
	}
	return b.String()
}

// FormatTransferResult returns a human-readable transfer summary
func FormatTransferResult(r *TransferResult) string {
	timestamp := r.Started.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] Transfer of %d bytes\n", timestamp, len(r.Payload))
	if r.Fault != nil {
		result += fmt.Sprintf("  Fault:    %s\n", r.Fault)
	}
	result += fmt.Sprintf("  Sent:     %s\n", FormatBytes(r.Frame, 64))
	result += fmt.Sprintf("  Readback: %s\n", FormatBytes(r.Readback, 64))

	if r.UpDuration > 0 {
		result += fmt.Sprintf("  Up:       %.1f bytes/sec\n", float64(len(r.Frame))/r.UpDuration.Seconds())
	}
	if r.DownDuration > 0 {
		result += fmt.Sprintf("  Down:     %.1f bytes/sec\n", float64(len(r.Readback)+1)/r.DownDuration.Seconds())
	}
	if r.RemoteVerdict != VerdictUnknown {
		result += fmt.Sprintf("  Device:   %s\n", r.RemoteVerdict)
	}

	switch {
	case r.Intact():
		result += "  Result:   \033[1;32mINTACT\033[0m (readback equals payload and CRC)\n"
	case r.Match():
		result += "  Result:   \033[1;33mPERSISTED CORRUPTED DATA\033[0m (device stored what it received)\n"
	default:
		result += "  Result:   \033[1;31mMISMATCH\033[0m (readback differs from what was sent)\n"
	}
	return result
}

// FormatSessionReport returns a one line device session summary
func FormatSessionReport(r *SessionReport) string {
	timestamp := r.Started.Format("15:04:05.000")
	size := 0
	if r.Frame != nil {
		size = r.Frame.Size()
	}

	result := fmt.Sprintf("[%s] session size=%d verdict=%s checksum=0x%02X elapsed=%s",
		timestamp, size, r.Verdict, r.Checksum, r.Duration.Round(time.Millisecond))
	if r.Skipped > 0 {
		result += fmt.Sprintf(" skipped=%d", r.Skipped)
	}
	if r.Frame != nil && r.Frame.Truncated() {
		result += " truncated"
	}
	if r.VerifyErr != nil {
		result += fmt.Sprintf(" (%v)", r.VerifyErr)
	}
	return result
}
