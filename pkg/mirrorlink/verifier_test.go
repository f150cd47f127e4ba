// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	assert.Equal(t, VerdictOK, Verify([]byte{'A', 'B', 0x87}))
	assert.Equal(t, VerdictCorrupt, Verify([]byte{'A', 'C', 0x87}))
	assert.Equal(t, VerdictOK, Verify(nil))
}

func TestVerifyFrame_Mismatch(t *testing.T) {
	f := NewFrame([]byte("Hello, 0irror!\xD0"), false)

	verdict, err := VerifyFrame(f)
	assert.Equal(t, VerdictCorrupt, verdict)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	var mismatch *ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, uint8(0xD0), mismatch.Received)
	assert.Equal(t, uint8(0x06), mismatch.Calculated)
	assert.Equal(t, uint8(0x2C), mismatch.Residue)
}

func TestVerifyFrame_OK(t *testing.T) {
	verdict, err := VerifyFrame(NewFrame([]byte{'A', 'B', 0x87}, false))
	assert.Equal(t, VerdictOK, verdict)
	assert.NoError(t, err)
}

func TestVerdict_Diagnostic(t *testing.T) {
	assert.Equal(t, DiagnosticVerified, VerdictOK.Diagnostic())
	assert.Equal(t, DiagnosticCorrupt, VerdictCorrupt.Diagnostic())
	assert.Empty(t, VerdictUnknown.Diagnostic())
	assert.Equal(t, "CORRUPT", VerdictCorrupt.String())
}

func TestSplitDiagnostics(t *testing.T) {
	data := []byte{'A', 'B', 0x87}

	tests := []struct {
		name    string
		input   []byte
		verdict Verdict
	}{
		{"no diagnostics", data, VerdictUnknown},
		{"verified", append([]byte(DiagnosticVerifying+DiagnosticVerified), data...), VerdictOK},
		{"corrupt", append([]byte(DiagnosticVerifying+DiagnosticCorrupt), data...), VerdictCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, verdict := SplitDiagnostics(tt.input)
			assert.Equal(t, data, rest)
			assert.Equal(t, tt.verdict, verdict)
		})
	}
}

func TestFormatVerdict(t *testing.T) {
	assert.Equal(t, "OK", FormatVerdict(VerdictOK, nil))
	assert.Contains(t, FormatVerdict(VerdictCorrupt, &ChecksumMismatchError{Residue: 1}), "CORRUPT: CRC mismatch")
}
