// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"

	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/stretchr/testify/assert"
)

func TestCheckTransfers(t *testing.T) {
	old := capacity
	capacity = mirrorlink.DefaultCapacity
	t.Cleanup(func() { capacity = old })

	burst := []*mirrorlink.FaultInjector{nil, mirrorlink.LegacyBurstFault()}

	tests := []struct {
		name    string
		payload []byte
		faults  []*mirrorlink.FaultInjector
		want    error
	}{
		{"clean", []byte("AB"), []*mirrorlink.FaultInjector{nil}, nil},
		{"burst demo", []byte("Hello, mirror!"), burst, nil},
		// "AB" frames to 4 bytes, so offset 7 does not exist
		{"burst demo short payload", []byte("AB"), burst, mirrorlink.ErrFaultOffset},
		{"no-op corruption", []byte("Hello, 0irror!"), burst, mirrorlink.ErrFaultNoop},
		{"too large", make([]byte, mirrorlink.DefaultCapacity), []*mirrorlink.FaultInjector{nil}, mirrorlink.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTransfers(tt.payload, tt.faults)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
