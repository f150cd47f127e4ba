// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/spf13/cobra"
)

var probeSettle time.Duration

var handshakeProbeCmd = &cobra.Command{
	Use:   "handshake_test",
	Short: "Test connection by running only the handshake",
	Long: `Send the handshake request and wait for the device's reply.

On success an empty frame is sent so the device completes its session and
re-arms; the device's readback of it is drained.

Exit codes:
  0 - Device replied before timeout
  1 - Timeout or wrong reply
  2 - Connection error

Useful for testing connectivity before sending a payload.`,
	RunE: runHandshakeProbe,
}

func init() {
	rootCmd.AddCommand(handshakeProbeCmd)
	handshakeProbeCmd.Flags().DurationVar(&probeSettle, "settle", mirrorlink.DefaultSettleDelay, "Delay before the handshake (board reset)")
}

func runHandshakeProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return exitWith(2, fmt.Errorf("connection error: %w", err))
	}
	defer conn.Close()

	fmt.Printf("Mirrorlink - Handshake Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n\n", timeout)

	time.Sleep(probeSettle)
	if err := link.ResetInput(conn, 10*time.Millisecond); err != nil {
		return exitWith(2, err)
	}

	var hs mirrorlink.Handshake
	start := time.Now()
	if err := hs.Initiate(context.Background(), conn, timeout); err != nil {
		var mismatch *mirrorlink.HandshakeMismatchError
		if errors.As(err, &mismatch) {
			return exitWith(1, fmt.Errorf("FAILED: device replied 0x%02X, want 0x%02X", mismatch.Actual, mismatch.Expected))
		}
		return exitWith(1, fmt.Errorf("TIMEOUT: %w", err))
	}
	fmt.Printf("SUCCESS: Device replied in %s\n", time.Since(start).Round(time.Microsecond))

	// The checksum of an empty payload is the terminator value, so the device
	// completes on the first byte
	if err := conn.Transmit(mirrorlink.Terminator); err != nil {
		return exitWith(2, err)
	}
	if err := conn.Drain(); err != nil {
		return exitWith(2, err)
	}

	n, err := link.Discard(conn, timeout)
	if err != nil && !errors.Is(err, link.ErrClosed) {
		return exitWith(2, err)
	}
	fmt.Printf("  Device re-armed (%d readback bytes drained)\n", n)
	return nil
}
