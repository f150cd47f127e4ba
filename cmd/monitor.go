// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/spf13/cobra"
)

var monitorHandshake bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Passively decode frames seen on a link",
	Long: `Continuously decode terminator-delimited frames as they arrive and check
each one's trailing checksum.

Attach to a tap of either direction: the host side shows handshake requests
and sent frames, the device side shows handshake replies and readbacks.
Echoed device diagnostics are stripped before the checksum is checked.

With --handshake (default), an 'O' or 'T' arriving between frames is shown
as a handshake byte. A frame that starts with either letter is then split.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorHandshake, "handshake", true, "Show handshake bytes between frames")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return exitWith(2, fmt.Errorf("connection error: %w", err))
	}
	defer conn.Close()

	fmt.Printf("Mirrorlink - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Room for a readback with echoed diagnostics
	window := capacity + len(mirrorlink.DiagnosticVerifying) + len(mirrorlink.DiagnosticCorrupt)
	decoder := mirrorlink.NewDecoder(window)
	stats := mirrorlink.NewStatistics()

	for {
		b, err := conn.Receive(0)
		if errors.Is(err, link.ErrClosed) {
			logger.Info("connection closed")
			fmt.Print(stats.String())
			return nil
		}
		if err != nil {
			logger.Error("read error", "err", err)
			continue
		}
		stats.RecordByte(mirrorlink.Down, 0)

		if monitorHandshake && decoder.Len() == 0 &&
			(b == mirrorlink.HandshakeRequest || b == mirrorlink.HandshakeReply) {
			fmt.Printf("handshake %q\n", b)
			continue
		}

		frame, err := decoder.DecodeByte(b)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			decoder.Reset()
			continue
		}
		if frame == nil {
			continue
		}
		decoder.Reset()

		body, remote := mirrorlink.SplitDiagnostics(frame.Window())
		verdict := mirrorlink.Verify(body)
		stats.RecordSession(verdict, nil)
		fmt.Print(formatMonitorFrame(frame, body, verdict, remote))
	}
}

func formatMonitorFrame(f *mirrorlink.Frame, body []byte, verdict, remote mirrorlink.Verdict) string {
	result := fmt.Sprintf("[%s] frame len=%d verdict=%s",
		f.Timestamp().Format("15:04:05.000"), len(body), verdict)
	if remote != mirrorlink.VerdictUnknown {
		result += fmt.Sprintf(" device=%s", remote)
	}
	if f.Truncated() {
		result += " truncated"
	}
	return result + "\n  " + mirrorlink.FormatBytes(body, 64) + "\n"
}
