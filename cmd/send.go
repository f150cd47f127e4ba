// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	sendData          string
	sendCorruptOffset int
	sendCorruptValue  uint8
	sendFlipMask      uint8
	sendBurstDemo     bool
	sendStrict        bool
	sendSettle        time.Duration
	sendHandshakeGap  time.Duration
	sendTUI           bool
	sendStats         bool
)

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Send a payload to the device and verify the readback",
	Long: `Send a payload to the device, have it stored in EEPROM and read it back.

The payload is read from a file, from --data, or from stdin when the file is
"-". The device verifies the frame checksum, stores its own checksum of what
it received and returns the stored bytes. The readback is compared against
the expected result.

Fault injection:
  --corrupt-offset 7 --corrupt-value 0x30   replace a frame byte
  --corrupt-offset 7 --flip 0x01             XOR a frame byte
  --burst-demo                               clean transfer, then offset 7 -> '0'

Exit codes:
  0 - Transfer completed
  1 - Handshake failed or transfer error
  2 - Connection error
  3 - Readback mismatch (with --strict)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendData, "data", "d", "", "Payload given inline")
	sendCmd.Flags().IntVar(&sendCorruptOffset, "corrupt-offset", -1, "Frame offset to corrupt (-1 disables)")
	sendCmd.Flags().Uint8Var(&sendCorruptValue, "corrupt-value", '0', "Replacement byte for --corrupt-offset")
	sendCmd.Flags().Uint8Var(&sendFlipMask, "flip", 0, "XOR mask for --corrupt-offset instead of a replacement")
	sendCmd.Flags().BoolVar(&sendBurstDemo, "burst-demo", false, "Send twice: clean, then with the offset 7 corruption")
	sendCmd.Flags().BoolVar(&sendStrict, "strict", false, "Exit with code 3 when the readback is not intact")
	sendCmd.Flags().DurationVar(&sendSettle, "settle", mirrorlink.DefaultSettleDelay, "Delay before the handshake (board reset)")
	sendCmd.Flags().DurationVar(&sendHandshakeGap, "handshake-gap", mirrorlink.DefaultHandshakeGap, "Delay between handshake and frame")
	sendCmd.Flags().BoolVar(&sendTUI, "tui", false, "Show live progress (default when stdout is a terminal)")
	sendCmd.Flags().BoolVar(&sendStats, "stats", false, "Print link statistics after the transfer")
}

func readPayload(args []string) ([]byte, error) {
	if sendData != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("give either a file or --data, not both")
		}
		return []byte(sendData), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no payload: give a file or --data")
	}
	if args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func sendFault() *mirrorlink.FaultInjector {
	if sendCorruptOffset < 0 {
		return nil
	}
	if sendFlipMask != 0 {
		return &mirrorlink.FaultInjector{Offset: sendCorruptOffset, Mode: mirrorlink.FaultFlip, Value: sendFlipMask}
	}
	return &mirrorlink.FaultInjector{Offset: sendCorruptOffset, Mode: mirrorlink.FaultReplace, Value: sendCorruptValue}
}

func runSend(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(args)
	if err != nil {
		return err
	}
	if mirrorlink.HasSentinelCollision(payload) {
		logger.Warn("payload or its checksum contains the terminator byte; readback will be cut short")
	}

	faults := []*mirrorlink.FaultInjector{sendFault()}
	if sendBurstDemo {
		faults = []*mirrorlink.FaultInjector{nil, mirrorlink.LegacyBurstFault()}
	}
	if err := checkTransfers(payload, faults); err != nil {
		return err
	}

	useTUI := sendTUI
	if !cmd.Flags().Changed("tui") {
		useTUI = term.IsTerminal(int(os.Stdout.Fd()))
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return exitWith(2, fmt.Errorf("connection error: %w", err))
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !useTUI {
		fmt.Printf("Mirrorlink - Send\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Payload: %d bytes (capacity %d)\n\n", len(payload), capacity)
	}

	stats := mirrorlink.NewStatistics()
	allIntact := true
	for _, fault := range faults {
		var result *mirrorlink.TransferResult
		if useTUI {
			result, err = runSendTUI(ctx, conn, connInfo, payload, fault, stats)
		} else {
			result, err = transferOnce(ctx, conn, payload, fault, stats, nil)
		}

		if result != nil {
			fmt.Print(mirrorlink.FormatTransferResult(result))
			fmt.Println()
			if !result.Intact() {
				allIntact = false
			}
		}
		if err != nil {
			return exitWith(transferExitCode(err), err)
		}
	}

	if sendStats {
		fmt.Print(stats.String())
	}

	if sendStrict && !allIntact {
		return exitWith(3, errors.New("readback does not match the payload"))
	}
	return nil
}

// checkTransfers rejects a payload or fault that cannot be sent, before any
// transfer of the run starts
func checkTransfers(payload []byte, faults []*mirrorlink.FaultInjector) error {
	frame, err := mirrorlink.EncodeFrame(payload, capacity)
	if err != nil {
		return err
	}
	for _, fault := range faults {
		if fault == nil {
			continue
		}
		if _, err := fault.Apply(frame); err != nil {
			return fmt.Errorf("fault %s on a %d byte frame: %w", fault, len(frame), err)
		}
	}
	return nil
}

func transferOnce(ctx context.Context, drv link.Driver, payload []byte, fault *mirrorlink.FaultInjector,
	stats *mirrorlink.Statistics, onProgress mirrorlink.ProgressFunc) (*mirrorlink.TransferResult, error) {
	opts := []mirrorlink.HostOption{
		mirrorlink.WithCapacity(capacity),
		mirrorlink.WithTimeout(timeout),
		mirrorlink.WithSettleDelay(sendSettle),
		mirrorlink.WithHandshakeGap(sendHandshakeGap),
		mirrorlink.WithHostStatistics(stats),
	}
	if fault != nil {
		opts = append(opts, mirrorlink.WithFault(fault))
	}
	if onProgress != nil {
		opts = append(opts, mirrorlink.WithProgress(onProgress))
	} else {
		opts = append(opts, mirrorlink.WithHostLogger(logger))
	}
	return mirrorlink.NewHost(drv, opts...).Transfer(ctx, payload)
}

func transferExitCode(err error) int {
	switch {
	case errors.Is(err, link.ErrClosed):
		return 2
	default:
		return 1
	}
}
