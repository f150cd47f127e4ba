// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Session flags
	timeout  time.Duration
	capacity int

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mirrorlink",
	Short: "EEPROM mirror link tool",
	Long: `Mirrorlink - send a payload to a microcontroller over a serial link, have it
stored in EEPROM and read it back verified by CRC8.

The device side can be real hardware running the mirror firmware or the
built-in simulated device (mirrorlink device).

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 2400]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the MIRRORLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyConfig(cmd); err != nil {
			return err
		}
		return setupLogging()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", mirrorlink.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", mirrorlink.DefaultTimeout, "Handshake and readback byte timeout")
	rootCmd.PersistentFlags().IntVar(&capacity, "capacity", mirrorlink.DefaultCapacity, "Device EEPROM size in bytes")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
