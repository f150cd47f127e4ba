// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Mirrorlink - EEPROM mirror link tool
//
// Sends a payload to a microcontroller over a serial link, has it stored in
// EEPROM and reads it back verified by CRC8.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/mirrorlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
