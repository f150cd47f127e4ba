// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/mirrorlink/pkg/eeprom"
	"github.com/spf13/cobra"
)

var (
	dumpFrom   int
	dumpLength int
)

var dumpCmd = &cobra.Command{
	Use:   "dump <image>",
	Short: "Hex dump a saved EEPROM image",
	Long: `Print a saved simulated EEPROM image (from mirrorlink device --image) as a
hex and ASCII listing, with a summary of cell states and wear.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().IntVar(&dumpFrom, "from", 0, "First address to dump")
	dumpCmd.Flags().IntVarP(&dumpLength, "length", "n", -1, "Number of bytes to dump (-1 for all)")
}

func runDump(cmd *cobra.Command, args []string) error {
	snap, err := eeprom.ReadImage(args[0])
	if err != nil {
		return err
	}

	mirror := eeprom.NewMirror(len(snap.Cells))
	if err := mirror.Restore(snap); err != nil {
		return err
	}

	var states [3]int
	var maxErases, maxPrograms uint32
	for addr := 0; addr < mirror.Size(); addr++ {
		state, _ := mirror.State(addr)
		states[state]++
		erases, programs, _ := mirror.Wear(addr)
		maxErases = max(maxErases, erases)
		maxPrograms = max(maxPrograms, programs)
	}

	fmt.Printf("Image:    %s\n", args[0])
	fmt.Printf("Saved:    %s\n", snap.Saved.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Size:     %d bytes\n", mirror.Size())
	fmt.Printf("Cells:    %d %s, %d %s, %d %s\n",
		states[eeprom.CellProgrammed], eeprom.CellProgrammed,
		states[eeprom.CellErased], eeprom.CellErased,
		states[eeprom.CellUnknown], eeprom.CellUnknown)
	fmt.Printf("Max wear: %d erases, %d programs\n\n", maxErases, maxPrograms)

	to := mirror.Size()
	if dumpLength >= 0 && dumpFrom+dumpLength < to {
		to = dumpFrom + dumpLength
	}
	return eeprom.Dump(os.Stdout, mirror.Contents(dumpFrom, to), max(dumpFrom, 0))
}
