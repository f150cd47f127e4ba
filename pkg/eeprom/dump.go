// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eeprom

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a hex and ASCII listing of cells, 16 per line, numbering
// addresses from base
func Dump(w io.Writer, cells []byte, base int) error {
	for off := 0; off < len(cells); off += 16 {
		end := off + 16
		if end > len(cells) {
			end = len(cells)
		}
		line := cells[off:end]

		var hex, ascii strings.Builder
		for i := 0; i < 16; i++ {
			if i < len(line) {
				fmt.Fprintf(&hex, "%02X ", line[i])
				if line[i] >= 0x20 && line[i] < 0x7F {
					ascii.WriteByte(line[i])
				} else {
					ascii.WriteByte('.')
				}
			} else {
				hex.WriteString("   ")
			}
			if i == 7 {
				hex.WriteByte(' ')
			}
		}

		if _, err := fmt.Fprintf(w, "%04X  %s |%s|\n", base+off, hex.String(), ascii.String()); err != nil {
			return err
		}
	}
	return nil
}
