// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

// CalculateCRC computes the CRC8 (polynomial 0x07, MSB first, no reflection)
// of data. Appending the result to data makes the CRC of the whole sequence
// zero.
func CalculateCRC(data []byte) uint8 {
	crc := uint8(crcInitial)
	for _, b := range data {
		crc = UpdateCRC(crc, b)
	}
	return crc
}

// UpdateCRC folds one byte into a running CRC8.
func UpdateCRC(crc uint8, b byte) uint8 {
	crc ^= b
	for i := 0; i < 8; i++ {
		if crc&0x80 != 0 {
			crc = (crc << 1) ^ crcPolynomial
		} else {
			crc <<= 1
		}
	}
	return crc
}
