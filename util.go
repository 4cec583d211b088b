package varfont

import (
	"encoding/binary"
)

// MaxMemory is the maximum memory that can be allocated by a font.
var MaxMemory uint32 = 30 * 1024 * 1024

// calcChecksum sums the data as big-endian uint32 words. The data must be padded to four bytes.
func calcChecksum(b []byte) uint32 {
	if len(b)%4 != 0 {
		panic("data not multiple of four bytes")
	}
	var sum uint32
	for i := 0; i < len(b); i += 4 {
		sum += binary.BigEndian.Uint32(b[i : i+4])
	}
	return sum
}

// padding returns the number of zero bytes needed to align n to four bytes.
func padding(n int) int {
	return (4 - n&3) & 3
}

// Uint16ToFlags converts a uint16 in 16 booleans from least to most significant.
func Uint16ToFlags(v uint16) (flags [16]bool) {
	for i := range flags {
		flags[i] = v&(1<<i) != 0
	}
	return
}

func flagsToUint16(flags [16]bool) (v uint16) {
	for i, flag := range flags {
		if flag {
			v |= 1 << i
		}
	}
	return
}
