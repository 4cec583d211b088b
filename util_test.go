package varfont

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestChecksum(t *testing.T) {
	test.T(t, calcChecksum(nil), uint32(0))
	test.T(t, calcChecksum([]byte{0x00, 0x00, 0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF}), uint32(0), "wraps around")
	test.T(t, calcChecksum([]byte("headhead")), uint32(0xD0CAC2C8))

	for n, pad := range []int{0, 3, 2, 1, 0} {
		test.T(t, padding(n), pad, n)
	}
}

func TestFlags(t *testing.T) {
	flags := Uint16ToFlags(0x8003)
	test.That(t, flags[0] && flags[1] && flags[15])
	test.That(t, !flags[2])
	test.T(t, flagsToUint16(flags), uint16(0x8003))
}
