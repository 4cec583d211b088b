package varfont

import (
	"encoding/binary"
	"fmt"
	"math"
)

// run control bytes of packed deltas
const (
	deltasAreZero     = 0x80
	deltasAreWords    = 0x40
	deltaRunCountMask = 0x3F
)

// run control bytes of packed point numbers
const (
	pointsAreWords    = 0x80
	pointRunCountMask = 0x7F
)

func isByteDelta(v int16) bool {
	return math.MinInt8 <= v && v <= math.MaxInt8
}

// appendPackedDeltas appends the packed encoding of deltas, in runs of at most 64 zeros, bytes or words. Byte runs do not include two consecutive zeros, and word runs do not include a zero or two consecutive byte values.
func appendPackedDeltas(dst []byte, deltas []int16) []byte {
	for pos := 0; pos < len(deltas); {
		start := pos
		switch v := deltas[pos]; {
		case v == 0:
			for pos < len(deltas) && deltas[pos] == 0 {
				pos++
			}
			for n := pos - start; 0 < n; n -= 64 {
				dst = append(dst, deltasAreZero|byte(min(n, 64)-1))
			}
		case isByteDelta(v):
			for pos < len(deltas) && isByteDelta(deltas[pos]) {
				if deltas[pos] == 0 && pos+1 < len(deltas) && deltas[pos+1] == 0 {
					break
				}
				pos++
			}
			for i := start; i < pos; i += 64 {
				run := deltas[i:min(i+64, pos)]
				dst = append(dst, byte(len(run)-1))
				for _, d := range run {
					dst = append(dst, byte(d))
				}
			}
		default:
			for pos < len(deltas) && deltas[pos] != 0 {
				if isByteDelta(deltas[pos]) && pos+1 < len(deltas) && isByteDelta(deltas[pos+1]) {
					break
				}
				pos++
			}
			for i := start; i < pos; i += 64 {
				run := deltas[i:min(i+64, pos)]
				dst = append(dst, deltasAreWords|byte(len(run)-1))
				for _, d := range run {
					dst = Append(dst, uint16(d))
				}
			}
		}
	}
	return dst
}

// parsePackedDeltas decodes n packed deltas and returns the number of bytes read.
func parsePackedDeltas(b []byte, n int) ([]int16, int, error) {
	deltas := make([]int16, 0, n)
	pos := 0
	for len(deltas) < n {
		if len(b) <= pos {
			return nil, 0, errTruncated("", "packed deltas", int64(pos), 1, 0)
		}
		control := b[pos]
		pos++
		count := int(control&deltaRunCountMask) + 1
		if n-len(deltas) < count {
			return nil, 0, fmt.Errorf("packed deltas: run of %d exceeds %d remaining values", count, n-len(deltas))
		}
		if control&deltasAreZero != 0 {
			for i := 0; i < count; i++ {
				deltas = append(deltas, 0)
			}
		} else if control&deltasAreWords != 0 {
			if len(b)-pos < 2*count {
				return nil, 0, errTruncated("", "packed deltas", int64(pos), int64(2*count), int64(len(b)-pos))
			}
			for i := 0; i < count; i++ {
				deltas = append(deltas, int16(binary.BigEndian.Uint16(b[pos:])))
				pos += 2
			}
		} else {
			if len(b)-pos < count {
				return nil, 0, errTruncated("", "packed deltas", int64(pos), int64(count), int64(len(b)-pos))
			}
			for i := 0; i < count; i++ {
				deltas = append(deltas, int16(int8(b[pos])))
				pos++
			}
		}
	}
	return deltas, pos, nil
}

// appendPackedPoints appends the packed encoding of sorted point numbers. A nil slice stands for all points of the glyph.
func appendPackedPoints(dst []byte, points []uint16) []byte {
	if points == nil {
		return append(dst, 0)
	}
	if len(points) < 0x80 {
		dst = append(dst, byte(len(points)))
	} else {
		dst = append(dst, 0x80|byte(len(points)>>8), byte(len(points)))
	}

	last := 0
	for pos := 0; pos < len(points); {
		header := len(dst)
		dst = append(dst, 0)
		useBytes := 0 <= int(points[pos])-last && int(points[pos])-last <= 0xFF
		n := 0
		for pos < len(points) && n <= pointRunCountMask {
			delta := int(points[pos]) - last
			if useBytes && (delta < 0 || 0xFF < delta) {
				break
			}
			if useBytes {
				dst = append(dst, byte(delta))
			} else {
				dst = Append(dst, uint16(delta))
			}
			last = int(points[pos])
			pos++
			n++
		}
		dst[header] = byte(n - 1)
		if !useBytes {
			dst[header] |= pointsAreWords
		}
	}
	return dst
}

// parsePackedPoints decodes packed point numbers and returns the number of bytes read. A nil slice means all points.
func parsePackedPoints(b []byte) ([]uint16, int, error) {
	if len(b) < 1 {
		return nil, 0, errTruncated("", "packed points", 0, 1, 0)
	}
	count := int(b[0])
	pos := 1
	if count&0x80 != 0 {
		if len(b) < 2 {
			return nil, 0, errTruncated("", "packed points", 1, 1, 0)
		}
		count = (count&0x7F)<<8 | int(b[1])
		pos = 2
	}
	if count == 0 {
		return nil, pos, nil
	}

	points := make([]uint16, 0, count)
	last := uint16(0)
	for len(points) < count {
		if len(b) <= pos {
			return nil, 0, errTruncated("", "packed points", int64(pos), 1, 0)
		}
		control := b[pos]
		pos++
		n := int(control&pointRunCountMask) + 1
		if count-len(points) < n {
			return nil, 0, fmt.Errorf("packed points: run of %d exceeds %d remaining points", n, count-len(points))
		}
		words := control&pointsAreWords != 0
		size := 1
		if words {
			size = 2
		}
		if len(b)-pos < n*size {
			return nil, 0, errTruncated("", "packed points", int64(pos), int64(n*size), int64(len(b)-pos))
		}
		for i := 0; i < n; i++ {
			if words {
				last += binary.BigEndian.Uint16(b[pos:])
				pos += 2
			} else {
				last += uint16(b[pos])
				pos++
			}
			points = append(points, last)
		}
	}
	return points, pos, nil
}
