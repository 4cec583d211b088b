package varfont

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tag is a four byte identifier of a table, axis, script or feature.
type Tag [4]byte

// ParseTag returns the tag for a string of one to four printable ASCII characters. Shorter strings are padded with spaces.
func ParseTag(s string) (Tag, error) {
	var tag Tag
	if len(s) == 0 || 4 < len(s) {
		return tag, fmt.Errorf("bad tag %q", s)
	}
	for i := 0; i < 4; i++ {
		if i < len(s) {
			if s[i] < 0x20 || 0x7E < s[i] {
				return tag, fmt.Errorf("bad tag %q", s)
			}
			tag[i] = s[i]
		} else {
			tag[i] = ' '
		}
	}
	return tag, nil
}

// MustTag is like ParseTag but panics for invalid tags.
func MustTag(s string) Tag {
	tag, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return tag
}

func (t Tag) String() string {
	return string(t[:])
}

// Uint32 returns the tag as a big-endian integer.
func (t Tag) Uint32() uint32 {
	return binary.BigEndian.Uint32(t[:])
}

// Fixed is a signed 16.16 fixed-point number.
type Fixed int32

// Float returns the value of the fixed-point number.
func (f Fixed) Float() float64 {
	return float64(f) / (1 << 16)
}

func (f Fixed) String() string {
	return fmt.Sprintf("%g", f.Float())
}

// FixedFromFloat converts to 16.16 fixed-point, rounding half away from zero.
func FixedFromFloat(v float64) (Fixed, error) {
	r := math.Round(v * (1 << 16))
	if math.IsNaN(r) || r < math.MinInt32 || math.MaxInt32 < r {
		return 0, fmt.Errorf("Fixed %v: %w", v, ErrOutOfRange)
	}
	return Fixed(r), nil
}

// F2Dot14 is a signed 2.14 fixed-point number, used for normalized coordinates.
type F2Dot14 int16

// Float returns the value of the fixed-point number.
func (f F2Dot14) Float() float64 {
	return float64(f) / (1 << 14)
}

func (f F2Dot14) String() string {
	return fmt.Sprintf("%g", f.Float())
}

// F2Dot14FromFloat converts to 2.14 fixed-point, rounding half away from zero.
func F2Dot14FromFloat(v float64) (F2Dot14, error) {
	r := math.Round(v * (1 << 14))
	if math.IsNaN(r) || r < math.MinInt16 || math.MaxInt16 < r {
		return 0, fmt.Errorf("F2Dot14 %v: %w", v, ErrOutOfRange)
	}
	return F2Dot14(r), nil
}

// Uint24 is a three byte unsigned integer.
type Uint24 uint32

// Scalar is the set of fixed-width big-endian types.
type Scalar interface {
	uint8 | int8 | uint16 | int16 | Uint24 | uint32 | int32 | Fixed | F2Dot14 | Tag
}

// SizeOf returns the encoded width in bytes of a scalar type.
func SizeOf[T Scalar]() int {
	var v T
	switch any(v).(type) {
	case uint8, int8:
		return 1
	case uint16, int16, F2Dot14:
		return 2
	case Uint24:
		return 3
	}
	return 4
}

// Decode decodes a scalar at offset off. It returns the value and the number of bytes consumed.
func Decode[T Scalar](b []byte, off int) (T, int, error) {
	var v T
	n := SizeOf[T]()
	if off < 0 || len(b) < off || len(b)-off < n {
		return v, 0, errTruncated("", "", int64(off), int64(n), int64(max(len(b)-off, 0)))
	}
	b = b[off : off+n]
	switch p := any(&v).(type) {
	case *uint8:
		*p = b[0]
	case *int8:
		*p = int8(b[0])
	case *uint16:
		*p = binary.BigEndian.Uint16(b)
	case *int16:
		*p = int16(binary.BigEndian.Uint16(b))
	case *F2Dot14:
		*p = F2Dot14(binary.BigEndian.Uint16(b))
	case *Uint24:
		*p = Uint24(b[0])<<16 | Uint24(b[1])<<8 | Uint24(b[2])
	case *uint32:
		*p = binary.BigEndian.Uint32(b)
	case *int32:
		*p = int32(binary.BigEndian.Uint32(b))
	case *Fixed:
		*p = Fixed(binary.BigEndian.Uint32(b))
	case *Tag:
		copy(p[:], b)
	}
	return v, n, nil
}

// Append appends the big-endian encoding of v to dst.
func Append[T Scalar](dst []byte, v T) []byte {
	switch x := any(v).(type) {
	case uint8:
		return append(dst, x)
	case int8:
		return append(dst, byte(x))
	case uint16:
		return binary.BigEndian.AppendUint16(dst, x)
	case int16:
		return binary.BigEndian.AppendUint16(dst, uint16(x))
	case F2Dot14:
		return binary.BigEndian.AppendUint16(dst, uint16(x))
	case Uint24:
		return append(dst, byte(x>>16), byte(x>>8), byte(x))
	case uint32:
		return binary.BigEndian.AppendUint32(dst, x)
	case int32:
		return binary.BigEndian.AppendUint32(dst, uint32(x))
	case Fixed:
		return binary.BigEndian.AppendUint32(dst, uint32(x))
	case Tag:
		return append(dst, x[:]...)
	}
	return dst
}

// Encode returns the big-endian encoding of v.
func Encode[T Scalar](v T) []byte {
	return Append(make([]byte, 0, SizeOf[T]()), v)
}
