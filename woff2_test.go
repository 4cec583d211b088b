package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/test"
)

func TestWOFF2(t *testing.T) {
	f, err := Compile(weightWidthDesignspace(), weightWidthMasters(t), CompileOptions{})
	test.Error(t, err)
	sfnt, err := f.Serialize()
	test.Error(t, err)

	b, err := f.WriteWOFF2()
	test.Error(t, err)
	test.T(t, string(b[:4]), "wOF2")
	test.T(t, len(b)%4, 0)

	f2, err := ParseWOFF2(b)
	test.Error(t, err)
	test.T(t, len(f2.Tags()), len(f.Tags()))
	test.T(t, f2.GlyphOrder, f.GlyphOrder)
	test.T(t, f2.Fvar().Axes, f.Fvar().Axes)
	test.T(t, len(f2.Gvar().Glyphs), len(f.Gvar().Glyphs))

	sfnt2, err := f2.Serialize()
	test.Error(t, err)
	test.Bytes(t, sfnt2, sfnt)

	_, err = ParseWOFF2(b[:40])
	test.That(t, errors.Is(err, ErrInvalidFontData), err)
	_, err = ParseWOFF2(b[:len(b)-4])
	test.That(t, err != nil, "length mismatch")
	_, err = ParseWOFF2(sfnt)
	test.That(t, err != nil, "bad signature")
}

func TestUintBase128(t *testing.T) {
	var tests = []struct {
		v uint32
		b []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3F}},
		{128, []byte{0x81, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0xFFFFFFFF, []byte{0x8F, 0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, tt := range tests {
		w := parse.NewBinaryWriter([]byte{})
		writeUintBase128(w, tt.v)
		test.Bytes(t, w.Bytes(), tt.b)

		v, err := readUintBase128(parse.NewBinaryReaderBytes(tt.b))
		test.Error(t, err)
		test.T(t, v, tt.v)
	}

	_, err := readUintBase128(parse.NewBinaryReaderBytes([]byte{0x80, 0x01}))
	test.That(t, err != nil, "leading zeros")
	_, err = readUintBase128(parse.NewBinaryReaderBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F}))
	test.That(t, err != nil, "overflow")
	_, err = readUintBase128(parse.NewBinaryReaderBytes([]byte{0x81}))
	test.That(t, errors.Is(err, ErrInvalidFontData), err)
}
