package varfont

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestEOT(t *testing.T) {
	f := squareFont(t, 400, 20)
	sfnt, err := f.Serialize()
	test.Error(t, err)

	b, err := f.WriteEOT()
	test.Error(t, err)
	test.T(t, int(binary.LittleEndian.Uint32(b)), len(b))
	test.T(t, int(binary.LittleEndian.Uint32(b[4:])), len(sfnt))
	test.T(t, binary.LittleEndian.Uint16(b[34:]), uint16(0x504C))
	test.Bytes(t, b[len(b)-len(sfnt):], sfnt)

	f2, err := ParseEOT(b)
	test.Error(t, err)
	test.T(t, f2.GlyphOrder, f.GlyphOrder)
	sfnt2, err := f2.Serialize()
	test.Error(t, err)
	test.Bytes(t, sfnt2, sfnt)

	// obfuscated font data
	xored := append([]byte{}, b...)
	binary.LittleEndian.PutUint32(xored[12:], eotTTEmbedXORed)
	for i := len(xored) - len(sfnt); i < len(xored); i++ {
		xored[i] ^= 0x50
	}
	f3, err := ParseEOT(xored)
	test.Error(t, err)
	test.T(t, f3.Glyf().Glyphs[1].Points, f.Glyf().Glyphs[1].Points)
}

func TestEOTErrors(t *testing.T) {
	b, err := squareFont(t, 400, 20).WriteEOT()
	test.Error(t, err)

	_, err = ParseEOT(b[:50])
	test.That(t, errors.Is(err, ErrInvalidFontData), err)
	_, err = ParseEOT(b[:len(b)-1])
	test.That(t, errors.Is(err, ErrInvalidFontData), err)

	bad := append([]byte{}, b...)
	binary.LittleEndian.PutUint32(bad[12:], eotTTEmbedCompressed)
	_, err = ParseEOT(bad)
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)

	bad = append([]byte{}, b...)
	binary.LittleEndian.PutUint32(bad[8:], 0x00030000)
	_, err = ParseEOT(bad)
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)

	bad = append([]byte{}, b...)
	bad[34] = 0
	_, err = ParseEOT(bad)
	test.That(t, err != nil, "bad magic number")
}
