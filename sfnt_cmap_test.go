package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestCmapFormat4(t *testing.T) {
	cmap := &CmapTable{Runes: map[rune]uint16{'A': 1, 'B': 2, 'C': 3, 'a': 10, 'c': 5}}
	test.T(t, cmap.GlyphCount(), 11)

	b, err := cmap.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x14,
		0x00, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00, 0x14,
		0x00, 0x04, 0x00, 0x30, 0x00, 0x00, 0x00, 0x08, 0x00, 0x08, 0x00, 0x02, 0x00, 0x00,
		0x00, 0x43, 0x00, 0x61, 0x00, 0x63, 0xFF, 0xFF, // endCode
		0x00, 0x00,
		0x00, 0x41, 0x00, 0x61, 0x00, 0x63, 0xFF, 0xFF, // startCode
		0xFF, 0xC0, 0xFF, 0xA9, 0xFF, 0xA2, 0x00, 0x01, // idDelta
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // idRangeOffset
	})

	cmap2, err := parseCmap(b)
	test.Error(t, err)
	test.T(t, cmap2, cmap)
	test.T(t, cmap2.Get('a'), uint16(10))
	test.T(t, cmap2.Get('b'), uint16(0))
}

func TestCmapGlyphIDArray(t *testing.T) {
	cmap := &CmapTable{Runes: map[rune]uint16{'x': 7, 'y': 3, 'z': 4, 0xFFFF: 9}}
	b, err := cmap.Marshal()
	test.Error(t, err)
	test.Bytes(t, b[20+24:], []byte{
		0x00, 0x00, 0x00, 0x0A,             // idDelta
		0x00, 0x04, 0x00, 0x00,             // idRangeOffset
		0x00, 0x07, 0x00, 0x03, 0x00, 0x04, // glyphIdArray
	})

	cmap2, err := parseCmap(b)
	test.Error(t, err)
	delete(cmap.Runes, 0xFFFF)
	test.T(t, cmap2, cmap)
}

func TestCmapFormat12(t *testing.T) {
	cmap := &CmapTable{Runes: map[rune]uint16{'A': 1, 0x1F600: 2, 0x1F601: 3}}
	b, err := cmap.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x14,
		0x00, 0x03, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x14,
		0x00, 0x0C, 0x00, 0x00, 0x00, 0x00, 0x00, 0x28, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x41, 0x00, 0x00, 0x00, 0x41, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x01, 0xF6, 0x00, 0x00, 0x01, 0xF6, 0x01, 0x00, 0x00, 0x00, 0x02,
	})

	cmap2, err := parseCmap(b)
	test.Error(t, err)
	test.T(t, cmap2, cmap)
}

func TestCmapErrors(t *testing.T) {
	b, err := (&CmapTable{}).Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{0x00, 0x00, 0x00, 0x00})
	_, err = parseCmap(b)
	test.That(t, err != nil, "no subtable")

	_, err = (&CmapTable{Runes: map[rune]uint16{0x110000: 1}}).Marshal()
	test.That(t, err != nil, "code point out of range")

	_, err = parseCmap([]byte{0x00, 0x00})
	test.That(t, errors.Is(err, ErrTruncatedData), err)
	_, err = parseCmap([]byte{0x00, 0x01, 0x00, 0x00})
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)
	_, err = parseCmap([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x03})
	test.That(t, errors.Is(err, ErrTruncatedData), err)

	b, err = (&CmapTable{Runes: map[rune]uint16{'A': 1}}).Marshal()
	test.Error(t, err)
	_, err = parseCmap(b[:len(b)-2])
	test.That(t, errors.Is(err, ErrTruncatedData), err)
}
