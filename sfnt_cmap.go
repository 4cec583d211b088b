package varfont

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/tdewolff/parse/v2"
)

// CmapTable maps Unicode code points to glyphs. It is encoded as a format 4 subtable, or a format 12 subtable when it maps code points beyond the BMP.
type CmapTable struct {
	Runes map[rune]uint16
}

// Get returns the glyph ID for the corresponding rune. When the rune is not defined it returns 0.
func (cmap *CmapTable) Get(r rune) uint16 {
	return cmap.Runes[r]
}

// GlyphCount returns the highest mapped glyph plus one.
func (cmap *CmapTable) GlyphCount() int {
	n := 0
	for _, glyphID := range cmap.Runes {
		n = max(n, int(glyphID)+1)
	}
	return n
}

func (cmap *CmapTable) sortedRunes() []rune {
	rs := make([]rune, 0, len(cmap.Runes))
	for r := range cmap.Runes {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return rs
}

// Marshal encodes the cmap table, with one subtable referenced by both the Unicode and Windows platforms.
func (cmap *CmapTable) Marshal() ([]byte, error) {
	rs := cmap.sortedRunes()
	if len(rs) == 0 {
		return []byte{0x00, 0x00, 0x00, 0x00}, nil
	} else if rs[0] < 0 || 0x10FFFF < rs[len(rs)-1] {
		return nil, fmt.Errorf("cmap: bad code point")
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(0) // version
	w.WriteUint16(2) // numTables
	var subtable []byte
	if rs[len(rs)-1] <= 0xFFFF {
		w.WriteUint16(uint16(PlatformUnicode))
		w.WriteUint16(uint16(EncodingUnicode2BMP))
		w.WriteUint32(20) // subtableOffset
		w.WriteUint16(uint16(PlatformWindows))
		w.WriteUint16(uint16(EncodingWindowsUnicodeBMP))
		w.WriteUint32(20) // subtableOffset

		var err error
		if subtable, err = cmapFormat4(rs, cmap.Runes); err != nil {
			return nil, err
		}
	} else {
		w.WriteUint16(uint16(PlatformUnicode))
		w.WriteUint16(uint16(EncodingUnicodeFullRepertoire))
		w.WriteUint32(20) // subtableOffset
		w.WriteUint16(uint16(PlatformWindows))
		w.WriteUint16(uint16(EncodingWindowsUnicodeFullRepertoire))
		w.WriteUint32(20) // subtableOffset
		subtable = cmapFormat12(rs, cmap.Runes)
	}
	w.WriteBytes(subtable)
	return w.Bytes(), nil
}

type cmapSegment struct {
	start, end rune
	glyphIDs   []uint16
}

func (segment cmapSegment) contiguous() bool {
	for i := 1; i < len(segment.glyphIDs); i++ {
		if segment.glyphIDs[i-1]+1 != segment.glyphIDs[i] {
			return false
		}
	}
	return true
}

func cmapFormat4(rs []rune, runeMap map[rune]uint16) ([]byte, error) {
	var segments []cmapSegment
	for i, r := range rs {
		if 0 < i && rs[i-1]+1 == r {
			segment := &segments[len(segments)-1]
			segment.end = r
			segment.glyphIDs = append(segment.glyphIDs, runeMap[r])
		} else {
			segments = append(segments, cmapSegment{r, r, []uint16{runeMap[r]}})
		}
	}
	if rs[len(rs)-1] != 0xFFFF {
		segments = append(segments, cmapSegment{0xFFFF, 0xFFFF, []uint16{0}}) // map to .notdef
	}

	segCount := len(segments)
	idDeltas := make([]int16, segCount)
	idRangeOffsets := make([]uint16, segCount)
	var glyphIDArray []uint16
	for i, segment := range segments {
		if segment.contiguous() {
			delta := int(segment.glyphIDs[0]) - int(segment.start)
			if math.MaxInt16 < delta {
				delta -= 65536
			} else if delta < math.MinInt16 {
				delta += 65536
			}
			idDeltas[i] = int16(delta)
		} else {
			// offset in bytes from the idRangeOffset entry itself into glyphIdArray
			offset := 2 * (segCount - i + len(glyphIDArray))
			if 0xFFFF < offset {
				return nil, &CodecError{Err: ErrOffsetOverflow, Table: "cmap", Field: "idRangeOffset", Expected: 0xFFFF, Actual: int64(offset)}
			}
			idRangeOffsets[i] = uint16(offset)
			glyphIDArray = append(glyphIDArray, segment.glyphIDs...)
		}
	}

	length := 16 + 8*segCount + 2*len(glyphIDArray)
	if 0xFFFF < length {
		return nil, &CodecError{Err: ErrOffsetOverflow, Table: "cmap", Field: "length", Expected: 0xFFFF, Actual: int64(length)}
	}
	entrySelector := bits.Len16(uint16(segCount)) - 1
	searchRange := 1 << entrySelector

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(4) // format
	w.WriteUint16(uint16(length))
	w.WriteUint16(0) // language
	w.WriteUint16(uint16(segCount * 2))
	w.WriteUint16(uint16(searchRange * 2))
	w.WriteUint16(uint16(entrySelector))
	w.WriteUint16(uint16((segCount - searchRange) * 2)) // rangeShift
	for _, segment := range segments {
		w.WriteUint16(uint16(segment.end))
	}
	w.WriteUint16(0) // reservedPad
	for _, segment := range segments {
		w.WriteUint16(uint16(segment.start))
	}
	for _, idDelta := range idDeltas {
		w.WriteInt16(idDelta)
	}
	for _, idRangeOffset := range idRangeOffsets {
		w.WriteUint16(idRangeOffset)
	}
	for _, glyphID := range glyphIDArray {
		w.WriteUint16(glyphID)
	}
	return w.Bytes(), nil
}

func cmapFormat12(rs []rune, runeMap map[rune]uint16) []byte {
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(12) // format
	w.WriteUint16(0)  // reserved
	w.WriteUint32(0)  // length (set later)
	w.WriteUint32(0)  // language
	w.WriteUint32(0)  // numGroups (set later)

	numGroups := uint32(0)
	for i := 0; i < len(rs); {
		j := i + 1
		for j < len(rs) && rs[j-1]+1 == rs[j] && runeMap[rs[j-1]]+1 == runeMap[rs[j]] {
			j++
		}
		w.WriteUint32(uint32(rs[i]))          // startCharCode
		w.WriteUint32(uint32(rs[j-1]))        // endCharCode
		w.WriteUint32(uint32(runeMap[rs[i]])) // startGlyphID
		numGroups++
		i = j
	}

	b := w.Bytes()
	binary.BigEndian.PutUint32(b[4:], uint32(len(b))) // set length
	binary.BigEndian.PutUint32(b[12:], numGroups)     // set numGroups
	return b
}

// parseCmap decodes the first format 4 or format 12 subtable of a Unicode or Windows encoding record.
func parseCmap(b []byte) (*CmapTable, error) {
	if len(b) < 4 {
		return nil, errTruncated("cmap", "", 0, 4, int64(len(b)))
	}
	r := parse.NewBinaryReaderBytes(b)
	if version := r.ReadUint16(); version != 0 {
		return nil, errVersion("cmap", uint32(version))
	}
	numTables := r.ReadUint16()
	if r.Len() < 8*int64(numTables) {
		return nil, errTruncated("cmap", "encodingRecords", 4, 8*int64(numTables), r.Len())
	}

	for i := 0; i < int(numTables); i++ {
		platformID := PlatformID(r.ReadUint16())
		_ = r.ReadUint16() // encodingID
		offset := r.ReadUint32()
		if platformID != PlatformUnicode && platformID != PlatformWindows {
			continue
		} else if uint32(len(b)) < offset || len(b)-int(offset) < 2 {
			return nil, errTruncated("cmap", "subtable", int64(offset), 2, 0)
		}

		sub := b[offset:]
		switch binary.BigEndian.Uint16(sub) {
		case 4:
			return parseCmapFormat4(sub)
		case 12:
			return parseCmapFormat12(sub)
		}
	}
	return nil, fmt.Errorf("cmap: no supported subtable")
}

func parseCmapFormat4(b []byte) (*CmapTable, error) {
	if len(b) < 14 {
		return nil, errTruncated("cmap", "format4", 0, 14, int64(len(b)))
	}
	r := parse.NewBinaryReaderBytes(b)
	_ = r.ReadUint16() // format
	length := int(r.ReadUint16())
	_ = r.ReadUint16() // language
	segCount := int(r.ReadUint16() / 2)
	_ = r.ReadBytes(6) // searchRange, entrySelector, rangeShift
	if len(b) < length || length < 16+8*segCount {
		return nil, errTruncated("cmap", "format4", 0, int64(16+8*segCount), int64(len(b)))
	}

	endCode := make([]uint16, segCount)
	startCode := make([]uint16, segCount)
	idDelta := make([]uint16, segCount)
	for i := range endCode {
		endCode[i] = r.ReadUint16()
	}
	_ = r.ReadUint16() // reservedPad
	for i := range startCode {
		startCode[i] = r.ReadUint16()
	}
	for i := range idDelta {
		idDelta[i] = r.ReadUint16()
	}
	idRangeOffsetPos := 16 + 6*segCount

	cmap := &CmapTable{Runes: map[rune]uint16{}}
	for i := 0; i < segCount; i++ {
		idRangeOffset := int(binary.BigEndian.Uint16(b[idRangeOffsetPos+2*i:]))
		if endCode[i] < startCode[i] {
			return nil, fmt.Errorf("cmap: bad segment %d", i)
		}
		for c := int(startCode[i]); c <= int(endCode[i]); c++ {
			if c == 0xFFFF {
				break
			}
			var glyphID uint16
			if idRangeOffset == 0 {
				glyphID = uint16(c) + idDelta[i]
			} else {
				pos := idRangeOffsetPos + 2*i + idRangeOffset + 2*(c-int(startCode[i]))
				if length < pos+2 {
					return nil, errTruncated("cmap", "glyphIdArray", int64(pos), 2, int64(length-pos))
				}
				if glyphID = binary.BigEndian.Uint16(b[pos:]); glyphID != 0 {
					glyphID += idDelta[i]
				}
			}
			if glyphID != 0 {
				cmap.Runes[rune(c)] = glyphID
			}
		}
	}
	return cmap, nil
}

func parseCmapFormat12(b []byte) (*CmapTable, error) {
	if len(b) < 16 {
		return nil, errTruncated("cmap", "format12", 0, 16, int64(len(b)))
	}
	r := parse.NewBinaryReaderBytes(b)
	_ = r.ReadBytes(12) // format, reserved, length, language
	numGroups := r.ReadUint32()
	if r.Len() < 12*int64(numGroups) {
		return nil, errTruncated("cmap", "groups", 16, 12*int64(numGroups), r.Len())
	}

	cmap := &CmapTable{Runes: map[rune]uint16{}}
	for i := 0; i < int(numGroups); i++ {
		startCharCode := r.ReadUint32()
		endCharCode := r.ReadUint32()
		startGlyphID := r.ReadUint32()
		if endCharCode < startCharCode || 0x10FFFF < endCharCode || uint32(math.MaxUint16) < startGlyphID+(endCharCode-startCharCode) {
			return nil, fmt.Errorf("cmap: bad group %d", i)
		}
		for c := startCharCode; c <= endCharCode; c++ {
			cmap.Runes[rune(c)] = uint16(startGlyphID + c - startCharCode)
		}
	}
	return cmap, nil
}
