package varfont

import (
	"fmt"

	"github.com/tdewolff/parse/v2"
)

// see PostTable.Version
const (
	PostVersion1 = 0x00010000 // standard Macintosh glyph set
	PostVersion2 = 0x00020000 // glyph names
	PostVersion3 = 0x00030000 // no glyph names
)

// PostTable holds PostScript information and, for version 2, the glyph names.
type PostTable struct {
	Version            uint32
	ItalicAngle        Fixed
	UnderlinePosition  int16
	UnderlineThickness int16
	IsFixedPitch       uint32
	MinMemType42       uint32
	MaxMemType42       uint32
	MinMemType1        uint32
	MaxMemType1        uint32

	GlyphNames []string // versions 1 and 2
}

// GlyphCount returns the number of named glyphs.
func (post *PostTable) GlyphCount() int {
	if post.Version == PostVersion2 {
		return len(post.GlyphNames)
	}
	return 0
}

func parsePost(b []byte) (*PostTable, error) {
	if len(b) < 32 {
		return nil, errTruncated("post", "", 0, 32, int64(len(b)))
	}

	post := &PostTable{}
	r := parse.NewBinaryReaderBytes(b)
	post.Version = r.ReadUint32()
	post.ItalicAngle = Fixed(r.ReadInt32())
	post.UnderlinePosition = r.ReadInt16()
	post.UnderlineThickness = r.ReadInt16()
	post.IsFixedPitch = r.ReadUint32()
	post.MinMemType42 = r.ReadUint32()
	post.MaxMemType42 = r.ReadUint32()
	post.MinMemType1 = r.ReadUint32()
	post.MaxMemType1 = r.ReadUint32()
	switch post.Version {
	case PostVersion1:
		post.GlyphNames = append([]string{}, macintoshGlyphNames...)
	case PostVersion2:
		if r.Len() < 2 {
			return nil, errTruncated("post", "numGlyphs", r.Pos(), 2, r.Len())
		}
		numGlyphs := r.ReadUint16()
		if r.Len() < 2*int64(numGlyphs) {
			return nil, errTruncated("post", "glyphNameIndex", r.Pos(), 2*int64(numGlyphs), r.Len())
		}

		numStrings := 0
		indices := make([]uint16, numGlyphs)
		for i := range indices {
			indices[i] = r.ReadUint16()
			if 258 <= indices[i] && numStrings < int(indices[i])-257 {
				numStrings = int(indices[i]) - 257
			}
		}

		stringData := make([]string, 0, numStrings)
		for len(stringData) < numStrings {
			if r.Len() < 1 {
				return nil, errTruncated("post", "stringData", r.Pos(), 1, 0)
			}
			length := r.ReadUint8()
			if r.Len() < int64(length) {
				return nil, errTruncated("post", "stringData", r.Pos(), int64(length), r.Len())
			}
			stringData = append(stringData, string(r.ReadBytes(int64(length))))
		}

		post.GlyphNames = make([]string, numGlyphs)
		for i, index := range indices {
			if index < 258 {
				post.GlyphNames[i] = macintoshGlyphNames[index]
			} else {
				post.GlyphNames[i] = stringData[index-258]
			}
		}
	case PostVersion3:
	default:
		return nil, errVersion("post", post.Version)
	}
	return post, nil
}

// Marshal encodes the post table. Version 2 stores the glyph names, using the standard Macintosh names where possible.
func (post *PostTable) Marshal() ([]byte, error) {
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint32(post.Version)
	w.WriteUint32(uint32(post.ItalicAngle))
	w.WriteInt16(post.UnderlinePosition)
	w.WriteInt16(post.UnderlineThickness)
	w.WriteUint32(post.IsFixedPitch)
	w.WriteUint32(post.MinMemType42)
	w.WriteUint32(post.MaxMemType42)
	w.WriteUint32(post.MinMemType1)
	w.WriteUint32(post.MaxMemType1)
	switch post.Version {
	case PostVersion1, PostVersion3:
	case PostVersion2:
		if 0xFFFF < len(post.GlyphNames) {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "post", Field: "numGlyphs", Expected: 0xFFFF, Actual: int64(len(post.GlyphNames))}
		}
		standard := make(map[string]uint16, len(macintoshGlyphNames))
		for i, name := range macintoshGlyphNames {
			standard[name] = uint16(i)
		}

		var stringData []byte
		custom := map[string]uint16{}
		w.WriteUint16(uint16(len(post.GlyphNames)))
		for _, name := range post.GlyphNames {
			index, ok := standard[name]
			if !ok {
				if index, ok = custom[name]; !ok {
					if 255 < len(name) {
						return nil, fmt.Errorf("post: glyph name %q too long", name)
					} else if 0xFFFF-258 < len(custom) {
						return nil, &CodecError{Err: ErrOutOfRange, Table: "post", Field: "glyphNameIndex", Expected: 0xFFFF, Actual: int64(258 + len(custom))}
					}
					index = uint16(258 + len(custom))
					custom[name] = index
					stringData = append(stringData, byte(len(name)))
					stringData = append(stringData, name...)
				}
			}
			w.WriteUint16(index)
		}
		w.WriteBytes(stringData)
	default:
		return nil, errVersion("post", post.Version)
	}
	return w.Bytes(), nil
}
