package varfont

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/andybalholm/brotli"
	"github.com/tdewolff/parse/v2"
)

// Specification:
// https://www.w3.org/TR/WOFF2/

const (
	woff2NullTransform  = 3 // transform version of untransformed glyf and loca tables
	woff2ArbitraryTag   = 63
	woff2HeaderSize     = 48
	woff2MaxBase128Size = 5
)

var woff2TableTags = []string{
	"cmap", "head", "hhea", "hmtx",
	"maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca",
	"prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern",
	"LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS",
	"GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL",
	"SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar",
	"fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar",
	"mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat",
	"Gloc", "Feat", "Sill",
}

func woff2TagIndex(tag Tag) int {
	for i, known := range woff2TableTags {
		if MustTag(known) == tag {
			return i
		}
	}
	return woff2ArbitraryTag
}

// WriteWOFF2 serializes the font and wraps it in the WOFF2 format. Tables are stored without transforms and compressed with brotli. A DSIG table is dropped since the signature no longer matches.
func (f *Font) WriteWOFF2() ([]byte, error) {
	sfnt, err := f.Serialize()
	if err != nil {
		return nil, err
	}
	flavor, tags, raw, err := readDirectory(sfnt, 0)
	if err != nil {
		return nil, err
	}

	w := parse.NewBinaryWriter([]byte{})
	var data bytes.Buffer
	numTables := 0
	totalSfntSize := 12
	for _, tag := range tags {
		if tag == MustTag("DSIG") {
			continue
		}
		numTables++
		table := raw[tag]
		totalSfntSize += 16 + len(table) + padding(len(table))

		flags := byte(woff2TagIndex(tag))
		if tag == MustTag("glyf") || tag == MustTag("loca") {
			flags |= woff2NullTransform << 6
		}
		w.WriteUint8(flags)
		if flags&0x3F == woff2ArbitraryTag {
			w.WriteBytes(tag[:])
		}
		writeUintBase128(w, uint32(len(table)))
		data.Write(table)
	}
	directory := w.Bytes()

	var compressed bytes.Buffer
	wBrotli := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := wBrotli.Write(data.Bytes()); err != nil {
		return nil, err
	} else if err := wBrotli.Close(); err != nil {
		return nil, err
	}

	length := woff2HeaderSize + len(directory) + compressed.Len()
	length += padding(length)
	if math.MaxUint32 < uint64(length) {
		return nil, &CodecError{Err: ErrOffsetOverflow, Table: "wOF2", Expected: math.MaxUint32, Actual: int64(length)}
	}

	w = parse.NewBinaryWriter([]byte{})
	w.WriteBytes([]byte("wOF2")) // signature
	w.WriteUint32(flavor)
	w.WriteUint32(uint32(length))
	w.WriteUint16(uint16(numTables))
	w.WriteUint16(0) // reserved
	w.WriteUint32(uint32(totalSfntSize))
	w.WriteUint32(uint32(compressed.Len()))
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint32(0) // metaOffset
	w.WriteUint32(0) // metaLength
	w.WriteUint32(0) // metaOrigLength
	w.WriteUint32(0) // privOffset
	w.WriteUint32(0) // privLength
	w.WriteBytes(directory)
	w.WriteBytes(compressed.Bytes())
	w.WriteBytes(make([]byte, length-len(w.Bytes())))
	tracer().Debugf("woff2: %d tables, %d bytes for %d bytes of table data", numTables, length, data.Len())
	return w.Bytes(), nil
}

// ParseWOFF2 parses a font in the WOFF2 format. Only fonts without the glyf, loca and hmtx transforms are supported, such as those written by WriteWOFF2.
func ParseWOFF2(b []byte) (*Font, error) {
	if len(b) < woff2HeaderSize {
		return nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReaderBytes(b)
	if signature := r.ReadBytes(4); string(signature) != "wOF2" {
		return nil, fmt.Errorf("wOF2: bad signature")
	}
	flavor := r.ReadUint32()
	if flavor == 0x74746366 { // ttcf
		return nil, fmt.Errorf("wOF2: collections are unsupported")
	}
	length := r.ReadUint32()
	numTables := r.ReadUint16()
	reserved := r.ReadUint16()
	_ = r.ReadUint32() // totalSfntSize
	totalCompressedSize := r.ReadUint32()
	_ = r.ReadBytes(24) // majorVersion, minorVersion, metadata and private data
	if length != uint32(len(b)) {
		return nil, fmt.Errorf("wOF2: length in header must match file size")
	} else if numTables == 0 {
		return nil, fmt.Errorf("wOF2: numTables in header must not be zero")
	} else if reserved != 0 {
		return nil, fmt.Errorf("wOF2: reserved in header must be zero")
	}

	tags := make([]Tag, 0, numTables)
	lengths := make([]uint32, 0, numTables)
	var uncompressedSize uint32
	for i := 0; i < int(numTables); i++ {
		if r.Len() < 1 {
			return nil, errTruncated("wOF2", "tableDirectory", r.Pos(), 1, 0)
		}
		flags := r.ReadUint8()
		tagIndex := int(flags & 0x3F)
		transformVersion := int(flags >> 6)

		var tag Tag
		if tagIndex == woff2ArbitraryTag {
			if r.Len() < 4 {
				return nil, errTruncated("wOF2", "tag", r.Pos(), 4, r.Len())
			}
			copy(tag[:], r.ReadBytes(4))
		} else if tagIndex < len(woff2TableTags) {
			tag = MustTag(woff2TableTags[tagIndex])
		} else {
			return nil, fmt.Errorf("wOF2: bad table tag index %d", tagIndex)
		}
		origLength, err := readUintBase128(r)
		if err != nil {
			return nil, err
		}

		transformed := transformVersion != 0
		if tag == MustTag("glyf") || tag == MustTag("loca") {
			transformed = transformVersion != woff2NullTransform
		}
		if transformed {
			return nil, errVersion(tag.String()+" transform", uint32(transformVersion))
		} else if math.MaxUint32-uncompressedSize < origLength {
			return nil, ErrInvalidFontData
		}
		uncompressedSize += origLength
		tags = append(tags, tag)
		lengths = append(lengths, origLength)
	}
	if MaxMemory < uncompressedSize {
		return nil, ErrExceedsMemory
	} else if r.Len() < int64(totalCompressedSize) {
		return nil, errTruncated("wOF2", "compressedData", r.Pos(), int64(totalCompressedSize), r.Len())
	}

	rBrotli := brotli.NewReader(bytes.NewReader(r.ReadBytes(int64(totalCompressedSize))))
	data, err := io.ReadAll(io.LimitReader(rBrotli, int64(uncompressedSize)+1))
	if err != nil {
		return nil, fmt.Errorf("wOF2: %w", err)
	} else if len(data) != int(uncompressedSize) {
		return nil, fmt.Errorf("wOF2: decompressed data has %d bytes, expected %d", len(data), uncompressedSize)
	}

	f := NewFont(nil)
	f.Flavor = flavor
	raw := make(map[Tag][]byte, numTables)
	for i, tag := range tags {
		if _, ok := raw[tag]; ok {
			return nil, fmt.Errorf("%v: table defined more than once", tag)
		}
		raw[tag] = data[:lengths[i]:lengths[i]]
		data = data[lengths[i]:]
		f.InsertTable(tag, RawTable(raw[tag]))
	}
	if err := f.decodeTables(raw); err != nil {
		return nil, err
	}
	return f, nil
}

// readUintBase128 reads a variable-length integer of up to five bytes, seven bits per byte with the high bit marking continuation.
func readUintBase128(r *parse.BinaryReader) (uint32, error) {
	var accum uint32
	for i := 0; i < woff2MaxBase128Size; i++ {
		if r.Len() < 1 {
			return 0, ErrInvalidFontData
		}
		dataByte := r.ReadUint8()
		if i == 0 && dataByte == 0x80 {
			return 0, fmt.Errorf("readUintBase128: must not start with leading zeros")
		} else if accum&0xFE000000 != 0 {
			return 0, fmt.Errorf("readUintBase128: overflow")
		}
		accum = accum<<7 | uint32(dataByte&0x7F)
		if dataByte&0x80 == 0 {
			return accum, nil
		}
	}
	return 0, fmt.Errorf("readUintBase128: exceeds 5 bytes")
}

func writeUintBase128(w *parse.BinaryWriter, v uint32) {
	n := 1
	for v>>(7*n) != 0 && n < woff2MaxBase128Size {
		n++
	}
	for i := n - 1; 0 <= i; i-- {
		b := byte(v>>(7*i)) & 0x7F
		if i != 0 {
			b |= 0x80
		}
		w.WriteUint8(b)
	}
}
