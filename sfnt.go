package varfont

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/sync/errgroup"
)

// see Font.Flavor
const (
	FlavorTrueType = 0x00010000
	FlavorCFF      = 0x4F54544F // OTTO
	FlavorApple    = 0x74727565 // true
)

// Table is a decoded font table.
type Table interface {
	Marshal() ([]byte, error)
}

// glyphCounter is implemented by tables that reference glyph indices. GlyphCount returns the number of glyphs the table requires.
type glyphCounter interface {
	GlyphCount() int
}

// RawTable is a table that is kept as is.
type RawTable []byte

// Marshal returns the table bytes.
func (t RawTable) Marshal() ([]byte, error) {
	return t, nil
}

// Font is an OpenType font document: an insertion-ordered set of tables and the glyph order.
type Font struct {
	Flavor     uint32
	GlyphOrder []string

	tags   []Tag
	tables map[Tag]Table
}

// NewFont returns an empty TrueType font with the given glyph order.
func NewFont(glyphOrder []string) *Font {
	return &Font{
		Flavor:     FlavorTrueType,
		GlyphOrder: glyphOrder,
		tables:     map[Tag]Table{},
	}
}

// InsertTable adds a table, or replaces the table with the same tag keeping its position.
func (f *Font) InsertTable(tag Tag, table Table) {
	if f.tables == nil {
		f.tables = map[Tag]Table{}
	}
	if _, ok := f.tables[tag]; !ok {
		f.tags = append(f.tags, tag)
	}
	f.tables[tag] = table
}

// RemoveTable removes a table and reports whether it was present.
func (f *Font) RemoveTable(tag Tag) bool {
	if _, ok := f.tables[tag]; !ok {
		return false
	}
	delete(f.tables, tag)
	for i, t := range f.tags {
		if t == tag {
			f.tags = append(f.tags[:i], f.tags[i+1:]...)
			break
		}
	}
	return true
}

// Table returns the table with the given tag.
func (f *Font) Table(tag Tag) (Table, bool) {
	table, ok := f.tables[tag]
	return table, ok
}

// Tags returns the table tags in insertion order.
func (f *Font) Tags() []Tag {
	return append([]Tag{}, f.tags...)
}

// NumGlyphs returns the number of glyphs, from the glyph order or otherwise from the maxp table.
func (f *Font) NumGlyphs() int {
	if 0 < len(f.GlyphOrder) {
		return len(f.GlyphOrder)
	} else if maxp := f.Maxp(); maxp != nil {
		return int(maxp.NumGlyphs)
	}
	return 0
}

// GlyphName returns the name of a glyph in the glyph order.
func (f *Font) GlyphName(glyphID int) string {
	if glyphID < len(f.GlyphOrder) {
		return f.GlyphOrder[glyphID]
	}
	return fmt.Sprintf("glyph%05d", glyphID)
}

func typedTable[T Table](f *Font, tag string) T {
	t, _ := f.tables[MustTag(tag)].(T)
	return t
}

// Head returns the head table, or nil.
func (f *Font) Head() *HeadTable { return typedTable[*HeadTable](f, "head") }

// Hhea returns the hhea table, or nil.
func (f *Font) Hhea() *HheaTable { return typedTable[*HheaTable](f, "hhea") }

// Hmtx returns the hmtx table, or nil.
func (f *Font) Hmtx() *HmtxTable { return typedTable[*HmtxTable](f, "hmtx") }

// Maxp returns the maxp table, or nil.
func (f *Font) Maxp() *MaxpTable { return typedTable[*MaxpTable](f, "maxp") }

// Name returns the name table, or nil.
func (f *Font) Name() *NameTable { return typedTable[*NameTable](f, "name") }

// Post returns the post table, or nil.
func (f *Font) Post() *PostTable { return typedTable[*PostTable](f, "post") }

// Glyf returns the glyf table, or nil.
func (f *Font) Glyf() *GlyfTable { return typedTable[*GlyfTable](f, "glyf") }

// Cmap returns the cmap table, or nil.
func (f *Font) Cmap() *CmapTable { return typedTable[*CmapTable](f, "cmap") }

// OS2 returns the OS/2 table, or nil.
func (f *Font) OS2() *OS2Table { return typedTable[*OS2Table](f, "OS/2") }

// Fvar returns the fvar table, or nil.
func (f *Font) Fvar() *FvarTable { return typedTable[*FvarTable](f, "fvar") }

// Gvar returns the gvar table, or nil.
func (f *Font) Gvar() *GvarTable { return typedTable[*GvarTable](f, "gvar") }

// Avar returns the avar table, or nil.
func (f *Font) Avar() *AvarTable { return typedTable[*AvarTable](f, "avar") }

// Hvar returns the HVAR table, or nil.
func (f *Font) Hvar() *HvarTable { return typedTable[*HvarTable](f, "HVAR") }

////////////////////////////////////////////////////////////////

// tableOrder is the recommended physical order of TrueType tables. Other tables follow sorted by tag.
var tableOrder = []string{"head", "hhea", "maxp", "OS/2", "hmtx", "LTSH", "VDMX", "hdmx", "cmap", "fpgm", "prep", "cvt ", "loca", "glyf", "kern", "name", "post", "gasp", "PCLT", "DSIG"}

func physicalOrder(tags []Tag) []Tag {
	priority := make(map[Tag]int, len(tableOrder))
	for i, tag := range tableOrder {
		priority[MustTag(tag)] = i
	}
	ordered := append([]Tag{}, tags...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, iok := priority[ordered[i]]
		pj, jok := priority[ordered[j]]
		if iok && jok {
			return pi < pj
		} else if iok != jok {
			return iok
		}
		return ordered[i].Uint32() < ordered[j].Uint32()
	})
	return ordered
}

// refresh recomputes the tables derived from others: loca and head's indexToLocFormat from glyf, hhea's numberOfHMetrics from hmtx, and maxp's numGlyphs from the glyph order. It returns the encoded glyf table.
func (f *Font) refresh() ([]byte, error) {
	if maxp := f.Maxp(); maxp != nil && 0 < len(f.GlyphOrder) {
		if 0xFFFF < len(f.GlyphOrder) {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "maxp", Field: "numGlyphs", Expected: 0xFFFF, Actual: int64(len(f.GlyphOrder))}
		}
		maxp.NumGlyphs = uint16(len(f.GlyphOrder))
	}
	if hmtx, hhea := f.Hmtx(), f.Hhea(); hmtx != nil && hhea != nil {
		if 0xFFFF < len(hmtx.HMetrics) {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "hhea", Field: "numberOfHMetrics", Expected: 0xFFFF, Actual: int64(len(hmtx.HMetrics))}
		}
		hhea.NumberOfHMetrics = uint16(len(hmtx.HMetrics))
	}

	glyf := f.Glyf()
	if glyf == nil {
		return nil, nil
	}
	b, offsets, err := glyf.encode()
	if err != nil {
		return nil, err
	}
	loca := &LocaTable{
		Offsets: offsets,
		Long:    0x1FFFE < offsets[len(offsets)-1],
	}
	f.InsertTable(MustTag("loca"), loca)
	if head := f.Head(); head != nil {
		head.IndexToLocFormat = 0
		if loca.Long {
			head.IndexToLocFormat = 1
		}
	}
	return b, nil
}

// Serialize encodes the font. Tables are encoded concurrently, padded to four bytes and laid out in the recommended order, with the table directory sorted by tag and the checksums computed.
func (f *Font) Serialize() ([]byte, error) {
	glyfData, err := f.refresh()
	if err != nil {
		return nil, err
	}

	numGlyphs := f.NumGlyphs()
	for _, tag := range f.tags {
		if counter, ok := f.tables[tag].(glyphCounter); ok && numGlyphs < counter.GlyphCount() {
			return nil, &CodecError{Err: ErrOutOfRange, Table: tag.String(), Field: "glyph count", Expected: int64(numGlyphs), Actual: int64(counter.GlyphCount())}
		}
	}
	if 0xFFFF < len(f.tags) {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "sfnt", Field: "numTables", Expected: 0xFFFF, Actual: int64(len(f.tags))}
	}

	payloads := make(map[Tag][]byte, len(f.tags))
	results := make([][]byte, len(f.tags))
	var g errgroup.Group
	for i, tag := range f.tags {
		if tag == MustTag("glyf") {
			results[i] = glyfData
			continue
		}
		table := f.tables[tag]
		g.Go(func() error {
			b, err := table.Marshal()
			if err != nil {
				return fmt.Errorf("%v: %w", tag, err)
			}
			results[i] = b
			tracer().Debugf("sfnt: encoded %v table, %d bytes", tag, len(b))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, tag := range f.tags {
		payloads[tag] = results[i]
	}

	directory := append([]Tag{}, f.tags...)
	sort.Slice(directory, func(i, j int) bool { return directory[i].Uint32() < directory[j].Uint32() })
	numTables := len(directory)

	// header and table records
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint32(f.flavor())
	entrySelector, searchRange := 0, 0
	if 0 < numTables {
		entrySelector = bits.Len16(uint16(numTables)) - 1
		searchRange = 16 << entrySelector
	}
	w.WriteUint16(uint16(numTables))
	w.WriteUint16(uint16(searchRange))
	w.WriteUint16(uint16(entrySelector))
	w.WriteUint16(uint16(numTables*16 - searchRange)) // rangeShift
	w.WriteBytes(make([]byte, 16*numTables))

	// table data
	buf := w.Bytes()
	offsets := make(map[Tag]int, numTables)
	headPos := -1
	for _, tag := range physicalOrder(f.tags) {
		table := payloads[tag]
		offsets[tag] = len(buf)
		if tag == MustTag("head") {
			if len(table) < 12 {
				return nil, errTruncated("head", "checkSumAdjustment", 8, 4, int64(len(table)))
			}
			headPos = len(buf)
		}
		buf = append(buf, table...)
		buf = append(buf, make([]byte, padding(len(table)))...)
	}
	if math.MaxUint32 < uint64(len(buf)) {
		return nil, &CodecError{Err: ErrOffsetOverflow, Table: "sfnt", Expected: math.MaxUint32, Actual: int64(len(buf))}
	}
	if headPos != -1 {
		binary.BigEndian.PutUint32(buf[headPos+8:], 0) // checkSumAdjustment
	}

	for i, tag := range directory {
		pos := 12 + 16*i
		offset, length := offsets[tag], len(payloads[tag])
		copy(buf[pos:], tag[:])
		binary.BigEndian.PutUint32(buf[pos+4:], calcChecksum(buf[offset:offset+length+padding(length)]))
		binary.BigEndian.PutUint32(buf[pos+8:], uint32(offset))
		binary.BigEndian.PutUint32(buf[pos+12:], uint32(length))
	}
	if headPos != -1 {
		checkSumAdjustment := 0xB1B0AFBA - calcChecksum(buf)
		binary.BigEndian.PutUint32(buf[headPos+8:], checkSumAdjustment)
		f.Head().CheckSumAdjustment = checkSumAdjustment
	}
	tracer().Infof("sfnt: serialized %d tables, %d bytes", numTables, len(buf))
	return buf, nil
}

func (f *Font) flavor() uint32 {
	if f.Flavor == 0 {
		return FlavorTrueType
	}
	return f.Flavor
}

////////////////////////////////////////////////////////////////

// Parse parses a TrueType or OpenType font. The head, hhea, hmtx, maxp, name, post, glyf, loca, OS/2, fvar, avar, gvar and HVAR tables are decoded, all others are kept as RawTable.
func Parse(b []byte) (*Font, error) {
	return ParseCollection(b, 0)
}

// ParseCollection is like Parse but selects a font from a font collection (TTC) by index.
func ParseCollection(b []byte, index int) (*Font, error) {
	flavor, tags, raw, err := readDirectory(b, index)
	if err != nil {
		return nil, err
	}
	f := NewFont(nil)
	f.Flavor = flavor
	for _, tag := range tags {
		f.InsertTable(tag, RawTable(raw[tag]))
	}
	if err := f.decodeTables(raw); err != nil {
		return nil, err
	}
	return f, nil
}

// readDirectory returns the flavor and the tables of a font, in directory order.
func readDirectory(b []byte, index int) (uint32, []Tag, map[Tag][]byte, error) {
	if len(b) < 12 || uint(math.MaxUint32) < uint(len(b)) {
		return 0, nil, nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReaderBytes(b)
	flavor := r.ReadUint32()
	if flavor == 0x74746366 { // ttcf
		majorVersion := r.ReadUint16()
		minorVersion := r.ReadUint16()
		if majorVersion != 1 && majorVersion != 2 || minorVersion != 0 {
			return 0, nil, nil, errVersion("ttcf", uint32(majorVersion)<<16|uint32(minorVersion))
		}

		numFonts := r.ReadUint32()
		if index < 0 || numFonts <= uint32(index) {
			return 0, nil, nil, fmt.Errorf("bad font index %d", index)
		} else if r.Len() < 4*int64(numFonts) {
			return 0, nil, nil, errTruncated("ttcf", "tableDirectoryOffsets", 12, 4*int64(numFonts), r.Len())
		}
		_ = r.ReadBytes(4 * int64(index))
		offset := r.ReadUint32()
		if uint32(len(b))-12 < offset {
			return 0, nil, nil, errTruncated("ttcf", "tableDirectory", int64(offset), 12, int64(len(b))-int64(offset))
		}
		r = parse.NewBinaryReaderBytes(b[offset:])
		flavor = r.ReadUint32()
	} else if index != 0 {
		return 0, nil, nil, fmt.Errorf("bad font index %d", index)
	}
	if flavor != FlavorTrueType && flavor != FlavorCFF && flavor != FlavorApple {
		return 0, nil, nil, errVersion("sfnt", flavor)
	}

	numTables := r.ReadUint16()
	_ = r.ReadUint16() // searchRange
	_ = r.ReadUint16() // entrySelector
	_ = r.ReadUint16() // rangeShift
	if r.Len() < 16*int64(numTables) {
		return 0, nil, nil, errTruncated("sfnt", "tableRecords", r.Pos(), 16*int64(numTables), r.Len())
	}

	tags := make([]Tag, 0, numTables)
	raw := make(map[Tag][]byte, numTables)
	for i := 0; i < int(numTables); i++ {
		var tag Tag
		copy(tag[:], r.ReadBytes(4))
		checksum := r.ReadUint32()
		offset := r.ReadUint32()
		length := r.ReadUint32()
		if uint32(len(b)) < offset || uint32(len(b))-offset < length {
			return 0, nil, nil, errTruncated(tag.String(), "", int64(offset), int64(length), int64(len(b))-int64(offset))
		} else if _, ok := raw[tag]; ok {
			return 0, nil, nil, fmt.Errorf("%v: table defined more than once", tag)
		}
		table := b[offset : offset+length : offset+length]
		if tag != MustTag("head") && int(offset+length)+padding(int(length)) <= len(b) {
			if calcChecksum(b[offset:int(offset+length)+padding(int(length))]) != checksum {
				tracer().Debugf("sfnt: bad checksum for %v table", tag)
			}
		}
		tags = append(tags, tag)
		raw[tag] = table
	}
	return flavor, tags, raw, nil
}

func (f *Font) decodeTables(raw map[Tag][]byte) error {
	decode := func(tag string, fn func([]byte) (Table, error)) error {
		b, ok := raw[MustTag(tag)]
		if !ok {
			return nil
		}
		table, err := fn(b)
		if err != nil {
			return err
		}
		f.tables[MustTag(tag)] = table
		return nil
	}

	var head *HeadTable
	var maxp *MaxpTable
	var hhea *HheaTable
	if err := decode("head", func(b []byte) (Table, error) {
		var err error
		head, err = parseHead(b)
		return head, err
	}); err != nil {
		return err
	} else if err := decode("maxp", func(b []byte) (Table, error) {
		var err error
		maxp, err = parseMaxp(b)
		return maxp, err
	}); err != nil {
		return err
	} else if err := decode("hhea", func(b []byte) (Table, error) {
		var err error
		hhea, err = parseHhea(b)
		return hhea, err
	}); err != nil {
		return err
	}
	if maxp == nil {
		return fmt.Errorf("maxp: missing table")
	}

	if hhea != nil {
		if err := decode("hmtx", func(b []byte) (Table, error) {
			return parseHmtx(b, hhea.NumberOfHMetrics, maxp.NumGlyphs)
		}); err != nil {
			return err
		}
	}

	var glyf *GlyfTable
	if b, ok := raw[MustTag("glyf")]; ok && head != nil {
		locaData, ok := raw[MustTag("loca")]
		if !ok {
			return fmt.Errorf("loca: missing table")
		}
		loca, err := parseLoca(locaData, head.IndexToLocFormat, maxp.NumGlyphs)
		if err != nil {
			return err
		}
		if glyf, err = parseGlyf(b, loca); err != nil {
			return err
		}
		f.tables[MustTag("loca")] = loca
		f.tables[MustTag("glyf")] = glyf
	}

	var post *PostTable
	if err := decode("post", func(b []byte) (Table, error) {
		var err error
		post, err = parsePost(b)
		return post, err
	}); err != nil {
		return err
	} else if err := decode("name", func(b []byte) (Table, error) {
		return parseName(b)
	}); err != nil {
		return err
	} else if err := decode("OS/2", func(b []byte) (Table, error) {
		return parseOS2(b)
	}); err != nil {
		return err
	} else if err := decode("cmap", func(b []byte) (Table, error) {
		return parseCmap(b)
	}); err != nil {
		return err
	}

	var fvar *FvarTable
	if err := decode("fvar", func(b []byte) (Table, error) {
		var err error
		fvar, err = parseFvar(b)
		return fvar, err
	}); err != nil {
		return err
	} else if err := decode("avar", func(b []byte) (Table, error) {
		return parseAvar(b)
	}); err != nil {
		return err
	} else if err := decode("HVAR", func(b []byte) (Table, error) {
		return parseHvar(b)
	}); err != nil {
		return err
	}
	if fvar != nil && glyf != nil {
		if err := decode("gvar", func(b []byte) (Table, error) {
			return parseGvar(b, len(fvar.Axes), glyf.pointCounts())
		}); err != nil {
			return err
		}
	}

	// glyph order from the post table, or synthesized
	f.GlyphOrder = make([]string, maxp.NumGlyphs)
	for i := range f.GlyphOrder {
		if post != nil && i < len(post.GlyphNames) {
			f.GlyphOrder[i] = post.GlyphNames[i]
		} else if i == 0 {
			f.GlyphOrder[i] = ".notdef"
		} else {
			f.GlyphOrder[i] = fmt.Sprintf("glyph%05d", i)
		}
	}
	return nil
}
