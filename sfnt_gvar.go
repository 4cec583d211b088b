package varfont

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/tdewolff/parse/v2"
)

// gvar flags
const (
	gvarLongOffsets = 0x0001

	sharedPointNumbers    = 0x8000
	tupleCountMask        = 0x0FFF
	embeddedPeakTuple     = 0x8000
	intermediateRegion    = 0x4000
	privatePointNumbers   = 0x2000
	tupleIndexMask        = 0x0FFF
	maxShortGvarDataBytes = 2 * 0xFFFF
)

// TupleVariation holds the deltas of a glyph for one region. Start and End are the region bounds per axis, Peak its peak.
type TupleVariation struct {
	Peak, Start, End []F2Dot14

	// Points are the point numbers the deltas apply to, in increasing order, or nil for all points including the phantom points.
	Points []uint16
	X, Y   []int16
}

// impliedBounds reports whether Start and End are the default bounds for Peak, in which case they are not stored.
func (tv *TupleVariation) impliedBounds() bool {
	for i, peak := range tv.Peak {
		if tv.Start[i] != min(peak, 0) || tv.End[i] != max(peak, 0) {
			return false
		}
	}
	return true
}

// GlyphVariations holds the tuple variations of one glyph.
type GlyphVariations struct {
	Tuples []TupleVariation
}

// GvarTable is the glyph variations table. The tuples of each glyph address the glyph's points followed by its four phantom points.
type GvarTable struct {
	AxisCount    int
	SharedTuples [][]F2Dot14
	Glyphs       []*GlyphVariations

	// LongOffsets is set after encoding or decoding when the glyph data offsets are 32-bit.
	LongOffsets bool
}

// GlyphCount returns the number of glyphs with variation data.
func (gvar *GvarTable) GlyphCount() int {
	return len(gvar.Glyphs)
}

func parseGvar(b []byte, axisCount int, pointCounts []int) (*GvarTable, error) {
	if len(b) < 20 {
		return nil, errTruncated("gvar", "", 0, 20, int64(len(b)))
	}
	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return nil, errVersion("gvar", uint32(majorVersion)<<16|uint32(minorVersion))
	}
	gvar := &GvarTable{
		AxisCount: int(r.ReadUint16()),
	}
	if gvar.AxisCount != axisCount {
		return nil, fmt.Errorf("gvar: axisCount %d does not match fvar axis count %d", gvar.AxisCount, axisCount)
	}
	sharedTupleCount := int64(r.ReadUint16())
	sharedTuplesOffset := int64(r.ReadUint32())
	glyphCount := int(r.ReadUint16())
	flags := r.ReadUint16()
	dataArrayOffset := int64(r.ReadUint32())
	gvar.LongOffsets = flags&gvarLongOffsets != 0
	if len(pointCounts) < glyphCount {
		return nil, fmt.Errorf("gvar: glyphCount %d exceeds number of glyphs %d", glyphCount, len(pointCounts))
	}

	offsetSize := int64(2)
	if gvar.LongOffsets {
		offsetSize = 4
	}
	if r.Len() < offsetSize*int64(glyphCount+1) {
		return nil, errTruncated("gvar", "glyphVariationDataOffsets", 20, offsetSize*int64(glyphCount+1), r.Len())
	}
	offsets := make([]int64, glyphCount+1)
	for i := range offsets {
		if gvar.LongOffsets {
			offsets[i] = int64(r.ReadUint32())
		} else {
			offsets[i] = 2 * int64(r.ReadUint16())
		}
	}

	tupleSize := 2 * int64(gvar.AxisCount)
	if int64(len(b)) < sharedTuplesOffset || int64(len(b))-sharedTuplesOffset < sharedTupleCount*tupleSize {
		return nil, errTruncated("gvar", "sharedTuples", sharedTuplesOffset, sharedTupleCount*tupleSize, int64(len(b))-sharedTuplesOffset)
	}
	gvar.SharedTuples = make([][]F2Dot14, sharedTupleCount)
	for i := range gvar.SharedTuples {
		gvar.SharedTuples[i] = readTuple(b[sharedTuplesOffset+int64(i)*tupleSize:], gvar.AxisCount)
	}

	gvar.Glyphs = make([]*GlyphVariations, glyphCount)
	for i := range gvar.Glyphs {
		start, end := dataArrayOffset+offsets[i], dataArrayOffset+offsets[i+1]
		if end < start || int64(len(b)) < end {
			return nil, fmt.Errorf("gvar: bad glyphVariationDataOffsets for glyphID %v", i)
		} else if start == end {
			continue
		}
		glyph, err := gvar.parseGlyphVariations(b[start:end], pointCounts[i])
		if err != nil {
			return nil, fmt.Errorf("gvar: glyphID %v: %w", i, err)
		}
		gvar.Glyphs[i] = glyph
	}
	return gvar, nil
}

func readTuple(b []byte, axisCount int) []F2Dot14 {
	tuple := make([]F2Dot14, axisCount)
	for i := range tuple {
		tuple[i] = F2Dot14(binary.BigEndian.Uint16(b[2*i:]))
	}
	return tuple
}

func (gvar *GvarTable) parseGlyphVariations(b []byte, numPoints int) (*GlyphVariations, error) {
	if len(b) < 4 {
		return nil, errTruncated("gvar", "GlyphVariationData", 0, 4, int64(len(b)))
	}
	r := parse.NewBinaryReaderBytes(b)
	tupleVariationCount := r.ReadUint16()
	dataOffset := int(r.ReadUint16())
	if len(b) < dataOffset {
		return nil, errTruncated("gvar", "serializedData", int64(dataOffset), 0, int64(len(b)))
	}
	data := b[dataOffset:]

	var sharedPoints []uint16
	if tupleVariationCount&sharedPointNumbers != 0 {
		var n int
		var err error
		if sharedPoints, n, err = parsePackedPoints(data); err != nil {
			return nil, err
		}
		data = data[n:]
	}

	tupleSize := 2 * int64(gvar.AxisCount)
	glyph := &GlyphVariations{
		Tuples: make([]TupleVariation, tupleVariationCount&tupleCountMask),
	}
	for i := range glyph.Tuples {
		tv := &glyph.Tuples[i]
		if r.Len() < 4 {
			return nil, errTruncated("gvar", "TupleVariationHeader", r.Pos(), 4, r.Len())
		}
		variationDataSize := int(r.ReadUint16())
		tupleIndex := r.ReadUint16()
		if tupleIndex&embeddedPeakTuple != 0 {
			if r.Len() < tupleSize {
				return nil, errTruncated("gvar", "peakTuple", r.Pos(), tupleSize, r.Len())
			}
			tv.Peak = readTuple(r.ReadBytes(tupleSize), gvar.AxisCount)
		} else if index := int(tupleIndex & tupleIndexMask); index < len(gvar.SharedTuples) {
			tv.Peak = slices.Clone(gvar.SharedTuples[index])
		} else {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "tupleIndex", Expected: int64(len(gvar.SharedTuples)), Actual: int64(index)}
		}
		if tupleIndex&intermediateRegion != 0 {
			if r.Len() < 2*tupleSize {
				return nil, errTruncated("gvar", "intermediateTuples", r.Pos(), 2*tupleSize, r.Len())
			}
			tv.Start = readTuple(r.ReadBytes(tupleSize), gvar.AxisCount)
			tv.End = readTuple(r.ReadBytes(tupleSize), gvar.AxisCount)
		} else {
			tv.Start = make([]F2Dot14, gvar.AxisCount)
			tv.End = make([]F2Dot14, gvar.AxisCount)
			for j, peak := range tv.Peak {
				tv.Start[j], tv.End[j] = min(peak, 0), max(peak, 0)
			}
		}

		if len(data) < variationDataSize {
			return nil, errTruncated("gvar", "serializedData", 0, int64(variationDataSize), int64(len(data)))
		}
		tupleData := data[:variationDataSize]
		data = data[variationDataSize:]

		tv.Points = sharedPoints
		if tupleIndex&privatePointNumbers != 0 {
			var n int
			var err error
			if tv.Points, n, err = parsePackedPoints(tupleData); err != nil {
				return nil, err
			}
			tupleData = tupleData[n:]
		}
		count := numPoints
		if tv.Points != nil {
			count = len(tv.Points)
			if numPoints <= int(tv.Points[len(tv.Points)-1]) {
				return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "pointNumbers", Expected: int64(numPoints), Actual: int64(tv.Points[len(tv.Points)-1])}
			}
		}
		var err error
		var n int
		if tv.X, n, err = parsePackedDeltas(tupleData, count); err != nil {
			return nil, err
		} else if tv.Y, _, err = parsePackedDeltas(tupleData[n:], count); err != nil {
			return nil, err
		}
	}
	return glyph, nil
}

// Marshal encodes the gvar table. Glyph data offsets are 16-bit when all glyph data fits in 131070 bytes, and 32-bit otherwise.
func (gvar *GvarTable) Marshal() ([]byte, error) {
	if 0xFFFF < len(gvar.Glyphs) {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "glyphCount", Expected: 0xFFFF, Actual: int64(len(gvar.Glyphs))}
	} else if tupleIndexMask < len(gvar.SharedTuples) {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "sharedTupleCount", Expected: tupleIndexMask, Actual: int64(len(gvar.SharedTuples))}
	}
	for _, tuple := range gvar.SharedTuples {
		if len(tuple) != gvar.AxisCount {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "sharedTuples", Expected: int64(gvar.AxisCount), Actual: int64(len(tuple))}
		}
	}

	shared := make(map[string]int, len(gvar.SharedTuples))
	for i, tuple := range gvar.SharedTuples {
		if _, ok := shared[tupleKey(tuple)]; !ok {
			shared[tupleKey(tuple)] = i
		}
	}

	datas := make([][]byte, len(gvar.Glyphs))
	size := 0
	for i, glyph := range gvar.Glyphs {
		data, err := gvar.marshalGlyphVariations(glyph, shared)
		if err != nil {
			return nil, fmt.Errorf("gvar: glyphID %v: %w", i, err)
		}
		datas[i] = data
		size += len(data) + len(data)%2
	}
	gvar.LongOffsets = maxShortGvarDataBytes < size

	offsetSize := 2
	if gvar.LongOffsets {
		offsetSize = 4
	}
	sharedTuplesOffset := 20 + offsetSize*(len(gvar.Glyphs)+1)
	dataArrayOffset := sharedTuplesOffset + 2*gvar.AxisCount*len(gvar.SharedTuples)

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint16(uint16(gvar.AxisCount))
	w.WriteUint16(uint16(len(gvar.SharedTuples)))
	w.WriteUint32(uint32(sharedTuplesOffset))
	w.WriteUint16(uint16(len(gvar.Glyphs)))
	if gvar.LongOffsets {
		w.WriteUint16(gvarLongOffsets)
	} else {
		w.WriteUint16(0)
	}
	w.WriteUint32(uint32(dataArrayOffset))

	offset := 0
	writeOffset := func() {
		if gvar.LongOffsets {
			w.WriteUint32(uint32(offset))
		} else {
			w.WriteUint16(uint16(offset / 2))
		}
	}
	for _, data := range datas {
		writeOffset()
		offset += len(data)
		if !gvar.LongOffsets {
			offset += len(data) % 2
		}
	}
	writeOffset()

	for _, tuple := range gvar.SharedTuples {
		for _, v := range tuple {
			w.WriteInt16(int16(v))
		}
	}
	for _, data := range datas {
		w.WriteBytes(data)
		if !gvar.LongOffsets && len(data)%2 == 1 {
			w.WriteUint8(0)
		}
	}
	return w.Bytes(), nil
}

func tupleKey(tuple []F2Dot14) string {
	b := make([]byte, 0, 2*len(tuple))
	for _, v := range tuple {
		b = Append(b, v)
	}
	return string(b)
}

func pointsKey(points []uint16) string {
	return string(appendPackedPoints(nil, points))
}

// marshalGlyphVariations encodes the GlyphVariationData of a glyph.
func (gvar *GvarTable) marshalGlyphVariations(glyph *GlyphVariations, shared map[string]int) ([]byte, error) {
	if glyph == nil || len(glyph.Tuples) == 0 {
		return nil, nil
	} else if tupleCountMask < len(glyph.Tuples) {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "tupleVariationCount", Expected: tupleCountMask, Actual: int64(len(glyph.Tuples))}
	}

	// shared point numbers replace the private point numbers of every tuple using them
	counts := map[string]int{}
	for _, tv := range glyph.Tuples {
		counts[pointsKey(tv.Points)]++
	}
	var sharedPoints []uint16
	sharedKey, best := "", 0
	for _, tv := range glyph.Tuples {
		key := pointsKey(tv.Points)
		if saving := (counts[key] - 1) * len(key); best < saving {
			sharedKey, sharedPoints, best = key, tv.Points, saving
		}
	}
	useShared := 0 < best

	var headers, data []byte
	for i, tv := range glyph.Tuples {
		if len(tv.Peak) != gvar.AxisCount || len(tv.Start) != gvar.AxisCount || len(tv.End) != gvar.AxisCount {
			return nil, fmt.Errorf("tuple %d: expected %d axes", i, gvar.AxisCount)
		} else if tv.Points != nil && (len(tv.X) != len(tv.Points) || len(tv.Y) != len(tv.Points)) || len(tv.X) != len(tv.Y) {
			return nil, fmt.Errorf("tuple %d: number of deltas does not match number of points", i)
		} else if tv.Points != nil && len(tv.Points) == 0 {
			return nil, fmt.Errorf("tuple %d: no points", i)
		}

		tupleIndex := uint16(0)
		index, ok := shared[tupleKey(tv.Peak)]
		if ok {
			tupleIndex = uint16(index)
		} else {
			tupleIndex = embeddedPeakTuple
		}
		implied := tv.impliedBounds()
		if !implied {
			tupleIndex |= intermediateRegion
		}

		start := len(data)
		if !useShared || pointsKey(tv.Points) != sharedKey {
			tupleIndex |= privatePointNumbers
			data = appendPackedPoints(data, tv.Points)
		}
		data = appendPackedDeltas(data, tv.X)
		data = appendPackedDeltas(data, tv.Y)
		if 0xFFFF < len(data)-start {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "gvar", Field: "variationDataSize", Expected: 0xFFFF, Actual: int64(len(data) - start)}
		}

		headers = Append(headers, uint16(len(data)-start))
		headers = Append(headers, tupleIndex)
		if !ok {
			for _, v := range tv.Peak {
				headers = Append(headers, v)
			}
		}
		if !implied {
			for _, v := range tv.Start {
				headers = Append(headers, v)
			}
			for _, v := range tv.End {
				headers = Append(headers, v)
			}
		}
	}

	tupleVariationCount := uint16(len(glyph.Tuples))
	var sharedData []byte
	if useShared {
		tupleVariationCount |= sharedPointNumbers
		sharedData = appendPackedPoints(nil, sharedPoints)
	}
	dataOffset := 4 + len(headers)
	if 0xFFFF < dataOffset {
		return nil, &CodecError{Err: ErrOffsetOverflow, Table: "gvar", Field: "dataOffset", Expected: 0xFFFF, Actual: int64(dataOffset)}
	}

	b := make([]byte, 0, dataOffset+len(sharedData)+len(data))
	b = Append(b, tupleVariationCount)
	b = Append(b, uint16(dataOffset))
	b = append(b, headers...)
	b = append(b, sharedData...)
	b = append(b, data...)
	return b, nil
}
