package varfont

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sort"
)

// RegionAxisCoordinates is the tent of a region on one axis.
type RegionAxisCoordinates struct {
	StartCoord F2Dot14
	PeakCoord  F2Dot14
	EndCoord   F2Dot14
}

// VariationRegion has the coordinates of every axis.
type VariationRegion struct {
	RegionAxes []RegionAxisCoordinates `count:"AxisCount"`
}

// VariationRegionList holds the regions referenced by an ItemVariationStore.
type VariationRegionList struct {
	AxisCount        uint16
	RegionCount      uint16
	VariationRegions []VariationRegion `count:"RegionCount"`
}

// ItemVariationStore holds delta sets for items such as metrics, organized in outer (ItemVariationData) and inner (row) indices.
type ItemVariationStore struct {
	Format                 uint16
	VariationRegionList    *VariationRegionList `offset:"32"`
	ItemVariationDataCount uint16
	ItemVariationData      []*ItemVariationData `count:"ItemVariationDataCount" offset:"32"`
}

// Delta returns the interpolated delta of an item at the normalized coordinates.
func (store *ItemVariationStore) Delta(outer, inner int, coords []float64) (float64, error) {
	if len(store.ItemVariationData) <= outer || store.ItemVariationData[outer] == nil {
		return 0, &CodecError{Err: ErrOutOfRange, Table: "ItemVariationStore", Field: "outer", Expected: int64(len(store.ItemVariationData)), Actual: int64(outer)}
	}
	data := store.ItemVariationData[outer]
	if len(data.DeltaSets) <= inner {
		return 0, &CodecError{Err: ErrOutOfRange, Table: "ItemVariationData", Field: "inner", Expected: int64(len(data.DeltaSets)), Actual: int64(inner)}
	}

	delta := 0.0
	for j, regionIndex := range data.RegionIndexes {
		if store.VariationRegionList == nil || len(store.VariationRegionList.VariationRegions) <= int(regionIndex) {
			return 0, &CodecError{Err: ErrOutOfRange, Table: "ItemVariationData", Field: "regionIndexes", Expected: 0, Actual: int64(regionIndex)}
		}
		region := store.VariationRegionList.VariationRegions[regionIndex]
		delta += region.scalar(coords) * float64(data.DeltaSets[inner][j])
	}
	return delta, nil
}

func (region VariationRegion) scalar(coords []float64) float64 {
	r := make(Region, len(region.RegionAxes))
	for i, axis := range region.RegionAxes {
		r[i] = Tent{axis.StartCoord.Float(), axis.PeakCoord.Float(), axis.EndCoord.Float()}
	}
	return r.Scalar(coords)
}

////////////////////////////////////////////////////////////////

// item variation data flags
const (
	longWords      = 0x8000
	wordCountMask  = 0x7FFF
	innerIndexMask = 0x0F
	mapEntrySize   = 0x30
)

// ItemVariationData holds rows of deltas, one column per referenced region. It is encoded with the columns that need the widest values first.
type ItemVariationData struct {
	RegionIndexes []uint16
	DeltaSets     [][]int32
}

func (data *ItemVariationData) decodeLayout(b []byte, pos int) (int, error) {
	if len(b)-pos < 6 || pos < 0 {
		return 0, errTruncated("ItemVariationData", "", int64(pos), 6, int64(max(len(b)-pos, 0)))
	}
	itemCount := int(binary.BigEndian.Uint16(b[pos:]))
	wordDeltaCount := int(binary.BigEndian.Uint16(b[pos+2:]))
	regionIndexCount := int(binary.BigEndian.Uint16(b[pos+4:]))
	long := wordDeltaCount&longWords != 0
	wordCount := wordDeltaCount & wordCountMask
	if regionIndexCount < wordCount {
		return 0, &CodecError{Err: ErrOutOfRange, Table: "ItemVariationData", Field: "wordDeltaCount", Expected: int64(regionIndexCount), Actual: int64(wordCount)}
	}

	wordSize, narrowSize := 2, 1
	if long {
		wordSize, narrowSize = 4, 2
	}
	rowSize := wordCount*wordSize + (regionIndexCount-wordCount)*narrowSize
	n := 6 + 2*regionIndexCount + itemCount*rowSize
	if len(b)-pos < n {
		return 0, errTruncated("ItemVariationData", "deltaSets", int64(pos), int64(n), int64(len(b)-pos))
	}

	b = b[pos:]
	data.RegionIndexes = make([]uint16, regionIndexCount)
	for i := range data.RegionIndexes {
		data.RegionIndexes[i] = binary.BigEndian.Uint16(b[6+2*i:])
	}
	i := 6 + 2*regionIndexCount
	data.DeltaSets = make([][]int32, itemCount)
	for row := range data.DeltaSets {
		deltas := make([]int32, regionIndexCount)
		for col := range deltas {
			size := narrowSize
			if col < wordCount {
				size = wordSize
			}
			switch size {
			case 1:
				deltas[col] = int32(int8(b[i]))
			case 2:
				deltas[col] = int32(int16(binary.BigEndian.Uint16(b[i:])))
			case 4:
				deltas[col] = int32(binary.BigEndian.Uint32(b[i:]))
			}
			i += size
		}
		data.DeltaSets[row] = deltas
	}
	return n, nil
}

// columnWidth returns 1, 2 or 4 for the bytes needed by a column.
func (data *ItemVariationData) columnWidth(col int) int {
	width := 1
	for _, deltas := range data.DeltaSets {
		if v := deltas[col]; v < math.MinInt16 || math.MaxInt16 < v {
			return 4
		} else if v < math.MinInt8 || math.MaxInt8 < v {
			width = 2
		}
	}
	return width
}

func (data *ItemVariationData) appendLayout(dst []byte) ([]byte, error) {
	numCols := len(data.RegionIndexes)
	if 0xFFFF < len(data.DeltaSets) || wordCountMask < numCols {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "ItemVariationData", Field: "itemCount", Expected: 0xFFFF, Actual: int64(len(data.DeltaSets))}
	}
	for row, deltas := range data.DeltaSets {
		if len(deltas) != numCols {
			return nil, fmt.Errorf("ItemVariationData: row %d has %d deltas for %d regions", row, len(deltas), numCols)
		}
	}

	// wide columns go first
	widths := make([]int, numCols)
	order := make([]int, numCols)
	long := false
	for col := range order {
		order[col] = col
		widths[col] = data.columnWidth(col)
		long = long || widths[col] == 4
	}
	sort.SliceStable(order, func(i, j int) bool { return widths[order[i]] > widths[order[j]] })

	wordSize, narrowSize, wordCount := 2, 1, 0
	if long {
		wordSize, narrowSize = 4, 2
	}
	for _, col := range order {
		if widths[col] == wordSize {
			wordCount++
		}
	}
	wordDeltaCount := uint16(wordCount)
	if long {
		wordDeltaCount |= longWords
	}

	dst = Append(dst, uint16(len(data.DeltaSets)))
	dst = Append(dst, wordDeltaCount)
	dst = Append(dst, uint16(numCols))
	for _, col := range order {
		dst = Append(dst, data.RegionIndexes[col])
	}
	for _, deltas := range data.DeltaSets {
		for i, col := range order {
			size := narrowSize
			if i < wordCount {
				size = wordSize
			}
			switch size {
			case 1:
				dst = append(dst, byte(deltas[col]))
			case 2:
				dst = Append(dst, uint16(deltas[col]))
			case 4:
				dst = Append(dst, uint32(deltas[col]))
			}
		}
	}
	return dst, nil
}

////////////////////////////////////////////////////////////////

// VarIdx addresses a delta set in an ItemVariationStore.
type VarIdx struct {
	Outer, Inner uint16
}

// DeltaSetIndexMap maps items, such as glyph IDs, to delta sets. Items beyond the map use its last entry.
type DeltaSetIndexMap struct {
	Map []VarIdx
}

// Get returns the delta set index of an item.
func (m *DeltaSetIndexMap) Get(i int) VarIdx {
	if len(m.Map) == 0 {
		return VarIdx{0, uint16(i)}
	} else if len(m.Map) <= i {
		return m.Map[len(m.Map)-1]
	}
	return m.Map[i]
}

func (m *DeltaSetIndexMap) decodeLayout(b []byte, pos int) (int, error) {
	if len(b)-pos < 4 || pos < 0 {
		return 0, errTruncated("DeltaSetIndexMap", "", int64(pos), 4, int64(max(len(b)-pos, 0)))
	}
	format, entryFormat := b[pos], b[pos+1]
	var mapCount, n int
	switch format {
	case 0:
		mapCount, n = int(binary.BigEndian.Uint16(b[pos+2:])), 4
	case 1:
		if len(b)-pos < 6 {
			return 0, errTruncated("DeltaSetIndexMap", "mapCount", int64(pos+2), 4, int64(len(b)-pos-2))
		}
		mapCount, n = int(binary.BigEndian.Uint32(b[pos+2:])), 6
	default:
		return 0, errVersion("DeltaSetIndexMap", uint32(format))
	}
	innerBits := int(entryFormat&innerIndexMask) + 1
	entrySize := int(entryFormat&mapEntrySize)>>4 + 1
	if len(b)-pos-n < mapCount*entrySize || mapCount < 0 {
		return 0, errTruncated("DeltaSetIndexMap", "mapData", int64(pos+n), int64(mapCount*entrySize), int64(len(b)-pos-n))
	}

	m.Map = make([]VarIdx, mapCount)
	for i := range m.Map {
		entry := uint32(0)
		for _, c := range b[pos+n : pos+n+entrySize] {
			entry = entry<<8 | uint32(c)
		}
		n += entrySize
		m.Map[i] = VarIdx{uint16(entry >> innerBits), uint16(entry & (1<<innerBits - 1))}
	}
	return n, nil
}

func (m *DeltaSetIndexMap) appendLayout(dst []byte) ([]byte, error) {
	var maxOuter, maxInner uint16
	for _, idx := range m.Map {
		maxOuter = max(maxOuter, idx.Outer)
		maxInner = max(maxInner, idx.Inner)
	}
	innerBits := max(bits.Len16(maxInner), 1)
	entrySize := max((bits.Len16(maxOuter)+innerBits+7)/8, 1)
	entryFormat := byte(entrySize-1)<<4 | byte(innerBits-1)

	if len(m.Map) <= 0xFFFF {
		dst = append(dst, 0, entryFormat)
		dst = Append(dst, uint16(len(m.Map)))
	} else {
		dst = append(dst, 1, entryFormat)
		dst = Append(dst, uint32(len(m.Map)))
	}
	for _, idx := range m.Map {
		entry := uint32(idx.Outer)<<innerBits | uint32(idx.Inner)
		for i := entrySize - 1; 0 <= i; i-- {
			dst = append(dst, byte(entry>>(8*i)))
		}
	}
	return dst, nil
}
