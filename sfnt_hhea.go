package varfont

import (
	"fmt"

	"github.com/tdewolff/parse/v2"
)

// HheaTable is the horizontal header.
type HheaTable struct {
	Ascender            int16
	Descender           int16
	LineGap             int16
	AdvanceWidthMax     uint16
	MinLeftSideBearing  int16
	MinRightSideBearing int16
	XMaxExtent          int16
	CaretSlopeRise      int16
	CaretSlopeRun       int16
	CaretOffset         int16
	MetricDataFormat    int16
	NumberOfHMetrics    uint16 // set by Font.Serialize when the font has an hmtx table
}

func parseHhea(b []byte) (*HheaTable, error) {
	if len(b) != 36 {
		return nil, errTruncated("hhea", "", 0, 36, int64(len(b)))
	}

	hhea := &HheaTable{}
	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return nil, errVersion("hhea", uint32(majorVersion)<<16|uint32(minorVersion))
	}
	hhea.Ascender = r.ReadInt16()
	hhea.Descender = r.ReadInt16()
	hhea.LineGap = r.ReadInt16()
	hhea.AdvanceWidthMax = r.ReadUint16()
	hhea.MinLeftSideBearing = r.ReadInt16()
	hhea.MinRightSideBearing = r.ReadInt16()
	hhea.XMaxExtent = r.ReadInt16()
	hhea.CaretSlopeRise = r.ReadInt16()
	hhea.CaretSlopeRun = r.ReadInt16()
	hhea.CaretOffset = r.ReadInt16()
	_ = r.ReadBytes(8) // reserved
	hhea.MetricDataFormat = r.ReadInt16()
	hhea.NumberOfHMetrics = r.ReadUint16()
	if hhea.NumberOfHMetrics == 0 {
		return nil, fmt.Errorf("hhea: bad numberOfHMetrics")
	}
	return hhea, nil
}

// Marshal encodes the hhea table.
func (hhea *HheaTable) Marshal() ([]byte, error) {
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteInt16(hhea.Ascender)
	w.WriteInt16(hhea.Descender)
	w.WriteInt16(hhea.LineGap)
	w.WriteUint16(hhea.AdvanceWidthMax)
	w.WriteInt16(hhea.MinLeftSideBearing)
	w.WriteInt16(hhea.MinRightSideBearing)
	w.WriteInt16(hhea.XMaxExtent)
	w.WriteInt16(hhea.CaretSlopeRise)
	w.WriteInt16(hhea.CaretSlopeRun)
	w.WriteInt16(hhea.CaretOffset)
	w.WriteBytes(make([]byte, 8)) // reserved
	w.WriteInt16(hhea.MetricDataFormat)
	w.WriteUint16(hhea.NumberOfHMetrics)
	return w.Bytes(), nil
}

////////////////////////////////////////////////////////////////

// LongHorMetric is the advance width and left side bearing of a glyph.
type LongHorMetric struct {
	AdvanceWidth    uint16
	LeftSideBearing int16
}

// HmtxTable holds the horizontal metrics. Glyphs beyond HMetrics share the last advance width.
type HmtxTable struct {
	HMetrics         []LongHorMetric
	LeftSideBearings []int16
}

// LeftSideBearing returns the left side bearing of a glyph.
func (hmtx *HmtxTable) LeftSideBearing(glyphID uint16) int16 {
	if uint16(len(hmtx.HMetrics)) <= glyphID {
		i := int(glyphID) - len(hmtx.HMetrics)
		if len(hmtx.LeftSideBearings) <= i {
			return 0
		}
		return hmtx.LeftSideBearings[i]
	}
	return hmtx.HMetrics[glyphID].LeftSideBearing
}

// Advance returns the advance width of a glyph.
func (hmtx *HmtxTable) Advance(glyphID uint16) uint16 {
	if len(hmtx.HMetrics) == 0 {
		return 0
	} else if uint16(len(hmtx.HMetrics)) <= glyphID {
		glyphID = uint16(len(hmtx.HMetrics)) - 1
	}
	return hmtx.HMetrics[glyphID].AdvanceWidth
}

// GlyphCount returns the number of glyphs with metrics.
func (hmtx *HmtxTable) GlyphCount() int {
	return len(hmtx.HMetrics) + len(hmtx.LeftSideBearings)
}

func parseHmtx(b []byte, numberOfHMetrics, numGlyphs uint16) (*HmtxTable, error) {
	if numGlyphs < numberOfHMetrics {
		return nil, fmt.Errorf("hmtx: numberOfHMetrics exceeds numGlyphs")
	}
	length := 4*int(numberOfHMetrics) + 2*int(numGlyphs-numberOfHMetrics)
	if len(b) < length {
		return nil, errTruncated("hmtx", "", 0, int64(length), int64(len(b)))
	}

	hmtx := &HmtxTable{}
	hmtx.HMetrics = make([]LongHorMetric, numberOfHMetrics)
	hmtx.LeftSideBearings = make([]int16, numGlyphs-numberOfHMetrics)

	r := parse.NewBinaryReaderBytes(b)
	for i := range hmtx.HMetrics {
		hmtx.HMetrics[i].AdvanceWidth = r.ReadUint16()
		hmtx.HMetrics[i].LeftSideBearing = r.ReadInt16()
	}
	for i := range hmtx.LeftSideBearings {
		hmtx.LeftSideBearings[i] = r.ReadInt16()
	}
	return hmtx, nil
}

// Marshal encodes the hmtx table.
func (hmtx *HmtxTable) Marshal() ([]byte, error) {
	if len(hmtx.HMetrics) == 0 {
		return nil, fmt.Errorf("hmtx: no metrics")
	}
	w := parse.NewBinaryWriter([]byte{})
	for _, metric := range hmtx.HMetrics {
		w.WriteUint16(metric.AdvanceWidth)
		w.WriteInt16(metric.LeftSideBearing)
	}
	for _, lsb := range hmtx.LeftSideBearings {
		w.WriteInt16(lsb)
	}
	return w.Bytes(), nil
}

// newHmtx returns the metrics of the given advances and left side bearings, sharing the trailing run of equal advances.
func newHmtx(advances []uint16, lsbs []int16) *HmtxTable {
	n := len(advances)
	for 1 < n && advances[n-1] == advances[n-2] {
		n--
	}
	hmtx := &HmtxTable{
		HMetrics:         make([]LongHorMetric, n),
		LeftSideBearings: append([]int16{}, lsbs[n:]...),
	}
	for i := 0; i < n; i++ {
		hmtx.HMetrics[i] = LongHorMetric{advances[i], lsbs[i]}
	}
	return hmtx
}
