package varfont

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FontInfo is the font-wide data of BuildFont.
type FontInfo struct {
	Family, Style string
	Version       string // such as "1.000"
	UnitsPerEm    uint16

	Ascender, Descender, LineGap int16
	WeightClass, WidthClass      uint16
	Created                      time.Time
}

// BuildFont returns a TrueType font with the given glyphs, which are indexed by glyph ID, and their advance widths. A nil glyph has no outline. Bounding boxes, side bearings and the limits in maxp are computed from the glyphs. Runes maps code points to glyph IDs for the cmap table.
func BuildFont(info FontInfo, glyphOrder []string, glyphs []*Glyph, advances []uint16, runes map[rune]uint16) (*Font, error) {
	if len(glyphOrder) == 0 || 0xFFFF < len(glyphOrder) {
		return nil, fmt.Errorf("bad number of glyphs %d", len(glyphOrder))
	} else if len(glyphs) != len(glyphOrder) || len(advances) != len(glyphOrder) {
		return nil, fmt.Errorf("%d glyphs and %d advances for %d glyph names", len(glyphs), len(advances), len(glyphOrder))
	}
	if info.UnitsPerEm == 0 {
		info.UnitsPerEm = 1000
	}
	if info.WeightClass == 0 {
		info.WeightClass = 400
	}
	if info.WidthClass == 0 {
		info.WidthClass = 5
	}
	if info.Version == "" {
		info.Version = "1.000"
	}

	glyf := &GlyfTable{Glyphs: glyphs}
	maxp := &MaxpTable{Version: MaxpVersion10}
	maxp.MaxZones = 2
	for glyphID, g := range glyphs {
		if g == nil {
			continue
		} else if !g.IsComposite() {
			g.CalcBounds()
			maxp.MaxPoints = max(maxp.MaxPoints, uint16(len(g.Points)))
			maxp.MaxContours = max(maxp.MaxContours, uint16(len(g.EndPoints)))
			continue
		}

		points, depth, err := glyf.resolve(uint16(glyphID), 0)
		if err != nil {
			return nil, err
		}
		g.setBounds(points)
		contours := 0
		for _, component := range g.Components {
			if int(component.GlyphID) < len(glyphs) && glyphs[component.GlyphID] != nil {
				contours += len(glyphs[component.GlyphID].EndPoints)
			}
		}
		maxp.MaxCompositePoints = max(maxp.MaxCompositePoints, uint16(len(points)))
		maxp.MaxCompositeContours = max(maxp.MaxCompositeContours, uint16(contours))
		maxp.MaxComponentElements = max(maxp.MaxComponentElements, uint16(len(g.Components)))
		maxp.MaxComponentDepth = max(maxp.MaxComponentDepth, uint16(depth))
	}

	head := &HeadTable{
		FontRevision:      fontRevision(info.Version),
		UnitsPerEm:        info.UnitsPerEm,
		Created:           info.Created,
		Modified:          info.Created,
		XMin:              math.MaxInt16,
		YMin:              math.MaxInt16,
		XMax:              math.MinInt16,
		YMax:              math.MinInt16,
		LowestRecPPEM:     8,
		FontDirectionHint: 2,
	}
	head.Flags[0] = true // baseline at y=0
	head.Flags[1] = true // left sidebearing point at x=0
	head.Flags[3] = true // integer scaling
	hhea := &HheaTable{
		Ascender:            info.Ascender,
		Descender:           info.Descender,
		LineGap:             info.LineGap,
		MinLeftSideBearing:  math.MaxInt16,
		MinRightSideBearing: math.MaxInt16,
		XMaxExtent:          math.MinInt16,
		CaretSlopeRise:      1,
	}

	lsbs := make([]int16, len(glyphs))
	sumAdvances, numAdvances := 0, 0
	for glyphID, g := range glyphs {
		advance := advances[glyphID]
		hhea.AdvanceWidthMax = max(hhea.AdvanceWidthMax, advance)
		if 0 < advance {
			sumAdvances += int(advance)
			numAdvances++
		}
		if g.NumPoints() == 0 {
			continue
		}
		lsbs[glyphID] = g.XMin
		head.XMin = min(head.XMin, g.XMin)
		head.YMin = min(head.YMin, g.YMin)
		head.XMax = max(head.XMax, g.XMax)
		head.YMax = max(head.YMax, g.YMax)
		hhea.MinLeftSideBearing = min(hhea.MinLeftSideBearing, g.XMin)
		hhea.MinRightSideBearing = min(hhea.MinRightSideBearing, int16(int(advance)-int(g.XMax)))
		hhea.XMaxExtent = max(hhea.XMaxExtent, g.XMax)
	}
	if head.XMax < head.XMin {
		head.XMin, head.YMin, head.XMax, head.YMax = 0, 0, 0, 0
		hhea.MinLeftSideBearing, hhea.MinRightSideBearing, hhea.XMaxExtent = 0, 0, 0
	}

	os2 := &OS2Table{Version: 4}
	if 0 < numAdvances {
		os2.XAvgCharWidth = int16(sumAdvances / numAdvances)
	}
	os2.UsWeightClass = info.WeightClass
	os2.UsWidthClass = info.WidthClass
	unitsPerEm := int(info.UnitsPerEm)
	os2.YSubscriptXSize = int16(unitsPerEm * 65 / 100)
	os2.YSubscriptYSize = int16(unitsPerEm * 60 / 100)
	os2.YSubscriptYOffset = int16(unitsPerEm * 7 / 100)
	os2.YSuperscriptXSize = os2.YSubscriptXSize
	os2.YSuperscriptYSize = os2.YSubscriptYSize
	os2.YSuperscriptYOffset = int16(unitsPerEm * 48 / 100)
	os2.YStrikeoutSize = int16(unitsPerEm * 5 / 100)
	os2.YStrikeoutPosition = int16(unitsPerEm * 25 / 100)
	os2.AchVendID = MustTag("NONE")
	os2.STypoAscender = info.Ascender
	os2.STypoDescender = info.Descender
	os2.STypoLineGap = info.LineGap
	os2.UsWinAscent = uint16(max(head.YMax, info.Ascender, 0))
	os2.UsWinDescent = uint16(max(-int(head.YMin), -int(info.Descender), 0))
	os2.FsSelection = 0x0080 // USE_TYPO_METRICS
	if info.Style == "" || info.Style == "Regular" {
		os2.FsSelection |= 0x0040
	}
	os2.UlCodePageRange[0] = 0x00000001 // Latin 1
	os2.UsBreakChar = ' '

	cmap := &CmapTable{Runes: runes}
	rs := cmap.sortedRunes()
	os2.UlUnicodeRange = os2UnicodeRange(rs)
	if 0 < len(rs) {
		os2.UsFirstCharIndex = uint16(min(rs[0], 0xFFFF))
		os2.UsLastCharIndex = uint16(min(rs[len(rs)-1], 0xFFFF))
	}
	if g := glyphForRune(glyphs, runes, 'x'); g != nil {
		os2.SxHeight = g.YMax
	}
	if g := glyphForRune(glyphs, runes, 'H'); g != nil {
		os2.SCapHeight = g.YMax
	}

	post := &PostTable{
		Version:            PostVersion2,
		UnderlinePosition:  -int16(unitsPerEm / 10),
		UnderlineThickness: int16(unitsPerEm / 20),
		GlyphNames:         glyphOrder,
	}

	style := info.Style
	if style == "" {
		style = "Regular"
	}
	postScriptName := strings.Map(func(r rune) rune {
		if r <= ' ' || 0x7E < r || strings.ContainsRune("[](){}<>/%", r) {
			return -1
		}
		return r
	}, info.Family+"-"+style)
	name := &NameTable{}
	name.Set(NameFontFamily, info.Family)
	name.Set(NameFontSubfamily, style)
	name.Set(NameUniqueIdentifier, info.Version+";"+postScriptName)
	name.Set(NameFull, info.Family+" "+style)
	name.Set(NameVersion, "Version "+info.Version)
	name.Set(NamePostScript, postScriptName)

	f := NewFont(glyphOrder)
	f.InsertTable(MustTag("head"), head)
	f.InsertTable(MustTag("hhea"), hhea)
	f.InsertTable(MustTag("maxp"), maxp)
	f.InsertTable(MustTag("OS/2"), os2)
	f.InsertTable(MustTag("hmtx"), newHmtx(advances, lsbs))
	f.InsertTable(MustTag("cmap"), cmap)
	f.InsertTable(MustTag("glyf"), glyf)
	f.InsertTable(MustTag("loca"), &LocaTable{})
	f.InsertTable(MustTag("name"), name)
	f.InsertTable(MustTag("post"), post)
	tracer().Debugf("build: %s with %d glyphs", postScriptName, len(glyphs))
	return f, nil
}

func glyphForRune(glyphs []*Glyph, runes map[rune]uint16, r rune) *Glyph {
	if glyphID, ok := runes[r]; ok && int(glyphID) < len(glyphs) {
		return glyphs[glyphID]
	}
	return nil
}

// fontRevision parses a version such as "1.000" into a fixed-point number, or returns 1.0.
func fontRevision(version string) Fixed {
	if i := strings.IndexFunc(version, func(r rune) bool { return r != '.' && (r < '0' || '9' < r) }); i != -1 {
		version = version[:i]
	}
	if v, err := strconv.ParseFloat(version, 64); err == nil {
		if revision, err := FixedFromFloat(v); err == nil {
			return revision
		}
	}
	return 1 << 16
}
