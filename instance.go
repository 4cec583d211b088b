package varfont

import (
	"fmt"
	"math"
)

// variationPoints returns the points of a glyph as they are addressed by glyph variations, and the last point index of each contour. A simple glyph has its outline points, a composite glyph the offset of each component. The four phantom points follow. Component offsets and phantom points are single-point contours.
func (f *Font) variationPoints(glyphID int) ([]vec2, []int, error) {
	glyf, hmtx, hhea := f.Glyf(), f.Hmtx(), f.Hhea()
	if glyf == nil || hmtx == nil || hhea == nil {
		return nil, nil, fmt.Errorf("glyf, hmtx and hhea tables are required")
	} else if glyphID < 0 || len(glyf.Glyphs) <= glyphID {
		return nil, nil, fmt.Errorf("glyf: bad glyphID %v", glyphID)
	}

	var coords []vec2
	var endPoints []int
	g := glyf.Glyphs[glyphID]
	if g.IsComposite() {
		for i, component := range g.Components {
			var offset vec2
			if component.Flags&ArgsAreXYValues != 0 {
				offset = vec2{float64(component.Arg1), float64(component.Arg2)}
			}
			coords = append(coords, offset)
			endPoints = append(endPoints, i)
		}
	} else if g != nil {
		for _, p := range g.Points {
			coords = append(coords, vec2{float64(p.X), float64(p.Y)})
		}
		for _, end := range g.EndPoints {
			endPoints = append(endPoints, int(end))
		}
	}

	var xMin float64
	if g != nil {
		xMin = float64(g.XMin)
	}
	left := xMin - float64(hmtx.LeftSideBearing(uint16(glyphID)))
	right := left + float64(hmtx.Advance(uint16(glyphID)))
	coords = append(coords,
		vec2{left, 0},
		vec2{right, 0},
		vec2{0, float64(hhea.Ascender)},
		vec2{0, float64(hhea.Descender)},
	)
	for i := len(coords) - 4; i < len(coords); i++ {
		endPoints = append(endPoints, i)
	}
	return coords, endPoints, nil
}

// NormalizedCoords returns the normalized coordinates of a user location for the axes of the fvar table, with the avar mapping applied. Axes missing from the location are at their default.
func (f *Font) NormalizedCoords(loc Location) ([]float64, error) {
	fvar := f.Fvar()
	if fvar == nil {
		return nil, fmt.Errorf("fvar: missing table")
	}
	avar := f.Avar()
	if avar != nil && len(avar.SegmentMaps) != len(fvar.Axes) {
		return nil, fmt.Errorf("avar: axisCount %d does not match fvar axis count %d", len(avar.SegmentMaps), len(fvar.Axes))
	}

	found := 0
	coords := make([]float64, len(fvar.Axes))
	for i, axis := range fvar.Axes {
		v, ok := loc[axis.Tag]
		if !ok {
			continue
		}
		found++
		lower, dflt, upper := axis.Min.Float(), axis.Default.Float(), axis.Max.Float()
		if v < lower || upper < v {
			return nil, fmt.Errorf("axis %v: coordinate %v outside [%v,%v]: %w", axis.Tag, v, lower, upper, ErrOutOfRange)
		}
		coords[i] = normalizeValue(v, lower, dflt, upper)
		if avar != nil {
			coords[i] = roundF2Dot14(avar.SegmentMaps[i].Map(coords[i]))
		}
	}
	if found != len(loc) {
		for tag := range loc {
			if fvar.axisIndex(tag) == -1 {
				return nil, fmt.Errorf("axis %v: %w", tag, ErrAxisNotFound)
			}
		}
	}
	return coords, nil
}

func (fvar *FvarTable) axisIndex(tag Tag) int {
	for i, axis := range fvar.Axes {
		if axis.Tag == tag {
			return i
		}
	}
	return -1
}

func (tv *TupleVariation) region() Region {
	r := make(Region, len(tv.Peak))
	for i := range r {
		r[i] = Tent{tv.Start[i].Float(), tv.Peak[i].Float(), tv.End[i].Float()}
	}
	return r
}

// GlyphPoints returns the points of a glyph at the normalized coordinates, followed by the four phantom points. For a composite glyph the points are the component offsets.
func (f *Font) GlyphPoints(glyphID int, coords []float64) ([]Point, error) {
	base, endPoints, err := f.variationPoints(glyphID)
	if err != nil {
		return nil, err
	}

	points := append([]vec2{}, base...)
	if gvar := f.Gvar(); gvar != nil && glyphID < len(gvar.Glyphs) && gvar.Glyphs[glyphID] != nil {
		for _, tv := range gvar.Glyphs[glyphID].Tuples {
			scalar := tv.region().Scalar(coords)
			if scalar == 0 {
				continue
			}
			deltas := iupInfer(tv.Points, tv.X, tv.Y, base, endPoints)
			for i, d := range deltas {
				points[i].X += scalar * d.X
				points[i].Y += scalar * d.Y
			}
		}
	}

	var onCurve []Point
	if g := f.Glyf().Glyphs[glyphID]; !g.IsComposite() && g != nil {
		onCurve = g.Points
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: int16(math.Round(p.X)), Y: int16(math.Round(p.Y))}
		if i < len(onCurve) {
			out[i].OnCurve = onCurve[i].OnCurve
		}
	}
	return out, nil
}

// AdvanceWidth returns the advance width of a glyph at the normalized coordinates, from the HVAR table or otherwise from the phantom points.
func (f *Font) AdvanceWidth(glyphID int, coords []float64) (float64, error) {
	hmtx := f.Hmtx()
	if hmtx == nil {
		return 0, fmt.Errorf("hmtx: missing table")
	}
	advance := float64(hmtx.Advance(uint16(glyphID)))
	if hvar := f.Hvar(); hvar != nil {
		delta, err := hvar.AdvanceDelta(glyphID, coords)
		if err != nil {
			return 0, err
		}
		return advance + delta, nil
	} else if f.Gvar() == nil {
		return advance, nil
	}
	points, err := f.GlyphPoints(glyphID, coords)
	if err != nil {
		return 0, err
	}
	n := len(points)
	return float64(points[n-3].X - points[n-4].X), nil
}
