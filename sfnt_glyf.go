package varfont

import (
	"fmt"
	"math"

	"github.com/tdewolff/parse/v2"
)

// MaxComponentDepth is the maximum nesting of composite glyphs.
const MaxComponentDepth = 8

// simple glyph flags
const (
	flagOnCurve       = 0x01
	flagXShort        = 0x02
	flagYShort        = 0x04
	flagRepeat        = 0x08
	flagXSame         = 0x10 // or positive short
	flagYSame         = 0x20 // or positive short
	flagOverlapSimple = 0x40
)

// composite glyph flags
const (
	ArgsAreWords      = 0x0001
	ArgsAreXYValues   = 0x0002
	RoundXYToGrid     = 0x0004
	HaveScale         = 0x0008
	MoreComponents    = 0x0020
	HaveXYScale       = 0x0040
	HaveTwoByTwo      = 0x0080
	HaveInstructions  = 0x0100
	UseMyMetrics      = 0x0200
	OverlapCompound   = 0x0400
	ScaledOffset      = 0x0800
	UnscaledOffset    = 0x1000
	derivedComponents = ArgsAreWords | HaveScale | MoreComponents | HaveXYScale | HaveTwoByTwo | HaveInstructions
)

// Point is an outline point.
type Point struct {
	X, Y    int16
	OnCurve bool
}

// Component is a reference to another glyph in a composite glyph.
type Component struct {
	GlyphID uint16
	Flags   uint16 // ArgsAreXYValues, RoundXYToGrid, UseMyMetrics, OverlapCompound, ScaledOffset, UnscaledOffset

	// Arg1 and Arg2 are the offset when ArgsAreXYValues is set, otherwise the point indices to match.
	Arg1, Arg2 int16

	// Transform is empty, a scale, an x and y scale, or a 2x2 matrix.
	Transform []F2Dot14
}

// Glyph is a TrueType glyph outline. A glyph is either simple, with contours, or composite, with components.
type Glyph struct {
	XMin, YMin, XMax, YMax int16
	EndPoints              []uint16 // last point index of each contour
	Points                 []Point
	Components             []Component
	Instructions           []byte
	Overlap                bool
}

// IsComposite returns true if the glyph is made of components.
func (g *Glyph) IsComposite() bool {
	return g != nil && 0 < len(g.Components)
}

// NumPoints returns the number of points of a simple glyph, or the number of components of a composite glyph.
func (g *Glyph) NumPoints() int {
	if g == nil {
		return 0
	} else if g.IsComposite() {
		return len(g.Components)
	}
	return len(g.Points)
}

// CalcBounds sets the bounding box of a simple glyph from its points.
func (g *Glyph) CalcBounds() {
	g.setBounds(g.Points)
}

func (g *Glyph) setBounds(points []Point) {
	if len(points) == 0 {
		g.XMin, g.YMin, g.XMax, g.YMax = 0, 0, 0, 0
		return
	}
	g.XMin, g.YMin, g.XMax, g.YMax = math.MaxInt16, math.MaxInt16, math.MinInt16, math.MinInt16
	for _, p := range points {
		g.XMin = min(g.XMin, p.X)
		g.YMin = min(g.YMin, p.Y)
		g.XMax = max(g.XMax, p.X)
		g.YMax = max(g.YMax, p.Y)
	}
}

func parseGlyph(b []byte, glyphID int) (*Glyph, error) {
	if len(b) == 0 {
		return nil, nil
	}
	r := parse.NewBinaryReaderBytes(b)
	bad := func(field string, n int64) error {
		return errTruncated("glyf", fmt.Sprintf("glyph %d %s", glyphID, field), r.Pos(), n, r.Len())
	}
	if r.Len() < 10 {
		return nil, bad("header", 10)
	}
	g := &Glyph{}
	numberOfContours := r.ReadInt16()
	g.XMin = r.ReadInt16()
	g.YMin = r.ReadInt16()
	g.XMax = r.ReadInt16()
	g.YMax = r.ReadInt16()
	if numberOfContours < 0 {
		// composite glyph
		var flags uint16
		for {
			if r.Len() < 4 {
				return nil, bad("component", 4)
			}
			flags = r.ReadUint16()
			component := Component{
				GlyphID: r.ReadUint16(),
				Flags:   flags &^ derivedComponents,
			}
			length, _ := glyfCompositeLength(flags)
			if r.Len() < int64(length)-4 {
				return nil, bad("component", int64(length)-4)
			}
			if flags&ArgsAreWords != 0 {
				component.Arg1 = r.ReadInt16()
				component.Arg2 = r.ReadInt16()
			} else if flags&ArgsAreXYValues != 0 {
				component.Arg1 = int16(r.ReadInt8())
				component.Arg2 = int16(r.ReadInt8())
			} else {
				component.Arg1 = int16(r.ReadUint8())
				component.Arg2 = int16(r.ReadUint8())
			}
			n := 0
			if flags&HaveScale != 0 {
				n = 1
			} else if flags&HaveXYScale != 0 {
				n = 2
			} else if flags&HaveTwoByTwo != 0 {
				n = 4
			}
			for i := 0; i < n; i++ {
				component.Transform = append(component.Transform, F2Dot14(r.ReadInt16()))
			}
			g.Components = append(g.Components, component)
			if flags&MoreComponents == 0 {
				break
			}
		}
		if flags&HaveInstructions != 0 {
			if r.Len() < 2 {
				return nil, bad("instructionLength", 2)
			}
			instructionLength := r.ReadUint16()
			if r.Len() < int64(instructionLength) {
				return nil, bad("instructions", int64(instructionLength))
			}
			g.Instructions = r.ReadBytes(int64(instructionLength))
		}
		g.Overlap = len(g.Components) != 0 && g.Components[0].Flags&OverlapCompound != 0
		return g, nil
	}

	// simple glyph
	if r.Len() < 2*int64(numberOfContours)+2 {
		return nil, bad("endPtsOfContours", 2*int64(numberOfContours)+2)
	}
	g.EndPoints = make([]uint16, numberOfContours)
	for i := range g.EndPoints {
		g.EndPoints[i] = r.ReadUint16()
		if 0 < i && g.EndPoints[i] <= g.EndPoints[i-1] {
			return nil, fmt.Errorf("glyf: bad endPtsOfContours for glyphID %v", glyphID)
		}
	}
	instructionLength := r.ReadUint16()
	if r.Len() < int64(instructionLength) {
		return nil, bad("instructions", int64(instructionLength))
	}
	g.Instructions = r.ReadBytes(int64(instructionLength))

	numPoints := 0
	if 0 < numberOfContours {
		numPoints = int(g.EndPoints[numberOfContours-1]) + 1
	}
	flags := make([]byte, numPoints)
	for i := 0; i < numPoints; {
		if r.Len() < 1 {
			return nil, bad("flags", 1)
		}
		flag := r.ReadUint8()
		flags[i] = flag
		i++
		if flag&flagRepeat != 0 {
			if r.Len() < 1 {
				return nil, bad("flags", 1)
			}
			repeats := int(r.ReadUint8())
			if numPoints-i < repeats {
				return nil, fmt.Errorf("glyf: bad flags for glyphID %v", glyphID)
			}
			for j := 0; j < repeats; j++ {
				flags[i] = flag
				i++
			}
		}
	}
	g.Overlap = 0 < numPoints && flags[0]&flagOverlapSimple != 0

	g.Points = make([]Point, numPoints)
	var x, y int16
	for i, flag := range flags {
		if flag&flagXShort != 0 {
			if r.Len() < 1 {
				return nil, bad("xCoordinates", 1)
			} else if flag&flagXSame != 0 {
				x += int16(r.ReadUint8())
			} else {
				x -= int16(r.ReadUint8())
			}
		} else if flag&flagXSame == 0 {
			if r.Len() < 2 {
				return nil, bad("xCoordinates", 2)
			}
			x += r.ReadInt16()
		}
		g.Points[i].X = x
		g.Points[i].OnCurve = flag&flagOnCurve != 0
	}
	for i, flag := range flags {
		if flag&flagYShort != 0 {
			if r.Len() < 1 {
				return nil, bad("yCoordinates", 1)
			} else if flag&flagYSame != 0 {
				y += int16(r.ReadUint8())
			} else {
				y -= int16(r.ReadUint8())
			}
		} else if flag&flagYSame == 0 {
			if r.Len() < 2 {
				return nil, bad("yCoordinates", 2)
			}
			y += r.ReadInt16()
		}
		g.Points[i].Y = y
	}
	return g, nil
}

func glyfCompositeLength(flags uint16) (length uint32, more bool) {
	length = 4 + 2
	if flags&ArgsAreWords != 0 {
		length += 2
	}
	if flags&HaveScale != 0 {
		length += 2
	} else if flags&HaveXYScale != 0 {
		length += 4
	} else if flags&HaveTwoByTwo != 0 {
		length += 8
	}
	more = flags&MoreComponents != 0
	return
}

func (g *Glyph) marshal() ([]byte, error) {
	if g == nil || len(g.Points) == 0 && len(g.Components) == 0 {
		return []byte{}, nil
	}

	w := parse.NewBinaryWriter([]byte{})
	if g.IsComposite() {
		w.WriteInt16(-1)
	} else {
		if 0x7FFF < len(g.EndPoints) {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "glyf", Field: "numberOfContours", Expected: 0x7FFF, Actual: int64(len(g.EndPoints))}
		}
		w.WriteInt16(int16(len(g.EndPoints)))
	}
	w.WriteInt16(g.XMin)
	w.WriteInt16(g.YMin)
	w.WriteInt16(g.XMax)
	w.WriteInt16(g.YMax)
	if 0xFFFF < len(g.Instructions) {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "glyf", Field: "instructionLength", Expected: 0xFFFF, Actual: int64(len(g.Instructions))}
	}

	if g.IsComposite() {
		for i, component := range g.Components {
			flags := component.Flags &^ derivedComponents
			if i == 0 && g.Overlap {
				flags |= OverlapCompound
			}
			if i+1 < len(g.Components) {
				flags |= MoreComponents
			} else if 0 < len(g.Instructions) {
				flags |= HaveInstructions
			}
			switch len(component.Transform) {
			case 0:
			case 1:
				flags |= HaveScale
			case 2:
				flags |= HaveXYScale
			case 4:
				flags |= HaveTwoByTwo
			default:
				return nil, fmt.Errorf("glyf: bad transform for component %d", i)
			}
			words := false
			if flags&ArgsAreXYValues != 0 {
				words = component.Arg1 < math.MinInt8 || math.MaxInt8 < component.Arg1 || component.Arg2 < math.MinInt8 || math.MaxInt8 < component.Arg2
			} else {
				words = 0xFF < uint16(component.Arg1) || 0xFF < uint16(component.Arg2)
			}
			if words {
				flags |= ArgsAreWords
			}

			w.WriteUint16(flags)
			w.WriteUint16(component.GlyphID)
			if words {
				w.WriteInt16(component.Arg1)
				w.WriteInt16(component.Arg2)
			} else {
				w.WriteUint8(uint8(component.Arg1))
				w.WriteUint8(uint8(component.Arg2))
			}
			for _, v := range component.Transform {
				w.WriteInt16(int16(v))
			}
		}
		if 0 < len(g.Instructions) {
			w.WriteUint16(uint16(len(g.Instructions)))
			w.WriteBytes(g.Instructions)
		}
		return w.Bytes(), nil
	}

	if len(g.EndPoints) == 0 || int(g.EndPoints[len(g.EndPoints)-1])+1 != len(g.Points) {
		return nil, fmt.Errorf("glyf: endPtsOfContours does not match the number of points")
	}
	for _, endPoint := range g.EndPoints {
		w.WriteUint16(endPoint)
	}
	w.WriteUint16(uint16(len(g.Instructions)))
	w.WriteBytes(g.Instructions)

	flags := make([]byte, len(g.Points))
	var xs, ys []byte
	var prev Point
	for i, p := range g.Points {
		if p.OnCurve {
			flags[i] |= flagOnCurve
		}
		dx, dy := int(p.X)-int(prev.X), int(p.Y)-int(prev.Y)
		if dx == 0 {
			flags[i] |= flagXSame
		} else if -0xFF <= dx && dx <= 0xFF {
			flags[i] |= flagXShort
			if 0 < dx {
				flags[i] |= flagXSame
			} else {
				dx = -dx
			}
			xs = append(xs, byte(dx))
		} else {
			xs = append(xs, byte(uint16(dx)>>8), byte(dx))
		}
		if dy == 0 {
			flags[i] |= flagYSame
		} else if -0xFF <= dy && dy <= 0xFF {
			flags[i] |= flagYShort
			if 0 < dy {
				flags[i] |= flagYSame
			} else {
				dy = -dy
			}
			ys = append(ys, byte(dy))
		} else {
			ys = append(ys, byte(uint16(dy)>>8), byte(dy))
		}
		prev = p
	}
	if g.Overlap {
		flags[0] |= flagOverlapSimple
	}

	for i := 0; i < len(flags); {
		repeats := 0
		for i+repeats+1 < len(flags) && flags[i+repeats+1] == flags[i] && repeats < 0xFF {
			repeats++
		}
		if 1 < repeats {
			w.WriteUint8(flags[i] | flagRepeat)
			w.WriteUint8(uint8(repeats))
			i += repeats + 1
		} else {
			w.WriteUint8(flags[i])
			i++
		}
	}
	w.WriteBytes(xs)
	w.WriteBytes(ys)
	return w.Bytes(), nil
}

////////////////////////////////////////////////////////////////

// GlyfTable holds the glyph outlines. Nil glyphs have no outline.
type GlyfTable struct {
	Glyphs []*Glyph
}

// GlyphCount returns the number of glyphs, or the highest referenced component glyph plus one if that is larger.
func (glyf *GlyfTable) GlyphCount() int {
	n := len(glyf.Glyphs)
	for _, g := range glyf.Glyphs {
		if g == nil {
			continue
		}
		for _, component := range g.Components {
			n = max(n, int(component.GlyphID)+1)
		}
	}
	return n
}

func parseGlyf(b []byte, loca *LocaTable) (*GlyfTable, error) {
	glyf := &GlyfTable{
		Glyphs: make([]*Glyph, loca.GlyphCount()),
	}
	for i := range glyf.Glyphs {
		start, end := loca.Offsets[i], loca.Offsets[i+1]
		if end < start || uint32(len(b)) < end {
			return nil, fmt.Errorf("glyf: bad loca offsets for glyphID %v", i)
		}
		g, err := parseGlyph(b[start:end], i)
		if err != nil {
			return nil, err
		}
		glyf.Glyphs[i] = g
	}
	return glyf, nil
}

// encode returns the glyph data and the loca offsets. Glyphs are padded to an even length.
func (glyf *GlyfTable) encode() ([]byte, []uint32, error) {
	var b []byte
	offsets := make([]uint32, 0, len(glyf.Glyphs)+1)
	for _, g := range glyf.Glyphs {
		offsets = append(offsets, uint32(len(b)))
		data, err := g.marshal()
		if err != nil {
			return nil, nil, err
		}
		b = append(b, data...)
		if len(b)%2 == 1 {
			b = append(b, 0)
		}
	}
	if math.MaxUint32 < uint64(len(b)) {
		return nil, nil, &CodecError{Err: ErrOffsetOverflow, Table: "loca", Expected: math.MaxUint32, Actual: int64(len(b))}
	}
	offsets = append(offsets, uint32(len(b)))
	return b, offsets, nil
}

// Marshal encodes the glyf table.
func (glyf *GlyfTable) Marshal() ([]byte, error) {
	b, _, err := glyf.encode()
	return b, err
}

// pointCounts returns the number of points of each glyph including the four phantom points, as they are addressed by glyph variations.
func (glyf *GlyfTable) pointCounts() []int {
	counts := make([]int, len(glyf.Glyphs))
	for i, g := range glyf.Glyphs {
		counts[i] = g.NumPoints() + 4
	}
	return counts
}

// resolve returns the points of a glyph with its components placed, and the nesting depth of its components.
func (glyf *GlyfTable) resolve(glyphID uint16, depth int) ([]Point, int, error) {
	if MaxComponentDepth < depth {
		return nil, 0, fmt.Errorf("glyf: compound glyphs too deeply nested")
	} else if len(glyf.Glyphs) <= int(glyphID) {
		return nil, 0, fmt.Errorf("glyf: bad glyphID %v", glyphID)
	}
	g := glyf.Glyphs[glyphID]
	if !g.IsComposite() {
		if g == nil {
			return nil, depth, nil
		}
		return g.Points, depth, nil
	}

	var points []Point
	maxDepth := depth
	for _, component := range g.Components {
		sub, subDepth, err := glyf.resolve(component.GlyphID, depth+1)
		if err != nil {
			return nil, 0, err
		}
		maxDepth = max(maxDepth, subDepth)

		xx, xy, yx, yy := 1.0, 0.0, 0.0, 1.0
		switch len(component.Transform) {
		case 1:
			xx, yy = component.Transform[0].Float(), component.Transform[0].Float()
		case 2:
			xx, yy = component.Transform[0].Float(), component.Transform[1].Float()
		case 4:
			xx, xy, yx, yy = component.Transform[0].Float(), component.Transform[1].Float(), component.Transform[2].Float(), component.Transform[3].Float()
		}
		var dx, dy float64
		if component.Flags&ArgsAreXYValues != 0 {
			dx, dy = float64(component.Arg1), float64(component.Arg2)
		} else if int(component.Arg1) < len(points) && int(component.Arg2) < len(sub) {
			// match point Arg1 of the glyph so far with point Arg2 of the component
			p, q := points[component.Arg1], sub[component.Arg2]
			dx = float64(p.X) - (xx*float64(q.X) + yx*float64(q.Y))
			dy = float64(p.Y) - (xy*float64(q.X) + yy*float64(q.Y))
		}
		for _, q := range sub {
			x := xx*float64(q.X) + yx*float64(q.Y) + dx
			y := xy*float64(q.X) + yy*float64(q.Y) + dy
			points = append(points, Point{int16(math.Round(x)), int16(math.Round(y)), q.OnCurve})
		}
	}
	return points, maxDepth, nil
}

////////////////////////////////////////////////////////////////

// LocaTable holds the offsets of the glyphs in the glyf table.
type LocaTable struct {
	Offsets []uint32
	Long    bool
}

// GlyphCount returns the number of glyphs with an offset.
func (loca *LocaTable) GlyphCount() int {
	return max(len(loca.Offsets)-1, 0)
}

func parseLoca(b []byte, indexToLocFormat int16, numGlyphs uint16) (*LocaTable, error) {
	loca := &LocaTable{
		Offsets: make([]uint32, int(numGlyphs)+1),
		Long:    indexToLocFormat != 0,
	}
	r := parse.NewBinaryReaderBytes(b)
	if !loca.Long {
		if r.Len() < 2*int64(numGlyphs+1) {
			return nil, errTruncated("loca", "", 0, 2*int64(numGlyphs)+2, r.Len())
		}
		for i := range loca.Offsets {
			loca.Offsets[i] = 2 * uint32(r.ReadUint16())
		}
	} else {
		if r.Len() < 4*int64(numGlyphs+1) {
			return nil, errTruncated("loca", "", 0, 4*int64(numGlyphs)+4, r.Len())
		}
		for i := range loca.Offsets {
			loca.Offsets[i] = r.ReadUint32()
		}
	}
	return loca, nil
}

// Marshal encodes the loca table.
func (loca *LocaTable) Marshal() ([]byte, error) {
	w := parse.NewBinaryWriter([]byte{})
	for _, offset := range loca.Offsets {
		if loca.Long {
			w.WriteUint32(offset)
		} else if offset%2 != 0 || 0x1FFFE < offset {
			return nil, &CodecError{Err: ErrOffsetOverflow, Table: "loca", Expected: 0x1FFFE, Actual: int64(offset)}
		} else {
			w.WriteUint16(uint16(offset / 2))
		}
	}
	return w.Bytes(), nil
}
