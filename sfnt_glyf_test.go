package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestGlyphSimple(t *testing.T) {
	g := &Glyph{
		EndPoints:    []uint16{2},
		Points:       []Point{{0, 0, true}, {100, 0, true}, {50, -300, false}},
		Instructions: []byte{0xB0, 0x01},
	}
	g.CalcBounds()
	test.T(t, [4]int16{g.XMin, g.YMin, g.XMax, g.YMax}, [4]int16{0, -300, 100, 0})

	b, err := g.marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0x00, 0x01, 0x00, 0x00, 0xFE, 0xD4, 0x00, 0x64, 0x00, 0x00,
		0x00, 0x02,
		0x00, 0x02, 0xB0, 0x01,
		0x31, 0x33, 0x02, // flags
		0x64, 0x32,       // x
		0xFE, 0xD4,       // y
	})

	g2, err := parseGlyph(b, 1)
	test.Error(t, err)
	test.T(t, g2, g)

	g.Overlap = true
	b, err = g.marshal()
	test.Error(t, err)
	test.T(t, b[16], byte(0x71))
	g2, err = parseGlyph(b, 1)
	test.Error(t, err)
	test.That(t, g2.Overlap)
}

func TestGlyphRepeatFlags(t *testing.T) {
	g := &Glyph{
		EndPoints:    []uint16{1, 3},
		Points:       make([]Point, 4),
		Instructions: []byte{},
	}
	b, err := g.marshal()
	test.Error(t, err)
	test.Bytes(t, b[10:], []byte{0x00, 0x01, 0x00, 0x03, 0x00, 0x00, 0x38, 0x03})

	g2, err := parseGlyph(b, 1)
	test.Error(t, err)
	test.T(t, g2.EndPoints, g.EndPoints)
	test.T(t, g2.Points, g.Points)
	test.T(t, len(g2.Instructions), 0)
}

func TestGlyphComposite(t *testing.T) {
	g := &Glyph{
		XMax: 400,
		YMax: 500,
		Components: []Component{
			{GlyphID: 1, Flags: ArgsAreXYValues | RoundXYToGrid | OverlapCompound, Arg1: 10, Arg2: -20},
			{GlyphID: 2, Flags: ArgsAreXYValues, Arg1: 300, Arg2: 0, Transform: []F2Dot14{0x2000}},
		},
		Instructions: []byte{0x01},
		Overlap:      true,
	}
	test.That(t, g.IsComposite())
	test.T(t, g.NumPoints(), 2)

	b, err := g.marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x01, 0x90, 0x01, 0xF4,
		0x04, 0x26, 0x00, 0x01, 0x0A, 0xEC,
		0x01, 0x0B, 0x00, 0x02, 0x01, 0x2C, 0x00, 0x00, 0x20, 0x00,
		0x00, 0x01, 0x01,
	})

	g2, err := parseGlyph(b, 3)
	test.Error(t, err)
	test.T(t, g2, g)

	g.Components[1].Transform = []F2Dot14{1, 2, 3}
	_, err = g.marshal()
	test.That(t, err != nil, "bad transform")
}

func TestGlyphErrors(t *testing.T) {
	g, err := parseGlyph(nil, 0)
	test.Error(t, err)
	test.That(t, g == nil, "empty glyph")
	b, err := g.marshal()
	test.Error(t, err)
	test.T(t, len(b), 0)

	_, err = (&Glyph{EndPoints: []uint16{3}, Points: make([]Point, 2)}).marshal()
	test.That(t, err != nil, "end points do not match points")

	b, err = (&Glyph{EndPoints: []uint16{0, 1}, Points: make([]Point, 2)}).marshal()
	test.Error(t, err)
	for _, n := range []int{5, 11, 16, 17} {
		_, err = parseGlyph(b[:n], 0)
		test.That(t, errors.Is(err, ErrTruncatedData), n, err)
	}
	b[13] = 0x00 // second end point before the first
	_, err = parseGlyph(b, 0)
	test.That(t, err != nil, "bad end points")

	_, err = parseGlyph([]byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x01, 0x00}, 0)
	test.That(t, errors.Is(err, ErrTruncatedData), err)
}

func TestGlyfResolve(t *testing.T) {
	glyf := &GlyfTable{Glyphs: []*Glyph{
		nil,
		{EndPoints: []uint16{2}, Points: []Point{{0, 0, true}, {100, 0, true}, {100, 100, false}}},
		{Components: []Component{{GlyphID: 1, Flags: ArgsAreXYValues, Arg1: 10, Arg2: -20, Transform: []F2Dot14{0x2000}}}},
		{Components: []Component{
			{GlyphID: 1, Flags: ArgsAreXYValues},
			{GlyphID: 1, Arg1: 1, Arg2: 0}, // match the second point
		}},
		{Components: []Component{{GlyphID: 4, Flags: ArgsAreXYValues}}},
		{Components: []Component{{GlyphID: 2, Flags: ArgsAreXYValues, Arg1: 1, Arg2: 1}}},
	}}
	test.T(t, glyf.GlyphCount(), 6)
	test.T(t, glyf.pointCounts(), []int{4, 7, 5, 6, 5, 5})

	points, depth, err := glyf.resolve(2, 0)
	test.Error(t, err)
	test.T(t, depth, 1)
	test.T(t, points, []Point{{10, -20, true}, {60, -20, true}, {60, 30, false}})

	points, _, err = glyf.resolve(3, 0)
	test.Error(t, err)
	test.T(t, points[3:], []Point{{100, 0, true}, {200, 0, true}, {200, 100, false}})

	points, depth, err = glyf.resolve(5, 0)
	test.Error(t, err)
	test.T(t, depth, 2)
	test.T(t, points[0], Point{11, -19, true})

	points, _, err = glyf.resolve(0, 0)
	test.Error(t, err)
	test.T(t, len(points), 0)

	_, _, err = glyf.resolve(4, 0)
	test.That(t, err != nil, "cyclic components")
	_, _, err = glyf.resolve(6, 0)
	test.That(t, err != nil, "glyph out of range")
}

func TestLoca(t *testing.T) {
	loca := &LocaTable{Offsets: []uint32{0, 4, 4, 10}}
	test.T(t, loca.GlyphCount(), 3)
	b, err := loca.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x02, 0x00, 0x05})

	loca2, err := parseLoca(b, 0, 3)
	test.Error(t, err)
	test.T(t, loca2, loca)

	loca.Long = true
	b, err = loca.Marshal()
	test.Error(t, err)
	test.T(t, len(b), 16)
	loca2, err = parseLoca(b, 1, 3)
	test.Error(t, err)
	test.T(t, loca2, loca)
	_, err = parseLoca(b[:15], 1, 3)
	test.That(t, errors.Is(err, ErrTruncatedData), err)

	_, err = (&LocaTable{Offsets: []uint32{0, 3}}).Marshal()
	test.That(t, errors.Is(err, ErrOffsetOverflow), err)
	_, err = (&LocaTable{Offsets: []uint32{0, 0x20000}}).Marshal()
	test.That(t, errors.Is(err, ErrOffsetOverflow), err)
}

func TestGlyfEncode(t *testing.T) {
	glyf := &GlyfTable{Glyphs: []*Glyph{
		nil,
		{EndPoints: []uint16{0}, Points: []Point{{1, 1, true}}, Instructions: []byte{}},
	}}
	b, offsets, err := glyf.encode()
	test.Error(t, err)
	test.T(t, offsets, []uint32{0, 0, 18})
	test.T(t, len(b), 18) // padded
	test.Bytes(t, b[14:17], []byte{0x37, 0x01, 0x01})

	glyf2, err := parseGlyf(b, &LocaTable{Offsets: offsets})
	test.Error(t, err)
	test.That(t, glyf2.Glyphs[0] == nil, "empty glyph")
	test.T(t, glyf2.Glyphs[1].Points, glyf.Glyphs[1].Points)

	_, err = parseGlyf(b, &LocaTable{Offsets: []uint32{0, 20}})
	test.That(t, err != nil, "offset past the end")
}
