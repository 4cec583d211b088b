package varfont

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/font/opentype/tables"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/tdewolff/test"
)

var testGlyphOrder = []string{".notdef", "A", "B"}

// squareFont returns a font with a square glyph A of the given width, and a composite glyph B that places A at an offset of dx.
func squareFont(t *testing.T, width, dx int16) *Font {
	t.Helper()
	glyphs := []*Glyph{
		nil,
		{
			EndPoints: []uint16{3},
			Points: []Point{
				{50, 0, true},
				{50 + width, 0, true},
				{50 + width, 700, true},
				{50, 700, true},
			},
		},
		{
			Components: []Component{{GlyphID: 1, Flags: ArgsAreXYValues, Arg1: dx}},
		},
	}
	advances := []uint16{500, uint16(width + 100), uint16(width + dx + 100)}
	f, err := BuildFont(FontInfo{
		Family:    "Square",
		Ascender:  800,
		Descender: -200,
	}, testGlyphOrder, glyphs, advances, map[rune]uint16{'A': 1, 'B': 2})
	test.Error(t, err)
	return f
}

func weightWidthDesignspace() *Designspace {
	return &Designspace{
		Axes: []Axis{
			{Tag: MustTag("wght"), Name: "Weight", Min: 400, Default: 400, Max: 900},
			{Tag: MustTag("wdth"), Name: "Width", Min: 75, Default: 100, Max: 100},
		},
		Instances: []Instance{
			{Name: "Regular", Location: Location{MustTag("wght"): 400}},
			{Name: "Bold", PostScriptName: "Square-Bold", Location: Location{MustTag("wght"): 900}},
			{Name: "Condensed", Location: Location{MustTag("wdth"): 75}},
		},
	}
}

func weightWidthMasters(t *testing.T) []Master {
	return []Master{
		{Name: "Regular", Location: Location{MustTag("wght"): 400, MustTag("wdth"): 100}, Font: squareFont(t, 400, 20)},
		{Name: "Bold", Location: Location{MustTag("wght"): 900}, Font: squareFont(t, 600, 40)},
		{Name: "Condensed", Location: Location{MustTag("wdth"): 75}, Font: squareFont(t, 300, 10)},
	}
}

func TestCompileWeightWidth(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "varfont")
	defer teardown()

	f, err := Compile(weightWidthDesignspace(), weightWidthMasters(t), CompileOptions{})
	test.Error(t, err)

	gvar := f.Gvar()
	test.That(t, gvar != nil, "gvar table")
	test.T(t, gvar.AxisCount, 2)
	test.T(t, len(gvar.Glyphs), 3)
	test.That(t, gvar.Glyphs[0] == nil, "notdef has no variations")
	test.T(t, len(gvar.Glyphs[1].Tuples), 2)

	// weight region first, then width region
	wght, wdth := gvar.Glyphs[1].Tuples[0], gvar.Glyphs[1].Tuples[1]
	test.T(t, wght.Peak, []F2Dot14{1 << 14, 0})
	test.T(t, wdth.Peak, []F2Dot14{0, -1 << 14})
	test.T(t, wdth.Start, []F2Dot14{0, -1 << 14})
	test.T(t, wdth.End, []F2Dot14{0, 0})

	// composite glyphs vary their component offset
	test.T(t, len(gvar.Glyphs[2].Tuples), 2)

	test.T(t, f.Fvar().Axes[0].Tag, MustTag("wght"))
	test.T(t, f.Fvar().Axes[1].Max.Float(), 100.0)
	test.T(t, len(f.Fvar().Instances), 3)
	test.T(t, f.Fvar().Instances[0].PostScriptNameID, NameID(0xFFFF))
	name, _ := f.Name().Get(f.Fvar().Instances[1].PostScriptNameID)
	test.T(t, name, "Square-Bold")
	name, _ = f.Name().Get(f.Fvar().Axes[1].NameID)
	test.T(t, name, "Width")
	test.That(t, NameFontSpecific <= f.Fvar().Axes[0].NameID, "axis name ID")

	test.T(t, len(f.Avar().SegmentMaps), 2)
	test.T(t, f.Avar().SegmentMaps[0].AxisValueMaps, []AxisValueMap{{-1 << 14, -1 << 14}, {0, 0}, {1 << 14, 1 << 14}})
	test.That(t, f.Hvar() != nil, "HVAR table")
}

func TestCompileFullAxisRanges(t *testing.T) {
	ds := &Designspace{
		Axes: []Axis{
			{Tag: MustTag("wght"), Name: "Weight", Min: 100, Default: 400, Max: 900},
			{Tag: MustTag("wdth"), Name: "Width", Min: 75, Default: 100, Max: 125},
		},
		Instances: []Instance{
			{Name: "Thin", Location: Location{MustTag("wght"): 100}},
			{Name: "Regular", Location: Location{MustTag("wght"): 400}},
			{Name: "Bold", Location: Location{MustTag("wght"): 900}},
		},
	}
	f, err := Compile(ds, weightWidthMasters(t), CompileOptions{})
	test.Error(t, err)

	// masters only on one side of each default give one region per axis
	gvar := f.Gvar()
	test.T(t, len(gvar.Glyphs[1].Tuples), 2)
	test.T(t, gvar.Glyphs[1].Tuples[0].Peak, []F2Dot14{1 << 14, 0})
	test.T(t, gvar.Glyphs[1].Tuples[1].Peak, []F2Dot14{0, -1 << 14})

	axes := f.Fvar().Axes
	test.T(t, len(axes), 2)
	test.T(t, []float64{axes[0].Min.Float(), axes[0].Default.Float(), axes[0].Max.Float()}, []float64{100, 400, 900})
	test.T(t, []float64{axes[1].Min.Float(), axes[1].Default.Float(), axes[1].Max.Float()}, []float64{75, 100, 125})
	test.T(t, len(f.Fvar().Instances), 3)

	coords, err := f.NormalizedCoords(Location{MustTag("wght"): 100, MustTag("wdth"): 125})
	test.Error(t, err)
	test.T(t, coords, []float64{-1, 1})
	points, err := f.GlyphPoints(1, []float64{1, 0})
	test.Error(t, err)
	test.T(t, points[2], Point{650, 700, true})

	b, err := f.Serialize()
	test.Error(t, err)
	test.T(t, calcChecksum(b), uint32(0xB1B0AFBA))
	g, err := Parse(b)
	test.Error(t, err)
	b2, err := g.Serialize()
	test.Error(t, err)
	test.Bytes(t, b2, b)
}

func TestCompileGlyphPoints(t *testing.T) {
	masters := weightWidthMasters(t)
	f, err := Compile(weightWidthDesignspace(), masters, CompileOptions{})
	test.Error(t, err)

	for _, master := range masters {
		t.Run(master.Name, func(t *testing.T) {
			coords, err := f.NormalizedCoords(master.Location)
			test.Error(t, err)
			for glyphID := range testGlyphOrder {
				want, _, err := master.Font.variationPoints(glyphID)
				test.Error(t, err)
				points, err := f.GlyphPoints(glyphID, coords)
				test.Error(t, err)
				test.T(t, len(points), len(want))
				for i, p := range points {
					test.T(t, p.X, int16(want[i].X), fmt.Sprintf("glyph %d point %d", glyphID, i))
					test.T(t, p.Y, int16(want[i].Y), fmt.Sprintf("glyph %d point %d", glyphID, i))
				}

				advance, err := f.AdvanceWidth(glyphID, coords)
				test.Error(t, err)
				test.Float(t, advance, float64(master.Font.Hmtx().Advance(uint16(glyphID))))
			}
		})
	}

	// corner without a master adds both deltas
	points, err := f.GlyphPoints(1, []float64{1, -1})
	test.Error(t, err)
	test.T(t, points[1].X, int16(50+400+200-100))
	test.T(t, points[2], Point{550, 700, true})
	advance, err := f.AdvanceWidth(1, []float64{1, -1})
	test.Error(t, err)
	test.Float(t, advance, 600)

	// half way along the weight axis
	coords, err := f.NormalizedCoords(Location{MustTag("wght"): 650})
	test.Error(t, err)
	test.T(t, coords, []float64{0.5, 0})
	points, err = f.GlyphPoints(1, coords)
	test.Error(t, err)
	test.T(t, points[1].X, int16(550))

	_, err = f.NormalizedCoords(Location{MustTag("wght"): 1000})
	test.That(t, errors.Is(err, ErrOutOfRange), err)
	_, err = f.NormalizedCoords(Location{MustTag("slnt"): 0})
	test.That(t, errors.Is(err, ErrAxisNotFound), err)
}

func TestCompileSerialized(t *testing.T) {
	f, err := Compile(weightWidthDesignspace(), weightWidthMasters(t), CompileOptions{})
	test.Error(t, err)
	b, err := f.Serialize()
	test.Error(t, err)

	// decoded again by this package
	g, err := Parse(b)
	test.Error(t, err)
	test.T(t, g.GlyphOrder, testGlyphOrder)
	test.T(t, g.Fvar().Axes, f.Fvar().Axes)
	test.T(t, g.Fvar().Instances, f.Fvar().Instances)
	for i, segmentMap := range f.Avar().SegmentMaps {
		test.T(t, g.Avar().SegmentMaps[i].AxisValueMaps, segmentMap.AxisValueMaps)
	}
	test.T(t, len(g.Gvar().SharedTuples), len(f.Gvar().SharedTuples))
	for glyphID := range testGlyphOrder {
		test.T(t, g.Gvar().Glyphs[glyphID], f.Gvar().Glyphs[glyphID], fmt.Sprintf("glyph %d", glyphID))
	}
	points, err := g.GlyphPoints(1, []float64{1, 0})
	test.Error(t, err)
	test.T(t, points[2], Point{650, 700, true})

	// decoded by go-text
	loader, err := ot.NewLoader(bytes.NewReader(b))
	test.Error(t, err)
	raw, err := loader.RawTable(ot.MustNewTag("fvar"))
	test.Error(t, err)
	fvar, _, err := tables.ParseFvar(raw)
	test.Error(t, err)
	test.T(t, len(fvar.Axis), 2)
	test.T(t, fvar.Axis[0].Tag, ot.MustNewTag("wght"))
	test.T(t, float64(fvar.Axis[0].Minimum), 400.0)
	test.T(t, float64(fvar.Axis[0].Maximum), 900.0)
	test.T(t, float64(fvar.Axis[1].Default), 100.0)
	test.T(t, len(fvar.Instances), 3)

	face, err := font.ParseTTF(bytes.NewReader(b))
	test.Error(t, err)
	test.Float(t, float64(face.HorizontalAdvance(1)), 500)
	face.SetVariations([]font.Variation{{Tag: ot.MustNewTag("wght"), Value: 900}})
	test.Float(t, float64(face.HorizontalAdvance(1)), 700)
	face.SetVariations([]font.Variation{{Tag: ot.MustNewTag("wdth"), Value: 75}})
	test.Float(t, float64(face.HorizontalAdvance(1)), 400)
}

func TestCompileSingleMaster(t *testing.T) {
	ds := &Designspace{Axes: []Axis{{Tag: MustTag("wght"), Min: 100, Default: 400, Max: 900}}}
	f, err := Compile(ds, []Master{{Name: "Regular", Font: squareFont(t, 400, 20)}}, CompileOptions{})
	test.Error(t, err)
	test.T(t, len(f.Gvar().Glyphs), 3)
	for _, glyph := range f.Gvar().Glyphs {
		test.That(t, glyph == nil, "no tuples")
	}
	test.T(t, len(f.Hvar().ItemVariationStore.VariationRegionList.VariationRegions), 0)
	test.T(t, f.Avar().SegmentMaps[0].AxisValueMaps, []AxisValueMap{{-1 << 14, -1 << 14}, {0, 0}, {1 << 14, 1 << 14}})
}

func TestCompileIntermediateMaster(t *testing.T) {
	ds := &Designspace{Axes: []Axis{{Tag: MustTag("wght"), Min: 100, Default: 400, Max: 900}}}
	masters := []Master{
		{Name: "Regular", Location: Location{MustTag("wght"): 400}, Font: squareFont(t, 400, 20)},
		{Name: "Medium", Location: Location{MustTag("wght"): 500}, Font: squareFont(t, 420, 20)},
		{Name: "Black", Location: Location{MustTag("wght"): 900}, Font: squareFont(t, 600, 20)},
		{Name: "Thin", Location: Location{MustTag("wght"): 100}, Font: squareFont(t, 300, 20)},
	}
	f, err := Compile(ds, masters, CompileOptions{})
	test.Error(t, err)

	// the intermediate master is spaced evenly by avar
	test.T(t, f.Avar().SegmentMaps[0].AxisValueMaps, []AxisValueMap{{-1 << 14, -1 << 14}, {0, 0}, {3277, 1 << 13}, {1 << 14, 1 << 14}})

	for _, master := range masters {
		coords, err := f.NormalizedCoords(master.Location)
		test.Error(t, err)
		points, err := f.GlyphPoints(1, coords)
		test.Error(t, err)
		test.T(t, points[1], master.Font.Glyf().Glyphs[1].Points[1], master.Name)
	}

	// intermediate region from the default to the black master
	var found bool
	for _, tv := range f.Gvar().Glyphs[1].Tuples {
		if tv.Peak[0] == 1<<13 {
			found = true
			test.T(t, tv.Start, []F2Dot14{0})
			test.T(t, tv.End, []F2Dot14{1 << 14})
		}
	}
	test.That(t, found, "tuple at the intermediate master")
}

func TestCompileAxisMap(t *testing.T) {
	ds := &Designspace{Axes: []Axis{{
		Tag: MustTag("wght"), Min: 100, Default: 400, Max: 900,
		Map: []AxisMapping{{100, 20}, {400, 80}, {700, 160}, {900, 200}},
	}}}
	masters := []Master{
		{Name: "Regular", Location: Location{MustTag("wght"): 400}, Font: squareFont(t, 400, 20)},
		{Name: "Black", Location: Location{MustTag("wght"): 900}, Font: squareFont(t, 600, 20)},
	}
	f, err := Compile(ds, masters, CompileOptions{})
	test.Error(t, err)

	maps := f.Avar().SegmentMaps[0].AxisValueMaps
	test.T(t, len(maps), 4)
	test.T(t, maps[2], AxisValueMap{9830, 10923}) // 0.6 to 0.6667

	coords, err := f.NormalizedCoords(Location{MustTag("wght"): 700})
	test.Error(t, err)
	test.T(t, coords[0], F2Dot14(10923).Float())
}

func TestCompileErrors(t *testing.T) {
	ds := weightWidthDesignspace()

	t.Run("no default", func(t *testing.T) {
		masters := weightWidthMasters(t)[1:]
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrNoDefaultMaster), err)

		var compileErr *CompileError
		test.That(t, errors.As(err, &compileErr), err)
		test.T(t, compileErr.Step, StepValidate)
	})

	t.Run("two defaults", func(t *testing.T) {
		masters := weightWidthMasters(t)
		masters[1].Location = nil
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrNoDefaultMaster), err)
	})

	t.Run("point count", func(t *testing.T) {
		masters := weightWidthMasters(t)
		g := masters[1].Font.Glyf().Glyphs[1]
		g.Points = append(g.Points, Point{60, 10, true})
		g.EndPoints[0]++
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrInconsistentTopology), err)

		var compileErr *CompileError
		test.That(t, errors.As(err, &compileErr), err)
		test.T(t, compileErr.Glyph, "A")
	})

	t.Run("glyph order", func(t *testing.T) {
		masters := weightWidthMasters(t)
		masters[2].Font.GlyphOrder = []string{".notdef", "B", "A"}
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrInconsistentTopology), err)
	})

	t.Run("component", func(t *testing.T) {
		masters := weightWidthMasters(t)
		masters[2].Font.Glyf().Glyphs[2].Components[0].GlyphID = 0
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrInconsistentTopology), err)
	})

	t.Run("unknown axis", func(t *testing.T) {
		masters := weightWidthMasters(t)
		masters[1].Location = Location{MustTag("slnt"): -10}
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrAxisNotFound), err)

		var compileErr *CompileError
		test.That(t, errors.As(err, &compileErr), err)
		test.T(t, compileErr.Axis, "slnt")
	})

	t.Run("master out of range", func(t *testing.T) {
		masters := weightWidthMasters(t)
		masters[1].Location = Location{MustTag("wght"): 1000}
		_, err := Compile(ds, masters, CompileOptions{ClampInstances: true})
		test.That(t, errors.Is(err, ErrOutOfRange), err)
	})

	t.Run("delta out of range", func(t *testing.T) {
		masters := weightWidthMasters(t)
		g := masters[1].Font.Glyf().Glyphs[1]
		g.Points[2].Y = -32100
		g.Points[3].Y = -32100
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, errors.Is(err, ErrOutOfRange), err)

		var compileErr *CompileError
		test.That(t, errors.As(err, &compileErr), err)
		test.T(t, compileErr.Step, StepDeltas)
		test.T(t, compileErr.Glyph, "A")
	})

	t.Run("missing table", func(t *testing.T) {
		masters := weightWidthMasters(t)
		masters[0].Font.RemoveTable(MustTag("glyf"))
		_, err := Compile(ds, masters, CompileOptions{})
		test.That(t, err != nil, "missing glyf")
	})
}

func TestCompileInstances(t *testing.T) {
	ds := weightWidthDesignspace()
	ds.Instances = append(ds.Instances, Instance{Name: "Ultra", Location: Location{MustTag("wght"): 1000}})

	_, err := Compile(ds, weightWidthMasters(t), CompileOptions{})
	test.That(t, errors.Is(err, ErrOutOfRange), err)
	var compileErr *CompileError
	test.That(t, errors.As(err, &compileErr), err)
	test.T(t, compileErr.Axis, "wght")

	f, err := Compile(ds, weightWidthMasters(t), CompileOptions{ClampInstances: true})
	test.Error(t, err)
	test.T(t, f.Fvar().Instances[3].Coords, []Fixed{900 << 16, 100 << 16})
}

func TestCompileOptions(t *testing.T) {
	ds := weightWidthDesignspace()
	f, err := Compile(ds, weightWidthMasters(t), CompileOptions{Workers: 1})
	test.Error(t, err)
	b1, err := f.Serialize()
	test.Error(t, err)

	f, err = Compile(ds, weightWidthMasters(t), CompileOptions{Workers: 8})
	test.Error(t, err)
	b2, err := f.Serialize()
	test.Error(t, err)
	test.Bytes(t, b1, b2)

	f, err = Compile(ds, weightWidthMasters(t), CompileOptions{KeepInferredDeltas: true, SkipHVAR: true})
	test.Error(t, err)
	test.That(t, f.Hvar() == nil, "no HVAR table")
	for _, tv := range f.Gvar().Glyphs[1].Tuples {
		test.That(t, tv.Points == nil, "deltas for all points")
		test.T(t, len(tv.X), 8)
	}
	advance, err := f.AdvanceWidth(1, []float64{1, 0})
	test.Error(t, err)
	test.Float(t, advance, 700)
}

func TestCompileOptionsFromConfig(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "varfont")
	defer teardown()

	opts := CompileOptionsFromConfig(testconfig.Conf{
		"varfont.workers":              4,
		"varfont.clamp-instances":      true,
		"varfont.keep-inferred-deltas": false,
		"varfont.trace-level":          "error",
	})
	test.T(t, opts, CompileOptions{Workers: 4, ClampInstances: true})
	test.T(t, tracer().GetTraceLevel(), tracing.LevelError)

	opts = CompileOptionsFromConfig(testconfig.Conf{})
	test.T(t, opts, CompileOptions{})
}

func TestSharedTuples(t *testing.T) {
	a := []F2Dot14{1 << 14, 0}
	b := []F2Dot14{0, -1 << 14}
	c := []F2Dot14{1 << 14, -1 << 14}
	glyphs := []*GlyphVariations{
		{Tuples: []TupleVariation{{Peak: a}, {Peak: b}}},
		nil,
		{Tuples: []TupleVariation{{Peak: b}, {Peak: c}}},
		{Tuples: []TupleVariation{{Peak: b}, {Peak: a}}},
	}
	test.T(t, sharedTuples(glyphs), [][]F2Dot14{b, a})
}
