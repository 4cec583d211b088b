package varfont

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"

	"github.com/npillmayer/schuko/tracing"
	"golang.org/x/sync/errgroup"
)

// Master is a font at a location of the design space. The location is in user coordinates, axes missing from it are at their default.
type Master struct {
	Name     string
	Location Location
	Font     *Font
}

// CompileOptions are the options for Compile.
type CompileOptions struct {
	// Workers is the number of goroutines computing glyph deltas, GOMAXPROCS when zero.
	Workers int

	// ClampInstances clamps instance coordinates outside an axis range to the range, instead of failing.
	ClampInstances bool

	// KeepInferredDeltas stores the deltas of all points, including those that can be interpolated.
	KeepInferredDeltas bool

	// SkipHVAR omits the HVAR table.
	SkipHVAR bool
}

// Configuration is a key-value configuration, such as a schuko.Configuration.
type Configuration interface {
	IsSet(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
}

// CompileOptionsFromConfig reads the keys varfont.workers, varfont.clamp-instances, varfont.keep-inferred-deltas and varfont.skip-hvar. The key varfont.trace-level sets the trace level to debug, info or error.
func CompileOptionsFromConfig(conf Configuration) CompileOptions {
	opts := CompileOptions{}
	if conf.IsSet("varfont.workers") {
		opts.Workers = conf.GetInt("varfont.workers")
	}
	opts.ClampInstances = conf.IsSet("varfont.clamp-instances") && conf.GetBool("varfont.clamp-instances")
	opts.KeepInferredDeltas = conf.IsSet("varfont.keep-inferred-deltas") && conf.GetBool("varfont.keep-inferred-deltas")
	opts.SkipHVAR = conf.IsSet("varfont.skip-hvar") && conf.GetBool("varfont.skip-hvar")
	if conf.IsSet("varfont.trace-level") {
		switch conf.GetString("varfont.trace-level") {
		case "debug":
			tracer().SetTraceLevel(tracing.LevelDebug)
		case "info":
			tracer().SetTraceLevel(tracing.LevelInfo)
		case "error":
			tracer().SetTraceLevel(tracing.LevelError)
		}
	}
	return opts
}

type compiler struct {
	ds      *Designspace
	masters []Master
	opts    CompileOptions

	dflt        *Font
	normalized  [][]float64 // per master, before avar
	segmentMaps []AvarSegmentMap
	model       *variationModel
	regions     []Region // model regions without the default master's
	tuples      []TupleVariation

	glyphs        []*GlyphVariations
	advanceDeltas [][]int32
	store         []taggedTable
}

type taggedTable struct {
	tag   Tag
	table Table
}

// Compile builds a variable font from masters at locations of the design space. It adds the fvar, avar, gvar and HVAR tables to the font of the default master, which is at the default of every axis, and returns it. All masters must have the same glyph order, and each glyph the same number of points and contours or the same components. The font is not modified when compilation fails.
func Compile(ds *Designspace, masters []Master, opts CompileOptions) (*Font, error) {
	c := &compiler{
		ds:      ds,
		masters: masters,
		opts:    opts,
	}
	for _, step := range []func() error{c.validate, c.deriveRegions, c.computeDeltas, c.buildStore} {
		if err := step(); err != nil {
			tracer().Errorf("compile: %v", err)
			return nil, err
		}
	}
	if err := c.emit(); err != nil {
		tracer().Errorf("compile: %v", err)
		return nil, err
	}
	return c.dflt, nil
}

func (c *compiler) validate() error {
	fail := func(err error) error {
		return &CompileError{Step: StepValidate, Err: err}
	}
	if err := c.ds.Validate(); err != nil {
		return fail(err)
	} else if len(c.masters) == 0 {
		return fail(ErrNoDefaultMaster)
	}

	c.normalized = make([][]float64, len(c.masters))
	for i, master := range c.masters {
		if master.Font == nil {
			return fail(fmt.Errorf("master %q has no font", master.Name))
		}
		coords, err := c.ds.userCoords(master.Location, false)
		if err != nil {
			return &CompileError{Step: StepValidate, Axis: c.offendingAxis(master.Location), Err: fmt.Errorf("master %q: %w", master.Name, err)}
		}
		c.normalized[i] = make([]float64, len(coords))
		isDefault := true
		for j, axis := range c.ds.Axes {
			c.normalized[i][j] = axis.normalize(coords[j])
			isDefault = isDefault && c.normalized[i][j] == 0
		}
		if isDefault {
			if c.dflt != nil {
				return fail(fmt.Errorf("masters at the default location: %w", ErrNoDefaultMaster))
			}
			c.dflt = master.Font
		}
		for _, prev := range c.normalized[:i] {
			if slices.Equal(prev, c.normalized[i]) && !isDefault {
				return fail(fmt.Errorf("master %q: location %v is used twice", master.Name, master.Location))
			}
		}
	}
	if c.dflt == nil {
		return fail(ErrNoDefaultMaster)
	}
	for _, inst := range c.ds.Instances {
		if _, err := c.ds.InstanceLocation(inst, c.opts.ClampInstances); err != nil {
			return &CompileError{Step: StepValidate, Axis: c.offendingAxis(inst.Location), Err: fmt.Errorf("instance %q: %w", inst.Name, err)}
		}
	}

	for _, master := range c.masters {
		if f := master.Font; f.Glyf() == nil || f.Hmtx() == nil || f.Hhea() == nil {
			return fail(fmt.Errorf("master %q: glyf, hmtx and hhea tables are required", master.Name))
		}
	}
	for _, master := range c.masters {
		if err := c.checkTopology(master); err != nil {
			return err
		}
	}
	tracer().Infof("compile: %d masters, %d axes, %d glyphs", len(c.masters), len(c.ds.Axes), len(c.dflt.GlyphOrder))
	return nil
}

// offendingAxis returns the tag of the first axis, in tag order, of a location that is unknown or out of range.
func (c *compiler) offendingAxis(loc Location) string {
	tags := make([]Tag, 0, len(loc))
	for tag := range loc {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Uint32() < tags[j].Uint32() })
	for _, tag := range tags {
		i := c.ds.axisIndex(tag)
		if i == -1 {
			return tag.String()
		} else if v := loc[tag]; v < c.ds.Axes[i].Min || c.ds.Axes[i].Max < v || math.IsNaN(v) {
			return tag.String()
		}
	}
	return ""
}

// checkTopology checks that a master is interpolation compatible with the default master.
func (c *compiler) checkTopology(master Master) error {
	f := master.Font
	if !slices.Equal(f.GlyphOrder, c.dflt.GlyphOrder) {
		return &CompileError{Step: StepValidate, Err: fmt.Errorf("master %q: glyph order differs: %w", master.Name, ErrInconsistentTopology)}
	} else if len(f.Glyf().Glyphs) != len(c.dflt.GlyphOrder) {
		return &CompileError{Step: StepValidate, Err: fmt.Errorf("master %q: %d glyphs in glyf for %d glyph names: %w", master.Name, len(f.Glyf().Glyphs), len(c.dflt.GlyphOrder), ErrInconsistentTopology)}
	}

	glyphs := c.dflt.Glyf().Glyphs
	for i, g := range f.Glyf().Glyphs {
		if err := compatibleGlyphs(glyphs[i], g); err != nil {
			return &CompileError{Step: StepValidate, Glyph: c.dflt.GlyphName(i), Err: fmt.Errorf("master %q: %v: %w", master.Name, err, ErrInconsistentTopology)}
		}
	}
	return nil
}

func compatibleGlyphs(a, b *Glyph) error {
	if a.IsComposite() != b.IsComposite() {
		return fmt.Errorf("composite and simple glyph")
	} else if a.IsComposite() {
		if len(a.Components) != len(b.Components) {
			return fmt.Errorf("%d and %d components", len(a.Components), len(b.Components))
		}
		for i := range a.Components {
			if a.Components[i].GlyphID != b.Components[i].GlyphID {
				return fmt.Errorf("component %d references glyphs %d and %d", i, a.Components[i].GlyphID, b.Components[i].GlyphID)
			} else if a.Components[i].Flags&ArgsAreXYValues != b.Components[i].Flags&ArgsAreXYValues {
				return fmt.Errorf("component %d is placed by offset and by points", i)
			}
		}
		return nil
	} else if a.NumPoints() != b.NumPoints() {
		return fmt.Errorf("%d and %d points", a.NumPoints(), b.NumPoints())
	}
	var endA, endB []uint16
	if a != nil {
		endA = a.EndPoints
	}
	if b != nil {
		endB = b.EndPoints
	}
	if !slices.Equal(endA, endB) {
		return fmt.Errorf("contours end at %v and %v", endA, endB)
	}
	return nil
}

func (c *compiler) deriveRegions() error {
	var err error
	if c.segmentMaps, err = c.ds.segmentMaps(c.normalized); err != nil {
		return &CompileError{Step: StepRegions, Err: err}
	}

	// master locations in the avar-mapped space, where the regions are defined
	locations := make([][]float64, len(c.normalized))
	for i, coords := range c.normalized {
		locations[i] = make([]float64, len(coords))
		for j, v := range coords {
			locations[i][j] = roundF2Dot14(c.segmentMaps[j].Map(v))
		}
	}
	if c.model, err = newVariationModel(locations); err != nil {
		return &CompileError{Step: StepRegions, Err: err}
	}
	c.regions = c.model.regions[1:]

	c.tuples = make([]TupleVariation, len(c.regions))
	for i, region := range c.regions {
		tv := &c.tuples[i]
		if tv.Peak, tv.Start, tv.End, err = region.tuples(); err != nil {
			return &CompileError{Step: StepRegions, Err: err}
		}
		tracer().Debugf("compile: region %d %v", i, region)
	}
	tracer().Infof("compile: %d regions", len(c.regions))
	return nil
}

func (c *compiler) computeDeltas() error {
	numGlyphs := len(c.dflt.GlyphOrder)
	c.glyphs = make([]*GlyphVariations, numGlyphs)
	c.advanceDeltas = make([][]int32, numGlyphs)

	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for glyphID := 0; glyphID < numGlyphs; glyphID++ {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			glyph, advances, err := c.glyphDeltas(glyphID)
			if err != nil {
				return &CompileError{Step: StepDeltas, Glyph: c.dflt.GlyphName(glyphID), Err: err}
			}
			c.glyphs[glyphID] = glyph
			c.advanceDeltas[glyphID] = advances
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	tracer().Infof("compile: computed deltas of %d glyphs with %d workers", numGlyphs, workers)
	return nil
}

// glyphDeltas returns the tuple variations of a glyph and its advance width delta per region.
func (c *compiler) glyphDeltas(glyphID int) (*GlyphVariations, []int32, error) {
	values := make([][]float64, len(c.masters))
	advances := make([][]float64, len(c.masters))
	var base []vec2
	var endPoints []int
	for i, master := range c.masters {
		coords, ends, err := master.Font.variationPoints(glyphID)
		if err != nil {
			return nil, nil, err
		}
		if master.Font == c.dflt {
			base, endPoints = coords, ends
		}
		values[i] = make([]float64, 0, 2*len(coords))
		for _, p := range coords {
			values[i] = append(values[i], p.X, p.Y)
		}
		advances[i] = []float64{float64(master.Font.Hmtx().Advance(uint16(glyphID)))}
	}

	glyph := &GlyphVariations{}
	for k, out := range c.model.deltas(values)[1:] {
		zero := true
		deltas := make([]vec2, len(out)/2)
		for i := range deltas {
			deltas[i] = vec2{out[2*i], out[2*i+1]}
			if out[2*i] < math.MinInt16 || math.MaxInt16 < out[2*i] || out[2*i+1] < math.MinInt16 || math.MaxInt16 < out[2*i+1] {
				return nil, nil, fmt.Errorf("delta %v of point %d: %w", deltas[i], i, ErrOutOfRange)
			}
			zero = zero && deltas[i] == vec2{}
		}
		if zero {
			continue
		}

		var points []uint16
		if !c.opts.KeepInferredDeltas {
			if points = iupOptimize(deltas, base, endPoints); points != nil && len(points) == 0 {
				continue
			}
		}
		tv := TupleVariation{
			Peak:   c.tuples[k].Peak,
			Start:  c.tuples[k].Start,
			End:    c.tuples[k].End,
			Points: points,
		}
		if points == nil {
			tv.X = make([]int16, len(deltas))
			tv.Y = make([]int16, len(deltas))
			for i, d := range deltas {
				tv.X[i], tv.Y[i] = int16(d.X), int16(d.Y)
			}
		} else {
			for _, i := range points {
				tv.X = append(tv.X, int16(deltas[i].X))
				tv.Y = append(tv.Y, int16(deltas[i].Y))
			}
		}
		glyph.Tuples = append(glyph.Tuples, tv)
	}

	advanceDeltas := make([]int32, len(c.regions))
	for k, out := range c.model.deltas(advances)[1:] {
		advanceDeltas[k] = int32(out[0])
	}
	if len(glyph.Tuples) == 0 {
		glyph = nil
	}
	return glyph, advanceDeltas, nil
}

// sharedTuples returns the peaks used by more than one tuple variation, most used first.
func sharedTuples(glyphs []*GlyphVariations) [][]F2Dot14 {
	counts := map[string]int{}
	peaks := map[string][]F2Dot14{}
	for _, glyph := range glyphs {
		if glyph == nil {
			continue
		}
		for _, tv := range glyph.Tuples {
			key := tupleKey(tv.Peak)
			counts[key]++
			peaks[key] = tv.Peak
		}
	}

	var keys []string
	for key, count := range counts {
		if 1 < count {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if tupleIndexMask < len(keys) {
		keys = keys[:tupleIndexMask]
	}
	shared := make([][]F2Dot14, len(keys))
	for i, key := range keys {
		shared[i] = peaks[key]
	}
	return shared
}

func (c *compiler) buildStore() error {
	gvar := &GvarTable{
		AxisCount:    len(c.ds.Axes),
		SharedTuples: sharedTuples(c.glyphs),
		Glyphs:       c.glyphs,
	}
	if _, err := gvar.Marshal(); err != nil {
		return &CompileError{Step: StepStore, Err: err}
	}
	c.store = []taggedTable{{MustTag("gvar"), gvar}}
	if !c.opts.SkipHVAR {
		hvar, err := buildHvar(len(c.ds.Axes), c.regions, c.advanceDeltas)
		if err != nil {
			return &CompileError{Step: StepStore, Err: err}
		}
		c.store = append(c.store, taggedTable{MustTag("HVAR"), hvar})
	}
	tracer().Infof("compile: %d shared tuples", len(gvar.SharedTuples))
	return nil
}

func (c *compiler) emit() error {
	name := &NameTable{}
	if orig := c.dflt.Name(); orig != nil {
		name.Records = append(name.Records, orig.Records...)
		name.LangTags = append(name.LangTags, orig.LangTags...)
	}

	fvar := &FvarTable{}
	for _, axis := range c.ds.Axes {
		var err error
		fa := FvarAxis{Tag: axis.Tag}
		if fa.Min, err = FixedFromFloat(axis.Min); err == nil {
			if fa.Default, err = FixedFromFloat(axis.Default); err == nil {
				fa.Max, err = FixedFromFloat(axis.Max)
			}
		}
		if err != nil {
			return &CompileError{Step: StepEmit, Axis: axis.Tag.String(), Err: err}
		}
		if axis.Hidden {
			fa.Flags |= AxisHidden
		}
		label := axis.Name
		if label == "" {
			label = axis.Tag.String()
		}
		fa.NameID = name.Add(label)
		fvar.Axes = append(fvar.Axes, fa)
	}
	for _, inst := range c.ds.Instances {
		coords, err := c.ds.userCoords(inst.Location, c.opts.ClampInstances)
		if err != nil {
			return &CompileError{Step: StepEmit, Axis: c.offendingAxis(inst.Location), Err: err}
		}
		fi := FvarInstance{
			SubfamilyNameID:  name.Add(inst.Name),
			Coords:           make([]Fixed, len(coords)),
			PostScriptNameID: 0xFFFF,
		}
		if inst.PostScriptName != "" {
			fi.PostScriptNameID = name.Add(inst.PostScriptName)
		}
		for i, v := range coords {
			if fi.Coords[i], err = FixedFromFloat(v); err != nil {
				return &CompileError{Step: StepEmit, Axis: c.ds.Axes[i].Tag.String(), Err: err}
			}
		}
		fvar.Instances = append(fvar.Instances, fi)
	}

	tables := append([]taggedTable{
		{MustTag("name"), name},
		{MustTag("fvar"), fvar},
		{MustTag("avar"), &AvarTable{SegmentMaps: c.segmentMaps}},
	}, c.store...)

	// encode everything before touching the font
	for _, t := range tables {
		b, err := t.table.Marshal()
		if err != nil {
			return &CompileError{Step: StepEmit, Err: fmt.Errorf("%v: %w", t.tag, err)}
		}
		tracer().Debugf("compile: %v table, %d bytes", t.tag, len(b))
	}
	for _, t := range tables {
		c.dflt.InsertTable(t.tag, t.table)
	}
	tracer().Infof("compile: added %d tables", len(tables))
	return nil
}
