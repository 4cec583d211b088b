/*
Package varfont reads, builds and writes OpenType fonts, and compiles variable fonts from
a set of interpolatable master fonts.

A Font holds an insertion-ordered set of tables and the glyph order. Tables are decoded
either by hand-written parsers or by the layout engine, which codes records described by
Go structs with `count` and `offset` field tags (see Marshal and Unmarshal).

Compile takes a Designspace and one Master font per design location and adds the fvar,
avar, gvar and HVAR tables to the default master:

	ds := &varfont.Designspace{Axes: []varfont.Axis{
		{Tag: varfont.MustTag("wght"), Name: "Weight", Min: 100, Default: 400, Max: 900},
	}}
	font, err := varfont.Compile(ds, []varfont.Master{
		{Name: "Regular", Location: varfont.Location{varfont.MustTag("wght"): 400}, Font: regular},
		{Name: "Black", Location: varfont.Location{varfont.MustTag("wght"): 900}, Font: black},
	}, varfont.CompileOptions{})
	if err != nil {
		panic(err)
	}
	b, err := font.Serialize()

Links:

	https://learn.microsoft.com/en-us/typography/opentype/spec/otvaroverview
	https://learn.microsoft.com/en-us/typography/opentype/spec/gvar
*/
package varfont

import "github.com/npillmayer/schuko/tracing"

// tracer traces with key 'varfont'
func tracer() tracing.Trace {
	return tracing.Select("varfont")
}
