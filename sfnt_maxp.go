package varfont

// see MaxpTable.Version
const (
	MaxpVersion05 = 0x00005000 // CFF outlines
	MaxpVersion10 = 0x00010000 // TrueType outlines
)

// MaxpTable holds the glyph count and, for TrueType outlines, the memory requirements of the font.
type MaxpTable struct {
	Version   uint32
	NumGlyphs uint16
	MaxpLimits
}

// MaxpLimits are the version 1.0 fields of the maxp table.
type MaxpLimits struct {
	MaxPoints             uint16
	MaxContours           uint16
	MaxCompositePoints    uint16
	MaxCompositeContours  uint16
	MaxZones              uint16
	MaxTwilightPoints     uint16
	MaxStorage            uint16
	MaxFunctionDefs       uint16
	MaxInstructionDefs    uint16
	MaxStackElements      uint16
	MaxSizeOfInstructions uint16
	MaxComponentElements  uint16
	MaxComponentDepth     uint16
}

type maxpVersion05 struct {
	NumGlyphs uint16
}

type maxpVersion10 struct {
	NumGlyphs uint16
	MaxpLimits
}

var maxpUnion = Union{
	Name:    "maxp",
	TagSize: 4,
	Variants: map[uint32]any{
		MaxpVersion05: maxpVersion05{},
		MaxpVersion10: maxpVersion10{},
	},
}

func parseMaxp(b []byte) (*MaxpTable, error) {
	version, v, _, err := maxpUnion.Unmarshal(b)
	if err != nil {
		return nil, err
	}

	maxp := &MaxpTable{Version: version}
	switch data := v.(type) {
	case *maxpVersion05:
		maxp.NumGlyphs = data.NumGlyphs
	case *maxpVersion10:
		maxp.NumGlyphs = data.NumGlyphs
		maxp.MaxpLimits = data.MaxpLimits
	}
	return maxp, nil
}

// Marshal encodes the maxp table. Version 0.5 drops the limits.
func (maxp *MaxpTable) Marshal() ([]byte, error) {
	switch maxp.Version {
	case MaxpVersion05:
		return maxpUnion.Marshal(maxp.Version, maxpVersion05{maxp.NumGlyphs})
	case MaxpVersion10:
		return maxpUnion.Marshal(maxp.Version, maxpVersion10{maxp.NumGlyphs, maxp.MaxpLimits})
	}
	return nil, errVersion("maxp", maxp.Version)
}
