package varfont

// AxisValueMap maps a normalized coordinate to a modified normalized coordinate.
type AxisValueMap struct {
	FromCoordinate F2Dot14
	ToCoordinate   F2Dot14
}

// AvarSegmentMap is the piecewise-linear mapping of one axis. A valid map contains -1→-1, 0→0 and 1→1.
type AvarSegmentMap struct {
	PositionMapCount uint16
	AxisValueMaps    []AxisValueMap `count:"PositionMapCount"`
}

// Map applies the segment map to a normalized coordinate.
func (m AvarSegmentMap) Map(v float64) float64 {
	maps := m.AxisValueMaps
	if len(maps) == 0 {
		return v
	} else if v <= maps[0].FromCoordinate.Float() {
		return v - maps[0].FromCoordinate.Float() + maps[0].ToCoordinate.Float()
	}
	for i := 1; i < len(maps); i++ {
		from := maps[i].FromCoordinate.Float()
		if v <= from {
			prevFrom, prevTo := maps[i-1].FromCoordinate.Float(), maps[i-1].ToCoordinate.Float()
			if from == prevFrom {
				return maps[i].ToCoordinate.Float()
			}
			return prevTo + (v-prevFrom)*(maps[i].ToCoordinate.Float()-prevTo)/(from-prevFrom)
		}
	}
	last := maps[len(maps)-1]
	return v - last.FromCoordinate.Float() + last.ToCoordinate.Float()
}

// AvarTable is the axis variations table, with one segment map per fvar axis.
type AvarTable struct {
	MajorVersion uint16
	MinorVersion uint16
	Reserved     uint16
	AxisCount    uint16
	SegmentMaps  []AvarSegmentMap `count:"AxisCount"`
}

func parseAvar(b []byte) (*AvarTable, error) {
	avar := &AvarTable{}
	if _, err := Unmarshal(b, avar); err != nil {
		return nil, err
	} else if avar.MajorVersion != 1 {
		return nil, errVersion("avar", uint32(avar.MajorVersion)<<16|uint32(avar.MinorVersion))
	}
	return avar, nil
}

// Marshal encodes the avar table as version 1.0.
func (avar *AvarTable) Marshal() ([]byte, error) {
	avar.MajorVersion, avar.MinorVersion = 1, 0
	return Marshal(avar)
}
