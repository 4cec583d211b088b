package varfont

// HvarTable is the horizontal metrics variations table. Without an AdvanceWidthMapping, glyph IDs index the rows of the first ItemVariationData directly.
type HvarTable struct {
	MajorVersion        uint16
	MinorVersion        uint16
	ItemVariationStore  *ItemVariationStore `offset:"32"`
	AdvanceWidthMapping *DeltaSetIndexMap   `offset:"32"`
	LsbMapping          *DeltaSetIndexMap   `offset:"32"`
	RsbMapping          *DeltaSetIndexMap   `offset:"32"`
}

func parseHvar(b []byte) (*HvarTable, error) {
	hvar := &HvarTable{}
	if _, err := Unmarshal(b, hvar); err != nil {
		return nil, err
	} else if hvar.MajorVersion != 1 {
		return nil, errVersion("HVAR", uint32(hvar.MajorVersion)<<16|uint32(hvar.MinorVersion))
	} else if hvar.ItemVariationStore == nil {
		return nil, errTruncated("HVAR", "itemVariationStoreOffset", 4, 4, 0)
	}
	return hvar, nil
}

// Marshal encodes the HVAR table as version 1.0.
func (hvar *HvarTable) Marshal() ([]byte, error) {
	hvar.MajorVersion, hvar.MinorVersion = 1, 0
	return Marshal(hvar)
}

// AdvanceDelta returns the interpolated advance width delta of a glyph at the normalized coordinates.
func (hvar *HvarTable) AdvanceDelta(glyphID int, coords []float64) (float64, error) {
	idx := VarIdx{0, uint16(glyphID)}
	if hvar.AdvanceWidthMapping != nil {
		idx = hvar.AdvanceWidthMapping.Get(glyphID)
	}
	return hvar.ItemVariationStore.Delta(int(idx.Outer), int(idx.Inner), coords)
}

// buildHvar stores the advance width deltas, one row per glyph and one column per region. Only regions with a non-zero delta are referenced. Glyphs share rows through an AdvanceWidthMapping when that is smaller than direct indexing.
func buildHvar(axisCount int, regions []Region, advanceDeltas [][]int32) (*HvarTable, error) {
	var cols []int
	for j := range regions {
		for _, deltas := range advanceDeltas {
			if deltas[j] != 0 {
				cols = append(cols, j)
				break
			}
		}
	}

	regionList := &VariationRegionList{
		AxisCount: uint16(axisCount),
	}
	regionIndexes := make([]uint16, len(cols))
	for i, j := range cols {
		region, err := regions[j].coordinates()
		if err != nil {
			return nil, err
		}
		regionList.VariationRegions = append(regionList.VariationRegions, region)
		regionIndexes[i] = uint16(i)
	}
	rows := make([][]int32, len(advanceDeltas))
	for glyphID, deltas := range advanceDeltas {
		rows[glyphID] = make([]int32, len(cols))
		for i, j := range cols {
			rows[glyphID][i] = deltas[j]
		}
	}

	direct := &HvarTable{
		ItemVariationStore: &ItemVariationStore{
			Format:              1,
			VariationRegionList: regionList,
			ItemVariationData: []*ItemVariationData{{
				RegionIndexes: regionIndexes,
				DeltaSets:     rows,
			}},
		},
	}

	// unique rows with a mapping
	var unique [][]int32
	index := map[string]int{}
	mapping := &DeltaSetIndexMap{}
	for _, row := range rows {
		key := make([]byte, 0, 4*len(row))
		for _, v := range row {
			key = Append(key, v)
		}
		i, ok := index[string(key)]
		if !ok {
			i = len(unique)
			index[string(key)] = i
			unique = append(unique, row)
		}
		mapping.Map = append(mapping.Map, VarIdx{0, uint16(i)})
	}
	mapped := &HvarTable{
		ItemVariationStore: &ItemVariationStore{
			Format:              1,
			VariationRegionList: regionList,
			ItemVariationData: []*ItemVariationData{{
				RegionIndexes: regionIndexes,
				DeltaSets:     unique,
			}},
		},
		AdvanceWidthMapping: mapping,
	}

	directData, err := direct.Marshal()
	if err != nil {
		return nil, err
	}
	mappedData, err := mapped.Marshal()
	if err != nil {
		return nil, err
	}
	tracer().Debugf("HVAR: %d bytes with direct indexing, %d bytes with %d unique rows", len(directData), len(mappedData), len(unique))
	if len(mappedData) < len(directData) {
		return mapped, nil
	}
	return direct, nil
}
