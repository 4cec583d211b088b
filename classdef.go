package varfont

import "sort"

// ClassRangeRecord assigns a class to a range of glyphs.
type ClassRangeRecord struct {
	StartGlyphID uint16
	EndGlyphID   uint16
	Class        uint16
}

type classDefFormat1 struct {
	StartGlyphID    uint16
	GlyphCount      uint16
	ClassValueArray []uint16 `count:"GlyphCount"`
}

type classDefFormat2 struct {
	ClassRangeCount   uint16
	ClassRangeRecords []ClassRangeRecord `count:"ClassRangeCount"`
}

var classDefUnion = Union{
	Name:    "ClassDef",
	TagSize: 2,
	Variants: map[uint32]any{
		1: classDefFormat1{},
		2: classDefFormat2{},
	},
}

// ClassDef maps glyphs to classes. It is encoded in whichever of format 1 (class array) or format 2 (class ranges) is smaller.
type ClassDef map[uint16]uint16

// GlyphCount returns the highest classified glyph plus one.
func (classDef ClassDef) GlyphCount() int {
	n := 0
	for glyphID := range classDef {
		n = max(n, int(glyphID)+1)
	}
	return n
}

// ParseClassDef decodes a ClassDef table and returns the number of bytes read.
func ParseClassDef(b []byte) (ClassDef, int, error) {
	format, v, n, err := classDefUnion.Unmarshal(b)
	if err != nil {
		return nil, 0, err
	}

	classDef := ClassDef{}
	switch format {
	case 1:
		f := v.(*classDefFormat1)
		for i, class := range f.ClassValueArray {
			classDef[f.StartGlyphID+uint16(i)] = class
		}
	case 2:
		f := v.(*classDefFormat2)
		for _, record := range f.ClassRangeRecords {
			for glyphID := int(record.StartGlyphID); glyphID <= int(record.EndGlyphID); glyphID++ {
				classDef[uint16(glyphID)] = record.Class
			}
		}
	}
	return classDef, n, nil
}

// ranges returns the runs of consecutive glyphs with the same class.
func (classDef ClassDef) ranges() []ClassRangeRecord {
	glyphIDs := make([]uint16, 0, len(classDef))
	for glyphID := range classDef {
		glyphIDs = append(glyphIDs, glyphID)
	}
	sort.Slice(glyphIDs, func(i, j int) bool { return glyphIDs[i] < glyphIDs[j] })

	var records []ClassRangeRecord
	for i, glyphID := range glyphIDs {
		class := classDef[glyphID]
		if 0 < i {
			last := &records[len(records)-1]
			if last.EndGlyphID+1 == glyphID && last.Class == class {
				last.EndGlyphID = glyphID
				continue
			}
		}
		records = append(records, ClassRangeRecord{glyphID, glyphID, class})
	}
	return records
}

// Marshal encodes the ClassDef. An empty ClassDef is encoded as format 1 starting at glyph 0.
func (classDef ClassDef) Marshal() ([]byte, error) {
	records := classDef.ranges()
	if len(records) == 0 {
		return classDefUnion.Marshal(1, classDefFormat1{})
	}

	first, last := int(records[0].StartGlyphID), int(records[len(records)-1].EndGlyphID)
	if 2+last-first < 3*len(records) {
		f := classDefFormat1{
			StartGlyphID:    uint16(first),
			ClassValueArray: make([]uint16, last-first+1),
		}
		for glyphID, class := range classDef {
			f.ClassValueArray[int(glyphID)-first] = class
		}
		return classDefUnion.Marshal(1, f)
	}
	return classDefUnion.Marshal(2, classDefFormat2{ClassRangeRecords: records})
}
