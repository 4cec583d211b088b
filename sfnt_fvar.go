package varfont

import (
	"github.com/tdewolff/parse/v2"
)

// AxisHidden is the flag of an axis that should not be exposed in user interfaces.
const AxisHidden = 0x0001

// FvarAxis is a variation axis in user coordinates.
type FvarAxis struct {
	Tag               Tag
	Min, Default, Max Fixed
	Flags             uint16
	NameID            NameID
}

// FvarInstance is a named instance. PostScriptNameID is 0xFFFF when the instance has no PostScript name.
type FvarInstance struct {
	SubfamilyNameID  NameID
	Flags            uint16
	Coords           []Fixed
	PostScriptNameID NameID
}

// FvarTable is the font variations table.
type FvarTable struct {
	Axes      []FvarAxis
	Instances []FvarInstance
}

func (fvar *FvarTable) hasPostScriptNames() bool {
	for _, instance := range fvar.Instances {
		if instance.PostScriptNameID != 0xFFFF {
			return true
		}
	}
	return false
}

func parseFvar(b []byte) (*FvarTable, error) {
	if len(b) < 16 {
		return nil, errTruncated("fvar", "", 0, 16, int64(len(b)))
	}
	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return nil, errVersion("fvar", uint32(majorVersion)<<16|uint32(minorVersion))
	}
	axesArrayOffset := int64(r.ReadUint16())
	_ = r.ReadUint16() // reserved
	axisCount := int64(r.ReadUint16())
	axisSize := int64(r.ReadUint16())
	instanceCount := int64(r.ReadUint16())
	instanceSize := int64(r.ReadUint16())
	if axisSize < 20 || instanceSize < 4+4*axisCount {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "fvar", Field: "instanceSize", Expected: 4 + 4*axisCount, Actual: instanceSize}
	}
	if int64(len(b)) < axesArrayOffset+axisCount*axisSize+instanceCount*instanceSize {
		return nil, errTruncated("fvar", "axes", axesArrayOffset, axisCount*axisSize+instanceCount*instanceSize, int64(len(b))-axesArrayOffset)
	}

	fvar := &FvarTable{
		Axes:      make([]FvarAxis, axisCount),
		Instances: make([]FvarInstance, instanceCount),
	}
	for i := range fvar.Axes {
		r := parse.NewBinaryReaderBytes(b[axesArrayOffset+int64(i)*axisSize:])
		axis := &fvar.Axes[i]
		copy(axis.Tag[:], r.ReadBytes(4))
		axis.Min = Fixed(r.ReadInt32())
		axis.Default = Fixed(r.ReadInt32())
		axis.Max = Fixed(r.ReadInt32())
		axis.Flags = r.ReadUint16()
		axis.NameID = NameID(r.ReadUint16())
	}
	instancesOffset := axesArrayOffset + axisCount*axisSize
	for i := range fvar.Instances {
		r := parse.NewBinaryReaderBytes(b[instancesOffset+int64(i)*instanceSize:])
		instance := &fvar.Instances[i]
		instance.SubfamilyNameID = NameID(r.ReadUint16())
		instance.Flags = r.ReadUint16()
		instance.Coords = make([]Fixed, axisCount)
		for j := range instance.Coords {
			instance.Coords[j] = Fixed(r.ReadInt32())
		}
		instance.PostScriptNameID = 0xFFFF
		if 6+4*axisCount <= instanceSize {
			instance.PostScriptNameID = NameID(r.ReadUint16())
		}
	}
	return fvar, nil
}

// Marshal encodes the fvar table. Instances have a PostScript name ID field when any instance has a PostScript name.
func (fvar *FvarTable) Marshal() ([]byte, error) {
	axisCount := len(fvar.Axes)
	instanceSize := 4 + 4*axisCount
	if fvar.hasPostScriptNames() {
		instanceSize += 2
	}
	if 0xFFFF < axisCount || 0xFFFF < len(fvar.Instances) || 0xFFFF < instanceSize {
		return nil, &CodecError{Err: ErrOutOfRange, Table: "fvar", Field: "axisCount", Expected: 0xFFFF, Actual: int64(max(axisCount, len(fvar.Instances)))}
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1)  // majorVersion
	w.WriteUint16(0)  // minorVersion
	w.WriteUint16(16) // axesArrayOffset
	w.WriteUint16(2)  // reserved
	w.WriteUint16(uint16(axisCount))
	w.WriteUint16(20) // axisSize
	w.WriteUint16(uint16(len(fvar.Instances)))
	w.WriteUint16(uint16(instanceSize))
	for _, axis := range fvar.Axes {
		w.WriteBytes(axis.Tag[:])
		w.WriteUint32(uint32(axis.Min))
		w.WriteUint32(uint32(axis.Default))
		w.WriteUint32(uint32(axis.Max))
		w.WriteUint16(axis.Flags)
		w.WriteUint16(uint16(axis.NameID))
	}
	for i, instance := range fvar.Instances {
		if len(instance.Coords) != axisCount {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "fvar", Field: "coordinates", Offset: int64(i), Expected: int64(axisCount), Actual: int64(len(instance.Coords))}
		}
		w.WriteUint16(uint16(instance.SubfamilyNameID))
		w.WriteUint16(instance.Flags)
		for _, coord := range instance.Coords {
			w.WriteUint32(uint32(coord))
		}
		if instanceSize%4 == 2 {
			w.WriteUint16(uint16(instance.PostScriptNameID))
		}
	}
	return w.Bytes(), nil
}
