package varfont

import (
	"fmt"
	"math"
	"time"

	"github.com/tdewolff/parse/v2"
)

var epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// HeadTable is the font header.
type HeadTable struct {
	FontRevision           Fixed
	CheckSumAdjustment     uint32 // set by Font.Serialize
	Flags                  [16]bool
	UnitsPerEm             uint16
	Created, Modified      time.Time
	XMin, YMin, XMax, YMax int16
	MacStyle               [16]bool
	LowestRecPPEM          uint16
	FontDirectionHint      int16
	IndexToLocFormat       int16 // set by Font.Serialize when the font has a glyf table
	GlyphDataFormat        int16
}

func parseHead(b []byte) (*HeadTable, error) {
	if len(b) != 54 {
		return nil, errTruncated("head", "", 0, 54, int64(len(b)))
	}

	head := &HeadTable{}
	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return nil, errVersion("head", uint32(majorVersion)<<16|uint32(minorVersion))
	}
	head.FontRevision = Fixed(r.ReadInt32())
	head.CheckSumAdjustment = r.ReadUint32()
	if r.ReadUint32() != 0x5F0F3CF5 { // magicNumber
		return nil, fmt.Errorf("head: bad magic number")
	}
	head.Flags = Uint16ToFlags(r.ReadUint16())
	head.UnitsPerEm = r.ReadUint16()
	created := r.ReadUint64()
	modified := r.ReadUint64()
	if math.MaxInt64/uint64(time.Second) < created || math.MaxInt64/uint64(time.Second) < modified {
		return nil, fmt.Errorf("head: created and/or modified dates too large")
	}
	head.Created = epoch1904.Add(time.Second * time.Duration(created))
	head.Modified = epoch1904.Add(time.Second * time.Duration(modified))
	head.XMin = r.ReadInt16()
	head.YMin = r.ReadInt16()
	head.XMax = r.ReadInt16()
	head.YMax = r.ReadInt16()
	head.MacStyle = Uint16ToFlags(r.ReadUint16())
	head.LowestRecPPEM = r.ReadUint16()
	head.FontDirectionHint = r.ReadInt16()
	head.IndexToLocFormat = r.ReadInt16()
	if head.IndexToLocFormat != 0 && head.IndexToLocFormat != 1 {
		return nil, fmt.Errorf("head: bad indexToLocFormat")
	}
	head.GlyphDataFormat = r.ReadInt16()
	return head, nil
}

// Marshal encodes the head table.
func (head *HeadTable) Marshal() ([]byte, error) {
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint32(uint32(head.FontRevision))
	w.WriteUint32(head.CheckSumAdjustment)
	w.WriteUint32(0x5F0F3CF5) // magicNumber
	w.WriteUint16(flagsToUint16(head.Flags))
	w.WriteUint16(head.UnitsPerEm)
	w.WriteInt64(int64(longDateTime(head.Created)))
	w.WriteInt64(int64(longDateTime(head.Modified)))
	w.WriteInt16(head.XMin)
	w.WriteInt16(head.YMin)
	w.WriteInt16(head.XMax)
	w.WriteInt16(head.YMax)
	w.WriteUint16(flagsToUint16(head.MacStyle))
	w.WriteUint16(head.LowestRecPPEM)
	w.WriteInt16(head.FontDirectionHint)
	w.WriteInt16(head.IndexToLocFormat)
	w.WriteInt16(head.GlyphDataFormat)
	return w.Bytes(), nil
}

// longDateTime returns the number of seconds since 1904-01-01, or zero for dates before it.
func longDateTime(t time.Time) uint64 {
	if t.Before(epoch1904) {
		return 0
	}
	return uint64(t.Sub(epoch1904) / time.Second)
}
