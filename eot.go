package varfont

import (
	"encoding/binary"
	"fmt"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/text/encoding/unicode"
)

// Specification:
// https://www.w3.org/Submission/EOT/

// EOT header versions and flags
const (
	eotVersion10         = 0x00010000
	eotVersion21         = 0x00020001
	eotVersion22         = 0x00020002
	eotMagicNumber       = 0x504C
	eotTTEmbedCompressed = 0x00000004
	eotTTEmbedXORed      = 0x10000000
)

var eotNameEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ParseEOT parses a font in the Embedded OpenType format. MicroType Express compressed fonts are not supported.
func ParseEOT(b []byte) (*Font, error) {
	if len(b) < 82 {
		return nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReaderLE(b)
	_ = r.ReadUint32()             // EOTSize
	fontDataSize := r.ReadUint32() // FontDataSize
	version := r.ReadUint32()      // Version
	if version != eotVersion10 && version != eotVersion21 && version != eotVersion22 {
		return nil, errVersion("EOT", version)
	}
	flags := r.ReadUint32()       // Flags
	_ = r.ReadBytes(10)           // FontPANOSE
	_ = r.ReadByte()              // Charset
	_ = r.ReadByte()              // Italic
	_ = r.ReadUint32()            // Weight
	_ = r.ReadUint16()            // fsType
	magicNumber := r.ReadUint16() // MagicNumber
	if magicNumber != eotMagicNumber {
		return nil, fmt.Errorf("EOT: bad magic number")
	}
	_ = r.ReadBytes(24) // Unicode and CodePage ranges
	checkSumAdjustment := r.ReadUint32()
	_ = r.ReadBytes(16) // Reserved
	_ = r.ReadUint16()  // Padding1

	familyNameSize := r.ReadUint16()        // FamilyNameSize
	_ = r.ReadBytes(uint32(familyNameSize)) // FamilyName
	_ = r.ReadUint16()                      // Padding2

	styleNameSize := r.ReadUint16()        // StyleNameSize
	_ = r.ReadBytes(uint32(styleNameSize)) // StyleName
	_ = r.ReadUint16()                     // Padding3

	versionNameSize := r.ReadUint16()        // VersionNameSize
	_ = r.ReadBytes(uint32(versionNameSize)) // VersionName
	_ = r.ReadUint16()                       // Padding4

	fullNameSize := r.ReadUint16()        // FullNameSize
	_ = r.ReadBytes(uint32(fullNameSize)) // FullName

	if version == eotVersion21 || version == eotVersion22 {
		_ = r.ReadUint16()                      // Padding5
		rootStringSize := r.ReadUint16()        // RootStringSize
		_ = r.ReadBytes(uint32(rootStringSize)) // RootString
	}
	if version == eotVersion22 {
		_ = r.ReadUint32()                     // RootStringCheckSum
		_ = r.ReadUint32()                     // EUDCCodePage
		_ = r.ReadUint16()                     // Padding6
		signatureSize := r.ReadUint16()        // SignatureSize
		_ = r.ReadBytes(uint32(signatureSize)) // Signature
		_ = r.ReadUint32()                     // EUDCFlags
		eudcFontSize := r.ReadUint32()         // EUDCFontSize
		_ = r.ReadBytes(uint32(eudcFontSize))  // EUDCFontData
	}

	fontData := r.ReadBytes(fontDataSize)
	if r.EOF() {
		return nil, ErrInvalidFontData
	}

	if flags&eotTTEmbedCompressed != 0 {
		return nil, errVersion("EOT compression", flags)
	}
	if flags&eotTTEmbedXORed != 0 {
		fontData = append([]byte{}, fontData...)
		for i := range fontData {
			fontData[i] ^= 0x50
		}
	}

	f, err := Parse(fontData)
	if err != nil {
		return nil, err
	}
	if head := f.Head(); head != nil && head.CheckSumAdjustment != checkSumAdjustment {
		tracer().Debugf("EOT: checkSumAdjustment 0x%08X does not match head table 0x%08X", checkSumAdjustment, head.CheckSumAdjustment)
	}
	return f, nil
}

// WriteEOT serializes the font and wraps it in the Embedded OpenType format, version 2.1 without compression. The names, PANOSE and ranges are taken from the name and OS/2 tables.
func (f *Font) WriteEOT() ([]byte, error) {
	sfnt, err := f.Serialize()
	if err != nil {
		return nil, err
	}

	var os2 OS2Table
	if table := f.OS2(); table != nil {
		os2 = *table
	}
	var checkSumAdjustment uint32
	if head := f.Head(); head != nil {
		checkSumAdjustment = head.CheckSumAdjustment
	}
	italic := byte(0)
	if os2.FsSelection&0x0001 != 0 {
		italic = 1
	}

	b := make([]byte, 0, 128+len(sfnt))
	b = binary.LittleEndian.AppendUint32(b, 0) // EOTSize
	b = binary.LittleEndian.AppendUint32(b, uint32(len(sfnt)))
	b = binary.LittleEndian.AppendUint32(b, eotVersion21)
	b = binary.LittleEndian.AppendUint32(b, 0) // Flags
	b = append(b, os2.Panose[:]...)
	b = append(b, 1, italic) // Charset is DEFAULT_CHARSET
	b = binary.LittleEndian.AppendUint32(b, uint32(os2.UsWeightClass))
	b = binary.LittleEndian.AppendUint16(b, os2.FsType)
	b = binary.LittleEndian.AppendUint16(b, eotMagicNumber)
	for _, v := range os2.UlUnicodeRange {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	for _, v := range os2.UlCodePageRange {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	b = binary.LittleEndian.AppendUint32(b, checkSumAdjustment)
	b = append(b, make([]byte, 16)...) // Reserved

	for _, nameID := range []NameID{NameFontFamily, NameFontSubfamily, NameVersion, NameFull} {
		var value string
		if name := f.Name(); name != nil {
			value, _ = name.Get(nameID)
		}
		s, err := eotNameEncoding.NewEncoder().String(value)
		if err != nil {
			return nil, fmt.Errorf("EOT: name %d: %w", nameID, err)
		} else if 0xFFFF < len(s) {
			return nil, &CodecError{Err: ErrOutOfRange, Table: "EOT", Field: "name", Expected: 0xFFFF, Actual: int64(len(s))}
		}
		b = binary.LittleEndian.AppendUint16(b, 0) // Padding
		b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
		b = append(b, s...)
	}
	b = binary.LittleEndian.AppendUint16(b, 0) // Padding5
	b = binary.LittleEndian.AppendUint16(b, 0) // RootStringSize
	b = append(b, sfnt...)
	binary.LittleEndian.PutUint32(b, uint32(len(b)))
	return b, nil
}
