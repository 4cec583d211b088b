package varfont

import (
	"fmt"
	"sort"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NameRecord is a string of the naming table.
type NameRecord struct {
	Platform PlatformID
	Encoding EncodingID
	Language uint16
	Name     NameID
	Value    string
}

func (record NameRecord) textEncoding() encoding.Encoding {
	if record.Platform == PlatformUnicode || record.Platform == PlatformWindows {
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	} else if record.Platform == PlatformMacintosh && record.Encoding == EncodingMacintoshRoman {
		return charmap.Macintosh
	}
	return nil
}

func (record NameRecord) decode(b []byte) string {
	if enc := record.textEncoding(); enc != nil {
		if s, _, err := transform.String(enc.NewDecoder(), string(b)); err == nil {
			return s
		}
	}
	return string(b)
}

func (record NameRecord) encode() ([]byte, error) {
	if enc := record.textEncoding(); enc != nil {
		s, _, err := transform.String(enc.NewEncoder(), record.Value)
		if err != nil {
			return nil, fmt.Errorf("name: record %d: %w", record.Name, err)
		}
		return []byte(s), nil
	}
	return []byte(record.Value), nil
}

// NameTable is the naming table.
type NameTable struct {
	Records  []NameRecord
	LangTags []string // version 1
}

// Get returns the Windows English string for the name ID, or the first matching record otherwise.
func (name *NameTable) Get(nameID NameID) (string, bool) {
	var value string
	found := false
	for _, record := range name.Records {
		if record.Name != nameID {
			continue
		} else if record.Platform == PlatformWindows && record.Language == LanguageWindowsEnglishUS {
			return record.Value, true
		} else if !found {
			value, found = record.Value, true
		}
	}
	return value, found
}

// Set replaces the Windows English record for the name ID, or adds it.
func (name *NameTable) Set(nameID NameID, value string) {
	for i, record := range name.Records {
		if record.Name == nameID && record.Platform == PlatformWindows && record.Language == LanguageWindowsEnglishUS {
			name.Records[i].Value = value
			return
		}
	}
	name.Records = append(name.Records, NameRecord{
		Platform: PlatformWindows,
		Encoding: EncodingWindowsUnicodeBMP,
		Language: LanguageWindowsEnglishUS,
		Name:     nameID,
		Value:    value,
	})
}

// Add returns the font-specific name ID of a Windows English record with the given value, adding a record when none exists yet.
func (name *NameTable) Add(value string) NameID {
	next := NameFontSpecific
	for _, record := range name.Records {
		if record.Name < NameFontSpecific {
			continue
		} else if record.Value == value && record.Platform == PlatformWindows && record.Language == LanguageWindowsEnglishUS {
			return record.Name
		} else if next <= record.Name {
			next = record.Name + 1
		}
	}
	name.Set(next, value)
	return next
}

func parseName(b []byte) (*NameTable, error) {
	if len(b) < 6 {
		return nil, errTruncated("name", "", 0, 6, int64(len(b)))
	}

	name := &NameTable{}
	r := parse.NewBinaryReaderBytes(b)
	version := r.ReadUint16()
	if version != 0 && version != 1 {
		return nil, errVersion("name", uint32(version))
	}
	count := r.ReadUint16()
	storageOffset := int64(r.ReadUint16())
	if int64(len(b)) < 6+12*int64(count) || int64(len(b)) < storageOffset {
		return nil, errTruncated("name", "nameRecord", 6, 12*int64(count), r.Len())
	}

	storage := func(length, offset uint16) ([]byte, error) {
		if int64(len(b))-storageOffset < int64(offset)+int64(length) {
			return nil, errTruncated("name", "storage", storageOffset+int64(offset), int64(length), int64(len(b))-storageOffset-int64(offset))
		}
		return b[storageOffset+int64(offset) : storageOffset+int64(offset)+int64(length)], nil
	}

	name.Records = make([]NameRecord, count)
	for i := range name.Records {
		record := &name.Records[i]
		record.Platform = PlatformID(r.ReadUint16())
		record.Encoding = EncodingID(r.ReadUint16())
		record.Language = r.ReadUint16()
		record.Name = NameID(r.ReadUint16())
		value, err := storage(r.ReadUint16(), r.ReadUint16())
		if err != nil {
			return nil, err
		}
		record.Value = record.decode(value)
	}
	if version == 1 {
		if r.Len() < 2 {
			return nil, errTruncated("name", "langTagCount", r.Pos(), 2, r.Len())
		}
		langTagCount := r.ReadUint16()
		if r.Len() < 4*int64(langTagCount) {
			return nil, errTruncated("name", "langTagRecord", r.Pos(), 4*int64(langTagCount), r.Len())
		}
		name.LangTags = make([]string, langTagCount)
		for i := range name.LangTags {
			value, err := storage(r.ReadUint16(), r.ReadUint16())
			if err != nil {
				return nil, err
			}
			name.LangTags[i] = NameRecord{Platform: PlatformUnicode}.decode(value)
		}
	}
	return name, nil
}

// Marshal encodes the name table. Records are sorted and identical strings share storage.
func (name *NameTable) Marshal() ([]byte, error) {
	records := append([]NameRecord{}, name.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		} else if a.Encoding != b.Encoding {
			return a.Encoding < b.Encoding
		} else if a.Language != b.Language {
			return a.Language < b.Language
		}
		return a.Name < b.Name
	})

	var storage []byte
	offsets := map[string]int{}
	store := func(value []byte) (uint16, uint16, error) {
		offset, ok := offsets[string(value)]
		if !ok {
			offset = len(storage)
			storage = append(storage, value...)
			offsets[string(value)] = offset
		}
		if 0xFFFF < offset || 0xFFFF < len(value) {
			return 0, 0, &CodecError{Err: ErrOffsetOverflow, Table: "name", Field: "storage", Expected: 0xFFFF, Actual: int64(offset)}
		}
		return uint16(len(value)), uint16(offset), nil
	}

	version := uint16(0)
	headerLength := 6 + 12*len(records)
	if 0 < len(name.LangTags) {
		version = 1
		headerLength += 2 + 4*len(name.LangTags)
	}
	if 0xFFFF < headerLength {
		return nil, &CodecError{Err: ErrOffsetOverflow, Table: "name", Field: "storageOffset", Expected: 0xFFFF, Actual: int64(headerLength)}
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(version)
	w.WriteUint16(uint16(len(records)))
	w.WriteUint16(uint16(headerLength)) // storageOffset
	for _, record := range records {
		value, err := record.encode()
		if err != nil {
			return nil, err
		}
		length, offset, err := store(value)
		if err != nil {
			return nil, err
		}
		w.WriteUint16(uint16(record.Platform))
		w.WriteUint16(uint16(record.Encoding))
		w.WriteUint16(record.Language)
		w.WriteUint16(uint16(record.Name))
		w.WriteUint16(length)
		w.WriteUint16(offset)
	}
	if version == 1 {
		w.WriteUint16(uint16(len(name.LangTags)))
		for _, langTag := range name.LangTags {
			value, err := NameRecord{Platform: PlatformUnicode, Value: langTag}.encode()
			if err != nil {
				return nil, err
			}
			length, offset, err := store(value)
			if err != nil {
				return nil, err
			}
			w.WriteUint16(length)
			w.WriteUint16(offset)
		}
	}
	w.WriteBytes(storage)
	return w.Bytes(), nil
}
