package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestName(t *testing.T) {
	name := &NameTable{Records: []NameRecord{
		{PlatformWindows, EncodingWindowsUnicodeBMP, LanguageWindowsEnglishUS, NameFontFamily, "Square"},
		{PlatformWindows, EncodingWindowsUnicodeBMP, LanguageWindowsEnglishUS, NameFontSpecific, "Bold"},
		{PlatformWindows, EncodingWindowsUnicodeBMP, LanguageWindowsEnglishUS, NameFull, "Square"},
		{PlatformMacintosh, EncodingMacintoshRoman, 0, NameFontFamily, "Café"},
	}}
	b, err := name.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0x00, 0x00, 0x00, 0x04, 0x00, 0x36,
		0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x00,
		0x00, 0x03, 0x00, 0x01, 0x04, 0x09, 0x00, 0x01, 0x00, 0x0C, 0x00, 0x04,
		0x00, 0x03, 0x00, 0x01, 0x04, 0x09, 0x00, 0x04, 0x00, 0x0C, 0x00, 0x04, // shares storage
		0x00, 0x03, 0x00, 0x01, 0x04, 0x09, 0x01, 0x00, 0x00, 0x08, 0x00, 0x10,
		'C', 'a', 'f', 0x8E,
		0x00, 'S', 0x00, 'q', 0x00, 'u', 0x00, 'a', 0x00, 'r', 0x00, 'e',
		0x00, 'B', 0x00, 'o', 0x00, 'l', 0x00, 'd',
	})

	name2, err := parseName(b)
	test.Error(t, err)
	test.T(t, len(name2.Records), 4)
	test.T(t, name2.Records[0].Value, "Café")
	test.T(t, name2.Records[0].Platform, PlatformMacintosh)
	family, ok := name2.Get(NameFontFamily)
	test.That(t, ok)
	test.T(t, family, "Square", "prefers Windows English")
	full, _ := name2.Get(NameFull)
	test.T(t, full, "Square")
	_, ok = name2.Get(NamePostScript)
	test.That(t, !ok)

	b2, err := name2.Marshal()
	test.Error(t, err)
	test.Bytes(t, b2, b)
}

func TestNameAdd(t *testing.T) {
	name := &NameTable{}
	name.Set(NameFontFamily, "Square")
	name.Set(NameFontFamily, "Circle")
	test.T(t, len(name.Records), 1)
	family, _ := name.Get(NameFontFamily)
	test.T(t, family, "Circle")

	test.T(t, name.Add("Weight"), NameFontSpecific)
	test.T(t, name.Add("Width"), NameFontSpecific+1)
	test.T(t, name.Add("Weight"), NameFontSpecific, "reuses record")
	test.T(t, len(name.Records), 3)

	// a non-English record with the same value is not reused
	name.Records = append(name.Records, NameRecord{PlatformWindows, EncodingWindowsUnicodeBMP, 0x0407, 300, "Slant"})
	test.T(t, name.Add("Slant"), NameID(301))
}

func TestNameLangTags(t *testing.T) {
	name := &NameTable{
		Records:  []NameRecord{{PlatformWindows, EncodingWindowsUnicodeBMP, 0x8000, NameFontFamily, "A"}},
		LangTags: []string{"en-US"},
	}
	b, err := name.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0x00, 0x01, 0x00, 0x01, 0x00, 0x18,
		0x00, 0x03, 0x00, 0x01, 0x80, 0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x0A, 0x00, 0x02,
		0x00, 'A',
		0x00, 'e', 0x00, 'n', 0x00, '-', 0x00, 'U', 0x00, 'S',
	})

	name2, err := parseName(b)
	test.Error(t, err)
	test.T(t, name2, name)
	family, ok := name2.Get(NameFontFamily)
	test.That(t, ok)
	test.T(t, family, "A", "falls back to first record")
}

func TestNameErrors(t *testing.T) {
	_, err := parseName([]byte{0x00, 0x00, 0x00})
	test.That(t, errors.Is(err, ErrTruncatedData), err)
	_, err = parseName([]byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x06})
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)
	_, err = parseName([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x06})
	test.That(t, errors.Is(err, ErrTruncatedData), err)

	// string beyond the storage
	_, err = parseName([]byte{
		0x00, 0x00, 0x00, 0x01, 0x00, 0x12,
		0x00, 0x03, 0x00, 0x01, 0x04, 0x09, 0x00, 0x01, 0x00, 0x04, 0x00, 0x00,
		0x00, 0x41,
	})
	test.That(t, errors.Is(err, ErrTruncatedData), err)

	// version 1 without language tags
	_, err = parseName([]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06})
	test.That(t, errors.Is(err, ErrTruncatedData), err)
}
