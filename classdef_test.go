package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestClassDef(t *testing.T) {
	var tests = []struct {
		name     string
		classDef ClassDef
		b        []byte
	}{
		{"empty", ClassDef{}, []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
		{"array", ClassDef{1: 1, 2: 2, 3: 0, 4: 1}, []byte{
			0x00, 0x01, 0x00, 0x01, 0x00, 0x04,
			0x00, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01,
		}},
		{"ranges", ClassDef{10: 1, 11: 1, 12: 1, 13: 1, 500: 2}, []byte{
			0x00, 0x02, 0x00, 0x02,
			0x00, 0x0A, 0x00, 0x0D, 0x00, 0x01,
			0x01, 0xF4, 0x01, 0xF4, 0x00, 0x02,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.classDef.Marshal()
			test.Error(t, err)
			test.Bytes(t, b, tt.b)

			classDef, n, err := ParseClassDef(b)
			test.Error(t, err)
			test.T(t, n, len(b))
			test.T(t, classDef, tt.classDef)
		})
	}
	test.T(t, ClassDef{10: 1, 500: 2}.GlyphCount(), 501)
}

func TestClassDefErrors(t *testing.T) {
	_, _, err := ParseClassDef([]byte{0x00, 0x03, 0x00, 0x00})
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)
	_, _, err = ParseClassDef([]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00})
	test.That(t, errors.Is(err, ErrTruncatedData), err)
}
