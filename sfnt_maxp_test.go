package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestMaxp(t *testing.T) {
	maxp := &MaxpTable{Version: MaxpVersion05, NumGlyphs: 935}
	b, err := maxp.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, []byte{0x00, 0x00, 0x50, 0x00, 0x03, 0xA7})
	maxp2, err := parseMaxp(b)
	test.Error(t, err)
	test.T(t, maxp2, maxp)

	maxp = &MaxpTable{Version: MaxpVersion10, NumGlyphs: 1117, MaxpLimits: MaxpLimits{MaxPoints: 98, MaxContours: 7, MaxZones: 2}}
	b, err = maxp.Marshal()
	test.Error(t, err)
	test.Bytes(t, b, append([]byte{
		0x00, 0x01, 0x00, 0x00, 0x04, 0x5D,
		0x00, 0x62, 0x00, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02,
	}, make([]byte, 16)...))
	maxp2, err = parseMaxp(b)
	test.Error(t, err)
	test.T(t, maxp2, maxp)

	_, err = (&MaxpTable{Version: 0x00020000}).Marshal()
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)
	_, err = parseMaxp([]byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x01})
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)
	_, err = parseMaxp(b[:10])
	test.That(t, errors.Is(err, ErrTruncatedData), err)
}
