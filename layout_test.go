package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

type layoutRange struct {
	Start, End uint8
}

type layoutSub struct {
	N      uint16
	Glyphs []uint16 `count:"N"`
}

type layoutHeader struct {
	Version uint16
	Tag     Tag
	Range   layoutRange
	Count   uint16
	Values  []int16      `count:"Count"`
	Subs    []*layoutSub `count:"Count" offset:"16"`
	Extra   *layoutSub   `offset:"var"`
	Skip    uint16       `layout:"-"`
	cache   int
}

func TestLayout(t *testing.T) {
	h := layoutHeader{
		Version: 1,
		Tag:     MustTag("test"),
		Range:   layoutRange{1, 2},
		Values:  []int16{-1, 2},
		Subs:    []*layoutSub{{N: 1, Glyphs: []uint16{7}}, {N: 1, Glyphs: []uint16{7}}},
		Skip:    5,
	}
	b, err := Marshal(&h)
	test.Error(t, err)
	test.Bytes(t, b, []byte{
		0x00, 0x01, 't', 'e', 's', 't', 0x01, 0x02,
		0x00, 0x02, 0xFF, 0xFF, 0x00, 0x02,
		0x00, 0x14, 0x00, 0x14, // identical subtables share an offset
		0x00, 0x00,             // nil
		0x00, 0x01, 0x00, 0x07,
	})

	var h2 layoutHeader
	n, err := Unmarshal(b, &h2)
	test.Error(t, err)
	test.T(t, n, 20)
	h.Count = 2
	h.Skip = 0
	test.T(t, h2, h)
}

type layoutAxes struct {
	AxisCount   uint16
	RegionCount uint16
	Regions     []layoutRegion `count:"RegionCount"`
}

type layoutRegion struct {
	Peaks []F2Dot14 `count:"AxisCount"`
}

func TestLayoutParentCount(t *testing.T) {
	axes := layoutAxes{
		AxisCount:   2,
		RegionCount: 1,
		Regions:     []layoutRegion{{Peaks: []F2Dot14{0x4000, -0x4000}}},
	}
	b, err := Marshal(axes)
	test.Error(t, err)
	test.Bytes(t, b, []byte{0x00, 0x02, 0x00, 0x01, 0x40, 0x00, 0xC0, 0x00})

	var axes2 layoutAxes
	_, err = Unmarshal(b, &axes2)
	test.Error(t, err)
	test.T(t, axes2, axes)

	axes.Regions[0].Peaks = append(axes.Regions[0].Peaks, 0)
	_, err = Marshal(axes)
	test.That(t, err != nil, "length does not match axis count")
}

type layoutBlob struct {
	Size uint16
	Data []uint8 `count:"Size"`
}

type layoutBlobs struct {
	Count uint16
	Blobs []*layoutBlob `count:"Count" offset:"var"`
}

func TestLayoutOffsetOverflow(t *testing.T) {
	blobs := layoutBlobs{Count: 3}
	for i := 0; i < 3; i++ {
		data := make([]uint8, 40000)
		data[0] = uint8(i)
		blobs.Blobs = append(blobs.Blobs, &layoutBlob{Size: 40000, Data: data})
	}

	_, err := Marshal(blobs)
	test.That(t, errors.Is(err, ErrOffsetOverflow), err)
	var codecErr *CodecError
	test.That(t, errors.As(err, &codecErr), err)
	test.T(t, codecErr.Field, "Blobs")

	b, width, err := MarshalAuto(blobs)
	test.Error(t, err)
	test.T(t, width, 32)
	test.T(t, len(b), 2+3*4+3*40002)

	var blobs2 layoutBlobs
	_, err = Decoder{OffsetWidth: 32}.Unmarshal(b, &blobs2)
	test.Error(t, err)
	test.T(t, blobs2, blobs)

	blobs.Count = 1
	blobs.Blobs = blobs.Blobs[:1]
	_, width, err = MarshalAuto(blobs)
	test.Error(t, err)
	test.T(t, width, 16)
}

func TestLayoutTruncated(t *testing.T) {
	h := layoutHeader{
		Values: []int16{1},
		Subs:   []*layoutSub{{N: 2, Glyphs: []uint16{1, 2}}},
	}
	b, err := Marshal(h)
	test.Error(t, err)

	var h2 layoutHeader
	_, err = Unmarshal(b[:5], &h2)
	test.That(t, errors.Is(err, ErrTruncatedData), err)

	// header is complete but the subtable is cut
	_, err = Unmarshal(b[:len(b)-1], &h2)
	test.That(t, errors.Is(err, ErrTruncatedData), err)

	_, err = Unmarshal(b, h2)
	test.That(t, err != nil, "expected pointer")
}

type layoutCounted struct {
	Count uint8
	Items []uint16 `count:"Count"`
}

func TestLayoutCountOverflow(t *testing.T) {
	_, err := Marshal(layoutCounted{Items: make([]uint16, 256)})
	test.That(t, errors.Is(err, ErrOutOfRange), err)
}

func TestUnion(t *testing.T) {
	u := Union{Name: "test", TagSize: 2, Variants: map[uint32]any{
		1: layoutRange{},
		2: layoutSub{},
	}}
	b, err := u.Marshal(1, layoutRange{3, 4})
	test.Error(t, err)
	test.Bytes(t, b, []byte{0x00, 0x01, 0x03, 0x04})

	tag, v, n, err := u.Unmarshal(b)
	test.Error(t, err)
	test.T(t, tag, uint32(1))
	test.T(t, v, any(&layoutRange{3, 4}))
	test.T(t, n, 4)

	_, err = u.Marshal(2, layoutRange{})
	test.That(t, err != nil, "variant type mismatch")

	_, _, _, err = u.Unmarshal([]byte{0x00, 0x03, 0x00})
	test.That(t, errors.Is(err, ErrUnsupportedVersion), err)
	_, _, _, err = u.Unmarshal([]byte{0x00})
	test.That(t, errors.Is(err, ErrTruncatedData), err)
}
