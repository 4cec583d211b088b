package varfont

import "sort"

// OS2Table holds the OS/2 and Windows metrics. The fields present depend on the version.
type OS2Table struct {
	Version uint16
	OS2Metrics
	OS2CodePages   // version 1 and up
	OS2Heights     // version 2 and up
	OS2OpticalSize // version 5
}

// OS2Metrics are the fields of version 0.
type OS2Metrics struct {
	XAvgCharWidth       int16
	UsWeightClass       uint16
	UsWidthClass        uint16
	FsType              uint16
	YSubscriptXSize     int16
	YSubscriptYSize     int16
	YSubscriptXOffset   int16
	YSubscriptYOffset   int16
	YSuperscriptXSize   int16
	YSuperscriptYSize   int16
	YSuperscriptXOffset int16
	YSuperscriptYOffset int16
	YStrikeoutSize      int16
	YStrikeoutPosition  int16
	SFamilyClass        int16
	Panose              [10]uint8
	UlUnicodeRange      [4]uint32
	AchVendID           Tag
	FsSelection         uint16
	UsFirstCharIndex    uint16
	UsLastCharIndex     uint16
	STypoAscender       int16
	STypoDescender      int16
	STypoLineGap        int16
	UsWinAscent         uint16
	UsWinDescent        uint16
}

// OS2CodePages are the fields added in version 1.
type OS2CodePages struct {
	UlCodePageRange [2]uint32
}

// OS2Heights are the fields added in version 2.
type OS2Heights struct {
	SxHeight      int16
	SCapHeight    int16
	UsDefaultChar uint16
	UsBreakChar   uint16
	UsMaxContext  uint16
}

// OS2OpticalSize are the fields added in version 5.
type OS2OpticalSize struct {
	UsLowerOpticalPointSize uint16
	UsUpperOpticalPointSize uint16
}

type os2Version0 struct {
	OS2Metrics
}

type os2Version1 struct {
	OS2Metrics
	OS2CodePages
}

type os2Version4 struct {
	OS2Metrics
	OS2CodePages
	OS2Heights
}

type os2Version5 struct {
	OS2Metrics
	OS2CodePages
	OS2Heights
	OS2OpticalSize
}

var os2Union = Union{
	Name:    "OS/2",
	TagSize: 2,
	Variants: map[uint32]any{
		0: os2Version0{},
		1: os2Version1{},
		2: os2Version4{},
		3: os2Version4{},
		4: os2Version4{},
		5: os2Version5{},
	},
}

func parseOS2(b []byte) (*OS2Table, error) {
	version, v, _, err := os2Union.Unmarshal(b)
	if err != nil {
		return nil, err
	}

	os2 := &OS2Table{Version: uint16(version)}
	switch data := v.(type) {
	case *os2Version0:
		os2.OS2Metrics = data.OS2Metrics
	case *os2Version1:
		os2.OS2Metrics = data.OS2Metrics
		os2.OS2CodePages = data.OS2CodePages
	case *os2Version4:
		os2.OS2Metrics = data.OS2Metrics
		os2.OS2CodePages = data.OS2CodePages
		os2.OS2Heights = data.OS2Heights
	case *os2Version5:
		os2.OS2Metrics = data.OS2Metrics
		os2.OS2CodePages = data.OS2CodePages
		os2.OS2Heights = data.OS2Heights
		os2.OS2OpticalSize = data.OS2OpticalSize
	}
	return os2, nil
}

// Marshal encodes the OS/2 table with the fields of its version.
func (os2 *OS2Table) Marshal() ([]byte, error) {
	var v any
	switch os2.Version {
	case 0:
		v = os2Version0{os2.OS2Metrics}
	case 1:
		v = os2Version1{os2.OS2Metrics, os2.OS2CodePages}
	case 2, 3, 4:
		v = os2Version4{os2.OS2Metrics, os2.OS2CodePages, os2.OS2Heights}
	case 5:
		v = os2Version5{os2.OS2Metrics, os2.OS2CodePages, os2.OS2Heights, os2.OS2OpticalSize}
	default:
		return nil, errVersion("OS/2", uint32(os2.Version))
	}
	return os2Union.Marshal(uint32(os2.Version), v)
}

// os2UnicodeRange returns the ulUnicodeRange bits for the given code points.
func os2UnicodeRange(rs []rune) [4]uint32 {
	v := [4]uint32{}
	for _, r := range rs {
		if bit := os2UnicodeRangeBit(r); bit != -1 {
			v[bit/32] |= 1 << (bit % 32)
		}
		if 0x10000 <= r && r < 0x110000 {
			v[1] |= 1 << 25 // bit 57, non-plane 0
		}
	}
	return v
}

// os2UnicodeRanges are the exclusive upper bounds of the Unicode blocks and their ulUnicodeRange bit, or -1 for unassigned blocks.
var os2UnicodeRanges = []struct {
	end rune
	bit int
}{
	{0x80, 0}, {0x0100, 1}, {0x0180, 2}, {0x0250, 3}, {0x02B0, 4}, {0x0300, 5},
	{0x0370, 6}, {0x0400, 7}, {0x0500, 9}, {0x0530, -1}, {0x0590, 10}, {0x0600, 11},
	{0x0700, 13}, {0x0750, 71}, {0x0780, -1}, {0x07C0, 72}, {0x0800, 14}, {0x0900, -1},
	{0x0980, 15}, {0x0A00, 16}, {0x0A80, 17}, {0x0B00, 18}, {0x0B80, 19}, {0x0C00, 20},
	{0x0C80, 21}, {0x0D00, 22}, {0x0D80, 23}, {0x0E00, 73}, {0x0E80, 24}, {0x0F00, 25},
	{0x1000, 70}, {0x10A0, 74}, {0x1100, 26}, {0x1200, 28}, {0x1380, 75}, {0x13A0, -1},
	{0x1400, 76}, {0x1680, 77}, {0x16A0, 78}, {0x1700, 79}, {0x1720, 84}, {0x1780, -1},
	{0x1800, 80}, {0x18B0, 81}, {0x1900, -1}, {0x1950, 93}, {0x1980, 94}, {0x19E0, 95},
	{0x1A00, -1}, {0x1A20, 96}, {0x1B00, -1}, {0x1B80, 27}, {0x1BC0, 112}, {0x1C00, -1},
	{0x1C50, 113}, {0x1C80, 114}, {0x1E00, -1}, {0x1F00, 29}, {0x2000, 30}, {0x2070, 31},
	{0x20A0, 32}, {0x20D0, 33}, {0x2100, 34}, {0x2150, 35}, {0x2190, 36}, {0x2200, 37},
	{0x2300, 38}, {0x2400, 39}, {0x2440, 40}, {0x2460, 41}, {0x2500, 42}, {0x2580, 43},
	{0x25A0, 44}, {0x2600, 45}, {0x2700, 46}, {0x27C0, 47}, {0x2800, -1}, {0x2900, 82},
	{0x2C00, -1}, {0x2C60, 97}, {0x2C80, -1}, {0x2D00, 8}, {0x2D30, -1}, {0x2D80, 98},
	{0x3000, -1}, {0x3040, 48}, {0x30A0, 49}, {0x3100, 50}, {0x3130, 51}, {0x3190, 52},
	{0x3200, -1}, {0x3300, 54}, {0x3400, 55}, {0x31C0, -1}, {0x31F0, 61}, {0x4DC0, -1},
	{0x4E00, 99}, {0xA000, 59}, {0xA490, 83}, {0xA500, -1}, {0xA640, 12}, {0xA800, -1},
	{0xA830, 100}, {0xA840, -1}, {0xA880, 53}, {0xA8E0, 115}, {0xA900, -1}, {0xA930, 116},
	{0xA960, 117}, {0xAA00, -1}, {0xAA60, 118}, {0xAC00, -1}, {0xD7AF, 56}, {0xE00, -1},
	{0xF900, 60}, {0xFB00, -1}, {0xFB50, 62}, {0xFE00, 63}, {0xFE10, 91}, {0xFE20, 65},
	{0xFE30, 64}, {0xFE50, -1}, {0xFE70, 66}, {0xFF00, 67}, {0xFFF0, 68}, {0x10000, 69},
	{0x10080, 101}, {0x10140, -1}, {0x10190, 102}, {0x101D0, 119}, {0x10200, 120}, {0x102A0, -1},
	{0x102E0, 121}, {0x10300, -1}, {0x10330, 85}, {0x10350, 86}, {0x10380, -1}, {0x103A0, 103},
	{0x103E0, 104}, {0x10400, -1}, {0x10450, 87}, {0x10480, 105}, {0x104B0, 106}, {0x10800, -1},
	{0x10840, 107}, {0x10A00, -1}, {0x10A60, 108}, {0x12000, -1}, {0x12400, 110}, {0x1D000, -1},
	{0x1D100, 88}, {0x1D300, -1}, {0x1D360, 109}, {0x1D380, 111}, {0x1D400, -1}, {0x1D800, 89},
	{0x1F030, -1}, {0x1F0A0, 122}, {0xE0000, -1}, {0xE0080, 92}, {0xF0000, -1}, {0xFFFFE, 90},
}

func os2UnicodeRangeBit(r rune) int {
	i := sort.Search(len(os2UnicodeRanges), func(i int) bool { return r < os2UnicodeRanges[i].end })
	if i == len(os2UnicodeRanges) {
		return -1
	}
	return os2UnicodeRanges[i].bit
}
