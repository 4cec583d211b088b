package varfont

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// The layout engine encodes and decodes records described by Go structs. Exported fields are
// coded in declaration order. Field tags:
//
//	count:"Name"        slice length is the value of the integer field Name, searched in the
//	                    current record and then in enclosing records
//	offset:"16|32|var"  pointer (or slice of pointers) to a subtable, stored as an offset from
//	                    the start of the enclosing record; a zero offset is a nil pointer
//	layout:"-"          field is skipped
//
// Nested structs and array elements are coded inline and share the offset base of the record
// that contains them. Records that need a non-declarative layout implement layoutCodec.

type layoutCodec interface {
	decodeLayout(b []byte, pos int) (int, error)
	appendLayout(dst []byte) ([]byte, error)
}

var layoutCodecType = reflect.TypeOf((*layoutCodec)(nil)).Elem()

const varOffset = -1

type fieldInfo struct {
	index  int
	name   string
	count  string
	offset int // 0 for inline fields, 16, 32 or varOffset
}

type recordInfo struct {
	name   string
	fields []fieldInfo
}

func (info *recordInfo) field(name string) (int, bool) {
	for i, f := range info.fields {
		if f.name == name {
			return i, true
		}
	}
	return 0, false
}

var recordInfos sync.Map

func getRecordInfo(t reflect.Type) (*recordInfo, error) {
	if info, ok := recordInfos.Load(t); ok {
		return info.(*recordInfo), nil
	}

	info := &recordInfo{name: t.Name()}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("layout") == "-" {
			continue
		}
		f := fieldInfo{
			index: i,
			name:  sf.Name,
			count: sf.Tag.Get("count"),
		}
		switch offset := sf.Tag.Get("offset"); offset {
		case "":
		case "16":
			f.offset = 16
		case "32":
			f.offset = 32
		case "var":
			f.offset = varOffset
		default:
			return nil, fmt.Errorf("%s.%s: bad offset tag %q", t.Name(), sf.Name, offset)
		}

		kind := sf.Type.Kind()
		if f.offset != 0 {
			if kind != reflect.Ptr && (kind != reflect.Slice || sf.Type.Elem().Kind() != reflect.Ptr) {
				return nil, fmt.Errorf("%s.%s: offset field must be a pointer or slice of pointers", t.Name(), sf.Name)
			}
		} else if kind == reflect.Ptr {
			return nil, fmt.Errorf("%s.%s: pointer field needs an offset tag", t.Name(), sf.Name)
		}
		if kind == reflect.Slice && f.count == "" {
			return nil, fmt.Errorf("%s.%s: slice field needs a count tag", t.Name(), sf.Name)
		}
		info.fields = append(info.fields, f)
	}
	recordInfos.Store(t, info)
	return info, nil
}

// scope is the chain of records that count fields are looked up in.
type scope struct {
	parent *scope
	info   *recordInfo
	v      reflect.Value
	counts map[string]int // counts derived from slice lengths while encoding
}

func (s *scope) lookup(name string) (int, error) {
	for ; s != nil; s = s.parent {
		if n, ok := s.counts[name]; ok {
			return n, nil
		}
		if i, ok := s.info.field(name); ok {
			if n, ok := intValue(s.v.Field(s.info.fields[i].index)); ok {
				return n, nil
			}
			return 0, fmt.Errorf("count field %s is not an integer", name)
		}
	}
	return 0, fmt.Errorf("count field %s not found", name)
}

func intValue(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return int(v.Uint()), true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return int(v.Int()), true
	}
	return 0, false
}

func scalarSize(t reflect.Type) int {
	if t == reflect.TypeOf(Uint24(0)) {
		return 3
	}
	switch t.Kind() {
	case reflect.Uint8, reflect.Int8:
		return 1
	case reflect.Uint16, reflect.Int16:
		return 2
	case reflect.Uint32, reflect.Int32:
		return 4
	}
	return 0
}

// staticSize is the minimum number of bytes a value of type t occupies.
func staticSize(t reflect.Type) int {
	if n := scalarSize(t); n != 0 {
		return n
	}
	switch t.Kind() {
	case reflect.Array:
		return t.Len() * staticSize(t.Elem())
	case reflect.Struct:
		info, err := getRecordInfo(t)
		if err != nil {
			return 0
		}
		n := 0
		for _, f := range info.fields {
			if f.offset == 16 || f.offset == varOffset {
				n += 2
			} else if f.offset == 32 {
				n += 4
			} else if t.Field(f.index).Type.Kind() != reflect.Slice {
				n += staticSize(t.Field(f.index).Type)
			}
		}
		return n
	}
	return 0
}

func offsetWidth(field, width int) int {
	if field == varOffset {
		if width == 32 {
			return 32
		}
		return 16
	}
	return field
}

func annotate(err error, record, field string) error {
	var codecErr *CodecError
	if errors.As(err, &codecErr) && codecErr.Table == "" {
		codecErr.Table = record
		codecErr.Field = field
	}
	return err
}

////////////////////////////////////////////////////////////////

// Decoder decodes records described by Go structs.
type Decoder struct {
	// OffsetWidth is the width in bits of offset fields tagged `offset:"var"`, either 16 (default) or 32.
	OffsetWidth int
}

// Unmarshal decodes b into the struct pointed to by v and returns the number of bytes of the record itself, excluding its subtables.
func Unmarshal(b []byte, v any) (int, error) {
	return Decoder{}.Unmarshal(b, v)
}

// Unmarshal decodes b into the struct pointed to by v and returns the number of bytes of the record itself, excluding its subtables.
func (dec Decoder) Unmarshal(b []byte, v any) (int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return 0, fmt.Errorf("unmarshal: expected pointer to struct, got %T", v)
	}
	d := &decodeState{b: b, offsetWidth: dec.OffsetWidth}
	end, err := d.record(rv.Elem(), 0, nil)
	return end, err
}

type decodeState struct {
	b           []byte
	offsetWidth int
}

type pendingOffset struct {
	v      reflect.Value
	offset int
	field  string
}

func (d *decodeState) readOffset(pos, width int) (int, error) {
	if width == 16 {
		off, _, err := Decode[uint16](d.b, pos)
		return int(off), err
	}
	off, _, err := Decode[uint32](d.b, pos)
	return int(off), err
}

// record decodes a record that is the base for its offsets.
func (d *decodeState) record(v reflect.Value, start int, parent *scope) (int, error) {
	if v.Addr().Type().Implements(layoutCodecType) {
		return v.Addr().Interface().(layoutCodec).decodeLayout(d.b, start)
	}

	var pending []pendingOffset
	end, s, err := d.fields(v, start, parent, &pending)
	if err != nil {
		return 0, err
	}
	for _, p := range pending {
		if p.offset == 0 {
			continue
		}
		target := start + p.offset
		if len(d.b) < target {
			return 0, errTruncated(s.info.name, p.field, int64(target), 1, 0)
		}
		child := reflect.New(p.v.Type().Elem())
		if _, err := d.value(child.Elem(), target, s, true, nil); err != nil {
			return 0, err
		}
		p.v.Set(child)
	}
	return end - start, nil
}

// fields decodes the fields of an inline struct, collecting its offsets.
func (d *decodeState) fields(v reflect.Value, pos int, parent *scope, pending *[]pendingOffset) (int, *scope, error) {
	info, err := getRecordInfo(v.Type())
	if err != nil {
		return 0, nil, err
	}
	s := &scope{parent: parent, info: info, v: v}
	for _, f := range info.fields {
		fv := v.Field(f.index)
		if f.offset != 0 {
			width := offsetWidth(f.offset, d.offsetWidth)
			if fv.Kind() == reflect.Ptr {
				off, err := d.readOffset(pos, width)
				if err != nil {
					return 0, nil, annotate(err, info.name, f.name)
				}
				pos += width / 8
				*pending = append(*pending, pendingOffset{fv, off, f.name})
				continue
			}

			n, err := s.lookup(f.count)
			if err != nil {
				return 0, nil, fmt.Errorf("%s.%s: %w", info.name, f.name, err)
			} else if len(d.b)-pos < n*width/8 {
				return 0, nil, errTruncated(info.name, f.name, int64(pos), int64(n*width/8), int64(len(d.b)-pos))
			}
			fv.Set(reflect.MakeSlice(fv.Type(), n, n))
			for i := 0; i < n; i++ {
				off, _ := d.readOffset(pos, width)
				pos += width / 8
				*pending = append(*pending, pendingOffset{fv.Index(i), off, f.name})
			}
			continue
		}

		if fv.Kind() == reflect.Slice {
			n, err := s.lookup(f.count)
			if err != nil {
				return 0, nil, fmt.Errorf("%s.%s: %w", info.name, f.name, err)
			}
			size := staticSize(fv.Type().Elem())
			if len(d.b)-pos < n*size {
				return 0, nil, errTruncated(info.name, f.name, int64(pos), int64(n*size), int64(len(d.b)-pos))
			}
			fv.Set(reflect.MakeSlice(fv.Type(), n, n))
			for i := 0; i < n; i++ {
				if pos, err = d.value(fv.Index(i), pos, s, false, pending); err != nil {
					return 0, nil, annotate(err, info.name, f.name)
				}
			}
			continue
		}

		if pos, err = d.value(fv, pos, s, false, pending); err != nil {
			return 0, nil, annotate(err, info.name, f.name)
		}
	}
	return pos, s, nil
}

// value decodes a scalar, array or struct at pos and returns the position after it. When isRecord is set, structs are decoded as offset bases.
func (d *decodeState) value(v reflect.Value, pos int, s *scope, isRecord bool, pending *[]pendingOffset) (int, error) {
	if v.Kind() == reflect.Struct && v.Addr().Type().Implements(layoutCodecType) {
		n, err := v.Addr().Interface().(layoutCodec).decodeLayout(d.b, pos)
		return pos + n, err
	}

	if n := scalarSize(v.Type()); n != 0 {
		if len(d.b)-pos < n || pos < 0 {
			return 0, errTruncated("", "", int64(pos), int64(n), int64(max(len(d.b)-pos, 0)))
		}
		b := d.b[pos : pos+n]
		var u uint64
		switch n {
		case 1:
			u = uint64(b[0])
		case 2:
			u = uint64(binary.BigEndian.Uint16(b))
		case 3:
			u = uint64(b[0])<<16 | uint64(b[1])<<8 | uint64(b[2])
		case 4:
			u = uint64(binary.BigEndian.Uint32(b))
		}
		switch v.Kind() {
		case reflect.Int8:
			v.SetInt(int64(int8(u)))
		case reflect.Int16:
			v.SetInt(int64(int16(u)))
		case reflect.Int32:
			v.SetInt(int64(int32(u)))
		default:
			v.SetUint(u)
		}
		return pos + n, nil
	}

	switch v.Kind() {
	case reflect.Array:
		var err error
		for i := 0; i < v.Len(); i++ {
			if pos, err = d.value(v.Index(i), pos, s, false, pending); err != nil {
				return 0, err
			}
		}
		return pos, nil
	case reflect.Struct:
		if isRecord {
			n, err := d.record(v, pos, s)
			return pos + n, err
		}
		end, _, err := d.fields(v, pos, s, pending)
		return end, err
	}
	return 0, fmt.Errorf("unsupported field type %v", v.Type())
}

////////////////////////////////////////////////////////////////

// Encoder encodes records described by Go structs.
type Encoder struct {
	// OffsetWidth is the width in bits of offset fields tagged `offset:"var"`, either 16 (default) or 32.
	OffsetWidth int
}

// Marshal encodes the struct v, followed by its subtables.
func Marshal(v any) ([]byte, error) {
	return Encoder{}.Marshal(v)
}

// MarshalAuto encodes v with 16-bit variable offsets, and with 32-bit variable offsets when they overflow. It returns the offset width used.
func MarshalAuto(v any) ([]byte, int, error) {
	b, err := Encoder{OffsetWidth: 16}.Marshal(v)
	if errors.Is(err, ErrOffsetOverflow) {
		tracer().Debugf("layout: %T overflows 16-bit offsets, retrying with 32-bit offsets", v)
		b, err = Encoder{OffsetWidth: 32}.Marshal(v)
		return b, 32, err
	}
	return b, 16, err
}

// Marshal encodes the struct v, followed by its subtables.
func (enc Encoder) Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("marshal: nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("marshal: expected struct, got %T", v)
	}
	if !rv.CanAddr() {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr.Elem()
	}
	e := &encodeState{offsetWidth: enc.OffsetWidth}
	return e.record(rv, nil)
}

type encodeState struct {
	offsetWidth int
}

type offsetSlot struct {
	pos    int
	width  int
	child  []byte
	record string
	field  string
}

// record encodes a record and lays out its subtables after it.
func (e *encodeState) record(v reflect.Value, parent *scope) ([]byte, error) {
	if v.Addr().Type().Implements(layoutCodecType) {
		return v.Addr().Interface().(layoutCodec).appendLayout(nil)
	}

	var slots []offsetSlot
	buf, err := e.fields(nil, v, parent, &slots)
	if err != nil {
		return nil, err
	}

	// identical subtables are written once
	written := map[string]int{}
	for _, slot := range slots {
		offset, ok := written[string(slot.child)]
		if !ok {
			offset = len(buf)
			buf = append(buf, slot.child...)
			written[string(slot.child)] = offset
		}
		if slot.width == 16 {
			if 0xFFFF < offset {
				return nil, &CodecError{
					Err:      ErrOffsetOverflow,
					Table:    slot.record,
					Field:    slot.field,
					Expected: 0xFFFF,
					Actual:   int64(offset),
				}
			}
			binary.BigEndian.PutUint16(buf[slot.pos:], uint16(offset))
		} else {
			binary.BigEndian.PutUint32(buf[slot.pos:], uint32(offset))
		}
	}
	return buf, nil
}

func (e *encodeState) fields(buf []byte, v reflect.Value, parent *scope, slots *[]offsetSlot) ([]byte, error) {
	info, err := getRecordInfo(v.Type())
	if err != nil {
		return nil, err
	}
	s := &scope{parent: parent, info: info, v: v, counts: map[string]int{}}

	// count fields in this record follow from the slice lengths
	for _, f := range info.fields {
		if f.count == "" {
			continue
		}
		n := v.Field(f.index).Len()
		if _, local := info.field(f.count); local {
			if prev, ok := s.counts[f.count]; ok && prev != n {
				return nil, fmt.Errorf("%s.%s: length %d conflicts with %s=%d", info.name, f.name, n, f.count, prev)
			}
			s.counts[f.count] = n
		} else if m, err := parent.lookup(f.count); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", info.name, f.name, err)
		} else if m != n {
			return nil, fmt.Errorf("%s.%s: length %d does not match %s=%d", info.name, f.name, n, f.count, m)
		}
	}

	for _, f := range info.fields {
		fv := v.Field(f.index)
		if f.offset != 0 {
			width := offsetWidth(f.offset, e.offsetWidth)
			targets := []reflect.Value{fv}
			if fv.Kind() == reflect.Slice {
				targets = targets[:0]
				for i := 0; i < fv.Len(); i++ {
					targets = append(targets, fv.Index(i))
				}
			}
			for _, target := range targets {
				if !target.IsNil() {
					child, err := e.record(target.Elem(), s)
					if err != nil {
						return nil, err
					}
					*slots = append(*slots, offsetSlot{len(buf), width, child, info.name, f.name})
				}
				buf = append(buf, make([]byte, width/8)...)
			}
			continue
		}

		if n, ok := s.counts[f.name]; ok {
			if buf, err = appendCount(buf, fv.Type(), n); err != nil {
				return nil, annotate(err, info.name, f.name)
			}
			continue
		}

		if fv.Kind() == reflect.Slice {
			for i := 0; i < fv.Len(); i++ {
				if buf, err = e.value(buf, fv.Index(i), s, slots); err != nil {
					return nil, annotate(err, info.name, f.name)
				}
			}
			continue
		}
		if buf, err = e.value(buf, fv, s, slots); err != nil {
			return nil, annotate(err, info.name, f.name)
		}
	}
	return buf, nil
}

func (e *encodeState) value(buf []byte, v reflect.Value, s *scope, slots *[]offsetSlot) ([]byte, error) {
	if v.Kind() == reflect.Struct && v.CanAddr() && v.Addr().Type().Implements(layoutCodecType) {
		return v.Addr().Interface().(layoutCodec).appendLayout(buf)
	}

	if n := scalarSize(v.Type()); n != 0 {
		var u uint64
		if v.CanInt() {
			u = uint64(v.Int())
		} else {
			u = v.Uint()
		}
		switch n {
		case 1:
			return append(buf, byte(u)), nil
		case 2:
			return binary.BigEndian.AppendUint16(buf, uint16(u)), nil
		case 3:
			return append(buf, byte(u>>16), byte(u>>8), byte(u)), nil
		}
		return binary.BigEndian.AppendUint32(buf, uint32(u)), nil
	}

	switch v.Kind() {
	case reflect.Array:
		var err error
		for i := 0; i < v.Len(); i++ {
			if buf, err = e.value(buf, v.Index(i), s, slots); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Struct:
		return e.fields(buf, v, s, slots)
	}
	return nil, fmt.Errorf("unsupported field type %v", v.Type())
}

func appendCount(buf []byte, t reflect.Type, n int) ([]byte, error) {
	size := scalarSize(t)
	if size == 0 {
		return nil, fmt.Errorf("count field of type %v", t)
	}
	limit := 1<<(8*size) - 1
	if t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64 {
		limit >>= 1
	}
	if limit < n {
		return nil, &CodecError{Err: ErrOutOfRange, Expected: int64(limit), Actual: int64(n)}
	}
	switch size {
	case 1:
		return append(buf, byte(n)), nil
	case 2:
		return binary.BigEndian.AppendUint16(buf, uint16(n)), nil
	case 3:
		return append(buf, byte(n>>16), byte(n>>8), byte(n)), nil
	}
	return binary.BigEndian.AppendUint32(buf, uint32(n)), nil
}

////////////////////////////////////////////////////////////////

// Union is a record whose layout depends on a leading version or format tag.
type Union struct {
	Name     string
	TagSize  int            // 1, 2 or 4 bytes
	Variants map[uint32]any // prototype struct value for each tag
}

func (u Union) readTag(b []byte) (uint32, error) {
	switch u.TagSize {
	case 1:
		tag, _, err := Decode[uint8](b, 0)
		return uint32(tag), err
	case 2:
		tag, _, err := Decode[uint16](b, 0)
		return uint32(tag), err
	}
	tag, _, err := Decode[uint32](b, 0)
	return tag, err
}

// Unmarshal decodes the tag and the matching variant. It returns the tag, a pointer to the decoded variant and the length of the record.
func (u Union) Unmarshal(b []byte) (uint32, any, int, error) {
	tag, err := u.readTag(b)
	if err != nil {
		return 0, nil, 0, annotate(err, u.Name, "version")
	}
	proto, ok := u.Variants[tag]
	if !ok {
		return tag, nil, 0, errVersion(u.Name, tag)
	}
	v := reflect.New(reflect.TypeOf(proto))
	n, err := Unmarshal(b[u.TagSize:], v.Interface())
	if err != nil {
		return tag, nil, 0, annotate(err, u.Name, "")
	}
	return tag, v.Interface(), u.TagSize + n, nil
}

// Marshal encodes the tag followed by the variant v, which must be of the type registered for the tag.
func (u Union) Marshal(tag uint32, v any) ([]byte, error) {
	proto, ok := u.Variants[tag]
	if !ok {
		return nil, errVersion(u.Name, tag)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Type() != reflect.TypeOf(proto) {
		return nil, fmt.Errorf("%s: variant 0x%X expects %T, got %T", u.Name, tag, proto, v)
	}

	var b []byte
	switch u.TagSize {
	case 1:
		b = append(b, byte(tag))
	case 2:
		b = binary.BigEndian.AppendUint16(b, uint16(tag))
	default:
		b = binary.BigEndian.AppendUint32(b, tag)
	}
	body, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, body...), nil
}
