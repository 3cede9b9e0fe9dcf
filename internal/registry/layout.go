package registry

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldType is one little-endian fixed-width payload field.
type FieldType uint8

const (
	U8 FieldType = iota + 1
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
)

var fieldTypes = []struct {
	t    FieldType
	name string
	code byte // struct-style format character
	size int
}{
	{U8, "u8", 'B', 1},
	{I8, "i8", 'b', 1},
	{U16, "u16", 'H', 2},
	{I16, "i16", 'h', 2},
	{U32, "u32", 'I', 4},
	{I32, "i32", 'i', 4},
	{U64, "u64", 'Q', 8},
	{I64, "i64", 'q', 8},
	{F32, "f32", 'f', 4},
	{F64, "f64", 'd', 8},
}

func (t FieldType) Size() int {
	for _, ft := range fieldTypes {
		if ft.t == t {
			return ft.size
		}
	}
	return 0
}

func (t FieldType) String() string {
	for _, ft := range fieldTypes {
		if ft.t == t {
			return ft.name
		}
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// Layout is an ordered list of payload fields. An empty layout carries no
// decoded fields and accepts any payload.
type Layout []FieldType

// Size is the payload width the layout requires.
func (l Layout) Size() int {
	n := 0
	for _, t := range l {
		n += t.Size()
	}
	return n
}

// String renders the layout in its compact struct-style form, e.g. "<HHH".
func (l Layout) String() string {
	if len(l) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('<')
	for _, t := range l {
		for _, ft := range fieldTypes {
			if ft.t == t {
				sb.WriteByte(ft.code)
			}
		}
	}
	return sb.String()
}

// ParseLayout accepts either a struct-style format ("<HHH", the leading '<'
// is optional since all fields are little-endian) or a list of field names
// separated by spaces or commas ("u16 u16 u16").
func ParseLayout(s string) (Layout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Layout{}, nil
	}
	if strings.ContainsAny(s, " ,") || strings.ContainsAny(s, "0123456789") {
		var l Layout
		for _, w := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
			t, ok := fieldByName(strings.ToLower(w))
			if !ok {
				return nil, fmt.Errorf("layout %q: unknown field type %q", s, w)
			}
			l = append(l, t)
		}
		return l, nil
	}
	s = strings.TrimPrefix(s, "<")
	l := make(Layout, 0, len(s))
	for i := 0; i < len(s); i++ {
		t, ok := fieldByCode(s[i])
		if !ok {
			return nil, fmt.Errorf("layout %q: unknown format character %q", s, s[i])
		}
		l = append(l, t)
	}
	return l, nil
}

func fieldByName(name string) (FieldType, bool) {
	for _, ft := range fieldTypes {
		if ft.name == name {
			return ft.t, true
		}
	}
	return 0, false
}

func fieldByCode(c byte) (FieldType, bool) {
	for _, ft := range fieldTypes {
		if ft.code == c {
			return ft.t, true
		}
	}
	return 0, false
}

// Unpack decodes payload into one Value per field. A non-empty layout needs
// the payload to be exactly Size() bytes.
func (l Layout) Unpack(payload []byte) ([]Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	if len(payload) != l.Size() {
		return nil, fmt.Errorf("%w: layout %s needs %d bytes, got %d", ErrPayloadSize, l, l.Size(), len(payload))
	}
	out := make([]Value, 0, len(l))
	off := 0
	for _, t := range l {
		b := payload[off : off+t.Size()]
		off += t.Size()
		v := Value{Type: t}
		switch t {
		case U8:
			v.u = uint64(b[0])
		case I8:
			v.i = int64(int8(b[0]))
		case U16:
			v.u = uint64(binary.LittleEndian.Uint16(b))
		case I16:
			v.i = int64(int16(binary.LittleEndian.Uint16(b)))
		case U32:
			v.u = uint64(binary.LittleEndian.Uint32(b))
		case I32:
			v.i = int64(int32(binary.LittleEndian.Uint32(b)))
		case U64:
			v.u = binary.LittleEndian.Uint64(b)
		case I64:
			v.i = int64(binary.LittleEndian.Uint64(b))
		case F32:
			v.f = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case F64:
			v.f = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		out = append(out, v)
	}
	return out, nil
}

// Value is one unpacked field.
type Value struct {
	Type FieldType
	u    uint64
	i    int64
	f    float64
}

func (v Value) isSigned() bool { return v.Type == I8 || v.Type == I16 || v.Type == I32 || v.Type == I64 }
func (v Value) isFloat() bool  { return v.Type == F32 || v.Type == F64 }

// Float returns the value as float64.
func (v Value) Float() float64 {
	switch {
	case v.isFloat():
		return v.f
	case v.isSigned():
		return float64(v.i)
	default:
		return float64(v.u)
	}
}

// Int returns the value as int64 (floats are truncated).
func (v Value) Int() int64 {
	switch {
	case v.isFloat():
		return int64(v.f)
	case v.isSigned():
		return v.i
	default:
		return int64(v.u)
	}
}

// String prints integers in decimal and floats in their shortest form,
// always with a fractional part. Exponent notation is used only below 1e-4
// and from 1e16 up.
func (v Value) String() string {
	switch {
	case v.isFloat():
		a := math.Abs(v.f)
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) || (a != 0 && (a < 1e-4 || a >= 1e16)) {
			return strconv.FormatFloat(v.f, 'g', -1, 64)
		}
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case v.isSigned():
		return strconv.FormatInt(v.i, 10)
	default:
		return strconv.FormatUint(v.u, 10)
	}
}
