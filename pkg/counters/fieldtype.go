package counters

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"colmet/pkg/utils"
)

// Kind groups field types by their in-memory value representation.
type Kind uint8

const (
	Unsigned Kind = iota // uint64
	Signed               // int64
	Float                // float64
	Text                 // string
)

func (k Kind) String() string {
	switch k {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Float:
		return "float"
	case Text:
		return "string"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// FieldType describes the wire representation of one scalar. All integers
// and floats are little-endian. The width is known without a value.
type FieldType struct {
	name  string
	kind  Kind
	width int
}

var (
	UInt8   = FieldType{name: "uint8", kind: Unsigned, width: 1}
	UInt16  = FieldType{name: "uint16", kind: Unsigned, width: 2}
	UInt32  = FieldType{name: "uint32", kind: Unsigned, width: 4}
	UInt64  = FieldType{name: "uint64", kind: Unsigned, width: 8}
	Int8    = FieldType{name: "int8", kind: Signed, width: 1}
	Int16   = FieldType{name: "int16", kind: Signed, width: 2}
	Int32   = FieldType{name: "int32", kind: Signed, width: 4}
	Int64   = FieldType{name: "int64", kind: Signed, width: 8}
	Float32 = FieldType{name: "float32", kind: Float, width: 4}
	Float64 = FieldType{name: "float64", kind: Float, width: 8}
)

// String returns a fixed-length string type of n bytes. Shorter values are
// zero-padded on the wire and trimmed on decode.
func String(n int) FieldType {
	if n <= 0 {
		panic(fmt.Sprintf("counters: invalid string width %d", n))
	}
	return FieldType{name: fmt.Sprintf("string(%d)", n), kind: Text, width: n}
}

func (t FieldType) Name() string { return t.name }
func (t FieldType) Kind() Kind   { return t.kind }
func (t FieldType) Width() int   { return t.width }

// Zero returns the zero value in the canonical representation.
func (t FieldType) Zero() any {
	switch t.kind {
	case Unsigned:
		return uint64(0)
	case Signed:
		return int64(0)
	case Float:
		return float64(0)
	default:
		return ""
	}
}

// Normalize converts v to the canonical representation for this type,
// reduced to what the wire can hold: unsigned values wrap modulo the width,
// signed values are sign-extended from it, float32 is rounded and strings
// are cut to the width. nil stays nil.
func (t FieldType) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.kind {
	case Unsigned:
		u, ok := utils.ToUint64Ok(v)
		if !ok {
			return nil, fmt.Errorf("%s: cannot use %T as unsigned", t.name, v)
		}
		return t.wrapUnsigned(u), nil
	case Signed:
		i, ok := utils.ToInt64Ok(v)
		if !ok {
			return nil, fmt.Errorf("%s: cannot use %T as signed", t.name, v)
		}
		return t.wrapSigned(i), nil
	case Float:
		f, ok := utils.ToFloat64Ok(v)
		if !ok {
			return nil, fmt.Errorf("%s: cannot use %T as float", t.name, v)
		}
		if t.width == 4 {
			f = float64(float32(f))
		}
		return f, nil
	default:
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case []byte:
			s = string(x)
		default:
			return nil, fmt.Errorf("%s: cannot use %T as string", t.name, v)
		}
		if len(s) > t.width {
			s = s[:t.width]
		}
		return string(bytes.TrimRight([]byte(s), "\x00")), nil
	}
}

func (t FieldType) wrapUnsigned(u uint64) uint64 {
	if t.width >= 8 {
		return u
	}
	return u & (uint64(1)<<(8*uint(t.width)) - 1)
}

func (t FieldType) wrapSigned(i int64) int64 {
	if t.width >= 8 {
		return i
	}
	shift := 64 - 8*uint(t.width)
	return i << shift >> shift
}

// Encode writes v into dst, which must be exactly Width bytes long.
// A nil value encodes as zero.
func (t FieldType) Encode(dst []byte, v any) error {
	if len(dst) != t.width {
		return fmt.Errorf("%s: encode into %d bytes", t.name, len(dst))
	}
	v, err := t.Normalize(v)
	if err != nil {
		return err
	}
	if v == nil {
		clear(dst)
		return nil
	}
	switch t.kind {
	case Unsigned:
		putUint(dst, v.(uint64))
	case Signed:
		putUint(dst, uint64(v.(int64)))
	case Float:
		if t.width == 4 {
			binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v.(float64))))
		} else {
			binary.LittleEndian.PutUint64(dst, math.Float64bits(v.(float64)))
		}
	default:
		n := copy(dst, v.(string))
		clear(dst[n:])
	}
	return nil
}

// Decode reads a value from src, which must be exactly Width bytes long.
func (t FieldType) Decode(src []byte) any {
	switch t.kind {
	case Unsigned:
		return getUint(src)
	case Signed:
		return t.wrapSigned(int64(getUint(src)))
	case Float:
		if t.width == 4 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(src)))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	default:
		return string(bytes.TrimRight(src, "\x00"))
	}
}

func putUint(dst []byte, u uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(u))
	default:
		binary.LittleEndian.PutUint64(dst, u)
	}
}

func getUint(src []byte) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	default:
		return binary.LittleEndian.Uint64(src)
	}
}
