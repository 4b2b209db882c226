package value

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrElemType = errors.New("value: array element type mismatch")
	ErrNotArray = errors.New("value: not an array code")
)

// Value is one encodable datum. The variant set is closed.
type Value interface {
	Code() Code
	String() string
	sealed()
}

// Array is implemented by the ten array variants.
type Array interface {
	Value
	Elems() []Value
}

type (
	Nil   struct{}
	U8    uint8
	I8    int8
	U16   uint16
	I16   int16
	U32   uint32
	I32   int32
	Float float32
	Str   string
	Raw   []byte
	Map   map[string]Value
)

type (
	AU8    []Value
	AI8    []Value
	AU16   []Value
	AI16   []Value
	AU32   []Value
	AI32   []Value
	AFloat []Value
	AStr   []Value
	ARaw   []Value
	AMap   []Value
)

func (Nil) Code() Code   { return CodeNil }
func (U8) Code() Code    { return CodeU8 }
func (I8) Code() Code    { return CodeI8 }
func (U16) Code() Code   { return CodeU16 }
func (I16) Code() Code   { return CodeI16 }
func (U32) Code() Code   { return CodeU32 }
func (I32) Code() Code   { return CodeI32 }
func (Float) Code() Code { return CodeFloat }
func (Str) Code() Code   { return CodeStr }
func (Raw) Code() Code   { return CodeRaw }
func (Map) Code() Code   { return CodeMap }

func (AU8) Code() Code    { return CodeAU8 }
func (AI8) Code() Code    { return CodeAI8 }
func (AU16) Code() Code   { return CodeAU16 }
func (AI16) Code() Code   { return CodeAI16 }
func (AU32) Code() Code   { return CodeAU32 }
func (AI32) Code() Code   { return CodeAI32 }
func (AFloat) Code() Code { return CodeAFloat }
func (AStr) Code() Code   { return CodeAStr }
func (ARaw) Code() Code   { return CodeARaw }
func (AMap) Code() Code   { return CodeAMap }

func (Nil) sealed()    {}
func (U8) sealed()     {}
func (I8) sealed()     {}
func (U16) sealed()    {}
func (I16) sealed()    {}
func (U32) sealed()    {}
func (I32) sealed()    {}
func (Float) sealed()  {}
func (Str) sealed()    {}
func (Raw) sealed()    {}
func (Map) sealed()    {}
func (AU8) sealed()    {}
func (AI8) sealed()    {}
func (AU16) sealed()   {}
func (AI16) sealed()   {}
func (AU32) sealed()   {}
func (AI32) sealed()   {}
func (AFloat) sealed() {}
func (AStr) sealed()   {}
func (ARaw) sealed()   {}
func (AMap) sealed()   {}

func (a AU8) Elems() []Value    { return a }
func (a AI8) Elems() []Value    { return a }
func (a AU16) Elems() []Value   { return a }
func (a AI16) Elems() []Value   { return a }
func (a AU32) Elems() []Value   { return a }
func (a AI32) Elems() []Value   { return a }
func (a AFloat) Elems() []Value { return a }
func (a AStr) Elems() []Value   { return a }
func (a ARaw) Elems() []Value   { return a }
func (a AMap) Elems() []Value   { return a }

func (Nil) String() string     { return "nil" }
func (v U8) String() string    { return fmt.Sprintf("u8(%d)", uint8(v)) }
func (v I8) String() string    { return fmt.Sprintf("i8(%d)", int8(v)) }
func (v U16) String() string   { return fmt.Sprintf("u16(%d)", uint16(v)) }
func (v I16) String() string   { return fmt.Sprintf("i16(%d)", int16(v)) }
func (v U32) String() string   { return fmt.Sprintf("u32(%d)", uint32(v)) }
func (v I32) String() string   { return fmt.Sprintf("i32(%d)", int32(v)) }
func (v Float) String() string { return fmt.Sprintf("float(%g)", float32(v)) }
func (v Str) String() string   { return fmt.Sprintf("str(%q)", string(v)) }
func (v Raw) String() string   { return fmt.Sprintf("raw(%v)", []byte(v)) }

func (v Map) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("map{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %v", k, v[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (a AU8) String() string    { return arrayString("AU8", a) }
func (a AI8) String() string    { return arrayString("AI8", a) }
func (a AU16) String() string   { return arrayString("AU16", a) }
func (a AI16) String() string   { return arrayString("AI16", a) }
func (a AU32) String() string   { return arrayString("AU32", a) }
func (a AI32) String() string   { return arrayString("AI32", a) }
func (a AFloat) String() string { return arrayString("AFloat", a) }
func (a AStr) String() string   { return arrayString("AStr", a) }
func (a ARaw) String() string   { return arrayString("ARaw", a) }
func (a AMap) String() string   { return arrayString("AMap", a) }

func arrayString(tag string, elems []Value) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = fmt.Sprint(e)
	}
	return tag + "([" + strings.Join(parts, ", ") + "])"
}

// NewArray builds the array variant for code after checking that every
// element carries code's element type.
func NewArray(code Code, elems ...Value) (Array, error) {
	if !code.IsArray() {
		return nil, fmt.Errorf("%w: %d", ErrNotArray, code)
	}
	if err := checkElems(code.Elem(), elems); err != nil {
		return nil, err
	}
	return makeArray(code, elems), nil
}

func makeArray(code Code, elems []Value) Array {
	switch code {
	case CodeAU8:
		return AU8(elems)
	case CodeAI8:
		return AI8(elems)
	case CodeAU16:
		return AU16(elems)
	case CodeAI16:
		return AI16(elems)
	case CodeAU32:
		return AU32(elems)
	case CodeAI32:
		return AI32(elems)
	case CodeAFloat:
		return AFloat(elems)
	case CodeAStr:
		return AStr(elems)
	case CodeARaw:
		return ARaw(elems)
	default:
		return AMap(elems)
	}
}

func checkElems(want Code, elems []Value) error {
	for i, e := range elems {
		if got := CodeOf(e); got != want {
			return fmt.Errorf("%w: element %d is %s, want %s", ErrElemType, i, got, want)
		}
	}
	return nil
}

// Validate walks v and checks the homogeneous-array invariant at every
// level.
func Validate(v Value) error {
	switch t := v.(type) {
	case Map:
		for k, sub := range t {
			if err := Validate(sub); err != nil {
				return fmt.Errorf("map key %q: %w", k, err)
			}
		}
	case Array:
		elems := t.Elems()
		if err := checkElems(t.Code().Elem(), elems); err != nil {
			return err
		}
		for _, e := range elems {
			if err := Validate(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Equal reports whether a and b hold the same variant and contents.
// A nil Map and an empty Map compare equal, as do nil and empty arrays.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return CodeOf(a) == CodeNil && CodeOf(b) == CodeNil
	}
	if a.Code() != b.Code() {
		return false
	}
	switch x := a.(type) {
	case Raw:
		return bytes.Equal(x, b.(Raw))
	case Map:
		y := b.(Map)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case Array:
		xe, ye := x.Elems(), b.(Array).Elems()
		if len(xe) != len(ye) {
			return false
		}
		for i := range xe {
			if !Equal(xe[i], ye[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Interface renders v as plain Go values: integers as their native widths,
// Float as float32, Str as string, Raw as []byte, maps as map[string]any and
// arrays as []any.
func Interface(v Value) any {
	switch t := v.(type) {
	case nil, Nil:
		return nil
	case U8:
		return uint8(t)
	case I8:
		return int8(t)
	case U16:
		return uint16(t)
	case I16:
		return int16(t)
	case U32:
		return uint32(t)
	case I32:
		return int32(t)
	case Float:
		return float32(t)
	case Str:
		return string(t)
	case Raw:
		return []byte(t)
	case Map:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			out[k] = Interface(sub)
		}
		return out
	case Array:
		elems := t.Elems()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = Interface(e)
		}
		return out
	default:
		return nil
	}
}
