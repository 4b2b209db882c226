package value

// Code is the numeric wire identifier for a value's shape.
type Code uint16

// ArrayStep is the distance between a scalar code and its array form.
const ArrayStep Code = 20

// Type codes from the wire contract.
const (
	CodeNil   Code = 0
	CodeU8    Code = 1
	CodeI8    Code = 2
	CodeU16   Code = 3
	CodeI16   Code = 4
	CodeU32   Code = 5
	CodeI32   Code = 6
	CodeFloat Code = 7
	CodeStr   Code = 8
	CodeRaw   Code = 9
	CodeMap   Code = 10

	CodeAU8    Code = CodeU8 + ArrayStep
	CodeAI8    Code = CodeI8 + ArrayStep
	CodeAU16   Code = CodeU16 + ArrayStep
	CodeAI16   Code = CodeI16 + ArrayStep
	CodeAU32   Code = CodeU32 + ArrayStep
	CodeAI32   Code = CodeI32 + ArrayStep
	CodeAFloat Code = CodeFloat + ArrayStep
	CodeAStr   Code = CodeStr + ArrayStep
	CodeARaw   Code = CodeRaw + ArrayStep
	CodeAMap   Code = CodeMap + ArrayStep
)

// Type names accepted in schema documents.
const (
	NameNil    = "nil"
	NameU8     = "u8"
	NameI8     = "i8"
	NameU16    = "u16"
	NameI16    = "i16"
	NameU32    = "u32"
	NameI32    = "i32"
	NameFloat  = "float"
	NameStr    = "str"
	NameRaw    = "raw"
	NameMap    = "map"
	NameAU8    = "u8[]"
	NameAI8    = "i8[]"
	NameAU16   = "u16[]"
	NameAI16   = "i16[]"
	NameAU32   = "u32[]"
	NameAI32   = "i32[]"
	NameAFloat = "float[]"
	NameAStr   = "str[]"
	NameARaw   = "raw[]"
	NameAMap   = "map[]"
)

var scalarNames = [...]string{
	CodeNil:   NameNil,
	CodeU8:    NameU8,
	CodeI8:    NameI8,
	CodeU16:   NameU16,
	CodeI16:   NameI16,
	CodeU32:   NameU32,
	CodeI32:   NameI32,
	CodeFloat: NameFloat,
	CodeStr:   NameStr,
	CodeRaw:   NameRaw,
	CodeMap:   NameMap,
}

// LookupName resolves a type name to its code. ok is false for names
// outside the registry.
func LookupName(name string) (Code, bool) {
	switch name {
	case NameNil:
		return CodeNil, true
	case NameU8:
		return CodeU8, true
	case NameI8:
		return CodeI8, true
	case NameU16:
		return CodeU16, true
	case NameI16:
		return CodeI16, true
	case NameU32:
		return CodeU32, true
	case NameI32:
		return CodeI32, true
	case NameFloat:
		return CodeFloat, true
	case NameStr:
		return CodeStr, true
	case NameRaw:
		return CodeRaw, true
	case NameMap:
		return CodeMap, true
	case NameAU8:
		return CodeAU8, true
	case NameAI8:
		return CodeAI8, true
	case NameAU16:
		return CodeAU16, true
	case NameAI16:
		return CodeAI16, true
	case NameAU32:
		return CodeAU32, true
	case NameAI32:
		return CodeAI32, true
	case NameAFloat:
		return CodeAFloat, true
	case NameAStr:
		return CodeAStr, true
	case NameARaw:
		return CodeARaw, true
	case NameAMap:
		return CodeAMap, true
	default:
		return CodeNil, false
	}
}

// CodeByName maps a type name to its code. Unknown names map to CodeNil.
func CodeByName(name string) Code {
	c, _ := LookupName(name)
	return c
}

// NameByCode maps a code to its type name. Unknown codes map to "nil".
func NameByCode(c Code) string {
	return c.String()
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if !c.Valid() {
		return NameNil
	}
	if c.IsArray() {
		return scalarNames[c-ArrayStep] + "[]"
	}
	return scalarNames[c]
}

// Valid reports whether c is a registered code.
func (c Code) Valid() bool {
	return c <= CodeMap || (c >= CodeAU8 && c <= CodeAMap)
}

// IsArray reports whether c is one of the array forms.
func (c Code) IsArray() bool {
	return c >= CodeAU8 && c <= CodeAMap
}

// Elem returns the element code of an array code, CodeNil otherwise.
func (c Code) Elem() Code {
	if !c.IsArray() {
		return CodeNil
	}
	return c - ArrayStep
}

// ArrayOf returns the array form of a scalar code, CodeNil for nil,
// arrays and unknown codes.
func (c Code) ArrayOf() Code {
	if c == CodeNil || c > CodeMap {
		return CodeNil
	}
	return c + ArrayStep
}

// CodeOf derives the type code of v from its variant.
func CodeOf(v Value) Code {
	if v == nil {
		return CodeNil
	}
	return v.Code()
}

// ElemCodeOf returns the code every element of an array value must carry.
// Non-array values yield CodeNil.
func ElemCodeOf(v Value) Code {
	return CodeOf(v).Elem()
}
