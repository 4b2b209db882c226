package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/danmuck/tdproto/internal/protocol/value"
)

// Coerce converts a decoded JSON document (as produced by encoding/json into
// an any) into a Value of the named type. Map keys are resolved through the
// field dictionary of cfg; unknown keys fail with KindMissing.
func Coerce(cfg *schema.Config, typeName string, raw any) (value.Value, error) {
	code, ok := value.LookupName(typeName)
	if !ok {
		return nil, newError(KindMissing, "unknown type name", typeName)
	}
	return coerce(cfg, code, raw)
}

// CoerceArgs converts the arguments of a named message by its declared
// argument types.
func CoerceArgs(cfg *schema.Config, protoName string, raw []any) ([]value.Value, error) {
	proto, ok := cfg.ProtoByName(protoName)
	if !ok {
		return nil, newError(KindMissing, "missing the name protocol", protoName)
	}
	if len(proto.Args) != len(raw) {
		return nil, newError(KindTypeNotMatch, "the data num not match protocol args num",
			fmt.Sprintf("%s: got %d want %d", protoName, len(raw), len(proto.Args)))
	}
	out := make([]value.Value, len(raw))
	for i, r := range raw {
		v, err := Coerce(cfg, proto.Args[i], r)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", protoName, i, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(cfg *schema.Config, code value.Code, raw any) (value.Value, error) {
	switch {
	case code == value.CodeNil:
		if raw != nil {
			return nil, mismatch(code, raw)
		}
		return value.Nil{}, nil
	case code >= value.CodeU8 && code <= value.CodeI32:
		return coerceInt(code, raw)
	case code == value.CodeFloat:
		f, ok := number(raw)
		if !ok {
			return nil, mismatch(code, raw)
		}
		return value.Float(float32(f)), nil
	case code == value.CodeStr:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(code, raw)
		}
		return value.Str(s), nil
	case code == value.CodeRaw:
		return coerceRaw(raw)
	case code == value.CodeMap:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch(code, raw)
		}
		m := make(value.Map, len(obj))
		for name, sub := range obj {
			field, ok := cfg.FieldByName(name)
			if !ok {
				return nil, newError(KindMissing, "unknown field", name)
			}
			v, err := Coerce(cfg, field.Pattern, sub)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			m[name] = v
		}
		return m, nil
	case code.IsArray():
		list, ok := raw.([]any)
		if !ok {
			return nil, mismatch(code, raw)
		}
		elems := make([]value.Value, len(list))
		for i, sub := range list {
			v, err := coerce(cfg, code.Elem(), sub)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = v
		}
		return value.NewArray(code, elems...)
	default:
		return nil, mismatch(code, raw)
	}
}

func coerceInt(code value.Code, raw any) (value.Value, error) {
	f, ok := number(raw)
	if !ok || f != math.Trunc(f) {
		return nil, mismatch(code, raw)
	}
	var lo, hi float64
	switch code {
	case value.CodeU8:
		lo, hi = 0, math.MaxUint8
	case value.CodeI8:
		lo, hi = math.MinInt8, math.MaxInt8
	case value.CodeU16:
		lo, hi = 0, math.MaxUint16
	case value.CodeI16:
		lo, hi = math.MinInt16, math.MaxInt16
	case value.CodeU32:
		lo, hi = 0, math.MaxUint32
	default:
		lo, hi = math.MinInt32, math.MaxInt32
	}
	if f < lo || f > hi {
		return nil, newError(KindTypeNotMatch, "number out of range", fmt.Sprintf("%v for %s", raw, code))
	}
	switch code {
	case value.CodeU8:
		return value.U8(f), nil
	case value.CodeI8:
		return value.I8(f), nil
	case value.CodeU16:
		return value.U16(f), nil
	case value.CodeI16:
		return value.I16(f), nil
	case value.CodeU32:
		return value.U32(f), nil
	default:
		return value.I32(f), nil
	}
}

// coerceRaw accepts a base64 string or an array of byte values.
func coerceRaw(raw any) (value.Value, error) {
	switch r := raw.(type) {
	case string:
		b, err := base64.StdEncoding.DecodeString(r)
		if err != nil {
			return nil, newError(KindTypeNotMatch, "raw is not base64", err.Error())
		}
		return value.Raw(b), nil
	case []any:
		out := make([]byte, len(r))
		for i, sub := range r {
			v, err := coerceInt(value.CodeU8, sub)
			if err != nil {
				return nil, fmt.Errorf("byte %d: %w", i, err)
			}
			out[i] = byte(v.(value.U8))
		}
		return value.Raw(out), nil
	default:
		return nil, mismatch(value.CodeRaw, raw)
	}
}

func number(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func mismatch(code value.Code, raw any) error {
	return newError(KindTypeNotMatch, "must match type", fmt.Sprintf("cannot use %T as %s", raw, code))
}
