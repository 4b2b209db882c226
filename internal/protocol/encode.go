package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/danmuck/tdproto/internal/protocol/buffer"
	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/danmuck/tdproto/internal/protocol/value"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderSize is the wire size of a field header: index u16 + code u16.
	HeaderSize = 4
	// FloatScale is the fixed-point factor applied to float values.
	FloatScale = 1000
	// MaxBytesLen is the largest str/raw payload a u16 length prefix allows.
	MaxBytesLen = math.MaxUint16
	// MaxDepth is the deepest container nesting accepted. Top-level fields
	// and message arguments sit at depth 0.
	MaxDepth = 64
)

func checkDepth(depth int) error {
	if depth > MaxDepth {
		return newError(KindBufferOverMax, "nesting exceeds max depth", fmt.Sprintf("depth %d > %d", depth, MaxDepth))
	}
	return nil
}

// WriteHeader writes a field header.
func WriteHeader(buf *buffer.Buffer, index uint16, code value.Code) {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], index)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(code))
	buf.Write(hdr[:])
}

func writeNilMarker(buf *buffer.Buffer) {
	WriteHeader(buf, 0, value.CodeNil)
}

// EncodeNumber writes the payload of a scalar numeric value. u8 and i8
// occupy a two byte slot.
func EncodeNumber(buf *buffer.Buffer, v value.Value) error {
	var scratch [4]byte
	switch n := v.(type) {
	case value.U8:
		scratch[0] = byte(n)
		buf.Write(scratch[:2])
	case value.I8:
		scratch[0] = byte(n)
		buf.Write(scratch[:2])
	case value.U16:
		binary.LittleEndian.PutUint16(scratch[:], uint16(n))
		buf.Write(scratch[:2])
	case value.I16:
		binary.LittleEndian.PutUint16(scratch[:], uint16(n))
		buf.Write(scratch[:2])
	case value.U32:
		binary.LittleEndian.PutUint32(scratch[:], uint32(n))
		buf.Write(scratch[:4])
	case value.I32:
		binary.LittleEndian.PutUint32(scratch[:], uint32(n))
		buf.Write(scratch[:4])
	case value.Float:
		fixed, err := floatToFixed(float32(n))
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(scratch[:], uint32(fixed))
		buf.Write(scratch[:4])
	default:
		return newError(KindTypeNotMatch, "not a number", value.CodeOf(v).String())
	}
	return nil
}

func floatToFixed(f float32) (int32, error) {
	scaled := math.Round(float64(f) * FloatScale)
	if math.IsNaN(scaled) || scaled < math.MinInt32 || scaled > math.MaxInt32 {
		return 0, newError(KindTypeNotMatch, "float out of fixed-point range", fmt.Sprint(f))
	}
	return int32(scaled), nil
}

// EncodeStrRaw writes a u16 length prefix followed by the bytes of a Str or
// Raw value. The payload is not padded.
func EncodeStrRaw(buf *buffer.Buffer, v value.Value) error {
	var data []byte
	switch s := v.(type) {
	case value.Str:
		data = []byte(s)
	case value.Raw:
		data = s
	default:
		return newError(KindTypeNotMatch, "not a str or raw", value.CodeOf(v).String())
	}
	if len(data) > MaxBytesLen {
		return newError(KindBufferOverMax, "payload exceeds u16 length prefix", fmt.Sprintf("%d bytes", len(data)))
	}
	var prefix [2]byte
	binary.LittleEndian.PutUint16(prefix[:], uint16(len(data)))
	buf.Write(prefix[:])
	buf.Write(data)
	return nil
}

// EncodeMap writes every key known to cfg as a schema header followed by
// the encoded value, then the nil marker. Keys unknown to cfg are dropped.
// Keys are written in name order. A value whose type differs from its
// field's declared type fails with KindTypeNotMatch.
func EncodeMap(buf *buffer.Buffer, cfg *schema.Config, m value.Map) error {
	mark := buf.Mark()
	if err := encodeMap(buf, cfg, m, 0); err != nil {
		buf.Rollback(mark)
		return err
	}
	return nil
}

func encodeMap(buf *buffer.Buffer, cfg *schema.Config, m value.Map, depth int) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field, ok := cfg.FieldByName(name)
		if !ok {
			continue
		}
		want := value.CodeByName(field.Pattern)
		if got := value.CodeOf(m[name]); got != want {
			return newError(KindTypeNotMatch, "must match type",
				fmt.Sprintf("field %q is %s, value is %s", name, want, got))
		}
		WriteHeader(buf, field.Index, want)
		if err := encodeField(buf, cfg, m[name], depth+1); err != nil {
			return err
		}
	}
	writeNilMarker(buf)
	return nil
}

func encodeArray(buf *buffer.Buffer, cfg *schema.Config, arr value.Array, depth int) error {
	want := arr.Code().Elem()
	for i, elem := range arr.Elems() {
		if got := value.CodeOf(elem); got != want {
			return newError(KindTypeNotMatch, "must match type",
				fmt.Sprintf("%s element %d is %s", arr.Code(), i, got))
		}
		if err := encodeField(buf, cfg, elem, depth+1); err != nil {
			return err
		}
	}
	if err := checkDepth(depth + 1); err != nil {
		return err
	}
	writeNilMarker(buf)
	return nil
}

// EncodeField writes v as an unnamed field: header (0, code) plus payload.
// On failure the buffer's write state is restored to what it was before the
// call.
func EncodeField(buf *buffer.Buffer, cfg *schema.Config, v value.Value) error {
	mark := buf.Mark()
	if err := encodeField(buf, cfg, v, 0); err != nil {
		buf.Rollback(mark)
		return err
	}
	return nil
}

func encodeField(buf *buffer.Buffer, cfg *schema.Config, v value.Value, depth int) error {
	if err := checkDepth(depth); err != nil {
		return err
	}
	code := value.CodeOf(v)
	WriteHeader(buf, 0, code)
	switch t := v.(type) {
	case nil, value.Nil:
		return nil
	case value.U8, value.I8, value.U16, value.I16, value.U32, value.I32, value.Float:
		return EncodeNumber(buf, v)
	case value.Str, value.Raw:
		return EncodeStrRaw(buf, v)
	case value.Map:
		return encodeMap(buf, cfg, t, depth)
	case value.Array:
		return encodeArray(buf, cfg, t, depth)
	default:
		return newError(KindTypeNotMatch, "unsupported value", fmt.Sprintf("%T", v))
	}
}

// EncodeProto writes a named message: the name as a length-prefixed
// string, each argument as a field, then the nil marker. Messages are
// identified by name. Nil arguments are rejected because Nil terminates the
// argument list on the wire.
func EncodeProto(buf *buffer.Buffer, cfg *schema.Config, name string, args []value.Value) error {
	proto, ok := cfg.ProtoByName(name)
	if !ok {
		return newError(KindMissing, "missing the name protocol", name)
	}
	if len(proto.Args) != len(args) {
		return newError(KindTypeNotMatch, "the data num not match protocol args num",
			fmt.Sprintf("%s: got %d want %d", name, len(args), len(proto.Args)))
	}
	for i, arg := range args {
		if value.CodeOf(arg) == value.CodeNil {
			return newError(KindTypeNotMatch, "nil protocol argument", fmt.Sprintf("%s: arg %d", name, i))
		}
	}

	mark := buf.Mark()
	start := buf.Wpos()
	if err := encodeProto(buf, cfg, name, args); err != nil {
		buf.Rollback(mark)
		log.Debug().Err(err).Str("proto", name).Msg("protocol.EncodeProto failed")
		return err
	}
	log.Debug().Str("proto", name).Int("args", len(args)).Int("bytes", buf.Wpos()-start).Msg("protocol.EncodeProto")
	return nil
}

func encodeProto(buf *buffer.Buffer, cfg *schema.Config, name string, args []value.Value) error {
	if err := EncodeStrRaw(buf, value.Str(name)); err != nil {
		return err
	}
	for _, arg := range args {
		if err := encodeField(buf, cfg, arg, 0); err != nil {
			return err
		}
	}
	writeNilMarker(buf)
	return nil
}
