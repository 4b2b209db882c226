package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/tdproto/internal/protocol/buffer"
	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/danmuck/tdproto/internal/protocol/value"
	"github.com/rs/zerolog/log"
)

// readExact consumes exactly n bytes or none.
func readExact(buf *buffer.Buffer, n int) ([]byte, error) {
	if avail := buf.Unread(); avail < n {
		return nil, newError(KindNoLeftSpace, "must left space to read", fmt.Sprintf("need %d bytes, have %d", n, avail))
	}
	out := make([]byte, n)
	buf.Read(out)
	return out, nil
}

func readUint16(buf *buffer.Buffer) (uint16, error) {
	b, err := readExact(buf, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadHeader reads a field header.
func ReadHeader(buf *buffer.Buffer) (uint16, value.Code, error) {
	b, err := readExact(buf, HeaderSize)
	if err != nil {
		return 0, value.CodeNil, err
	}
	return binary.LittleEndian.Uint16(b[0:2]), value.Code(binary.LittleEndian.Uint16(b[2:4])), nil
}

// DecodeNumber reads the payload of a scalar numeric code.
func DecodeNumber(buf *buffer.Buffer, code value.Code) (value.Value, error) {
	switch code {
	case value.CodeU8, value.CodeI8:
		b, err := readExact(buf, 2)
		if err != nil {
			return nil, err
		}
		if code == value.CodeU8 {
			return value.U8(b[0]), nil
		}
		return value.I8(int8(b[0])), nil
	case value.CodeU16, value.CodeI16:
		n, err := readUint16(buf)
		if err != nil {
			return nil, err
		}
		if code == value.CodeU16 {
			return value.U16(n), nil
		}
		return value.I16(int16(n)), nil
	case value.CodeU32, value.CodeI32, value.CodeFloat:
		b, err := readExact(buf, 4)
		if err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(b)
		switch code {
		case value.CodeU32:
			return value.U32(n), nil
		case value.CodeI32:
			return value.I32(int32(n)), nil
		default:
			return value.Float(float32(float64(int32(n)) / FloatScale)), nil
		}
	default:
		return nil, newError(KindTypeNotMatch, "not a number code", code.String())
	}
}

// DecodeStrRaw reads a length-prefixed Str or Raw payload. Str payloads
// must be valid UTF-8.
func DecodeStrRaw(buf *buffer.Buffer, code value.Code) (value.Value, error) {
	if code != value.CodeStr && code != value.CodeRaw {
		return nil, newError(KindTypeNotMatch, "not a str or raw code", code.String())
	}
	n, err := readUint16(buf)
	if err != nil {
		return nil, err
	}
	data, err := readExact(buf, int(n))
	if err != nil {
		return nil, err
	}
	if code == value.CodeRaw {
		return value.Raw(data), nil
	}
	if !utf8.Valid(data) {
		return nil, newError(KindStringFormat, "string format error", "invalid utf-8")
	}
	return value.Str(data), nil
}

// DecodeMap reads schema headers and values until the nil marker. Values
// whose index is unknown to cfg are decoded and discarded. A schema header
// whose type code differs from its value's fails with KindTypeNotMatch.
func DecodeMap(buf *buffer.Buffer, cfg *schema.Config) (value.Map, error) {
	start := buf.Rpos()
	m, err := decodeMap(buf, cfg, 0)
	if err != nil {
		buf.SetRpos(start)
		return nil, err
	}
	return m, nil
}

func decodeMap(buf *buffer.Buffer, cfg *schema.Config, depth int) (value.Map, error) {
	m := value.Map{}
	for {
		index, code, err := ReadHeader(buf)
		if err != nil {
			return nil, err
		}
		if index == 0 && code == value.CodeNil {
			return m, nil
		}
		sub, err := decodeField(buf, cfg, depth+1)
		if err != nil {
			return nil, err
		}
		if got := value.CodeOf(sub); got != code {
			return nil, newError(KindTypeNotMatch, "must match type",
				fmt.Sprintf("index %d header is %s, value is %s", index, code, got))
		}
		name, ok := cfg.IndexName(index)
		if !ok {
			log.Trace().Uint16("index", index).Msg("protocol.DecodeMap skip unknown field")
			continue
		}
		m[name] = sub
	}
}

func decodeArray(buf *buffer.Buffer, cfg *schema.Config, code value.Code, depth int) (value.Value, error) {
	want := code.Elem()
	elems := []value.Value{}
	for {
		sub, err := decodeField(buf, cfg, depth+1)
		if err != nil {
			return nil, err
		}
		got := value.CodeOf(sub)
		if got == value.CodeNil {
			break
		}
		if got != want {
			return nil, newError(KindTypeNotMatch, "must match type",
				fmt.Sprintf("%s element %d is %s", code, len(elems), got))
		}
		elems = append(elems, sub)
	}
	arr, err := value.NewArray(code, elems...)
	if err != nil {
		return nil, newError(KindTypeNotMatch, "must match type", err.Error())
	}
	return arr, nil
}

func decodeByCode(buf *buffer.Buffer, cfg *schema.Config, code value.Code, depth int) (value.Value, error) {
	switch {
	case code == value.CodeNil:
		return value.Nil{}, nil
	case code >= value.CodeU8 && code <= value.CodeFloat:
		return DecodeNumber(buf, code)
	case code == value.CodeStr || code == value.CodeRaw:
		return DecodeStrRaw(buf, code)
	case code == value.CodeMap:
		m, err := decodeMap(buf, cfg, depth)
		if err != nil {
			return nil, err
		}
		return m, nil
	case code.IsArray():
		return decodeArray(buf, cfg, code, depth)
	default:
		return nil, newError(KindTypeNotMatch, "must match type", fmt.Sprintf("unknown type code %d", uint16(code)))
	}
}

// decodeField rejects depth past MaxDepth before reading the header.
func decodeField(buf *buffer.Buffer, cfg *schema.Config, depth int) (value.Value, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	_, code, err := ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	return decodeByCode(buf, cfg, code, depth)
}

// DecodeField reads one field. A header with the nil code yields
// value.Nil. On failure the read cursor is restored so the caller may add
// bytes and retry.
func DecodeField(buf *buffer.Buffer, cfg *schema.Config) (value.Value, error) {
	start := buf.Rpos()
	v, err := decodeField(buf, cfg, 0)
	if err != nil {
		buf.SetRpos(start)
		return nil, err
	}
	return v, nil
}

// DecodeProto reads a named message and checks it against cfg. On failure
// the read cursor is restored.
func DecodeProto(buf *buffer.Buffer, cfg *schema.Config) (string, []value.Value, error) {
	start := buf.Rpos()
	name, args, err := decodeProto(buf, cfg)
	if err != nil {
		buf.SetRpos(start)
		log.Debug().Err(err).Str("proto", name).Msg("protocol.DecodeProto failed")
		return "", nil, err
	}
	log.Debug().Str("proto", name).Int("args", len(args)).Int("bytes", buf.Rpos()-start).Msg("protocol.DecodeProto")
	return name, args, nil
}

func decodeProto(buf *buffer.Buffer, cfg *schema.Config) (string, []value.Value, error) {
	raw, err := DecodeStrRaw(buf, value.CodeStr)
	if err != nil {
		return "", nil, err
	}
	name := string(raw.(value.Str))
	args := []value.Value{}
	for {
		sub, err := decodeField(buf, cfg, 0)
		if err != nil {
			return name, nil, err
		}
		if value.CodeOf(sub) == value.CodeNil {
			break
		}
		args = append(args, sub)
	}
	proto, ok := cfg.ProtoByName(name)
	if !ok {
		return name, nil, newError(KindMissing, "missing the name protocol", name)
	}
	if len(proto.Args) != len(args) {
		return name, nil, newError(KindTypeNotMatch, "the data num not match protocol args num",
			fmt.Sprintf("%s: got %d want %d", name, len(args), len(proto.Args)))
	}
	return name, args, nil
}
