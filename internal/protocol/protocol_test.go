package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/danmuck/tdproto/internal/protocol/buffer"
	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/danmuck/tdproto/internal/protocol/value"
	"github.com/danmuck/tdproto/internal/testutil/testlog"
	"github.com/maxatome/go-testdeep/td"
)

func loginConfig(t *testing.T) *schema.Config {
	t.Helper()
	cfg, err := schema.New(
		map[string]schema.Field{
			"name":  {Index: 1, Pattern: "str"},
			"index": {Index: 2, Pattern: "u16"},
			"tags":  {Index: 3, Pattern: "str[]"},
			"pos":   {Index: 4, Pattern: "float[]"},
			"child": {Index: 5, Pattern: "map"},
		},
		map[string]schema.Proto{
			"cmd_login":  {MsgType: "client", Args: []string{"str", "map"}},
			"cmd_move":   {MsgType: "client", Args: []string{"i32", "i32"}},
			"cmd_logout": {MsgType: "client", Args: []string{}},
		},
	)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func encodeBytes(t *testing.T, cfg *schema.Config, v value.Value) []byte {
	t.Helper()
	buf := buffer.New()
	if err := EncodeField(buf, cfg, v); err != nil {
		t.Fatalf("encode %v: %v", v, err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func roundTrip(t *testing.T, cfg *schema.Config, v value.Value) value.Value {
	t.Helper()
	buf := buffer.NewWith(encodeBytes(t, cfg, v))
	got, err := DecodeField(buf, cfg)
	if err != nil {
		t.Fatalf("decode %v: %v", v, err)
	}
	if buf.Unread() != 0 {
		t.Fatalf("decode of %v left %d bytes", v, buf.Unread())
	}
	return got
}

func TestEncodeU16Bytes(t *testing.T) {
	testlog.Start(t)
	got := encodeBytes(t, schema.NewEmpty(), value.U16(0x1234))
	td.Cmp(t, got, []byte{0x00, 0x00, 0x03, 0x00, 0x34, 0x12})
}

func TestEncodeScalarLayouts(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		v    value.Value
		want []byte
	}{
		{"u8 padded slot", value.U8(1), []byte{0, 0, 1, 0, 0x01, 0x00}},
		{"i8 padded slot", value.I8(-1), []byte{0, 0, 2, 0, 0xff, 0x00}},
		{"i16", value.I16(-2), []byte{0, 0, 4, 0, 0xfe, 0xff}},
		{"u32", value.U32(0x12345678), []byte{0, 0, 5, 0, 0x78, 0x56, 0x34, 0x12}},
		{"i32", value.I32(-1), []byte{0, 0, 6, 0, 0xff, 0xff, 0xff, 0xff}},
		{"float fixed point", value.Float(1.5), []byte{0, 0, 7, 0, 0xdc, 0x05, 0x00, 0x00}},
		{"nil header only", value.Nil{}, []byte{0, 0, 0, 0}},
		{"str unpadded", value.Str("abc"), []byte{0, 0, 8, 0, 3, 0, 'a', 'b', 'c'}},
		{"raw unpadded", value.Raw{0xaa}, []byte{0, 0, 9, 0, 1, 0, 0xaa}},
		{"empty str", value.Str(""), []byte{0, 0, 8, 0, 0, 0}},
		{"u8 array", value.AU8{value.U8(7)}, []byte{0, 0, 21, 0, 0, 0, 1, 0, 7, 0, 0, 0, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			td.Cmp(t, encodeBytes(t, schema.NewEmpty(), tc.v), tc.want)
		})
	}
}

func TestEncodeMapLayout(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	got := encodeBytes(t, cfg, value.Map{"name": value.Str("abc"), "dropped": value.U8(1)})
	td.Cmp(t, got, []byte{
		0, 0, 10, 0, // map header
		1, 0, 8, 0, // schema header: index 1, str
		0, 0, 8, 0, 3, 0, 'a', 'b', 'c', // value field
		0, 0, 0, 0, // terminator
	})
}

func TestScalarRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg := schema.NewEmpty()
	values := []value.Value{
		value.Nil{},
		value.U8(0), value.U8(255),
		value.I8(-128), value.I8(127),
		value.U16(0xffff), value.I16(-32768),
		value.U32(math.MaxUint32), value.I32(math.MinInt32),
		value.Float(-2.25),
		value.Str("I'm a chinese people"), value.Str("多字节"),
		value.Raw{}, value.Raw{0, 1, 2, 0xff},
	}
	for _, v := range values {
		td.Cmp(t, roundTrip(t, cfg, v), v, "round trip %v", v)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	values := []value.Value{
		value.AU8{value.U8(1), value.U8(2)},
		value.AI8{value.I8(-1)},
		value.AU16{value.U16(1), value.U16(0xffff)},
		value.AI16{value.I16(-5)},
		value.AU32{value.U32(9)},
		value.AI32{value.I32(-9), value.I32(9)},
		value.AFloat{value.Float(0.5), value.Float(-0.25)},
		value.AStr{value.Str("a"), value.Str("")},
		value.ARaw{value.Raw{1}, value.Raw{}},
		value.AMap{value.Map{"name": value.Str("x")}, value.Map{}},
		value.AU8{},
	}
	for _, v := range values {
		got := roundTrip(t, cfg, v)
		if !value.Equal(got, v) {
			t.Fatalf("round trip mismatch: got %v want %v", got, v)
		}
	}
}

func TestFloatFixedPoint(t *testing.T) {
	testlog.Start(t)
	cfg := schema.NewEmpty()
	for _, x := range []float32{0, 1.5, -2.25, 12345.123, 0.0004, -0.0006, 0.0015, 1e6} {
		got := roundTrip(t, cfg, value.Float(x)).(value.Float)
		want := float32(math.Round(float64(x)*1000) / 1000)
		if float32(got) != want {
			t.Fatalf("float %v: got %v want %v", x, got, want)
		}
		if diff := math.Abs(float64(got) - float64(x)); diff > 0.0005+1e-9 {
			t.Fatalf("float %v: error %v exceeds 0.0005", x, diff)
		}
	}
}

func TestFloatOutOfRange(t *testing.T) {
	testlog.Start(t)
	buf := buffer.New()
	for _, x := range []float32{float32(math.NaN()), float32(math.Inf(1)), 3e6} {
		if err := EncodeField(buf, schema.NewEmpty(), value.Float(x)); !errors.Is(err, ErrTypeNotMatch) {
			t.Fatalf("float %v: expected ErrTypeNotMatch, got %v", x, err)
		}
		if buf.Wpos() != 0 || buf.Len() != 0 {
			t.Fatalf("failed encode left bytes: wpos=%d", buf.Wpos())
		}
	}
}

func TestStrTooLong(t *testing.T) {
	testlog.Start(t)
	buf := buffer.New()
	err := EncodeField(buf, schema.NewEmpty(), value.Raw(make([]byte, MaxBytesLen+1)))
	if !errors.Is(err, ErrBufferOverMax) {
		t.Fatalf("expected ErrBufferOverMax, got %v", err)
	}
	if err := EncodeField(buf, schema.NewEmpty(), value.Raw(make([]byte, MaxBytesLen))); err != nil {
		t.Fatalf("max length raw: %v", err)
	}
}

func TestMapRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg, err := schema.New(map[string]schema.Field{
		"name":  {Index: 1, Pattern: "str"},
		"index": {Index: 2, Pattern: "u16"},
	}, nil)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	in := value.Map{"name": value.Str("abc"), "index": value.U16(7)}
	td.Cmp(t, roundTrip(t, cfg, in), in)
}

func TestNestedMapRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	in := value.Map{
		"name": value.Str("root"),
		"tags": value.AStr{value.Str("a"), value.Str("b")},
		"pos":  value.AFloat{value.Float(1.25)},
		"child": value.Map{
			"index": value.U16(3),
			"child": value.Map{"name": value.Str("leaf")},
		},
	}
	got := roundTrip(t, cfg, in)
	if !value.Equal(got, in) {
		t.Fatalf("nested round trip: got %v want %v", got, in)
	}
}

func TestEncodeMapDropsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	got := roundTrip(t, cfg, value.Map{"name": value.Str("a"), "unknown": value.U32(1)})
	td.Cmp(t, got, value.Map{"name": value.Str("a")})
}

func TestDecodeMapSkipsUnknownIndex(t *testing.T) {
	testlog.Start(t)
	wide, err := schema.New(map[string]schema.Field{
		"name":  {Index: 1, Pattern: "str"},
		"index": {Index: 2, Pattern: "u16"},
		"extra": {Index: 9, Pattern: "map[]"},
	}, nil)
	if err != nil {
		t.Fatalf("wide config: %v", err)
	}
	narrow, err := schema.New(map[string]schema.Field{
		"name":  {Index: 1, Pattern: "str"},
		"index": {Index: 2, Pattern: "u16"},
	}, nil)
	if err != nil {
		t.Fatalf("narrow config: %v", err)
	}

	buf := buffer.New()
	in := value.Map{
		"extra": value.AMap{value.Map{"name": value.Str("nested")}},
		"index": value.U16(7),
		"name":  value.Str("abc"),
	}
	if err := EncodeField(buf, wide, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := EncodeField(buf, wide, value.U32(42)); err != nil {
		t.Fatalf("encode trailer: %v", err)
	}

	got, err := DecodeField(buf, narrow)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	td.Cmp(t, got, value.Map{"index": value.U16(7), "name": value.Str("abc")})
	next, err := DecodeField(buf, narrow)
	if err != nil {
		t.Fatalf("decode trailer: %v", err)
	}
	td.Cmp(t, next, value.U32(42))
}

func TestEncodeArrayRejectsMixedElements(t *testing.T) {
	testlog.Start(t)
	buf := buffer.New()
	buf.Write([]byte{0xee})
	err := EncodeField(buf, schema.NewEmpty(), value.AU16{value.U16(1), value.U8(2)})
	if !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch, got %v", err)
	}
	td.Cmp(t, buf.Bytes(), []byte{0xee})

	nested := value.Map{"tags": value.AStr{value.Str("a"), value.Nil{}}}
	if err := EncodeField(buf, loginConfig(t), nested); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch for nested array, got %v", err)
	}
}

func TestDecodeArrayRejectsMixedElements(t *testing.T) {
	testlog.Start(t)
	buf := buffer.NewWith([]byte{
		0, 0, 23, 0, // u16[] header
		0, 0, 3, 0, 1, 0, // u16 element
		0, 0, 1, 0, 2, 0, // u8 element
		0, 0, 0, 0,
	})
	_, err := DecodeField(buf, schema.NewEmpty())
	if !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch, got %v", err)
	}
	if buf.Rpos() != 0 {
		t.Fatalf("read cursor not restored: %d", buf.Rpos())
	}
}

func TestDecodeUnknownTypeCode(t *testing.T) {
	testlog.Start(t)
	buf := buffer.NewWith([]byte{0, 0, 11, 0, 1, 2})
	if _, err := DecodeField(buf, schema.NewEmpty()); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch, got %v", err)
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	testlog.Start(t)
	buf := buffer.NewWith([]byte{0, 0, 8, 0, 2, 0, 0xff, 0xfe})
	if _, err := DecodeField(buf, schema.NewEmpty()); !errors.Is(err, ErrStringFormat) {
		t.Fatalf("expected ErrStringFormat, got %v", err)
	}
	buf = buffer.NewWith([]byte{0, 0, 9, 0, 2, 0, 0xff, 0xfe})
	got, err := DecodeField(buf, schema.NewEmpty())
	if err != nil {
		t.Fatalf("raw with arbitrary bytes: %v", err)
	}
	td.Cmp(t, got, value.Raw{0xff, 0xfe})
}

func TestDecodeShortReadIsResumable(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	full := encodeBytes(t, cfg, value.Map{"name": value.Str("abcdef"), "index": value.U16(9)})
	for cut := 0; cut < len(full); cut++ {
		buf := buffer.NewWith(full[:cut])
		_, err := DecodeField(buf, cfg)
		if !errors.Is(err, ErrNoLeftSpace) {
			t.Fatalf("cut %d: expected ErrNoLeftSpace, got %v", cut, err)
		}
		if buf.Rpos() != 0 {
			t.Fatalf("cut %d: read cursor not restored: %d", cut, buf.Rpos())
		}
		buf.Write(full[cut:])
		got, err := DecodeField(buf, cfg)
		if err != nil {
			t.Fatalf("cut %d: retry failed: %v", cut, err)
		}
		td.Cmp(t, got, value.Map{"name": value.Str("abcdef"), "index": value.U16(9)})
	}
}

func TestSequentialFieldsThenExhausted(t *testing.T) {
	testlog.Start(t)
	cfg := schema.NewEmpty()
	buf := buffer.New()
	for i := 0; i < 2; i++ {
		if err := EncodeField(buf, cfg, value.U8(1)); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	idx, code, err := ReadHeader(buf)
	if err != nil || idx != 0 || code != value.CodeU8 {
		t.Fatalf("header: idx=%d code=%d err=%v", idx, code, err)
	}
	data := make([]byte, 1)
	if n := buf.Read(data); n != 1 || data[0] != 1 {
		t.Fatalf("data byte: n=%d v=%d", n, data[0])
	}
	buf.Read(data) // padding
	got, err := DecodeField(buf, cfg)
	if err != nil {
		t.Fatalf("second field: %v", err)
	}
	td.Cmp(t, got, value.U8(1))
	if n := buf.Read(data); n != 0 {
		t.Fatalf("expected exhausted buffer, read %d", n)
	}
}

func TestProtoRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	buf := buffer.New()
	args := []value.Value{value.Str("dan"), value.Map{"index": value.U16(1)}}
	if err := EncodeProto(buf, cfg, "cmd_login", args); err != nil {
		t.Fatalf("encode proto: %v", err)
	}
	if err := EncodeProto(buf, cfg, "cmd_logout", nil); err != nil {
		t.Fatalf("encode empty proto: %v", err)
	}

	name, got, err := DecodeProto(buf, cfg)
	if err != nil {
		t.Fatalf("decode proto: %v", err)
	}
	if name != "cmd_login" {
		t.Fatalf("unexpected name %q", name)
	}
	td.Cmp(t, got, args)

	name, got, err = DecodeProto(buf, cfg)
	if err != nil || name != "cmd_logout" || len(got) != 0 {
		t.Fatalf("decode empty proto: name=%q args=%v err=%v", name, got, err)
	}
}

func TestProtoLayout(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	buf := buffer.New()
	if err := EncodeProto(buf, cfg, "cmd_move", []value.Value{value.I32(1), value.I32(-1)}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{8, 0}
	want = append(want, "cmd_move"...)
	want = append(want,
		0, 0, 6, 0, 1, 0, 0, 0,
		0, 0, 6, 0, 0xff, 0xff, 0xff, 0xff,
		0, 0, 0, 0,
	)
	td.Cmp(t, buf.Bytes(), want)
}

func TestEncodeProtoErrors(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	buf := buffer.New()
	if err := EncodeProto(buf, cfg, "cmd_unknown", nil); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if err := EncodeProto(buf, cfg, "cmd_move", []value.Value{value.I32(1)}); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch for arity, got %v", err)
	}
	if err := EncodeProto(buf, cfg, "cmd_move", []value.Value{value.I32(1), value.Nil{}}); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch for nil arg, got %v", err)
	}
	bad := []value.Value{value.Str("x"), value.Map{"tags": value.AStr{value.U8(1)}}}
	if err := EncodeProto(buf, cfg, "cmd_login", bad); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch for bad arg, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("failed encodes left %d bytes", buf.Len())
	}
}

func TestDecodeProtoErrors(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	three, err := schema.New(nil, map[string]schema.Proto{
		"cmd_move": {MsgType: "client", Args: []string{"i32", "i32", "i32"}},
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	buf := buffer.New()
	if err := EncodeProto(buf, cfg, "cmd_move", []value.Value{value.I32(1), value.I32(2)}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, _, err := DecodeProto(buf, three); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch for arity, got %v", err)
	}
	if buf.Rpos() != 0 {
		t.Fatalf("read cursor not restored: %d", buf.Rpos())
	}
	if _, _, err := DecodeProto(buf, schema.NewEmpty()); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing for unknown name, got %v", err)
	}
	name, args, err := DecodeProto(buf, cfg)
	if err != nil || name != "cmd_move" || len(args) != 2 {
		t.Fatalf("decode with matching config: name=%q args=%v err=%v", name, args, err)
	}
}

func TestPrimitiveHelpersRejectWrongVariants(t *testing.T) {
	testlog.Start(t)
	buf := buffer.New()
	if err := EncodeNumber(buf, value.Str("x")); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("EncodeNumber: %v", err)
	}
	if err := EncodeStrRaw(buf, value.U8(1)); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("EncodeStrRaw: %v", err)
	}
	if _, err := DecodeNumber(buf, value.CodeStr); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("DecodeNumber: %v", err)
	}
	if _, err := DecodeStrRaw(buf, value.CodeU8); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("DecodeStrRaw: %v", err)
	}
}

func nestedMaps(levels int) value.Map {
	m := value.Map{"index": value.U16(1)}
	for i := 0; i < levels; i++ {
		m = value.Map{"child": m}
	}
	return m
}

func TestNestingUpToMaxDepth(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	in := nestedMaps(MaxDepth - 1)
	if got := roundTrip(t, cfg, in); !value.Equal(got, in) {
		t.Fatalf("deep round trip mismatch")
	}

	buf := buffer.New()
	if err := EncodeField(buf, cfg, nestedMaps(MaxDepth)); !errors.Is(err, ErrBufferOverMax) {
		t.Fatalf("expected ErrBufferOverMax, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("failed encode left %d bytes", buf.Len())
	}
}

func TestEncodeSelfReferentialMapFails(t *testing.T) {
	testlog.Start(t)
	m := value.Map{}
	m["child"] = m
	if err := EncodeField(buffer.New(), loginConfig(t), m); !errors.Is(err, ErrBufferOverMax) {
		t.Fatalf("expected ErrBufferOverMax, got %v", err)
	}
}

func TestDecodeRejectsDeepNesting(t *testing.T) {
	testlog.Start(t)
	cases := map[string][]byte{
		"map arrays": bytes.Repeat([]byte{0, 0, 30, 0}, 100000),
		"maps": bytes.Repeat([]byte{
			0, 0, 10, 0, // map
			5, 0, 10, 0, // schema header: child
		}, 100000),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			buf := buffer.NewWith(data)
			if _, err := DecodeField(buf, loginConfig(t)); !errors.Is(err, ErrBufferOverMax) {
				t.Fatalf("expected ErrBufferOverMax, got %v", err)
			}
			if buf.Rpos() != 0 {
				t.Fatalf("read cursor not restored: %d", buf.Rpos())
			}
		})
	}
}

func TestFailedEncodeKeepsStoragePastWriteCursor(t *testing.T) {
	testlog.Start(t)
	buf := buffer.NewWith([]byte{1, 2, 3, 4})
	buf.SetWpos(0)
	if err := EncodeField(buf, schema.NewEmpty(), value.Float(1e30)); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch, got %v", err)
	}
	if buf.Len() != 4 || buf.Wpos() != 0 {
		t.Fatalf("len=%d wpos=%d", buf.Len(), buf.Wpos())
	}
	buf.SetWpos(4)
	td.Cmp(t, buf.Bytes(), []byte{1, 2, 3, 4})
}

func TestEncodeMapRejectsMistypedValue(t *testing.T) {
	testlog.Start(t)
	cfg := loginConfig(t)
	buf := buffer.New()
	cases := []value.Map{
		{"index": value.Str("7")},
		{"name": value.Nil{}},
		{"child": value.Map{"tags": value.AU8{}}},
	}
	for _, m := range cases {
		if err := EncodeField(buf, cfg, m); !errors.Is(err, ErrTypeNotMatch) {
			t.Fatalf("%v: expected ErrTypeNotMatch, got %v", m, err)
		}
	}
	if err := EncodeMap(buf, cfg, value.Map{"index": value.U8(7)}); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("EncodeMap: expected ErrTypeNotMatch, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("failed encodes left %d bytes", buf.Len())
	}
}

func TestDecodeMapRejectsHeaderValueMismatch(t *testing.T) {
	testlog.Start(t)
	buf := buffer.NewWith([]byte{
		0, 0, 10, 0, // map
		2, 0, 3, 0, // schema header: index, u16
		0, 0, 8, 0, 1, 0, 'a', // str value
		0, 0, 0, 0,
	})
	if _, err := DecodeField(buf, loginConfig(t)); !errors.Is(err, ErrTypeNotMatch) {
		t.Fatalf("expected ErrTypeNotMatch, got %v", err)
	}
}
