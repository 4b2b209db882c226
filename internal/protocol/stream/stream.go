// Package stream carries encoded messages over an io.Reader or io.Writer.
//
// Ownership boundary:
// - buffering partial input until a whole message is available
// - bounding buffered input with Limits
// - classifying transport failures as protocol.KindIO
//
// A Reader or Writer serves one connection and is not safe for concurrent
// use.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/tdproto/internal/protocol"
	"github.com/danmuck/tdproto/internal/protocol/buffer"
	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/danmuck/tdproto/internal/protocol/value"
	"github.com/rs/zerolog/log"
)

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// Limits constrains stream memory use.
type Limits struct {
	// MaxBufferBytes caps input buffered for one message, and the encoded
	// size of one outgoing message.
	MaxBufferBytes int
	// ReadChunk is the most bytes requested from the reader per fill.
	ReadChunk int
}

func DefaultLimits() Limits {
	return Limits{
		MaxBufferBytes: 8 * 1024 * 1024,
		ReadChunk:      4 * 1024,
	}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxBufferBytes <= 0 {
		l.MaxBufferBytes = d.MaxBufferBytes
	}
	if l.ReadChunk <= 0 {
		l.ReadChunk = d.ReadChunk
	}
	return l
}

func overMax(n, limit int) error {
	return &protocol.Error{
		Kind:   protocol.KindBufferOverMax,
		Desc:   "buffer over max",
		Detail: fmt.Sprintf("%d bytes exceeds limit %d", n, limit),
	}
}

// Reader decodes messages from a byte stream. Bytes past the end of a
// decoded message stay buffered for the next call. After an error other
// than a clean io.EOF the stream position is undefined and the Reader
// should be discarded.
type Reader struct {
	src    io.Reader
	cfg    *schema.Config
	limits Limits
	buf    *buffer.Buffer
	eof    bool
	// decodes counts full decode passes, one per message read.
	decodes int
}

func NewReader(src io.Reader, cfg *schema.Config, limits Limits) *Reader {
	return &Reader{
		src:    src,
		cfg:    cfg,
		limits: limits.normalized(),
		buf:    buffer.New(),
	}
}

// Buffered returns the number of bytes read from the source but not yet
// consumed by a decoded message.
func (r *Reader) Buffered() int {
	return r.buf.Unread()
}

// ReadProto reads the next named message.
func (r *Reader) ReadProto() (string, []value.Value, error) {
	var (
		name string
		args []value.Value
	)
	err := r.decode(protocol.NewProtoScanner(), func(buf *buffer.Buffer) error {
		var err error
		name, args, err = protocol.DecodeProto(buf, r.cfg)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return name, args, nil
}

// ReadField reads the next unnamed field.
func (r *Reader) ReadField() (value.Value, error) {
	var v value.Value
	err := r.decode(protocol.NewFieldScanner(), func(buf *buffer.Buffer) error {
		var err error
		v, err = protocol.DecodeField(buf, r.cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// decode buffers input until scan finds the end of the next message, then
// decodes it once and drains it.
func (r *Reader) decode(scan *protocol.Scanner, fn func(*buffer.Buffer) error) error {
	for {
		_, complete, err := scan.Scan(r.buf.Unconsumed())
		if err != nil {
			return err
		}
		if complete {
			r.decodes++
			if err := fn(r.buf); err != nil {
				return err
			}
			r.buf.Drain(r.buf.Rpos())
			return nil
		}
		if r.eof {
			if r.buf.Unread() == 0 {
				return io.EOF
			}
			return protocol.WrapIO(io.ErrUnexpectedEOF)
		}
		if err := r.fill(); err != nil {
			return err
		}
	}
}

func (r *Reader) fill() error {
	room := r.limits.MaxBufferBytes - r.buf.Unread()
	if room <= 0 {
		return overMax(r.buf.Unread()+1, r.limits.MaxBufferBytes)
	}
	for empty := 0; empty < maxEmptyReads; empty++ {
		n, err := r.buf.Fill(r.src, min(r.limits.ReadChunk, room))
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		if err != nil {
			return protocol.WrapIO(err)
		}
		if n > 0 {
			log.Trace().Int("bytes", n).Int("buffered", r.buf.Unread()).Msg("stream.Reader fill")
			return nil
		}
	}
	return protocol.WrapIO(io.ErrNoProgress)
}

// Writer encodes messages onto a byte stream. Each message is fully
// encoded before any byte reaches the destination.
type Writer struct {
	dst    io.Writer
	cfg    *schema.Config
	limits Limits
	buf    *buffer.Buffer
}

func NewWriter(dst io.Writer, cfg *schema.Config, limits Limits) *Writer {
	return &Writer{
		dst:    dst,
		cfg:    cfg,
		limits: limits.normalized(),
		buf:    buffer.New(),
	}
}

// WriteProto encodes and writes one named message.
func (w *Writer) WriteProto(name string, args []value.Value) error {
	w.buf.Clear()
	if err := protocol.EncodeProto(w.buf, w.cfg, name, args); err != nil {
		return err
	}
	return w.flush()
}

// WriteField encodes and writes one unnamed field.
func (w *Writer) WriteField(v value.Value) error {
	w.buf.Clear()
	if err := protocol.EncodeField(w.buf, w.cfg, v); err != nil {
		return err
	}
	return w.flush()
}

func (w *Writer) flush() error {
	defer w.buf.Clear()
	if n := w.buf.Unread(); n > w.limits.MaxBufferBytes {
		return overMax(n, w.limits.MaxBufferBytes)
	}
	if _, err := w.buf.WriteTo(w.dst); err != nil {
		return protocol.WrapIO(err)
	}
	return nil
}
