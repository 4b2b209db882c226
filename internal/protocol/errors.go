package protocol

import (
	"errors"
	"strings"

	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/danmuck/tdproto/internal/protocol/value"
)

// Kind classifies codec failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNoLeftSpace: a primitive needed more bytes than the buffer held.
	KindNoLeftSpace
	// KindBufferOverMax: a payload or buffer exceeded its size cap.
	KindBufferOverMax
	// KindTypeNotMatch: a runtime type disagreed with the declared one, or a
	// message had the wrong number of arguments.
	KindTypeNotMatch
	// KindParse: the schema could not be parsed or validated.
	KindParse
	// KindMissing: a referenced schema name is absent.
	KindMissing
	// KindStringFormat: string bytes were not valid UTF-8.
	KindStringFormat
	// KindIO wraps a failure of the underlying reader or writer.
	KindIO
	// KindExtension is a caller-defined code and detail.
	KindExtension
)

func (k Kind) String() string {
	switch k {
	case KindNoLeftSpace:
		return "no left space error"
	case KindBufferOverMax:
		return "buffer over max error"
	case KindTypeNotMatch:
		return "type not match error"
	case KindParse:
		return "parse error"
	case KindMissing:
		return "missing error"
	case KindStringFormat:
		return "string format error"
	case KindIO:
		return "I/O error"
	case KindExtension:
		return "extension error"
	default:
		return "unknown error"
	}
}

// Error is the classified error returned by every codec operation.
type Error struct {
	Kind   Kind
	Desc   string
	Detail string
	// Code is set for KindExtension only.
	Code string
	Err  error
}

var (
	ErrNoLeftSpace   = &Error{Kind: KindNoLeftSpace, Desc: "must left space to read"}
	ErrBufferOverMax = &Error{Kind: KindBufferOverMax, Desc: "buffer over max"}
	ErrTypeNotMatch  = &Error{Kind: KindTypeNotMatch, Desc: "must match type"}
	ErrParse         = &Error{Kind: KindParse, Desc: "parse error"}
	ErrMissing       = &Error{Kind: KindMissing, Desc: "missing schema entry"}
	ErrStringFormat  = &Error{Kind: KindStringFormat, Desc: "string format error"}
	ErrIO            = &Error{Kind: KindIO, Desc: "I/O error"}
	ErrExtension     = &Error{Kind: KindExtension, Desc: "extension error"}
)

func newError(kind Kind, desc, detail string) *Error {
	return &Error{Kind: kind, Desc: desc, Detail: detail}
}

// WrapIO classifies an underlying reader/writer failure.
func WrapIO(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Desc: "I/O error", Err: err}
}

// NewExtensionError builds a caller-defined error. An empty detail reads
// "Unknown extension error encountered".
func NewExtensionError(code, detail string) *Error {
	if detail == "" {
		detail = "Unknown extension error encountered"
	}
	return &Error{Kind: KindExtension, Code: code, Detail: detail}
}

func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Kind == KindExtension:
		b.WriteString(e.Code)
	case e.Desc != "":
		b.WriteString(e.Desc)
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind; extension errors must also
// carry the same code unless target's code is empty.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	if e.Kind == KindExtension && t.Code != "" {
		return t.Code == e.Code
	}
	return true
}

// Category is the display name of the error's kind.
func (e *Error) Category() string {
	return e.Kind.String()
}

// KindOf classifies any error produced by this module.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	switch {
	case errors.Is(err, schema.ErrParse), errors.Is(err, schema.ErrInvalid):
		return KindParse
	case errors.Is(err, value.ErrElemType), errors.Is(err, value.ErrNotArray):
		return KindTypeNotMatch
	default:
		return KindUnknown
	}
}
