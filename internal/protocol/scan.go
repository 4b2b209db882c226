package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/tdproto/internal/protocol/value"
)

type scanKind uint8

const (
	scanTop scanKind = iota
	scanProto
	scanMap
	scanArray
)

type scanFrame struct {
	kind scanKind
	// entry is set while a map waits for the value after a schema header.
	entry bool
}

// Scanner finds where one encoded field or message ends without decoding
// it. It keeps its position between calls, so feeding it a growing prefix
// of the same bytes examines each byte once. Nesting follows the same
// MaxDepth rule as the decoder. A Scanner is used for one message.
type Scanner struct {
	off   int
	stack []scanFrame
	done  bool
}

// NewFieldScanner scans one unnamed field.
func NewFieldScanner() *Scanner {
	return &Scanner{stack: []scanFrame{{kind: scanTop}}}
}

// NewProtoScanner scans one named message.
func NewProtoScanner() *Scanner {
	return &Scanner{stack: []scanFrame{{kind: scanProto}}, off: -1}
}

// Scan continues over data, which must extend the bytes seen by earlier
// calls. It returns the encoded length and true once the end is found, or
// false when more bytes are needed. Unknown type codes and excess nesting
// fail the same way they would in the decoder.
func (s *Scanner) Scan(data []byte) (int, bool, error) {
	if s.off < 0 {
		if len(data) < 2 {
			return 0, false, nil
		}
		n := 2 + int(binary.LittleEndian.Uint16(data))
		if len(data) < n {
			return 0, false, nil
		}
		s.off = n
	}
	for !s.done {
		top := &s.stack[len(s.stack)-1]
		if len(data)-s.off < HeaderSize {
			return 0, false, nil
		}
		index := binary.LittleEndian.Uint16(data[s.off:])
		code := value.Code(binary.LittleEndian.Uint16(data[s.off+2:]))

		if top.kind == scanMap && !top.entry {
			s.off += HeaderSize
			if index == 0 && code == value.CodeNil {
				s.pop()
			} else {
				top.entry = true
			}
			continue
		}

		if err := checkDepth(len(s.stack) - 1); err != nil {
			return 0, false, err
		}
		switch {
		case code == value.CodeNil:
			s.off += HeaderSize
			if top.kind == scanProto || top.kind == scanArray {
				s.pop()
			} else {
				s.fieldDone()
			}
		case code >= value.CodeU8 && code <= value.CodeFloat:
			size := 4
			if code <= value.CodeI16 {
				size = 2
			}
			if len(data)-s.off < HeaderSize+size {
				return 0, false, nil
			}
			s.off += HeaderSize + size
			s.fieldDone()
		case code == value.CodeStr || code == value.CodeRaw:
			if len(data)-s.off < HeaderSize+2 {
				return 0, false, nil
			}
			size := HeaderSize + 2 + int(binary.LittleEndian.Uint16(data[s.off+HeaderSize:]))
			if len(data)-s.off < size {
				return 0, false, nil
			}
			s.off += size
			s.fieldDone()
		case code == value.CodeMap:
			s.off += HeaderSize
			s.stack = append(s.stack, scanFrame{kind: scanMap})
		case code.IsArray():
			s.off += HeaderSize
			s.stack = append(s.stack, scanFrame{kind: scanArray})
		default:
			return 0, false, newError(KindTypeNotMatch, "must match type", fmt.Sprintf("unknown type code %d", uint16(code)))
		}
	}
	return s.off, true, nil
}

// pop closes the innermost container, which completes a field of its
// parent, or ends a message.
func (s *Scanner) pop() {
	closed := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if closed.kind == scanProto {
		s.done = true
		return
	}
	s.fieldDone()
}

func (s *Scanner) fieldDone() {
	top := &s.stack[len(s.stack)-1]
	switch top.kind {
	case scanTop:
		s.done = true
	case scanMap:
		top.entry = false
	}
}
