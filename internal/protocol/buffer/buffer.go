// Package buffer provides the cursor-tracked byte store the codec reads
// from and writes to.
//
// A Buffer keeps two independent offsets: rpos (next unread byte) and wpos
// (next unwritten byte, the logical end of valid data). The invariant
// rpos <= wpos <= Len() holds after every method. A Buffer represents one
// in-flight byte stream and is not safe for concurrent use.
package buffer

import (
	"fmt"
	"io"
)

type Buffer struct {
	val  []byte
	rpos int
	wpos int
}

func New() *Buffer {
	return &Buffer{}
}

// NewWith returns a buffer holding a copy of p with the write cursor at its
// end.
func NewWith(p []byte) *Buffer {
	b := &Buffer{}
	b.Write(p)
	return b
}

// Len returns the storage length, which is the high-water mark of writes.
func (b *Buffer) Len() int {
	return len(b.val)
}

// Unread returns wpos - rpos.
func (b *Buffer) Unread() int {
	return b.wpos - b.rpos
}

// Bytes returns the written region [0, wpos). The slice aliases storage
// until the next mutation.
func (b *Buffer) Bytes() []byte {
	return b.val[:b.wpos]
}

// Unconsumed returns the region [rpos, wpos).
func (b *Buffer) Unconsumed() []byte {
	return b.val[b.rpos:b.wpos]
}

func (b *Buffer) Rpos() int {
	return b.rpos
}

// SetRpos moves the read cursor, clamped to [0, wpos].
func (b *Buffer) SetRpos(rpos int) {
	b.rpos = clamp(rpos, 0, b.wpos)
}

func (b *Buffer) Wpos() int {
	return b.wpos
}

// SetWpos moves the write cursor, clamped to [0, Len()]. The read cursor
// follows when it would otherwise pass the new write cursor.
func (b *Buffer) SetWpos(wpos int) {
	b.wpos = clamp(wpos, 0, len(b.val))
	if b.rpos > b.wpos {
		b.rpos = b.wpos
	}
}

// Write copies p at the write cursor, growing storage as needed, and
// returns len(p).
func (b *Buffer) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	end := b.wpos + len(p)
	if end > len(b.val) {
		b.grow(end)
	}
	copy(b.val[b.wpos:end], p)
	b.wpos = end
	return len(p)
}

// Read copies up to min(len(p), Unread()) bytes from the read cursor and
// advances it. Read never blocks and never fails; a short or zero count is
// the only signal of exhaustion.
func (b *Buffer) Read(p []byte) int {
	n := copy(p, b.val[b.rpos:b.wpos])
	b.rpos += n
	return n
}

// Drain removes the first min(n, Len()) bytes of storage. Both cursors
// move back by min(cursor, n).
func (b *Buffer) Drain(n int) {
	b.drain(n)
}

// DrainCollect is Drain returning a copy of the removed bytes.
func (b *Buffer) DrainCollect(n int) []byte {
	k := clamp(n, 0, len(b.val))
	out := make([]byte, k)
	copy(out, b.val[:k])
	b.drain(k)
	return out
}

func (b *Buffer) drain(n int) {
	k := clamp(n, 0, len(b.val))
	if k == 0 {
		return
	}
	rest := copy(b.val, b.val[k:])
	b.val = b.val[:rest]
	b.rpos -= min(b.rpos, k)
	b.wpos -= min(b.wpos, k)
}

// Checkpoint is the write state captured by Mark.
type Checkpoint struct {
	wpos int
	size int
	tail []byte
}

// Mark captures the write cursor, the storage length and any bytes stored
// past the write cursor, so a failed sequence of writes can be undone.
func (b *Buffer) Mark() Checkpoint {
	c := Checkpoint{wpos: b.wpos, size: len(b.val)}
	if b.wpos < len(b.val) {
		c.tail = append([]byte(nil), b.val[b.wpos:]...)
	}
	return c
}

// Rollback restores the state captured by Mark. Reads performed since Mark
// are kept unless they passed the restored write cursor.
func (b *Buffer) Rollback(c Checkpoint) {
	if c.size > len(b.val) {
		b.grow(c.size)
	}
	b.val = b.val[:c.size]
	copy(b.val[c.wpos:], c.tail)
	b.wpos = c.wpos
	if b.rpos > b.wpos {
		b.rpos = b.wpos
	}
}

// Clear empties storage and resets both cursors.
func (b *Buffer) Clear() {
	b.val = b.val[:0]
	b.rpos = 0
	b.wpos = 0
}

// Fill performs one Read of at most limit bytes from r into the write end
// of the buffer. Errors from r, io.EOF included, are returned as is.
func (b *Buffer) Fill(r io.Reader, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("buffer: invalid read size %d", limit)
	}
	prev := len(b.val)
	end := b.wpos + limit
	if end > prev {
		b.grow(end)
	}
	n, err := r.Read(b.val[b.wpos:end])
	if n < 0 || n > limit {
		b.val = b.val[:prev]
		return 0, fmt.Errorf("buffer: reader returned invalid count %d", n)
	}
	b.wpos += n
	if b.wpos > prev {
		prev = b.wpos
	}
	b.val = b.val[:prev]
	return n, err
}

// WriteTo writes the unread region to w and advances the read cursor by the
// bytes accepted.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.val[b.rpos:b.wpos])
	if n < 0 || n > b.wpos-b.rpos {
		return 0, fmt.Errorf("buffer: writer returned invalid count %d", n)
	}
	b.rpos += n
	if err == nil && b.rpos != b.wpos {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("bytes (%v)", b.val[:b.wpos])
}

func (b *Buffer) grow(n int) {
	if n <= cap(b.val) {
		b.val = b.val[:n]
		return
	}
	c := 2*cap(b.val) + 64
	if c < n {
		c = n
	}
	nb := make([]byte, n, c)
	copy(nb, b.val)
	b.val = nb
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
