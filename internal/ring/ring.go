// Package ring implements the append-only/consumer-advanced byte buffer
// described as the byte buffer & token layer: a contiguous window of
// unconsumed bytes, peekable and consumable up to a CRLF terminator,
// with decimal integer and IEEE-754 double parsing built on top.
package ring

import (
	"errors"
	"math"
	"strconv"
)

// ErrNeedMore is returned by any parse that requires bytes not yet
// buffered. Callers must not advance the read position on ErrNeedMore:
// the buffer is left exactly as it was.
var ErrNeedMore = errors.New("ring: need more bytes")

// Buffer is a single-producer/single-consumer byte window. The zero
// value is ready to use.
type Buffer struct {
	buf  []byte
	read int
}

// Grow appends p to the write head.
func (b *Buffer) Grow(p []byte) {
	if b.read > 0 && b.read == len(b.buf) {
		b.buf = b.buf[:0]
		b.read = 0
	}
	b.buf = append(b.buf, p...)
}

// Unread returns the bytes between the read cursor and the write head.
func (b *Buffer) Unread() []byte {
	return b.buf[b.read:]
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.buf) - b.read
}

// Peek returns the byte at the read cursor without consuming it.
func (b *Buffer) Peek() (byte, bool) {
	if b.read >= len(b.buf) {
		return 0, false
	}
	return b.buf[b.read], true
}

// Advance moves the read cursor forward n bytes. Callers must ensure n
// does not exceed Len(). Unlike Grow, Advance never compacts the
// backing array, so a Mark taken before a sequence of Advance calls
// stays valid even if one of them consumes the whole buffer -- needed
// so Decoder.Decode can roll back a partially-decoded nested frame.
func (b *Buffer) Advance(n int) {
	b.read += n
}

// Mark returns an opaque cursor position that Rewind can later restore
// to, so a caller can undo a sequence of Advance calls made while
// decoding a frame that turned out to be incomplete.
func (b *Buffer) Mark() int {
	return b.read
}

// Rewind restores the read cursor to a position previously returned by
// Mark.
func (b *Buffer) Rewind(mark int) {
	b.read = mark
}

// Compact discards already-consumed bytes from the front of the
// backing array. Callers should only call it between top-level Decode
// calls (i.e. when no Mark is outstanding), typically once per read
// loop iteration.
func (b *Buffer) Compact() {
	if b.read == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.read:])
	b.buf = b.buf[:n]
	b.read = 0
}

// Line returns the bytes up to (but excluding) the next CRLF and
// advances past it. It returns ErrNeedMore, leaving the cursor
// untouched, if no CRLF is buffered yet.
func (b *Buffer) Line() ([]byte, error) {
	rest := b.Unread()
	for i := 0; i+1 < len(rest); i++ {
		if rest[i] == '\r' && rest[i+1] == '\n' {
			line := rest[:i]
			b.Advance(i + 2)
			return line, nil
		}
	}
	return nil, ErrNeedMore
}

// Take consumes exactly n bytes plus a trailing CRLF and returns the n
// bytes (a slice into the buffer's backing array: callers that retain
// it across further Grow calls must copy it first).
func (b *Buffer) Take(n int) ([]byte, error) {
	if b.Len() < n+2 {
		return nil, ErrNeedMore
	}
	rest := b.Unread()
	if rest[n] != '\r' || rest[n+1] != '\n' {
		return nil, errNoFinalCRLF
	}
	out := rest[:n]
	b.Advance(n + 2)
	return out, nil
}

var errNoFinalCRLF = errors.New("ring: no final CRLF after bulk payload")

// ParseInt parses an optionally negative decimal integer line (no sign
// other than a single leading '-').
func ParseInt(line []byte) (int64, error) {
	if len(line) == 0 {
		return 0, strconv.ErrSyntax
	}
	neg := line[0] == '-'
	start := 0
	if neg {
		start = 1
	}
	if start == len(line) {
		return 0, strconv.ErrSyntax
	}
	var v int64
	for _, c := range line[start:] {
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v, nil
}

// ParseDouble parses a RESP3 double, including the "inf", "-inf" and
// "nan" literals the protocol allows in addition to normal decimal
// notation.
func ParseDouble(line []byte) (float64, error) {
	s := string(line)
	switch s {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
