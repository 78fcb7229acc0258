package core

import (
	Text "github.com/linkdotnet/golang-stringbuilder"
)

// defaultBufferFloor is the minimum ring capacity when no read-ahead limit
// has been declared yet.
const defaultBufferFloor = 4096

// CharBuffer is a growable ring of decoded code points sitting between the
// Decoder and the Scanner. It tracks a caller-declared read-ahead limit
// used to bound mark/reset backtracking.
type CharBuffer struct {
	data      []rune
	start     int
	length    int
	readLimit int
	eof       bool
}

// NewCharBuffer creates a buffer sized for at least readLimit code points
// of backtracking.
func NewCharBuffer(readLimit int) *CharBuffer {
	capacity := defaultBufferFloor
	if 2*readLimit > capacity {
		capacity = 2 * readLimit
	}
	return &CharBuffer{
		data:      make([]rune, capacity),
		readLimit: readLimit,
	}
}

// Len returns the number of code points currently buffered and not yet
// discarded.
func (b *CharBuffer) Len() int { return b.length }

// EOF reports whether the underlying entity has been exhausted and every
// buffered code point has been consumed.
func (b *CharBuffer) EOF() bool { return b.eof && b.length == 0 }

// MarkEOF records that no further code points will be appended.
func (b *CharBuffer) MarkEOF() { b.eof = true }

// At returns the code point at logical offset i from the oldest
// not-yet-discarded position, or (0, false) past the buffered tail.
func (b *CharBuffer) At(i int) (rune, bool) {
	if i < 0 || i >= b.length {
		return 0, false
	}
	return b.data[(b.start+i)%len(b.data)], true
}

// Append adds decoded code points to the buffer tail, growing the ring if
// necessary.
func (b *CharBuffer) Append(rs []rune) {
	for len(rs) > 0 {
		if b.length == len(b.data) {
			b.grow()
		}
		free := len(b.data) - b.length
		n := min(free, len(rs))
		end := (b.start + b.length) % len(b.data)
		for i := 0; i < n; i++ {
			b.data[(end+i)%len(b.data)] = rs[i]
		}
		b.length += n
		rs = rs[n:]
	}
}

func (b *CharBuffer) grow() {
	newCap := len(b.data) * 2
	if newCap == 0 {
		newCap = defaultBufferFloor
	}
	nd := make([]rune, newCap)
	for i := 0; i < b.length; i++ {
		nd[i] = b.data[(b.start+i)%len(b.data)]
	}
	b.data = nd
	b.start = 0
}

// Discard drops the oldest n code points, freeing them for reuse. Callers
// must not discard past a still-open mark handle.
func (b *CharBuffer) Discard(n int) {
	if n > b.length {
		n = b.length
	}
	b.start = (b.start + n) % len(b.data)
	b.length -= n
}

// NormalizeLineEndings rewrites CR and CRLF to a single LF, per section
// 4.3's "CR, LF, and CRLF are all normalized to a single LF" rule. It must
// run before code points reach the scanner buffer.
func NormalizeLineEndings(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); i++ {
		if rs[i] == '\r' {
			out = append(out, '\n')
			if i+1 < len(rs) && rs[i+1] == '\n' {
				i++
			}
			continue
		}
		out = append(out, rs[i])
	}
	return out
}

// coalescer accumulates run-on character data between buffer boundaries so
// the parser can emit a single Characters event rather than one per
// buffer refill or reference, built on a string-builder rather than
// repeated string concatenation.
type coalescer struct {
	sb Text.StringBuilder
}

func (c *coalescer) WriteRune(r rune) {
	c.sb.Append(string(r))
}

func (c *coalescer) WriteString(s string) {
	c.sb.Append(s)
}

func (c *coalescer) Len() int {
	return len(c.sb.ToString())
}

func (c *coalescer) String() string {
	return c.sb.ToString()
}

func (c *coalescer) Reset() {
	c.sb = Text.StringBuilder{}
}
