package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestScanner(t *testing.T, text string, readLimit int) *Scanner {
	t.Helper()
	buf := NewCharBuffer(readLimit)
	buf.Append(NormalizeLineEndings([]rune(text)))
	buf.MarkEOF()
	return NewScanner("test.xml", buf, readLimit)
}

func TestScannerPeekAdvance(t *testing.T) {
	sc := newTestScanner(t, "ab", 16)

	r, ok := sc.Peek(0)
	assert.True(t, ok)
	assert.Equal(t, 'a', r)

	r, ok = sc.Peek(1)
	assert.True(t, ok)
	assert.Equal(t, 'b', r)

	_, ok = sc.Peek(2)
	assert.False(t, ok)

	assert.Equal(t, 'a', sc.Advance())
	assert.Equal(t, 'b', sc.Advance())
	assert.True(t, sc.EOF())
}

func TestScannerAdvanceTracksLineAndColumn(t *testing.T) {
	sc := newTestScanner(t, "ab\ncd", 16)
	sc.Advance() // a
	sc.Advance() // b
	pos := sc.CurrentPosition()
	assert.Equal(t, 1, pos.Line)
	assert.Equal(t, 3, pos.Column)

	sc.Advance() // \n
	pos = sc.CurrentPosition()
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, 1, pos.Column)
}

func TestScannerAdvancePastEOFPanics(t *testing.T) {
	sc := newTestScanner(t, "", 16)
	assert.Panics(t, func() { sc.Advance() })
}

func TestScannerMatch(t *testing.T) {
	sc := newTestScanner(t, "<?xml?>", 16)
	assert.False(t, sc.Match([]rune("<!--")))
	assert.True(t, sc.Match([]rune("<?xml")))
	r, _ := sc.Peek(0)
	assert.Equal(t, '?', r)
}

func TestScannerSkipWhile(t *testing.T) {
	sc := newTestScanner(t, "   abc", 16)
	n := sc.SkipWhile(DefaultCharTypeFacet().IsS)
	assert.Equal(t, 3, n)
	r, _ := sc.Peek(0)
	assert.Equal(t, 'a', r)
}

func TestScannerMarkReset(t *testing.T) {
	sc := newTestScanner(t, "abcdef", 16)
	sc.Advance()
	sc.Advance()
	h := sc.Mark()
	sc.Advance()
	sc.Advance()

	err := sc.Reset(h)
	assert.NoError(t, err)
	r, _ := sc.Peek(0)
	assert.Equal(t, 'c', r)

	sc.Unmark(h)
	assert.Error(t, sc.Reset(h))
}

func TestScannerResetInvalidHandle(t *testing.T) {
	sc := newTestScanner(t, "abc", 16)
	err := sc.Reset(PositionHandle(999))
	assert.Error(t, err)
}

func TestScannerMarkExpiresPastReadLimit(t *testing.T) {
	sc := newTestScanner(t, "0123456789abcdefghij", 4)
	h := sc.Mark()
	for i := 0; i < 10; i++ {
		sc.Advance()
	}
	assert.Error(t, sc.Reset(h))
}

func TestScannerMarkSurvivesWithinReadLimit(t *testing.T) {
	sc := newTestScanner(t, "0123456789", 16)
	h := sc.Mark()
	for i := 0; i < 4; i++ {
		sc.Advance()
	}
	assert.NoError(t, sc.Reset(h))
}
