package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUTF8DecoderBasic(t *testing.T) {
	d := NewUTF8Decoder()
	var out []rune
	res := d.Decode([]byte("héllo"), true, &out)
	assert.Equal(t, DecodeOK, res.Status)
	assert.Equal(t, "héllo", string(out))
}

func TestUTF8DecoderIncompleteSequenceCarriesForward(t *testing.T) {
	d := NewUTF8Decoder()
	full := []byte("é") // 2-byte UTF-8 sequence
	var out []rune

	res := d.Decode(full[:1], false, &out)
	assert.Equal(t, DecodeInputExhausted, res.Status)
	assert.Empty(t, out)

	res = d.Decode(full[1:], true, &out)
	assert.Equal(t, DecodeOK, res.Status)
	assert.Equal(t, "é", string(out))
}

func TestASCIIDecoderRejectsHighBytes(t *testing.T) {
	d := NewASCIIDecoder(WithInvalidCharAction(ErrorActionFail))
	var out []rune
	res := d.Decode([]byte{0x41, 0xFF}, true, &out)
	assert.Equal(t, DecodeMalformed, res.Status)
}

func TestASCIIDecoderReplacesByDefault(t *testing.T) {
	d := NewASCIIDecoder()
	var out []rune
	res := d.Decode([]byte{0x41, 0xFF}, true, &out)
	assert.Equal(t, DecodeOK, res.Status)
	assert.Equal(t, []rune{'A', 0xFFFD}, out)
}

func TestUTF32DecoderRoundTrip(t *testing.T) {
	be := NewUTF32Decoder(true)
	input := []byte{0x00, 0x00, 0x00, 0x41, 0x00, 0x00, 0x00, 0x42} // "AB" big-endian
	var out []rune
	res := be.Decode(input, true, &out)
	assert.Equal(t, DecodeOK, res.Status)
	assert.Equal(t, "AB", string(out))
	assert.Equal(t, "UTF-32BE", be.Name())

	le := NewUTF32Decoder(false)
	inputLE := []byte{0x41, 0x00, 0x00, 0x00, 0x42, 0x00, 0x00, 0x00}
	out = nil
	res = le.Decode(inputLE, true, &out)
	assert.Equal(t, DecodeOK, res.Status)
	assert.Equal(t, "AB", string(out))
	assert.Equal(t, "UTF-32LE", le.Name())
}

func TestUTF32DecoderRejectsSurrogateRange(t *testing.T) {
	d := NewUTF32Decoder(true, WithInvalidCharAction(ErrorActionFail))
	input := []byte{0x00, 0x00, 0xD8, 0x00} // U+D800, a surrogate
	var out []rune
	res := d.Decode(input, true, &out)
	assert.Equal(t, DecodeMalformed, res.Status)
}

func TestUTF32DecoderCarriesPartialQuadForward(t *testing.T) {
	d := NewUTF32Decoder(true)
	var out []rune
	res := d.Decode([]byte{0x00, 0x00, 0x00}, false, &out)
	assert.Equal(t, DecodeInputExhausted, res.Status)
	res = d.Decode([]byte{0x41}, true, &out)
	assert.Equal(t, DecodeOK, res.Status)
	assert.Equal(t, "A", string(out))
}

func TestDetectEncoding(t *testing.T) {
	cases := []struct {
		name       string
		lookahead  []byte
		wantName   string
		wantBOMLen int
	}{
		{"utf8-bom", []byte{0xEF, 0xBB, 0xBF, 0x3C}, "UTF-8", 3},
		{"utf16be-bom", []byte{0xFE, 0xFF, 0x00, 0x3C}, "UTF-16BE", 2},
		{"utf16le-bom", []byte{0xFF, 0xFE, 0x3C, 0x00}, "UTF-16LE", 2},
		{"utf32be-bom", []byte{0x00, 0x00, 0xFE, 0xFF}, "UTF-32BE", 4},
		{"utf32le-bom", []byte{0xFF, 0xFE, 0x00, 0x00}, "UTF-32LE", 4},
		{"utf16be-no-bom", []byte{0x00, 0x3C, 0x00, 0x3F}, "UTF-16BE", 0},
		{"utf16le-no-bom", []byte{0x3C, 0x00, 0x3F, 0x00}, "UTF-16LE", 0},
		{"plain-utf8", []byte("<?xml "), "UTF-8", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			name, bomLen := DetectEncoding(c.lookahead)
			assert.Equal(t, c.wantName, name)
			assert.Equal(t, c.wantBOMLen, bomLen)
		})
	}
}

func TestCodecRegistryLookup(t *testing.T) {
	r := NewCodecRegistry()

	names := []string{"UTF-8", "us-ascii", "UTF-16BE", "utf-16le", "UTF-32BE", "utf-32le", "ISO-8859-1", "latin1"}
	for _, n := range names {
		t.Run(n, func(t *testing.T) {
			dec, err := r.Lookup(n)
			assert.NoError(t, err)
			assert.NotNil(t, dec)
		})
	}
}

func TestCodecRegistryLookupFallsBackToCharset(t *testing.T) {
	r := NewCodecRegistry()
	dec, err := r.Lookup("windows-1252")
	assert.NoError(t, err)
	assert.NotNil(t, dec)
}

func TestCodecRegistryLookupUnknown(t *testing.T) {
	r := NewCodecRegistry()
	_, err := r.Lookup("not-a-real-encoding")
	assert.Error(t, err)
}
