package core

import (
	"fmt"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeStatus reports the outcome of a single Decoder.Decode call.
type DecodeStatus int

const (
	DecodeOK DecodeStatus = iota
	DecodeOutputExhausted
	DecodeInputExhausted
	DecodeMalformed
	DecodeUnmappable
	DecodeEOF
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeOK:
		return "ok"
	case DecodeOutputExhausted:
		return "outputExhausted"
	case DecodeInputExhausted:
		return "inputExhausted"
	case DecodeMalformed:
		return "malformed"
	case DecodeUnmappable:
		return "unmappable"
	case DecodeEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// ErrorAction selects what a Decoder/Encoder does when it meets a byte
// sequence or code point it cannot translate.
type ErrorAction int

const (
	ErrorActionFail ErrorAction = iota
	ErrorActionReplace
	ErrorActionIgnore
)

// DecodeResult is returned by every Decoder.Decode call.
type DecodeResult struct {
	BytesConsumed      int
	CodePointsProduced int
	Status             DecodeStatus
	// BadLength is the length in bytes of the offending sequence when
	// Status is DecodeMalformed or DecodeUnmappable.
	BadLength int
}

// Decoder turns bytes into code points. It is stateful across calls,
// carrying any trailing partial byte sequence forward until more input (or
// EOF) resolves it.
type Decoder interface {
	// Decode consumes from input and appends produced code points to
	// *output. inputEOF tells the decoder no further bytes will ever
	// arrive, so a dangling partial sequence becomes malformed rather than
	// input-exhausted.
	Decode(input []byte, inputEOF bool, output *[]rune) DecodeResult
	// Name returns the canonical encoding name, e.g. "UTF-8".
	Name() string
	Reset()
}

// Encoder turns code points into bytes, the mirror of Decoder.
type Encoder interface {
	Encode(input []rune, output *[]byte) error
	Name() string
}

// baseCodec carries the error-handling policy shared by the hand-rolled
// codecs (UTF-8, US-ASCII, UTF-32), which need exact malformed/unmappable
// byte-length reporting that a generic transform.Transformer does not
// surface.
type baseCodec struct {
	invalidCharAction ErrorAction
	unmappableAction  ErrorAction
	replacement       rune
	replacementByte   byte
}

func newBaseCodec() baseCodec {
	return baseCodec{
		invalidCharAction: ErrorActionReplace,
		unmappableAction:  ErrorActionReplace,
		replacement:       0xFFFD,
		replacementByte:   '?',
	}
}

// CodecOption configures error-handling policy on a codec at construction.
type CodecOption func(*baseCodec)

func WithInvalidCharAction(a ErrorAction) CodecOption {
	return func(c *baseCodec) { c.invalidCharAction = a }
}

func WithUnmappableAction(a ErrorAction) CodecOption {
	return func(c *baseCodec) { c.unmappableAction = a }
}

func WithReplacement(r rune) CodecOption {
	return func(c *baseCodec) { c.replacement = r }
}

/*
	UTF-8
*/

type UTF8Decoder struct {
	baseCodec
	pending []byte
}

func NewUTF8Decoder(opts ...CodecOption) *UTF8Decoder {
	d := &UTF8Decoder{baseCodec: newBaseCodec()}
	for _, o := range opts {
		o(&d.baseCodec)
	}
	return d
}

func (d *UTF8Decoder) Name() string { return "UTF-8" }
func (d *UTF8Decoder) Reset()       { d.pending = nil }

func (d *UTF8Decoder) Decode(input []byte, inputEOF bool, output *[]rune) DecodeResult {
	buf := append(d.pending, input...)
	pendingLen := len(d.pending)
	produced := 0
	i := 0

	for i < len(buf) {
		r, size := decodeRuneUTF8(buf[i:])
		if size == 0 {
			// Incomplete sequence at the tail; carry it forward unless EOF.
			if !inputEOF {
				d.pending = append([]byte{}, buf[i:]...)
				return DecodeResult{
					BytesConsumed:      max(0, i-pendingLen),
					CodePointsProduced: produced,
					Status:             DecodeInputExhausted,
				}
			}
			if d.invalidCharAction == ErrorActionFail {
				return DecodeResult{BytesConsumed: len(input), CodePointsProduced: produced, Status: DecodeMalformed, BadLength: len(buf) - i}
			}
			r, size = d.replacement, 1
		} else if !validUTF8Lead(buf[i]) {
			switch d.invalidCharAction {
			case ErrorActionFail:
				return DecodeResult{BytesConsumed: len(input), CodePointsProduced: produced, Status: DecodeMalformed, BadLength: size}
			case ErrorActionIgnore:
				i += size
				continue
			default:
				r = d.replacement
			}
		}
		*output = append(*output, r)
		produced++
		i += size
	}

	d.pending = nil
	return DecodeResult{BytesConsumed: len(input), CodePointsProduced: produced, Status: DecodeOK}
}

func validUTF8Lead(b byte) bool {
	return b < 0x80 || (b >= 0xC2 && b <= 0xF4)
}

// decodeRuneUTF8 decodes one UTF-8 sequence from buf, returning (0, 0)
// when the sequence is incomplete at the buffer tail.
func decodeRuneUTF8(buf []byte) (rune, int) {
	if len(buf) == 0 {
		return 0, 0
	}
	b0 := buf[0]
	switch {
	case b0 < 0x80:
		return rune(b0), 1
	case b0>>5 == 0x6:
		if len(buf) < 2 {
			return 0, 0
		}
		return rune(b0&0x1F)<<6 | rune(buf[1]&0x3F), 2
	case b0>>4 == 0xE:
		if len(buf) < 3 {
			return 0, 0
		}
		return rune(b0&0xF)<<12 | rune(buf[1]&0x3F)<<6 | rune(buf[2]&0x3F), 3
	case b0>>3 == 0x1E:
		if len(buf) < 4 {
			return 0, 0
		}
		return rune(b0&0x7)<<18 | rune(buf[1]&0x3F)<<12 | rune(buf[2]&0x3F)<<6 | rune(buf[3]&0x3F), 4
	default:
		return 0xFFFD, 1
	}
}

type UTF8Encoder struct{ baseCodec }

func NewUTF8Encoder(opts ...CodecOption) *UTF8Encoder {
	e := &UTF8Encoder{baseCodec: newBaseCodec()}
	for _, o := range opts {
		o(&e.baseCodec)
	}
	return e
}

func (e *UTF8Encoder) Name() string { return "UTF-8" }

func (e *UTF8Encoder) Encode(input []rune, output *[]byte) error {
	for _, r := range input {
		*output = append(*output, []byte(string(r))...)
	}
	return nil
}

/*
	US-ASCII
*/

type ASCIIDecoder struct{ baseCodec }

func NewASCIIDecoder(opts ...CodecOption) *ASCIIDecoder {
	d := &ASCIIDecoder{baseCodec: newBaseCodec()}
	for _, o := range opts {
		o(&d.baseCodec)
	}
	return d
}

func (d *ASCIIDecoder) Name() string { return "US-ASCII" }
func (d *ASCIIDecoder) Reset()       {}

func (d *ASCIIDecoder) Decode(input []byte, inputEOF bool, output *[]rune) DecodeResult {
	produced := 0
	for i, b := range input {
		if b < 0x80 {
			*output = append(*output, rune(b))
			produced++
			continue
		}
		switch d.invalidCharAction {
		case ErrorActionFail:
			return DecodeResult{BytesConsumed: i, CodePointsProduced: produced, Status: DecodeMalformed, BadLength: 1}
		case ErrorActionIgnore:
		default:
			*output = append(*output, d.replacement)
			produced++
		}
	}
	return DecodeResult{BytesConsumed: len(input), CodePointsProduced: produced, Status: DecodeOK}
}

/*
	UTF-32, hand-rolled for the same exact malformed-length reporting as
	UTF-8 and US-ASCII. x/text has no UTF-32 transformer, so this family
	would need hand-rolling regardless; the fixed 4-byte stride also makes
	it the simplest of the three to get exactly right.
*/

type UTF32Decoder struct {
	baseCodec
	bigEndian bool
	pending   []byte
}

func NewUTF32Decoder(bigEndian bool, opts ...CodecOption) *UTF32Decoder {
	d := &UTF32Decoder{baseCodec: newBaseCodec(), bigEndian: bigEndian}
	for _, o := range opts {
		o(&d.baseCodec)
	}
	return d
}

func (d *UTF32Decoder) Name() string {
	if d.bigEndian {
		return "UTF-32BE"
	}
	return "UTF-32LE"
}
func (d *UTF32Decoder) Reset() { d.pending = nil }

func (d *UTF32Decoder) Decode(input []byte, inputEOF bool, output *[]rune) DecodeResult {
	buf := append(d.pending, input...)
	pendingLen := len(d.pending)
	produced := 0
	i := 0

	for i+4 <= len(buf) {
		var v uint32
		if d.bigEndian {
			v = uint32(buf[i])<<24 | uint32(buf[i+1])<<16 | uint32(buf[i+2])<<8 | uint32(buf[i+3])
		} else {
			v = uint32(buf[i+3])<<24 | uint32(buf[i+2])<<16 | uint32(buf[i+1])<<8 | uint32(buf[i])
		}
		r := rune(v)
		if v > 0x10FFFF || (v >= 0xD800 && v <= 0xDFFF) {
			if d.invalidCharAction == ErrorActionFail {
				return DecodeResult{BytesConsumed: max(0, i-pendingLen), CodePointsProduced: produced, Status: DecodeMalformed, BadLength: 4}
			}
			if d.invalidCharAction == ErrorActionIgnore {
				i += 4
				continue
			}
			r = d.replacement
		}
		*output = append(*output, r)
		produced++
		i += 4
	}

	if i < len(buf) {
		if !inputEOF {
			d.pending = append([]byte{}, buf[i:]...)
			return DecodeResult{BytesConsumed: max(0, i-pendingLen), CodePointsProduced: produced, Status: DecodeInputExhausted}
		}
		if d.invalidCharAction == ErrorActionFail {
			return DecodeResult{BytesConsumed: len(input), CodePointsProduced: produced, Status: DecodeMalformed, BadLength: len(buf) - i}
		}
		*output = append(*output, d.replacement)
		produced++
	}

	d.pending = nil
	return DecodeResult{BytesConsumed: len(input), CodePointsProduced: produced, Status: DecodeOK}
}

/*
	UTF-16, via golang.org/x/text/encoding/unicode and a
	transform.Transformer adapter. These families need surrogate-pair and
	byte-order handling that is easy to get subtly wrong by hand, and
	x/text already carries it correctly; precise malformed-length
	reporting matters less here than for the ASCII superset family used
	for the XML declaration itself.
*/

type transformDecoder struct {
	baseCodec
	name string
	tr   transform.Transformer
}

func newTransformDecoder(name string, enc encoding.Encoding, opts []CodecOption) *transformDecoder {
	d := &transformDecoder{baseCodec: newBaseCodec(), name: name, tr: enc.NewDecoder()}
	for _, o := range opts {
		o(&d.baseCodec)
	}
	return d
}

func (d *transformDecoder) Name() string { return d.name }
func (d *transformDecoder) Reset()       { d.tr.Reset() }

func (d *transformDecoder) Decode(input []byte, inputEOF bool, output *[]rune) DecodeResult {
	dst := make([]byte, 0, len(input)*2+16)
	for {
		if len(dst) == cap(dst) {
			dst = append(dst, 0)[:len(dst)]
		}
		n, nSrc, err := d.tr.Transform(growBytes(dst, cap(dst)), input, inputEOF)
		dst = dst[:n]
		if err == transform.ErrShortDst {
			dst = growBytes(dst, cap(dst)*2+16)
			continue
		}
		if err == transform.ErrShortSrc && !inputEOF {
			out := []rune(string(dst))
			*output = append(*output, out...)
			return DecodeResult{BytesConsumed: nSrc, CodePointsProduced: len(out), Status: DecodeInputExhausted}
		}
		if err != nil {
			out := []rune(string(dst))
			*output = append(*output, out...)
			return DecodeResult{BytesConsumed: nSrc, CodePointsProduced: len(out), Status: DecodeMalformed, BadLength: len(input) - nSrc}
		}
		out := []rune(string(dst))
		*output = append(*output, out...)
		return DecodeResult{BytesConsumed: nSrc, CodePointsProduced: len(out), Status: DecodeOK}
	}
}

func growBytes(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	nb := make([]byte, n)
	copy(nb, b)
	return nb
}

func NewUTF16BEDecoder(opts ...CodecOption) Decoder {
	return newTransformDecoder("UTF-16BE", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), opts)
}

func NewUTF16LEDecoder(opts ...CodecOption) Decoder {
	return newTransformDecoder("UTF-16LE", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), opts)
}

/*
	CodecRegistry
*/

// CodecRegistry resolves an IANA/XML encoding name to a Decoder. UTF-8,
// US-ASCII and UTF-32 are hand-rolled or built on x/text directly;
// anything else is delegated to golang.org/x/net's charset.Lookup, which
// in turn resolves onto x/text/encoding — this keeps qcxml from having
// to hand-transcribe dozens of legacy single-byte code pages to support
// pluggable codecs.
type CodecRegistry struct {
	opts []CodecOption
}

func NewCodecRegistry(opts ...CodecOption) *CodecRegistry {
	return &CodecRegistry{opts: opts}
}

func (r *CodecRegistry) Lookup(name string) (Decoder, error) {
	switch normalizeEncodingName(name) {
	case "utf-8":
		return NewUTF8Decoder(r.opts...), nil
	case "us-ascii", "ascii":
		return NewASCIIDecoder(r.opts...), nil
	case "utf-16be":
		return NewUTF16BEDecoder(r.opts...), nil
	case "utf-16le":
		return NewUTF16LEDecoder(r.opts...), nil
	case "utf-32be":
		return NewUTF32Decoder(true, r.opts...), nil
	case "utf-32le":
		return NewUTF32Decoder(false, r.opts...), nil
	case "iso-8859-1", "latin1":
		return newTransformDecoder("ISO-8859-1", charmap.ISO8859_1, r.opts), nil
	}

	enc, canonical := charset.Lookup(name)
	if enc == nil {
		return nil, fmt.Errorf("qcxml: unknown encoding %q", name)
	}
	return newTransformDecoder(canonical, enc, r.opts), nil
}

func normalizeEncodingName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// DetectEncoding implements the BOM/declaration sniffing algorithm: it
// looks at up to the first four bytes of an external entity without
// consuming them and returns a provisional encoding name. Longer BOM
// prefixes are checked before shorter ones that would otherwise shadow
// them (a UTF-32LE BOM begins with the same two bytes as UTF-16LE's).
func DetectEncoding(lookahead []byte) (name string, bomLength int) {
	switch {
	case hasPrefix(lookahead, 0x00, 0x00, 0xFE, 0xFF):
		return "UTF-32BE", 4
	case hasPrefix(lookahead, 0xFF, 0xFE, 0x00, 0x00):
		return "UTF-32LE", 4
	case hasPrefix(lookahead, 0xFE, 0xFF):
		return "UTF-16BE", 2
	case hasPrefix(lookahead, 0xFF, 0xFE):
		return "UTF-16LE", 2
	case hasPrefix(lookahead, 0xEF, 0xBB, 0xBF):
		return "UTF-8", 3
	}

	// No BOM: look for a "<?xml" pattern in common byte widths.
	if hasPrefix(lookahead, 0x00, 0x3C, 0x00, 0x3F) {
		return "UTF-16BE", 0
	}
	if hasPrefix(lookahead, 0x3C, 0x00, 0x3F, 0x00) {
		return "UTF-16LE", 0
	}
	if hasPrefix(lookahead, 0x3C, 0x3F, 0x78, 0x6D) {
		return "UTF-8", 0
	}

	return "UTF-8", 0
}

func hasPrefix(b []byte, prefix ...byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if b[i] != p {
			return false
		}
	}
	return true
}
