package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingHandler captures the event stream a Parser produces, for
// assertions against the sequence and content of what fired.
type recordingHandler struct {
	events []string
	chars  []string
	attrs  map[string][]AttributeRecord
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{attrs: map[string][]AttributeRecord{}}
}

func (h *recordingHandler) SetDocumentLocator(Position)      {}
func (h *recordingHandler) StartDocument() error              { h.events = append(h.events, "startDocument"); return nil }
func (h *recordingHandler) EndDocument() error                { h.events = append(h.events, "endDocument"); return nil }
func (h *recordingHandler) StartPrefixMapping(p, u string) error {
	h.events = append(h.events, "startPrefix:"+p)
	return nil
}
func (h *recordingHandler) EndPrefixMapping(p string) error {
	h.events = append(h.events, "endPrefix:"+p)
	return nil
}
func (h *recordingHandler) StartElement(uri, local, qname string, attrs *AttributeSet) error {
	h.events = append(h.events, "start:"+qname)
	for i := 0; i < attrs.Len(); i++ {
		h.attrs[qname] = append(h.attrs[qname], attrs.At(i))
	}
	return nil
}
func (h *recordingHandler) EndElement(uri, local, qname string) error {
	h.events = append(h.events, "end:"+qname)
	return nil
}
func (h *recordingHandler) Characters(text string) error {
	h.events = append(h.events, "chars")
	h.chars = append(h.chars, text)
	return nil
}
func (h *recordingHandler) IgnorableWhitespace(text string) error { return h.Characters(text) }
func (h *recordingHandler) ProcessingInstruction(target, data string) error {
	h.events = append(h.events, "pi:"+target)
	return nil
}
func (h *recordingHandler) SkippedEntity(name string) error {
	h.events = append(h.events, "skipped:"+name)
	return nil
}

func TestParserSimpleDocument(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<root><child>hello</child></root>`})
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"startDocument", "start:root", "start:child", "chars", "end:child", "end:root", "endDocument",
	}, h.events)
	assert.Equal(t, []string{"hello"}, h.chars)
}

func TestParserAttributesAndPredefinedEntities(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<root a="1 &amp; 2">x</root>`})
	assert.NoError(t, err)
	recs := h.attrs["root"]
	assert.Len(t, recs, 1)
	assert.Equal(t, "1 & 2", recs[0].Value)
}

func TestParserNamespaces(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<a:root xmlns:a="urn:a"><a:child/></a:root>`})
	assert.NoError(t, err)
	assert.Contains(t, h.events, "start:a:root")
	assert.Contains(t, h.events, "start:a:child")
}

func TestParserCharacterReference(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<root>&#65;&#x42;</root>`})
	assert.NoError(t, err)
	assert.Equal(t, []string{"AB"}, h.chars)
}

func TestParserComment(t *testing.T) {
	var comments []string
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)
	p.SetLexicalHandler(commentRecorder{&comments})

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<!-- hi --><root/>`})
	assert.NoError(t, err)
	assert.Equal(t, []string{" hi "}, comments)
}

func TestParserInternalEntityExpansion(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	doc := `<!DOCTYPE root [<!ENTITY greeting "hello, world">]><root>&greeting;</root>`
	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: doc})
	assert.NoError(t, err)
	assert.Equal(t, []string{"hello, world"}, h.chars)
}

func TestParserDTDAttributeDefaulting(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	doc := `<!DOCTYPE root [<!ATTLIST root lang CDATA "en">]><root/>`
	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: doc})
	assert.NoError(t, err)
	recs := h.attrs["root"]
	assert.Len(t, recs, 1)
	assert.Equal(t, "en", recs[0].Value)
}

func TestParserMismatchedEndTagIsFatal(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<root></other>`})
	assert.Error(t, err)
}

func TestParserUndeclaredPrefixIsFatal(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<q:root/>`})
	assert.Error(t, err)
}

func TestParserXMLDeclVersionAndStandalone(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	doc := `<?xml version="1.0" standalone="yes"?><root/>`
	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: doc})
	assert.NoError(t, err)
	assert.True(t, p.Features.IsStandalone)
}

func TestParserXMLDeclStandaloneNo(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	doc := `<?xml version="1.0" standalone="no"?><root/>`
	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: doc})
	assert.NoError(t, err)
	assert.False(t, p.Features.IsStandalone)
}

func TestParserXMLDeclUnsupportedVersionIsFatal(t *testing.T) {
	p := NewParser()
	p.SetContentHandler(newRecordingHandler())

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<?xml version="2.0"?><root/>`})
	assert.Error(t, err)
}

func TestParserXMLDeclStandaloneInvalidValueIsFatal(t *testing.T) {
	p := NewParser()
	p.SetContentHandler(newRecordingHandler())

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<?xml version="1.0" standalone="maybe"?><root/>`})
	assert.Error(t, err)
}

func TestParserXMLDeclEncodingSwitchesDecoder(t *testing.T) {
	h := newRecordingHandler()
	p := NewParser()
	p.SetContentHandler(h)

	doc := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><root>caf`), 0xE9)
	doc = append(doc, []byte(`</root>`)...)

	err := p.Parse(&EntityInput{SystemID: "doc.xml", Bytes: doc})
	assert.NoError(t, err)
	assert.Equal(t, []string{"café"}, h.chars)
}

func TestParserFeatureCannotChangeMidParse(t *testing.T) {
	p := NewParser()
	p.SetContentHandler(newRecordingHandler())
	assert.NoError(t, p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<root/>`}))
	assert.Error(t, p.Features.SetFeature(FeatureValidation, true))
}

type commentRecorder struct{ out *[]string }

func (c commentRecorder) StartDTD(string, string, string) error { return nil }
func (c commentRecorder) EndDTD() error                         { return nil }
func (c commentRecorder) StartEntity(string) error              { return nil }
func (c commentRecorder) EndEntity(string) error                { return nil }
func (c commentRecorder) StartCDATA() error                     { return nil }
func (c commentRecorder) EndCDATA() error                       { return nil }
func (c commentRecorder) Comment(text string) error {
	*c.out = append(*c.out, text)
	return nil
}
