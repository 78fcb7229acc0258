package sax

import (
	"encoding/xml"

	"github.com/quickxml/qcxml/core"
)

// WriterContentHandler re-serializes the events it receives through an
// encoding/xml.Encoder, giving callers a SAX-to-XML round trip without
// building a DOM in between. It tracks the root element's local name
// for a caller that wants it back directly.
type WriterContentHandler struct {
	enc      *xml.Encoder
	depth    int
	rootName string
}

// NewWriterContentHandler wraps enc so ContentHandler events write valid
// XML to it.
func NewWriterContentHandler(enc *xml.Encoder) *WriterContentHandler {
	return &WriterContentHandler{enc: enc}
}

// RootName returns the root element's local name seen so far, or "" if
// StartElement has not fired yet.
func (w *WriterContentHandler) RootName() string { return w.rootName }

func (w *WriterContentHandler) SetDocumentLocator(core.Position) {}
func (w *WriterContentHandler) StartDocument() error             { return nil }
func (w *WriterContentHandler) EndDocument() error                { return w.enc.Flush() }
func (w *WriterContentHandler) StartPrefixMapping(string, string) error { return nil }
func (w *WriterContentHandler) EndPrefixMapping(string) error          { return nil }

func (w *WriterContentHandler) StartElement(uri, localName, qname string, attrs *core.AttributeSet) error {
	if w.depth == 0 {
		w.rootName = localName
	}
	w.depth++
	start := xml.StartElement{Name: xml.Name{Local: qname}}
	for i := 0; i < attrs.Len(); i++ {
		a := attrs.At(i)
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.QName}, Value: a.Value})
	}
	return w.enc.EncodeToken(start)
}

func (w *WriterContentHandler) EndElement(uri, localName, qname string) error {
	w.depth--
	return w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: qname}})
}

func (w *WriterContentHandler) Characters(text string) error {
	return w.enc.EncodeToken(xml.CharData([]byte(text)))
}

func (w *WriterContentHandler) IgnorableWhitespace(text string) error {
	return w.Characters(text)
}

func (w *WriterContentHandler) ProcessingInstruction(target, data string) error {
	return w.enc.EncodeToken(xml.ProcInst{Target: target, Inst: []byte(data)})
}

func (w *WriterContentHandler) SkippedEntity(name string) error { return nil }
