// Package sax provides the public SAX2-style façade over core.Parser:
// a feature/property-switch reader that a caller configures once and
// reuses across parses, mirroring the shape of a SAX XMLReader.
package sax

import (
	"github.com/quickxml/qcxml/core"
)

// XMLReader wraps a core.ParserFactory behind SAX2's familiar
// get/setFeature, get/setProperty and Parse surface.
type XMLReader struct {
	factory *core.ParserFactory
}

// NewXMLReader returns a reader with XML 1.0 default features.
func NewXMLReader() *XMLReader {
	return &XMLReader{factory: core.NewParserFactory()}
}

func (r *XMLReader) GetFeature(name string) (bool, error) { return r.factory.GetFeature(name) }
func (r *XMLReader) SetFeature(name string, value bool) error {
	return r.factory.SetFeature(name, value)
}
func (r *XMLReader) GetProperty(name string) (any, error) { return r.factory.GetProperty(name) }
func (r *XMLReader) SetProperty(name string, value any) error {
	return r.factory.SetProperty(name, value)
}

func (r *XMLReader) SetContentHandler(h core.ContentHandler) { r.factory.SetContentHandler(h) }
func (r *XMLReader) SetDTDHandler(h core.DTDHandler)         { r.factory.SetDTDHandler(h) }
func (r *XMLReader) SetErrorHandler(h core.ErrorHandler)     { r.factory.SetErrorHandler(h) }
func (r *XMLReader) SetEntityResolver(e core.EntityResolver) { r.factory.SetEntityResolver(e) }

// Parse runs one complete parse of input against the reader's currently
// registered handlers and features, returning the first fatal error
// encountered.
func (r *XMLReader) Parse(input *core.EntityInput) error {
	p := r.factory.NewParser()
	return p.Parse(input)
}

// ParseString is a convenience wrapper for parsing an already-decoded
// in-memory document, skipping encoding detection entirely.
func (r *XMLReader) ParseString(systemID, document string) error {
	return r.Parse(&core.EntityInput{SystemID: systemID, Text: document})
}

// ParseBytes is a convenience wrapper for parsing a raw byte source,
// running it through encoding autodetection unless encodingHint is set.
func (r *XMLReader) ParseBytes(systemID string, data []byte, encodingHint string) error {
	return r.Parse(&core.EntityInput{SystemID: systemID, Bytes: data, EncodingHint: encodingHint})
}
