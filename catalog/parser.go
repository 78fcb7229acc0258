package catalog

import (
	"fmt"

	"github.com/quickxml/qcxml/core"
)

const catalogNSURI = "urn:oasis:names:tc:entity:xml:catalog"

// ParseFile reads an OASIS XML Catalog document from data, dogfooding
// core.Parser and a ContentHandler tree builder rather than a bespoke
// scanner, the same way a SAX-style consumer would build any other
// typed tree from parser events.
func ParseFile(systemID string, data []byte) (*File, error) {
	reader := core.NewParser()
	reader.Features.Namespaces = true

	builder := &treeBuilder{file: &File{SystemID: systemID}}
	reader.SetContentHandler(builder)
	reader.SetErrorHandler(builder)

	if err := reader.Parse(&core.EntityInput{SystemID: systemID, Bytes: data}); err != nil {
		return nil, fmt.Errorf("qcxml/catalog: parsing %q: %w", systemID, err)
	}
	if builder.fatal != nil {
		return nil, builder.fatal
	}
	return builder.file, nil
}

// treeBuilder accumulates catalog elements into a File as core.Parser
// walks the document, pushing a new Entry per nested group element and
// appending every leaf/rewrite/delegate element it recognizes to the
// innermost open scope. Unknown elements are reported as warnings and
// otherwise ignored.
type treeBuilder struct {
	file  *File
	stack []*Entry // open <group> elements, innermost last
	fatal error
}

func (b *treeBuilder) currentEntries() *[]*Entry {
	if len(b.stack) == 0 {
		return &b.file.Entries
	}
	top := b.stack[len(b.stack)-1]
	return &top.Children
}

func (b *treeBuilder) currentPrefer() string {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].Prefer != "" {
			return b.stack[i].Prefer
		}
	}
	return b.file.Prefer
}

func (b *treeBuilder) SetDocumentLocator(core.Position) {}
func (b *treeBuilder) StartDocument() error              { return nil }
func (b *treeBuilder) EndDocument() error                { return nil }
func (b *treeBuilder) StartPrefixMapping(string, string) error { return nil }
func (b *treeBuilder) EndPrefixMapping(string) error           { return nil }
func (b *treeBuilder) IgnorableWhitespace(string) error        { return nil }
func (b *treeBuilder) Characters(string) error                 { return nil }
func (b *treeBuilder) ProcessingInstruction(string, string) error { return nil }
func (b *treeBuilder) SkippedEntity(string) error                 { return nil }

func (b *treeBuilder) StartElement(uri, localName, qname string, attrs *core.AttributeSet) error {
	if uri != "" && uri != catalogNSURI {
		return nil
	}
	attr := func(name string) string {
		for i := 0; i < attrs.Len(); i++ {
			if attrs.At(i).LocalName == name || attrs.At(i).QName == name {
				return attrs.At(i).Value
			}
		}
		return ""
	}

	switch localName {
	case "catalog":
		b.file.Prefer = attr("prefer")
		return nil
	case "group":
		e := &Entry{Kind: EntryGroup, Prefer: attr("prefer")}
		*b.currentEntries() = append(*b.currentEntries(), e)
		b.stack = append(b.stack, e)
		return nil
	case "public":
		b.append(&Entry{Kind: EntryPublic, PublicID: attr("publicId"), URI: attr("uri")})
	case "system":
		b.append(&Entry{Kind: EntrySystem, SystemID: attr("systemId"), URI: attr("uri")})
	case "uri":
		b.append(&Entry{Kind: EntryURI, Name: attr("name"), URI: attr("uri")})
	case "rewriteSystem":
		b.append(&Entry{Kind: EntryRewriteSystem, Name: attr("systemIdStartString"), URI: attr("rewritePrefix")})
	case "rewriteURI":
		b.append(&Entry{Kind: EntryRewriteURI, Name: attr("uriStartString"), URI: attr("rewritePrefix")})
	case "delegatePublic":
		b.append(&Entry{Kind: EntryDelegatePublic, PublicID: attr("publicIdStartString"), CatalogID: attr("catalog")})
	case "delegateSystem":
		b.append(&Entry{Kind: EntryDelegateSystem, Name: attr("systemIdStartString"), CatalogID: attr("catalog")})
	case "delegateURI":
		b.append(&Entry{Kind: EntryDelegateURI, Name: attr("uriStartString"), CatalogID: attr("catalog")})
	case "nextCatalog":
		b.append(&Entry{Kind: EntryNextCatalog, CatalogID: attr("catalog")})
	}
	return nil
}

func (b *treeBuilder) append(e *Entry) {
	if e.Prefer == "" {
		e.Prefer = b.currentPrefer()
	}
	*b.currentEntries() = append(*b.currentEntries(), e)
}

func (b *treeBuilder) EndElement(uri, localName, qname string) error {
	if localName == "group" && len(b.stack) > 0 {
		b.stack = b.stack[:len(b.stack)-1]
	}
	return nil
}

func (b *treeBuilder) Warning(err *core.ParseError) error { return nil }
func (b *treeBuilder) Error(err *core.ParseError) error   { return nil }
func (b *treeBuilder) FatalError(err *core.ParseError) error {
	b.fatal = err
	return nil
}
