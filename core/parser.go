package core

import (
	"fmt"
	"strings"
)

// parserState names the document-level states of the parser's state
// machine: Start -> XMLDeclOpt -> Prolog -> Element -> Epilog -> End.
type parserState int

const (
	stateStart parserState = iota
	stateXMLDeclOpt
	stateProlog
	stateElement
	stateEpilog
	stateEnd
)

// Parser drives one document parse: it owns the entity stack, the
// namespace stack, the DTD under construction, and the registered
// handlers, and walks the scanner's character stream through the
// productions of XML 1.0, dispatching SAX-style events as it goes.
type Parser struct {
	Features   *Features
	Properties *Properties

	content  ContentHandler
	dtd      DTDHandler
	errh     ErrorHandler
	resolver EntityResolver

	entities *EntityManager
	ns       *NamespaceSupport
	doc      *DTD

	state       parserState
	elementStack []elementFrame
	rootSeen    bool
	rootName    string
	sawFatal    bool

	readLimit int
	registry  *CodecRegistry
}

type elementFrame struct {
	uri, local, qname string
}

// NewParser creates a parser with default features, a fresh codec
// registry and entity manager, and no handlers registered; a caller
// wires handlers via SetContentHandler etc. before calling Parse.
func NewParser() *Parser {
	const defaultReadLimit = 64 * 1024
	return &Parser{
		Features:   NewFeatures(),
		Properties: NewProperties(),
		errh:       NewDefaultErrorHandler(),
		readLimit:  defaultReadLimit,
		registry:   NewCodecRegistry(),
	}
}

func (p *Parser) SetContentHandler(h ContentHandler)   { p.content = h }
func (p *Parser) SetDTDHandler(h DTDHandler)            { p.dtd = h }
func (p *Parser) SetErrorHandler(h ErrorHandler)        { p.errh = h }
func (p *Parser) SetEntityResolver(r EntityResolver)    { p.resolver = r }
func (p *Parser) SetLexicalHandler(h LexicalHandler)    { p.Properties.Lexical = h }
func (p *Parser) SetDeclHandler(h DeclHandler)          { p.Properties.Decl = h }

// DTD returns the document's DTD model as accumulated so far; useful
// after Parse returns when FeatureValidation is on.
func (p *Parser) DTD() *DTD { return p.doc }

// Parse runs one complete parse of input, reporting events to the
// registered handlers and returning the first fatal error encountered,
// if any.
func (p *Parser) Parse(input *EntityInput) error {
	p.entities = NewEntityManager(p.registry, p.readLimit)
	p.ns = NewNamespaceSupport()
	p.doc = NewDTD(p.entities)
	p.state = stateStart
	p.elementStack = nil
	p.rootSeen = false
	p.sawFatal = false

	if err := p.entities.PushDocument(input); err != nil {
		return p.fatal(Position{}, "%v", err)
	}

	p.Features.Lock()

	if p.content != nil {
		p.content.SetDocumentLocator(p.pos())
		if err := p.content.StartDocument(); err != nil {
			return err
		}
	}

	if err := p.run(); err != nil {
		return err
	}

	if p.Features.Validation {
		for _, verr := range p.doc.ValidateIDREFs() {
			if err := p.reportError(verr); err != nil {
				return err
			}
		}
	}

	if p.content != nil {
		if err := p.content.EndDocument(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) run() error {
	for {
		switch p.state {
		case stateStart:
			if err := p.parseXMLDecl(); err != nil {
				return err
			}
			p.state = stateProlog
		case stateProlog:
			done, err := p.parseProlog()
			if err != nil {
				return err
			}
			if done {
				p.doc.Freeze()
				p.state = stateElement
			}
		case stateElement:
			if err := p.parseElement(); err != nil {
				return err
			}
			p.state = stateEpilog
		case stateEpilog:
			if err := p.parseEpilog(); err != nil {
				return err
			}
			p.state = stateEnd
		case stateEnd:
			return nil
		}
	}
}

func (p *Parser) sc() *Scanner { return p.entities.Current() }
func (p *Parser) pos() Position {
	if sc := p.sc(); sc != nil {
		return sc.CurrentPosition()
	}
	return Position{}
}

func (p *Parser) fatal(pos Position, format string, args ...any) error {
	pe := NewParseError(pos, SeverityFatal, format, args...)
	pe.EntityTrace = p.entities.ReportPositionAcrossFrames()
	p.sawFatal = true
	if p.errh != nil {
		p.errh.FatalError(pe)
	}
	return pe
}

func (p *Parser) reportError(err error) error {
	pe, ok := err.(*ParseError)
	if !ok {
		pe = NewParseError(p.pos(), SeverityError, "%v", err)
	}
	if p.errh != nil {
		return p.errh.Error(pe)
	}
	return nil
}

func (p *Parser) reportWarning(format string, args ...any) error {
	pe := NewParseError(p.pos(), SeverityWarning, format, args...)
	if p.errh != nil {
		return p.errh.Warning(pe)
	}
	return nil
}

func (p *Parser) skipSpace() {
	sc := p.sc()
	if sc == nil {
		return
	}
	sc.SkipWhile(DefaultCharTypeFacet().IsS)
}

// parseXMLDecl consumes an optional "<?xml ... ?>" declaration at the
// very start of the document entity, validating version, switching the
// active decoder when encoding= names something other than what
// autodetection chose, and recording standalone=.
func (p *Parser) parseXMLDecl() error {
	sc := p.sc()
	if sc == nil {
		return nil
	}
	if !sc.Match([]rune("<?xml")) {
		return nil
	}
	return p.parseXMLDeclBody()
}

// parseXMLDeclBody reads the pseudo-attributes following "<?xml" up to
// "?>". If encoding= forces a re-decode of the document entity under a
// different codec, the in-progress scanner is replaced out from under
// this scan, so the whole declaration is re-read from its start against
// the fresh one.
func (p *Parser) parseXMLDeclBody() error {
	version, encoding, standalone, err := p.parseDeclPseudoAttrs()
	if err != nil {
		return err
	}
	if version != "" && version != "1.0" {
		return p.fatal(p.pos(), "unsupported XML version %q: qcxml parses XML 1.0 only", version)
	}
	if encoding != "" {
		reopened, err := p.entities.ReopenCurrentWithEncoding(encoding)
		if err != nil {
			return p.fatal(p.pos(), "cannot decode document entity as declared encoding %q: %v", encoding, err)
		}
		if reopened {
			sc := p.sc()
			if !sc.Match([]rune("<?xml")) {
				return p.fatal(sc.CurrentPosition(), "expected XML declaration")
			}
			return p.parseXMLDeclBody()
		}
	}
	if standalone != "" && standalone != "yes" && standalone != "no" {
		return p.fatal(p.pos(), "standalone must be \"yes\" or \"no\", got %q", standalone)
	}
	if standalone != "" {
		p.Features.IsStandalone = standalone == "yes"
	}
	return nil
}

// parseDeclPseudoAttrs reads the name="value" pairs of an XML
// declaration up to its terminating "?>", returning the version,
// encoding and standalone values present (each "" if absent).
func (p *Parser) parseDeclPseudoAttrs() (version, encoding, standalone string, err error) {
	sc := p.sc()
	for {
		p.skipSpace()
		r, ok := sc.Peek(0)
		if !ok {
			return "", "", "", p.fatal(sc.CurrentPosition(), "unterminated XML declaration")
		}
		if r == '?' {
			if sc.Match([]rune("?>")) {
				return version, encoding, standalone, nil
			}
			return "", "", "", p.fatal(sc.CurrentPosition(), "malformed XML declaration")
		}
		name := p.readName()
		if name == "" {
			return "", "", "", p.fatal(sc.CurrentPosition(), "malformed XML declaration")
		}
		p.skipSpace()
		if r, ok := sc.Peek(0); !ok || r != '=' {
			return "", "", "", p.fatal(sc.CurrentPosition(), "expected '=' in XML declaration")
		}
		sc.Advance()
		p.skipSpace()
		value, err := p.readQuotedLiteral()
		if err != nil {
			return "", "", "", err
		}
		switch name {
		case "version":
			version = value
		case "encoding":
			encoding = value
		case "standalone":
			standalone = value
		default:
			return "", "", "", p.fatal(sc.CurrentPosition(), "unknown XML declaration attribute %q", name)
		}
	}
}

// parseProlog consumes markup before the root element: comments,
// processing instructions, whitespace, and at most one doctypedecl.
// Returns done=true once the stream is positioned at the root
// element's '<'.
func (p *Parser) parseProlog() (bool, error) {
	p.skipSpace()
	sc := p.sc()
	if sc == nil {
		return false, p.fatal(Position{}, "document ended before root element")
	}
	r, ok := sc.Peek(0)
	if !ok {
		return false, p.fatal(sc.CurrentPosition(), "document ended before root element")
	}
	if r != '<' {
		return false, p.fatal(sc.CurrentPosition(), "content not allowed in prolog")
	}
	if r2, ok := sc.Peek(1); ok && r2 != '?' && r2 != '!' {
		return true, nil // root element start
	}
	if sc.Match([]rune("<?")) {
		return false, p.parsePI()
	}
	if sc.Match([]rune("<!--")) {
		return false, p.parseComment()
	}
	if sc.Match([]rune("<!DOCTYPE")) {
		return false, p.parseDoctype()
	}
	return false, p.fatal(sc.CurrentPosition(), "malformed markup in prolog")
}

func (p *Parser) parseEpilog() error {
	for {
		p.skipSpace()
		sc := p.sc()
		if sc == nil || sc.EOF() {
			return nil
		}
		if sc.Match([]rune("<?")) {
			if err := p.parsePI(); err != nil {
				return err
			}
			continue
		}
		if sc.Match([]rune("<!--")) {
			if err := p.parseComment(); err != nil {
				return err
			}
			continue
		}
		return p.fatal(sc.CurrentPosition(), "content not allowed after root element")
	}
}

func (p *Parser) parsePI() error {
	sc := p.sc()
	start := sc.CurrentPosition()
	target := p.readName()
	if target == "" {
		return p.fatal(start, "processing instruction missing target")
	}
	if strings.EqualFold(target, "xml") {
		return p.fatal(start, "processing instruction target %q is reserved", target)
	}
	p.skipSpace()
	var data strings.Builder
	for {
		if sc.Match([]rune("?>")) {
			break
		}
		r, ok := sc.Peek(0)
		if !ok {
			return p.fatal(sc.CurrentPosition(), "unterminated processing instruction")
		}
		sc.Advance()
		data.WriteRune(r)
	}
	if p.content != nil {
		return p.content.ProcessingInstruction(target, data.String())
	}
	return nil
}

func (p *Parser) parseComment() error {
	sc := p.sc()
	var text strings.Builder
	for {
		if sc.Match([]rune("-->")) {
			break
		}
		r, ok := sc.Peek(0)
		if !ok {
			return p.fatal(sc.CurrentPosition(), "unterminated comment")
		}
		if r == '-' {
			if r2, ok2 := sc.Peek(1); ok2 && r2 == '-' {
				return p.fatal(sc.CurrentPosition(), "comments may not contain \"--\"")
			}
		}
		sc.Advance()
		text.WriteRune(r)
	}
	lh := p.Properties.Lexical
	if lh != nil {
		return lh.Comment(text.String())
	}
	return nil
}

// parseDoctype consumes the whole <!DOCTYPE ...> declaration, including
// an optional internal subset, and resolves an external subset through
// the entity resolver when one is declared.
func (p *Parser) parseDoctype() error {
	sc := p.sc()
	p.skipSpace()
	root := p.readName()
	if root == "" {
		return p.fatal(sc.CurrentPosition(), "DOCTYPE missing root name")
	}
	p.doc.RootName = root
	p.rootName = root

	p.skipSpace()
	publicID, systemID, err := p.parseExternalIDOpt()
	if err != nil {
		return err
	}

	lh := p.Properties.Lexical
	if lh != nil {
		if err := lh.StartDTD(root, publicID, systemID); err != nil {
			return err
		}
	}

	p.skipSpace()
	if r, ok := sc.Peek(0); ok && r == '[' {
		sc.Advance()
		if err := p.parseInternalSubset(); err != nil {
			return err
		}
	}
	p.skipSpace()
	if !sc.Match([]rune(">")) {
		return p.fatal(sc.CurrentPosition(), "malformed DOCTYPE declaration")
	}

	if systemID != "" {
		p.doc.HasExternalSubset = true
		if p.Features.ExternalParameterEntities {
			if err := p.parseExternalSubset(publicID, systemID); err != nil {
				return p.reportError(err)
			}
		}
	}

	if lh != nil {
		if err := lh.EndDTD(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseExternalIDOpt() (publicID, systemID string, err error) {
	sc := p.sc()
	if sc.Match([]rune("PUBLIC")) {
		p.skipSpace()
		publicID, err = p.readQuotedLiteral()
		if err != nil {
			return "", "", err
		}
		p.skipSpace()
		systemID, err = p.readQuotedLiteral()
		return publicID, systemID, err
	}
	if sc.Match([]rune("SYSTEM")) {
		p.skipSpace()
		systemID, err = p.readQuotedLiteral()
		return "", systemID, err
	}
	return "", "", nil
}

func (p *Parser) parseExternalSubset(publicID, systemID string) error {
	var input *EntityInput
	var err error
	if p.resolver != nil {
		input, err = p.resolver.ResolveEntity(publicID, systemID)
		if err != nil {
			return err
		}
	}
	if input == nil {
		input = &EntityInput{PublicID: publicID, SystemID: systemID}
	}
	ent := &Entity{Kind: EntityExternalParameter, Name: "[dtd]", Input: input}
	if err := p.entities.PushExternal(ent); err != nil {
		return err
	}
	defer p.entities.Pop()
	return p.parseInternalSubset()
}

// parseInternalSubset consumes markupdecls until ']' (internal subset)
// or EOF (external subset); both share the same markupdecl grammar.
func (p *Parser) parseInternalSubset() error {
	for {
		p.skipSpace()
		sc := p.sc()
		if sc == nil || sc.EOF() {
			return nil
		}
		if r, ok := sc.Peek(0); ok && r == ']' {
			sc.Advance()
			return nil
		}
		if sc.Match([]rune("<!ELEMENT")) {
			if err := p.parseElementDecl(); err != nil {
				return err
			}
			continue
		}
		if sc.Match([]rune("<!ATTLIST")) {
			if err := p.parseAttlistDecl(); err != nil {
				return err
			}
			continue
		}
		if sc.Match([]rune("<!ENTITY")) {
			if err := p.parseEntityDecl(); err != nil {
				return err
			}
			continue
		}
		if sc.Match([]rune("<!NOTATION")) {
			if err := p.parseNotationDecl(); err != nil {
				return err
			}
			continue
		}
		if sc.Match([]rune("<?")) {
			if err := p.parsePI(); err != nil {
				return err
			}
			continue
		}
		if sc.Match([]rune("<!--")) {
			if err := p.parseComment(); err != nil {
				return err
			}
			continue
		}
		if r, ok := sc.Peek(0); ok && r == '%' {
			if err := p.parsePEReference(); err != nil {
				return err
			}
			continue
		}
		return p.fatal(sc.CurrentPosition(), "malformed markup declaration")
	}
}

func (p *Parser) parsePEReference() error {
	sc := p.sc()
	sc.Advance() // '%'
	name := p.readName()
	if !sc.Match([]rune(";")) {
		return p.fatal(sc.CurrentPosition(), "malformed parameter-entity reference")
	}
	ent, ok := p.entities.LookupParameter(name)
	if !ok {
		return p.fatal(sc.CurrentPosition(), "parameter entity %q not declared", name)
	}
	if ent.Kind == EntityInternalParameter {
		return p.entities.PushInternal(ent)
	}
	if !p.Features.ExternalParameterEntities {
		return nil
	}
	return p.entities.PushExternal(ent)
}

func (p *Parser) parseElementDecl() error {
	sc := p.sc()
	p.skipSpace()
	name := p.readName()
	p.skipSpace()
	var spec strings.Builder
	depth := 0
	for {
		r, ok := sc.Peek(0)
		if !ok {
			return p.fatal(sc.CurrentPosition(), "unterminated element declaration")
		}
		if r == '(' {
			depth++
		}
		if r == ')' {
			depth--
		}
		if r == '>' && depth <= 0 {
			break
		}
		sc.Advance()
		spec.WriteRune(r)
	}
	sc.Advance() // '>'
	model, err := ParseContentModel(strings.TrimSpace(spec.String()))
	if err != nil {
		return p.reportError(err)
	}
	if et, ok := p.doc.Elements[name]; ok && et.Declared && p.Features.Validation {
		if err := p.reportError(fmt.Errorf("qcxml: element %q declared more than once", name)); err != nil {
			return err
		}
	}
	p.doc.DeclareElement(name, model)
	if dh := p.Properties.Decl; dh != nil {
		if err := dh.ElementDecl(name, strings.TrimSpace(spec.String())); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseAttlistDecl() error {
	sc := p.sc()
	p.skipSpace()
	elementName := p.readName()
	for {
		p.skipSpace()
		if r, ok := sc.Peek(0); ok && r == '>' {
			sc.Advance()
			return nil
		}
		attrName := p.readName()
		if attrName == "" {
			return p.fatal(sc.CurrentPosition(), "malformed ATTLIST declaration")
		}
		p.skipSpace()
		attrType, enumValues, notationNames, err := p.parseAttType()
		if err != nil {
			return err
		}
		p.skipSpace()
		defaultKind, defaultValue, err := p.parseDefaultDecl()
		if err != nil {
			return err
		}
		decl := &AttributeDecl{
			Name: attrName, Type: attrType, DefaultKind: defaultKind,
			DefaultValue: defaultValue, EnumValues: enumValues, NotationNames: notationNames,
		}
		p.doc.DeclareAttribute(elementName, decl)
		if dh := p.Properties.Decl; dh != nil {
			kind := "#IMPLIED"
			switch defaultKind {
			case DefaultRequired:
				kind = "#REQUIRED"
			case DefaultFixed:
				kind = "#FIXED"
			case DefaultLiteral:
				kind = ""
			}
			if err := dh.AttributeDecl(elementName, attrName, attrType.String(), kind, defaultValue); err != nil {
				return err
			}
		}
	}
}

func (p *Parser) parseAttType() (AttrType, []string, []string, error) {
	sc := p.sc()
	switch {
	case sc.Match([]rune("CDATA")):
		return AttrCDATA, nil, nil, nil
	case sc.Match([]rune("IDREFS")):
		return AttrIDREFS, nil, nil, nil
	case sc.Match([]rune("IDREF")):
		return AttrIDREF, nil, nil, nil
	case sc.Match([]rune("ID")):
		return AttrID, nil, nil, nil
	case sc.Match([]rune("ENTITIES")):
		return AttrENTITIES, nil, nil, nil
	case sc.Match([]rune("ENTITY")):
		return AttrENTITY, nil, nil, nil
	case sc.Match([]rune("NMTOKENS")):
		return AttrNMTOKENS, nil, nil, nil
	case sc.Match([]rune("NMTOKEN")):
		return AttrNMTOKEN, nil, nil, nil
	case sc.Match([]rune("NOTATION")):
		p.skipSpace()
		names, err := p.parseEnumeration()
		return AttrNOTATION, nil, names, err
	default:
		if r, ok := sc.Peek(0); ok && r == '(' {
			values, err := p.parseEnumeration()
			return AttrEnumeration, values, nil, err
		}
		return AttrCDATA, nil, nil, p.fatal(sc.CurrentPosition(), "unrecognized attribute type")
	}
}

func (p *Parser) parseEnumeration() ([]string, error) {
	sc := p.sc()
	if !sc.Match([]rune("(")) {
		return nil, p.fatal(sc.CurrentPosition(), "malformed enumeration")
	}
	var values []string
	for {
		p.skipSpace()
		values = append(values, p.readName())
		p.skipSpace()
		r, ok := sc.Peek(0)
		if !ok {
			return nil, p.fatal(sc.CurrentPosition(), "unterminated enumeration")
		}
		if r == '|' {
			sc.Advance()
			continue
		}
		if r == ')' {
			sc.Advance()
			return values, nil
		}
		return nil, p.fatal(sc.CurrentPosition(), "malformed enumeration")
	}
}

func (p *Parser) parseDefaultDecl() (DefaultKind, string, error) {
	sc := p.sc()
	if sc.Match([]rune("#REQUIRED")) {
		return DefaultRequired, "", nil
	}
	if sc.Match([]rune("#IMPLIED")) {
		return DefaultImplied, "", nil
	}
	fixed := sc.Match([]rune("#FIXED"))
	if fixed {
		p.skipSpace()
	}
	lit, err := p.readQuotedLiteral()
	if err != nil {
		return DefaultImplied, "", err
	}
	if fixed {
		return DefaultFixed, lit, nil
	}
	return DefaultLiteral, lit, nil
}

func (p *Parser) parseEntityDecl() error {
	sc := p.sc()
	p.skipSpace()
	isParameter := false
	if r, ok := sc.Peek(0); ok && r == '%' {
		isParameter = true
		sc.Advance()
		p.skipSpace()
	}
	name := p.readName()
	p.skipSpace()

	publicID, systemID, err := p.parseExternalIDOpt()
	if err != nil {
		return err
	}
	p.skipSpace()

	if systemID != "" || publicID != "" {
		notation := ""
		if sc.Match([]rune("NDATA")) {
			p.skipSpace()
			notation = p.readName()
		}
		e := &Entity{Name: name, Input: &EntityInput{PublicID: publicID, SystemID: systemID}}
		if notation != "" {
			e.Kind = EntityExternalUnparsed
			e.NotationName = notation
			if p.dtd != nil {
				if err := p.dtd.UnparsedEntityDecl(name, publicID, systemID, notation); err != nil {
					return err
				}
			}
		} else if isParameter {
			e.Kind = EntityExternalParameter
			p.entities.DeclareParameter(e)
		} else {
			e.Kind = EntityExternalGeneralParsed
			p.entities.DeclareGeneral(e)
		}
		if dh := p.Properties.Decl; dh != nil && notation == "" {
			if err := dh.ExternalEntityDecl(name, publicID, systemID); err != nil {
				return err
			}
		}
	} else {
		value, err := p.readQuotedLiteral()
		if err != nil {
			return err
		}
		e := &Entity{Name: name, ReplacementText: []rune(value)}
		if isParameter {
			e.Kind = EntityInternalParameter
			p.entities.DeclareParameter(e)
		} else {
			e.Kind = EntityInternalGeneral
			p.entities.DeclareGeneral(e)
		}
		if dh := p.Properties.Decl; dh != nil {
			if err := dh.InternalEntityDecl(name, value); err != nil {
				return err
			}
		}
	}

	p.skipSpace()
	if !sc.Match([]rune(">")) {
		return p.fatal(sc.CurrentPosition(), "malformed entity declaration")
	}
	return nil
}

func (p *Parser) parseNotationDecl() error {
	sc := p.sc()
	p.skipSpace()
	name := p.readName()
	p.skipSpace()
	publicID, systemID, err := p.parseExternalIDOpt()
	if err != nil {
		return err
	}
	p.skipSpace()
	if !sc.Match([]rune(">")) {
		return p.fatal(sc.CurrentPosition(), "malformed NOTATION declaration")
	}
	n := &NotationDecl{Name: name, PublicID: publicID, SystemID: systemID}
	p.doc.DeclareNotation(n)
	if p.dtd != nil {
		return p.dtd.NotationDecl(name, publicID, systemID)
	}
	return nil
}

// parseElement consumes the single root element and its full subtree.
func (p *Parser) parseElement() error {
	return p.parseElementAt(true)
}

func (p *Parser) parseElementAt(isRoot bool) error {
	sc := p.sc()
	startPos := sc.CurrentPosition()
	if !sc.Match([]rune("<")) {
		return p.fatal(startPos, "expected element start")
	}
	qname := p.readName()
	if qname == "" {
		return p.fatal(startPos, "malformed start-tag")
	}
	if isRoot {
		p.rootSeen = true
		if p.rootName != "" && p.rootName != qname {
			if err := p.reportError(fmt.Errorf("qcxml: root element %q does not match DOCTYPE name %q", qname, p.rootName)); err != nil {
				return err
			}
		}
	}

	p.ns.PushContext()
	attrs := NewAttributeSet()
	var rawQNames []string
	for {
		p.skipSpace()
		r, ok := sc.Peek(0)
		if !ok {
			return p.fatal(sc.CurrentPosition(), "unterminated start-tag")
		}
		if r == '/' || r == '>' {
			break
		}
		attrName := p.readName()
		if attrName == "" {
			return p.fatal(sc.CurrentPosition(), "malformed attribute")
		}
		p.skipSpace()
		if !sc.Match([]rune("=")) {
			return p.fatal(sc.CurrentPosition(), "expected '=' after attribute name %q", attrName)
		}
		p.skipSpace()
		value, err := p.readAttValue()
		if err != nil {
			return err
		}
		if err := attrs.Add(attrName, value); err != nil {
			return p.fatal(sc.CurrentPosition(), "%v", err)
		}
		rawQNames = append(rawQNames, attrName)
	}

	if p.Features.Namespaces {
		for _, name := range rawQNames {
			if prefix, isDecl := IsNamespaceDeclaration(name); isDecl {
				for i := 0; i < attrs.Len(); i++ {
					if attrs.At(i).QName == name {
						if err := p.ns.DeclarePrefix(prefix, attrs.At(i).Value); err != nil {
							return p.fatal(sc.CurrentPosition(), "%v", err)
						}
						break
					}
				}
			}
		}
	}

	if p.doc != nil {
		for _, verr := range p.doc.ApplyDefaults(qname, attrs) {
			if p.Features.Validation {
				if err := p.reportError(verr); err != nil {
					return err
				}
			}
		}
	}

	if p.Features.Namespaces {
		if err := attrs.ResolveNamespaces(p.ns); err != nil {
			return p.fatal(sc.CurrentPosition(), "%v", err)
		}
		if !p.Features.NamespacePrefixes {
			filtered := attrs.records[:0]
			for _, r := range attrs.records {
				if _, isDecl := IsNamespaceDeclaration(r.QName); isDecl {
					continue
				}
				filtered = append(filtered, r)
			}
			attrs.records = filtered
		}
	}

	if p.Features.Validation {
		p.validateAttributes(qname, attrs)
	}

	uri, local, _ := "", qname, ""
	if p.Features.Namespaces {
		var err error
		uri, local, _, err = p.ns.ResolveQName(qname, false)
		if err != nil {
			return p.fatal(startPos, "%v", err)
		}
	}

	frame := elementFrame{uri: uri, local: local, qname: qname}
	p.elementStack = append(p.elementStack, frame)

	if p.Features.Namespaces {
		for prefix := range p.ns.DeclarationsInCurrentContext() {
			if uri2, ok := p.ns.LookupURI(prefix); ok {
				if p.content != nil {
					if err := p.content.StartPrefixMapping(prefix, uri2); err != nil {
						return err
					}
				}
			}
		}
	}

	if p.content != nil {
		if err := p.content.StartElement(uri, local, qname, attrs); err != nil {
			return err
		}
	}

	if sc.Match([]rune("/>")) {
		return p.closeElement(uri, local, qname)
	}
	if !sc.Match([]rune(">")) {
		return p.fatal(sc.CurrentPosition(), "malformed start-tag for %q", qname)
	}

	if err := p.parseContent(); err != nil {
		return err
	}

	if !sc.Match([]rune("</")) {
		return p.fatal(sc.CurrentPosition(), "expected end-tag for %q", qname)
	}
	endName := p.readName()
	if endName != qname {
		return p.fatal(sc.CurrentPosition(), "mismatched end-tag: expected %q, got %q", qname, endName)
	}
	p.skipSpace()
	if !sc.Match([]rune(">")) {
		return p.fatal(sc.CurrentPosition(), "malformed end-tag for %q", qname)
	}
	return p.closeElement(uri, local, qname)
}

func (p *Parser) closeElement(uri, local, qname string) error {
	p.elementStack = p.elementStack[:len(p.elementStack)-1]
	if p.content != nil {
		if err := p.content.EndElement(uri, local, qname); err != nil {
			return err
		}
	}
	if p.Features.Namespaces {
		for prefix := range p.ns.DeclarationsInCurrentContext() {
			if p.content != nil {
				if err := p.content.EndPrefixMapping(prefix); err != nil {
					return err
				}
			}
		}
	}
	p.ns.PopContext()
	return nil
}

func (p *Parser) validateAttributes(elementName string, attrs *AttributeSet) {
	for i := 0; i < attrs.Len(); i++ {
		r := attrs.At(i)
		switch r.Type {
		case "ID":
			if err := p.doc.RecordID(r.Value); err != nil {
				p.reportError(err)
			}
		case "IDREF":
			p.doc.RecordIDREF(r.Value, elementName, r.QName)
		case "IDREFS":
			for _, v := range strings.Fields(r.Value) {
				p.doc.RecordIDREF(v, elementName, r.QName)
			}
		}
	}
}

// parseContent consumes the content of an element between its start-
// and end-tags: character data, child elements, references, CDATA
// sections, comments, and processing instructions.
func (p *Parser) parseContent() error {
	var chardata coalescer
	flush := func() error {
		if chardata.Len() == 0 {
			return nil
		}
		text := chardata.String()
		chardata.Reset()
		if p.content != nil {
			return p.content.Characters(text)
		}
		return nil
	}

	for {
		sc := p.sc()
		if sc == nil {
			return p.fatal(Position{}, "document ended inside element content")
		}
		r, ok := sc.Peek(0)
		if !ok {
			if p.entities.Depth() > 1 {
				ent, err := p.entities.Pop()
				if err != nil {
					return err
				}
				if lh := p.Properties.Lexical; lh != nil {
					if err := lh.EndEntity(ent.Name); err != nil {
						return err
					}
				}
				continue
			}
			return p.fatal(sc.CurrentPosition(), "document ended inside element content")
		}

		if r == '<' {
			if sc.Match([]rune("<![CDATA[")) {
				if err := flush(); err != nil {
					return err
				}
				if err := p.parseCDATA(); err != nil {
					return err
				}
				continue
			}
			if sc.Match([]rune("<!--")) {
				if err := flush(); err != nil {
					return err
				}
				if err := p.parseComment(); err != nil {
					return err
				}
				continue
			}
			if sc.Match([]rune("<?")) {
				if err := flush(); err != nil {
					return err
				}
				if err := p.parsePI(); err != nil {
					return err
				}
				continue
			}
			if r2, ok := sc.Peek(1); ok && r2 == '/' {
				if err := flush(); err != nil {
					return err
				}
				return nil
			}
			if err := flush(); err != nil {
				return err
			}
			if err := p.parseElementAt(false); err != nil {
				return err
			}
			continue
		}

		if r == '&' {
			// No flush here: a character or internal-entity reference
			// writes straight into chardata, so adjacent references (and
			// the literal text around them) still coalesce into one
			// Characters event. SkippedEntity and a pushed entity frame
			// both fire through other paths without touching chardata.
			if err := p.parseReference(&chardata); err != nil {
				return err
			}
			continue
		}

		if r == ']' {
			if r1, ok := sc.Peek(1); ok && r1 == ']' {
				if r2, ok := sc.Peek(2); ok && r2 == '>' {
					return p.fatal(sc.CurrentPosition(), `character data may not contain the literal sequence "]]>"`)
				}
			}
		}

		sc.Advance()
		chardata.WriteRune(r)
	}
}

func (p *Parser) parseCDATA() error {
	sc := p.sc()
	var text coalescer
	for {
		if sc.Match([]rune("]]>")) {
			break
		}
		r, ok := sc.Peek(0)
		if !ok {
			return p.fatal(sc.CurrentPosition(), "unterminated CDATA section")
		}
		sc.Advance()
		text.WriteRune(r)
	}
	lh := p.Properties.Lexical
	if lh != nil {
		if err := lh.StartCDATA(); err != nil {
			return err
		}
	}
	if p.content != nil {
		if err := p.content.Characters(text.String()); err != nil {
			return err
		}
	}
	if lh != nil {
		return lh.EndCDATA()
	}
	return nil
}

// parseReference consumes a character or general-entity reference
// appearing in content, either appending decoded text to chardata (char
// refs, internal entities) or pushing an external entity frame for the
// scanner to continue into.
func (p *Parser) parseReference(chardata *coalescer) error {
	sc := p.sc()
	sc.Advance() // '&'
	if r, ok := sc.Peek(0); ok && r == '#' {
		sc.Advance()
		r, err := p.readCharRef()
		if err != nil {
			return err
		}
		chardata.WriteRune(r)
		return nil
	}
	name := p.readName()
	if !sc.Match([]rune(";")) {
		return p.fatal(sc.CurrentPosition(), "malformed entity reference")
	}
	ent, ok := p.entities.LookupGeneral(name)
	if !ok {
		if p.content != nil {
			return p.content.SkippedEntity(name)
		}
		return nil
	}
	switch ent.Kind {
	case EntityInternalGeneral:
		if len(ent.ReplacementText) == 1 {
			chardata.WriteRune(ent.ReplacementText[0])
			return nil
		}
		if lh := p.Properties.Lexical; lh != nil {
			if err := lh.StartEntity(name); err != nil {
				return err
			}
		}
		return p.entities.PushInternal(ent)
	case EntityExternalGeneralParsed:
		if !p.Features.ExternalGeneralEntities {
			if p.content != nil {
				return p.content.SkippedEntity(name)
			}
			return nil
		}
		var input *EntityInput
		if p.resolver != nil {
			resolved, err := p.resolver.ResolveEntity(ent.Input.PublicID, ent.Input.SystemID)
			if err != nil {
				return err
			}
			input = resolved
		}
		if input == nil {
			input = ent.Input
		}
		pushEnt := &Entity{Kind: EntityExternalGeneralParsed, Name: name, Input: input}
		if lh := p.Properties.Lexical; lh != nil {
			if err := lh.StartEntity(name); err != nil {
				return err
			}
		}
		return p.entities.PushExternal(pushEnt)
	case EntityExternalUnparsed:
		return p.fatal(sc.CurrentPosition(), "unparsed entity %q cannot appear as a reference", name)
	default:
		return p.fatal(sc.CurrentPosition(), "entity %q is a parameter entity", name)
	}
}

func (p *Parser) readCharRef() (rune, error) {
	sc := p.sc()
	hex := false
	if r, ok := sc.Peek(0); ok && (r == 'x' || r == 'X') {
		hex = true
		sc.Advance()
	}
	var val int64
	digits := 0
	for {
		r, ok := sc.Peek(0)
		if !ok {
			return 0, p.fatal(sc.CurrentPosition(), "unterminated character reference")
		}
		if r == ';' {
			sc.Advance()
			break
		}
		d, ok := digitValue(r, hex)
		if !ok {
			return 0, p.fatal(sc.CurrentPosition(), "malformed character reference")
		}
		sc.Advance()
		base := int64(10)
		if hex {
			base = 16
		}
		val = val*base + int64(d)
		digits++
	}
	if digits == 0 || !DefaultCharTypeFacet().IsChar(rune(val)) {
		return 0, p.fatal(sc.CurrentPosition(), "character reference resolves to an invalid character")
	}
	return rune(val), nil
}

func digitValue(r rune, hex bool) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case hex && r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case hex && r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	default:
		return 0, false
	}
}

// readAttValue consumes a quoted attribute value, expanding character
// and internal-entity references inline (an entity's replacement text is
// inserted as-is; references inside it are not expanded); external
// entities are not permitted inside an attribute value (the AttValue
// production).
func (p *Parser) readAttValue() (string, error) {
	sc := p.sc()
	quote, ok := sc.Peek(0)
	if !ok || (quote != '"' && quote != '\'') {
		return "", p.fatal(sc.CurrentPosition(), "attribute value must be quoted")
	}
	sc.Advance()
	var out coalescer
	for {
		r, ok := sc.Peek(0)
		if !ok {
			return "", p.fatal(sc.CurrentPosition(), "unterminated attribute value")
		}
		if r == quote {
			sc.Advance()
			break
		}
		if r == '<' {
			return "", p.fatal(sc.CurrentPosition(), "attribute values may not contain '<'")
		}
		if r == '&' {
			depth := p.entities.Depth()
			if err := p.parseReference(&out); err != nil {
				return "", err
			}
			if p.entities.Depth() > depth {
				ent, _ := p.entities.Pop()
				if ent.Kind != EntityInternalGeneral {
					return "", p.fatal(sc.CurrentPosition(), "external entity %q cannot be referenced in an attribute value", ent.Name)
				}
				if lh := p.Properties.Lexical; lh != nil {
					if err := lh.EndEntity(ent.Name); err != nil {
						return "", err
					}
				}
				out.WriteString(string(ent.ReplacementText))
			}
			continue
		}
		sc.Advance()
		if r == '\t' || r == '\n' || r == '\r' {
			r = ' '
		}
		out.WriteRune(r)
	}
	return out.String(), nil
}

func (p *Parser) readQuotedLiteral() (string, error) {
	sc := p.sc()
	quote, ok := sc.Peek(0)
	if !ok || (quote != '"' && quote != '\'') {
		return "", p.fatal(sc.CurrentPosition(), "expected quoted literal")
	}
	sc.Advance()
	var out coalescer
	for {
		r, ok := sc.Peek(0)
		if !ok {
			return "", p.fatal(sc.CurrentPosition(), "unterminated literal")
		}
		if r == quote {
			sc.Advance()
			break
		}
		sc.Advance()
		out.WriteRune(r)
	}
	return out.String(), nil
}

func (p *Parser) readName() string {
	sc := p.sc()
	ct := DefaultCharTypeFacet()
	r, ok := sc.Peek(0)
	if !ok || !ct.IsNameStartChar(r) {
		return ""
	}
	var out coalescer
	for {
		r, ok := sc.Peek(0)
		if !ok || !ct.IsNameChar(r) {
			break
		}
		sc.Advance()
		out.WriteRune(r)
	}
	return out.String()
}
