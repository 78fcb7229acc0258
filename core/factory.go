package core

// ParserFactory produces independently configured Parser instances, the
// way a caller wanting several parses with the same handlers and
// features would use it.
type ParserFactory struct {
	features   *Features
	properties *Properties
	content    ContentHandler
	dtdh       DTDHandler
	errh       ErrorHandler
	resolver   EntityResolver
}

// NewParserFactory returns a factory seeded with XML 1.0 default
// features and no handlers registered.
func NewParserFactory() *ParserFactory {
	return &ParserFactory{
		features:   NewFeatures(),
		properties: NewProperties(),
		errh:       NewDefaultErrorHandler(),
	}
}

func (f *ParserFactory) SetFeature(name string, value bool) error { return f.features.SetFeature(name, value) }
func (f *ParserFactory) GetFeature(name string) (bool, error)     { return f.features.GetFeature(name) }
func (f *ParserFactory) SetProperty(name string, value any) error { return f.properties.SetProperty(name, value) }
func (f *ParserFactory) GetProperty(name string) (any, error)     { return f.properties.GetProperty(name) }

func (f *ParserFactory) SetContentHandler(h ContentHandler) { f.content = h }
func (f *ParserFactory) SetDTDHandler(h DTDHandler)         { f.dtdh = h }
func (f *ParserFactory) SetErrorHandler(h ErrorHandler)     { f.errh = h }
func (f *ParserFactory) SetEntityResolver(r EntityResolver) { f.resolver = r }

// NewParser builds a Parser carrying a copy of the factory's current
// feature set (so later mutation of the factory does not retroactively
// affect a parser already handed out) and its registered handlers.
func (f *ParserFactory) NewParser() *Parser {
	features := *f.features
	properties := *f.properties
	p := NewParser()
	p.Features = &features
	p.Properties = &properties
	p.content = f.content
	p.dtd = f.dtdh
	p.errh = f.errh
	p.resolver = f.resolver
	return p
}
