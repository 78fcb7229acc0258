package core

import "fmt"

/*
	Features implementation
*/

const (
	FeatureValidation                string = "http://xml.org/sax/features/validation"
	FeatureNamespaces                string = "http://xml.org/sax/features/namespaces"
	FeatureNamespacePrefixes         string = "http://xml.org/sax/features/namespace-prefixes"
	FeatureExternalGeneralEntities   string = "http://xml.org/sax/features/external-general-entities"
	FeatureExternalParameterEntities string = "http://xml.org/sax/features/external-parameter-entities"
	FeatureLexicalParameterEntities  string = "http://xml.org/sax/features/lexical-parameter-entities"
	FeatureResolveDTDURIs            string = "http://xml.org/sax/features/resolve-dtd-uris"
	FeatureIsStandalone              string = "http://xml.org/sax/features/is-standalone"

	PropertyLexicalHandler string = "http://xml.org/sax/properties/lexical-handler"
	PropertyDeclHandler    string = "http://xml.org/sax/properties/declaration-handler"
	PropertyDOMNode        string = "http://xml.org/sax/properties/dom-node"
	PropertyXMLString      string = "http://xml.org/sax/properties/xml-string"
)

// Features holds the parser's named boolean switches, one typed field
// per feature rather than a string-keyed bag, matching the fields-not-maps
// idiom used elsewhere for parser configuration. locked becomes true when
// Parse opens the document entity, just before StartDocument fires;
// SetFeature then rejects further changes, per the
// "feature values are fixed for the duration of a parse" rule.
type Features struct {
	Validation                bool
	Namespaces                bool
	NamespacePrefixes         bool
	ExternalGeneralEntities   bool
	ExternalParameterEntities bool
	LexicalParameterEntities  bool
	ResolveDTDURIs            bool
	IsStandalone              bool

	locked bool
}

// NewFeatures returns the XML 1.0 default feature set: namespace
// processing and external entity inclusion on, namespace-prefixes and
// validation off.
func NewFeatures() *Features {
	return &Features{
		Namespaces:                true,
		ExternalGeneralEntities:   true,
		ExternalParameterEntities: true,
		ResolveDTDURIs:            true,
	}
}

// Lock freezes the feature set against further SetFeature calls, invoked
// by the parser just before StartDocument fires.
func (f *Features) Lock() { f.locked = true }

// SetFeature sets a feature by its URI name. Setting a feature after the
// parse has started is an error.
func (f *Features) SetFeature(name string, value bool) error {
	if f.locked {
		return fmt.Errorf("qcxml: feature %q cannot be set once parsing has started", name)
	}
	switch name {
	case FeatureValidation:
		f.Validation = value
	case FeatureNamespaces:
		f.Namespaces = value
	case FeatureNamespacePrefixes:
		f.NamespacePrefixes = value
	case FeatureExternalGeneralEntities:
		f.ExternalGeneralEntities = value
	case FeatureExternalParameterEntities:
		f.ExternalParameterEntities = value
	case FeatureLexicalParameterEntities:
		f.LexicalParameterEntities = value
	case FeatureResolveDTDURIs:
		f.ResolveDTDURIs = value
	case FeatureIsStandalone:
		return fmt.Errorf("qcxml: feature %q is read-only", name)
	default:
		return fmt.Errorf("qcxml: feature %q is unknown", name)
	}
	return nil
}

// GetFeature returns a feature's current value by its URI name.
func (f *Features) GetFeature(name string) (bool, error) {
	switch name {
	case FeatureValidation:
		return f.Validation, nil
	case FeatureNamespaces:
		return f.Namespaces, nil
	case FeatureNamespacePrefixes:
		return f.NamespacePrefixes, nil
	case FeatureExternalGeneralEntities:
		return f.ExternalGeneralEntities, nil
	case FeatureExternalParameterEntities:
		return f.ExternalParameterEntities, nil
	case FeatureLexicalParameterEntities:
		return f.LexicalParameterEntities, nil
	case FeatureResolveDTDURIs:
		return f.ResolveDTDURIs, nil
	case FeatureIsStandalone:
		return f.IsStandalone, nil
	default:
		return false, fmt.Errorf("qcxml: feature %q is unknown", name)
	}
}

// Properties holds the handler-object properties that are not ordinary
// booleans: the optional lexical and declaration handlers,
// keyed the same way SAX2 keys them. dom-node and xml-string are left
// unimplemented; this parser has no DOM bridge and GetProperty on those
// names reports them unsupported.
type Properties struct {
	Lexical LexicalHandler
	Decl    DeclHandler
}

// NewProperties returns an empty property set.
func NewProperties() *Properties {
	return &Properties{}
}

// SetProperty sets a handler-object property by its URI name.
func (p *Properties) SetProperty(name string, value any) error {
	switch name {
	case PropertyLexicalHandler:
		lh, ok := value.(LexicalHandler)
		if !ok {
			return fmt.Errorf("qcxml: property %q requires a LexicalHandler", name)
		}
		p.Lexical = lh
	case PropertyDeclHandler:
		dh, ok := value.(DeclHandler)
		if !ok {
			return fmt.Errorf("qcxml: property %q requires a DeclHandler", name)
		}
		p.Decl = dh
	default:
		return fmt.Errorf("qcxml: property %q is unknown or unsupported", name)
	}
	return nil
}

// GetProperty returns a handler-object property by its URI name.
func (p *Properties) GetProperty(name string) (any, error) {
	switch name {
	case PropertyLexicalHandler:
		return p.Lexical, nil
	case PropertyDeclHandler:
		return p.Decl, nil
	default:
		return nil, fmt.Errorf("qcxml: property %q is unknown or unsupported", name)
	}
}
