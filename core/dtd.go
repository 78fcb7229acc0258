package core

import "fmt"

// AttrType enumerates the DTD attribute types.
type AttrType int

const (
	AttrCDATA AttrType = iota
	AttrID
	AttrIDREF
	AttrIDREFS
	AttrENTITY
	AttrENTITIES
	AttrNMTOKEN
	AttrNMTOKENS
	AttrNOTATION
	AttrEnumeration
)

func (t AttrType) String() string {
	switch t {
	case AttrCDATA:
		return "CDATA"
	case AttrID:
		return "ID"
	case AttrIDREF:
		return "IDREF"
	case AttrIDREFS:
		return "IDREFS"
	case AttrENTITY:
		return "ENTITY"
	case AttrENTITIES:
		return "ENTITIES"
	case AttrNMTOKEN:
		return "NMTOKEN"
	case AttrNMTOKENS:
		return "NMTOKENS"
	case AttrNOTATION:
		return "NOTATION"
	case AttrEnumeration:
		return "ENUMERATION"
	default:
		return "CDATA"
	}
}

// DefaultKind enumerates #REQUIRED / #IMPLIED / #FIXED / literal default.
type DefaultKind int

const (
	DefaultImplied DefaultKind = iota
	DefaultRequired
	DefaultFixed
	DefaultLiteral
)

// AttributeDecl is one <!ATTLIST> declaration for a single attribute.
type AttributeDecl struct {
	Name          string
	Type          AttrType
	DefaultKind   DefaultKind
	DefaultValue  string
	EnumValues    []string
	NotationNames []string
}

// ContentModelKind distinguishes the four ContentModel variants.
type ContentModelKind int

const (
	ContentEmpty ContentModelKind = iota
	ContentAny
	ContentMixed
	ContentChildren
)

// ContentModel is an element's declared content constraint.
// For ContentChildren, DFA holds the compiled automaton; for ContentMixed,
// AllowedChildren holds the permitted child element names.
type ContentModel struct {
	Kind            ContentModelKind
	AllowedChildren map[string]struct{}
	DFA             *ContentDFA
}

// ElementType is one <!ELEMENT> declaration plus its accumulated attribute
// list. Declared distinguishes elements actually declared
// from ones merely referenced (e.g. from another element's content model)
// before their own declaration is seen.
type ElementType struct {
	Name         string
	ContentModel ContentModel
	Attributes   map[string]*AttributeDecl
	AttrOrder    []string
	Declared     bool
}

// NotationDecl is a <!NOTATION> declaration.
type NotationDecl struct {
	Name     string
	PublicID string
	SystemID string
}

// DTD aggregates every declaration collected from the internal and
// external subsets, consulted for defaulting, validation and attribute
// value normalization once parsing of declarations is complete: built,
// then frozen before element content.
type DTD struct {
	RootName  string
	Elements  map[string]*ElementType
	Entities  *EntityManager
	Notations map[string]*NotationDecl

	ids               map[string]bool
	idrefs            []idrefUse
	frozen            bool
	HasExternalSubset bool
	Standalone        bool
}

type idrefUse struct {
	value   string
	element string
	attr    string
}

// NewDTD creates an empty DTD bound to the given entity manager (for
// resolving ENTITY/ENTITIES attribute values against declared entities).
func NewDTD(entities *EntityManager) *DTD {
	return &DTD{
		Elements:  map[string]*ElementType{},
		Entities:  entities,
		Notations: map[string]*NotationDecl{},
		ids:       map[string]bool{},
	}
}

// elementOrCreate returns the ElementType for name, creating an
// undeclared placeholder (Declared=false) if this is the first mention.
func (d *DTD) elementOrCreate(name string) *ElementType {
	et, ok := d.Elements[name]
	if !ok {
		et = &ElementType{Name: name, Attributes: map[string]*AttributeDecl{}}
		d.Elements[name] = et
	}
	return et
}

// DeclareElement records an <!ELEMENT> declaration. Redeclaring an
// already-declared element name is a validity error the caller should
// surface; this method only records the first declaration, matching
// DTD semantics (duplicate declarations are a VC the parser reports at
// the call site when validation is enabled).
func (d *DTD) DeclareElement(name string, model ContentModel) *ElementType {
	if d.frozen {
		panic("qcxml: DTD declared after Freeze")
	}
	et := d.elementOrCreate(name)
	if !et.Declared {
		et.ContentModel = model
		et.Declared = true
	}
	return et
}

// DeclareAttribute records one attribute of an <!ATTLIST>. Per XML 1.0, if
// an attribute is declared more than once for the same element, only the
// first declaration is binding; later ones are ignored.
func (d *DTD) DeclareAttribute(elementName string, decl *AttributeDecl) {
	et := d.elementOrCreate(elementName)
	if _, exists := et.Attributes[decl.Name]; exists {
		return
	}
	et.Attributes[decl.Name] = decl
	et.AttrOrder = append(et.AttrOrder, decl.Name)
}

// DeclareNotation records a <!NOTATION>.
func (d *DTD) DeclareNotation(n *NotationDecl) {
	if _, exists := d.Notations[n.Name]; !exists {
		d.Notations[n.Name] = n
	}
}

// Freeze marks declaration parsing complete; subsequent element content
// consults the DTD read-only from here.
func (d *DTD) Freeze() { d.frozen = true }

// ApplyDefaults fills in #IMPLIED/#REQUIRED/#FIXED/default attributes not
// explicitly specified on a start-tag. Returns a validity
// error for a missing #REQUIRED attribute; the caller reports it as
// recoverable and continues.
func (d *DTD) ApplyDefaults(elementName string, attrs *AttributeSet) []error {
	et, ok := d.Elements[elementName]
	if !ok {
		return nil
	}
	var errs []error
	for _, name := range et.AttrOrder {
		decl := et.Attributes[name]
		specified := false
		for i := 0; i < attrs.Len(); i++ {
			if attrs.At(i).QName == name {
				specified = true
				attrs.records[i].Type = decl.Type.String()
				attrs.records[i].Value = normalizeAttributeValue(attrs.records[i].Value, decl.Type.String())
				break
			}
		}
		if specified {
			continue
		}
		switch decl.DefaultKind {
		case DefaultImplied:
			// omit
		case DefaultRequired:
			errs = append(errs, fmt.Errorf("qcxml: required attribute %q missing on element %q", name, elementName))
		case DefaultFixed, DefaultLiteral:
			attrs.AddDefaulted(name, normalizeAttributeValue(decl.DefaultValue, decl.Type.String()), decl.Type.String())
		}
	}
	return errs
}

// RecordID registers an ID-typed attribute value, returning an error if
// the ID is already in use document-wide.
func (d *DTD) RecordID(value string) error {
	if d.ids[value] {
		return fmt.Errorf("qcxml: duplicate ID value %q", value)
	}
	d.ids[value] = true
	return nil
}

// RecordIDREF queues an IDREF/IDREFS token for end-of-document resolution.
func (d *DTD) RecordIDREF(value, element, attr string) {
	d.idrefs = append(d.idrefs, idrefUse{value: value, element: element, attr: attr})
}

// ValidateIDREFs checks every queued IDREF against the IDs actually seen,
// returning one error per unresolved reference: unresolved IDREFs are a
// validity error at end-of-document.
func (d *DTD) ValidateIDREFs() []error {
	var errs []error
	for _, use := range d.idrefs {
		if !d.ids[use.value] {
			errs = append(errs, fmt.Errorf("qcxml: IDREF %q on %s/%s does not match any ID", use.value, use.element, use.attr))
		}
	}
	return errs
}
