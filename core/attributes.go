package core

import (
	"fmt"

	"github.com/quickxml/qcxml/utils"
)

// AttributeRecord is one attribute as reported to a ContentHandler: its
// resolved expanded name, the raw qname it appeared (or was defaulted)
// under, its declared type, value, and whether it was explicitly present
// in the source or supplied by DTD defaulting.
type AttributeRecord struct {
	URI       string
	LocalName string
	QName     string
	Prefix    string
	Type      string
	Value     string
	Specified bool
}

// AttributeSet accumulates one element start-tag's attributes, enforcing
// the two well-formedness/namespace uniqueness constraints: qnames unique
// within the tag, and expanded names (uri, localName) unique once
// namespace processing has resolved prefixes.
type AttributeSet struct {
	records []AttributeRecord
}

// NewAttributeSet returns an empty set ready to accumulate one start-tag's
// attributes.
func NewAttributeSet() *AttributeSet {
	return &AttributeSet{}
}

// Add appends an attribute by its raw (unresolved) qname, rejecting a
// duplicate qname within the same tag (well-formedness).
func (a *AttributeSet) Add(qname, value string) error {
	for _, r := range a.records {
		if r.QName == qname {
			return fmt.Errorf("qcxml: duplicate attribute %q", qname)
		}
	}
	a.records = append(a.records, AttributeRecord{QName: qname, Value: value, Specified: true})
	return nil
}

// AddDefaulted appends an attribute value supplied by DTD defaulting
// rather than appearing in the source.
func (a *AttributeSet) AddDefaulted(qname, value, attrType string) {
	a.records = append(a.records, AttributeRecord{QName: qname, Value: value, Type: attrType, Specified: false})
}

// Len reports the number of accumulated attributes.
func (a *AttributeSet) Len() int { return len(a.records) }

// At returns the attribute at index i.
func (a *AttributeSet) At(i int) AttributeRecord { return a.records[i] }

// ResolveNamespaces splits and resolves every attribute's qname against
// ns, and verifies expanded-name uniqueness. xmlns/xmlns:* declarations
// are resolved like any other attribute (xmlns:* under the xmlns
// namespace URI, a bare xmlns with no namespace); the parser removes them
// from the set afterwards unless namespace-prefixes is enabled.
func (a *AttributeSet) ResolveNamespaces(ns *NamespaceSupport) error {
	var seen []utils.QName
	for i := range a.records {
		r := &a.records[i]
		uri, local, prefix, err := ns.ResolveQName(r.QName, true)
		if err != nil {
			return err
		}
		r.URI, r.LocalName, r.Prefix = uri, local, prefix
		expanded := utils.NewQName(uri, local)
		for _, s := range seen {
			if s.Equals(expanded) {
				return fmt.Errorf("qcxml: attribute %q duplicates an already-seen expanded name (%q, %q)", r.QName, uri, local)
			}
		}
		seen = append(seen, expanded)
	}
	return nil
}

// IsNamespaceDeclaration reports whether qname is "xmlns" or "xmlns:*".
func IsNamespaceDeclaration(qname string) (prefix string, isDecl bool) {
	if qname == XMLNSPrefix {
		return XMLDefaultNSPrefix, true
	}
	if len(qname) > len(XMLNSPrefix)+1 && qname[:len(XMLNSPrefix)+1] == XMLNSPrefix+":" {
		return qname[len(XMLNSPrefix)+1:], true
	}
	return "", false
}

// normalizeAttributeValue applies XML 1.0 attribute-value
// normalization: literal whitespace becomes U+0020, and for any type other
// than CDATA, leading/trailing spaces are discarded and internal runs
// collapsed to one. References are assumed already expanded by the
// caller before this runs.
func normalizeAttributeValue(raw string, attrType string) string {
	var sb coalescer
	for _, r := range raw {
		if r == '\t' || r == '\n' || r == '\r' {
			r = ' '
		}
		sb.WriteRune(r)
	}
	normalized := sb.String()
	if attrType == "CDATA" || attrType == "" {
		return normalized
	}
	return collapseSpaces(normalized)
}

func collapseSpaces(s string) string {
	var out coalescer
	lastWasSpace := true // drop leading spaces
	for _, r := range s {
		if r == ' ' {
			if lastWasSpace {
				continue
			}
			lastWasSpace = true
			out.WriteRune(' ')
			continue
		}
		lastWasSpace = false
		out.WriteRune(r)
	}
	result := out.String()
	// Drop a trailing collapsed space left by the loop above.
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}
