// Package utils collects small, dependency-free helpers shared by the core,
// catalog and sax packages: qualified-name handling and the generic
// pointer conveniences it's built on.
package utils

import "fmt"

// QName is an XML qualified name split into its namespace URI, local part
// and (optional) prefix. Space is the empty string for names with no
// namespace binding.
type QName struct {
	Space  string
	Local  string
	Prefix *string
}

// NewQName builds a QName with no prefix.
func NewQName(space, local string) QName {
	return QName{Space: space, Local: local}
}

// NewPrefixedQName builds a QName carrying an explicit prefix.
func NewPrefixedQName(space, local, prefix string) QName {
	return QName{Space: space, Local: local, Prefix: AsPtr(prefix)}
}

// String renders "prefix:local", or just "local" when there is no prefix.
func (q QName) String() string {
	if q.Prefix == nil || *q.Prefix == "" {
		return q.Local
	}
	return fmt.Sprintf("%s:%s", *q.Prefix, q.Local)
}

// Equals compares the expanded name (Space, Local) only, per the namespace
// constraint that expanded names — not qnames — must be unique.
func (q QName) Equals(other QName) bool {
	return q.Space == other.Space && q.Local == other.Local
}
