package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setFromFile(t *testing.T, doc string) *Set {
	t.Helper()
	f, err := ParseFile("catalog.xml", []byte(doc))
	assert.NoError(t, err)
	return &Set{Files: []*File{f}}
}

func TestResolverPublicMatch(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog" prefer="public">
		<public publicId="-//Example//DTD 1.0//EN" uri="example.dtd"/>
	</catalog>`)
	r := NewResolver(set)
	got := r.Resolve("-//Example//DTD 1.0//EN", "http://example.com/unrelated.dtd")
	assert.Equal(t, "example.dtd", got)
}

func TestResolverSystemMatch(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog">
		<system systemId="http://example.com/example.dtd" uri="local.dtd"/>
	</catalog>`)
	r := NewResolver(set)
	got := r.Resolve("", "http://example.com/example.dtd")
	assert.Equal(t, "local.dtd", got)
}

func TestResolverRewriteSystemLongestPrefixWins(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog">
		<rewriteSystem systemIdStartString="http://example.com/" rewritePrefix="short/"/>
		<rewriteSystem systemIdStartString="http://example.com/sub/" rewritePrefix="long/"/>
	</catalog>`)
	r := NewResolver(set)
	got := r.Resolve("", "http://example.com/sub/doc.dtd")
	assert.Equal(t, "long/doc.dtd", got)
}

func TestResolverFallsBackToSystemIDUnchanged(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog"></catalog>`)
	r := NewResolver(set)
	got := r.Resolve("", "http://example.com/nomatch.dtd")
	assert.Equal(t, "http://example.com/nomatch.dtd", got)
}

func TestResolverGroupPreferOverride(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog" prefer="system">
		<group prefer="public">
			<public publicId="-//Example//DTD 1.0//EN" uri="grouped.dtd"/>
		</group>
	</catalog>`)
	r := NewResolver(set)
	got := r.Resolve("-//Example//DTD 1.0//EN", "http://example.com/unrelated.dtd")
	assert.Equal(t, "grouped.dtd", got)
}

func TestResolverPreferSystemSkipsPublicWhenSystemMatches(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog" prefer="system">
		<public publicId="-//Example//DTD 1.0//EN" uri="public.dtd"/>
		<system systemId="http://example.com/example.dtd" uri="system.dtd"/>
	</catalog>`)
	r := NewResolver(set)
	got := r.Resolve("-//Example//DTD 1.0//EN", "http://example.com/example.dtd")
	assert.Equal(t, "system.dtd", got)
}

func TestResolverEntityResolverReturnsNilWhenNoRedirect(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog"></catalog>`)
	r := NewResolver(set)
	input, err := r.ResolveEntity("", "http://example.com/nomatch.dtd")
	assert.NoError(t, err)
	assert.Nil(t, input)
}

func TestResolverEntityResolverReturnsRedirectedSystemID(t *testing.T) {
	set := setFromFile(t, `<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog">
		<system systemId="http://example.com/example.dtd" uri="local.dtd"/>
	</catalog>`)
	r := NewResolver(set)
	input, err := r.ResolveEntity("", "http://example.com/example.dtd")
	assert.NoError(t, err)
	assert.Equal(t, "local.dtd", input.SystemID)
	assert.Nil(t, input.Bytes)
}

func TestCanonicalizePublicIDUnwrapsURN(t *testing.T) {
	got := canonicalizePublicID("urn:publicid:-//Example//DTD+1.0//EN")
	assert.Equal(t, "-//Example//DTD 1.0//EN", got)

	got = canonicalizePublicID("-//Example//DTD 1.0//EN")
	assert.Equal(t, "-//Example//DTD 1.0//EN", got)
}
