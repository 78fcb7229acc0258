package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleCatalog = `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xml:catalog" prefer="public">
  <public publicId="-//Example//DTD Example 1.0//EN" uri="example.dtd"/>
  <system systemId="http://example.com/example.dtd" uri="local-example.dtd"/>
  <rewriteSystem systemIdStartString="http://example.com/" rewritePrefix="local/"/>
  <group prefer="system">
    <public publicId="-//Example//DTD Grouped//EN" uri="grouped.dtd"/>
  </group>
  <delegatePublic publicIdStartString="-//Example//" catalog="delegate.xml"/>
  <nextCatalog catalog="next.xml"/>
</catalog>`

func TestParseFileBasicEntries(t *testing.T) {
	f, err := ParseFile("catalog.xml", []byte(sampleCatalog))
	assert.NoError(t, err)
	assert.Equal(t, "public", f.Prefer)

	var kinds []EntryKind
	for _, e := range f.Entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EntryKind{
		EntryPublic, EntrySystem, EntryRewriteSystem, EntryGroup, EntryDelegatePublic, EntryNextCatalog,
	}, kinds)
}

func TestParseFilePublicEntryFields(t *testing.T) {
	f, err := ParseFile("catalog.xml", []byte(sampleCatalog))
	assert.NoError(t, err)
	pub := f.Entries[0]
	assert.Equal(t, "-//Example//DTD Example 1.0//EN", pub.PublicID)
	assert.Equal(t, "example.dtd", pub.URI)
	assert.Equal(t, "public", pub.Prefer) // inherited from the catalog's prefer
}

func TestParseFileGroupOverridesPrefer(t *testing.T) {
	f, err := ParseFile("catalog.xml", []byte(sampleCatalog))
	assert.NoError(t, err)
	var group *Entry
	for _, e := range f.Entries {
		if e.Kind == EntryGroup {
			group = e
		}
	}
	assert.NotNil(t, group)
	assert.Equal(t, "system", group.Prefer)
	assert.Len(t, group.Children, 1)
	assert.Equal(t, "system", group.Children[0].Prefer)
}

func TestParseFileDelegateAndNextCatalog(t *testing.T) {
	f, err := ParseFile("catalog.xml", []byte(sampleCatalog))
	assert.NoError(t, err)
	var delegate, next *Entry
	for _, e := range f.Entries {
		switch e.Kind {
		case EntryDelegatePublic:
			delegate = e
		case EntryNextCatalog:
			next = e
		}
	}
	assert.Equal(t, "-//Example//", delegate.PublicID)
	assert.Equal(t, "delegate.xml", delegate.CatalogID)
	assert.Equal(t, "next.xml", next.CatalogID)
}

func TestParseFileMalformedXMLFails(t *testing.T) {
	_, err := ParseFile("bad.xml", []byte(`<catalog><public`))
	assert.Error(t, err)
}
