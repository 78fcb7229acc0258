package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/quickxml/qcxml/core"
)

const urnPublicIDPrefix = "urn:publicid:"

// Resolver resolves (publicId, systemId) pairs against a loaded Set,
// following the essential-subset OASIS XML Catalogs 1.1 algorithm:
// prefer-ordered public/system/rewrite matching in the current catalog,
// then delegate*/nextCatalog descent with cycle detection on visited
// catalog URIs. Catalogs are immutable after load, so one Resolver is
// safe to share across concurrent parses; it keeps no per-resolution
// state beyond a local visited-set per call.
type Resolver struct {
	set    *Set
	Trace  bool
	Tracer func(string)
}

// NewResolver wraps an already-loaded catalog set.
func NewResolver(set *Set) *Resolver {
	return &Resolver{set: set}
}

// Load reads and parses a chain of catalog files, following nextCatalog
// at load time is NOT performed here; nextCatalog is resolved lazily
// during Resolve so that a catalog unreadable at load time only fails
// resolutions that actually need it.
func Load(paths ...string) (*Set, error) {
	set := &Set{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		f, err := ParseFile(path, data)
		if err != nil {
			return nil, err
		}
		set.Files = append(set.Files, f)
	}
	return set, nil
}

func (r *Resolver) trace(format string, args ...any) {
	if r.Trace && r.Tracer != nil {
		r.Tracer(fmt.Sprintf(format, args...))
	}
}

// Resolve maps (publicID, systemID) to a redirected systemID, returning
// systemID unchanged if nothing in the catalog set matches.
func (r *Resolver) Resolve(publicID, systemID string) string {
	publicID = canonicalizePublicID(publicID)
	visited := map[string]bool{}
	for _, f := range r.set.Files {
		if result, ok := r.resolveInFile(f, publicID, systemID, visited); ok {
			return result
		}
	}
	return systemID
}

// ResolveEntity implements core.EntityResolver, letting a Resolver be
// registered directly on a core.Parser or sax.XMLReader. The redirected
// systemID is returned with no bytes attached. core.Parser performs no
// fetch of its own, so such an input is read as an empty entity.
func (r *Resolver) ResolveEntity(publicID, systemID string) (*core.EntityInput, error) {
	redirected := r.Resolve(publicID, systemID)
	if redirected == systemID {
		return nil, nil
	}
	return &core.EntityInput{PublicID: publicID, SystemID: redirected}, nil
}

// canonicalizePublicID unwraps a urn:publicid: URN into a plain public
// identifier.
func canonicalizePublicID(publicID string) string {
	if !strings.HasPrefix(publicID, urnPublicIDPrefix) {
		return publicID
	}
	rest := publicID[len(urnPublicIDPrefix):]
	rest = strings.ReplaceAll(rest, "+", " ")
	rest = strings.ReplaceAll(rest, ":", "//")
	rest = strings.ReplaceAll(rest, ";", "::")
	rest = strings.ReplaceAll(rest, "%2B", "+")
	rest = strings.ReplaceAll(rest, "%3A", ":")
	rest = strings.ReplaceAll(rest, "%2F", "/")
	rest = strings.ReplaceAll(rest, "%3B", ";")
	rest = strings.ReplaceAll(rest, "%27", "'")
	return rest
}

func (r *Resolver) resolveInFile(f *File, publicID, systemID string, visited map[string]bool) (string, bool) {
	if visited[f.SystemID] {
		return "", false
	}
	visited[f.SystemID] = true

	if result, ok := r.searchEntries(f.Entries, f.effectivePrefer(), publicID, systemID, visited); ok {
		return result, true
	}

	for _, e := range f.Entries {
		if e.Kind == EntryNextCatalog {
			if result, ok := r.resolveDelegate(e.CatalogID, publicID, systemID, visited); ok {
				return result, true
			}
		}
	}
	return "", false
}

// searchEntries implements step 2 of the algorithm: public/system/
// rewriteSystem matches in declared order honoring prefer, descending
// into groups, then delegate entries as a prefix-matched recursion.
func (r *Resolver) searchEntries(entries []*Entry, prefer, publicID, systemID string, visited map[string]bool) (string, bool) {
	tryPublic := func() (string, bool) {
		if publicID == "" {
			return "", false
		}
		for _, e := range entries {
			if e.Kind == EntryPublic && e.PublicID == publicID {
				return e.URI, true
			}
		}
		return "", false
	}
	trySystem := func() (string, bool) {
		if systemID == "" {
			return "", false
		}
		for _, e := range entries {
			if e.Kind == EntrySystem && e.SystemID == systemID {
				return e.URI, true
			}
		}
		return "", false
	}

	if prefer == "public" {
		if result, ok := tryPublic(); ok {
			return result, true
		}
	}
	if result, ok := trySystem(); ok {
		return result, true
	}
	if prefer != "public" {
		if result, ok := tryPublic(); ok {
			return result, true
		}
	}

	if result, ok := r.bestRewrite(entries, systemID); ok {
		return result, true
	}

	for _, e := range entries {
		if e.Kind == EntryGroup {
			if result, ok := r.searchEntries(e.Children, effectivePreferOf(e, prefer), publicID, systemID, visited); ok {
				return result, true
			}
		}
	}

	for _, e := range entries {
		var result string
		var ok bool
		switch e.Kind {
		case EntryDelegatePublic:
			if publicID != "" && strings.HasPrefix(publicID, e.PublicID) {
				result, ok = r.resolveDelegate(e.CatalogID, publicID, systemID, visited)
			}
		case EntryDelegateSystem:
			if systemID != "" && strings.HasPrefix(systemID, e.Name) {
				result, ok = r.resolveDelegate(e.CatalogID, publicID, systemID, visited)
			}
		}
		if ok {
			return result, true
		}
	}

	return "", false
}

func effectivePreferOf(e *Entry, inherited string) string {
	if e.Prefer == "public" || e.Prefer == "system" {
		return e.Prefer
	}
	return inherited
}

// bestRewrite applies rewriteSystem, picking the entry with the longest
// matching startString prefix; OASIS XML Catalogs require the longest
// prefix to win when more than one rewrite rule matches.
func (r *Resolver) bestRewrite(entries []*Entry, systemID string) (string, bool) {
	if systemID == "" {
		return "", false
	}
	bestLen := -1
	var bestURI string
	for _, e := range entries {
		if e.Kind != EntryRewriteSystem {
			continue
		}
		if strings.HasPrefix(systemID, e.Name) && len(e.Name) > bestLen {
			bestLen = len(e.Name)
			bestURI = e.URI + systemID[len(e.Name):]
		}
	}
	return bestURI, bestLen >= 0
}

func (r *Resolver) resolveDelegate(catalogID, publicID, systemID string, visited map[string]bool) (string, bool) {
	if visited[catalogID] {
		r.trace("cycle detected resolving delegate catalog %q", catalogID)
		return "", false
	}
	data, err := os.ReadFile(catalogID)
	if err != nil {
		r.trace("skipping unreadable delegate catalog %q: %v", catalogID, err)
		return "", false
	}
	f, err := ParseFile(catalogID, data)
	if err != nil {
		r.trace("skipping unparseable delegate catalog %q: %v", catalogID, err)
		return "", false
	}
	return r.resolveInFile(f, publicID, systemID, visited)
}
