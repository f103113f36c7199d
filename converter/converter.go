package converter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vemonet/curies/errors"
)

// Converter resolves between compact identifiers (CURIEs) and expanded URIs
// over an immutable prefix map. It is constructed once and safe for
// concurrent readers without locking.
type Converter struct {
	records []Record

	// prefix (primary or synonym) -> record index
	byPrefix map[string]int

	// URI expansions (primary and synonym) sorted longest-first so the
	// first HasPrefix hit is the longest match
	expansions []expansion
}

// expansion associates one URI-expansion form with its owning record
type expansion struct {
	uriPrefix string
	record    int
}

// New builds a Converter from prefix-map records. Registration is strict:
// a prefix or URI expansion that collides with an existing one owned by a
// different record is an ambiguous-registration error, never resolved by
// last-write-wins.
func New(records []Record) (*Converter, error) {
	c := &Converter{
		byPrefix: make(map[string]int),
	}

	byExpansion := make(map[string]int)

	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, err
		}

		for _, p := range rec.AllPrefixes() {
			if prev, exists := c.byPrefix[p]; exists {
				if prev != i {
					return nil, errors.WrapFatal(errors.ErrAmbiguousRegistration, "Converter", "New",
						fmt.Sprintf("prefix %q registered by both %q and %q",
							p, records[prev].Prefix, rec.Prefix))
				}
				continue
			}
			c.byPrefix[p] = i
		}

		for _, u := range rec.AllURIPrefixes() {
			if prev, exists := byExpansion[u]; exists {
				if prev != i {
					return nil, errors.WrapFatal(errors.ErrAmbiguousRegistration, "Converter", "New",
						fmt.Sprintf("URI prefix %q registered by both %q and %q",
							u, records[prev].Prefix, rec.Prefix))
				}
				continue
			}
			byExpansion[u] = i
			c.expansions = append(c.expansions, expansion{uriPrefix: u, record: i})
		}

		c.records = append(c.records, rec)
	}

	// Longest expansion first; ties broken lexicographically for determinism.
	// Equal-length expansions always belong to distinct strings, and equal
	// strings across records were rejected above.
	sort.Slice(c.expansions, func(a, b int) bool {
		ea, eb := c.expansions[a].uriPrefix, c.expansions[b].uriPrefix
		if len(ea) != len(eb) {
			return len(ea) > len(eb)
		}
		return ea < eb
	})

	return c, nil
}

// Compress converts an expanded URI to its CURIE form using the longest
// matching registered URI expansion (primary or synonym). Returns false when
// no registered expansion is a prefix of the URI or the remainder is empty.
func (c *Converter) Compress(uri string) (string, bool) {
	rec, suffix, ok := c.matchExpansion(uri)
	if !ok {
		return "", false
	}
	return rec.Prefix + ":" + suffix, true
}

// CompressOrStandardize attempts compression but returns the input unchanged
// when no expansion matches, for callers that can't tell "already a CURIE"
// from "already a URI".
func (c *Converter) CompressOrStandardize(uri string) string {
	if curie, ok := c.Compress(uri); ok {
		return curie
	}
	return uri
}

// Expand converts a CURIE to its expanded URI using the record's primary URI
// prefix. The CURIE splits on the first colon; the local identifier is opaque
// but must be non-empty. Returns false for unregistered prefixes.
func (c *Converter) Expand(curie string) (string, bool) {
	rec, suffix, ok := c.splitCURIE(curie)
	if !ok {
		return "", false
	}
	return rec.URIPrefix + suffix, true
}

// ExpandOrStandardize attempts expansion but returns the input unchanged when
// the prefix is unregistered.
func (c *Converter) ExpandOrStandardize(curie string) string {
	if uri, ok := c.Expand(curie); ok {
		return uri
	}
	return curie
}

// ExpandAll returns every URI form of a CURIE: the primary expansion followed
// by all synonym expansions. Returns nil when the prefix is unregistered.
func (c *Converter) ExpandAll(curie string) []string {
	rec, suffix, ok := c.splitCURIE(curie)
	if !ok {
		return nil
	}
	prefixes := rec.AllURIPrefixes()
	uris := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		uris = append(uris, p+suffix)
	}
	return uris
}

// SameAs returns all URIs equivalent to the given URI, excluding the input
// itself. These are the objects of the owl:sameAs triples the mapping service
// serves for the URI. Returns nil when the URI matches no registered expansion.
func (c *Converter) SameAs(uri string) []string {
	curie, ok := c.Compress(uri)
	if !ok {
		return nil
	}
	var out []string
	for _, expanded := range c.ExpandAll(curie) {
		if expanded != uri {
			out = append(out, expanded)
		}
	}
	return out
}

// Records returns a copy of the registered records.
func (c *Converter) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Prefixes returns the registered primary prefixes in registration order.
func (c *Converter) Prefixes() []string {
	out := make([]string, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec.Prefix)
	}
	return out
}

// matchExpansion finds the longest registered URI expansion that prefixes uri
func (c *Converter) matchExpansion(uri string) (Record, string, bool) {
	if uri == "" {
		return Record{}, "", false
	}
	for _, e := range c.expansions {
		if strings.HasPrefix(uri, e.uriPrefix) {
			suffix := uri[len(e.uriPrefix):]
			if suffix == "" {
				return Record{}, "", false
			}
			return c.records[e.record], suffix, true
		}
	}
	return Record{}, "", false
}

// splitCURIE splits prefix:suffix on the first colon and resolves the prefix,
// checking synonyms
func (c *Converter) splitCURIE(curie string) (Record, string, bool) {
	prefix, suffix, found := strings.Cut(curie, ":")
	if !found || prefix == "" || suffix == "" {
		return Record{}, "", false
	}
	idx, ok := c.byPrefix[prefix]
	if !ok {
		return Record{}, "", false
	}
	return c.records[idx], suffix, true
}
