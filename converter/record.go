package converter

import (
	"fmt"
	"strings"

	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/vocabulary"
)

// Record is a single prefix to URI-expansion association, optionally augmented
// with synonym prefixes and synonym URI prefixes. Synonyms resolve inputs that
// don't match the primary form; the primary form always wins on output.
type Record struct {
	Prefix            string   `json:"prefix" yaml:"prefix"`
	URIPrefix         string   `json:"uri_prefix" yaml:"uri_prefix"`
	PrefixSynonyms    []string `json:"prefix_synonyms,omitempty" yaml:"prefix_synonyms,omitempty"`
	URIPrefixSynonyms []string `json:"uri_prefix_synonyms,omitempty" yaml:"uri_prefix_synonyms,omitempty"`
}

// Validate checks that the record is well-formed: a non-empty prefix and an
// absolute-URI expansion, with synonyms held to the same rules.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Prefix) == "" {
		return errors.WrapInvalid(errors.ErrInvalidCURIE, "Record", "Validate", "empty prefix")
	}
	if strings.Contains(r.Prefix, ":") {
		return errors.WrapInvalid(errors.ErrInvalidCURIE, "Record", "Validate",
			fmt.Sprintf("prefix %q contains a colon", r.Prefix))
	}
	if err := validateURIPrefix(r.URIPrefix); err != nil {
		return err
	}
	for _, syn := range r.PrefixSynonyms {
		if strings.TrimSpace(syn) == "" || strings.Contains(syn, ":") {
			return errors.WrapInvalid(errors.ErrInvalidCURIE, "Record", "Validate",
				fmt.Sprintf("invalid prefix synonym %q for %q", syn, r.Prefix))
		}
	}
	for _, syn := range r.URIPrefixSynonyms {
		if err := validateURIPrefix(syn); err != nil {
			return err
		}
	}
	return nil
}

// validateURIPrefix checks that an expansion string is a valid absolute-IRI
// prefix. Expansions are concatenated into query results and built queries, so
// the delimiters the SPARQL grammar forbids are rejected here.
func validateURIPrefix(uriPrefix string) error {
	if uriPrefix == "" {
		return errors.WrapInvalid(errors.ErrInvalidURI, "Record", "Validate", "empty URI prefix")
	}
	if !vocabulary.IsValidIRI(uriPrefix) {
		return errors.WrapInvalid(errors.ErrInvalidURI, "Record", "Validate",
			fmt.Sprintf("URI prefix %q is not an absolute IRI", uriPrefix))
	}
	return nil
}

// AllPrefixes returns the primary prefix followed by deduplicated synonyms.
func (r Record) AllPrefixes() []string {
	return dedupe(r.Prefix, r.PrefixSynonyms)
}

// AllURIPrefixes returns the primary URI prefix followed by deduplicated synonyms.
func (r Record) AllURIPrefixes() []string {
	return dedupe(r.URIPrefix, r.URIPrefixSynonyms)
}

// dedupe prepends primary to synonyms, dropping synonyms that duplicate
// the primary or each other. Duplicate synonyms for the same target are a
// no-op rather than an error.
func dedupe(primary string, synonyms []string) []string {
	out := make([]string, 0, len(synonyms)+1)
	seen := map[string]bool{primary: true}
	out = append(out, primary)
	for _, s := range synonyms {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
