// Package vocabulary provides the semantic vocabulary terms and well-known
// prefix declarations used by the mapping service.
package vocabulary

import (
	"net/url"
	"strings"
)

// Base namespaces for the vocabularies the service understands
const (
	OWLNamespace  = "http://www.w3.org/2002/07/owl#"
	RDFNamespace  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNamespace = "http://www.w3.org/2000/01/rdf-schema#"
	SKOSNamespace = "http://www.w3.org/2004/02/skos/core#"
)

// Predicate IRIs served or recognized by the mapping service
const (
	// SameAs is the equivalence predicate the mapping graph serves
	SameAs = OWLNamespace + "sameAs"

	// RDFType is the expansion of the SPARQL keyword "a"
	RDFType = RDFNamespace + "type"

	// SKOSExactMatch is a common equivalence predicate in vocabularies
	// mapped by CURIE registries
	SKOSExactMatch = SKOSNamespace + "exactMatch"
)

// WellKnownPrefixes are the prefixed-name expansions the query parser resolves
// when the query carries no PREFIX declaration of its own.
var WellKnownPrefixes = map[string]string{
	"owl":  OWLNamespace,
	"rdf":  RDFNamespace,
	"rdfs": RDFSNamespace,
	"skos": SKOSNamespace,
}

// IsEquivalencePredicate reports whether an IRI is one of the equivalence
// predicates the mapping graph answers for.
func IsEquivalencePredicate(iri string) bool {
	return iri == SameAs || iri == SKOSExactMatch
}

// IsValidIRI reports whether a string is usable as an IRI term: absolute,
// parseable, and free of the delimiters the Turtle/SPARQL grammars forbid.
func IsValidIRI(iri string) bool {
	if iri == "" {
		return false
	}
	if strings.ContainsAny(iri, "<>\"{}|^`\\ \t\r\n") {
		return false
	}
	u, err := url.Parse(iri)
	return err == nil && u.IsAbs()
}
