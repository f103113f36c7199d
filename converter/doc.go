// Package converter implements bidirectional CURIE/URI resolution over an
// immutable prefix map.
//
// A prefix map associates compact identifier prefixes (e.g. "chebi") with
// URI expansions (e.g. "http://purl.obolibrary.org/obo/CHEBI_"). Records may
// carry synonym prefixes and synonym URI expansions; synonyms are accepted on
// input but the primary form always wins on output. Compression selects the
// longest matching registered expansion, so more specific expansions shadow
// less specific ones. Conflicting registrations fail at construction time.
//
// The Converter is read-only after construction and requires no locking for
// concurrent use.
package converter
