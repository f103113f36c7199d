// Package sparql recognizes the closed set of SPARQL query shapes the
// mapping service can answer and extracts the bound and unbound terms needed
// to drive the converter. It is deliberately not a general SPARQL engine:
// queries outside the supported shapes are rejected with an explicit
// unsupported-query error so callers never confuse "no matches" with "can't
// parse". The package also provides a typed query builder for constructing
// the outbound queries the service sends when acting as a federation
// initiator.
package sparql
