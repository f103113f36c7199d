// Package curies implements a SPARQL mapping service that serves owl:sameAs
// equivalences between CURIEs and URIs. The service holds no triples: every
// answer is computed on the fly from an immutable prefix registry, so the
// equivalence graph it exposes is exactly as current as its configuration.
//
// # Architecture
//
// The module is organized around one data flow. An inbound SPARQL query is
// classified into one of a small closed set of shapes, answered from the
// prefix registry, and serialized into the negotiated result format:
//
//	query -> sparql (parse/classify) -> graph (evaluate) -> results (serialize)
//
// Packages:
//
//   - converter: the prefix registry. Bidirectional CURIE/URI conversion with
//     longest-prefix matching, synonym prefixes and standardize fallbacks.
//   - sparql: tokenizer, shape classifier and typed query builder for the
//     supported query subset. Not a general SPARQL engine.
//   - results: SPARQL results serializations (JSON, XML, CSV, TSV), content
//     negotiation and deserialization of remote responses.
//   - graph: evaluates classified queries against the converter, including
//     outbound SERVICE federation.
//   - gateway: the HTTP endpoint speaking the SPARQL protocol.
//   - client: SPARQL protocol client for federation and availability probes.
//   - vocabulary: RDF/OWL/SKOS terms used across the module.
//   - config, health, metric, errors: configuration, health reporting,
//     Prometheus instrumentation and classified error handling.
//
// # Federation
//
// The service participates in federation in both directions. Triplestores can
// SERVICE into it (they forward the two-triple join body, which is one of the
// supported shapes), and queries sent to it can SERVICE out to remote stores,
// in which case local solutions are pushed to the remote endpoint as a VALUES
// block.
package curies
