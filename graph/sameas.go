// Package graph computes answers for the supported SPARQL shapes from the
// converter's prefix map. It serves the owl:sameAs equivalence graph on the
// fly: no triples are stored, every solution is derived per request.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vemonet/curies/converter"
	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/metric"
	"github.com/vemonet/curies/results"
	"github.com/vemonet/curies/sparql"
)

// RemoteQuerier executes a SPARQL query against a remote endpoint when this
// service acts as the federation initiator. Implemented by the client package.
type RemoteQuerier interface {
	Query(ctx context.Context, endpoint, query string) (*results.Result, error)
}

// Graph answers the supported query shapes over an immutable converter.
// It holds no mutable state and is safe for concurrent use.
type Graph struct {
	converter *converter.Converter
	remote    RemoteQuerier
	allowed   map[string]bool
	metrics   *metric.Metrics
	logger    *slog.Logger
}

// Option configures a Graph
type Option func(*Graph)

// WithRemote enables outbound federation through the given querier
func WithRemote(remote RemoteQuerier) Option {
	return func(g *Graph) { g.remote = remote }
}

// WithAllowedEndpoints restricts SERVICE clauses to the named endpoints.
// Without this option any endpoint may be named.
func WithAllowedEndpoints(endpoints ...string) Option {
	return func(g *Graph) {
		g.allowed = make(map[string]bool, len(endpoints))
		for _, endpoint := range endpoints {
			g.allowed[endpoint] = true
		}
	}
}

// WithMetrics enables Prometheus instrumentation of outbound federation
func WithMetrics(metrics *metric.Metrics) Option {
	return func(g *Graph) { g.metrics = metrics }
}

// WithLogger sets the logger used for federation diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// New creates a sameAs graph over the converter
func New(conv *converter.Converter, opts ...Option) *Graph {
	g := &Graph{converter: conv, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate answers a classified query. Resolution misses produce empty
// results; only unanswerable queries produce errors, so "no matches" and
// "can't answer" stay distinguishable.
func (g *Graph) Evaluate(ctx context.Context, q *sparql.Query) (*results.Result, error) {
	var (
		result *results.Result
		err    error
	)

	switch q.Shape {
	case sparql.ShapeProbe:
		result = g.evaluateProbe(q)
	case sparql.ShapeLookup:
		result = g.evaluateLookup(q)
	case sparql.ShapeValues:
		result = g.evaluateValues(q)
	case sparql.ShapeJoin:
		result = g.evaluateJoin(q)
	case sparql.ShapeFederated:
		result, err = g.evaluateFederated(ctx, q)
	default:
		err = errors.WrapInvalid(errors.ErrUnsupportedQuery, "Graph", "Evaluate",
			fmt.Sprintf("shape %s", q.Shape))
	}
	if err != nil {
		return nil, err
	}

	// supported shapes all carry DISTINCT semantics
	result.Distinct()
	if q.Limit > 0 && len(result.Bindings) > q.Limit {
		result.Bindings = result.Bindings[:q.Limit]
	}
	return result, nil
}

// evaluateProbe answers the availability probe by echoing the bound literal
func (g *Graph) evaluateProbe(q *sparql.Query) *results.Result {
	result := results.NewResult(projection(q, []string{q.Bind.Var})...)
	result.Add(results.Binding{q.Bind.Var: results.Literal(q.Bind.Value)})
	return result
}

// evaluateLookup answers a single equivalence triple with one bound side
func (g *Graph) evaluateLookup(q *sparql.Query) *results.Result {
	bound, variable := splitTriple(q.Triples[0])
	result := results.NewResult(projection(q, []string{variable})...)
	for _, equivalent := range g.converter.SameAs(bound) {
		result.Add(results.Binding{variable: results.URI(equivalent)})
	}
	return result
}

// evaluateValues fans a VALUES block out over the equivalence triple,
// resolving each value independently
func (g *Graph) evaluateValues(q *sparql.Query) *results.Result {
	triple := q.Triples[0]
	valuesVar := q.Values.Var
	otherVar := triple.Object.Value
	if triple.Object.Value == valuesVar {
		otherVar = triple.Subject.Value
	}

	result := results.NewResult(projection(q, []string{valuesVar, otherVar})...)
	for _, iri := range q.Values.IRIs {
		for _, equivalent := range g.converter.SameAs(iri) {
			result.Add(results.Binding{
				valuesVar: results.URI(iri),
				otherVar:  results.URI(equivalent),
			})
		}
	}
	return result
}

// evaluateJoin answers the two-triple body triplestores forward when
// federating into this service: the bound triple seeds the shared variable,
// then the second triple resolves per seeded value.
func (g *Graph) evaluateJoin(q *sparql.Query) *results.Result {
	seed, joined := q.Triples[0], q.Triples[1]
	if !oneSideBound(seed) {
		seed, joined = joined, seed
	}
	bound, sharedVar := splitTriple(seed)

	otherVar := joined.Subject.Value
	if otherVar == sharedVar {
		otherVar = joined.Object.Value
	}

	result := results.NewResult(projection(q, []string{otherVar, sharedVar})...)
	for _, shared := range g.converter.SameAs(bound) {
		for _, other := range g.converter.SameAs(shared) {
			result.Add(results.Binding{
				sharedVar: results.URI(shared),
				otherVar:  results.URI(other),
			})
		}
	}
	return result
}

// evaluateFederated resolves the local equivalence triple, then delegates the
// SERVICE pattern to the remote endpoint with the local solutions injected as
// a VALUES block, matching how SPARQL engines push bindings into SERVICE
// sub-queries.
func (g *Graph) evaluateFederated(ctx context.Context, q *sparql.Query) (*results.Result, error) {
	if g.remote == nil {
		return nil, errors.WrapInvalid(errors.ErrUnsupportedQuery, "Graph", "Evaluate",
			"federated queries are disabled: no remote querier configured")
	}
	if len(g.allowed) > 0 && !g.allowed[q.Service.Endpoint] {
		return nil, errors.WrapInvalid(errors.ErrUnsupportedQuery, "Graph", "Evaluate",
			fmt.Sprintf("SERVICE endpoint <%s> is not in the configured allowlist", q.Service.Endpoint))
	}

	bound, sharedVar := splitTriple(q.Triples[0])
	locals := g.converter.SameAs(bound)

	vars := projection(q, serviceVars(q.Service, sharedVar))
	result := results.NewResult(vars...)
	if len(locals) == 0 {
		return result, nil
	}

	builder := sparql.NewBuilder().
		Select(serviceVars(q.Service, sharedVar)...).
		Distinct().
		Values(sharedVar, locals...)
	for _, triple := range q.Service.Pattern {
		builder.Triple(triple.Subject, triple.Predicate, triple.Object)
	}
	remoteQuery := builder.String()

	g.logger.Debug("Executing federated sub-query",
		"endpoint", q.Service.Endpoint, "bindings", len(locals))

	remote, err := g.remote.Query(ctx, q.Service.Endpoint, remoteQuery)
	if g.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		g.metrics.RecordFederatedRequest(q.Service.Endpoint, status)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Graph", "Evaluate", "federated sub-query")
	}

	for _, row := range remote.Bindings {
		binding := make(results.Binding, len(vars))
		for _, v := range vars {
			if term, ok := row[v]; ok {
				binding[v] = term
			}
		}
		if len(binding) > 0 {
			result.Add(binding)
		}
	}
	return result, nil
}

// projection returns the query's declared variables, falling back to the
// shape's natural variables for SELECT *
func projection(q *sparql.Query, natural []string) []string {
	if len(q.Vars) > 0 {
		return q.Vars
	}
	return natural
}

// serviceVars collects the variables of a SERVICE pattern in order of
// appearance, with the shared variable first
func serviceVars(service *sparql.ServiceClause, sharedVar string) []string {
	vars := []string{sharedVar}
	seen := map[string]bool{sharedVar: true}
	for _, triple := range service.Pattern {
		for _, term := range []sparql.Term{triple.Subject, triple.Predicate, triple.Object} {
			if term.IsVar() && !seen[term.Value] {
				seen[term.Value] = true
				vars = append(vars, term.Value)
			}
		}
	}
	return vars
}

// splitTriple returns the bound IRI and the variable name of a one-side-bound
// equivalence triple
func splitTriple(t sparql.Triple) (bound string, variable string) {
	if t.Subject.Kind == sparql.KindIRI {
		return t.Subject.Value, t.Object.Value
	}
	return t.Object.Value, t.Subject.Value
}

// oneSideBound mirrors the parser's bound-side rule
func oneSideBound(t sparql.Triple) bool {
	if t.Subject.Kind == sparql.KindIRI && t.Object.IsVar() {
		return true
	}
	return t.Subject.IsVar() && t.Object.Kind == sparql.KindIRI
}
