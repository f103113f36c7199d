package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/vocabulary"
)

// TermKind distinguishes the term forms a triple pattern may hold
type TermKind int

const (
	// KindIRI is a concrete IRI term
	KindIRI TermKind = iota
	// KindVar is an unbound variable
	KindVar
	// KindLiteral is a quoted literal
	KindLiteral
)

// Term is one position of a triple pattern: an IRI, a variable, or a literal.
type Term struct {
	Kind  TermKind
	Value string
}

// IRI constructs an IRI term
func IRI(value string) Term { return Term{Kind: KindIRI, Value: value} }

// Var constructs a variable term (name without the leading ?)
func Var(name string) Term { return Term{Kind: KindVar, Value: name} }

// Literal constructs a literal term
func Literal(value string) Term { return Term{Kind: KindLiteral, Value: value} }

// IsVar reports whether the term is a variable
func (t Term) IsVar() bool { return t.Kind == KindVar }

// Triple is a single triple pattern
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Shape identifies which of the supported query shapes a parsed query is.
// Anything outside this closed set is rejected at parse time.
type Shape int

const (
	// ShapeProbe is the availability probe: a single BIND("lit" AS ?var)
	ShapeProbe Shape = iota
	// ShapeLookup is one equivalence triple with exactly one side bound
	ShapeLookup
	// ShapeValues is a VALUES block fanned out over an equivalence triple
	ShapeValues
	// ShapeJoin is a bound equivalence triple joined to a second equivalence
	// triple through a shared variable (the pattern triplestores forward when
	// federating into this service)
	ShapeJoin
	// ShapeFederated is a local equivalence triple plus a SERVICE block this
	// service must execute against a remote endpoint
	ShapeFederated
)

// String returns the shape name for logging and metrics
func (s Shape) String() string {
	switch s {
	case ShapeProbe:
		return "probe"
	case ShapeLookup:
		return "lookup"
	case ShapeValues:
		return "values"
	case ShapeJoin:
		return "join"
	case ShapeFederated:
		return "federated"
	default:
		return "unknown"
	}
}

// ValuesClause is a parsed VALUES ?var { <iri> ... } block
type ValuesClause struct {
	Var  string
	IRIs []string
}

// BindClause is a parsed BIND("literal" AS ?var) statement
type BindClause struct {
	Value string
	Var   string
}

// ServiceClause is a parsed SERVICE <endpoint> { ... } block. The inner
// pattern is kept as triples and forwarded, not interpreted locally.
type ServiceClause struct {
	Endpoint string
	Pattern  []Triple
}

// Query is a classified SPARQL query reduced to the terms needed to answer it
type Query struct {
	Shape    Shape
	Vars     []string // projected variables in declaration order; nil for SELECT *
	Distinct bool
	Limit    int // 0 means no limit
	Triples  []Triple
	Values   *ValuesClause
	Bind     *BindClause
	Service  *ServiceClause
}

// parser consumes a token stream
type parser struct {
	tokens   []token
	pos      int
	prefixes map[string]string
}

// Parse classifies a SPARQL query string into one of the supported shapes and
// extracts the terms needed to answer it. Structurally broken queries fail
// with ErrMalformedQuery; well-formed SPARQL outside the supported shape set
// fails with ErrUnsupportedQuery, so callers can always distinguish "no
// matches" from "can't answer this".
func Parse(query string) (*Query, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, prefixes: map[string]string{}}

	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	q := &Query{}
	if err := p.parseSelect(q); err != nil {
		return nil, err
	}
	if err := p.parseWhere(q); err != nil {
		return nil, err
	}
	if err := p.parseTrailing(q); err != nil {
		return nil, err
	}

	if err := classify(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) malformed(detail string) error {
	return errors.WrapInvalid(errors.ErrMalformedQuery, "sparql", "Parse", detail)
}

func (p *parser) unsupported(detail string) error {
	return errors.WrapInvalid(errors.ErrUnsupportedQuery, "sparql", "Parse", detail)
}

// parsePrologue consumes leading PREFIX declarations
func (p *parser) parsePrologue() error {
	for {
		t, ok := p.peek()
		if !ok || !t.isKeyword("PREFIX") {
			return nil
		}
		p.pos++

		name, ok := p.next()
		if !ok || name.kind != tokWord || !strings.HasSuffix(name.value, ":") {
			return p.malformed("PREFIX declaration missing prefix name")
		}
		iri, ok := p.next()
		if !ok || iri.kind != tokIRI {
			return p.malformed("PREFIX declaration missing IRI")
		}
		p.prefixes[strings.TrimSuffix(name.value, ":")] = iri.value
	}
}

// parseSelect consumes the SELECT clause and projected variables
func (p *parser) parseSelect(q *Query) error {
	t, ok := p.next()
	if !ok || !t.isKeyword("SELECT") {
		if ok && (t.isKeyword("ASK") || t.isKeyword("CONSTRUCT") || t.isKeyword("DESCRIBE")) {
			return p.unsupported(fmt.Sprintf("%s queries are not supported", strings.ToUpper(t.value)))
		}
		return p.malformed("query must start with SELECT after any PREFIX declarations")
	}

	if t, ok := p.peek(); ok && t.isKeyword("DISTINCT") {
		q.Distinct = true
		p.pos++
	}

	for {
		t, ok := p.peek()
		if !ok {
			return p.malformed("SELECT clause not followed by a WHERE block")
		}
		switch {
		case t.kind == tokVar:
			q.Vars = append(q.Vars, t.value)
			p.pos++
		case t.isPunct("*"):
			if len(q.Vars) > 0 {
				return p.malformed("cannot mix * with named variables")
			}
			p.pos++
			return nil
		default:
			if len(q.Vars) == 0 {
				return p.malformed("SELECT clause declares no variables")
			}
			return nil
		}
	}
}

// parseWhere consumes the WHERE group graph pattern
func (p *parser) parseWhere(q *Query) error {
	if t, ok := p.peek(); ok && t.isKeyword("WHERE") {
		p.pos++
	}
	t, ok := p.next()
	if !ok || !t.isPunct("{") {
		return p.malformed("missing { after WHERE")
	}
	return p.parseGroup(q)
}

// parseGroup consumes pattern statements until the closing brace
func (p *parser) parseGroup(q *Query) error {
	for {
		t, ok := p.peek()
		if !ok {
			return p.malformed("unterminated group pattern")
		}

		switch {
		case t.isPunct("}"):
			p.pos++
			return nil

		case t.isPunct("."):
			p.pos++

		case t.isKeyword("VALUES"):
			if q.Values != nil {
				return p.unsupported("multiple VALUES blocks")
			}
			p.pos++
			values, err := p.parseValues()
			if err != nil {
				return err
			}
			q.Values = values

		case t.isKeyword("BIND"):
			if q.Bind != nil {
				return p.unsupported("multiple BIND statements")
			}
			p.pos++
			bind, err := p.parseBind()
			if err != nil {
				return err
			}
			q.Bind = bind

		case t.isKeyword("SERVICE"):
			if q.Service != nil {
				return p.unsupported("multiple SERVICE blocks")
			}
			p.pos++
			service, err := p.parseService()
			if err != nil {
				return err
			}
			q.Service = service

		case t.isKeyword("FILTER") || t.isKeyword("OPTIONAL") || t.isKeyword("GRAPH") ||
			t.isKeyword("UNION") || t.isKeyword("MINUS"):
			return p.unsupported(fmt.Sprintf("%s is not supported", strings.ToUpper(t.value)))

		default:
			triple, err := p.parseTriple()
			if err != nil {
				return err
			}
			q.Triples = append(q.Triples, triple)
		}
	}
}

// parseValues consumes ?var { <iri> ... } after the VALUES keyword
func (p *parser) parseValues() (*ValuesClause, error) {
	v, ok := p.next()
	if !ok || v.kind != tokVar {
		return nil, p.malformed("VALUES requires a variable")
	}
	if t, ok := p.next(); !ok || !t.isPunct("{") {
		return nil, p.malformed("VALUES requires a { ... } block")
	}

	values := &ValuesClause{Var: v.value}
	for {
		t, ok := p.next()
		if !ok {
			return nil, p.malformed("unterminated VALUES block")
		}
		if t.isPunct("}") {
			break
		}
		if t.kind != tokIRI {
			return nil, p.unsupported("VALUES entries must be IRIs")
		}
		values.IRIs = append(values.IRIs, t.value)
	}
	if len(values.IRIs) == 0 {
		return nil, p.malformed("empty VALUES block")
	}
	return values, nil
}

// parseBind consumes ("literal" AS ?var) after the BIND keyword
func (p *parser) parseBind() (*BindClause, error) {
	if t, ok := p.next(); !ok || !t.isPunct("(") {
		return nil, p.malformed("BIND requires parentheses")
	}
	lit, ok := p.next()
	if !ok || lit.kind != tokLiteral {
		return nil, p.unsupported("only literal BIND expressions are supported")
	}
	if t, ok := p.next(); !ok || !t.isKeyword("AS") {
		return nil, p.malformed("BIND missing AS")
	}
	v, ok := p.next()
	if !ok || v.kind != tokVar {
		return nil, p.malformed("BIND missing target variable")
	}
	if t, ok := p.next(); !ok || !t.isPunct(")") {
		return nil, p.malformed("BIND missing closing parenthesis")
	}
	return &BindClause{Value: lit.value, Var: v.value}, nil
}

// parseService consumes [SILENT] <endpoint> { triples } after SERVICE
func (p *parser) parseService() (*ServiceClause, error) {
	t, ok := p.next()
	if !ok {
		return nil, p.malformed("SERVICE missing endpoint")
	}
	if t.isKeyword("SILENT") {
		t, ok = p.next()
		if !ok {
			return nil, p.malformed("SERVICE missing endpoint")
		}
	}
	if t.kind != tokIRI {
		return nil, p.unsupported("SERVICE endpoint must be a concrete IRI")
	}
	service := &ServiceClause{Endpoint: t.value}

	if t, ok := p.next(); !ok || !t.isPunct("{") {
		return nil, p.malformed("SERVICE missing { ... } block")
	}
	for {
		t, ok := p.peek()
		if !ok {
			return nil, p.malformed("unterminated SERVICE block")
		}
		if t.isPunct("}") {
			p.pos++
			break
		}
		if t.isPunct(".") {
			p.pos++
			continue
		}
		triple, err := p.parseTriple()
		if err != nil {
			return nil, err
		}
		service.Pattern = append(service.Pattern, triple)
	}
	if len(service.Pattern) == 0 {
		return nil, p.malformed("empty SERVICE block")
	}
	return service, nil
}

// parseTriple consumes subject predicate object
func (p *parser) parseTriple() (Triple, error) {
	subject, err := p.parseTerm(false)
	if err != nil {
		return Triple{}, err
	}
	predicate, err := p.parseTerm(true)
	if err != nil {
		return Triple{}, err
	}
	object, err := p.parseTerm(false)
	if err != nil {
		return Triple{}, err
	}
	return Triple{Subject: subject, Predicate: predicate, Object: object}, nil
}

// parseTerm consumes one term. In predicate position the keyword "a" expands
// to rdf:type; prefixed names resolve through the query's PREFIX declarations.
func (p *parser) parseTerm(predicate bool) (Term, error) {
	t, ok := p.next()
	if !ok {
		return Term{}, p.malformed("incomplete triple pattern")
	}

	switch t.kind {
	case tokIRI:
		return IRI(t.value), nil
	case tokVar:
		return Var(t.value), nil
	case tokLiteral:
		return Literal(t.value), nil
	case tokWord:
		if predicate && t.value == "a" {
			return IRI(vocabulary.RDFType), nil
		}
		return p.resolvePrefixed(t.value)
	default:
		return Term{}, p.malformed(fmt.Sprintf("unexpected token %q in triple pattern", t.value))
	}
}

// resolvePrefixed expands a prefixed name like owl:sameAs through the query's
// PREFIX declarations, falling back to the well-known vocabulary prefixes when
// the query declares none. IRI matching stays case-sensitive; an in-query
// declaration shadows the well-known expansion of the same prefix.
func (p *parser) resolvePrefixed(name string) (Term, error) {
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return Term{}, p.malformed(fmt.Sprintf("bare word %q in triple pattern", name))
	}
	base, ok := p.prefixes[prefix]
	if !ok {
		base, ok = vocabulary.WellKnownPrefixes[prefix]
	}
	if !ok {
		return Term{}, p.malformed(fmt.Sprintf("undeclared prefix %q", prefix))
	}
	return IRI(base + local), nil
}

// parseTrailing consumes an optional LIMIT clause and rejects anything else
func (p *parser) parseTrailing(q *Query) error {
	t, ok := p.peek()
	if !ok {
		return nil
	}
	if t.isKeyword("LIMIT") {
		p.pos++
		n, ok := p.next()
		if !ok || n.kind != tokWord {
			return p.malformed("LIMIT missing count")
		}
		limit, err := strconv.Atoi(n.value)
		if err != nil || limit < 0 {
			return p.malformed(fmt.Sprintf("invalid LIMIT %q", n.value))
		}
		q.Limit = limit
		t, ok = p.peek()
		if !ok {
			return nil
		}
	}
	if t.isKeyword("ORDER") || t.isKeyword("GROUP") || t.isKeyword("OFFSET") || t.isKeyword("HAVING") {
		return p.unsupported(fmt.Sprintf("%s is not supported", strings.ToUpper(t.value)))
	}
	return p.malformed(fmt.Sprintf("unexpected trailing token %q", t.value))
}

// classify assigns a shape to the parsed structure or rejects it
func classify(q *Query) error {
	reject := func(detail string) error {
		return errors.WrapInvalid(errors.ErrUnsupportedQuery, "sparql", "Parse", detail)
	}

	// every local triple must use an equivalence predicate we can answer
	for _, triple := range q.Triples {
		if triple.Predicate.IsVar() {
			return reject("variable predicates are not supported")
		}
		if !vocabulary.IsEquivalencePredicate(triple.Predicate.Value) {
			return reject(fmt.Sprintf("predicate <%s> is not served by this endpoint", triple.Predicate.Value))
		}
	}

	switch {
	case q.Bind != nil:
		if len(q.Triples) > 0 || q.Values != nil || q.Service != nil {
			return reject("BIND cannot be combined with other patterns")
		}
		q.Shape = ShapeProbe
		return nil

	case q.Service != nil:
		if q.Values != nil {
			return reject("VALUES cannot be combined with SERVICE")
		}
		if len(q.Triples) != 1 {
			return reject("federated queries require exactly one local triple")
		}
		if !oneSideBound(q.Triples[0]) {
			return reject("the local triple of a federated query needs one bound side")
		}
		q.Shape = ShapeFederated
		return nil

	case q.Values != nil:
		if len(q.Triples) != 1 {
			return reject("VALUES requires exactly one triple pattern")
		}
		if !tripleUsesVar(q.Triples[0], q.Values.Var) {
			return reject("VALUES variable does not appear in the triple pattern")
		}
		q.Shape = ShapeValues
		return nil

	case len(q.Triples) == 1:
		if !oneSideBound(q.Triples[0]) {
			return reject("triple pattern needs exactly one bound side")
		}
		q.Shape = ShapeLookup
		return nil

	case len(q.Triples) == 2:
		if !isJoinPair(q.Triples[0], q.Triples[1]) && !isJoinPair(q.Triples[1], q.Triples[0]) {
			return reject("triple patterns do not form a supported join")
		}
		q.Shape = ShapeJoin
		return nil

	case len(q.Triples) == 0:
		return errors.WrapInvalid(errors.ErrMalformedQuery, "sparql", "Parse", "empty WHERE block")

	default:
		return reject("too many triple patterns")
	}
}

// oneSideBound reports whether exactly one of subject/object is a concrete
// IRI and the other a variable
func oneSideBound(t Triple) bool {
	if t.Subject.Kind == KindIRI && t.Object.IsVar() {
		return true
	}
	return t.Subject.IsVar() && t.Object.Kind == KindIRI
}

// tripleUsesVar reports whether the variable appears as subject or object,
// with the other side also a variable
func tripleUsesVar(t Triple, name string) bool {
	if t.Subject.IsVar() && t.Subject.Value == name {
		return t.Object.IsVar()
	}
	if t.Object.IsVar() && t.Object.Value == name {
		return t.Subject.IsVar()
	}
	return false
}

// isJoinPair reports whether seed has one bound side and joined is a
// var-to-var triple sharing seed's variable
func isJoinPair(seed, joined Triple) bool {
	if !oneSideBound(seed) {
		return false
	}
	seedVar := seed.Object
	if seed.Subject.IsVar() {
		seedVar = seed.Subject
	}
	if !joined.Subject.IsVar() || !joined.Object.IsVar() {
		return false
	}
	return joined.Subject.Value == seedVar.Value || joined.Object.Value == seedVar.Value
}
