// Package results renders SPARQL answer bindings into the standard wire
// serializations (JSON, XML, CSV, TSV), parses any of those formats back into
// canonical binding tuples, and performs Accept-header content negotiation.
package results

import "sort"

// Term types used in SPARQL result serializations
const (
	TermURI     = "uri"
	TermLiteral = "literal"
)

// Term is a single bound value: a URI or a literal.
type Term struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// URI constructs a URI term
func URI(value string) Term {
	return Term{Type: TermURI, Value: value}
}

// Literal constructs a literal term
func Literal(value string) Term {
	return Term{Type: TermLiteral, Value: value}
}

// Binding is one solution row, mapping variable names to bound terms.
type Binding map[string]Term

// Result is an ordered set of variable names plus the solution rows bound
// over them.
type Result struct {
	Vars     []string
	Bindings []Binding
}

// NewResult creates an empty result over the given variables
func NewResult(vars ...string) *Result {
	return &Result{Vars: vars}
}

// Add appends a solution row
func (r *Result) Add(b Binding) {
	r.Bindings = append(r.Bindings, b)
}

// Distinct removes duplicate rows in place, preserving first-seen order.
// The supported query shapes all carry SPARQL DISTINCT semantics.
func (r *Result) Distinct() {
	seen := make(map[string]bool, len(r.Bindings))
	out := r.Bindings[:0]
	for _, b := range r.Bindings {
		key := b.key(r.Vars)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	r.Bindings = out
}

// key builds a canonical row identity over the declared variables
func (b Binding) key(vars []string) string {
	key := ""
	for _, v := range vars {
		term := b[v]
		key += v + "\x1f" + term.Type + "\x1f" + term.Value + "\x1e"
	}
	return key
}

// Pair is the canonical (subject, object) comparison unit used by tests and
// by the federation bridging logic.
type Pair struct {
	Subject string
	Object  string
}

// Pairs reduces two-variable bindings to a deduplicated set of (subject,
// object) string pairs. The "s" and "o" variables are used when declared,
// otherwise the first two declared variables.
func (r *Result) Pairs() map[Pair]struct{} {
	subjectVar, objectVar := r.pairVars()
	pairs := make(map[Pair]struct{}, len(r.Bindings))
	if subjectVar == "" || objectVar == "" {
		return pairs
	}
	for _, b := range r.Bindings {
		s, sok := b[subjectVar]
		o, ook := b[objectVar]
		if !sok || !ook {
			continue
		}
		pairs[Pair{Subject: s.Value, Object: o.Value}] = struct{}{}
	}
	return pairs
}

// pairVars picks the subject and object variables for pair reduction
func (r *Result) pairVars() (string, string) {
	hasS, hasO := false, false
	for _, v := range r.Vars {
		switch v {
		case "s":
			hasS = true
		case "o":
			hasO = true
		}
	}
	if hasS && hasO {
		return "s", "o"
	}
	if len(r.Vars) >= 2 {
		return r.Vars[0], r.Vars[1]
	}
	return "", ""
}

// Equal reports whether two results hold the same binding set over the same
// variables, ignoring row order.
func (r *Result) Equal(other *Result) bool {
	if other == nil || len(r.Vars) != len(other.Vars) || len(r.Bindings) != len(other.Bindings) {
		return false
	}
	for i, v := range r.Vars {
		if other.Vars[i] != v {
			return false
		}
	}
	return r.sortedKeys() == other.sortedKeys()
}

func (r *Result) sortedKeys() string {
	keys := make([]string, 0, len(r.Bindings))
	for _, b := range r.Bindings {
		keys = append(keys, b.key(r.Vars))
	}
	sort.Strings(keys)
	joined := ""
	for _, k := range keys {
		joined += k + "\x1d"
	}
	return joined
}
