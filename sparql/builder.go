package sparql

import (
	"fmt"
	"strings"
)

// Builder assembles SPARQL SELECT queries from typed parts, replacing
// string-templated query construction so the supported-shape contract is
// explicit and injection through interpolated terms is impossible.
type Builder struct {
	prefixes []prefixDecl
	vars     []string
	distinct bool
	pattern  []string
	limit    int
}

type prefixDecl struct {
	name string
	iri  string
}

// NewBuilder creates an empty query builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Prefix adds a PREFIX declaration
func (b *Builder) Prefix(name, iri string) *Builder {
	b.prefixes = append(b.prefixes, prefixDecl{name: name, iri: iri})
	return b
}

// Select declares the projected variables (names without the leading ?)
func (b *Builder) Select(vars ...string) *Builder {
	b.vars = append(b.vars, vars...)
	return b
}

// Distinct marks the projection DISTINCT
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Triple appends a triple pattern
func (b *Builder) Triple(subject, predicate, object Term) *Builder {
	b.pattern = append(b.pattern, fmt.Sprintf("%s %s %s .",
		renderTerm(subject), renderTerm(predicate), renderTerm(object)))
	return b
}

// Values appends a VALUES block binding the variable to the given IRIs
func (b *Builder) Values(variable string, iris ...string) *Builder {
	rendered := make([]string, 0, len(iris))
	for _, iri := range iris {
		rendered = append(rendered, renderTerm(IRI(iri)))
	}
	b.pattern = append(b.pattern, fmt.Sprintf("VALUES ?%s { %s } .", variable, strings.Join(rendered, " ")))
	return b
}

// Bind appends a BIND("literal" AS ?var) statement
func (b *Builder) Bind(literal, variable string) *Builder {
	b.pattern = append(b.pattern, fmt.Sprintf("BIND(%s AS ?%s)", renderTerm(Literal(literal)), variable))
	return b
}

// Service wraps a nested pattern in a SERVICE block targeting the endpoint
func (b *Builder) Service(endpoint string, build func(*Builder)) *Builder {
	inner := NewBuilder()
	build(inner)
	b.pattern = append(b.pattern, fmt.Sprintf("SERVICE %s {\n%s\n}",
		renderTerm(IRI(endpoint)), indent(inner.renderPattern())))
	return b
}

// Limit caps the number of solutions
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// String renders the query
func (b *Builder) String() string {
	var sb strings.Builder

	for _, p := range b.prefixes {
		fmt.Fprintf(&sb, "PREFIX %s: <%s>\n", p.name, p.iri)
	}

	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(b.vars) == 0 {
		sb.WriteString("*")
	} else {
		for i, v := range b.vars {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("?" + v)
		}
	}

	sb.WriteString(" WHERE {\n")
	sb.WriteString(indent(b.renderPattern()))
	sb.WriteString("\n}")

	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	return sb.String()
}

// renderPattern joins the accumulated pattern statements
func (b *Builder) renderPattern() string {
	return strings.Join(b.pattern, "\n")
}

// renderTerm serializes one term. Literals are escaped; IRIs and variables
// are emitted verbatim inside their delimiters.
func renderTerm(t Term) string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindVar:
		return "?" + t.Value
	default:
		escaped := strings.ReplaceAll(t.Value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
}

// indent prefixes every line with four spaces
func indent(block string) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
