package sparql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vemonet/curies/vocabulary"
)

func TestBuilderLookup(t *testing.T) {
	query := NewBuilder().
		Prefix("owl", vocabulary.OWLNamespace).
		Select("o").
		Triple(IRI("http://purl.obolibrary.org/obo/CHEBI_24867"), IRI(vocabulary.SameAs), Var("o")).
		String()

	assert.Contains(t, query, "PREFIX owl: <http://www.w3.org/2002/07/owl#>")
	assert.Contains(t, query, "SELECT ?o WHERE {")
	assert.Contains(t, query,
		"<http://purl.obolibrary.org/obo/CHEBI_24867> <http://www.w3.org/2002/07/owl#sameAs> ?o .")

	// built queries parse back into the shape they encode
	parsed, err := Parse(query)
	require.NoError(t, err)
	assert.Equal(t, ShapeLookup, parsed.Shape)
}

func TestBuilderValuesRoundTrip(t *testing.T) {
	query := NewBuilder().
		Select("s", "o").
		Distinct().
		Values("s",
			"http://purl.obolibrary.org/obo/CHEBI_24867",
			"http://purl.obolibrary.org/obo/CHEBI_24868").
		Triple(Var("s"), IRI(vocabulary.SameAs), Var("o")).
		String()

	parsed, err := Parse(query)
	require.NoError(t, err)
	assert.Equal(t, ShapeValues, parsed.Shape)
	assert.True(t, parsed.Distinct)
	require.NotNil(t, parsed.Values)
	assert.Len(t, parsed.Values.IRIs, 2)
}

func TestBuilderService(t *testing.T) {
	query := NewBuilder().
		Select("s", "o").
		Triple(IRI("https://identifiers.org/uniprot/P07862"), IRI(vocabulary.SameAs), Var("s")).
		Service("http://virtuoso:8890/sparql", func(inner *Builder) {
			inner.Triple(Var("s"), Var("p"), Var("o"))
		}).
		String()

	assert.Contains(t, query, "SERVICE <http://virtuoso:8890/sparql> {")

	parsed, err := Parse(query)
	require.NoError(t, err)
	assert.Equal(t, ShapeFederated, parsed.Shape)
	assert.Equal(t, "http://virtuoso:8890/sparql", parsed.Service.Endpoint)
}

func TestBuilderBindProbe(t *testing.T) {
	query := NewBuilder().
		Select("service").
		Bind("available", "service").
		String()

	parsed, err := Parse(query)
	require.NoError(t, err)
	assert.Equal(t, ShapeProbe, parsed.Shape)
	assert.Equal(t, "available", parsed.Bind.Value)
}

func TestBuilderLimitAndStar(t *testing.T) {
	query := NewBuilder().
		Triple(IRI("http://x.example/1"), IRI(vocabulary.SameAs), Var("o")).
		Limit(1).
		String()

	assert.Contains(t, query, "SELECT *")
	assert.Contains(t, query, "LIMIT 1")

	parsed, err := Parse(query)
	require.NoError(t, err)
	assert.Nil(t, parsed.Vars)
	assert.Equal(t, 1, parsed.Limit)
}

func TestBuilderEscapesLiterals(t *testing.T) {
	query := NewBuilder().
		Select("v").
		Bind(`say "hi" \ bye`, "v").
		String()

	assert.Contains(t, query, `BIND("say \"hi\" \\ bye" AS ?v)`)

	parsed, err := Parse(query)
	require.NoError(t, err)
	assert.Equal(t, `say "hi" \ bye`, parsed.Bind.Value)
}
