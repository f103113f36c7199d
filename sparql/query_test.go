package sparql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/vocabulary"
)

const owlPrefix = "PREFIX owl: <http://www.w3.org/2002/07/owl#>\n"

func TestParseLookup(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{
			name: "subject bound with prefixed predicate",
			query: owlPrefix + `SELECT ?o WHERE {
				<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?o .
			}`,
		},
		{
			name: "full predicate IRI without prefix declaration",
			query: `SELECT ?o WHERE {
				<http://purl.obolibrary.org/obo/CHEBI_24867> <http://www.w3.org/2002/07/owl#sameAs> ?o
			}`,
		},
		{
			name:  "whitespace insensitive",
			query: owlPrefix + `SELECT ?o WHERE{<http://purl.obolibrary.org/obo/CHEBI_24867>   owl:sameAs ?o.}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, ShapeLookup, q.Shape)
			require.Len(t, q.Triples, 1)
			assert.Equal(t, IRI("http://purl.obolibrary.org/obo/CHEBI_24867"), q.Triples[0].Subject)
			assert.Equal(t, IRI(vocabulary.SameAs), q.Triples[0].Predicate)
			assert.Equal(t, Var("o"), q.Triples[0].Object)
		})
	}
}

func TestParseLookupObjectBound(t *testing.T) {
	q, err := Parse(owlPrefix + `SELECT ?s WHERE { ?s owl:sameAs <https://bioregistry.io/chebi:24867> . }`)
	require.NoError(t, err)
	assert.Equal(t, ShapeLookup, q.Shape)
	assert.Equal(t, Var("s"), q.Triples[0].Subject)
	assert.Equal(t, IRI("https://bioregistry.io/chebi:24867"), q.Triples[0].Object)
}

func TestParseValues(t *testing.T) {
	q, err := Parse(owlPrefix + `SELECT DISTINCT ?s ?o WHERE {
		VALUES ?s { <http://purl.obolibrary.org/obo/CHEBI_24867> <http://purl.obolibrary.org/obo/CHEBI_24868> } .
		?s owl:sameAs ?o .
	}`)
	require.NoError(t, err)

	assert.Equal(t, ShapeValues, q.Shape)
	assert.True(t, q.Distinct)
	assert.Equal(t, []string{"s", "o"}, q.Vars)
	require.NotNil(t, q.Values)
	assert.Equal(t, "s", q.Values.Var)
	assert.Equal(t, []string{
		"http://purl.obolibrary.org/obo/CHEBI_24867",
		"http://purl.obolibrary.org/obo/CHEBI_24868",
	}, q.Values.IRIs)
}

func TestParseJoin(t *testing.T) {
	// the body triplestores forward when federating into this service
	q, err := Parse(owlPrefix + `SELECT DISTINCT ?s ?o WHERE {
		<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?o .
		?s owl:sameAs ?o .
	}`)
	require.NoError(t, err)
	assert.Equal(t, ShapeJoin, q.Shape)
	require.Len(t, q.Triples, 2)
}

func TestParseFederated(t *testing.T) {
	q, err := Parse(owlPrefix + `SELECT ?s ?o WHERE {
		<https://identifiers.org/uniprot/P07862> owl:sameAs ?s .
		SERVICE <http://virtuoso:8890/sparql> {
			?s ?p ?o .
		}
	}`)
	require.NoError(t, err)

	assert.Equal(t, ShapeFederated, q.Shape)
	require.NotNil(t, q.Service)
	assert.Equal(t, "http://virtuoso:8890/sparql", q.Service.Endpoint)
	require.Len(t, q.Service.Pattern, 1)
	assert.Equal(t, Var("p"), q.Service.Pattern[0].Predicate)
}

func TestParseFederatedTypedInnerPattern(t *testing.T) {
	q, err := Parse(owlPrefix + `PREFIX bl: <https://w3id.org/biolink/vocab/>
	SELECT ?s ?o WHERE {
		<https://www.ensembl.org/id/ENSG00000006453> owl:sameAs ?s .
		SERVICE <http://localhost:9999/blazegraph/namespace/kb/sparql> {
			?s bl:category ?o .
		}
	}`)
	require.NoError(t, err)

	assert.Equal(t, ShapeFederated, q.Shape)
	assert.Equal(t, IRI("https://w3id.org/biolink/vocab/category"), q.Service.Pattern[0].Predicate)
}

func TestParseServiceKeywordA(t *testing.T) {
	q, err := Parse(owlPrefix + `SELECT ?s ?o WHERE {
		<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?s .
		SERVICE <http://fuseki:3030/mapping> { ?s a ?o . }
	}`)
	require.NoError(t, err)
	assert.Equal(t, IRI(vocabulary.RDFType), q.Service.Pattern[0].Predicate)
}

func TestParseProbe(t *testing.T) {
	q, err := Parse(`SELECT ?service WHERE { BIND("available" AS ?service) }`)
	require.NoError(t, err)

	assert.Equal(t, ShapeProbe, q.Shape)
	require.NotNil(t, q.Bind)
	assert.Equal(t, "available", q.Bind.Value)
	assert.Equal(t, "service", q.Bind.Var)
}

func TestParseLimit(t *testing.T) {
	q, err := Parse(owlPrefix + `SELECT ?o WHERE {
		<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?o .
	} LIMIT 5`)
	require.NoError(t, err)
	assert.Equal(t, 5, q.Limit)
}

func TestParseComments(t *testing.T) {
	q, err := Parse(owlPrefix + `SELECT ?o WHERE {
		# resolve equivalents
		<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?o .
	}`)
	require.NoError(t, err)
	assert.Equal(t, ShapeLookup, q.Shape)
}

func TestParseUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{
			name: "FILTER",
			query: owlPrefix + `SELECT ?o WHERE {
				<http://x.example/1> owl:sameAs ?o .
				FILTER(?o != <http://x.example/2>)
			}`,
		},
		{
			name:  "OPTIONAL",
			query: owlPrefix + `SELECT ?o WHERE { OPTIONAL { ?s owl:sameAs ?o } }`,
		},
		{
			name:  "ASK form",
			query: `ASK { ?s ?p ?o }`,
		},
		{
			name:  "non-equivalence predicate",
			query: `SELECT ?o WHERE { <http://x.example/1> <http://x.example/related> ?o . }`,
		},
		{
			name:  "variable predicate outside SERVICE",
			query: `SELECT ?o WHERE { <http://x.example/1> ?p ?o . }`,
		},
		{
			name:  "both sides unbound single triple",
			query: owlPrefix + `SELECT ?s ?o WHERE { ?s owl:sameAs ?o . }`,
		},
		{
			name:  "both sides bound",
			query: owlPrefix + `SELECT ?s WHERE { <http://x.example/1> owl:sameAs <http://x.example/2> . }`,
		},
		{
			name: "three unrelated triples",
			query: owlPrefix + `SELECT ?o WHERE {
				<http://x.example/1> owl:sameAs ?a .
				<http://x.example/2> owl:sameAs ?b .
				<http://x.example/3> owl:sameAs ?c .
			}`,
		},
		{
			name:  "VALUES over literals",
			query: owlPrefix + `SELECT ?o WHERE { VALUES ?s { "x" } . ?s owl:sameAs ?o . }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrUnsupportedQuery), "got: %v", err)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"no select", "WHERE { ?s ?p ?o }"},
		{"unterminated IRI", `SELECT ?o WHERE { <http://x.example/1 owl:sameAs ?o }`},
		{"unterminated group", owlPrefix + `SELECT ?o WHERE { <http://x.example/1> owl:sameAs ?o .`},
		{"undeclared prefix", `SELECT ?o WHERE { <http://x.example/1> ex:related ?o . }`},
		{"empty where", `SELECT ?o WHERE { }`},
		{"trailing garbage", owlPrefix + `SELECT ?o WHERE { <http://x.example/1> owl:sameAs ?o } extra`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedQuery), "got: %v", err)
		})
	}
}

func TestParseWellKnownPrefixFallback(t *testing.T) {
	// owl:sameAs resolves without a PREFIX declaration
	q, err := Parse(`SELECT ?o WHERE { <http://x.example/1> owl:sameAs ?o . }`)
	require.NoError(t, err)
	assert.Equal(t, ShapeLookup, q.Shape)
	assert.Equal(t, IRI(vocabulary.SameAs), q.Triples[0].Predicate)
}

func TestParseDeclaredPrefixShadowsWellKnown(t *testing.T) {
	_, err := Parse(`PREFIX owl: <http://x.example/fake#>
	SELECT ?o WHERE { <http://x.example/1> owl:sameAs ?o . }`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedQuery), "got: %v", err)
}

func TestParseIRIsCaseSensitive(t *testing.T) {
	// predicate IRIs never match case-insensitively
	_, err := Parse(`SELECT ?o WHERE {
		<http://x.example/1> <HTTP://WWW.W3.ORG/2002/07/OWL#SAMEAS> ?o .
	}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedQuery))
}
