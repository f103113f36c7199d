package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vemonet/curies/converter"
	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/graph"
	"github.com/vemonet/curies/health"
	"github.com/vemonet/curies/metric"
	"github.com/vemonet/curies/results"
)

const lookupQuery = `PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?s ?o WHERE {
	<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?o .
}`

func newTestGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	conv, err := converter.New([]converter.Record{
		{
			Prefix:            "chebi",
			URIPrefix:         "http://purl.obolibrary.org/obo/CHEBI_",
			URIPrefixSynonyms: []string{"https://bioregistry.io/chebi:"},
		},
	})
	require.NoError(t, err)

	gw, err := New(DefaultConfig(), graph.New(conv), opts...)
	require.NoError(t, err)
	return gw
}

func serve(t *testing.T, gw *Gateway, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	gw.RegisterHTTPHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func getQuery(t *testing.T, gw *Gateway, query, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/sparql?query="+url.QueryEscape(query), nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return serve(t, gw, req)
}

func TestGetLookupReturnsJSONBindings(t *testing.T) {
	gw := newTestGateway(t)
	rec := getQuery(t, gw, lookupQuery, "application/sparql-results+json")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/sparql-results+json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	result, err := results.Deserialize(rec.Body.Bytes(), rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	require.Len(t, result.Bindings, 1)
	assert.Equal(t, results.URI("https://bioregistry.io/chebi:24867"), result.Bindings[0]["o"])
}

func TestPostFormEncodedQuery(t *testing.T) {
	gw := newTestGateway(t)
	form := url.Values{"query": {lookupQuery}}
	req := httptest.NewRequest(http.MethodPost, "/sparql", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/csv")

	rec := serve(t, gw, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "https://bioregistry.io/chebi:24867")
}

func TestPostRawSPARQLBody(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/sparql", strings.NewReader(lookupQuery))
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+xml")

	rec := serve(t, gw, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://bioregistry.io/chebi:24867")
}

func TestValuesQueryYieldsOneBindingPerValue(t *testing.T) {
	gw := newTestGateway(t)
	query := `PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT DISTINCT ?s ?o WHERE {
	VALUES ?s { <http://purl.obolibrary.org/obo/CHEBI_24867> <http://purl.obolibrary.org/obo/CHEBI_24868> } .
	?s owl:sameAs ?o .
}`
	rec := getQuery(t, gw, query, "application/sparql-results+json")
	require.Equal(t, http.StatusOK, rec.Code)

	result, err := results.Deserialize(rec.Body.Bytes(), rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	assert.Len(t, result.Bindings, 2)
}

func TestPlainJSONAcceptIsNotAcceptable(t *testing.T) {
	gw := newTestGateway(t)
	rec := getQuery(t, gw, lookupQuery, "application/json")

	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestEmptyAcceptDefaultsToJSONResults(t *testing.T) {
	gw := newTestGateway(t)
	rec := getQuery(t, gw, lookupQuery, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/sparql-results+json", rec.Header().Get("Content-Type"))
}

func TestUnsupportedQueryShapeIs400NotEmptySuccess(t *testing.T) {
	gw := newTestGateway(t)
	query := `PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?s ?o WHERE {
	?s owl:sameAs ?o .
	FILTER(?o != <http://example.org/x>)
}`
	rec := getQuery(t, gw, query, "application/sparql-results+json")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unsupported query")
	assert.NotEmpty(t, body["request_id"])
}

func TestMalformedQueryIs400(t *testing.T) {
	gw := newTestGateway(t)
	rec := getQuery(t, gw, "SELECT WHERE {", "application/sparql-results+json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingQueryParameterIs400(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/sparql", nil)
	rec := serve(t, gw, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodDelete, "/sparql", nil)
	rec := serve(t, gw, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOversizedRawBodyIsRejected(t *testing.T) {
	gw := newTestGateway(t)
	gw.config.MaxQueryBytes = 64

	req := httptest.NewRequest(http.MethodPost, "/sparql", strings.NewReader(lookupQuery))
	req.Header.Set("Content-Type", "application/sparql-query")
	rec := serve(t, gw, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodOptions, "/sparql", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := serve(t, gw, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/sparql?query="+url.QueryEscape(lookupQuery), nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rec := serve(t, gw, req)

	assert.Equal(t, "upstream-42", rec.Header().Get("X-Request-ID"))
}

func TestHealthEndpoint(t *testing.T) {
	monitor := health.NewMonitor("curies-sparql", 0)
	monitor.Register(health.CheckerFunc{
		ComponentName: "registry",
		Fn: func(context.Context) health.Status {
			return health.NewHealthy("registry", "1 prefix loaded")
		},
	})
	gw := newTestGateway(t, WithHealthMonitor(monitor))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := serve(t, gw, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status health.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	require.Len(t, status.SubStatuses, 1)
}

func TestUnhealthyServiceIs503(t *testing.T) {
	monitor := health.NewMonitor("curies-sparql", 0)
	monitor.Register(health.CheckerFunc{
		ComponentName: "registry",
		Fn: func(context.Context) health.Status {
			return health.NewUnhealthy("registry", "no records loaded")
		},
	})
	gw := newTestGateway(t, WithHealthMonitor(monitor))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := serve(t, gw, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// failingRemote answers every federated sub-query with the configured error
type failingRemote struct {
	err error
}

func (f failingRemote) Query(context.Context, string, string) (*results.Result, error) {
	return nil, f.err
}

func newFederatedGateway(t *testing.T, remote graph.RemoteQuerier) *Gateway {
	t.Helper()
	conv, err := converter.New([]converter.Record{
		{
			Prefix:            "chebi",
			URIPrefix:         "http://purl.obolibrary.org/obo/CHEBI_",
			URIPrefixSynonyms: []string{"https://bioregistry.io/chebi:"},
		},
	})
	require.NoError(t, err)

	gw, err := New(DefaultConfig(), graph.New(conv, graph.WithRemote(remote)))
	require.NoError(t, err)
	return gw
}

const federatedQuery = `PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?s ?o WHERE {
	<http://purl.obolibrary.org/obo/CHEBI_24867> owl:sameAs ?s .
	SERVICE <http://virtuoso:8890/sparql> { ?s ?p ?o . }
}`

func TestRejectedFederatedEndpointIsBadGateway(t *testing.T) {
	remote := failingRemote{err: errors.WrapTransient(&errors.HTTPStatusError{
		Endpoint:   "http://virtuoso:8890/sparql",
		StatusCode: http.StatusBadRequest,
		Body:       "parse error",
	}, "Client", "Send", "post query")}
	gw := newFederatedGateway(t, remote)

	rec := getQuery(t, gw, federatedQuery, "application/sparql-results+json")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "rejected")
}

func TestUnreachableFederatedEndpointIsServiceUnavailable(t *testing.T) {
	remote := failingRemote{err: errors.WrapTransient(
		errors.ErrEndpointUnreachable, "Client", "Send", "dial")}
	gw := newFederatedGateway(t, remote)

	rec := getQuery(t, gw, federatedQuery, "application/sparql-results+json")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unavailable")
}

func TestMetricsAreRecorded(t *testing.T) {
	registry := metric.NewRegistry()
	gw := newTestGateway(t, WithMetrics(registry.Metrics))

	rec := getQuery(t, gw, lookupQuery, "application/sparql-results+json")
	require.Equal(t, http.StatusOK, rec.Code)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["curies_sparql_queries_total"])
	assert.True(t, names["curies_sparql_responses_total"])
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxQueryBytes = 0
	assert.Error(t, cfg.Validate())
}
