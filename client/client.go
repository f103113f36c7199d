// Package client talks the SPARQL protocol to remote endpoints. It is used
// for outbound federation and for probing endpoint availability.
package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/results"
)

// DefaultAccept is sent on outbound queries. JSON is preferred, the other
// result formats are accepted at lower quality so older stores still answer.
const DefaultAccept = "application/sparql-results+json, " +
	"application/sparql-results+xml;q=0.9, text/csv;q=0.5, text/tab-separated-values;q=0.5"

// probeQuery asks the endpoint to echo a literal. Any endpoint that answers
// it with one binding is considered available.
const probeQuery = `SELECT ?service WHERE { BIND("available" AS ?service) }`

const (
	defaultTimeout      = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
	maxResponseBytes    = 16 << 20
	errorBodyBytes      = 1 << 10
)

// Client executes SPARQL queries over HTTP. Safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	probeTimeout time.Duration
	userAgent    string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithProbeTimeout sets the timeout used by availability probes
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) { c.probeTimeout = d }
}

// WithUserAgent sets the User-Agent header on outbound requests
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a SPARQL protocol client
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		probeTimeout: defaultProbeTimeout,
		userAgent:    "curies-sparql/0.1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts a query to the endpoint and returns the raw response body and
// its Content-Type. Transport failures come back transient; non-2xx responses
// come back as an HTTPStatusError carrying the status and a body excerpt.
func (c *Client) Send(ctx context.Context, endpoint, query, accept string) ([]byte, string, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", errors.WrapInvalid(err, "Client", "Send", "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, "", errors.WrapTransient(errors.ErrRequestTimeout, "Client", "Send", endpoint)
		}
		return nil, "", errors.WrapTransient(errors.ErrEndpointUnreachable, "Client", "Send", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		return nil, "", errors.WrapTransient(&errors.HTTPStatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(excerpt),
		}, "Client", "Send", "query rejected")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", errors.WrapTransient(err, "Client", "Send", "read response")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Records sends a query with the given Accept header and deserializes the
// response into result bindings
func (c *Client) Records(ctx context.Context, endpoint, query, accept string) (*results.Result, error) {
	body, contentType, err := c.Send(ctx, endpoint, query, accept)
	if err != nil {
		return nil, err
	}
	result, err := results.Deserialize(body, contentType)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Records", endpoint)
	}
	return result, nil
}

// Query sends a query with the default Accept header. It satisfies the graph
// package's RemoteQuerier.
func (c *Client) Query(ctx context.Context, endpoint, query string) (*results.Result, error) {
	return c.Records(ctx, endpoint, query, DefaultAccept)
}

// ServiceAvailable probes the endpoint with a trivial BIND query. It reports
// availability rather than failing, so callers can filter endpoint lists.
func (c *Client) ServiceAvailable(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	result, err := c.Query(ctx, endpoint, probeQuery)
	if err != nil {
		return false
	}
	if len(result.Bindings) != 1 {
		return false
	}
	term, ok := result.Bindings[0]["service"]
	return ok && term.Value == "available"
}

// AvailableEndpoints probes the given endpoints concurrently and returns
// the subset that answered, preserving input order.
func (c *Client) AvailableEndpoints(ctx context.Context, endpoints []string) []string {
	available := make([]bool, len(endpoints))
	group, ctx := errgroup.WithContext(ctx)
	for i, endpoint := range endpoints {
		group.Go(func() error {
			available[i] = c.ServiceAvailable(ctx, endpoint)
			return nil
		})
	}
	_ = group.Wait()

	var alive []string
	for i, endpoint := range endpoints {
		if available[i] {
			alive = append(alive, endpoint)
		}
	}
	return alive
}
