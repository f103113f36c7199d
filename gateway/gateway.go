// Package gateway exposes the mapping service over the SPARQL protocol.
// Each request is stateless: parse, evaluate against the immutable prefix
// registry, serialize into the negotiated format.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vemonet/curies/errors"
	"github.com/vemonet/curies/graph"
	"github.com/vemonet/curies/health"
	"github.com/vemonet/curies/metric"
	"github.com/vemonet/curies/results"
	"github.com/vemonet/curies/sparql"
)

// Config holds the SPARQL endpoint settings
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxQueryBytes   int64
	CORSOrigins     []string
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "addr is required")
	}
	if c.MaxQueryBytes <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max query size must be positive")
	}
	return nil
}

// DefaultConfig returns the gateway defaults
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxQueryBytes:   1 << 20,
		CORSOrigins:     []string{"*"},
	}
}

// Gateway handles SPARQL protocol requests against the sameAs graph
type Gateway struct {
	config  Config
	graph   *graph.Graph
	monitor *health.Monitor
	metrics *metric.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Gateway
type Option func(*Gateway)

// WithHealthMonitor wires the /health endpoint to a monitor
func WithHealthMonitor(monitor *health.Monitor) Option {
	return func(g *Gateway) { g.monitor = monitor }
}

// WithMetrics enables Prometheus instrumentation of request handling
func WithMetrics(metrics *metric.Metrics) Option {
	return func(g *Gateway) { g.metrics = metrics }
}

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// New creates a gateway over the sameAs graph
func New(config Config, g *graph.Graph, opts ...Option) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Gateway", "New",
			"graph is required")
	}

	gw := &Gateway{
		config: config,
		graph:  g,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(gw)
	}
	return gw, nil
}

// RegisterHTTPHandlers attaches the gateway routes to the mux
func (g *Gateway) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/sparql", g.handleSPARQL)
	mux.HandleFunc("/health", g.handleHealth)
}

// Start runs the HTTP server until it stops. Call Stop to shut down.
func (g *Gateway) Start() error {
	mux := http.NewServeMux()
	g.RegisterHTTPHandlers(mux)

	g.mu.Lock()
	if g.server != nil {
		g.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server already running"),
			"Gateway", "Start", "sparql endpoint")
	}
	g.server = &http.Server{
		Addr:              g.config.Addr,
		Handler:           mux,
		ReadTimeout:       g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := g.server
	g.mu.Unlock()

	g.logger.Info("SPARQL endpoint listening", "addr", g.config.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapTransient(err, "Gateway", "Start", "sparql listener")
	}
	return nil
}

// Stop shuts the HTTP server down gracefully
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	server := g.server
	g.server = nil
	g.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Gateway", "Stop", "sparql shutdown")
	}
	return nil
}

// handleSPARQL drives a request through the per-request state machine:
// received, parsed, matched, answered, serialized, sent. Any stage can fall
// through to the errored terminal state.
func (g *Gateway) handleSPARQL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := getOrGenerateRequestID(r)
	w.Header().Set("X-Request-ID", requestID)

	g.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		g.writeError(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method), requestID)
		return
	}

	// negotiate before doing any work so unacceptable requests fail fast
	format, err := results.Negotiate(r.Header.Get("Accept"))
	if err != nil {
		g.recordQuery("none", "not_acceptable")
		g.writeError(w, http.StatusNotAcceptable,
			"no supported result format in Accept header", requestID)
		return
	}

	queryText, err := g.extractQuery(r)
	if err != nil {
		g.recordQuery("none", "bad_request")
		g.writeError(w, http.StatusBadRequest, g.sanitizeError(err), requestID)
		return
	}

	query, err := sparql.Parse(queryText)
	if err != nil {
		g.recordQuery("none", classifyParseFailure(err))
		g.writeError(w, http.StatusBadRequest, g.sanitizeError(err), requestID)
		return
	}
	shape := query.Shape.String()

	result, err := g.graph.Evaluate(r.Context(), query)
	if err != nil {
		g.recordQuery(shape, "error")
		g.logger.Warn("Query evaluation failed",
			"request_id", requestID, "shape", shape, "error", err)
		g.writeError(w, g.mapErrorToHTTPStatus(err), g.sanitizeError(err), requestID)
		return
	}

	payload, err := results.Serialize(result, format)
	if err != nil {
		g.recordQuery(shape, "error")
		g.writeError(w, http.StatusInternalServerError, "serialization failed", requestID)
		return
	}

	g.recordQuery(shape, "ok")
	if g.metrics != nil {
		g.metrics.ObserveQueryDuration(shape, time.Since(start).Seconds())
		g.metrics.RecordResponse(string(format))
	}
	g.logger.Debug("Query answered",
		"request_id", requestID, "shape", shape,
		"bindings", len(result.Bindings), "format", string(format))

	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// extractQuery pulls the SPARQL query from the request: the query parameter
// on GET, a form field or a raw application/sparql-query body on POST
func (g *Gateway) extractQuery(r *http.Request) (string, error) {
	if r.Method == http.MethodGet {
		query := r.URL.Query().Get("query")
		if query == "" {
			return "", errors.WrapInvalid(errors.ErrMalformedQuery, "Gateway", "extractQuery",
				"missing query parameter")
		}
		return query, nil
	}

	defer r.Body.Close()
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/sparql-query") {
		body, err := io.ReadAll(io.LimitReader(r.Body, g.config.MaxQueryBytes+1))
		if err != nil {
			return "", errors.WrapInvalid(err, "Gateway", "extractQuery", "read body")
		}
		if int64(len(body)) > g.config.MaxQueryBytes {
			return "", errors.WrapInvalid(errors.ErrMalformedQuery, "Gateway", "extractQuery",
				fmt.Sprintf("query exceeds maximum size of %d bytes", g.config.MaxQueryBytes))
		}
		return string(body), nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, g.config.MaxQueryBytes)
	if err := r.ParseForm(); err != nil {
		return "", errors.WrapInvalid(err, "Gateway", "extractQuery", "parse form")
	}
	query := r.PostFormValue("query")
	if query == "" {
		query = r.URL.Query().Get("query")
	}
	if query == "" {
		return "", errors.WrapInvalid(errors.ErrMalformedQuery, "Gateway", "extractQuery",
			"missing query parameter")
	}
	return query, nil
}

// handleHealth serves the aggregated health status as JSON
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	var status health.Status
	if g.monitor != nil {
		status = g.monitor.Check(r.Context())
	} else {
		status = health.NewHealthy("curies-sparql", "service is running")
	}

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// applyCORS applies CORS headers when the origin is allowed
func (g *Gateway) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	allowed := false
	for _, allowedOrigin := range g.config.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// mapErrorToHTTPStatus maps classified errors to HTTP status codes
func (g *Gateway) mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.Is(err, errors.ErrNotAcceptable):
		return http.StatusNotAcceptable
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrEndpointRejected):
		return http.StatusBadGateway
	case errors.IsTransient(err):
		if errors.Is(err, errors.ErrRequestTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError returns a caller-safe message. Parse and shape errors carry
// enough detail to act on; everything else is reduced to its class.
func (g *Gateway) sanitizeError(err error) string {
	switch {
	case err == nil:
		return "internal server error"
	case errors.Is(err, errors.ErrUnsupportedQuery):
		return "unsupported query: only sameAs lookup, VALUES, join and SERVICE shapes are answered"
	case errors.Is(err, errors.ErrMalformedQuery):
		return "malformed query"
	case errors.IsInvalid(err):
		return "invalid request"
	case errors.Is(err, errors.ErrEndpointRejected):
		return "federated endpoint rejected the query"
	case errors.IsTransient(err):
		if errors.Is(err, errors.ErrRequestTimeout) {
			return "federated request timed out"
		}
		return "federated endpoint unavailable"
	default:
		return "internal server error"
	}
}

// writeError sends a JSON error body with the request ID for correlation
func (g *Gateway) writeError(w http.ResponseWriter, code int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":      message,
		"request_id": requestID,
	})
}

func (g *Gateway) recordQuery(shape, status string) {
	if g.metrics != nil {
		g.metrics.RecordQuery(shape, status)
	}
}

// classifyParseFailure distinguishes the two 400 flavors for metrics
func classifyParseFailure(err error) string {
	if errors.Is(err, errors.ErrUnsupportedQuery) {
		return "unsupported"
	}
	return "malformed"
}

// getOrGenerateRequestID extracts the request ID from the headers or
// generates a new one for correlation across the federation chain
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}
