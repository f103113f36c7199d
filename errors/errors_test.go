package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrapHelpers(t *testing.T) {
	base := New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		check func(error) bool
	}{
		{"transient", WrapTransient, IsTransient},
		{"invalid", WrapInvalid, IsInvalid},
		{"fatal", WrapFatal, IsFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Converter", "Compress", "lookup")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.True(t, Is(err, base))
			assert.Contains(t, err.Error(), "Converter.Compress: lookup failed")

			// nil passthrough
			assert.NoError(t, tt.wrap(nil, "c", "m", "a"))
		})
	}
}

func TestClassifyStandardErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"unsupported query is invalid", ErrUnsupportedQuery, ErrorInvalid},
		{"malformed query is invalid", ErrMalformedQuery, ErrorInvalid},
		{"not acceptable is invalid", ErrNotAcceptable, ErrorInvalid},
		{"ambiguous registration is fatal", ErrAmbiguousRegistration, ErrorFatal},
		{"invalid config is fatal", ErrInvalidConfig, ErrorFatal},
		{"unreachable endpoint is transient", ErrEndpointUnreachable, ErrorTransient},
		{"deadline is transient", context.DeadlineExceeded, ErrorTransient},
		{"wrapped unsupported stays invalid", fmt.Errorf("context: %w", ErrUnsupportedQuery), ErrorInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestHTTPStatusError(t *testing.T) {
	err := &HTTPStatusError{Endpoint: "http://example.org/sparql", StatusCode: 400, Body: "bad query"}
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.True(t, Is(err, ErrEndpointRejected))
	assert.False(t, Is(err, ErrEndpointUnreachable))

	var target *HTTPStatusError
	wrapped := Wrap(err, "Client", "Send", "remote query")
	require.True(t, As(wrapped, &target))
	assert.Equal(t, 400, target.StatusCode)
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	base := New("inner")
	err := WrapTransient(base, "Client", "Send", "dial")

	var ce *ClassifiedError
	require.True(t, As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "Client", ce.Component)
	assert.True(t, Is(ce, base))
}
