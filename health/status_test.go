package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	healthy := NewHealthy("registry", "1500 prefixes loaded")
	assert.True(t, healthy.IsHealthy())
	assert.True(t, healthy.Healthy)
	assert.Equal(t, "healthy", healthy.Status)

	unhealthy := NewUnhealthy("federation", "endpoint down")
	assert.True(t, unhealthy.IsUnhealthy())
	assert.False(t, unhealthy.Healthy)

	degraded := NewDegraded("federation", "1 of 3 endpoints down")
	assert.True(t, degraded.IsDegraded())
	assert.False(t, degraded.Healthy)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{
			name: "all healthy",
			subs: []Status{NewHealthy("a", "ok"), NewHealthy("b", "ok")},
			want: "healthy",
		},
		{
			name: "one degraded",
			subs: []Status{NewHealthy("a", "ok"), NewDegraded("b", "slow")},
			want: "degraded",
		},
		{
			name: "unhealthy wins over degraded",
			subs: []Status{NewDegraded("a", "slow"), NewUnhealthy("b", "down")},
			want: "unhealthy",
		},
		{
			name: "no sub-components",
			subs: nil,
			want: "healthy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("service", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		excludes string
	}{
		{
			name:     "urls redacted",
			input:    "failed to reach https://graphdb.internal:7200/repositories/test",
			contains: "[URL]",
			excludes: "graphdb.internal",
		},
		{
			name:     "paths redacted",
			input:    "cannot read /etc/curies/records.yaml",
			contains: "[PATH]",
			excludes: "/etc/curies",
		},
		{
			name:     "ip addresses redacted",
			input:    "dial tcp 10.0.0.12: connection refused",
			contains: "[IP]",
			excludes: "10.0.0.12",
		},
		{
			name:     "credentials redacted",
			input:    "auth failed: token=abc123secret",
			contains: "[REDACTED]",
			excludes: "abc123secret",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewUnhealthy("c", tt.input).Message
			assert.Contains(t, got, tt.contains)
			assert.NotContains(t, got, tt.excludes)
		})
	}
}

func TestMonitorAggregatesCheckers(t *testing.T) {
	monitor := NewMonitor("curies-sparql", time.Second)
	monitor.Register(CheckerFunc{
		ComponentName: "registry",
		Fn: func(context.Context) Status {
			return NewHealthy("registry", "ok").WithMetrics(&Metrics{RegisteredPrefixes: 3})
		},
	})
	monitor.Register(CheckerFunc{
		ComponentName: "federation",
		Fn: func(context.Context) Status {
			return NewDegraded("federation", "1 of 2 endpoints unreachable")
		},
	})

	status := monitor.Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	require.Len(t, status.SubStatuses, 2)
	require.NotNil(t, status.Metrics)
	assert.GreaterOrEqual(t, status.Metrics.Uptime, time.Duration(0))
}

func TestMonitorRecoversPanickingChecker(t *testing.T) {
	monitor := NewMonitor("curies-sparql", time.Second)
	monitor.Register(CheckerFunc{
		ComponentName: "flaky",
		Fn:            func(context.Context) Status { panic("boom") },
	})

	status := monitor.Check(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	require.Len(t, status.SubStatuses, 1)
	assert.Contains(t, status.SubStatuses[0].Message, "panicked")
}

func TestMonitorNoCheckersIsHealthy(t *testing.T) {
	monitor := NewMonitor("curies-sparql", time.Second)
	assert.True(t, monitor.Check(context.Background()).IsHealthy())
}
