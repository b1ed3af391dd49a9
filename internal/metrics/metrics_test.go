package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewManagerRegistersCollectors verifies the manager's metrics are
// gathered from the registry.
func TestNewManagerRegistersCollectors(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	m.CounterSessionsStarted.Inc()
	m.CounterSyntheticSessions.WithLabelValues("sync").Add(2)
	m.CounterRequests.WithLabelValues("GET", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterSessionsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterSyntheticSessions.WithLabelValues("sync")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fittrack_test_sessions_started"])
	assert.True(t, names["fittrack_test_request"])
}

// TestNewRegistryIncludesRuntime verifies Go runtime metrics are registered.
func TestNewRegistryIncludesRuntime(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
