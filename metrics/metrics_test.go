package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeddq/agentcore/core"
)

// Interface compliance (compile-time assertions)
var (
	_ Collector = NoOp{}
	_ Collector = (*InMemory)(nil)
	_ Collector = (*PrometheusCollector)(nil)
	_ Collector = Fanout{}
)

func TestInMemory_RecordInvocation(t *testing.T) {
	m := NewInMemory()

	m.RecordInvocation("echo", core.OutcomeSuccess, core.FailureNone, 10*time.Millisecond)
	m.RecordInvocation("echo", core.OutcomeSuccess, core.FailureNone, 30*time.Millisecond)
	m.RecordInvocation("echo", core.OutcomeFailure, core.FailureExhausted, 20*time.Millisecond)
	m.RecordInvocation("echo", core.OutcomeCircuitOpen, core.FailureNone, 0)
	m.RecordInvocation("echo", core.OutcomeTimeout, core.FailureNone, 50*time.Millisecond)

	st, ok := m.Snapshot("echo")
	require.True(t, ok)
	assert.Equal(t, int64(5), st.TotalCalls)
	assert.Equal(t, int64(2), st.SuccessCount)
	assert.Equal(t, int64(1), st.FailureCount)
	assert.Equal(t, int64(1), st.CircuitOpen)
	assert.Equal(t, int64(1), st.Timeouts)
	assert.Equal(t, int64(1), st.Failures[core.FailureExhausted])
	assert.Equal(t, 22*time.Millisecond, st.AverageLatency)
}

func TestInMemory_RecordTransition(t *testing.T) {
	m := NewInMemory()
	m.RecordTransition("echo", "closed", "open")
	m.RecordTransition("echo", "open", "half_open")

	st, ok := m.Snapshot("echo")
	require.True(t, ok)
	assert.Equal(t, int64(2), st.Transitions)
	assert.Equal(t, "half_open", st.LastState)
}

func TestInMemory_SnapshotUnknownTool(t *testing.T) {
	m := NewInMemory()
	_, ok := m.Snapshot("ghost")
	assert.False(t, ok)
	assert.Empty(t, m.Snapshots())
}

func TestFanout_ForwardsToAll(t *testing.T) {
	a, b := NewInMemory(), NewInMemory()
	f := Fanout{a, b}

	f.RecordInvocation("echo", core.OutcomeSuccess, core.FailureNone, time.Millisecond)
	f.RecordTransition("echo", "closed", "open")

	for _, m := range []*InMemory{a, b} {
		st, ok := m.Snapshot("echo")
		require.True(t, ok)
		assert.Equal(t, int64(1), st.SuccessCount)
		assert.Equal(t, int64(1), st.Transitions)
	}
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordInvocation("echo", core.OutcomeSuccess, core.FailureNone, 15*time.Millisecond)
	c.RecordInvocation("echo", core.OutcomeFailure, core.FailureExhausted, 200*time.Millisecond)
	c.RecordTransition("echo", "closed", "open")

	assert.Equal(t, float64(1), promtestutil.ToFloat64(c.invocations.WithLabelValues("echo", "success", "")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(c.invocations.WithLabelValues("echo", "failure", "exhausted")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(c.transitions.WithLabelValues("echo", "closed", "open")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(c.state.WithLabelValues("echo")))

	c.RecordTransition("echo", "open", "half_open")
	assert.Equal(t, float64(2), promtestutil.ToFloat64(c.state.WithLabelValues("echo")))
	c.RecordTransition("echo", "half_open", "closed")
	assert.Equal(t, float64(0), promtestutil.ToFloat64(c.state.WithLabelValues("echo")))
}
