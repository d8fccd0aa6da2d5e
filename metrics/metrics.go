// Package metrics defines the collector seam through which the executor and
// breaker report invocation outcomes and circuit transitions. An in-memory
// collector backs the queryable health surface; a Prometheus collector exports
// the same series for operational dashboards.
package metrics

import (
	"sync"
	"time"

	"github.com/zeddq/agentcore/core"
)

// Collector receives one record per terminal invocation outcome and one per
// circuit-state transition. Implementations must be safe for concurrent use.
type Collector interface {
	RecordInvocation(tool string, kind core.OutcomeKind, failure core.FailureKind, latency time.Duration)
	RecordTransition(tool, from, to string)
}

// NoOp discards all records.
type NoOp struct{}

// RecordInvocation implements Collector.
func (NoOp) RecordInvocation(string, core.OutcomeKind, core.FailureKind, time.Duration) {}

// RecordTransition implements Collector.
func (NoOp) RecordTransition(string, string, string) {}

// ToolStats aggregates the per-tool series kept by the in-memory collector.
type ToolStats struct {
	Tool           string                     `json:"tool"`
	TotalCalls     int64                      `json:"total_calls"`
	SuccessCount   int64                      `json:"success_count"`
	FailureCount   int64                      `json:"failure_count"`
	CircuitOpen    int64                      `json:"circuit_open_count"`
	Timeouts       int64                      `json:"timeout_count"`
	Failures       map[core.FailureKind]int64 `json:"failures,omitempty"`
	AverageLatency time.Duration              `json:"average_latency"`
	Transitions    int64                      `json:"transitions"`
	LastState      string                     `json:"last_state,omitempty"`

	latencySum   time.Duration
	latencyCount int64
}

// InMemory is a process-local Collector suited for tests and the built-in
// health surface.
type InMemory struct {
	mu    sync.Mutex
	tools map[string]*ToolStats
}

// NewInMemory constructs an empty in-memory collector.
func NewInMemory() *InMemory {
	return &InMemory{tools: make(map[string]*ToolStats)}
}

// RecordInvocation implements Collector.
func (m *InMemory) RecordInvocation(tool string, kind core.OutcomeKind, failure core.FailureKind, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.statsLocked(tool)
	st.TotalCalls++
	st.latencySum += latency
	st.latencyCount++
	switch kind {
	case core.OutcomeSuccess:
		st.SuccessCount++
	case core.OutcomeCircuitOpen:
		st.CircuitOpen++
	case core.OutcomeTimeout:
		st.Timeouts++
	default:
		st.FailureCount++
		if failure != core.FailureNone {
			if st.Failures == nil {
				st.Failures = make(map[core.FailureKind]int64)
			}
			st.Failures[failure]++
		}
	}
}

// RecordTransition implements Collector.
func (m *InMemory) RecordTransition(tool, _, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.statsLocked(tool)
	st.Transitions++
	st.LastState = to
}

// Snapshot returns a copy of the stats for one tool.
func (m *InMemory) Snapshot(tool string) (ToolStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tools[tool]
	if !ok {
		return ToolStats{}, false
	}
	return st.copyOut(), true
}

// Snapshots returns a copy of all per-tool stats.
func (m *InMemory) Snapshots() map[string]ToolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]ToolStats, len(m.tools))
	for tool, st := range m.tools {
		out[tool] = st.copyOut()
	}
	return out
}

func (m *InMemory) statsLocked(tool string) *ToolStats {
	st, ok := m.tools[tool]
	if !ok {
		st = &ToolStats{Tool: tool}
		m.tools[tool] = st
	}
	return st
}

func (st *ToolStats) copyOut() ToolStats {
	out := *st
	if st.latencyCount > 0 {
		out.AverageLatency = st.latencySum / time.Duration(st.latencyCount)
	}
	if st.Failures != nil {
		out.Failures = make(map[core.FailureKind]int64, len(st.Failures))
		for k, v := range st.Failures {
			out.Failures[k] = v
		}
	}
	return out
}

// Fanout forwards every record to each wrapped collector in order.
type Fanout []Collector

// RecordInvocation implements Collector.
func (f Fanout) RecordInvocation(tool string, kind core.OutcomeKind, failure core.FailureKind, latency time.Duration) {
	for _, c := range f {
		c.RecordInvocation(tool, kind, failure, latency)
	}
}

// RecordTransition implements Collector.
func (f Fanout) RecordTransition(tool, from, to string) {
	for _, c := range f {
		c.RecordTransition(tool, from, to)
	}
}
