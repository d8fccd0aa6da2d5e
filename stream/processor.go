package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/zeddq/agentcore/core"
)

// Processor observes every event of one turn in emission order. OnEvent may
// return a transformed event, or keep=false to suppress it for downstream
// consumers. Processors are registered before a stream begins and are
// stateful only within one stream's lifetime; register fresh instances per
// turn. A processor that blocks past the coordinator's stall timeout is
// dropped for the remainder of the stream.
type Processor interface {
	// Name identifies the processor in logs.
	Name() string
	// OnEvent observes (and may transform or suppress) one event.
	OnEvent(ev core.StreamEvent) (core.StreamEvent, bool)
}

// ContentAccumulator concatenates TextDelta events into the full assistant
// message, passing every event through unchanged.
type ContentAccumulator struct {
	mu  sync.Mutex
	buf strings.Builder
}

// NewContentAccumulator constructs an empty accumulator.
func NewContentAccumulator() *ContentAccumulator { return &ContentAccumulator{} }

// Name implements Processor.
func (a *ContentAccumulator) Name() string { return "content_accumulator" }

// OnEvent implements Processor.
func (a *ContentAccumulator) OnEvent(ev core.StreamEvent) (core.StreamEvent, bool) {
	if ev.Kind == core.EventTextDelta {
		a.mu.Lock()
		a.buf.WriteString(ev.Text)
		a.mu.Unlock()
	}
	return ev, true
}

// Text returns the accumulated message so far.
func (a *ContentAccumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// MetricsCollector counts events per kind and measures the span between the
// first and last observed event, passing everything through unchanged.
type MetricsCollector struct {
	mu     sync.Mutex
	counts map[core.EventKind]int
	first  time.Time
	last   time.Time
}

// NewMetricsCollector constructs an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{counts: make(map[core.EventKind]int)}
}

// Name implements Processor.
func (m *MetricsCollector) Name() string { return "metrics_collector" }

// OnEvent implements Processor.
func (m *MetricsCollector) OnEvent(ev core.StreamEvent) (core.StreamEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if m.first.IsZero() {
		m.first = now
	}
	m.last = now
	m.counts[ev.Kind]++
	return ev, true
}

// Count returns how many events of the given kind were observed.
func (m *MetricsCollector) Count(kind core.EventKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[kind]
}

// Total returns the total number of observed events.
func (m *MetricsCollector) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.counts {
		total += n
	}
	return total
}

// Span returns the time between the first and last observed event.
func (m *MetricsCollector) Span() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.first.IsZero() {
		return 0
	}
	return m.last.Sub(m.first)
}
