package session

import (
	"slices"
	"sync"
	"time"

	"github.com/zeddq/agentcore/core"
)

// Conversation owns one exchange's ordered event log and final aggregated
// message. The coordinator (or its caller) appends events in emission order;
// the orchestrator layer reads the finished log for persistence. Safe for
// concurrent use.
type Conversation struct {
	mu sync.RWMutex

	id        string
	turnID    string
	createdAt time.Time

	events    []core.StreamEvent
	finalText string
	metrics   *core.StreamMetrics
	failure   *core.StreamEvent
	closed    bool
}

// NewConversation creates an empty conversation for one turn. An empty id or
// turnID is generated.
func NewConversation(id, turnID string) *Conversation {
	if id == "" {
		id = core.NewID()
	}
	if turnID == "" {
		turnID = core.NewID()
	}
	return &Conversation{id: id, turnID: turnID, createdAt: time.Now().UTC()}
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string { return c.id }

// TurnID returns the turn identifier.
func (c *Conversation) TurnID() string { return c.turnID }

// Append records one emitted event, folding terminal events into the
// aggregated view: MessageComplete sets the final text, StreamComplete the
// turn metrics, StreamError the failure. Events after a terminal event are
// ignored.
func (c *Conversation) Append(ev core.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events = append(c.events, ev)
	switch ev.Kind {
	case core.EventMessageComplete:
		c.finalText = ev.Text
	case core.EventStreamComplete:
		c.metrics = ev.Metrics
		c.closed = true
	case core.EventStreamError:
		failed := ev
		c.failure = &failed
		c.closed = true
	}
}

// Drain appends every event from the channel until it closes. Convenience
// for synchronous callers.
func (c *Conversation) Drain(events <-chan core.StreamEvent) {
	for ev := range events {
		c.Append(ev)
	}
}

// Events returns a copy of the ordered event log.
func (c *Conversation) Events() []core.StreamEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.events)
}

// FinalText returns the aggregated assistant message, empty until
// MessageComplete was appended.
func (c *Conversation) FinalText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finalText
}

// Metrics returns the turn metrics, nil until StreamComplete was appended.
func (c *Conversation) Metrics() *core.StreamMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// Failure returns the StreamError event that closed the turn, if any.
func (c *Conversation) Failure() *core.StreamEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failure
}

// Closed reports whether a terminal event was appended.
func (c *Conversation) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Clone returns an isolated snapshot of the conversation.
func (c *Conversation) Clone() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Conversation{
		id:        c.id,
		turnID:    c.turnID,
		createdAt: c.createdAt,
		events:    slices.Clone(c.events),
		finalText: c.finalText,
		closed:    c.closed,
	}
	if c.metrics != nil {
		m := *c.metrics
		clone.metrics = &m
	}
	if c.failure != nil {
		f := *c.failure
		clone.failure = &f
	}
	return clone
}
