package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeddq/agentcore/core"
)

func TestContentAccumulator(t *testing.T) {
	acc := NewContentAccumulator()

	ev, keep := acc.OnEvent(core.NewTextDeltaEvent("Hello"))
	assert.True(t, keep)
	assert.Equal(t, "Hello", ev.Text)

	acc.OnEvent(core.NewTextDeltaEvent(" there"))
	// Non-text events pass through without touching the buffer.
	acc.OnEvent(core.NewToolCallStartEvent(core.ToolCallRef{ID: "c1", Name: "echo"}))

	assert.Equal(t, "Hello there", acc.Text())
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	assert.Equal(t, 0, mc.Total())
	assert.Zero(t, mc.Span())

	mc.OnEvent(core.NewTextDeltaEvent("a"))
	mc.OnEvent(core.NewTextDeltaEvent("b"))
	mc.OnEvent(core.NewMessageCompleteEvent("ab"))

	assert.Equal(t, 2, mc.Count(core.EventTextDelta))
	assert.Equal(t, 1, mc.Count(core.EventMessageComplete))
	assert.Equal(t, 0, mc.Count(core.EventStreamError))
	assert.Equal(t, 3, mc.Total())
}

func TestProcessorsObserveCoordinatorEvents(t *testing.T) {
	acc := NewContentAccumulator()
	mc := NewMetricsCollector()

	c := New(nil)
	frags := make(chan core.Fragment, 4)
	frags <- core.TextFragment("streamed ")
	frags <- core.TextFragment("text")
	frags <- core.MessageStopFragment()
	close(frags)

	events := c.Consume(context.Background(), frags, acc, mc)
	for range events {
	}

	assert.Equal(t, "streamed text", acc.Text())
	assert.Equal(t, 2, mc.Count(core.EventTextDelta))
	assert.Equal(t, 1, mc.Count(core.EventStreamComplete))
}
