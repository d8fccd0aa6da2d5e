package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeddq/agentcore/core"
)

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

func TestConversation_GeneratesIDs(t *testing.T) {
	c := NewConversation("", "")
	assert.NotEmpty(t, c.ID())
	assert.NotEmpty(t, c.TurnID())

	c2 := NewConversation("conv-1", "turn-1")
	assert.Equal(t, "conv-1", c2.ID())
	assert.Equal(t, "turn-1", c2.TurnID())
}

func TestConversation_FoldsTerminalEvents(t *testing.T) {
	c := NewConversation("conv-1", "turn-1")
	assert.False(t, c.Closed())

	c.Append(core.NewTextDeltaEvent("Hel"))
	c.Append(core.NewTextDeltaEvent("lo"))
	c.Append(core.NewMessageCompleteEvent("Hello"))
	assert.Equal(t, "Hello", c.FinalText())
	assert.False(t, c.Closed())

	c.Append(core.NewStreamCompleteEvent(core.StreamMetrics{Events: 3, TextDeltas: 2, Duration: time.Second}))
	assert.True(t, c.Closed())
	require.NotNil(t, c.Metrics())
	assert.Equal(t, 2, c.Metrics().TextDeltas)
	assert.Nil(t, c.Failure())

	// Events after the terminal are dropped.
	c.Append(core.NewTextDeltaEvent("late"))
	assert.Len(t, c.Events(), 4)
}

func TestConversation_RecordsFailure(t *testing.T) {
	c := NewConversation("conv-1", "turn-1")
	c.Append(core.NewStreamErrorEvent(core.FailureCancelled, "ctx cancelled"))

	assert.True(t, c.Closed())
	require.NotNil(t, c.Failure())
	assert.Equal(t, core.FailureCancelled, c.Failure().ErrorKind)
	assert.Nil(t, c.Metrics())
}

func TestConversation_Drain(t *testing.T) {
	events := make(chan core.StreamEvent, 3)
	events <- core.NewTextDeltaEvent("hi")
	events <- core.NewMessageCompleteEvent("hi")
	events <- core.NewStreamCompleteEvent(core.StreamMetrics{Events: 2})
	close(events)

	c := NewConversation("", "")
	c.Drain(events)
	assert.True(t, c.Closed())
	assert.Equal(t, "hi", c.FinalText())
}

func TestConversation_EventsIsolated(t *testing.T) {
	c := NewConversation("", "")
	c.Append(core.NewTextDeltaEvent("hi"))

	got := c.Events()
	got[0].Text = "mutated"
	assert.Equal(t, "hi", c.Events()[0].Text)
}

func TestInMemoryStore_SaveGetIsolation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	conv := NewConversation("conv-1", "turn-1")
	conv.Append(core.NewTextDeltaEvent("hi"))
	require.NoError(t, store.Save(ctx, conv))

	// Mutating the original after save must not affect the stored copy.
	conv.Append(core.NewTextDeltaEvent(" extra"))

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, got.Events(), 1)

	// Mutating the returned copy must not affect the store either.
	got.Append(core.NewTextDeltaEvent("more"))
	again, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, again.Events(), 1)
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
