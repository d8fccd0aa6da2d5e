// Package stream implements the streaming event coordinator. It consumes a
// sequence of raw model-stream fragments, reconstructs ordered application
// events (text deltas, tool-call lifecycle, completion), dispatches tool
// calls encountered mid-stream through the resilient executor, and fans every
// event out to registered processors.
//
// Each conversation turn runs a small state machine: Open while fragments
// arrive, AwaitingTool while announced tool calls are unresolved, Closed once
// StreamComplete or StreamError has been emitted. Events reach processors in
// the exact order the coordinator observed them, and a ToolCallComplete is
// emitted exactly once per call id, always after its ToolCallStart.
package stream
